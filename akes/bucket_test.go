/*
Copyright (c) The CSL Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package akes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLeakyBucketCapsAtCapacity(t *testing.T) {
	now := time.Unix(0, 0)
	b := newLeakyBucket(3, time.Second, now)

	for i := 0; i < 3; i++ {
		assert.True(t, b.TryTake(now), "token %d should be available", i)
	}
	assert.False(t, b.TryTake(now), "fourth immediate take should be rejected")
}

func TestLeakyBucketRefillsOverTime(t *testing.T) {
	now := time.Unix(0, 0)
	b := newLeakyBucket(1, time.Second, now)
	assert.True(t, b.TryTake(now))
	assert.False(t, b.TryTake(now))

	later := now.Add(time.Second)
	assert.True(t, b.TryTake(later), "token should have refilled after one interval")
}

func TestLeakyBucketNeverExceedsCapacityAfterLongIdle(t *testing.T) {
	now := time.Unix(0, 0)
	b := newLeakyBucket(2, time.Second, now)
	far := now.Add(time.Hour)
	assert.True(t, b.TryTake(far))
	assert.True(t, b.TryTake(far))
	assert.False(t, b.TryTake(far), "refill must cap at capacity, not accumulate unboundedly")
}

func TestTrickleTimerDoublesUpToImax(t *testing.T) {
	tr := newTrickleTimer(time.Second, 2)
	assert.Equal(t, time.Second, tr.Reset())
	assert.Equal(t, 2*time.Second, tr.Next())
	assert.Equal(t, 4*time.Second, tr.Next())
	assert.Equal(t, 4*time.Second, tr.Next(), "must cap at imax = imin << imaxDoublings")
}

func TestTrickleTimerResetReturnsToImin(t *testing.T) {
	tr := newTrickleTimer(time.Second, 3)
	tr.Next()
	tr.Next()
	assert.Equal(t, time.Second, tr.Reset())
}
