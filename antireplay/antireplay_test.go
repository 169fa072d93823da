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

package antireplay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWasReplayedRejectsNonIncreasing(t *testing.T) {
	var info Info
	assert.False(t, info.WasReplayed(KindUnicast, 10))
	info.Accept(KindUnicast, 10)
	assert.True(t, info.WasReplayed(KindUnicast, 10))
	assert.True(t, info.WasReplayed(KindUnicast, 5))
	assert.False(t, info.WasReplayed(KindUnicast, 11))
}

func TestBroadcastAndUnicastCountersAreIndependent(t *testing.T) {
	var info Info
	info.Accept(KindBroadcast, 100)
	assert.False(t, info.WasReplayed(KindUnicast, 1))
	assert.True(t, info.WasReplayed(KindBroadcast, 100))
}

func TestSetCounterSignalsOverflow(t *testing.T) {
	c := OutgoingCounter{value: 0xFFFFFFFE}
	assert.Equal(t, uint32(0xFFFFFFFF), c.SetCounter())
	assert.Equal(t, uint32(0), c.SetCounter(), "must return 0 at the wrap point so callers reboot")
}

func TestResetClearsBothCounters(t *testing.T) {
	var info Info
	info.Accept(KindBroadcast, 5)
	info.Accept(KindUnicast, 7)
	info.Reset()
	assert.False(t, info.WasReplayed(KindBroadcast, 1))
	assert.False(t, info.WasReplayed(KindUnicast, 1))
}
