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

package csl

import "github.com/csl-wsn/csl/framer"

// LateRendezvous is a cached wake-up-frame result whose rendezvous is
// far enough away (§4.8.3, more than ~20ms) that other work can run
// first.
type LateRendezvous struct {
	RendezvousTime int64
	Subtype        framer.Subtype
	Channel        uint8
}

// LateRendezvousCache is a fixed-capacity pool, sized to the radio's
// channel count per §3.
type LateRendezvousCache struct {
	entries []LateRendezvous
}

// NewLateRendezvousCache builds a cache with room for numChannels entries.
func NewLateRendezvousCache(numChannels int) *LateRendezvousCache {
	return &LateRendezvousCache{entries: make([]LateRendezvous, 0, numChannels)}
}

// ErrCacheFull is returned by Insert when the pool has no free slot.
var ErrCacheFull = cacheError("csl: late-rendezvous cache full")

type cacheError string

func (e cacheError) Error() string { return string(e) }

// Insert adds r to the cache.
func (c *LateRendezvousCache) Insert(r LateRendezvous) error {
	if len(c.entries) >= cap(c.entries) {
		return ErrCacheFull
	}
	c.entries = append(c.entries, r)
	return nil
}

// Prune discards entries whose rendezvous (minus guardTime) has
// already passed relative to now, per §4.8.3; it returns how many
// entries were discarded, for a caller-side log warning.
func (c *LateRendezvousCache) Prune(now, guardTime int64) int {
	kept := c.entries[:0]
	discarded := 0
	for _, e := range c.entries {
		if e.RendezvousTime-guardTime < now {
			discarded++
			continue
		}
		kept = append(kept, e)
	}
	c.entries = kept
	return discarded
}

// Due returns the first cached entry whose rendezvous-minus-guard has
// arrived, removing it from the cache, or false if none is ready.
func (c *LateRendezvousCache) Due(now, guardTime int64) (LateRendezvous, bool) {
	for i, e := range c.entries {
		if e.RendezvousTime-guardTime <= now {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return e, true
		}
	}
	return LateRendezvous{}, false
}

// Overlaps reports whether any cached rendezvous falls within the
// transmission window [start, end), used by the transmit protothread
// to decide whether to delay by one wake-up interval (§4.8.2 step 3).
func (c *LateRendezvousCache) Overlaps(start, end int64) bool {
	for _, e := range c.entries {
		if e.RendezvousTime >= start && e.RendezvousTime < end {
			return true
		}
	}
	return false
}

// Len reports the number of cached entries.
func (c *LateRendezvousCache) Len() int { return len(c.entries) }
