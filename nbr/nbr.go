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

// Package nbr implements the fixed-capacity neighbor table: tentative
// and permanent entries, keyed material, and the lock counter that
// guards the table against the duty-cycle fast path while AES
// operations or table mutations are in flight.
package nbr

import (
	"errors"
	"time"

	"github.com/cespare/xxhash"
	log "github.com/sirupsen/logrus"

	"github.com/csl-wsn/csl/antireplay"
	"github.com/csl-wsn/csl/sync"
)

// MaxCapacity is the hard ceiling on permanent neighbors: indices must
// fit in one byte and bitmaps (see mac/csl's ongoing-broadcast record)
// must fit in 32 bits.
const MaxCapacity = 32

// Addr is an 802.15.4 extended (64-bit) link address.
type Addr [8]byte

func (a Addr) hash() uint64 {
	return xxhash.Sum64(a[:])
}

// Status distinguishes the two entry kinds a table slot can hold.
type Status int

// Entry lifecycle states.
const (
	StatusTentative Status = iota
	StatusPermanent
)

// Tentative holds the handshake-in-progress state for an entry that
// has not yet been promoted to permanent. HasChallenge and HasKey say
// which of Challenge and TentativePairwiseKey are set; both can be set
// at once.
type Tentative struct {
	Challenge    [8]byte
	HasChallenge bool

	TentativePairwiseKey [16]byte
	HasKey                bool

	// ForeignIndex is the table index our peer told us (via its
	// HELLOACK's own-index byte) it uses to refer to us, learned
	// before we are promoted to permanent and needed immediately to
	// address our own ACK's wake-up frame to them.
	ForeignIndex    uint8
	HasForeignIndex bool

	HelloAckSent     bool
	WaitTimerPresent bool
	WaitTimerAt      time.Time
}

// Permanent holds the steady-state keyed material and bookkeeping for
// an established neighbor.
type Permanent struct {
	PairwiseKey    [16]byte
	HasPairwiseKey bool

	GroupKey    [16]byte
	HasGroupKey bool

	ForeignIndex uint8

	HelloAckChallenge    [8]byte
	HasHelloAckChallenge bool

	MySeq, HisSeq uint8
	HasSeqCounters bool

	SentAuthenticHello bool
	ReceivingUpdate    bool
}

// Entry is one neighbor-table slot: a link address, anti-replay
// bookkeeping, an optional expiration, and tagged tentative/permanent
// state. The table, not the caller, owns Entry's lifetime; callers
// hold a *Entry only for the duration of one operation.
type Entry struct {
	Addr          Addr
	Replay        antireplay.Info
	Expiration    time.Time
	HasExpiration bool
	Status        Status

	Tentative Tentative
	Permanent Permanent

	// SyncData is the per-neighbor CSL wake-up-time estimate (§3's
	// "per-entry CSL sync data, external to the neighbor table,
	// parallel array"); kept inline here rather than in a separate
	// parallel slice since Go entries are already heap-allocated and
	// individually addressable.
	SyncData sync.Data

	index uint8
}

// Index returns the entry's stable table index, valid as long as the
// entry exists. Promotion from tentative to permanent preserves it.
func (e *Entry) Index() uint8 { return e.index }

var (
	// ErrTableFull is returned by New when every slot is occupied; New
	// evicts no entry to make room in that case.
	ErrTableFull = errors.New("nbr: table full")
	// ErrTooManyTentatives is returned when the tentative pool is at
	// its compile-time cap (independent of overall table occupancy) and
	// LRU eviction is disabled or found no evictable entry.
	ErrTooManyTentatives = errors.New("nbr: too many tentative neighbors")
)

// Table is the fixed-capacity neighbor table. Capacity must be <= MaxCapacity.
type Table struct {
	capacity        int
	maxTentatives   int
	evictLRUTentative bool

	slots []*Entry // index -> entry, nil if empty
	byAddr map[uint64][]*Entry

	lockCount int32

	nTentative int
}

// NewTable constructs a Table with the given permanent capacity and
// tentative pool size.
func NewTable(capacity, maxTentatives int, evictLRUTentative bool) *Table {
	if capacity > MaxCapacity {
		capacity = MaxCapacity
	}
	return &Table{
		capacity:          capacity,
		maxTentatives:     maxTentatives,
		evictLRUTentative: evictLRUTentative,
		slots:             make([]*Entry, capacity),
		byAddr:            make(map[uint64][]*Entry, capacity),
	}
}

// Lock bumps the lock counter, signalling to the duty-cycle fast path
// that the table (or the shared AES engine) is mid-mutation.
func (t *Table) Lock() { t.lockCount++ }

// Unlock reverses Lock.
func (t *Table) Unlock() {
	if t.lockCount > 0 {
		t.lockCount--
	}
}

// Locked reports whether any Lock is outstanding. The fast path calls
// this before touching table storage and must drop the frame if true.
func (t *Table) Locked() bool { return t.lockCount > 0 }

func (t *Table) freeSlot() int {
	for i, s := range t.slots {
		if s == nil {
			return i
		}
	}
	return -1
}

// New allocates a fresh entry of the given status for addr. For
// StatusTentative, it enforces maxTentatives independently of overall
// occupancy, evicting the least-recently-touched tentative entry (by
// WaitTimerAt) when evictLRUTentative is set and the pool is full.
func (t *Table) New(addr Addr, status Status) (*Entry, error) {
	if status == StatusTentative && t.nTentative >= t.maxTentatives {
		if !t.evictLRUTentative {
			return nil, ErrTooManyTentatives
		}
		if !t.evictOldestTentative() {
			return nil, ErrTooManyTentatives
		}
	}

	idx := t.freeSlot()
	if idx < 0 {
		return nil, ErrTableFull
	}

	e := &Entry{Addr: addr, Status: status, index: uint8(idx)}
	t.slots[idx] = e
	h := addr.hash()
	t.byAddr[h] = append(t.byAddr[h], e)
	if status == StatusTentative {
		t.nTentative++
	}
	return e, nil
}

func (t *Table) evictOldestTentative() bool {
	var oldest *Entry
	for _, e := range t.slots {
		if e == nil || e.Status != StatusTentative {
			continue
		}
		if oldest == nil || e.Tentative.WaitTimerAt.Before(oldest.Tentative.WaitTimerAt) {
			oldest = e
		}
	}
	if oldest == nil {
		return false
	}
	log.WithField("addr", oldest.Addr).Debug("nbr: evicting oldest tentative entry to make room")
	t.Delete(oldest)
	return true
}

// Find returns the entry for addr and its status-matching variant, or
// nil if none exists. If both a tentative and permanent entry exist
// for addr (the brief post-ACK window described in the data model),
// Find returns the permanent one.
func (t *Table) Find(addr Addr) *Entry {
	var tentative *Entry
	for _, e := range t.byAddr[addr.hash()] {
		if e.Addr != addr {
			continue
		}
		if e.Status == StatusPermanent {
			return e
		}
		tentative = e
	}
	return tentative
}

// Delete removes e from the table.
func (t *Table) Delete(e *Entry) {
	if e == nil || int(e.index) >= len(t.slots) || t.slots[e.index] != e {
		return
	}
	t.slots[e.index] = nil
	h := e.Addr.hash()
	bucket := t.byAddr[h]
	for i, cand := range bucket {
		if cand == e {
			t.byAddr[h] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if e.Status == StatusTentative {
		t.nTentative--
	}
}

// Promote converts a tentative entry into a permanent one in place, so
// its index (and thus the index peers have cached) does not change.
func (t *Table) Promote(e *Entry, perm Permanent) {
	if e.Status != StatusTentative {
		return
	}
	e.Status = StatusPermanent
	e.Permanent = perm
	e.Tentative = Tentative{}
	t.nTentative--
}

// Head returns the first occupied slot, for iteration; nil if table is empty.
func (t *Table) Head() *Entry {
	for _, e := range t.slots {
		if e != nil {
			return e
		}
	}
	return nil
}

// Next returns the next occupied slot after e, or nil.
func (t *Table) Next(e *Entry) *Entry {
	for i := int(e.index) + 1; i < len(t.slots); i++ {
		if t.slots[i] != nil {
			return t.slots[i]
		}
	}
	return nil
}

// GetNbr returns the entry at index, or nil if the slot is empty or
// index is out of range (e.g. a peer referencing a stale index).
func (t *Table) GetNbr(index uint8) *Entry {
	if int(index) >= len(t.slots) {
		return nil
	}
	return t.slots[index]
}

// IndexOf returns e's stable table index.
func (t *Table) IndexOf(e *Entry) uint8 { return e.index }

// Len returns the number of occupied slots (tentative + permanent).
func (t *Table) Len() int {
	n := 0
	for _, e := range t.slots {
		if e != nil {
			n++
		}
	}
	return n
}

// Capacity returns the table's permanent-entry capacity.
func (t *Table) Capacity() int { return t.capacity }
