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

import (
	"github.com/csl-wsn/csl/mac"
	"github.com/csl-wsn/csl/nbr"
)

// TxOutcome reports what happened to one buffered frame's
// transmission; mac.Outcome carries the same values, and the scheduler
// reports them through this type of its own.
type TxOutcome int

// Outcome values mirror mac.Outcome (§4.8.4).
const (
	TxOK TxOutcome = iota
	TxNoACK
	TxCollision
	TxErr
	TxErrFatal
	TxDeferred
)

// Callback is invoked once per bursted frame with its outcome.
type Callback func(outcome TxOutcome)

// BufferedFrame is a queued outbound frame (§3's "Buffered frame").
// Class defaults to mac.ClassData; akes enqueues HELLO/HELLOACK/ACK/UPDATE
// command frames through the same queue, tagged with their class and
// the piggyback fields §4.7 assigns to it, and never bursted alongside
// other frames.
type BufferedFrame struct {
	Receiver        *nbr.Entry
	Broadcast       bool
	Class           mac.FrameClass
	Piggyback       mac.PiggybackContext
	Payload         []byte
	Callback        Callback
	TransmissionCount int
	NextAttempt     int64
}

// IsCommand reports whether this frame is a command (HELLO, HELLOACK,
// ACK, UPDATE) rather than ordinary data.
func (f *BufferedFrame) IsCommand() bool { return f.Class != mac.ClassData }

// Queue is the insertion-ordered outbound frame queue; frames to the
// same receiver inherit each other's NextAttempt so per-receiver
// ordering is preserved even when a failed send backs one of them
// off.
type Queue struct {
	frames []*BufferedFrame
}

// Push appends f to the queue, inheriting NextAttempt from the most
// recently queued frame to the same receiver, if any.
func (q *Queue) Push(f *BufferedFrame) {
	for i := len(q.frames) - 1; i >= 0; i-- {
		if sameReceiver(q.frames[i], f) {
			f.NextAttempt = q.frames[i].NextAttempt
			break
		}
	}
	q.frames = append(q.frames, f)
}

func sameReceiver(a, b *BufferedFrame) bool {
	if a.Broadcast != b.Broadcast {
		return false
	}
	if a.Broadcast {
		return true
	}
	return a.Receiver == b.Receiver
}

// NextReady returns the first queued frame (in insertion order) whose
// NextAttempt has arrived, or nil.
func (q *Queue) NextReady(now int64) *BufferedFrame {
	for _, f := range q.frames {
		if f.NextAttempt <= now {
			return f
		}
	}
	return nil
}

// Burst collects up to max additional queued data frames to the same
// receiver as primary, in insertion order, not including primary
// itself; command frames are never collected.
func (q *Queue) Burst(primary *BufferedFrame, max int) []*BufferedFrame {
	var out []*BufferedFrame
	for _, f := range q.frames {
		if f == primary || !sameReceiver(f, primary) || f.IsCommand() {
			continue
		}
		out = append(out, f)
		if len(out) >= max {
			break
		}
	}
	return out
}

// Remove drops f from the queue.
func (q *Queue) Remove(f *BufferedFrame) {
	for i, cand := range q.frames {
		if cand == f {
			q.frames = append(q.frames[:i], q.frames[i+1:]...)
			return
		}
	}
}

// DelayReceiver pushes NextAttempt forward by delta for every queued
// frame to the same receiver as f (exponential back-off after a
// retried failure, §4.8.4).
func (q *Queue) DelayReceiver(f *BufferedFrame, delta int64) {
	for _, cand := range q.frames {
		if sameReceiver(cand, f) {
			cand.NextAttempt += delta
		}
	}
}

// Len reports the number of queued frames.
func (q *Queue) Len() int { return len(q.frames) }
