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

// Package wakeupcounter implements the CSL wake-up counter: a 32-bit
// tick count incremented once per duty-cycle wake-up, and the
// arithmetic needed to convert between radio-tick durations, counter
// increments, and future-aligned instants.
package wakeupcounter

import "encoding/binary"

// Length is the on-wire size of a wake-up counter, in bytes.
const Length = 4

// Counter is a 32-bit monotonic tick count. It wraps on overflow;
// callers that need wrap-safety compare with subtraction, not <.
type Counter uint32

// Interval holds the compile-time wake-up interval, expressed in
// radio ticks. It is always a power of two (NewInterval enforces
// this); Increments and ShiftToFuture use integer division and
// remainder on it.
type Interval struct {
	ticks uint32
	mask  uint32
}

// NewInterval builds an Interval from a radio tick rate and a wake-up
// rate (must be a power of two, e.g. 8 for 125ms wake-ups at a typical
// 32kHz-derived tick rate). Panics if rate is not a power of two or
// if radioTicksPerSecond/rate is not a power-of-two tick count, since this is a
// construction-time configuration error, not a runtime condition.
func NewInterval(radioTicksPerSecond, rate uint32) Interval {
	if rate == 0 || rate&(rate-1) != 0 {
		panic("wakeupcounter: rate must be a power of two")
	}
	ticks := radioTicksPerSecond / rate
	if ticks == 0 || ticks&(ticks-1) != 0 {
		panic("wakeupcounter: wake-up interval is not a power-of-two tick count")
	}
	return Interval{ticks: ticks, mask: ticks - 1}
}

// Ticks returns the wake-up interval in radio ticks.
func (w Interval) Ticks() uint32 {
	return w.ticks
}

// Parse reads a big-endian wake-up counter from the first 4 bytes of buf.
func Parse(buf []byte) Counter {
	return Counter(binary.BigEndian.Uint32(buf))
}

// Write serializes c big-endian into the first 4 bytes of buf.
func Write(c Counter, buf []byte) {
	binary.BigEndian.PutUint32(buf, uint32(c))
}

// Increments returns the quotient and remainder of delta (a radio-tick
// duration) divided by the wake-up interval.
func (w Interval) Increments(delta int64) (q int64, r int64) {
	m := int64(w.ticks)
	q = delta / m
	r = delta % m
	if r < 0 {
		r += m
		q--
	}
	return q, r
}

// RoundIncrements rounds delta/interval to the nearest integer,
// rounding halves upward (toward positive infinity), for negative
// deltas as well.
func (w Interval) RoundIncrements(delta int64) int64 {
	m := int64(w.ticks)
	q, r := w.Increments(delta)
	if r*2 >= m {
		q++
	}
	return q
}

// ShiftToFuture returns the smallest instant >= now that is congruent
// to t modulo the wake-up interval.
func (w Interval) ShiftToFuture(t, now int64) int64 {
	ticks := int64(w.ticks)
	diff := (t - now) % ticks
	if diff < 0 {
		diff += ticks
	}
	return now + diff
}

// Next returns c+1, wrapping from 0xFFFFFFFF to 0.
func (c Counter) Next() Counter {
	return c + 1
}

// Sub returns the signed difference a-b, correctly handling wraparound
// for counters that are within half the counter space of each other.
func (a Counter) Sub(b Counter) int64 {
	return int64(int32(a - b))
}
