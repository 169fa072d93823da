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

// Package sync implements per-neighbor wake-up-time estimation: the
// shared Data/Result types used by both the compliant and POTR
// synchronizer variants (sync/compliant, sync/potr), and the
// uncertainty-window arithmetic common to both.
package sync

import "time"

// UninitializedDrift marks a neighbor whose clock drift has not yet
// been estimated (no historical snapshot is old enough).
const UninitializedDrift = int32(-1 << 31)

// HistoricalSnapshot is an older (t, wake-up-counter) pair kept
// alongside the current one so drift can be estimated as the two
// diverge over time.
type HistoricalSnapshot struct {
	T                int64
	WakeUpCounterAtT uint32
	Taken            time.Time
	Valid            bool
}

// Data is the per-neighbor synchronization state the CSL scheduler
// consults before every transmission. T and HisWakeUpCounterAtT are
// used by both variants; DriftPPM and Historical are POTR-only.
type Data struct {
	T                   int64
	HisWakeUpCounterAtT uint32
	HasSync             bool

	DriftPPM   int32
	Historical HistoricalSnapshot
}

// Result is what Schedule computes for one outbound transmission.
type Result struct {
	WakeUpSequenceStart    int64
	RemainingWakeUpFrames  uint32
	PayloadFrameStart      int64
	ReceiversWakeUpCounter uint32 // meaningful for POTR only
}

// Synchronizer is the capability set §4.6 names: schedule a
// transmission window around a neighbor's predicted wake-up, and
// learn from the CSL phase of a successfully-acknowledged unicast.
type Synchronizer interface {
	Init()
	Schedule(params ScheduleParams) (Result, error)
	OnUnicastTransmitted(data *Data, outcomeOK bool, cslPhase uint16, ackSFDTimestamp int64, wakeUpInterval int64)
}

// ScheduleParams bundles the inputs Schedule needs; both variants
// consume the same set, POTR additionally reading Data.DriftPPM.
type ScheduleParams struct {
	Now                 int64
	Data                *Data
	WakeUpInterval      int64 // radio ticks
	RadioTicksPerSecond int64
	GuardTime           int64 // radio ticks
	WakeUpFrameDuration int64 // radio ticks per wake-up frame, for sizing the sequence
	ClockTolerancePPM   float64
	// LocalWakeUpCounter is the sending node's own wake-up counter at
	// Now; neither synchronizer variant reads it.
	LocalWakeUpCounter uint32
}

// uncertainty implements the formula common to both variants:
// elapsed*tolerance(ppm)*ticks/1e6 + 1 + 2*guard.
func uncertainty(secondsSinceSync float64, tolerancePPM float64, radioTicksPerSecond int64, guardTime int64) int64 {
	u := int64(secondsSinceSync*tolerancePPM*float64(radioTicksPerSecond)/1e6) + 1
	return u + 2*guardTime
}

// Uncertainty exposes the shared formula for the variant packages.
func Uncertainty(secondsSinceSync float64, tolerancePPM float64, radioTicksPerSecond int64, guardTime int64) int64 {
	return uncertainty(secondsSinceSync, tolerancePPM, radioTicksPerSecond, guardTime)
}

// scheduleAroundExpected sizes and positions a transmission window of
// span 2*uncertainty centered on expectedWakeUp, shifting forward by
// one wake-up interval if the computed start has already passed.
func scheduleAroundExpected(now, expectedWakeUp, uncertaintyTicks, wakeUpInterval, frameDuration int64) Result {
	start := expectedWakeUp - uncertaintyTicks
	for start <= now {
		start += wakeUpInterval
		expectedWakeUp += wakeUpInterval
	}
	payloadStart := expectedWakeUp + uncertaintyTicks
	span := payloadStart - start
	remaining := uint32(0)
	if frameDuration > 0 && span > 0 {
		remaining = uint32(span / frameDuration)
	}
	return Result{
		WakeUpSequenceStart:   start,
		RemainingWakeUpFrames: remaining,
		PayloadFrameStart:     payloadStart,
	}
}

// ScheduleAroundExpected is exported for the variant packages.
func ScheduleAroundExpected(now, expectedWakeUp, uncertaintyTicks, wakeUpInterval, frameDuration int64) Result {
	return scheduleAroundExpected(now, expectedWakeUp, uncertaintyTicks, wakeUpInterval, frameDuration)
}
