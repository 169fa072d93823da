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

// Package compliant implements the standards-compliant synchronizer
// variant: no drift compensation, only the nominal clock-tolerance
// uncertainty window grown by elapsed time since the last sync.
// Grounded on Contiki-NG's csl-synchronizer-compliant.c.
package compliant

import (
	"github.com/csl-wsn/csl/sync"
)

// Synchronizer implements sync.Synchronizer without drift compensation.
type Synchronizer struct{}

// New builds a compliant synchronizer.
func New() *Synchronizer { return &Synchronizer{} }

// Init is a no-op; the compliant variant carries no internal state
// beyond what's passed in via sync.Data.
func (s *Synchronizer) Init() {}

// Schedule sizes a transmission window using the nominal clock
// tolerance only. With no prior sync data, the window spans a full
// wake-up interval (worst case); otherwise it spans 2*uncertainty
// centered on the receiver's predicted wake-up.
func (s *Synchronizer) Schedule(p sync.ScheduleParams) (sync.Result, error) {
	if !p.Data.HasSync {
		start := p.Now + p.GuardTime
		return sync.Result{
			WakeUpSequenceStart:   start,
			RemainingWakeUpFrames: frameCount(p.WakeUpInterval, p.WakeUpFrameDuration),
			PayloadFrameStart:     start + p.WakeUpInterval,
		}, nil
	}

	secondsSinceSync := float64(p.Now-p.Data.T) / float64(p.RadioTicksPerSecond)
	u := sync.Uncertainty(secondsSinceSync, p.ClockTolerancePPM, p.RadioTicksPerSecond, p.GuardTime)
	expected := nextExpectedWakeUp(p.Data.T, p.Now, p.WakeUpInterval)
	return sync.ScheduleAroundExpected(p.Now, expected, u, p.WakeUpInterval, p.WakeUpFrameDuration), nil
}

// OnUnicastTransmitted records (t, his_wake_up_counter_at_t) from a
// successfully acknowledged unicast's CSL phase; other outcomes leave
// sync data untouched.
func (s *Synchronizer) OnUnicastTransmitted(data *sync.Data, outcomeOK bool, cslPhase uint16, ackSFDTimestamp int64, wakeUpInterval int64) {
	if !outcomeOK {
		return
	}
	data.T = ackSFDTimestamp - (wakeUpInterval - int64(cslPhase))
	data.HasSync = true
}

func frameCount(span, frameDuration int64) uint32 {
	if frameDuration <= 0 {
		return 0
	}
	return uint32(span / frameDuration)
}

func nextExpectedWakeUp(t, now, interval int64) int64 {
	if t > now {
		return t
	}
	delta := now - t
	steps := delta/interval + 1
	return t + steps*interval
}
