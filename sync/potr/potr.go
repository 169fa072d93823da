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

// Package potr implements the drift-compensating synchronizer
// variant: once a neighbor's clock drift (ppm) has been learned from
// a historical snapshot, uncertainty shrinks from the nominal clock
// tolerance to the tighter compensation tolerance. Grounded on
// Contiki-NG's csl-synchronizer-splo.c ("sync with periodic local
// observations").
package potr

import (
	"time"

	"github.com/eclesh/welford"
	log "github.com/sirupsen/logrus"

	"github.com/csl-wsn/csl/sync"
)

// Config holds the tunables §6 names for the POTR synchronizer.
type Config struct {
	ClockTolerancePPM        float64
	CompensationTolerancePPM float64
	MinDriftUpdateInterval   time.Duration
}

// Synchronizer implements sync.Synchronizer with per-neighbor drift
// compensation. One instance is shared across all neighbors; per-
// neighbor running variance of drift samples lives in driftStats,
// keyed by the *sync.Data pointer identity (one entry per neighbor's
// sync record, which the neighbor table owns for the neighbor's
// lifetime).
type Synchronizer struct {
	cfg        Config
	driftStats map[*sync.Data]*welford.Stats
}

// New builds a POTR synchronizer with the given tolerances.
func New(cfg Config) *Synchronizer {
	return &Synchronizer{cfg: cfg, driftStats: make(map[*sync.Data]*welford.Stats)}
}

// Init is a no-op; per-neighbor state is allocated lazily.
func (s *Synchronizer) Init() {}

// Schedule sizes a transmission window, substituting the tighter
// CompensationTolerancePPM once DriftPPM has been learned
// (Data.DriftPPM != sync.UninitializedDrift); otherwise it behaves
// like the compliant synchronizer.
func (s *Synchronizer) Schedule(p sync.ScheduleParams) (sync.Result, error) {
	if !p.Data.HasSync {
		start := p.Now + p.GuardTime
		return sync.Result{
			WakeUpSequenceStart:    start,
			RemainingWakeUpFrames:  frameCount(p.WakeUpInterval, p.WakeUpFrameDuration),
			PayloadFrameStart:      start + p.WakeUpInterval,
			ReceiversWakeUpCounter: p.Data.HisWakeUpCounterAtT,
		}, nil
	}

	secondsSinceSync := float64(p.Now-p.Data.T) / float64(p.RadioTicksPerSecond)

	tolerance := s.cfg.ClockTolerancePPM
	compensation := 0.0
	if p.Data.DriftPPM != sync.UninitializedDrift {
		tolerance = s.cfg.CompensationTolerancePPM
		compensation = float64(p.Data.DriftPPM) * secondsSinceSync / 1e6
	}

	u := sync.Uncertainty(secondsSinceSync, tolerance, p.RadioTicksPerSecond, p.GuardTime)
	expected := nextExpectedWakeUp(p.Data.T, p.Now, p.WakeUpInterval) + int64(compensation)

	result := sync.ScheduleAroundExpected(p.Now, expected, u, p.WakeUpInterval, p.WakeUpFrameDuration)
	increments := (result.WakeUpSequenceStart - p.Data.T) / p.WakeUpInterval
	result.ReceiversWakeUpCounter = p.Data.HisWakeUpCounterAtT + uint32(increments)
	return result, nil
}

// OnUnicastTransmitted records the new sync point from a successfully
// acknowledged unicast's CSL phase, and re-estimates drift once
// MinDriftUpdateInterval has elapsed since the historical snapshot.
func (s *Synchronizer) OnUnicastTransmitted(data *sync.Data, outcomeOK bool, cslPhase uint16, ackSFDTimestamp int64, wakeUpInterval int64) {
	if !outcomeOK {
		return
	}

	actualT := ackSFDTimestamp - (wakeUpInterval - int64(cslPhase))
	deltaCounter := int64(0)
	if data.HasSync {
		deltaCounter = (actualT - data.T) / wakeUpInterval
	}

	now := time.Now()
	if data.Historical.Valid && now.Sub(data.Historical.Taken) >= s.cfg.MinDriftUpdateInterval {
		secondsSinceHistorical := now.Sub(data.Historical.Taken).Seconds()
		historicalDeltaCounter := int64(data.HisWakeUpCounterAtT) - int64(data.Historical.WakeUpCounterAtT)
		expected := wakeUpInterval * historicalDeltaCounter
		actual := data.T - data.Historical.T
		if secondsSinceHistorical > 0 {
			drift := int32(float64(actual-expected) * 1e6 / secondsSinceHistorical / float64(wakeUpInterval))
			data.DriftPPM = drift
			s.recordDriftSample(data, float64(drift))
		}
		data.Historical = sync.HistoricalSnapshot{
			T:                data.T,
			WakeUpCounterAtT: data.HisWakeUpCounterAtT,
			Taken:            now,
			Valid:            true,
		}
	} else if !data.Historical.Valid {
		data.Historical = sync.HistoricalSnapshot{
			T:                data.T,
			WakeUpCounterAtT: data.HisWakeUpCounterAtT,
			Taken:            now,
			Valid:            true,
		}
		if data.DriftPPM == 0 {
			data.DriftPPM = sync.UninitializedDrift
		}
	}

	data.T = actualT
	data.HisWakeUpCounterAtT += uint32(deltaCounter)
	data.HasSync = true
}

func (s *Synchronizer) recordDriftSample(data *sync.Data, ppm float64) {
	st, ok := s.driftStats[data]
	if !ok {
		st = welford.New()
		s.driftStats[data] = st
	}
	st.Add(ppm)
	if st.Count() > 3 && st.Stddev() > 5 {
		log.WithField("stddev_ppm", st.Stddev()).Debug("potr synchronizer: drift estimate is noisy")
	}
}

// Forget drops a neighbor's running drift-variance statistics, called
// when the neighbor table evicts the corresponding entry.
func (s *Synchronizer) Forget(data *sync.Data) {
	delete(s.driftStats, data)
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
