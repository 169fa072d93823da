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

package potr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csl-wsn/csl/sync"
)

func testConfig() Config {
	return Config{
		ClockTolerancePPM:        30,
		CompensationTolerancePPM: 5,
		MinDriftUpdateInterval:   50 * time.Second,
	}
}

func TestScheduleNoSyncSpansFullInterval(t *testing.T) {
	s := New(testConfig())
	data := &sync.Data{}
	result, err := s.Schedule(sync.ScheduleParams{
		Now:                 1000,
		Data:                data,
		WakeUpInterval:      62500,
		RadioTicksPerSecond: 62500,
		GuardTime:           10,
		WakeUpFrameDuration: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1010), result.WakeUpSequenceStart)
}

func TestScheduleUsesCompensationToleranceOnceDriftKnown(t *testing.T) {
	s := New(testConfig())

	noDrift := &sync.Data{T: 0, HasSync: true, DriftPPM: sync.UninitializedDrift}
	withDrift := &sync.Data{T: 0, HasSync: true, DriftPPM: 2}

	params := func(d *sync.Data) sync.ScheduleParams {
		return sync.ScheduleParams{
			Now:                 62500 * 50,
			Data:                d,
			WakeUpInterval:      62500,
			RadioTicksPerSecond: 62500,
			GuardTime:           10,
			WakeUpFrameDuration: 50,
		}
	}

	wide, err := s.Schedule(params(noDrift))
	require.NoError(t, err)
	narrow, err := s.Schedule(params(withDrift))
	require.NoError(t, err)

	wideSpan := wide.PayloadFrameStart - wide.WakeUpSequenceStart
	narrowSpan := narrow.PayloadFrameStart - narrow.WakeUpSequenceStart
	assert.Greater(t, wideSpan, narrowSpan, "known drift should narrow the window via the tighter compensation tolerance")
}

func TestOnUnicastTransmittedIgnoresFailures(t *testing.T) {
	s := New(testConfig())
	data := &sync.Data{}
	s.OnUnicastTransmitted(data, false, 100, 5000, 62500)
	assert.False(t, data.HasSync)
}

func TestOnUnicastTransmittedSeedsHistoricalSnapshot(t *testing.T) {
	s := New(testConfig())
	data := &sync.Data{}
	s.OnUnicastTransmitted(data, true, 100, 5000, 62500)
	assert.True(t, data.HasSync)
	assert.True(t, data.Historical.Valid)
	assert.Equal(t, sync.UninitializedDrift, data.DriftPPM)
}

func TestForgetDropsDriftStats(t *testing.T) {
	s := New(testConfig())
	data := &sync.Data{}
	s.OnUnicastTransmitted(data, true, 100, 5000, 62500)
	s.recordDriftSample(data, 3.0)
	_, tracked := s.driftStats[data]
	require.True(t, tracked)
	s.Forget(data)
	_, tracked = s.driftStats[data]
	assert.False(t, tracked)
}
