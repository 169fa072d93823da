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

package compliant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csl-wsn/csl/sync"
)

func TestScheduleNoSyncSpansFullInterval(t *testing.T) {
	s := New()
	data := &sync.Data{}
	result, err := s.Schedule(sync.ScheduleParams{
		Now:                 1000,
		Data:                data,
		WakeUpInterval:      62500,
		RadioTicksPerSecond: 62500,
		GuardTime:           10,
		WakeUpFrameDuration: 50,
		ClockTolerancePPM:   30,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1010), result.WakeUpSequenceStart)
	assert.Equal(t, int64(1010+62500), result.PayloadFrameStart)
}

func TestScheduleWithSyncGrowsWindowWithElapsedTime(t *testing.T) {
	s := New()
	data := &sync.Data{T: 0, HasSync: true}

	short, err := s.Schedule(sync.ScheduleParams{
		Now:                 62500 * 2,
		Data:                data,
		WakeUpInterval:      62500,
		RadioTicksPerSecond: 62500,
		GuardTime:           10,
		WakeUpFrameDuration: 50,
		ClockTolerancePPM:   30,
	})
	require.NoError(t, err)

	data2 := &sync.Data{T: 0, HasSync: true}
	long, err := s.Schedule(sync.ScheduleParams{
		Now:                 62500 * 100,
		Data:                data2,
		WakeUpInterval:      62500,
		RadioTicksPerSecond: 62500,
		GuardTime:           10,
		WakeUpFrameDuration: 50,
		ClockTolerancePPM:   30,
	})
	require.NoError(t, err)

	shortSpan := short.PayloadFrameStart - short.WakeUpSequenceStart
	longSpan := long.PayloadFrameStart - long.WakeUpSequenceStart
	assert.Greater(t, longSpan, shortSpan, "uncertainty window should grow with elapsed time since last sync")
}

func TestOnUnicastTransmittedUpdatesOnlyOnSuccess(t *testing.T) {
	s := New()
	data := &sync.Data{}

	s.OnUnicastTransmitted(data, false, 100, 5000, 62500)
	assert.False(t, data.HasSync)

	s.OnUnicastTransmitted(data, true, 100, 5000, 62500)
	assert.True(t, data.HasSync)
	assert.Equal(t, int64(5000)-(62500-100), data.T)
}
