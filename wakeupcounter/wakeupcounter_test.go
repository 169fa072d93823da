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

package wakeupcounter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWrite(t *testing.T) {
	buf := make([]byte, Length)
	Write(Counter(0x01020304), buf)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, buf)
	assert.Equal(t, Counter(0x01020304), Parse(buf))
}

func TestNewIntervalRejectsNonPowerOfTwoRate(t *testing.T) {
	assert.Panics(t, func() { NewInterval(32768, 3) })
}

func TestRoundIncrementsIsExactOnMultiples(t *testing.T) {
	w := NewInterval(32768, 8) // interval = 4096 ticks
	for k := int64(-5); k <= 5; k++ {
		got := w.RoundIncrements(k * int64(w.Ticks()))
		require.Equal(t, k, got)
	}
}

func TestRoundIncrementsRoundsHalfUp(t *testing.T) {
	w := NewInterval(32768, 8)
	half := int64(w.Ticks()) / 2
	assert.Equal(t, int64(1), w.RoundIncrements(half))
	assert.Equal(t, int64(0), w.RoundIncrements(half-1))
}

func TestShiftToFutureIsAtLeastNowAndCongruent(t *testing.T) {
	w := NewInterval(32768, 8)
	ticks := int64(w.Ticks())
	cases := []struct{ t, now int64 }{
		{100, 5000},
		{5000, 100},
		{0, 0},
		{-10, 50},
	}
	for _, c := range cases {
		got := w.ShiftToFuture(c.t, c.now)
		assert.GreaterOrEqual(t, got, c.now)
		assert.Zero(t, (got-c.t)%ticks)
	}
}

func TestCounterSubHandlesWraparound(t *testing.T) {
	var a, b Counter = 5, 0xFFFFFFFE
	assert.Equal(t, int64(7), a.Sub(b))
}
