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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/csl-wsn/csl/framer"
	framerpotr "github.com/csl-wsn/csl/framer/potr"
	mcsl "github.com/csl-wsn/csl/mac/csl"
	"github.com/csl-wsn/csl/nbr"
	"github.com/csl-wsn/csl/radio"
	syncpotr "github.com/csl-wsn/csl/sync/potr"
	"github.com/csl-wsn/csl/wakeupcounter"
)

// TestHandleWakeUpFrameRejectsWrongOTP is the regression test for
// "practical on-the-fly rejection": a POTR wake-up frame whose OTP
// does not authenticate under the named sender's pairwise key must
// turn the radio off and leave the duty-cycle phase unchanged, never
// committing to the payload rendezvous.
func TestHandleWakeUpFrameRejectsWrongOTP(t *testing.T) {
	ctrl := gomock.NewController(t)
	driver := radio.NewMockDriver(ctrl)
	driver.EXPECT().SetCallback(gomock.Any()).AnyTimes()
	driver.EXPECT().AsyncOff().Return(nil).Times(1)

	localAddr := [8]byte{0xaa}
	table := nbr.NewTable(8, 4, true)
	sender, err := table.New(nbr.Addr{0xbb}, nbr.StatusTentative)
	require.NoError(t, err)
	table.Promote(sender, nbr.Permanent{PairwiseKey: [16]byte{1, 2, 3, 4}, HasPairwiseKey: true})

	strategy := mcsl.New(localAddr)
	wakeUpFramer := framerpotr.New(0xABCD)
	newPayload := func(subtype framer.Subtype) framer.PayloadFramer { return framerpotr.NewPayloadFramer(subtype) }
	synchronizer := syncpotr.New(syncpotr.Config{ClockTolerancePPM: 15, CompensationTolerancePPM: 3})
	interval := wakeupcounter.NewInterval(1<<20, 8)

	s := New(Config{Channels: []uint8{11}, LocalAddr: localAddr}, driver, wakeUpFramer, newPayload, strategy, table, synchronizer, interval)

	buf := make([]byte, wakeUpFramer.WakeUpFrameLength(framer.SubtypeNormal))
	wrongOTP := []byte{0xde, 0xad}
	_, err = wakeUpFramer.CreateWakeUpFrame(buf, framer.SubtypeNormal, 11, sender.Index(), 5, wrongOTP)
	require.NoError(t, err)
	wakeUpFramer.UpdateRendezvousTime(buf, framer.SubtypeNormal, 0)

	s.handleWakeUpFrame(buf)

	assert.Equal(t, phaseScanning, s.duty.phase)
}
