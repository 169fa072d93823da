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

	"github.com/csl-wsn/csl/framer"
	framerpotr "github.com/csl-wsn/csl/framer/potr"
	"github.com/csl-wsn/csl/mac"
	mcsl "github.com/csl-wsn/csl/mac/csl"
	"github.com/csl-wsn/csl/nbr"
	"github.com/csl-wsn/csl/radio"
	syncpotr "github.com/csl-wsn/csl/sync/potr"
	"github.com/csl-wsn/csl/wakeupcounter"
)

// newPOTRScheduler builds a Scheduler wired the same way cmd/cslnode
// wires a non-compliant node, bound to one side of an unconnected
// Loopback pair (no peer ever turns its radio on, so every
// transmission here comes back MAC_TX_NOACK rather than hanging).
func newPOTRScheduler(t *testing.T, localAddr [8]byte) (*Scheduler, *nbr.Table) {
	t.Helper()
	lb := radio.NewLoopback(1 << 20)
	driver, _ := lb.Sides()

	table := nbr.NewTable(8, 4, true)
	strategy := mcsl.New(localAddr)
	wakeUpFramer := framerpotr.New(0xABCD)
	newPayload := func(subtype framer.Subtype) framer.PayloadFramer { return framerpotr.NewPayloadFramer(subtype) }
	synchronizer := syncpotr.New(syncpotr.Config{ClockTolerancePPM: 15, CompensationTolerancePPM: 3})
	interval := wakeupcounter.NewInterval(uint32(driver.TicksPerSecond()), 8)

	s := New(Config{
		Channels:                    []uint8{11},
		MaxBurstIndex:               3,
		GuardTime:                   10,
		MaxRetransmissionsUnicast:   5,
		MaxRetransmissionsBroadcast: 3,
		LocalAddr:                   localAddr,
	}, driver, wakeUpFramer, newPayload, strategy, table, synchronizer, interval)
	return s, table
}

// TestTransmitPOTRUnicastDoesNotErr is the regression test for the
// "practical on-the-fly rejection" OTP never being wired into
// CreateWakeUpFrame: before that fix, every POTR unicast transmit
// failed CreateWakeUpFrame's OTP length check and returned TxErr
// before the frame ever reached the radio.
func TestTransmitPOTRUnicastDoesNotErr(t *testing.T) {
	s, table := newPOTRScheduler(t, [8]byte{0xaa})

	peer, err := table.New(nbr.Addr{0xbb}, nbr.StatusTentative)
	require.NoError(t, err)
	table.Promote(peer, nbr.Permanent{PairwiseKey: [16]byte{1, 2, 3, 4}, HasPairwiseKey: true})

	f := &BufferedFrame{Receiver: peer, Class: mac.ClassData, Payload: []byte("hello")}
	outcome, _ := s.transmit(f)

	assert.NotEqual(t, TxErr, outcome)
	assert.Equal(t, TxNoACK, outcome)
}
