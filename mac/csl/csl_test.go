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

	"github.com/csl-wsn/csl/mac"
	"github.com/csl-wsn/csl/nbr"
)

func permanentPeer(t *testing.T, table *nbr.Table, addr nbr.Addr, key [16]byte) *nbr.Entry {
	e, err := table.New(addr, nbr.StatusTentative)
	require.NoError(t, err)
	table.Promote(e, nbr.Permanent{PairwiseKey: key, HasPairwiseKey: true})
	return e
}

func TestUnicastSealOpenRoundTrip(t *testing.T) {
	key := [16]byte{5, 5, 5}
	table := nbr.NewTable(4, 4, true)
	peerAtReceiver := permanentPeer(t, table, nbr.Addr{0xaa}, key)

	sender := New([8]byte{0xaa})
	f := mac.SecuredFrame{Class: mac.ClassAck, Neighbor: peerAtReceiver, WakeUpCounter: 7}
	require.NoError(t, sender.BeforeCreate(f))
	secured, err := sender.OnFrameCreated(f, []byte("ack payload"))
	require.NoError(t, err)

	receiver := New([8]byte{0xbb})
	vf := mac.SecuredFrame{Class: mac.ClassAck, Neighbor: peerAtReceiver, WakeUpCounter: 7, Incoming: true}
	opened, err := receiver.Verify(vf, secured)
	require.NoError(t, err)
	assert.Equal(t, []byte("ack payload"), opened)
}

func TestBeforeCreateRequiresPairwiseKey(t *testing.T) {
	s := New([8]byte{1})
	table := nbr.NewTable(4, 4, true)
	tentative, err := table.New(nbr.Addr{2}, nbr.StatusTentative)
	require.NoError(t, err)

	err = s.BeforeCreate(mac.SecuredFrame{Neighbor: tentative})
	assert.ErrorIs(t, err, mac.ErrNoRoute)
}

func TestBroadcastTargetsFansOutToPermanentNeighbors(t *testing.T) {
	s := New([8]byte{1})
	table := nbr.NewTable(4, 4, true)
	permanentPeer(t, table, nbr.Addr{2}, [16]byte{1})
	permanentPeer(t, table, nbr.Addr{3}, [16]byte{2})
	tentative, err := table.New(nbr.Addr{4}, nbr.StatusTentative)
	require.NoError(t, err)
	_ = tentative

	targets := s.BroadcastTargets(table)
	assert.Len(t, targets, 2)
	assert.True(t, s.Broadcast.Active())
}

func TestOngoingBroadcastCompletesWhenAllMarkedDone(t *testing.T) {
	table := nbr.NewTable(4, 4, true)
	a := permanentPeer(t, table, nbr.Addr{1}, [16]byte{1})
	b := permanentPeer(t, table, nbr.Addr{2}, [16]byte{2})

	var ob OngoingBroadcast
	ob.Begin(table)
	assert.True(t, ob.Active())
	assert.False(t, ob.MarkDone(a.Index()))
	assert.True(t, ob.MarkDone(b.Index()))
	assert.False(t, ob.Active())
}

func TestPiggybackHelloAckRoundTrip(t *testing.T) {
	s := New([8]byte{1})
	buf := make([]byte, 14)
	ctx := mac.PiggybackContext{CSLPhase: 99, SenderWakeUpCounter: 123456, Challenge: [8]byte{9, 9, 9}}
	n, err := s.WritePiggyback(mac.ClassHelloAck, buf, ctx)
	require.NoError(t, err)
	assert.Equal(t, 14, n)

	parsed, n, err := s.ReadPiggyback(mac.ClassHelloAck, buf)
	require.NoError(t, err)
	assert.Equal(t, 14, n)
	assert.Equal(t, ctx.CSLPhase, parsed.CSLPhase)
	assert.Equal(t, ctx.SenderWakeUpCounter, parsed.SenderWakeUpCounter)
	assert.Equal(t, ctx.Challenge, parsed.Challenge)
}
