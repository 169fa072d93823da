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

package noncoresec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csl-wsn/csl/mac"
	"github.com/csl-wsn/csl/nbr"
)

func TestSealOpenRoundTrip(t *testing.T) {
	groupKey := [16]byte{1, 2, 3, 4}
	sender := New([8]byte{0xaa}, groupKey)
	receiverTable := nbr.NewTable(4, 4, true)
	peer, err := receiverTable.New(nbr.Addr{0xaa}, nbr.StatusPermanent)
	require.NoError(t, err)

	f := mac.SecuredFrame{Class: mac.ClassData, Broadcast: true}
	require.NoError(t, sender.BeforeCreate(f))
	f.FrameCounter = sender.CurrentOutgoingCounter()

	plaintext := []byte("hello world")
	secured, err := sender.OnFrameCreated(f, plaintext)
	require.NoError(t, err)

	receiver := New([8]byte{0xbb}, groupKey)
	vf := mac.SecuredFrame{Class: mac.ClassData, Broadcast: true, Neighbor: peer, FrameCounter: f.FrameCounter, Incoming: true}
	opened, err := receiver.Verify(vf, secured)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestVerifyRejectsReplay(t *testing.T) {
	groupKey := [16]byte{1, 2, 3, 4}
	sender := New([8]byte{0xaa}, groupKey)
	table := nbr.NewTable(4, 4, true)
	peer, err := table.New(nbr.Addr{0xaa}, nbr.StatusPermanent)
	require.NoError(t, err)

	f := mac.SecuredFrame{Class: mac.ClassData, Broadcast: true}
	require.NoError(t, sender.BeforeCreate(f))
	f.FrameCounter = sender.CurrentOutgoingCounter()
	secured, err := sender.OnFrameCreated(f, []byte("x"))
	require.NoError(t, err)

	receiver := New([8]byte{0xbb}, groupKey)
	vf := mac.SecuredFrame{Class: mac.ClassData, Broadcast: true, Neighbor: peer, FrameCounter: f.FrameCounter, Incoming: true}
	_, err = receiver.Verify(vf, secured)
	require.NoError(t, err)

	_, err = receiver.Verify(vf, secured)
	assert.Error(t, err)
}

func TestBroadcastTargetsIsSingleGroupKeyTransmission(t *testing.T) {
	s := New([8]byte{1}, [16]byte{2})
	targets := s.BroadcastTargets(nil)
	require.Len(t, targets, 1)
	assert.Nil(t, targets[0])
}
