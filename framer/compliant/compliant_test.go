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

	"github.com/csl-wsn/csl/framer"
)

func TestWakeUpFrameRoundTrip(t *testing.T) {
	f := New(0x2015)
	buf := make([]byte, WakeUpFrameLen)
	n, err := f.CreateWakeUpFrame(buf, framer.SubtypeNormal, 0, 0, 0, nil)
	require.NoError(t, err)
	require.Equal(t, WakeUpFrameLen, n)
	f.UpdateRendezvousTime(buf, framer.SubtypeNormal, 0xCAFEF00D)

	wf, err := f.ParseWakeUpFrame(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xCAFEF00D), wf.RendezvousTime)
}

func TestParseRejectsBadCRC(t *testing.T) {
	f := New(1)
	buf := make([]byte, WakeUpFrameLen)
	f.CreateWakeUpFrame(buf, framer.SubtypeNormal, 0, 0, 0, nil)
	buf[7] ^= 0xff // corrupt rendezvous field without fixing CRC
	_, err := f.ParseWakeUpFrame(buf)
	assert.Error(t, err)
}

func TestParseRejectsWrongPAN(t *testing.T) {
	f := New(1)
	buf := make([]byte, WakeUpFrameLen)
	f.CreateWakeUpFrame(buf, framer.SubtypeNormal, 0, 0, 0, nil)
	other := New(2)
	_, err := other.ParseWakeUpFrame(buf)
	assert.Error(t, err)
}

func TestAcknowledgementSealOpenRoundTrip(t *testing.T) {
	key := [16]byte{1, 2, 3}
	src := [8]byte{9, 9, 9, 9, 9, 9, 9, 9}
	hdr := make([]byte, AckHeaderLen)
	CreateAcknowledgement(hdr, 77, true)

	sealed, err := SealAcknowledgement(key, src, 5, hdr)
	require.NoError(t, err)

	opened, err := OpenAcknowledgement(key, src, 5, sealed)
	require.NoError(t, err)

	pf := NewPayloadFramer()
	ack, err := pf.ParseAcknowledgement(opened)
	require.NoError(t, err)
	assert.Equal(t, uint16(77), ack.CSLPhase)
	assert.True(t, ack.Pending)
}

func TestPayloadHeaderRoundTrip(t *testing.T) {
	pf := NewPayloadFramer()
	buf := make([]byte, pf.Length())
	_, err := pf.Create(buf, framer.PayloadHeader{IsCommand: true}, nil)
	require.NoError(t, err)
	hdr, n, err := pf.Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, pf.Length(), n)
	assert.True(t, hdr.IsCommand)
}
