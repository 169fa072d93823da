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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csl-wsn/csl/framer"
)

func TestWakeUpFrameRoundTripHello(t *testing.T) {
	f := New(0xABCD)
	buf := make([]byte, f.WakeUpFrameLength(framer.SubtypeHello))
	n, err := f.CreateWakeUpFrame(buf, framer.SubtypeHello, 11, 0, 0, nil)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	f.UpdateRendezvousTime(buf, framer.SubtypeHello, 1234)

	wf, err := f.ParseWakeUpFrame(buf)
	require.NoError(t, err)
	assert.Equal(t, framer.SubtypeHello, wf.Subtype)
	assert.Equal(t, uint32(1234), wf.RendezvousTime)
	assert.True(t, CheckDestinationPANID(buf, 11, 0xABCD))
	assert.False(t, wf.HasOTP)
}

func TestWakeUpFrameRoundTripAck(t *testing.T) {
	f := New(0x1234)
	otp := []byte{0xAA, 0xBB}
	buf := make([]byte, f.WakeUpFrameLength(framer.SubtypeAck))
	_, err := f.CreateWakeUpFrame(buf, framer.SubtypeAck, 20, 7, 42, otp)
	require.NoError(t, err)
	f.UpdateRendezvousTime(buf, framer.SubtypeAck, 9)

	wf, err := f.ParseWakeUpFrame(buf)
	require.NoError(t, err)
	assert.Equal(t, uint8(7), wf.SourceIndex)
	assert.Equal(t, uint8(42), wf.PayloadFramesLength)
	assert.Equal(t, uint32(9), wf.RendezvousTime)
	assert.True(t, wf.HasOTP)
	assert.Equal(t, otp, wf.OTP)
}

func TestParseWakeUpFrameRejectsBadType(t *testing.T) {
	f := New(1)
	buf := []byte{0x00, 0x00, 0x00, 0x00, 0x00}
	_, err := f.ParseWakeUpFrame(buf)
	assert.Error(t, err)
}

func TestWakeUpOTPVerifies(t *testing.T) {
	key := [16]byte{1, 2, 3}
	src := [8]byte{9, 9, 9, 9, 9, 9, 9, 9}
	otp, err := WakeUpOTP(key, src, 77, 5)
	require.NoError(t, err)
	ok, err := VerifyOTP(key, src, 77, 5, otp)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyOTP(key, src, 77, 6, otp)
	require.NoError(t, err)
	assert.False(t, ok, "mismatched payload-frames length must reject the OTP")
}

func TestPayloadFrameRoundTrip(t *testing.T) {
	pf := NewPayloadFramer(framer.SubtypeHello)
	hdr := framer.PayloadHeader{SourceAddress: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}}
	buf := make([]byte, pf.Length())
	n, err := pf.Create(buf, hdr, nil)
	require.NoError(t, err)
	buf = buf[:n]

	got, consumed, err := pf.Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, n, consumed)
	assert.Equal(t, hdr.SourceAddress, got.SourceAddress)
}

func TestAcknowledgementSealOpenRoundTrip(t *testing.T) {
	key := [16]byte{1, 2, 3, 4}
	src := [8]byte{1, 1, 1, 1, 1, 1, 1, 1}
	hdr := make([]byte, lenExtendedFrameType+lenPhase)
	n, err := CreateAcknowledgement(hdr, 500, true)
	require.NoError(t, err)
	hdr = hdr[:n]

	sealed, err := SealAcknowledgement(key, src, 0, 10, hdr)
	require.NoError(t, err)

	opened, err := OpenAcknowledgement(key, src, 0, 10, sealed)
	require.NoError(t, err)

	pf := NewPayloadFramer(framer.SubtypeNormal)
	ack, err := pf.ParseAcknowledgement(opened)
	require.NoError(t, err)
	assert.Equal(t, uint16(500), ack.CSLPhase)
	assert.True(t, ack.Pending)
}

func TestOpenAcknowledgementRejectsTamperedMIC(t *testing.T) {
	key := [16]byte{1, 2, 3, 4}
	src := [8]byte{1, 1, 1, 1, 1, 1, 1, 1}
	hdr := make([]byte, lenExtendedFrameType+lenPhase)
	CreateAcknowledgement(hdr, 1, false)
	sealed, err := SealAcknowledgement(key, src, 0, 10, hdr)
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff
	_, err = OpenAcknowledgement(key, src, 0, 10, sealed)
	assert.Error(t, err)
}
