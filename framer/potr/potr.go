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

// Package potr implements the compressed "practical on-the-fly
// rejection" wire format: a 1-byte extended frame type packs subtype
// into its top two bits, wake-up frames for ACK/NORMAL carry a 2-byte
// one-time-password MIC that lets a receiver reject a spoofed wake-up
// before committing to stay awake, and payload frames carry a 1-byte
// sequence number only for NORMAL (data) frames, plus an 8-byte MIC.
//
// The byte layout here is grounded on Contiki-NG's
// os/net/mac/csl/csl-framer-potr.c: the extended-frame-type mask
// (0x37, not the 0x47 example in loose prose descriptions of the
// format) and per-subtype field presence (has_destination_pan_id,
// has_otp_etc, has_source_address, has_seqno) are reproduced exactly;
// only the mutable global packetbuf/singleton state is replaced with
// explicit parameters.
package potr

import (
	"encoding/binary"
	"fmt"

	"github.com/csl-wsn/csl/ccm"
	"github.com/csl-wsn/csl/framer"
)

// extendedFrameType is the fixed low-6-bit pattern every POTR frame's
// first byte carries; the subtype occupies bits 6-7.
const extendedFrameType = 0x37

const (
	lenExtendedFrameType = 1
	lenPanID             = 2
	lenSourceIndex       = 1
	lenPayloadFramesLen  = 1
	lenOTP               = 2
	lenLongRendezvous    = 2
	lenShortRendezvous   = 1
	lenSeqNo             = 1
	lenPhase             = 2
	// UnicastMICLen is the MIC length protecting payload/ack frames.
	UnicastMICLen = 8
)

func hasDestinationPanID(s framer.Subtype) bool {
	return s == framer.SubtypeHello || s == framer.SubtypeHelloAck
}

func hasOTPEtc(s framer.Subtype) bool {
	return s == framer.SubtypeAck || s == framer.SubtypeNormal
}

func hasSourceAddress(s framer.Subtype) bool {
	return s == framer.SubtypeHello || s == framer.SubtypeHelloAck
}

func hasSeqNo(s framer.Subtype) bool {
	return s == framer.SubtypeNormal
}

func rendezvousLen(s framer.Subtype) int {
	if s == framer.SubtypeHello {
		return lenLongRendezvous
	}
	return lenShortRendezvous
}

// Framer implements framer.WakeUpFramer for the POTR wire format.
type Framer struct {
	PANID uint16
}

// New builds a POTR wake-up framer bound to the given PAN ID.
func New(panID uint16) *Framer {
	return &Framer{PANID: panID}
}

// MinHeaderBytesForFiltering is 1: the extended-frame-type byte alone
// is enough to determine framing for a payload frame in POTR mode,
// since subtype is conveyed out of band by the wake-up frame that
// preceded it.
func (f *Framer) MinHeaderBytesForFiltering() int { return lenExtendedFrameType }

// WakeUpFrameLength returns the on-air size of a wake-up frame.
func (f *Framer) WakeUpFrameLength(subtype framer.Subtype) int {
	n := lenExtendedFrameType
	if hasDestinationPanID(subtype) {
		n += lenPanID
	}
	if hasOTPEtc(subtype) {
		n += lenSourceIndex + lenPayloadFramesLen + lenOTP
	}
	n += rendezvousLen(subtype)
	return n
}

// CreateWakeUpFrame writes one wake-up frame. otp must be exactly
// lenOTP bytes for ACK/NORMAL subtypes (the caller computes it via
// ccm once, since it authenticates the payload-frames length which is
// caller-supplied context the framer itself does not compute).
func (f *Framer) CreateWakeUpFrame(buf []byte, subtype framer.Subtype, channel uint8, receiverForeignIndex uint8, payloadFramesLength uint8, otp []byte) (int, error) {
	need := f.WakeUpFrameLength(subtype)
	if len(buf) < need {
		return 0, fmt.Errorf("potr: buffer too small for %s wake-up frame: have %d need %d", subtype, len(buf), need)
	}

	p := 0
	buf[p] = extendedFrameType | byte(subtype)<<6
	p += lenExtendedFrameType

	if hasDestinationPanID(subtype) {
		buf[p] = byte(f.PANID&0xff) ^ channel
		buf[p+1] = byte(f.PANID >> 8)
		p += lenPanID
	}

	if hasOTPEtc(subtype) {
		if len(otp) != lenOTP {
			return 0, fmt.Errorf("potr: OTP must be %d bytes, got %d", lenOTP, len(otp))
		}
		buf[p] = receiverForeignIndex
		p += lenSourceIndex
		buf[p] = payloadFramesLength
		p += lenPayloadFramesLen
		copy(buf[p:p+lenOTP], otp)
		p += lenOTP
	}

	// Rendezvous time is filled in later by UpdateRendezvousTime; zero
	// it now so callers that forget to call it still emit valid bytes.
	rl := rendezvousLen(subtype)
	for i := 0; i < rl; i++ {
		buf[p+i] = 0
	}
	p += rl

	return p, nil
}

// UpdateRendezvousTime patches the trailing rendezvous-time field of a
// wake-up frame already written by CreateWakeUpFrame. It is called
// repeatedly while the wake-up sequence drains out of the radio.
func (f *Framer) UpdateRendezvousTime(buf []byte, subtype framer.Subtype, remaining uint32) {
	rl := rendezvousLen(subtype)
	if len(buf) < rl {
		return
	}
	tail := buf[len(buf)-rl:]
	switch rl {
	case 1:
		tail[0] = byte(remaining)
	case 2:
		binary.BigEndian.PutUint16(tail, uint16(remaining))
	}
}

// ParseWakeUpFrame parses a received wake-up frame, surfacing the raw
// OTP bytes on WakeUpFrame.OTP where present. It does not itself
// verify the OTP or consult the neighbor table — the caller (csl's
// duty-cycle protothread) resolves SourceIndex into a neighbor and
// pairwise key before calling VerifyOTP.
func (f *Framer) ParseWakeUpFrame(buf []byte) (framer.WakeUpFrame, error) {
	if len(buf) < lenExtendedFrameType {
		return framer.WakeUpFrame{}, framer.ErrFailed
	}
	if buf[0]&0x3f != extendedFrameType {
		return framer.WakeUpFrame{}, fmt.Errorf("potr: %w: bad extended frame type", framer.ErrFailed)
	}
	subtype := framer.Subtype(buf[0] >> 6 & 3)
	want := f.WakeUpFrameLength(subtype)
	if len(buf) != want {
		return framer.WakeUpFrame{}, fmt.Errorf("potr: %w: expected %d bytes for %s, got %d", framer.ErrFailed, want, subtype, len(buf))
	}

	p := lenExtendedFrameType
	wf := framer.WakeUpFrame{Subtype: subtype}

	if hasDestinationPanID(subtype) {
		// skipped here, not validated; CheckDestinationPANID below
		// checks these bytes against a channel and PAN ID.
		p += lenPanID
	}

	if hasOTPEtc(subtype) {
		wf.SourceIndex = buf[p]
		wf.HasSourceIndex = true
		p += lenSourceIndex
		wf.PayloadFramesLength = buf[p]
		p += lenPayloadFramesLen
		wf.OTP = append([]byte(nil), buf[p:p+lenOTP]...)
		wf.HasOTP = true
		p += lenOTP
	}

	rl := rendezvousLen(subtype)
	var rendezvous uint32
	switch rl {
	case 1:
		rendezvous = uint32(buf[p])
	case 2:
		rendezvous = uint32(binary.BigEndian.Uint16(buf[p : p+2]))
	}
	wf.RendezvousTime = rendezvous
	wf.RemainingWakeUpFrames = rendezvous
	return wf, nil
}

// CheckDestinationPANID XORs the received PAN-ID low byte with the
// local channel and compares against panID/broadcast; returns true if
// the frame is addressed to us (or broadcast).
func CheckDestinationPANID(buf []byte, channel uint8, panID uint16) bool {
	if len(buf) < lenExtendedFrameType+lenPanID {
		return false
	}
	got := uint16(buf[lenExtendedFrameType]^channel) | uint16(buf[lenExtendedFrameType+1])<<8
	return got == panID || got == 0xffff
}

// WakeUpOTP computes the 2-byte OTP authenticating payloadFramesLength
// under the pairwise key, using the POTR wake-up-OTP nonce (§4.4).
func WakeUpOTP(pairwiseKey [16]byte, srcAddr [8]byte, wakeUpCounter uint32, payloadFramesLength uint8) ([]byte, error) {
	a, err := ccm.New(pairwiseKey, lenOTP)
	if err != nil {
		return nil, err
	}
	nonce := ccm.POTRNonce(srcAddr, ccm.AlphaWakeUpOTP, 0, wakeUpCounter)
	return a.MACOnly(nonce, []byte{payloadFramesLength}), nil
}

// VerifyOTP recomputes the OTP and compares it against the one
// carried in the wake-up frame; practical on-the-fly rejection hinges
// entirely on this check succeeding before the receiver commits to
// staying awake for the rendezvous.
func VerifyOTP(pairwiseKey [16]byte, srcAddr [8]byte, wakeUpCounter uint32, payloadFramesLength uint8, otp []byte) (bool, error) {
	want, err := WakeUpOTP(pairwiseKey, srcAddr, wakeUpCounter, payloadFramesLength)
	if err != nil {
		return false, err
	}
	if len(want) != len(otp) {
		return false, nil
	}
	for i := range want {
		if want[i] != otp[i] {
			return false, nil
		}
	}
	return true, nil
}
