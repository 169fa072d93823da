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
	"encoding/binary"
	"fmt"

	"github.com/csl-wsn/csl/ccm"
	"github.com/csl-wsn/csl/framer"
)

const (
	flagIsCommand    = 1 << 6
	flagFramePending = 1 << 7
)

// PayloadFramer implements framer.PayloadFramer for POTR payload and
// acknowledgement frames.
type PayloadFramer struct {
	subtype framer.Subtype // the command subtype this frame accompanies; set by the scheduler before Create/Filter
}

// NewPayloadFramer builds a payload framer for the given accompanying
// wake-up subtype (set once per transmission/reception, mirroring
// csl_state.{transmit,duty_cycle}.subtype in the original).
func NewPayloadFramer(subtype framer.Subtype) *PayloadFramer {
	return &PayloadFramer{subtype: subtype}
}

func headerLen(subtype framer.Subtype, framePending bool) int {
	n := lenExtendedFrameType
	if hasSourceAddress(subtype) {
		n += 8
	}
	if hasSeqNo(subtype) {
		n += lenSeqNo
	}
	if framePending {
		n += lenPayloadFramesLen
	}
	return n
}

// Length returns the worst-case header length (HELLO/HELLOACK frame
// with its source address, pending set).
func (pf *PayloadFramer) Length() int {
	return headerLen(framer.SubtypeHello, true)
}

// Create marshals the payload-frame header into buf (MIC and
// encrypted payload are appended separately by the MAC strategy, which
// owns the key and nonce for this frame class).
func (pf *PayloadFramer) Create(buf []byte, hdr framer.PayloadHeader, payload []byte) (int, error) {
	hl := headerLen(pf.subtype, hdr.PendingFramesLen != 0)
	if len(buf) < hl {
		return 0, fmt.Errorf("potr: payload header buffer too small")
	}
	p := 0
	buf[p] = extendedFrameType
	if hdr.IsCommand {
		buf[p] |= flagIsCommand
	}
	if hdr.PendingFramesLen != 0 {
		buf[p] |= flagFramePending
	}
	p += lenExtendedFrameType

	if hasSourceAddress(pf.subtype) {
		copy(buf[p:p+8], hdr.SourceAddress[:])
		p += 8
	}
	if hasSeqNo(pf.subtype) {
		buf[p] = hdr.SeqNo
		p += lenSeqNo
	}
	if hdr.PendingFramesLen != 0 {
		buf[p] = hdr.PendingFramesLen
		p += lenPayloadFramesLen
	}
	return p, nil
}

// Parse parses the non-confidential header prefix of a received
// payload frame.
func (pf *PayloadFramer) Parse(buf []byte) (framer.PayloadHeader, int, error) {
	if len(buf) < lenExtendedFrameType {
		return framer.PayloadHeader{}, 0, framer.ErrFailed
	}
	if buf[0]&0x3f != extendedFrameType {
		return framer.PayloadHeader{}, 0, fmt.Errorf("potr: %w: bad payload frame type", framer.ErrFailed)
	}
	hdr := framer.PayloadHeader{
		Subtype:      pf.subtype,
		IsCommand:    buf[0]&flagIsCommand != 0,
		FramePending: buf[0]&flagFramePending != 0,
	}
	p := lenExtendedFrameType
	if hasSourceAddress(pf.subtype) {
		if len(buf) < p+8 {
			return framer.PayloadHeader{}, 0, framer.ErrFailed
		}
		copy(hdr.SourceAddress[:], buf[p:p+8])
		hdr.HasSourceAddress = true
		p += 8
	}
	if hasSeqNo(pf.subtype) {
		if len(buf) < p+1 {
			return framer.PayloadHeader{}, 0, framer.ErrFailed
		}
		hdr.SeqNo = buf[p]
		hdr.HasSeqNo = true
		p += lenSeqNo
	}
	if hdr.FramePending {
		if len(buf) < p+1 {
			return framer.PayloadHeader{}, 0, framer.ErrFailed
		}
		hdr.PendingFramesLen = buf[p]
		p += lenPayloadFramesLen
	}
	return hdr, p, nil
}

// Filter validates the header prefix and, for unicast frames, prepares
// an acknowledgement into ackBuf. The MIC itself is verified by the
// MAC strategy after Filter accepts the frame; Filter only checks framing.
func (pf *PayloadFramer) Filter(buf []byte, ackBuf []byte) (int, error) {
	hdr, _, err := pf.Parse(buf)
	if err != nil {
		return 0, err
	}
	if !hdr.IsCommand && pf.subtype == framer.SubtypeNormal && !hdr.HasSeqNo {
		return 0, fmt.Errorf("potr: %w: data frame missing sequence number", framer.ErrFailed)
	}
	if len(ackBuf) == 0 {
		return 0, nil // broadcast: no ack
	}
	return lenExtendedFrameType + lenPhase, nil // phase is filled by the MAC strategy with the real value
}

// PrepareAcknowledgementParsing is a no-op for POTR: ack framing needs
// no per-transmission state beyond the subtype already set.
func (pf *PayloadFramer) PrepareAcknowledgementParsing() {}

// CreateAcknowledgement marshals an ack frame's header (phase +
// pending flag); MIC is appended by the caller via ccm.
func CreateAcknowledgement(buf []byte, phase uint16, pending bool) (int, error) {
	need := lenExtendedFrameType + lenPhase
	if len(buf) < need {
		return 0, fmt.Errorf("potr: ack buffer too small")
	}
	buf[0] = extendedFrameType
	if pending {
		buf[0] |= flagFramePending
	}
	binary.BigEndian.PutUint16(buf[1:3], phase)
	return need, nil
}

// ParseAcknowledgement parses a received acknowledgement's header
// (the caller has already verified and stripped the MIC).
func (pf *PayloadFramer) ParseAcknowledgement(buf []byte) (framer.Acknowledgement, error) {
	if len(buf) < lenExtendedFrameType+lenPhase {
		return framer.Acknowledgement{}, framer.ErrFailed
	}
	if buf[0]&0x3f != extendedFrameType {
		return framer.Acknowledgement{}, fmt.Errorf("potr: %w: bad ack frame type", framer.ErrFailed)
	}
	return framer.Acknowledgement{
		Pending:  buf[0]&flagFramePending != 0,
		CSLPhase: binary.BigEndian.Uint16(buf[1:3]),
	}, nil
}

// SealAcknowledgement appends the unicast MIC (computed over the ack
// header under key with the POTR ack nonce) to an already-created ack
// header, returning the full on-air acknowledgement.
func SealAcknowledgement(key [16]byte, srcAddr [8]byte, burstIndex uint8, wakeUpCounter uint32, hdr []byte) ([]byte, error) {
	a, err := ccm.New(key, UnicastMICLen)
	if err != nil {
		return nil, err
	}
	nonce := ccm.POTRNonce(srcAddr, ccm.AlphaAck, burstIndex, wakeUpCounter)
	sealed := a.Seal(nonce, hdr, nil)
	return append(append([]byte(nil), hdr...), sealed...), nil
}

// OpenAcknowledgement verifies and strips the MIC from a received
// acknowledgement, returning the header bytes.
func OpenAcknowledgement(key [16]byte, srcAddr [8]byte, burstIndex uint8, wakeUpCounter uint32, frame []byte) ([]byte, error) {
	if len(frame) < UnicastMICLen {
		return nil, framer.ErrFailed
	}
	hdrLen := len(frame) - UnicastMICLen
	hdr := frame[:hdrLen]
	a, err := ccm.New(key, UnicastMICLen)
	if err != nil {
		return nil, err
	}
	nonce := ccm.POTRNonce(srcAddr, ccm.AlphaAck, burstIndex, wakeUpCounter)
	if _, err := a.Open(nonce, hdr, frame[hdrLen:]); err != nil {
		return nil, fmt.Errorf("potr: %w: %v", framer.ErrFailed, err)
	}
	return hdr, nil
}
