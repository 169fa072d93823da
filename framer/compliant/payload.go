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
	"encoding/binary"
	"fmt"

	"github.com/csl-wsn/csl/ccm"
	"github.com/csl-wsn/csl/framer"
)

// AuxSecurityHeaderLen is the frame-counter(4) + security-level(1)
// auxiliary header appended to every secured compliant data/command
// frame in lieu of a standard 802.15.4 security header's key
// identifier (the group key is implicit from the sender's neighbor
// entry, so no key-id field is carried).
const AuxSecurityHeaderLen = 5

// UnicastMICLen is the MIC length protecting compliant payload/ack frames.
const UnicastMICLen = 8

const (
	frameTypeData    = 0x01
	frameTypeCommand = 0x03
	seqSuppressed    = 1 << 3 // bit in the 1-byte compliant frame-control byte
)

// PayloadFramer implements framer.PayloadFramer for compliant frames.
type PayloadFramer struct{}

// NewPayloadFramer builds a compliant payload framer.
func NewPayloadFramer() *PayloadFramer { return &PayloadFramer{} }

// Length returns the worst-case header length: 1-byte frame control +
// 8-byte extended source address + auxiliary security header.
func (pf *PayloadFramer) Length() int { return 1 + 8 + AuxSecurityHeaderLen }

// Create marshals a compliant payload-frame header: a 1-byte frame
// control (type + sequence-number-suppression bit), the sender's
// extended source address (real 802.15.4 MHRs always carry
// addressing; CSL's wake-up frame omits it only because it precedes
// key establishment), followed by the auxiliary security header
// (frame counter, security level).
func (pf *PayloadFramer) Create(buf []byte, hdr framer.PayloadHeader, _ []byte) (int, error) {
	if len(buf) < pf.Length() {
		return 0, fmt.Errorf("compliant: payload header buffer too small")
	}
	fc := byte(frameTypeData) | seqSuppressed
	if hdr.IsCommand {
		fc = byte(frameTypeCommand) | seqSuppressed
	}
	buf[0] = fc
	copy(buf[1:9], hdr.SourceAddress[:])
	binary.BigEndian.PutUint32(buf[9:13], uint32(hdr.SeqNo)<<24|uint32(hdr.PendingFramesLen)<<16)
	buf[13] = 5 // security level placeholder; real value written by the MAC strategy
	return pf.Length(), nil
}

// Parse parses a compliant payload-frame header prefix.
func (pf *PayloadFramer) Parse(buf []byte) (framer.PayloadHeader, int, error) {
	if len(buf) < pf.Length() {
		return framer.PayloadHeader{}, 0, framer.ErrFailed
	}
	fc := buf[0]
	if fc&seqSuppressed == 0 {
		return framer.PayloadHeader{}, 0, fmt.Errorf("compliant: %w: sequence number not suppressed", framer.ErrFailed)
	}
	hdr := framer.PayloadHeader{
		IsCommand:        fc&0x07 == frameTypeCommand,
		HasSourceAddress: true,
	}
	copy(hdr.SourceAddress[:], buf[1:9])
	return hdr, pf.Length(), nil
}

// Filter validates framing and, for unicast frames, reserves space for
// an acknowledgement; the MIC itself is checked by the MAC strategy.
func (pf *PayloadFramer) Filter(buf []byte, ackBuf []byte) (int, error) {
	if _, _, err := pf.Parse(buf); err != nil {
		return 0, err
	}
	if len(ackBuf) == 0 {
		return 0, nil
	}
	return AckHeaderLen, nil
}

// PrepareAcknowledgementParsing is a no-op: compliant acks carry no
// per-transmission framer state beyond the CSL phase.
func (pf *PayloadFramer) PrepareAcknowledgementParsing() {}

// AckHeaderLen is the unencrypted portion of a compliant ack: 2-byte
// CSL phase + 1-byte pending indicator.
const AckHeaderLen = 3

// CreateAcknowledgement marshals a compliant ack header.
func CreateAcknowledgement(buf []byte, phase uint16, pending bool) (int, error) {
	if len(buf) < AckHeaderLen {
		return 0, fmt.Errorf("compliant: ack buffer too small")
	}
	binary.BigEndian.PutUint16(buf[0:2], phase)
	if pending {
		buf[2] = 1
	} else {
		buf[2] = 0
	}
	return AckHeaderLen, nil
}

// ParseAcknowledgement parses a received (already MIC-verified) ack header.
func (pf *PayloadFramer) ParseAcknowledgement(buf []byte) (framer.Acknowledgement, error) {
	if len(buf) < AckHeaderLen {
		return framer.Acknowledgement{}, framer.ErrFailed
	}
	return framer.Acknowledgement{
		CSLPhase: binary.BigEndian.Uint16(buf[0:2]),
		Pending:  buf[2] != 0,
	}, nil
}

// SealAcknowledgement appends the MIC over the ack header, computed
// under the group key with the standards-compliant ack nonce.
func SealAcknowledgement(groupKey [16]byte, srcAddr [8]byte, frameCounter uint32, hdr []byte) ([]byte, error) {
	a, err := ccm.New(groupKey, UnicastMICLen)
	if err != nil {
		return nil, err
	}
	nonce := ccm.CompliantPayloadNonce(srcAddr, frameCounter, 5)
	sealed := a.Seal(nonce, hdr, nil)
	return append(append([]byte(nil), hdr...), sealed...), nil
}

// OpenAcknowledgement verifies and strips the MIC from a received ack.
func OpenAcknowledgement(groupKey [16]byte, srcAddr [8]byte, frameCounter uint32, frame []byte) ([]byte, error) {
	if len(frame) < UnicastMICLen {
		return nil, framer.ErrFailed
	}
	hdrLen := len(frame) - UnicastMICLen
	hdr := frame[:hdrLen]
	a, err := ccm.New(groupKey, UnicastMICLen)
	if err != nil {
		return nil, err
	}
	nonce := ccm.CompliantPayloadNonce(srcAddr, frameCounter, 5)
	if _, err := a.Open(nonce, hdr, frame[hdrLen:]); err != nil {
		return nil, fmt.Errorf("compliant: %w: %v", framer.ErrFailed, err)
	}
	return hdr, nil
}
