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

// Package framer defines the capability interface implemented by the
// two wire-format variants (framer/compliant, framer/potr): marshaling
// and parsing of wake-up, payload, and acknowledgement frames. The
// choice between variants is made once, at construction time, in
// csl.New — never dispatched per-frame.
package framer

import "errors"

// ErrFailed is the sentinel "FRAMER_FAILED" outcome from §4.5/§7: any
// step of filtering or parsing can fail this way, and the caller's
// response is always the same — turn the radio off and drop the frame.
var ErrFailed = errors.New("framer: failed")

// Subtype distinguishes the four wake-up/payload frame roles.
type Subtype uint8

// Subtype values, in the order named by §4.9's state machine.
const (
	SubtypeHello Subtype = iota
	SubtypeHelloAck
	SubtypeAck
	SubtypeNormal
)

func (s Subtype) String() string {
	switch s {
	case SubtypeHello:
		return "HELLO"
	case SubtypeHelloAck:
		return "HELLOACK"
	case SubtypeAck:
		return "ACK"
	case SubtypeNormal:
		return "NORMAL"
	default:
		return "UNKNOWN"
	}
}

// WakeUpFrame is the result of successfully parsing one wake-up frame.
type WakeUpFrame struct {
	Subtype               Subtype
	RendezvousTime        uint32 // ticks until rendezvous, width depends on subtype
	RemainingWakeUpFrames uint32
	SourceIndex           uint8
	HasSourceIndex        bool
	PayloadFramesLength   uint8

	// OTP is the practical-on-the-fly-rejection one-time password
	// carried by POTR ack/data/update wake-up frames (§4.5); HasOTP is
	// false for HELLO/HELLOACK and always false in compliant mode,
	// which has no OTP field at all.
	OTP    []byte
	HasOTP bool
}

// Acknowledgement is the result of successfully parsing an ack frame.
type Acknowledgement struct {
	CSLPhase uint16
	Pending  bool
}

// WakeUpFramer is the capability set used by the duty-cycle and
// transmit protothreads to build and consume wake-up frames (§4.5).
// Implementations are not required to be safe for concurrent use; the
// scheduler serializes access to a single instance per CSL state.
type WakeUpFramer interface {
	// MinHeaderBytesForFiltering is how many bytes of a payload frame
	// must be buffered before Filter can be called.
	MinHeaderBytesForFiltering() int

	// WakeUpFrameLength returns the on-air length of a wake-up frame
	// of the given subtype.
	WakeUpFrameLength(subtype Subtype) int

	// CreateWakeUpFrame writes one wake-up frame into buf (which must
	// be at least WakeUpFrameLength(subtype) bytes) for transmission
	// to receiver, returning the number of bytes written.
	CreateWakeUpFrame(buf []byte, subtype Subtype, channel uint8, receiverForeignIndex uint8, payloadFramesLength uint8, otp []byte) (int, error)

	// UpdateRendezvousTime patches the rendezvous-time field (and, in
	// compliant mode, the trailing checksum) of an already-created
	// wake-up frame in buf to reflect remaining wake-up frames still
	// to be sent after this one leaves the radio.
	UpdateRendezvousTime(buf []byte, subtype Subtype, remaining uint32)

	// ParseWakeUpFrame parses a received wake-up frame.
	ParseWakeUpFrame(buf []byte) (WakeUpFrame, error)
}

// PayloadFramer is the outer {length, create, parse} trio plus
// filtering, used by the decorated MAC for ordinary payload frames.
type PayloadFramer interface {
	// Length returns the worst-case header length this framer adds,
	// used by mac_driver.max_payload to compute the usable MTU.
	Length() int

	// Create marshals the header into buf, returning bytes written.
	// The payload argument is not written to buf; the MAC strategy
	// seals the payload and the caller appends it after the header.
	Create(buf []byte, hdr PayloadHeader, payload []byte) (int, error)

	// Parse parses a received payload frame's non-encrypted header
	// prefix (the first MinHeaderBytesForFiltering bytes), enough to
	// support Filter.
	Parse(buf []byte) (PayloadHeader, int, error)

	// Filter validates a payload frame once MinHeaderBytesForFiltering
	// bytes are available, and if the frame is unicast, prepares an
	// acknowledgement into ackBuf. Returns the number of ack bytes
	// written (0 for broadcast) or ErrFailed.
	Filter(buf []byte, ackBuf []byte) (ackLen int, err error)

	// PrepareAcknowledgementParsing configures the framer to expect
	// an acknowledgement for the frame just transmitted.
	PrepareAcknowledgementParsing()

	// ParseAcknowledgement parses a received acknowledgement frame.
	ParseAcknowledgement(buf []byte) (Acknowledgement, error)
}

// PayloadHeader is the parsed non-confidential header fields of a
// payload frame (POTR: type/flags byte, optional source address,
// optional sequence number, optional pending-length; compliant: the
// IEEE 802.15.4 header fields relevant to CSL).
type PayloadHeader struct {
	Subtype          Subtype
	IsCommand        bool
	FramePending     bool
	HasSourceAddress bool
	SourceAddress    [8]byte
	HasSeqNo         bool
	SeqNo            uint8
	PendingFramesLen uint8
}
