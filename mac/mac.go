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

// Package mac defines the per-frame-class cryptographic and
// scheduling policy (§4.7) behind a stable entry-point set, and its
// two implementations: mac/noncoresec (the standards-compliant
// group-key strategy) and mac/csl (the POTR pairwise-key strategy with
// per-neighbor broadcast fan-out). The CSL scheduler calls through
// this interface and never branches on which strategy is active.
package mac

import (
	"errors"

	"github.com/csl-wsn/csl/ccm"
	"github.com/csl-wsn/csl/framer"
	"github.com/csl-wsn/csl/nbr"
)

// Outcome is the per-frame transmission result reported back to the
// frame's original caller (§4.8.4).
type Outcome int

// Outcome values.
const (
	TxOK Outcome = iota
	TxNoACK
	TxCollision
	TxErr
	TxErrFatal
	TxDeferred
)

func (o Outcome) String() string {
	switch o {
	case TxOK:
		return "MAC_TX_OK"
	case TxNoACK:
		return "MAC_TX_NOACK"
	case TxCollision:
		return "MAC_TX_COLLISION"
	case TxErr:
		return "MAC_TX_ERR"
	case TxErrFatal:
		return "MAC_TX_ERR_FATAL"
	case TxDeferred:
		return "MAC_TX_DEFERRED"
	default:
		return "MAC_TX_UNKNOWN"
	}
}

// ErrNoRoute is returned (or wrapped) by a Strategy's BeforeCreate,
// OnFrameCreated or Verify when a unicast frame's neighbor entry is
// missing or holds no usable key.
var ErrNoRoute = errors.New("mac: no neighbor table entry for destination")

// ErrCounterExhausted is wrapped by a Strategy's BeforeCreate when its
// outgoing frame counter has wrapped around; the scheduler treats this
// as fatal and signals Reboot rather than reuse a counter value a peer
// may have already seen.
var ErrCounterExhausted = errors.New("mac: outgoing frame counter exhausted, reboot required")

// FrameClass distinguishes the few frame classes a strategy secures
// differently: plain data/command traffic, UPDATE, and the three
// handshake message types. HELLO is sent unsecured (no key exists
// yet); HELLOACK and ACK are sealed like other unicasts, under the
// tentative pairwise key while the neighbor entry is tentative.
type FrameClass int

// Frame classes.
const (
	ClassData FrameClass = iota
	ClassHello
	ClassHelloAck
	ClassAck
	ClassUpdate
)

// SecuredFrame is what generate_nonce/verify operate on: the
// plaintext or ciphertext payload plus the associated data needed to
// build the right nonce for this frame class and direction.
type SecuredFrame struct {
	Class         FrameClass
	Neighbor      *nbr.Entry
	BurstIndex    uint8
	WakeUpCounter uint32 // POTR nonces only
	Broadcast     bool

	// FrameCounter is the counter value this frame carries: the
	// current outgoing value when creating a frame, or the
	// wire-parsed value when verifying a received one.
	FrameCounter uint32

	// Incoming distinguishes GenerateNonce/Verify calls for a received
	// frame (source address is Neighbor's) from OnFrameCreated calls
	// for one we're sending (source address is local).
	Incoming bool
}

// Strategy is the capability set §4.7 names. Implementations are
// mac/noncoresec.Strategy and mac/csl.Strategy.
type Strategy interface {
	// Init prepares any strategy-local state (e.g. the ongoing-
	// broadcast bitmap in the CSL strategy).
	Init()

	// GenerateNonce builds the 13-byte CCM* nonce for f.
	GenerateNonce(f SecuredFrame) [ccm.NonceLength]byte

	// GetOverhead returns the number of extra bytes (MIC, and for
	// broadcast fan-out, none) this strategy adds on top of the
	// framer's own header.
	GetOverhead(f SecuredFrame) int

	// BeforeCreate is called before the framer builds a frame's
	// header, giving the strategy a chance to select which key and
	// frame counter will protect it, and to veto with an error (e.g.
	// no permanent entry for a unicast destination).
	BeforeCreate(f SecuredFrame) error

	// OnFrameCreated seals plaintext (the piggyback fields and payload;
	// the framer's header stays outside it, in the clear) and returns
	// the secured bytes in a new slice. HELLO is returned unchanged.
	OnFrameCreated(f SecuredFrame, plaintext []byte) ([]byte, error)

	// Verify authenticates and decrypts a received secured frame,
	// returning the plaintext or an error (replay, bad MIC, unknown
	// sender).
	Verify(f SecuredFrame, secured []byte) ([]byte, error)

	// WritePiggyback appends the per-message-type piggyback fields
	// (§4.7's layout, compliant mode writes nothing for HELLO/ACK
	// variants it doesn't use) to buf for an outgoing handshake frame.
	WritePiggyback(class FrameClass, buf []byte, ctx PiggybackContext) (int, error)

	// ReadPiggyback parses the piggyback fields of a received
	// handshake frame.
	ReadPiggyback(class FrameClass, buf []byte) (PiggybackContext, int, error)

	// OnHelloAckSent lets the strategy record state needed once a
	// HELLOACK leaves the radio (e.g. the compliant strategy has
	// nothing to do; present for symmetry and future strategies).
	OnHelloAckSent(nbr *nbr.Entry)

	// OnFreshAuthenticHello/OnFreshAuthenticHelloAck notify the
	// strategy that akes has accepted a new, non-replayed HELLO or
	// HELLOACK, in case the strategy needs to (re)key bookkeeping
	// (e.g. resetting anti-replay counters on re-handshake).
	OnFreshAuthenticHello(nbr *nbr.Entry)
	OnFreshAuthenticHelloAck(nbr *nbr.Entry)

	// BroadcastTargets returns the neighbors a logical broadcast frame
	// must actually be transmitted to: a single nil-neighbor unicast
	// for compliant group-key broadcast, or one entry per permanent
	// neighbor for CSL per-neighbor fan-out.
	BroadcastTargets(table *nbr.Table) []*nbr.Entry

	// CreateWakeUpOTP derives the practical-on-the-fly-rejection OTP a
	// wake-up frame for f should carry, authenticating
	// payloadFramesLength under the receiver's pairwise key. Returns
	// nil for any strategy whose wire format has no OTP field
	// (compliant mode): framer.WakeUpFramer.CreateWakeUpFrame ignores a
	// nil otp outside the POTR ack/data/update subtypes.
	CreateWakeUpOTP(f SecuredFrame, payloadFramesLength uint8) ([]byte, error)

	// VerifyWakeUpOTP checks a received wake-up frame's OTP against n's
	// pairwise key before the duty-cycle protothread commits to
	// staying awake for the rendezvous (§4.5's "practical on-the-fly
	// rejection"). A strategy with no OTP field never has this called
	// (WakeUpFrame.HasOTP is always false for it).
	VerifyWakeUpOTP(n *nbr.Entry, wakeUpCounter uint32, payloadFramesLength uint8, otp []byte) (bool, error)
}

// PiggybackContext carries the handshake-specific fields §4.7's
// piggyback layout names: wake-up counters, CSL phase, and the
// 8-byte random challenge exchanged across HELLO/HELLOACK/ACK.
type PiggybackContext struct {
	SenderWakeUpCounter uint32
	HasSenderWakeUpCounter bool

	CSLPhase    uint16
	HasCSLPhase bool

	Challenge    [8]byte
	HasChallenge bool
}
