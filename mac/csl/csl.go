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

// Package csl implements the POTR MAC strategy: unicasts are secured
// under the destination's pairwise key, and a logical broadcast is
// fanned out as one unicast per permanent neighbor, tracked to
// completion by a 32-bit ongoing-broadcast bitmap (one bit per
// neighbor-table index, per nbr.MaxCapacity). Grounded on Contiki-NG's
// os/services/akes/akes-mac.c broadcast fan-out and
// os/net/mac/csl/csl.c's use of a pairwise key per unicast.
package csl

import (
	"fmt"

	"github.com/csl-wsn/csl/antireplay"
	"github.com/csl-wsn/csl/ccm"
	"github.com/csl-wsn/csl/framer/potr"
	"github.com/csl-wsn/csl/mac"
	"github.com/csl-wsn/csl/metrics"
	"github.com/csl-wsn/csl/nbr"
)

// MICLen is the tag length protecting every CSL-strategy frame.
const MICLen = potrMICLen

const potrMICLen = 8

// OngoingBroadcast tracks which permanent neighbors (by table index)
// still need a copy of the broadcast frame currently being fanned out.
type OngoingBroadcast struct {
	pending uint32 // bit i set => neighbor at index i still pending
	active  bool
}

// Begin starts tracking a new broadcast against every currently
// permanent neighbor in table.
func (b *OngoingBroadcast) Begin(table *nbr.Table) {
	b.pending = 0
	for e := table.Head(); e != nil; e = table.Next(e) {
		if e.Status == nbr.StatusPermanent {
			b.pending |= 1 << e.Index()
		}
	}
	b.active = b.pending != 0
}

// MarkDone clears the bit for index, returning true once every
// neighbor has received (or permanently failed) its copy.
func (b *OngoingBroadcast) MarkDone(index uint8) bool {
	b.pending &^= 1 << index
	if b.pending == 0 {
		b.active = false
		return true
	}
	return false
}

// Active reports whether a broadcast fan-out is still in progress.
func (b *OngoingBroadcast) Active() bool { return b.active }

// Strategy implements mac.Strategy for the CSL/POTR pairwise-key mode.
type Strategy struct {
	LocalAddr [8]byte
	Outgoing  *antireplay.OutgoingCounter

	Broadcast OngoingBroadcast
}

// New builds a CSL strategy bound to the local address.
func New(localAddr [8]byte) *Strategy {
	return &Strategy{LocalAddr: localAddr, Outgoing: &antireplay.OutgoingCounter{}}
}

// Init is a no-op: per-neighbor pairwise keys already live in the
// neighbor table, and the broadcast bitmap starts zeroed.
func (s *Strategy) Init() {}

// GenerateNonce builds the POTR nonce for f's class and direction.
func (s *Strategy) GenerateNonce(f mac.SecuredFrame) [ccm.NonceLength]byte {
	src := s.LocalAddr
	if f.Incoming && f.Neighbor != nil {
		src = f.Neighbor.Addr
	}
	return ccm.POTRNonce(src, alphaFor(f.Class), f.BurstIndex, f.WakeUpCounter)
}

func alphaFor(c mac.FrameClass) ccm.Alpha {
	switch c {
	case mac.ClassHello:
		return ccm.AlphaHello
	case mac.ClassAck:
		return ccm.AlphaAck
	default:
		return ccm.AlphaUnicast
	}
}

// GetOverhead returns the MIC length every CSL-strategy frame adds.
func (s *Strategy) GetOverhead(mac.SecuredFrame) int { return MICLen }

// keyFor returns the key a unicast command/data frame to or from e
// should use: the tentative pairwise key while the handshake is still
// in flight, the permanent one afterwards. Grounded on Contiki-NG's
// akes-noncoresec-strategy.c on_frame_created, which selects
// tentative_pairwise_key for a tentative receiver and the steady-state
// key otherwise.
func keyFor(e *nbr.Entry) ([16]byte, bool) {
	if e == nil {
		return [16]byte{}, false
	}
	if e.Status == nbr.StatusTentative {
		return e.Tentative.TentativePairwiseKey, e.Tentative.HasKey
	}
	return e.Permanent.PairwiseKey, e.Permanent.HasPairwiseKey
}

// BeforeCreate requires a neighbor with a key (tentative or permanent)
// for any unicast frame; HELLO, carrying no security at all while it
// bootstraps a relationship with no key yet, and broadcast frames are
// let through. It does not touch the ongoing-broadcast fan-out record.
func (s *Strategy) BeforeCreate(f mac.SecuredFrame) error {
	if f.Class == mac.ClassHello || f.Broadcast {
		return nil
	}
	if _, ok := keyFor(f.Neighbor); !ok {
		return mac.ErrNoRoute
	}
	return nil
}

// OnFrameCreated seals plaintext under the destination's key (unicast)
// — the CSL strategy never calls this for a logical broadcast
// directly; BroadcastTargets expands it into per-neighbor unicasts
// first, each sealed under that neighbor's own key. HELLO is sent in
// the clear: no peer key can exist yet.
func (s *Strategy) OnFrameCreated(f mac.SecuredFrame, plaintext []byte) ([]byte, error) {
	if f.Class == mac.ClassHello {
		return plaintext, nil
	}
	key, ok := keyFor(f.Neighbor)
	if !ok {
		return nil, mac.ErrNoRoute
	}
	a, err := ccm.New(key, MICLen)
	if err != nil {
		return nil, err
	}
	nonce := ccm.POTRNonce(s.LocalAddr, alphaFor(f.Class), f.BurstIndex, f.WakeUpCounter)
	return a.Seal(nonce, nil, plaintext), nil
}

// Verify authenticates a received frame under the sender's key, after
// an anti-replay check on the implicit wake-up-counter-derived
// sequence captured in f.FrameCounter. HELLO carries no security and
// is returned unchanged; the incoming-HELLO leaky bucket is the only
// protection against a flood.
func (s *Strategy) Verify(f mac.SecuredFrame, secured []byte) ([]byte, error) {
	if f.Class == mac.ClassHello {
		return secured, nil
	}
	key, ok := keyFor(f.Neighbor)
	if !ok {
		metrics.FramesRejected.WithLabelValues("unknown_sender").Inc()
		return nil, fmt.Errorf("csl: %w", mac.ErrNoRoute)
	}
	kind := antireplay.KindUnicast
	if f.Neighbor.Replay.WasReplayed(kind, f.FrameCounter) {
		metrics.ReplayedFrames.WithLabelValues("unicast").Inc()
		metrics.FramesRejected.WithLabelValues("replay").Inc()
		return nil, fmt.Errorf("csl: replayed frame from %x", f.Neighbor.Addr)
	}
	a, err := ccm.New(key, MICLen)
	if err != nil {
		return nil, err
	}
	nonce := ccm.POTRNonce(f.Neighbor.Addr, alphaFor(f.Class), f.BurstIndex, f.WakeUpCounter)
	pt, err := a.Open(nonce, nil, secured)
	if err != nil {
		metrics.FramesRejected.WithLabelValues("mic").Inc()
		return nil, fmt.Errorf("csl: %w", err)
	}
	f.Neighbor.Replay.Accept(kind, f.FrameCounter)
	return pt, nil
}

// WritePiggyback writes the §4.7 POTR layout for class.
func (s *Strategy) WritePiggyback(class mac.FrameClass, buf []byte, ctx mac.PiggybackContext) (int, error) {
	switch class {
	case mac.ClassHello:
		if len(buf) < 4 {
			return 0, fmt.Errorf("csl: piggyback buffer too small")
		}
		putU32(buf, ctx.SenderWakeUpCounter)
		return 4, nil
	case mac.ClassHelloAck:
		if len(buf) < 14 {
			return 0, fmt.Errorf("csl: piggyback buffer too small")
		}
		putU16(buf, ctx.CSLPhase)
		putU32(buf[2:], ctx.SenderWakeUpCounter)
		copy(buf[6:14], ctx.Challenge[:])
		return 14, nil
	case mac.ClassAck:
		if len(buf) < 10 {
			return 0, fmt.Errorf("csl: piggyback buffer too small")
		}
		putU16(buf, ctx.CSLPhase)
		copy(buf[2:10], ctx.Challenge[:])
		return 10, nil
	default:
		return 0, nil
	}
}

// ReadPiggyback mirrors WritePiggyback.
func (s *Strategy) ReadPiggyback(class mac.FrameClass, buf []byte) (mac.PiggybackContext, int, error) {
	var ctx mac.PiggybackContext
	switch class {
	case mac.ClassHello:
		if len(buf) < 4 {
			return ctx, 0, mac.ErrNoRoute
		}
		ctx.SenderWakeUpCounter = getU32(buf)
		ctx.HasSenderWakeUpCounter = true
		return ctx, 4, nil
	case mac.ClassHelloAck:
		if len(buf) < 14 {
			return ctx, 0, mac.ErrNoRoute
		}
		ctx.CSLPhase = getU16(buf)
		ctx.HasCSLPhase = true
		ctx.SenderWakeUpCounter = getU32(buf[2:])
		ctx.HasSenderWakeUpCounter = true
		copy(ctx.Challenge[:], buf[6:14])
		ctx.HasChallenge = true
		return ctx, 14, nil
	case mac.ClassAck:
		if len(buf) < 10 {
			return ctx, 0, mac.ErrNoRoute
		}
		ctx.CSLPhase = getU16(buf)
		ctx.HasCSLPhase = true
		copy(ctx.Challenge[:], buf[2:10])
		ctx.HasChallenge = true
		return ctx, 10, nil
	default:
		return ctx, 0, nil
	}
}

// OnHelloAckSent is a no-op: pairwise-key derivation happens in akes,
// not here.
func (s *Strategy) OnHelloAckSent(*nbr.Entry) {}

// OnFreshAuthenticHello resets the sender's anti-replay state.
func (s *Strategy) OnFreshAuthenticHello(n *nbr.Entry) {
	if n != nil {
		n.Replay.Reset()
	}
}

// OnFreshAuthenticHelloAck mirrors OnFreshAuthenticHello.
func (s *Strategy) OnFreshAuthenticHelloAck(n *nbr.Entry) {
	if n != nil {
		n.Replay.Reset()
	}
}

// CreateWakeUpOTP derives the OTP a wake-up frame for f should carry.
// HELLO/HELLOACK wake-up frames never carry one (hasOTPEtc in the POTR
// framer is false for them), so those and broadcasts return nil, nil
// without touching the neighbor table.
func (s *Strategy) CreateWakeUpOTP(f mac.SecuredFrame, payloadFramesLength uint8) ([]byte, error) {
	if f.Class == mac.ClassHello || f.Class == mac.ClassHelloAck || f.Broadcast || f.Neighbor == nil {
		return nil, nil
	}
	key, ok := keyFor(f.Neighbor)
	if !ok {
		return nil, mac.ErrNoRoute
	}
	return potr.WakeUpOTP(key, s.LocalAddr, f.WakeUpCounter, payloadFramesLength)
}

// VerifyWakeUpOTP recomputes n's OTP under its pairwise key and
// compares it against the one the wake-up frame carried, the
// "practical on-the-fly rejection" check that must pass before the
// duty-cycle protothread commits to staying awake.
func (s *Strategy) VerifyWakeUpOTP(n *nbr.Entry, wakeUpCounter uint32, payloadFramesLength uint8, otp []byte) (bool, error) {
	key, ok := keyFor(n)
	if !ok {
		return false, nil
	}
	return potr.VerifyOTP(key, n.Addr, wakeUpCounter, payloadFramesLength, otp)
}

// BroadcastTargets expands a logical broadcast into one unicast per
// permanent neighbor and starts a fresh ongoing-broadcast record to
// track their completion.
func (s *Strategy) BroadcastTargets(table *nbr.Table) []*nbr.Entry {
	s.Broadcast.Begin(table)
	var targets []*nbr.Entry
	for e := table.Head(); e != nil; e = table.Next(e) {
		if e.Status == nbr.StatusPermanent {
			targets = append(targets, e)
		}
	}
	return targets
}

func putU16(b []byte, v uint16) { b[0] = byte(v >> 8); b[1] = byte(v) }
func getU16(b []byte) uint16    { return uint16(b[0])<<8 | uint16(b[1]) }
func putU32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
func getU32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
