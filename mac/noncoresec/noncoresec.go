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

// Package noncoresec implements the standards-compliant MAC strategy:
// both broadcast and unicast frames are secured under the
// destination's (or, for broadcast, the network-wide) group key, with
// duplicate rejection by frame counter via antireplay. Named after
// Contiki-NG's non-core security driver, noncoresec.c, which this
// strategy's frame-counter/group-key policy is grounded on.
package noncoresec

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/csl-wsn/csl/antireplay"
	"github.com/csl-wsn/csl/ccm"
	"github.com/csl-wsn/csl/mac"
	"github.com/csl-wsn/csl/metrics"
	"github.com/csl-wsn/csl/nbr"
)

// MICLen is the tag length protecting every noncoresec frame.
const MICLen = 8

func replayKindLabel(kind antireplay.Kind) string {
	if kind == antireplay.KindBroadcast {
		return "broadcast"
	}
	return "unicast"
}

// Strategy implements mac.Strategy for the compliant, group-key mode.
type Strategy struct {
	LocalAddr [8]byte
	GroupKey  [16]byte
	Outgoing  *antireplay.OutgoingCounter
}

// New builds a noncoresec strategy bound to the local address and
// network-wide group key.
func New(localAddr [8]byte, groupKey [16]byte) *Strategy {
	return &Strategy{LocalAddr: localAddr, GroupKey: groupKey, Outgoing: &antireplay.OutgoingCounter{}}
}

// Init is a no-op: group-key mode carries no per-strategy state beyond
// the outgoing counter, already allocated by New.
func (s *Strategy) Init() {}

// GenerateNonce builds the compliant payload nonce: srcAddr || frame
// counter || security level. When creating a frame, f.FrameCounter is
// the local outgoing counter's current value; when verifying one, it
// is the wire-parsed counter the sender claims, and the source
// address is the sender's, not ours.
func (s *Strategy) GenerateNonce(f mac.SecuredFrame) [ccm.NonceLength]byte {
	src := s.LocalAddr
	if f.Incoming && f.Neighbor != nil {
		src = f.Neighbor.Addr
	}
	return ccm.CompliantPayloadNonce(src, f.FrameCounter, 5)
}

// GetOverhead returns the MIC length; noncoresec adds no other bytes
// beyond what the compliant framer itself already accounts for.
func (s *Strategy) GetOverhead(mac.SecuredFrame) int { return MICLen }

// keyFor returns the key a unicast command/data frame to or from e
// should use: the tentative pairwise key while the handshake is still
// in flight, the steady-state group key otherwise. Grounded on
// Contiki-NG's akes-noncoresec-strategy.c on_frame_created.
func keyFor(e *nbr.Entry, groupKey [16]byte) [16]byte {
	if e != nil && e.Status == nbr.StatusTentative && e.Tentative.HasKey {
		return e.Tentative.TentativePairwiseKey
	}
	return groupKey
}

// BeforeCreate advances the outgoing frame counter for this
// transmission. It does not modify f (passed by value); the caller
// reads the new value via CurrentOutgoingCounter and sets
// f.FrameCounter before GenerateNonce/OnFrameCreated. A wrapped counter (SetCounter returning 0) is
// fatal: the caller must reboot rather than reuse a counter value.
// HELLO is the sole exception, carrying no security and consuming no
// counter value.
func (s *Strategy) BeforeCreate(f mac.SecuredFrame) error {
	if f.Class == mac.ClassHello {
		return nil
	}
	if f.Class == mac.ClassData && !f.Broadcast && f.Neighbor == nil {
		return mac.ErrNoRoute
	}
	next := s.Outgoing.SetCounter()
	if next == 0 {
		return fmt.Errorf("noncoresec: %w", mac.ErrCounterExhausted)
	}
	return nil
}

// CurrentOutgoingCounter exposes the value BeforeCreate just advanced
// to, so the caller can populate SecuredFrame.FrameCounter before
// calling GenerateNonce/OnFrameCreated.
func (s *Strategy) CurrentOutgoingCounter() uint32 { return s.Outgoing.Value() }

// OnFrameCreated seals plaintext under the destination's key (the
// tentative pairwise key for HELLOACK/ACK, the group key otherwise)
// with f's frame counter (the value BeforeCreate produced). HELLO
// carries no security and is returned unchanged.
func (s *Strategy) OnFrameCreated(f mac.SecuredFrame, plaintext []byte) ([]byte, error) {
	if f.Class == mac.ClassHello {
		return plaintext, nil
	}
	a, err := ccm.New(keyFor(f.Neighbor, s.GroupKey), MICLen)
	if err != nil {
		return nil, err
	}
	nonce := ccm.CompliantPayloadNonce(s.LocalAddr, f.FrameCounter, 5)
	return a.Seal(nonce, nil, plaintext), nil
}

// Verify checks the frame counter against the sender's anti-replay
// state before accepting the MIC, per §4.2/§4.7: a stale counter is
// rejected without ever touching AES, to keep replay rejection cheap
// on the fast path. HELLO carries no security and is returned
// unchanged; the incoming-HELLO leaky bucket is its only protection.
func (s *Strategy) Verify(f mac.SecuredFrame, secured []byte) ([]byte, error) {
	if f.Class == mac.ClassHello {
		return secured, nil
	}
	if f.Neighbor == nil {
		metrics.FramesRejected.WithLabelValues("unknown_sender").Inc()
		return nil, fmt.Errorf("noncoresec: %w", mac.ErrNoRoute)
	}
	kind := antireplay.KindUnicast
	if f.Broadcast {
		kind = antireplay.KindBroadcast
	}
	if f.Neighbor.Replay.WasReplayed(kind, f.FrameCounter) {
		metrics.ReplayedFrames.WithLabelValues(replayKindLabel(kind)).Inc()
		metrics.FramesRejected.WithLabelValues("replay").Inc()
		return nil, fmt.Errorf("noncoresec: replayed frame from %x", f.Neighbor.Addr)
	}

	a, err := ccm.New(keyFor(f.Neighbor, s.GroupKey), MICLen)
	if err != nil {
		return nil, err
	}
	nonce := ccm.CompliantPayloadNonce(f.Neighbor.Addr, f.FrameCounter, 5)
	pt, err := a.Open(nonce, nil, secured)
	if err != nil {
		metrics.FramesRejected.WithLabelValues("mic").Inc()
		return nil, fmt.Errorf("noncoresec: %w", err)
	}
	f.Neighbor.Replay.Accept(kind, f.FrameCounter)
	return pt, nil
}

// WritePiggyback writes nothing: the compliant strategy carries no
// wake-up-counter or CSL-phase piggyback, since it doesn't run CSL's
// POTR timing optimizations.
func (s *Strategy) WritePiggyback(class mac.FrameClass, buf []byte, ctx mac.PiggybackContext) (int, error) {
	return 0, nil
}

// ReadPiggyback mirrors WritePiggyback: there is nothing to read.
func (s *Strategy) ReadPiggyback(class mac.FrameClass, buf []byte) (mac.PiggybackContext, int, error) {
	return mac.PiggybackContext{}, 0, nil
}

// OnHelloAckSent is a no-op for the compliant strategy.
func (s *Strategy) OnHelloAckSent(*nbr.Entry) {}

// OnFreshAuthenticHello resets the sender's anti-replay counters: a
// fresh, accepted HELLO means the sender either rebooted or is
// re-keying, and stale counter expectations must be discarded.
func (s *Strategy) OnFreshAuthenticHello(n *nbr.Entry) {
	if n != nil {
		n.Replay.Reset()
		log.WithField("addr", n.Addr).Debug("noncoresec: reset replay counters after fresh HELLO")
	}
}

// OnFreshAuthenticHelloAck mirrors OnFreshAuthenticHello for HELLOACK.
func (s *Strategy) OnFreshAuthenticHelloAck(n *nbr.Entry) {
	if n != nil {
		n.Replay.Reset()
	}
}

// RekeyGroup replaces the network-wide group key used to secure
// broadcast frames and every unicast frame except those to a tentative
// neighbor that holds a tentative pairwise key. Callers are responsible for distributing newKey to peers
// out of band before or alongside the switch; noncoresec itself keeps
// no key history, so any frame still in flight under the old key at
// the moment of a call will fail to verify at its destination.
func (s *Strategy) RekeyGroup(newKey [16]byte) {
	s.GroupKey = newKey
}

// BroadcastTargets returns a single nil-neighbor "target", signalling
// a true link-layer broadcast secured once under the group key,
// rather than the CSL strategy's per-neighbor fan-out.
func (s *Strategy) BroadcastTargets(table *nbr.Table) []*nbr.Entry {
	return []*nbr.Entry{nil}
}

// CreateWakeUpOTP always returns nil: the compliant wake-up frame
// carries no OTP field at all (its integrity comes from the framer's
// own CRC-16), so there is nothing to derive.
func (s *Strategy) CreateWakeUpOTP(mac.SecuredFrame, uint8) ([]byte, error) {
	return nil, nil
}

// VerifyWakeUpOTP always reports true: compliant wake-up frames never
// set WakeUpFrame.HasOTP, so the duty-cycle protothread never actually
// calls this for compliant mode, but a fixed pass keeps the method
// safe to call unconditionally.
func (s *Strategy) VerifyWakeUpOTP(*nbr.Entry, uint32, uint8, []byte) (bool, error) {
	return true, nil
}

