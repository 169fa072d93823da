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

// Package akes implements the Adaptive Key Establishment Scheme
// (§4.9): the HELLO/HELLOACK/ACK handshake that bootstraps a pairwise
// key between two neighbors from a long-term shared secret, the
// leaky-bucket rate limiters guarding it against flooding, trickle
// suppression of redundant HELLO broadcasts, and the periodic
// freshness/deletion sweep over permanent neighbors. Grounded on
// Contiki-NG's os/services/akes/akes.c state machine.
package akes

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/csl-wsn/csl/ccm"
	"github.com/csl-wsn/csl/csl"
	"github.com/csl-wsn/csl/mac"
	"github.com/csl-wsn/csl/metrics"
	"github.com/csl-wsn/csl/nbr"
)

// Default rate-limiting and housekeeping parameters (§4.9, §6).
const (
	DefaultHelloOutInterval     = 5 * time.Minute
	DefaultHelloOutCapacity     = 10
	DefaultHelloInInterval      = 15 * time.Second
	DefaultHelloInCapacity      = 20
	DefaultHelloAckOutInterval  = 150 * time.Second
	DefaultHelloAckOutCapacity  = 20
	DefaultHelloAckInInterval   = 8 * time.Second
	DefaultHelloAckInCapacity   = 20

	DefaultTrickleImin          = 16 * time.Second
	DefaultTrickleImaxDoublings = 6

	DefaultUpdateCheckInterval = time.Second
	DefaultUpdateCheckJitter   = 500 * time.Millisecond
	DefaultNbrLifetime         = 300 * time.Second

	DefaultMaxWaitingPeriod        = 2 * time.Second
	DefaultMaxRetransmissionBackOff = time.Second
)

// SharedSecretFunc resolves the long-term shared secret for addr, as
// provisioned by the external key-management scheme; ok is false for
// an address with no provisioned secret, in which case the handshake
// is refused.
type SharedSecretFunc func(addr nbr.Addr) (secret [16]byte, ok bool)

// Config bundles Handler's construction-time parameters.
type Config struct {
	LocalAddr    [8]byte
	SharedSecret SharedSecretFunc

	HelloOutInterval, HelloAckOutInterval, HelloInInterval, HelloAckInInterval time.Duration
	HelloOutCapacity, HelloAckOutCapacity, HelloInCapacity, HelloAckInCapacity int

	TrickleImin          time.Duration
	TrickleImaxDoublings int

	UpdateCheckInterval time.Duration
	UpdateCheckJitter   time.Duration
	NbrLifetime         time.Duration

	MaxWaitingPeriod         time.Duration
	MaxRetransmissionBackOff time.Duration
}

// withDefaults fills any zero-valued field with its §6 default.
func (c Config) withDefaults() Config {
	if c.HelloOutInterval == 0 {
		c.HelloOutInterval = DefaultHelloOutInterval
	}
	if c.HelloOutCapacity == 0 {
		c.HelloOutCapacity = DefaultHelloOutCapacity
	}
	if c.HelloInInterval == 0 {
		c.HelloInInterval = DefaultHelloInInterval
	}
	if c.HelloInCapacity == 0 {
		c.HelloInCapacity = DefaultHelloInCapacity
	}
	if c.HelloAckOutInterval == 0 {
		c.HelloAckOutInterval = DefaultHelloAckOutInterval
	}
	if c.HelloAckOutCapacity == 0 {
		c.HelloAckOutCapacity = DefaultHelloAckOutCapacity
	}
	if c.HelloAckInInterval == 0 {
		c.HelloAckInInterval = DefaultHelloAckInInterval
	}
	if c.HelloAckInCapacity == 0 {
		c.HelloAckInCapacity = DefaultHelloAckInCapacity
	}
	if c.TrickleImin == 0 {
		c.TrickleImin = DefaultTrickleImin
	}
	if c.TrickleImaxDoublings == 0 {
		c.TrickleImaxDoublings = DefaultTrickleImaxDoublings
	}
	if c.UpdateCheckInterval == 0 {
		c.UpdateCheckInterval = DefaultUpdateCheckInterval
	}
	if c.UpdateCheckJitter == 0 {
		c.UpdateCheckJitter = DefaultUpdateCheckJitter
	}
	if c.NbrLifetime == 0 {
		c.NbrLifetime = DefaultNbrLifetime
	}
	if c.MaxWaitingPeriod == 0 {
		c.MaxWaitingPeriod = DefaultMaxWaitingPeriod
	}
	if c.MaxRetransmissionBackOff == 0 {
		c.MaxRetransmissionBackOff = DefaultMaxRetransmissionBackOff
	}
	return c
}

// Handler drives the handshake state machine: it enqueues HELLO,
// HELLOACK and ACK frames through the scheduler's queue and is wired
// as the scheduler's HandshakeDeliver callback to receive them.
type Handler struct {
	cfg       Config
	table     *nbr.Table
	scheduler *csl.Scheduler
	strategy  mac.Strategy

	helloOut, helloIn, helloAckOut, helloAckIn *leakyBucket
	trickle                                    *trickleTimer

	// ownHelloChallenge is the challenge this node is currently
	// advertising in its own broadcast HELLO, valid until the next one
	// is sent; any HELLOACK echoing it is accepted as answering our
	// current round, regardless of which neighbor sent it.
	ownHelloChallenge [ChallengeLen]byte
}

// New builds a Handler bound to table and scheduler, and wires itself
// as the scheduler's HandshakeDeliver callback. now seeds the leaky
// buckets' initial refill instant.
func New(cfg Config, table *nbr.Table, scheduler *csl.Scheduler, strategy mac.Strategy, now time.Time) *Handler {
	cfg = cfg.withDefaults()
	h := &Handler{
		cfg:          cfg,
		table:        table,
		scheduler:    scheduler,
		strategy:     strategy,
		helloOut:     newLeakyBucket(cfg.HelloOutCapacity, cfg.HelloOutInterval, now),
		helloIn:      newLeakyBucket(cfg.HelloInCapacity, cfg.HelloInInterval, now),
		helloAckOut:  newLeakyBucket(cfg.HelloAckOutCapacity, cfg.HelloAckOutInterval, now),
		helloAckIn:   newLeakyBucket(cfg.HelloAckInCapacity, cfg.HelloAckInInterval, now),
		trickle:      newTrickleTimer(cfg.TrickleImin, cfg.TrickleImaxDoublings),
	}
	scheduler.HandshakeDeliver = h.onHandshakeFrame
	return h
}

// Run drives the periodic HELLO broadcast (trickle-suppressed) and the
// neighbor freshness/deletion sweep until ctx is cancelled.
func (h *Handler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.helloLoop(ctx) })
	g.Go(func() error { return h.updateLoop(ctx) })
	return g.Wait()
}

func (h *Handler) helloLoop(ctx context.Context) error {
	timer := time.NewTimer(h.trickle.Reset())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			h.sendHello()
			timer.Reset(h.trickle.Next())
		}
	}
}

// sendHello broadcasts a fresh HELLO challenge, subject to the
// outgoing-HELLO leaky bucket.
func (h *Handler) sendHello() {
	now := time.Now()
	if !h.helloOut.TryTake(now) {
		log.Debug("akes: outgoing HELLO suppressed by rate limit")
		return
	}
	challenge, err := randomChallenge()
	if err != nil {
		log.WithError(err).Error("akes: failed to generate HELLO challenge")
		return
	}
	h.ownHelloChallenge = challenge

	piggyback := mac.PiggybackContext{}
	if h.scheduler != nil {
		piggyback.SenderWakeUpCounter = h.scheduler.LocalWakeUpCounter()
		piggyback.HasSenderWakeUpCounter = true
	}
	h.scheduler.Enqueue(&csl.BufferedFrame{
		Broadcast: true,
		Class:     mac.ClassHello,
		Piggyback: piggyback,
		Payload:   marshalHello(challenge),
	})
	log.Debug("akes: broadcast HELLO")
}

// onHandshakeFrame is the scheduler's HandshakeDeliver callback: it
// dispatches to the per-class handler and is always invoked from the
// single Run goroutine that also drains scheduler events, so it never
// races table mutations against the duty-cycle fast path.
func (h *Handler) onHandshakeFrame(class mac.FrameClass, addr [8]byte, sender *nbr.Entry, piggyback mac.PiggybackContext, payload []byte) {
	switch class {
	case mac.ClassHello:
		h.onHello(nbr.Addr(addr), sender, piggyback, payload)
	case mac.ClassHelloAck:
		h.onHelloAck(nbr.Addr(addr), sender, piggyback, payload)
	case mac.ClassAck:
		h.onAck(nbr.Addr(addr), sender, piggyback, payload)
	}
}

// onHello handles an incoming HELLO (§4.9): it is rate-limited,
// allocates a tentative entry if none exists yet, and schedules a
// HELLOACK after a random delay. A neighbor that already has a
// permanent entry just has its trickle-relevant liveness noted; no new
// tentative entry is created for it.
func (h *Handler) onHello(addr nbr.Addr, existing *nbr.Entry, piggyback mac.PiggybackContext, payload []byte) {
	now := time.Now()
	if !h.helloIn.TryTake(now) {
		log.Debug("akes: incoming HELLO dropped by rate limit")
		return
	}
	challenge, err := parseHello(payload)
	if err != nil {
		log.WithError(err).Debug("akes: malformed HELLO payload")
		return
	}
	if h.cfg.SharedSecret == nil {
		return
	}
	if _, ok := h.cfg.SharedSecret(addr); !ok {
		log.WithField("addr", addr).Debug("akes: HELLO from peer with no provisioned shared secret")
		return
	}

	if existing != nil && existing.Status == nbr.StatusPermanent {
		if existing.HasExpiration {
			existing.Expiration = now.Add(h.cfg.NbrLifetime)
		}
		log.WithField("addr", addr).Debug("akes: HELLO from already-permanent neighbor, prolonging and suppressing redundant HELLOACK")
		return
	}

	entry := existing
	if entry == nil {
		entry, err = h.table.New(addr, nbr.StatusTentative)
		if err != nil {
			log.WithError(err).WithField("addr", addr).Debug("akes: could not allocate tentative entry for HELLO")
			return
		}
		h.trickle.Reset()
	}
	entry.Tentative.Challenge = challenge
	entry.Tentative.HasChallenge = true
	entry.Tentative.WaitTimerPresent = true
	entry.Tentative.WaitTimerAt = now.Add(randomDuration(h.cfg.MaxWaitingPeriod - h.cfg.MaxRetransmissionBackOff))

	h.strategy.OnFreshAuthenticHello(entry)

	delay := time.Until(entry.Tentative.WaitTimerAt)
	if delay < 0 {
		delay = 0
	}
	time.AfterFunc(delay, func() { h.sendHelloAck(entry) })
}

// sendHelloAck completes a HELLOACK send that onHello scheduled: it
// derives the tentative pairwise key from the HELLO challenge and a
// fresh HELLOACK challenge, stores it, and enqueues the frame.
func (h *Handler) sendHelloAck(entry *nbr.Entry) {
	if entry == nil || entry.Status != nbr.StatusTentative || !entry.Tentative.HasChallenge || entry.Tentative.HelloAckSent {
		return
	}
	if !h.helloAckOut.TryTake(time.Now()) {
		log.Debug("akes: outgoing HELLOACK suppressed by rate limit")
		return
	}
	secret, ok := h.cfg.SharedSecret(entry.Addr)
	if !ok {
		return
	}
	helloAckChallenge, err := randomChallenge()
	if err != nil {
		log.WithError(err).Error("akes: failed to generate HELLOACK challenge")
		return
	}
	var kdfInput [16]byte
	copy(kdfInput[:8], entry.Tentative.Challenge[:])
	copy(kdfInput[8:], helloAckChallenge[:])
	key, err := ccm.DerivePairwiseKey(secret, kdfInput)
	if err != nil {
		log.WithError(err).Error("akes: pairwise key derivation failed")
		return
	}

	entry.Tentative.TentativePairwiseKey = key
	entry.Tentative.HasKey = true
	entry.Tentative.HelloAckSent = true
	entry.Permanent.HelloAckChallenge = helloAckChallenge
	entry.Permanent.HasHelloAckChallenge = true

	piggyback := mac.PiggybackContext{Challenge: helloAckChallenge, HasChallenge: true}
	if h.scheduler != nil {
		piggyback.SenderWakeUpCounter = h.scheduler.LocalWakeUpCounter()
		piggyback.HasSenderWakeUpCounter = true
	}
	h.scheduler.Enqueue(&csl.BufferedFrame{
		Receiver:  entry,
		Class:     mac.ClassHelloAck,
		Piggyback: piggyback,
		Payload:   marshalHelloAck(entry.Tentative.Challenge, entry.Index()),
		Callback: func(outcome csl.TxOutcome) {
			if outcome == csl.TxOK {
				h.strategy.OnHelloAckSent(entry)
			}
		},
	})
}

// onHelloAck handles a received HELLOACK, on the initiating side of
// the handshake (the node that sent the original HELLO). It derives
// the same pairwise key the responder did and replies with an ACK.
func (h *Handler) onHelloAck(addr nbr.Addr, existing *nbr.Entry, piggyback mac.PiggybackContext, payload []byte) {
	now := time.Now()
	if !h.helloAckIn.TryTake(now) {
		log.Debug("akes: incoming HELLOACK dropped by rate limit")
		return
	}
	echoedHello, foreignIndex, err := parseHelloAck(payload)
	if err != nil {
		log.WithError(err).Debug("akes: malformed HELLOACK payload")
		return
	}
	if echoedHello != h.ownHelloChallenge {
		log.WithField("addr", addr).Debug("akes: HELLOACK echoes stale or unknown HELLO challenge, dropping")
		return
	}
	if !piggyback.HasChallenge {
		log.Debug("akes: HELLOACK missing its own challenge in piggyback fields")
		return
	}
	secret, ok := h.cfg.SharedSecret(addr)
	if !ok {
		return
	}

	var kdfInput [16]byte
	copy(kdfInput[:8], echoedHello[:])
	copy(kdfInput[8:], piggyback.Challenge[:])
	key, err := ccm.DerivePairwiseKey(secret, kdfInput)
	if err != nil {
		log.WithError(err).Error("akes: pairwise key derivation failed")
		return
	}

	entry := existing
	if entry == nil {
		entry, err = h.table.New(addr, nbr.StatusTentative)
		if err != nil {
			log.WithError(err).WithField("addr", addr).Debug("akes: could not allocate tentative entry for HELLOACK")
			return
		}
	}
	entry.Tentative.TentativePairwiseKey = key
	entry.Tentative.HasKey = true
	entry.Tentative.ForeignIndex = foreignIndex
	entry.Tentative.HasForeignIndex = true

	h.strategy.OnFreshAuthenticHelloAck(entry)

	h.scheduler.Enqueue(&csl.BufferedFrame{
		Receiver: entry,
		Class:    mac.ClassAck,
		Piggyback: mac.PiggybackContext{
			Challenge:    piggyback.Challenge,
			HasChallenge: true,
		},
		Payload: marshalAck(entry.Index()),
		Callback: func(outcome csl.TxOutcome) {
			if outcome == csl.TxOK {
				h.promote(entry, foreignIndex, "initiator")
			}
		},
	})
}

// onAck handles a received ACK, on the responding side of the
// handshake (the node that sent the HELLOACK). It verifies the echoed
// HELLOACK challenge and promotes the tentative entry to permanent.
func (h *Handler) onAck(addr nbr.Addr, existing *nbr.Entry, piggyback mac.PiggybackContext, payload []byte) {
	if existing == nil || existing.Status != nbr.StatusTentative {
		log.WithField("addr", addr).Debug("akes: ACK for unknown or already-permanent entry")
		return
	}
	ownIndex, err := parseAck(payload)
	if err != nil {
		log.WithError(err).Debug("akes: malformed ACK payload")
		return
	}
	if !piggyback.HasChallenge || !existing.Permanent.HasHelloAckChallenge || piggyback.Challenge != existing.Permanent.HelloAckChallenge {
		log.WithField("addr", addr).Debug("akes: ACK echoes wrong HELLOACK challenge, dropping")
		return
	}
	h.promote(existing, ownIndex, "responder")
}

// promote finalizes a handshake, converting a tentative entry into a
// permanent one and resetting the HELLO trickle timer (§4.9's
// akes_trickle_on_new_nbr) to rapidly announce the network's growth.
func (h *Handler) promote(entry *nbr.Entry, foreignIndex uint8, role string) {
	if entry == nil || entry.Status != nbr.StatusTentative {
		return
	}
	perm := nbr.Permanent{
		PairwiseKey:    entry.Tentative.TentativePairwiseKey,
		HasPairwiseKey: entry.Tentative.HasKey,
		ForeignIndex:   foreignIndex,
	}
	h.table.Promote(entry, perm)
	entry.Expiration = time.Now().Add(h.cfg.NbrLifetime)
	entry.HasExpiration = true
	h.trickle.Reset()
	metrics.HandshakesCompleted.WithLabelValues(role).Inc()
	log.WithField("addr", entry.Addr).Info("akes: handshake complete, neighbor promoted to permanent")
}

// updateLoop walks permanent neighbors every UpdateCheckInterval
// (jittered) and sends an UPDATE keep-alive to any nearing expiration,
// deleting those that never answer within their lifetime window.
func (h *Handler) updateLoop(ctx context.Context) error {
	for {
		interval := h.cfg.UpdateCheckInterval + randomDuration(2*h.cfg.UpdateCheckJitter) - h.cfg.UpdateCheckJitter
		if interval < 0 {
			interval = h.cfg.UpdateCheckInterval
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			h.sweepPermanentNeighbors()
		}
	}
}

func (h *Handler) sweepPermanentNeighbors() {
	now := time.Now()
	var expired []*nbr.Entry
	for e := h.table.Head(); e != nil; e = h.table.Next(e) {
		if e.Status != nbr.StatusPermanent || !e.HasExpiration {
			continue
		}
		if now.After(e.Expiration) {
			expired = append(expired, e)
			continue
		}
		if now.Add(h.cfg.UpdateCheckInterval).After(e.Expiration) {
			h.sendUpdate(e)
		}
	}
	for _, e := range expired {
		log.WithField("addr", e.Addr).Info("akes: neighbor lifetime expired without renewal, deleting")
		h.table.Delete(e)
	}
}

// sendUpdate enqueues a keep-alive UPDATE command: an otherwise-empty
// unicast under the neighbor's established pairwise/group key whose
// mere acknowledgement refreshes the neighbor's expiration.
func (h *Handler) sendUpdate(e *nbr.Entry) {
	h.scheduler.Enqueue(&csl.BufferedFrame{
		Receiver: e,
		Class:    mac.ClassUpdate,
		Callback: func(outcome csl.TxOutcome) {
			if outcome == csl.TxOK {
				e.Expiration = time.Now().Add(h.cfg.NbrLifetime)
			}
		},
	})
}

func randomChallenge() ([ChallengeLen]byte, error) {
	var c [ChallengeLen]byte
	if _, err := rand.Read(c[:]); err != nil {
		return c, fmt.Errorf("akes: %w", err)
	}
	return c, nil
}

// randomDuration returns a uniformly distributed duration in [0, max),
// or 0 if max <= 0.
func randomDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}
