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

package csl

import (
	log "github.com/sirupsen/logrus"

	"github.com/csl-wsn/csl/framer"
	"github.com/csl-wsn/csl/mac"
	"github.com/csl-wsn/csl/nbr"
)

// dutyCyclePhase tracks where in one wake-up's processing the
// receiving side currently is (§4.8.1's numbered steps).
type dutyCyclePhase int

const (
	phaseScanning dutyCyclePhase = iota
	phaseAwaitingPayload
)

type dutyCycleState struct {
	phase         dutyCyclePhase
	sfdTimestamp  int64
	subtype       framer.Subtype
	burstIndex    uint8
	wakeUpCounter uint32

	// neighborIndex is the sender's table index, as carried by a POTR
	// wake-up frame's SourceIndex field; zero and meaningless until
	// hasNeighborIndex is set.
	neighborIndex    uint8
	hasNeighborIndex bool
}

// onSFD records the start-of-frame-delimiter timestamp for whatever
// frame is currently arriving (§4.8.1 step 2).
func (s *Scheduler) onSFD(ts int64) {
	s.duty.sfdTimestamp = ts
}

// onFIFOThreshold is a no-op hook point in this implementation: the
// loopback and pcaptest doubles deliver a frame's bytes in one shot
// at OnRXFinished rather than incrementally, so parsing happens there.
// A driver that exposes true FIFO-threshold interrupts would instead
// read the PHY header and initial bytes here to start framer.Filter
// before the whole frame has arrived, for latency.
func (s *Scheduler) onFIFOThreshold() {}

// onRXFinished implements §4.8.1 steps 3-7: parse the frame that just
// arrived, either as a wake-up frame (arm for the payload rendezvous)
// or, once a wake-up frame has already been seen this cycle, as the
// payload frame itself (filter, ack, deliver).
func (s *Scheduler) onRXFinished(ok bool) {
	if !ok {
		s.driver.AsyncOff()
		return
	}
	n, err := s.driver.AsyncReadPHYHeader()
	if err != nil || n == 0 {
		s.driver.AsyncOff()
		return
	}
	buf := make([]byte, n)
	got, err := s.driver.AsyncReadPayload(buf, 0)
	if err != nil {
		s.driver.AsyncOff()
		return
	}
	buf = buf[:got]

	if s.duty.phase == phaseScanning {
		s.handleWakeUpFrame(buf)
		return
	}
	s.handlePayloadFrame(buf)
}

func (s *Scheduler) handleWakeUpFrame(buf []byte) {
	wf, err := s.wakeUpFramer.ParseWakeUpFrame(buf)
	if err != nil {
		log.WithError(err).Debug("csl: failed to parse wake-up frame, turning radio off")
		s.driver.AsyncOff()
		return
	}
	s.duty.subtype = wf.Subtype
	s.duty.hasNeighborIndex = wf.HasSourceIndex
	if wf.HasSourceIndex {
		s.duty.neighborIndex = wf.SourceIndex
	}

	switch {
	case wf.RemainingWakeUpFrames == 0:
		if !s.verifyWakeUpOTP(wf) {
			log.Debug("csl: wake-up frame OTP rejected, turning radio off")
			s.driver.AsyncOff()
			return
		}
		s.duty.phase = phaseAwaitingPayload
	case wf.RemainingWakeUpFrames == 1:
		// one more wake-up frame copy is still coming; stay scanning
	default:
		if int64(wf.RendezvousTime)-s.driver.Now() > lateRendezvousThresholdTicks(s.driver.TicksPerSecond()) {
			if err := s.lateCache.Insert(LateRendezvous{RendezvousTime: int64(wf.RendezvousTime), Subtype: wf.Subtype}); err != nil {
				log.WithError(err).Debug("csl: late-rendezvous cache full, staying armed instead")
				return
			}
			s.driver.AsyncOff()
		}
	}
}

// verifyWakeUpOTP performs the "practical on-the-fly rejection" check
// (§4.5): a wake-up frame with no OTP field at all (compliant mode,
// or POTR's HELLO/HELLOACK subtypes) passes through, since it has
// nothing to verify; one that carries an OTP must authenticate under
// the named sender's pairwise key before the receiver commits to
// staying awake for the payload rendezvous.
func (s *Scheduler) verifyWakeUpOTP(wf framer.WakeUpFrame) bool {
	if !wf.HasOTP {
		return true
	}
	sender := s.table.GetNbr(wf.SourceIndex)
	if sender == nil {
		return false
	}
	ok, err := s.strategy.VerifyWakeUpOTP(sender, s.LocalWakeUpCounter(), wf.PayloadFramesLength, wf.OTP)
	if err != nil {
		log.WithError(err).Debug("csl: wake-up OTP verification failed")
		return false
	}
	return ok
}

// lateRendezvousThresholdTicks is ~20ms in radio ticks (§4.8.3).
func lateRendezvousThresholdTicks(ticksPerSecond int64) int64 {
	return ticksPerSecond / 50
}

func (s *Scheduler) handlePayloadFrame(buf []byte) {
	pf := s.newPayload(s.duty.subtype)
	ackBuf := make([]byte, 32)
	ackLen, err := pf.Filter(buf, ackBuf)
	if err != nil {
		log.WithError(err).Debug("csl: payload frame filter failed")
		s.driver.AsyncOff()
		s.duty.phase = phaseScanning
		return
	}

	hdr, hdrLen, err := pf.Parse(buf)
	if err != nil {
		s.driver.AsyncOff()
		s.duty.phase = phaseScanning
		return
	}

	class := classFor(s.duty.subtype)

	// HELLO is how a never-before-seen neighbor introduces itself: it
	// carries no security and names the sender only by its own source
	// address, so it is the one class resolveSender's nbr.Table lookup
	// must not gate on.
	if class == mac.ClassHello {
		if !hdr.HasSourceAddress {
			s.driver.AsyncOff()
			s.duty.phase = phaseScanning
			return
		}
		piggyback, piggybackLen, err := s.strategy.ReadPiggyback(class, buf[hdrLen:])
		if err != nil {
			s.driver.AsyncOff()
			s.duty.phase = phaseScanning
			return
		}
		addr := nbr.Addr(hdr.SourceAddress)
		if s.HandshakeDeliver != nil {
			s.HandshakeDeliver(class, addr, s.table.Find(addr), piggyback, buf[hdrLen+piggybackLen:])
		}
		s.driver.AsyncOff()
		s.duty.phase = phaseScanning
		return
	}

	sender := s.resolveSender(hdr)
	if sender == nil {
		log.Debug("csl: could not resolve sender neighbor entry, dropping frame")
		s.driver.AsyncOff()
		s.duty.phase = phaseScanning
		return
	}

	vf := mac.SecuredFrame{Class: class, Neighbor: sender, BurstIndex: s.duty.burstIndex, WakeUpCounter: s.duty.wakeUpCounter, Incoming: true}
	sealed, err := s.strategy.Verify(vf, buf[hdrLen:])
	if err != nil {
		log.WithError(err).Debug("csl: frame authentication failed")
		s.driver.AsyncOff()
		s.duty.phase = phaseScanning
		return
	}

	if ackLen > 0 {
		ack, err := buildAcknowledgement(s.strategy, vf, s.duty.burstIndex)
		if err == nil {
			s.driver.AsyncPrepare(ack)
			s.driver.AsyncTransmit(false)
		}
	}

	if class == mac.ClassData {
		if s.Deliver != nil {
			s.Deliver(sender.Addr, sealed)
		}
	} else {
		piggyback, piggybackLen, err := s.strategy.ReadPiggyback(class, sealed)
		if err != nil {
			log.WithError(err).Debug("csl: failed to parse handshake piggyback fields")
			s.driver.AsyncOff()
			s.duty.phase = phaseScanning
			return
		}
		if s.HandshakeDeliver != nil {
			s.HandshakeDeliver(class, sender.Addr, sender, piggyback, sealed[piggybackLen:])
		}
	}

	if !hdr.FramePending || s.duty.burstIndex >= uint8(s.cfg.MaxBurstIndex) {
		s.driver.AsyncOff()
		s.duty.phase = phaseScanning
		s.duty.burstIndex = 0
		return
	}
	s.duty.burstIndex++
}

// resolveSender identifies the neighbor-table entry for an incoming
// payload frame's sender: from the frame's own source address when
// the wire format carries one (HELLO/HELLOACK, and every compliant
// frame), otherwise from the table index a POTR wake-up frame named
// (ordinary unicast data/ACK frames, which omit addressing entirely).
func (s *Scheduler) resolveSender(hdr framer.PayloadHeader) *nbr.Entry {
	if hdr.HasSourceAddress {
		return s.table.Find(nbr.Addr(hdr.SourceAddress))
	}
	if s.duty.hasNeighborIndex {
		return s.table.GetNbr(s.duty.neighborIndex)
	}
	return nil
}

func buildAcknowledgement(strategy mac.Strategy, vf mac.SecuredFrame, burstIndex uint8) ([]byte, error) {
	ackFrame := mac.SecuredFrame{Class: mac.ClassAck, Neighbor: vf.Neighbor, BurstIndex: burstIndex, WakeUpCounter: vf.WakeUpCounter}
	return strategy.OnFrameCreated(ackFrame, []byte{})
}
