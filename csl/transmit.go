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
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/csl-wsn/csl/framer"
	"github.com/csl-wsn/csl/mac"
	"github.com/csl-wsn/csl/metrics"
	"github.com/csl-wsn/csl/nbr"
	"github.com/csl-wsn/csl/radio"
	"github.com/csl-wsn/csl/sync"
)

// transmit runs the transmit protothread (§4.8.2) for one buffered
// frame, returning its outcome. It blocks the Run goroutine for the
// duration of one transmission, matching the "no preemption between
// the two protothreads" requirement: the duty-cycle side only
// processes interrupts the radio itself is free to deliver, and a
// real driver implementation schedules those independently of this
// call's Go stack.
func (s *Scheduler) transmit(f *BufferedFrame) (TxOutcome, []*BufferedFrame) {
	data := &sync.Data{}
	if f.Receiver != nil {
		data = &f.Receiver.SyncData
	}

	result, err := s.synchronizer.Schedule(sync.ScheduleParams{
		Now:                 s.driver.Now(),
		Data:                data,
		WakeUpInterval:      int64(s.interval.Ticks()),
		RadioTicksPerSecond: s.driver.TicksPerSecond(),
		GuardTime:           s.cfg.GuardTime,
		WakeUpFrameDuration: wakeUpFrameTicks(s.wakeUpFramer, s.driver.TicksPerSecond()),
		LocalWakeUpCounter:  uint32(s.localCounter),
	})
	if err != nil {
		log.WithError(err).Error("csl: synchronizer.Schedule failed, aborting transmission")
		return TxErrFatal, []*BufferedFrame{f}
	}

	channel := s.selectChannel(f, result.ReceiversWakeUpCounter)
	s.driver.SetValue(radio.ValueChannel, int(channel))

	if s.lateCache.Overlaps(result.WakeUpSequenceStart, result.PayloadFrameStart) {
		f.NextAttempt += int64(s.interval.Ticks())
		return TxDeferred, []*BufferedFrame{f}
	}

	frames := []*BufferedFrame{f}
	if f.Class == mac.ClassData {
		frames = append(frames, s.queue.Burst(f, s.cfg.MaxBurstIndex)...)
	}

	payloads, err := s.buildPayloadFrames(frames, result)
	if err != nil {
		if errors.Is(err, mac.ErrCounterExhausted) {
			log.WithError(err).Error("csl: outgoing frame counter exhausted, requesting reboot")
			return TxErrFatal, frames
		}
		log.WithError(err).Warn("csl: failed to build payload frames")
		return TxErr, frames
	}

	subtype := subtypeForClass(f.Class)
	receiverForeignIndex := foreignIndexFor(f.Receiver)
	payloadFramesLength := uint8(len(payloads[0]))
	otpFrame := mac.SecuredFrame{Class: f.Class, Neighbor: f.Receiver, Broadcast: f.Broadcast, WakeUpCounter: result.ReceiversWakeUpCounter}
	otp, err := s.strategy.CreateWakeUpOTP(otpFrame, payloadFramesLength)
	if err != nil {
		return TxErr, frames
	}
	wakeUpBuf := make([]byte, s.wakeUpFramer.WakeUpFrameLength(subtype))
	if _, err := s.wakeUpFramer.CreateWakeUpFrame(wakeUpBuf, subtype, channel, receiverForeignIndex, payloadFramesLength, otp); err != nil {
		return TxErr, frames
	}

	sequence := make([][]byte, 0, result.RemainingWakeUpFrames+1)
	for i := result.RemainingWakeUpFrames; i > 0; i-- {
		copyBuf := append([]byte(nil), wakeUpBuf...)
		s.wakeUpFramer.UpdateRendezvousTime(copyBuf, subtype, i)
		sequence = append(sequence, copyBuf)
	}
	sequence = append(sequence, payloads[0])

	if err := s.driver.AsyncPrepare(sequence[0]); err != nil {
		return TxErr, frames
	}
	if err := s.driver.AsyncTransmitSequence(sequence, true); err != nil {
		if err == radio.ErrChannelBusy {
			return TxCollision, frames
		}
		return TxErr, frames
	}

	if f.Broadcast {
		return TxOK, frames
	}

	if err := s.driver.AsyncOn(); err != nil {
		return TxErr, frames
	}
	n, err := s.driver.AsyncReadPHYHeader()
	if err != nil || n == 0 {
		return TxNoACK, frames
	}
	ackRaw := make([]byte, n)
	got, err := s.driver.AsyncReadPayload(ackRaw, 0)
	if err != nil {
		return TxNoACK, frames
	}
	ackRaw = ackRaw[:got]

	pf := s.newPayload(framer.SubtypeAck)
	pf.PrepareAcknowledgementParsing()
	vf := mac.SecuredFrame{Class: mac.ClassAck, Neighbor: f.Receiver, WakeUpCounter: result.ReceiversWakeUpCounter, Incoming: true}
	opened, err := s.strategy.Verify(vf, ackRaw)
	if err != nil {
		return TxNoACK, frames
	}
	ack, err := pf.ParseAcknowledgement(opened)
	if err != nil {
		return TxNoACK, frames
	}

	s.synchronizer.OnUnicastTransmitted(data, true, ack.CSLPhase, s.driver.Now(), int64(s.interval.Ticks()))
	if f.Receiver != nil {
		addr := receiverAddr(f)
		metrics.DriftPPM.WithLabelValues(fmt.Sprintf("%x", addr)).Set(float64(data.DriftPPM))
	}

	if ack.Pending && len(frames) > 1 {
		log.Debug("csl: receiver reports more frames pending, continuing burst")
	}

	delete(s.backoff, receiverAddr(f))

	return TxOK, frames
}

// foreignIndexFor returns the table index e's peer uses to refer to
// us: learned from the HELLOACK's own-index byte while e is still
// tentative (needed right away to address our own ACK), carried
// forward into the permanent entry once the handshake completes.
func foreignIndexFor(e *nbr.Entry) uint8 {
	if e == nil {
		return 0
	}
	if e.Status == nbr.StatusTentative {
		return e.Tentative.ForeignIndex
	}
	return e.Permanent.ForeignIndex
}

func receiverAddr(f *BufferedFrame) nbr.Addr {
	if f.Receiver != nil {
		return f.Receiver.Addr
	}
	return nbr.Addr{}
}

func wakeUpFrameTicks(wf framer.WakeUpFramer, ticksPerSecond int64) int64 {
	// A wake-up frame's on-air duration is proportional to its byte
	// length; 32 ticks/byte is one byte's airtime at 250kbps O-QPSK
	// when the radio clock runs at about 1 MHz. ticksPerSecond is not
	// consulted, so the same 32 ticks/byte is used at every tick rate.
	return int64(wf.WakeUpFrameLength(framer.SubtypeNormal)) * 32
}

func (s *Scheduler) selectChannel(f *BufferedFrame, receiversWakeUpCounter uint32) uint8 {
	if s.cfg.Compliant || len(s.cfg.Channels) <= 1 {
		if len(s.cfg.Channels) == 0 {
			return 0
		}
		return s.cfg.Channels[0]
	}
	addrSum := uint32(0)
	if f.Receiver != nil {
		for _, b := range f.Receiver.Addr {
			addrSum += uint32(b)
		}
	}
	idx := (receiversWakeUpCounter ^ addrSum) % uint32(len(s.cfg.Channels))
	return s.cfg.Channels[idx]
}

// buildPayloadFrames builds each frame's header+ciphertext bottom-up
// (§4.8.2 step 5): the last frame's header carries a zero pending
// length, and each frame before it carries the serialized length of
// the next frame so a receiver knows how much more to expect in the
// burst. A header's bytes stay in the clear on the wire
// (the duty-cycle side reads them before it has anything to verify
// with); only the piggyback fields and the frame's own payload are
// sealed under the MAC strategy's key.
func (s *Scheduler) buildPayloadFrames(frames []*BufferedFrame, sched sync.Result) ([][]byte, error) {
	out := make([][]byte, len(frames))
	pendingLen := uint8(0)
	for i := len(frames) - 1; i >= 0; i-- {
		bf := frames[i]
		subtype := subtypeForClass(bf.Class)
		pf := s.newPayload(subtype)
		buf := make([]byte, pf.Length()+16+len(bf.Payload)+8)
		hdr := framer.PayloadHeader{IsCommand: bf.IsCommand(), PendingFramesLen: pendingLen, SourceAddress: s.cfg.LocalAddr, HasSourceAddress: true}
		n, err := pf.Create(buf, hdr, bf.Payload)
		if err != nil {
			return nil, err
		}

		piggybackLen, err := s.strategy.WritePiggyback(bf.Class, buf[n:], bf.Piggyback)
		if err != nil {
			return nil, err
		}

		sf := mac.SecuredFrame{Class: bf.Class, Neighbor: bf.Receiver, Broadcast: bf.Broadcast, WakeUpCounter: sched.ReceiversWakeUpCounter, BurstIndex: uint8(i)}
		if err := s.strategy.BeforeCreate(sf); err != nil {
			return nil, err
		}
		toSeal := append(append([]byte(nil), buf[n:n+piggybackLen]...), bf.Payload...)
		sealed, err := s.strategy.OnFrameCreated(sf, toSeal)
		if err != nil {
			return nil, err
		}
		out[i] = append(append([]byte(nil), buf[:n]...), sealed...)
		pendingLen = uint8(len(out[i]))
	}
	return out, nil
}
