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

package radio

import "sync"

// Loopback is a pair of Driver instances wired to each other in
// memory: whatever one side transmits, the other side receives,
// synchronously and without simulated propagation delay. It is meant
// for scheduler unit tests exercising a full HELLO/HELLOACK/ACK or
// duty-cycle/transmit protothread pair without real radio hardware.
type Loopback struct {
	mu   sync.Mutex
	tick int64
	hz   int64

	a, b *loopbackSide
}

// NewLoopback builds a connected pair; Sides returns the two Driver
// endpoints.
func NewLoopback(ticksPerSecond int64) *Loopback {
	l := &Loopback{hz: ticksPerSecond}
	l.a = &loopbackSide{lb: l}
	l.b = &loopbackSide{lb: l}
	l.a.peer = l.b
	l.b.peer = l.a
	return l
}

// Sides returns the two endpoints of the pair.
func (l *Loopback) Sides() (Driver, Driver) { return l.a, l.b }

// Advance moves the shared clock forward by delta ticks.
func (l *Loopback) Advance(delta int64) {
	l.mu.Lock()
	l.tick += delta
	l.mu.Unlock()
}

type loopbackSide struct {
	lb   *Loopback
	peer *loopbackSide

	cb      Callback
	on      bool
	pending []byte
	rxBuf   []byte
	rxPos   int
}

func (s *loopbackSide) AsyncOn() error  { s.on = true; return nil }
func (s *loopbackSide) AsyncOff() error { s.on = false; return nil }

func (s *loopbackSide) AsyncPrepare(buf []byte) error {
	s.pending = append([]byte(nil), buf...)
	return nil
}

func (s *loopbackSide) AsyncTransmit(cca bool) error {
	return s.deliver(s.pending)
}

func (s *loopbackSide) AsyncTransmitSequence(bufs [][]byte, cca bool) error {
	for _, b := range bufs {
		if err := s.deliver(b); err != nil {
			return err
		}
	}
	if s.cb.OnTXFinished != nil {
		s.cb.OnTXFinished(false)
	}
	return nil
}

func (s *loopbackSide) deliver(buf []byte) error {
	if s.peer.on && s.peer.cb.OnSFD != nil {
		s.peer.cb.OnSFD(s.lb.tick)
	}
	if s.peer.on {
		s.peer.rxBuf = append([]byte(nil), buf...)
		s.peer.rxPos = 0
		if s.peer.cb.OnFIFOThreshold != nil {
			s.peer.cb.OnFIFOThreshold()
		}
		if s.peer.cb.OnRXFinished != nil {
			s.peer.cb.OnRXFinished(true)
		}
	}
	if s.cb.OnTXFinished != nil {
		s.cb.OnTXFinished(false)
	}
	return nil
}

func (s *loopbackSide) AsyncAppendToSequence(buf []byte) error { return s.deliver(buf) }
func (s *loopbackSide) AsyncFinishSequence() error             { return nil }

func (s *loopbackSide) AsyncReadPHYHeader() (int, error) { return len(s.rxBuf), nil }

func (s *loopbackSide) AsyncReadPayload(buf []byte, offset int) (int, error) {
	n := copy(buf, s.rxBuf[offset:])
	return n, nil
}

func (s *loopbackSide) AsyncRemainingPayloadBytes() int {
	return len(s.rxBuf) - s.rxPos
}

func (s *loopbackSide) SetCallback(cb Callback) { s.cb = cb }

func (s *loopbackSide) SetValue(Value, int) error     { return nil }
func (s *loopbackSide) GetValue(Value) (int, error)   { return 0, nil }
func (s *loopbackSide) EnterAsyncMode() error         { return nil }
func (s *loopbackSide) Now() int64                    { return s.lb.tick }
func (s *loopbackSide) TicksPerSecond() int64         { return s.lb.hz }
