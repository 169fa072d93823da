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

// Package pcaptest implements a radio.Driver backed by a recorded
// pcap capture: each captured packet's raw bytes are replayed in
// order as one received CSL frame, letting the scheduler and framer
// packages be exercised against a fixed, reviewable fixture instead of
// only synthetic in-process traffic. Modeled on pshark's use of
// gopacket/pcapgo to iterate a capture file, substituting CSL/AKES
// frame replay for PTP message decoding.
package pcaptest

import (
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/csl-wsn/csl/radio"
)

type packetHandle interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// Driver replays the frames of one pcap capture as received CSL
// frames; transmissions are recorded but not delivered anywhere (a
// pcap file has no transmit side to loop back to).
type Driver struct {
	frames [][]byte
	pos    int

	sent []sentFrame
	on   bool
	cb   radio.Callback
	tick int64
	hz   int64

	rxBuf   []byte
	pending []byte
}

type sentFrame struct {
	buf []byte
	cca bool
}

// Open reads every packet in path into memory as one CSL frame each.
func Open(path string, ticksPerSecond int64) (*Driver, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var handle packetHandle
	handle, err = pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
	if err != nil {
		if _, serr := f.Seek(0, 0); serr != nil {
			return nil, fmt.Errorf("pcaptest: seeking in %s: %w", path, serr)
		}
		handle, err = pcapgo.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("pcaptest: decoding %s: %w", path, err)
		}
	}

	d := &Driver{hz: ticksPerSecond}
	src := gopacket.NewPacketSource(handle, handle.LinkType())
	for packet := range src.Packets() {
		data := packet.Data()
		if len(data) == 0 {
			continue
		}
		d.frames = append(d.frames, append([]byte(nil), data...))
	}
	return d, nil
}

// Sent returns every frame handed to AsyncPrepare+AsyncTransmit or
// AsyncTransmitSequence, for test assertions.
func (d *Driver) Sent() [][]byte {
	out := make([][]byte, 0, len(d.sent))
	for _, s := range d.sent {
		out = append(out, s.buf)
	}
	return out
}

func (d *Driver) AsyncOn() error  { d.on = true; d.deliverNext(); return nil }
func (d *Driver) AsyncOff() error { d.on = false; return nil }

func (d *Driver) deliverNext() {
	if !d.on || d.pos >= len(d.frames) {
		return
	}
	d.rxBuf = d.frames[d.pos]
	d.pos++
	if d.cb.OnSFD != nil {
		d.cb.OnSFD(d.tick)
	}
	if d.cb.OnFIFOThreshold != nil {
		d.cb.OnFIFOThreshold()
	}
	if d.cb.OnRXFinished != nil {
		d.cb.OnRXFinished(true)
	}
}

func (d *Driver) AsyncPrepare(buf []byte) error {
	d.pending = append([]byte(nil), buf...)
	return nil
}

func (d *Driver) AsyncTransmit(cca bool) error {
	d.sent = append(d.sent, sentFrame{buf: d.pending, cca: cca})
	if d.cb.OnTXFinished != nil {
		d.cb.OnTXFinished(false)
	}
	return nil
}

func (d *Driver) AsyncTransmitSequence(bufs [][]byte, cca bool) error {
	for _, b := range bufs {
		d.sent = append(d.sent, sentFrame{buf: b, cca: cca})
	}
	if d.cb.OnTXFinished != nil {
		d.cb.OnTXFinished(false)
	}
	return nil
}

func (d *Driver) AsyncAppendToSequence(buf []byte) error {
	d.sent = append(d.sent, sentFrame{buf: buf})
	return nil
}

func (d *Driver) AsyncFinishSequence() error { return nil }

func (d *Driver) AsyncReadPHYHeader() (int, error) {
	if d.rxBuf == nil {
		return 0, io.EOF
	}
	return len(d.rxBuf), nil
}

func (d *Driver) AsyncReadPayload(buf []byte, offset int) (int, error) {
	if offset >= len(d.rxBuf) {
		return 0, io.EOF
	}
	return copy(buf, d.rxBuf[offset:]), nil
}

func (d *Driver) AsyncRemainingPayloadBytes() int {
	return len(d.rxBuf)
}

func (d *Driver) SetCallback(cb radio.Callback) { d.cb = cb }

func (d *Driver) SetValue(radio.Value, int) error   { return nil }
func (d *Driver) GetValue(radio.Value) (int, error) { return 0, nil }
func (d *Driver) EnterAsyncMode() error             { return nil }
func (d *Driver) Now() int64                        { return d.tick }
func (d *Driver) TicksPerSecond() int64             { return d.hz }

// Advance moves the simulated clock forward and, if the radio is on,
// delivers the next captured frame.
func (d *Driver) Advance(delta int64) {
	d.tick += delta
	d.deliverNext()
}
