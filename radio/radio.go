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

// Package radio defines the external driver contract (§6) the CSL
// scheduler programs against: async radio control, sequence
// transmission with mid-flight patching, and the callback set an
// implementation invokes from interrupt context. go.uber.org/mock
// generates Driver's test double (see mock_driver.go); radio/pcaptest
// supplies a pcap-backed double for integration tests against
// recorded 802.15.4 captures.
package radio

import "time"

// Value identifies a radio property get_value/set_value can address.
type Value int

// Addressable radio properties.
const (
	ValueChannel Value = iota
	ValueTXPower
	ValueCCAThreshold
)

// Callback is the set of interrupt-context notifications a Driver
// invokes; the scheduler installs these once at startup and they run
// on whatever goroutine the driver implementation chooses to deliver
// them from (a real driver: a dedicated interrupt-servicing
// goroutine; the loopback double: synchronously, inline).
type Callback struct {
	// OnSFD fires when a start-of-frame delimiter is detected while
	// the radio is armed, carrying the SFD timestamp in radio ticks.
	OnSFD func(sfdTimestamp int64)
	// OnFIFOThreshold fires once enough bytes of an incoming frame
	// have reached the FIFO to attempt parsing.
	OnFIFOThreshold func()
	// OnRXFinished fires once a full frame has been received.
	OnRXFinished func(ok bool)
	// OnTXFinished fires once a transmission (single frame or
	// sequence) has completed, reporting whether the channel was
	// assessed busy at the start (collision).
	OnTXFinished func(collision bool)
	// OnUpdateRendezvous fires when the radio has drained enough of an
	// in-flight sequence that the caller should append the next
	// patched wake-up frame via AsyncAppendToSequence.
	OnUpdateRendezvous func()
}

// Driver is the capability set a radio implementation exposes to the
// CSL scheduler. All Async* methods return immediately; completion is
// reported via the installed Callback.
type Driver interface {
	// AsyncOn/AsyncOff power the radio receiver on or off.
	AsyncOn() error
	AsyncOff() error

	// AsyncPrepare loads buf as the next frame to transmit.
	AsyncPrepare(buf []byte) error

	// AsyncTransmit starts transmission of the previously prepared
	// frame, after performing a clear-channel assessment if cca is
	// true; returns ErrChannelBusy immediately if so and the channel
	// is occupied.
	AsyncTransmit(cca bool) error

	// AsyncTransmitSequence starts transmitting a repeating sequence
	// built from the frames in bufs (typically identical wake-up
	// frames whose rendezvous field the caller has already patched),
	// after an optional clear-channel assessment.
	AsyncTransmitSequence(bufs [][]byte, cca bool) error

	// AsyncAppendToSequence appends one more frame to an in-flight
	// sequence transmission; called from OnUpdateRendezvous.
	AsyncAppendToSequence(buf []byte) error

	// AsyncFinishSequence signals that no further frames will be
	// appended; the sequence ends after the last appended frame.
	AsyncFinishSequence() error

	// AsyncReadPHYHeader reads the PHY header of an in-progress
	// reception (frame length byte, on some radios also preamble
	// info) once available.
	AsyncReadPHYHeader() (frameLength int, err error)

	// AsyncReadPayload reads up to len(buf) bytes of an in-progress
	// reception's payload starting at offset.
	AsyncReadPayload(buf []byte, offset int) (int, error)

	// AsyncRemainingPayloadBytes reports how many payload bytes of the
	// current reception have not yet been read.
	AsyncRemainingPayloadBytes() int

	// SetCallback installs the callback set; implementations replace
	// any previously installed set.
	SetCallback(cb Callback)

	// SetValue/GetValue address tunable radio properties (channel,
	// TX power, CCA threshold).
	SetValue(v Value, x int) error
	GetValue(v Value) (int, error)

	// EnterAsyncMode switches the radio into the asynchronous,
	// callback-driven mode the scheduler requires; a driver that
	// starts in synchronous/polling mode must switch over here.
	EnterAsyncMode() error

	// Now returns the current radio-tick clock reading, monotonic
	// across the driver's lifetime.
	Now() int64

	// TicksPerSecond reports the radio clock's tick rate.
	TicksPerSecond() int64
}

// ErrChannelBusy is returned by AsyncTransmit/AsyncTransmitSequence
// when a requested clear-channel assessment finds the channel
// occupied.
var ErrChannelBusy = driverError("radio: channel busy")

type driverError string

func (e driverError) Error() string { return string(e) }

// SleepUntil is a convenience a Driver implementation may use to
// back a real-time wait for an absolute radio-tick instant; it is not
// part of the Driver interface itself since the loopback and pcap
// doubles don't need real delays.
func SleepUntil(now func() int64, ticksPerSecond int64, instant int64) {
	delta := instant - now()
	if delta <= 0 {
		return
	}
	time.Sleep(time.Duration(delta) * time.Second / time.Duration(ticksPerSecond))
}
