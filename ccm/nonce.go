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

// Package ccm builds the 13-byte CCM* nonces used by every frame class
// (compliant payload, POTR one-time-password, POTR payload/ack), and
// wraps crypto/aes into the AES-128-CCM* authenticated encryption
// primitive the framers and MAC strategies rely on. There is no CCM*
// implementation in the example corpus to build on; this is the one
// place in the module where cryptographic logic is implemented
// directly atop the standard library's crypto/aes block cipher, since
// rolling our own AES would be strictly worse than using the vetted
// stdlib primitive, and no third-party 802.15.4 CCM* package exists in
// the retrieved examples to delegate the construction to.
package ccm

import "encoding/binary"

// NonceLength is the fixed size of every CCM* nonce in this protocol.
const NonceLength = 13

// Alpha selects the nonce flavor for the POTR nonce constructors.
type Alpha uint8

// Alpha values as assigned in §4.4.
const (
	AlphaWakeUpOTP  Alpha = 0 // wake-up frame OTP (burst_index occupies low 6 bits)
	AlphaHello      Alpha = 1
	AlphaUnicast    Alpha = 2
	AlphaAck        Alpha = 3
)

// CompliantPayloadNonce builds the standards-compliant payload nonce:
// srcAddr(8) || frameCounter(4) || secLevel(1).
func CompliantPayloadNonce(srcAddr [8]byte, frameCounter uint32, secLevel uint8) [NonceLength]byte {
	var n [NonceLength]byte
	copy(n[0:8], srcAddr[:])
	binary.BigEndian.PutUint32(n[8:12], frameCounter)
	n[12] = secLevel
	return n
}

// POTRNonce builds a POTR-mode nonce (used for both the wake-up OTP
// and the payload/ack MIC): srcAddr(8) || (alpha<<6 | burstIndex)(1) ||
// wakeUpCounter(4). burstIndex must fit in 6 bits.
func POTRNonce(srcAddr [8]byte, alpha Alpha, burstIndex uint8, wakeUpCounter uint32) [NonceLength]byte {
	var n [NonceLength]byte
	copy(n[0:8], srcAddr[:])
	n[8] = byte(alpha)<<6 | (burstIndex & 0x3f)
	binary.BigEndian.PutUint32(n[9:13], wakeUpCounter)
	return n
}
