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

package akes

import "fmt"

// ChallengeLen is the width of a HELLO or HELLOACK challenge.
const ChallengeLen = 8

// helloPayload is HELLO's entire application payload: the sender's
// fresh challenge. The sender's wake-up counter rides in the frame's
// piggyback fields, not here (mac.PiggybackContext.SenderWakeUpCounter).
func marshalHello(challenge [ChallengeLen]byte) []byte {
	return append([]byte(nil), challenge[:]...)
}

func parseHello(buf []byte) (challenge [ChallengeLen]byte, err error) {
	if len(buf) < ChallengeLen {
		return challenge, fmt.Errorf("akes: HELLO payload too short")
	}
	copy(challenge[:], buf[:ChallengeLen])
	return challenge, nil
}

// marshalHelloAck builds HELLOACK's payload: the echoed HELLO
// challenge followed by the sender's own table index for the
// recipient (so the recipient learns what index to address its own
// wake-up frames with). The fresh HELLOACK challenge itself travels in
// the piggyback fields (mac.PiggybackContext.Challenge), not here.
func marshalHelloAck(echoedHelloChallenge [ChallengeLen]byte, ownIndex uint8) []byte {
	buf := make([]byte, ChallengeLen+1)
	copy(buf, echoedHelloChallenge[:])
	buf[ChallengeLen] = ownIndex
	return buf
}

func parseHelloAck(buf []byte) (echoedHelloChallenge [ChallengeLen]byte, ownIndex uint8, err error) {
	if len(buf) < ChallengeLen+1 {
		return echoedHelloChallenge, 0, fmt.Errorf("akes: HELLOACK payload too short")
	}
	copy(echoedHelloChallenge[:], buf[:ChallengeLen])
	return echoedHelloChallenge, buf[ChallengeLen], nil
}

// marshalAck builds ACK's payload: just the sender's own table index
// for the recipient. The echoed HELLOACK challenge travels in the
// piggyback fields (mac.PiggybackContext.Challenge).
func marshalAck(ownIndex uint8) []byte {
	return []byte{ownIndex}
}

func parseAck(buf []byte) (ownIndex uint8, err error) {
	if len(buf) < 1 {
		return 0, fmt.Errorf("akes: ACK payload too short")
	}
	return buf[0], nil
}
