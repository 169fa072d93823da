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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelloPayloadRoundTrip(t *testing.T) {
	challenge := [ChallengeLen]byte{0, 1, 2, 3, 4, 5, 6, 7}
	parsed, err := parseHello(marshalHello(challenge))
	require.NoError(t, err)
	assert.Equal(t, challenge, parsed)
}

func TestHelloPayloadTooShort(t *testing.T) {
	_, err := parseHello([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestHelloAckPayloadRoundTrip(t *testing.T) {
	challenge := [ChallengeLen]byte{0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17}
	echoed, index, err := parseHelloAck(marshalHelloAck(challenge, 7))
	require.NoError(t, err)
	assert.Equal(t, challenge, echoed)
	assert.Equal(t, uint8(7), index)
}

func TestHelloAckPayloadTooShort(t *testing.T) {
	_, _, err := parseHelloAck(make([]byte, ChallengeLen))
	assert.Error(t, err)
}

func TestAckPayloadRoundTrip(t *testing.T) {
	index, err := parseAck(marshalAck(13))
	require.NoError(t, err)
	assert.Equal(t, uint8(13), index)
}

func TestAckPayloadTooShort(t *testing.T) {
	_, err := parseAck(nil)
	assert.Error(t, err)
}
