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

package ccm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = [16]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

func TestSealOpenRoundTrip(t *testing.T) {
	a, err := New(testKey, 8)
	require.NoError(t, err)
	nonce := CompliantPayloadNonce([8]byte{1, 2, 3, 4, 5, 6, 7, 8}, 42, 5)
	adata := []byte("header")
	plaintext := []byte("hello wireless sensor network")

	sealed := a.Seal(nonce, adata, plaintext)
	assert.Len(t, sealed, len(plaintext)+8)

	opened, err := a.Open(nonce, adata, sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	a, err := New(testKey, 8)
	require.NoError(t, err)
	nonce := CompliantPayloadNonce([8]byte{1, 2, 3, 4, 5, 6, 7, 8}, 1, 5)
	sealed := a.Seal(nonce, []byte("ad"), []byte("payload"))
	sealed[0] ^= 0xff
	_, err = a.Open(nonce, []byte("ad"), sealed)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestOpenRejectsTamperedAssociatedData(t *testing.T) {
	a, err := New(testKey, 8)
	require.NoError(t, err)
	nonce := CompliantPayloadNonce([8]byte{1, 2, 3, 4, 5, 6, 7, 8}, 1, 5)
	sealed := a.Seal(nonce, []byte("ad"), []byte("payload"))
	_, err = a.Open(nonce, []byte("xd"), sealed)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestMACOnlyIsDeterministic(t *testing.T) {
	a, err := New(testKey, 2)
	require.NoError(t, err)
	nonce := POTRNonce([8]byte{1, 2, 3, 4, 5, 6, 7, 8}, AlphaWakeUpOTP, 0, 99)
	m1 := a.MACOnly(nonce, []byte{5})
	m2 := a.MACOnly(nonce, []byte{5})
	assert.Equal(t, m1, m2)
	assert.Len(t, m1, 2)

	m3 := a.MACOnly(nonce, []byte{6})
	assert.NotEqual(t, m1, m3)
}

func TestNonceConstructors(t *testing.T) {
	src := [8]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x11, 0x22}
	n := CompliantPayloadNonce(src, 0x01020304, 5)
	assert.Equal(t, src[:], n[0:8])
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, n[8:12])
	assert.Equal(t, byte(5), n[12])

	n2 := POTRNonce(src, AlphaAck, 3, 0x0a0b0c0d)
	assert.Equal(t, byte(AlphaAck)<<6|3, n2[8])
	assert.Equal(t, []byte{0x0a, 0x0b, 0x0c, 0x0d}, n2[9:13])
}
