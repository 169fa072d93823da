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

import "crypto/aes"

// DerivePairwiseKey computes the AKES pairwise key as a single
// AES-128 ECB block encryption of the 16-byte input (the concatenated
// HELLO and HELLOACK challenges) under the long-term shared secret.
// One block is exactly 16 bytes, so this needs nothing beyond
// crypto/aes's raw block cipher — there is no chaining, and so no
// cipher.BlockMode is needed.
func DerivePairwiseKey(sharedSecret [16]byte, input [16]byte) ([16]byte, error) {
	block, err := aes.NewCipher(sharedSecret[:])
	if err != nil {
		return [16]byte{}, err
	}
	var out [16]byte
	block.Encrypt(out[:], input[:])
	return out, nil
}
