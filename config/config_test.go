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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cslnode.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestReadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "local_addr: \"0011223344556677\"\n")
	c, err := ReadConfig(path)
	require.NoError(t, err)
	assert.True(t, c.CSLCompliant)
	assert.Equal(t, 8, c.WakeUpCounterRate)
	assert.Equal(t, 300, c.AkesNbrLifetimeS)
	assert.True(t, c.AkesNbrEvictLRU)
}

func TestReadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, "local_addr: \"0011223344556677\"\ncsl_compliant: false\nwake_up_counter_rate: 16\n")
	c, err := ReadConfig(path)
	require.NoError(t, err)
	assert.False(t, c.CSLCompliant)
	assert.Equal(t, 16, c.WakeUpCounterRate)
}

func TestReadConfigRejectsMissingLocalAddr(t *testing.T) {
	path := writeConfig(t, "schema_version: \"1.0.0\"\n")
	_, err := ReadConfig(path)
	assert.Error(t, err)
}

func TestReadConfigRejectsNonPowerOfTwoRate(t *testing.T) {
	path := writeConfig(t, "local_addr: \"0011223344556677\"\nwake_up_counter_rate: 7\n")
	_, err := ReadConfig(path)
	assert.Error(t, err)
}

func TestReadConfigRejectsOldSchemaVersion(t *testing.T) {
	path := writeConfig(t, "local_addr: \"0011223344556677\"\nschema_version: \"0.9.0\"\n")
	_, err := ReadConfig(path)
	assert.Error(t, err)
}

func TestAddrAndSharedSecretRoundTrip(t *testing.T) {
	c := defaults()
	c.LocalAddr = "0011223344556677"
	c.SharedSecrets = map[string]string{
		"aabbccddeeff0011": "000102030405060708090a0b0c0d0e0f",
	}

	addr, err := c.Addr()
	require.NoError(t, err)
	assert.Equal(t, [8]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77}, addr)

	secret, ok := c.SharedSecret([8]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x00, 0x11})
	require.True(t, ok)
	assert.Equal(t, [16]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 0xa, 0xb, 0xc, 0xd, 0xe, 0xf}, secret)

	_, ok = c.SharedSecret([8]byte{1, 2, 3, 4, 5, 6, 7, 8})
	assert.False(t, ok)
}
