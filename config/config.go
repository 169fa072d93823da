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

// Package config loads a node's §6 configuration options from YAML,
// following sptp/client.Config and ptp4u/server.Config: a plain struct
// with yaml tags, defaults applied before unmarshalling, and a single
// ReadConfig entry point.
package config

import (
	"encoding/hex"
	"fmt"
	"os"

	version "github.com/hashicorp/go-version"
	yaml "gopkg.in/yaml.v2"
)

// MinSchemaVersion is the oldest config schema_version this binary
// still understands; bumped whenever a wire- or config-breaking
// change lands, so an old config on disk fails fast instead of being
// silently misinterpreted.
const MinSchemaVersion = "1.0.0"

// Config is every option named in §6 "EXTERNAL INTERFACES", plus the
// local identity and key-management fields needed to actually run a
// node (absent from spec.md's external-interface list because they're
// deployment-specific, not protocol-specific).
type Config struct {
	SchemaVersion string `yaml:"schema_version"`

	LocalAddr string `yaml:"local_addr"` // 16 lowercase hex chars, an 8-byte 802.15.4 extended address

	CSLCompliant                bool    `yaml:"csl_compliant"`
	WakeUpCounterRate           int     `yaml:"wake_up_counter_rate"`
	CSLMaxBurstIndex            int     `yaml:"csl_max_burst_index"`
	CSLChannels                 []uint8 `yaml:"csl_channels"`
	CSLOutputPower              int     `yaml:"csl_output_power"`
	CSLCCAThreshold              int     `yaml:"csl_cca_threshold"`
	CSLClockTolerancePPM         int     `yaml:"csl_clock_tolerance_ppm"`
	CSLCompensationTolerancePPM  int     `yaml:"csl_compensation_tolerance_ppm"`
	CSLMinTimeBetweenDriftUpdatesS int   `yaml:"csl_min_time_between_drift_updates_s"`

	MaxRetransmissionsUnicast   int `yaml:"max_retransmissions_unicast"`
	MaxRetransmissionsBroadcast int `yaml:"max_retransmissions_broadcast"`

	AkesNbrMax           int  `yaml:"akes_nbr_max"`
	AkesNbrMaxTentatives int  `yaml:"akes_nbr_max_tentatives"`
	AkesNbrLifetimeS     int  `yaml:"akes_nbr_lifetime_s"`
	AkesNbrEvictLRU      bool `yaml:"akes_nbr_evict_lru"`

	AkesMaxHelloRateS     int `yaml:"akes_max_hello_rate_s"`
	AkesMaxConsecutiveHello int `yaml:"akes_max_consecutive_hello"`
	AkesMaxHelloInRateS     int `yaml:"akes_max_hello_in_rate_s"`
	AkesMaxConsecutiveHelloIn int `yaml:"akes_max_consecutive_hello_in"`
	AkesMaxHelloAckRateS      int `yaml:"akes_max_helloack_rate_s"`
	AkesMaxConsecutiveHelloAck int `yaml:"akes_max_consecutive_helloack"`
	AkesMaxHelloAckInRateS      int `yaml:"akes_max_helloack_in_rate_s"`
	AkesMaxConsecutiveHelloAckIn int `yaml:"akes_max_consecutive_helloack_in"`

	AkesTrickleIminS          int `yaml:"akes_trickle_imin_s"`
	AkesTrickleImaxDoublings  int `yaml:"akes_trickle_imax_doublings"`

	UpdateCheckIntervalMS int `yaml:"update_check_interval_ms"`

	// SharedSecrets maps a peer's 16-hex-char address to its 32-hex-char
	// (16-byte) long-term shared secret, as provisioned by the external
	// key-management scheme (§4.9).
	SharedSecrets map[string]string `yaml:"shared_secrets"`

	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// defaults returns a Config pre-populated with every §6 default, ready
// to be overlaid with whatever the YAML document sets explicitly.
func defaults() *Config {
	return &Config{
		SchemaVersion: MinSchemaVersion,

		CSLCompliant:                true,
		WakeUpCounterRate:            8,
		CSLMaxBurstIndex:             3,
		CSLOutputPower:               0,
		CSLCCAThreshold:              -81,
		CSLClockTolerancePPM:         15,
		CSLCompensationTolerancePPM:  3,
		CSLMinTimeBetweenDriftUpdatesS: 50,

		MaxRetransmissionsUnicast:   5,
		MaxRetransmissionsBroadcast: 3,

		AkesNbrMax:           16,
		AkesNbrMaxTentatives: 5,
		AkesNbrLifetimeS:     300,
		AkesNbrEvictLRU:      true,

		AkesMaxHelloRateS:            300,
		AkesMaxConsecutiveHello:      10,
		AkesMaxHelloInRateS:          15,
		AkesMaxConsecutiveHelloIn:    20,
		AkesMaxHelloAckRateS:         150,
		AkesMaxConsecutiveHelloAck:   20,
		AkesMaxHelloAckInRateS:       8,
		AkesMaxConsecutiveHelloAckIn: 20,

		AkesTrickleIminS:         16,
		AkesTrickleImaxDoublings: 6,

		UpdateCheckIntervalMS: 1000,

		MetricsAddr: "",
		LogLevel:    "info",
	}
}

// ReadConfig loads and validates a Config from path, following
// sptp/client.ReadConfig: defaults first, then overlaid by whatever
// the YAML document sets.
func ReadConfig(path string) (*Config, error) {
	c := defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the schema version against MinSchemaVersion and the
// handful of options whose constraints can't be expressed in YAML
// (power-of-two rates, non-empty identity).
func (c *Config) Validate() error {
	have, err := version.NewVersion(c.SchemaVersion)
	if err != nil {
		return fmt.Errorf("config: invalid schema_version %q: %w", c.SchemaVersion, err)
	}
	min, err := version.NewVersion(MinSchemaVersion)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if have.LessThan(min) {
		return fmt.Errorf("config: schema_version %s is older than the minimum supported %s", have, min)
	}
	if len(c.LocalAddr) != 16 {
		return fmt.Errorf("config: local_addr must be 16 hex characters (8 bytes), got %q", c.LocalAddr)
	}
	if !isPowerOfTwo(c.WakeUpCounterRate) {
		return fmt.Errorf("config: wake_up_counter_rate must be a power of two, got %d", c.WakeUpCounterRate)
	}
	if !c.CSLCompliant && len(c.CSLChannels) > 0 && !isPowerOfTwo(len(c.CSLChannels)) {
		return fmt.Errorf("config: csl_channels length must be a power of two in POTR mode, got %d", len(c.CSLChannels))
	}
	return nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Addr decodes LocalAddr's 16 hex characters into an 8-byte address.
func (c *Config) Addr() ([8]byte, error) {
	return parseAddr(c.LocalAddr)
}

// SharedSecret resolves a peer's shared secret from SharedSecrets,
// keyed by the same 16-hex-character form as LocalAddr.
func (c *Config) SharedSecret(addr [8]byte) (secret [16]byte, ok bool) {
	raw, present := c.SharedSecrets[hex.EncodeToString(addr[:])]
	if !present {
		return secret, false
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil || len(decoded) != 16 {
		return secret, false
	}
	copy(secret[:], decoded)
	return secret, true
}

func parseAddr(s string) ([8]byte, error) {
	var addr [8]byte
	decoded, err := hex.DecodeString(s)
	if err != nil || len(decoded) != 8 {
		return addr, fmt.Errorf("config: %q is not a 16-hex-character address", s)
	}
	copy(addr[:], decoded)
	return addr, nil
}
