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

package cmd

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/csl-wsn/csl/nbr"
)

// keyEntry is one neighbor's inspectable state: the pairwise key
// itself is deliberately withheld, only whether one has been
// established, so /keys is safe to expose without becoming a key
// disclosure endpoint in its own right.
type keyEntry struct {
	Addr           string `json:"addr"`
	Status         string `json:"status"`
	HasPairwiseKey bool   `json:"has_pairwise_key"`
	ForeignIndex   uint8  `json:"foreign_index,omitempty"`
	Expiration     string `json:"expiration,omitempty"`
}

// keysHandler serves a JSON snapshot of table's neighbor entries, read
// live from the running scheduler/akes goroutines' shared state.
func keysHandler(table *nbr.Table) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var entries []keyEntry
		for e := table.Head(); e != nil; e = table.Next(e) {
			entry := keyEntry{Addr: hex.EncodeToString(e.Addr[:])}
			switch e.Status {
			case nbr.StatusTentative:
				entry.Status = "tentative"
				entry.HasPairwiseKey = e.Tentative.HasKey
			case nbr.StatusPermanent:
				entry.Status = "permanent"
				entry.HasPairwiseKey = e.Permanent.HasPairwiseKey
				entry.ForeignIndex = e.Permanent.ForeignIndex
				if e.HasExpiration {
					entry.Expiration = e.Expiration.Format(time.RFC3339)
				}
			}
			entries = append(entries, entry)
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			log.WithError(err).Error("cslnode: encoding /keys response")
		}
	})
}

func init() {
	RootCmd.AddCommand(keysCmd)
	keysCmd.Flags().StringVar(&metricsAddr, "metricsaddr", "http://127.0.0.1:9100", "address of a running node's metrics/admin endpoint")
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "list a running node's neighbor table and pairwise-key status",
	Run: func(cmd *cobra.Command, args []string) {
		if err := listKeys(); err != nil {
			log.Fatal(err)
		}
	},
}

func listKeys() error {
	resp, err := http.Get(metricsAddr + "/keys")
	if err != nil {
		return fmt.Errorf("cslnode: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cslnode: /keys returned %s", resp.Status)
	}
	var entries []keyEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return fmt.Errorf("cslnode: %w", err)
	}
	fmt.Printf("%-18s %-10s %-4s %-8s %s\n", "ADDR", "STATUS", "KEY", "FGNIDX", "EXPIRES")
	for _, e := range entries {
		key := "no"
		if e.HasPairwiseKey {
			key = "yes"
		}
		fmt.Printf("%-18s %-10s %-4s %-8d %s\n", e.Addr, e.Status, key, e.ForeignIndex, e.Expiration)
	}
	return nil
}
