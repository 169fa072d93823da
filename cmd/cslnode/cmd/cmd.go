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

// Package cmd is the cslnode CLI's command tree: a run subcommand that
// brings up a node from a config file, and a keys subcommand for
// inspecting the pairwise keys a running handshake has established.
// Grounded on calnex/cmd's RootCmd/Execute plus per-subcommand
// init()-registered flags.
package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootCmd is cslnode's entry point.
var RootCmd = &cobra.Command{
	Use:   "cslnode",
	Short: "run and inspect a CSL/AKES link-layer node",
}

var (
	configPath  string
	iface       string
	logLevel    string
	metricsAddr string
)

// Execute runs the command tree, exiting the process on error.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
