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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/csl-wsn/csl/akes"
	"github.com/csl-wsn/csl/config"
	"github.com/csl-wsn/csl/csl"
	"github.com/csl-wsn/csl/framer"
	framercompliant "github.com/csl-wsn/csl/framer/compliant"
	framerpotr "github.com/csl-wsn/csl/framer/potr"
	"github.com/csl-wsn/csl/mac"
	mcsl "github.com/csl-wsn/csl/mac/csl"
	"github.com/csl-wsn/csl/mac/noncoresec"
	"github.com/csl-wsn/csl/metrics"
	"github.com/csl-wsn/csl/nbr"
	"github.com/csl-wsn/csl/radio/pcaptest"
	syncpkg "github.com/csl-wsn/csl/sync"
	synccompliant "github.com/csl-wsn/csl/sync/compliant"
	syncpotr "github.com/csl-wsn/csl/sync/potr"
	"github.com/csl-wsn/csl/wakeupcounter"
)

func init() {
	RootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&configPath, "config", "/etc/cslnode.yaml", "path to the node's YAML config")
	runCmd.Flags().StringVar(&iface, "iface", "", "pcap capture to replay as the radio's incoming traffic (no hardware driver is wired in this build)")
	runCmd.Flags().StringVar(&logLevel, "loglevel", "", "override the config file's log_level")
	runCmd.Flags().StringVar(&metricsAddr, "metricsaddr", "", "override the config file's metrics_addr")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "bring up a CSL/AKES node from a config file",
	Run: func(cmd *cobra.Command, args []string) {
		if err := run(); err != nil {
			log.Fatal(err)
		}
	},
}

func run() error {
	cfg, err := config.ReadConfig(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	localAddr, err := cfg.Addr()
	if err != nil {
		return err
	}
	if iface == "" {
		log.Fatal("cslnode: -iface <capture.pcap> is required; this build wires radio/pcaptest as its only Driver")
	}
	driver, err := pcaptest.Open(iface, int64(cfg.WakeUpCounterRate)*1_000_000)
	if err != nil {
		return err
	}

	table := nbr.NewTable(cfg.AkesNbrMax, cfg.AkesNbrMaxTentatives, cfg.AkesNbrEvictLRU)

	var strategy mac.Strategy
	var wakeUpFramer framer.WakeUpFramer
	var newPayload func(framer.Subtype) framer.PayloadFramer
	var synchronizer syncpkg.Synchronizer

	if cfg.CSLCompliant {
		groupKey, _ := cfg.SharedSecret(localAddr) // network-wide group key is provisioned under the node's own address
		strategy = noncoresec.New(localAddr, groupKey)
		wakeUpFramer = framercompliant.New(0xABCD)
		newPayload = func(framer.Subtype) framer.PayloadFramer { return framercompliant.NewPayloadFramer() }
		synchronizer = synccompliant.New()
	} else {
		strategy = mcsl.New(localAddr)
		wakeUpFramer = framerpotr.New(0xABCD)
		newPayload = func(subtype framer.Subtype) framer.PayloadFramer { return framerpotr.NewPayloadFramer(subtype) }
		synchronizer = syncpotr.New(syncpotr.Config{
			ClockTolerancePPM:        float64(cfg.CSLClockTolerancePPM),
			CompensationTolerancePPM: float64(cfg.CSLCompensationTolerancePPM),
			MinDriftUpdateInterval:   time.Duration(cfg.CSLMinTimeBetweenDriftUpdatesS) * time.Second,
		})
	}

	interval := wakeupcounter.NewInterval(uint32(driver.TicksPerSecond()), uint32(cfg.WakeUpCounterRate))

	scheduler := csl.New(csl.Config{
		Compliant:                   cfg.CSLCompliant,
		Channels:                    cfg.CSLChannels,
		MaxBurstIndex:               cfg.CSLMaxBurstIndex,
		MaxRetransmissionsUnicast:   cfg.MaxRetransmissionsUnicast,
		MaxRetransmissionsBroadcast: cfg.MaxRetransmissionsBroadcast,
		LocalAddr:                   localAddr,
	}, driver, wakeUpFramer, newPayload, strategy, table, synchronizer, interval)

	scheduler.Deliver = func(src [8]byte, payload []byte) {
		metrics.FramesReceived.WithLabelValues("data").Inc()
		log.WithField("src", nbr.Addr(src)).WithField("len", len(payload)).Debug("cslnode: data frame delivered")
	}

	handler := akes.New(akes.Config{
		LocalAddr:            localAddr,
		SharedSecret:         cfg.SharedSecret,
		HelloOutInterval:     time.Duration(cfg.AkesMaxHelloRateS) * time.Second,
		HelloOutCapacity:     cfg.AkesMaxConsecutiveHello,
		HelloInInterval:      time.Duration(cfg.AkesMaxHelloInRateS) * time.Second,
		HelloInCapacity:      cfg.AkesMaxConsecutiveHelloIn,
		HelloAckOutInterval:  time.Duration(cfg.AkesMaxHelloAckRateS) * time.Second,
		HelloAckOutCapacity:  cfg.AkesMaxConsecutiveHelloAck,
		HelloAckInInterval:   time.Duration(cfg.AkesMaxHelloAckInRateS) * time.Second,
		HelloAckInCapacity:   cfg.AkesMaxConsecutiveHelloAckIn,
		TrickleImin:          time.Duration(cfg.AkesTrickleIminS) * time.Second,
		TrickleImaxDoublings: cfg.AkesTrickleImaxDoublings,
		UpdateCheckInterval:  time.Duration(cfg.UpdateCheckIntervalMS) * time.Millisecond,
		NbrLifetime:          time.Duration(cfg.AkesNbrLifetimeS) * time.Second,
	}, table, scheduler, strategy, time.Now())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.RegisterHandler("/keys", keysHandler(table))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return metrics.Serve(cfg.MetricsAddr) })
	g.Go(func() error { return scheduler.Run(ctx) })
	g.Go(func() error { return handler.Run(ctx) })
	g.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case <-scheduler.Reboot():
			return fmt.Errorf("cslnode: outgoing frame counter exhausted, restart required")
		}
	})

	log.WithField("addr", nbr.Addr(localAddr)).Info("cslnode: running")
	return g.Wait()
}
