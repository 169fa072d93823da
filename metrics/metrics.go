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

// Package metrics exports prometheus counters and gauges for the
// node's frame, handshake and synchronization activity, following
// ptp/sptp/stats's PrometheusExporter: a dedicated registry, a
// promhttp handler served on its own address, and package-scoped
// collectors incremented inline at the call site.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var registry = prometheus.NewRegistry()

var (
	// FramesSent counts successfully transmitted frames, by class
	// ("data", "hello", "helloack", "ack", "update").
	FramesSent = register(prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "csl_frames_sent_total",
		Help: "Frames successfully transmitted, by class.",
	}, []string{"class"}))

	// FramesReceived counts accepted incoming frames, by class.
	FramesReceived = register(prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "csl_frames_received_total",
		Help: "Frames accepted on reception, by class.",
	}, []string{"class"}))

	// FramesRejected counts frames dropped at verification, by reason
	// ("replay", "mic", "rate_limit", "unknown_sender").
	FramesRejected = register(prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "csl_frames_rejected_total",
		Help: "Frames rejected, by reason.",
	}, []string{"reason"}))

	// HandshakesCompleted counts successful AKES promotions to
	// permanent.
	HandshakesCompleted = register(prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "csl_handshakes_completed_total",
		Help: "AKES handshakes that reached PERMANENT.",
	}, []string{"role"}))

	// ReplayedFrames counts frames rejected specifically for failing
	// the anti-replay check.
	ReplayedFrames = register(prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "csl_replayed_frames_total",
		Help: "Frames rejected by the anti-replay check.",
	}, []string{"kind"}))

	// QueueDepth reports the outbound buffered-frame queue's current
	// length.
	QueueDepth = registerGauge(prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "csl_queue_depth",
		Help: "Current outbound buffered-frame queue length.",
	}))

	// DriftPPM reports each neighbor's most recently estimated clock
	// drift, in parts per million.
	DriftPPM = registerGaugeVec(prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "csl_neighbor_drift_ppm",
		Help: "Most recently estimated clock drift per neighbor, in ppm.",
	}, []string{"addr"}))
)

func register(c *prometheus.CounterVec) *prometheus.CounterVec {
	registry.MustRegister(c)
	return c
}

func registerGauge(g prometheus.Gauge) prometheus.Gauge {
	registry.MustRegister(g)
	return g
}

func registerGaugeVec(g *prometheus.GaugeVec) *prometheus.GaugeVec {
	registry.MustRegister(g)
	return g
}

var mux = http.NewServeMux()

func init() {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
}

// RegisterHandler adds an extra route to the server Serve starts,
// alongside /metrics; cmd/cslnode uses this to expose a /keys
// inspection endpoint on the same listener instead of opening a
// second port.
func RegisterHandler(pattern string, h http.Handler) {
	mux.Handle(pattern, h)
}

// Serve starts the metrics HTTP server on addr, blocking until it
// exits or the process terminates. A caller typically runs this in
// its own goroutine; addr being empty means metrics are disabled and
// Serve returns immediately.
func Serve(addr string) error {
	if addr == "" {
		log.Debug("metrics: no listen address configured, metrics server disabled")
		return nil
	}
	log.WithField("addr", addr).Info("metrics: serving prometheus metrics")
	return fmt.Errorf("metrics: %w", http.ListenAndServe(addr, mux))
}
