// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics wires the gateway's Prometheus-compatible scrape
// endpoint (§6 Observability). Labels deliberately exclude remote IP,
// object owner, and caller name to avoid cardinality explosion.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_completed",
		Help: "Total HTTP requests completed, labeled by method and status class.",
	}, []string{"method", "status_class"})

	requestLatencyMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_latency_ms",
		Help:    "Time from request start to first byte of the response, in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"method"})

	requestTimeMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_time_ms",
		Help:    "Total wall-clock time to fully serve a request, in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
	}, []string{"method"})

	inboundStreamedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inbound_streamed_bytes",
		Help: "Total bytes streamed from clients into the gateway for object writes.",
	})

	outboundStreamedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbound_streamed_bytes",
		Help: "Total bytes streamed from the gateway to clients for object reads.",
	})

	deletedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deleted_bytes",
		Help: "Total bytes freed by successful object deletions.",
	})
)

func init() {
	prometheus.MustRegister(requestsCompleted, requestLatencyMs, requestTimeMs,
		inboundStreamedBytes, outboundStreamedBytes, deletedBytes)
}

// ObserveRequest records one completed request's method, status, latency to
// first byte, and total serve time.
func ObserveRequest(method string, status int, latency, total time.Duration) {
	requestsCompleted.WithLabelValues(method, statusClass(status)).Inc()
	requestLatencyMs.WithLabelValues(method).Observe(float64(latency.Milliseconds()))
	requestTimeMs.WithLabelValues(method).Observe(float64(total.Milliseconds()))
}

// ObserveInboundBytes records n bytes streamed from a client into the gateway.
func ObserveInboundBytes(n int64) {
	if n > 0 {
		inboundStreamedBytes.Add(float64(n))
	}
}

// ObserveOutboundBytes records n bytes streamed from the gateway to a client.
func ObserveOutboundBytes(n int64) {
	if n > 0 {
		outboundStreamedBytes.Add(float64(n))
	}
}

// ObserveDeletedBytes records n bytes freed by an object deletion. This is
// the gateway's substitute for a deletion-notification message bus: no
// third-party broker client is wired (see the design ledger), so the
// observation goes straight to the scrape endpoint.
func ObserveDeletedBytes(n int64) {
	if n > 0 {
		deletedBytes.Add(float64(n))
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}

// Handler returns the Prometheus scrape handler to mount at /metrics.
func Handler() http.Handler { return promhttp.Handler() }
