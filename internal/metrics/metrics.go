// Copyright 2025 Esteban Alvarez. All Rights Reserved.
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

// Package metrics exposes the engine's Prometheus instrumentation:
// counters for windows closed and IPs evicted/made ready, and a
// histogram for retrieval latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric the engine reports. Construct one with
// New and register it exactly once per process; Serve exposes it over
// HTTP for Prometheus to scrape.
type Registry struct {
	WindowsClosedTotal   prometheus.Counter
	WindowsDroppedTotal  prometheus.Counter
	IPsEvictedTotal      prometheus.Counter
	IPsReadyTotal        prometheus.Counter
	ActiveIPsGauge       prometheus.Gauge
	HistoryEntriesGauge  prometheus.Gauge
	RetrievalLatencySecs prometheus.Histogram
}

// New constructs and registers a Registry against reg. Pass
// prometheus.DefaultRegisterer for the default process registry.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		WindowsClosedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "windower_windows_closed_total",
			Help: "Total number of per-IP windows finalized into history.",
		}),
		WindowsDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "windower_windows_dropped_total",
			Help: "Total number of per-IP windows dropped for having fewer than packets_min packets.",
		}),
		IPsEvictedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "windower_ips_evicted_total",
			Help: "Total number of IPs whose history was evicted by the TTL or LRU bound.",
		}),
		IPsReadyTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "windower_ips_ready_total",
			Help: "Total number of times an IP newly entered the ready set.",
		}),
		ActiveIPsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "windower_active_ips",
			Help: "Number of source IPs with a live aggregator in the current window.",
		}),
		HistoryEntriesGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "windower_history_entries",
			Help: "Total number of history entries currently held across all IPs.",
		}),
		RetrievalLatencySecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "windower_retrieve_statistics_seconds",
			Help:    "Latency of RetrieveStatistics calls.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		r.WindowsClosedTotal,
		r.WindowsDroppedTotal,
		r.IPsEvictedTotal,
		r.IPsReadyTotal,
		r.ActiveIPsGauge,
		r.HistoryEntriesGauge,
		r.RetrievalLatencySecs,
	)

	return r
}

// Serve starts an HTTP server exposing /metrics on addr. It blocks
// until the server stops or errors.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
