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

// Package sink publishes finished FeatureRecords to external
// consumers: CSV/JSONL files for offline analysis, or a Redis stream
// for live fan-out. This is output-only — the engine never reads
// state back from a sink.
package sink

import (
	"fmt"
	"time"

	"windower/internal/engine"
)

// Sink accepts finished feature records. Implementations must be safe
// to call from a single goroutine only, matching the engine's
// single-writer model.
type Sink interface {
	Publish(record *engine.FeatureRecord) error
	Close() error
}

// Options configures Build. Fields not used by the selected adapter
// are ignored.
type Options struct {
	// Path is the destination file for "csv" and "jsonl" adapters.
	Path string

	// RedisAddr, when non-empty, selects a real go-redis client for the
	// "redis" adapter; otherwise a logging stand-in is used, matching
	// the dependency-free-by-default demo posture.
	RedisAddr string
	// RedisStreamKey is the stream records are XADD-ed to.
	RedisStreamKey string
	// RedisDialTimeout bounds the initial connection attempt.
	RedisDialTimeout time.Duration
}

// Build constructs a Sink for the named adapter: "csv", "jsonl", or
// "redis".
func Build(adapter string, opts Options) (Sink, error) {
	switch adapter {
	case "csv":
		return NewCSVSink(opts.Path)
	case "jsonl":
		return NewJSONLSink(opts.Path)
	case "redis":
		streamKey := opts.RedisStreamKey
		if streamKey == "" {
			streamKey = "windower:features"
		}
		var publisher RedisPublisher
		if opts.RedisAddr != "" {
			publisher = NewGoRedisPublisher(opts.RedisAddr, opts.RedisDialTimeout)
		} else {
			publisher = LoggingRedisPublisher{}
		}
		return NewRedisSink(publisher, streamKey), nil
	default:
		return nil, fmt.Errorf("sink: unknown adapter %q", adapter)
	}
}

// header is the CSV column order, matching the external schema table.
var header = []string{
	"src_ip", "window_count", "window_span",
	"pkts_total", "bytes_total", "pkt_rate", "byte_rate",
	"pkt_arrivals_avg", "pkt_arrivals_std",
	"pkt_size_min", "pkt_size_max", "pkt_size_avg", "pkt_size_std",
	"proto_tcp_share", "proto_udp_share", "proto_icmp_share",
	"port_src_unique", "port_src_entropy", "conn_pkts_avg", "pkts_frag_share",
	"hdrs_payload_ratio_avg",
	"pkts_total_std", "bytes_total_std", "pkt_size_avg_std", "pkt_size_std_std",
	"pkt_arrivals_avg_std", "port_src_unique_std", "port_src_entropy_std",
	"conn_pkts_avg_std", "pkts_frag_share_std", "hdrs_payload_ratio_avg_std",
	"dominant_proto_ratio_std", "intrawindow_activity_ratio", "interwindow_activity_ratio",
}
