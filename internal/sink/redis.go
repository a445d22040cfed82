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

package sink

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"windower/internal/engine"
)

// RedisPublisher abstracts the minimal surface needed from a Redis
// client: append one FeatureRecord to a stream. Implementations may
// wrap github.com/redis/go-redis/v9 or stand in for dependency-free
// demos.
type RedisPublisher interface {
	XAdd(ctx context.Context, streamKey string, fields map[string]interface{}) error
	Close() error
}

// GoRedisPublisher publishes via a real go-redis client.
type GoRedisPublisher struct {
	client *redis.Client
}

// NewGoRedisPublisher dials addr with the given connection timeout
// (0 uses the client default).
func NewGoRedisPublisher(addr string, dialTimeout time.Duration) *GoRedisPublisher {
	return &GoRedisPublisher{client: redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: dialTimeout,
	})}
}

// XAdd appends fields to streamKey.
func (p *GoRedisPublisher) XAdd(ctx context.Context, streamKey string, fields map[string]interface{}) error {
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey,
		Values: fields,
	}).Err()
}

// Close releases the underlying connection pool.
func (p *GoRedisPublisher) Close() error {
	return p.client.Close()
}

// LoggingRedisPublisher is a dependency-free stand-in used when no
// RedisAddr is configured.
type LoggingRedisPublisher struct{}

// XAdd logs the record instead of publishing it anywhere.
func (LoggingRedisPublisher) XAdd(_ context.Context, streamKey string, fields map[string]interface{}) error {
	log.Printf("sink: (no redis configured) would XADD to %q: %v", streamKey, fields)
	return nil
}

// Close is a no-op.
func (LoggingRedisPublisher) Close() error { return nil }

// RedisSink publishes FeatureRecords to a Redis stream for external
// fan-out consumers. This is output-only: no engine state is ever read
// back from Redis.
type RedisSink struct {
	client    RedisPublisher
	streamKey string
}

// NewRedisSink constructs a RedisSink publishing to streamKey via client.
func NewRedisSink(client RedisPublisher, streamKey string) *RedisSink {
	return &RedisSink{client: client, streamKey: streamKey}
}

// Publish appends record to the configured stream.
func (s *RedisSink) Publish(record *engine.FeatureRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fields := map[string]interface{}{
		"src_ip":                  record.SrcIP,
		"window_count":            record.WindowCount,
		"window_span":             record.WindowSpan,
		"pkts_total":              record.PktsTotal,
		"bytes_total":             record.BytesTotal,
		"pkt_rate":                record.PktRate,
		"byte_rate":               record.ByteRate,
		"port_src_unique":         record.PortSrcUnique,
		"port_src_entropy":        record.PortSrcEntropy,
		"pkts_frag_share":         record.PktsFragShare,
		"interwindow_activity":    record.InterwindowActivityRatio,
	}
	return s.client.XAdd(ctx, s.streamKey, fields)
}

// Close releases the underlying client.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
