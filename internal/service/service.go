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

// Package service fronts an engine.EngineState with a channel-driven
// background worker, so packet ingestion can happen on any number of
// producer goroutines while the engine's single-writer contract
// (internal/engine) is honored by one dedicated worker goroutine: a
// bounded ingress channel, a single consumer goroutine, and a
// ticker-driven periodic action alongside per-item processing.
package service

import (
	"sync"
	"time"

	"windower/internal/engine"
	"windower/internal/sink"
	"windower/pkg/packet"
)

// Options configure the background worker.
type Options struct {
	// Buffer is the bounded capacity of the ingress channel. Default 4096.
	Buffer int
	// WindowIntervalSeconds is the packet-time window length the
	// underlying Driver advances by. Required.
	WindowIntervalSeconds float64
	// IdleFlushInterval, if positive, forces a wall-clock EndWindow on
	// this cadence independent of packet arrivals, bounding staleness
	// for source IPs that go quiet before their window would otherwise
	// close. Optional: leave at 0 for pure packet-time-driven closing.
	IdleFlushInterval time.Duration
}

// Service ingests PacketFeatures on a channel and drives an
// engine.Driver on a single dedicated worker goroutine, publishing
// every IP's retrieved statistics to sinks as it becomes ready.
type Service struct {
	driver *engine.Driver
	state  *engine.EngineState
	sinks  []sink.Sink

	in     chan packet.Features
	stopCh chan struct{}
	doneCh chan struct{}
	opts   Options
	once   sync.Once
}

// New constructs a Service driving state, publishing every ready IP's
// retrieved statistics to sinks.
func New(state *engine.EngineState, sinks []sink.Sink, opts Options) *Service {
	if opts.Buffer <= 0 {
		opts.Buffer = 4096
	}

	s := &Service{
		state:  state,
		sinks:  sinks,
		in:     make(chan packet.Features, opts.Buffer),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		opts:   opts,
	}
	s.driver = engine.NewDriver(state, opts.WindowIntervalSeconds, s.publish)
	return s
}

// publish retrieves and fans out the current statistics for ip, the
// Driver's onReady callback.
func (s *Service) publish(ip string) {
	result, ok := s.state.RetrieveStatistics(ip, engine.NewRetrieveOptions())
	if !ok || result.Record == nil {
		return
	}
	for _, sk := range s.sinks {
		_ = sk.Publish(result.Record)
	}
}

// Start launches the background worker. Safe to call multiple times;
// only the first call has any effect.
func (s *Service) Start() {
	s.once.Do(func() {
		go s.run()
	})
}

// Stop asks the worker to drain its queue, perform a final EndWindow,
// and exit; it blocks until the worker has stopped.
func (s *Service) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// Ingest enqueues a packet observation, blocking if the buffer is full.
func (s *Service) Ingest(pf packet.Features) {
	s.in <- pf
}

// TryIngest attempts to enqueue without blocking. Returns false if the
// buffer is full.
func (s *Service) TryIngest(pf packet.Features) bool {
	select {
	case s.in <- pf:
		return true
	default:
		return false
	}
}

func (s *Service) run() {
	defer close(s.doneCh)

	var tickCh <-chan time.Time
	if s.opts.IdleFlushInterval > 0 {
		ticker := time.NewTicker(s.opts.IdleFlushInterval)
		defer ticker.Stop()
		tickCh = ticker.C
	}

	for {
		select {
		case pf := <-s.in:
			s.driver.Process(pf)
		case <-tickCh:
			s.driver.EndWindow()
		case <-s.stopCh:
			s.drain()
			return
		}
	}
}

// drain processes whatever is still queued, then closes out the
// in-flight window so nothing buffered is lost on shutdown.
func (s *Service) drain() {
	for {
		select {
		case pf := <-s.in:
			s.driver.Process(pf)
		default:
			s.driver.EndWindow()
			return
		}
	}
}
