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

package service

import (
	"sync"
	"testing"
	"time"

	"windower/internal/engine"
	"windower/internal/sink"
	"windower/pkg/packet"
)

type fakeSink struct {
	mu      sync.Mutex
	records []*engine.FeatureRecord
}

var _ sink.Sink = (*fakeSink)(nil)

func (f *fakeSink) Publish(r *engine.FeatureRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, r)
	return nil
}

func (f *fakeSink) Close() error { return nil }

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func mustSettings(t *testing.T, s packet.Settings) packet.Settings {
	t.Helper()
	out, err := packet.NewSettings(s)
	if err != nil {
		t.Fatalf("NewSettings: %v", err)
	}
	return out
}

func burst(srcIP string, startNs int64, n int) []packet.Features {
	out := make([]packet.Features, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, packet.Features{
			Time:       startNs + int64(i)*1e6,
			SrcIP:      srcIP,
			DstIP:      "10.0.0.9",
			ProtoL4:    packet.ProtoTCP,
			SrcPort:    uint16(1000 + i),
			DstPort:    80,
			LenHeaders: 40,
			LenPayload: 100,
		})
	}
	return out
}

// TestServiceIngestAndPublishOnWindowGap drives enough packets through
// two simulated window intervals that the gap-advancing Driver closes
// the first window, and verifies the configured sink receives the
// resulting record once the IP is ready (history_min = 1 means the
// very first finalized window makes it ready).
func TestServiceIngestAndPublishOnWindowGap(t *testing.T) {
	settings := mustSettings(t, packet.Settings{WindowLength: 1, PacketsMin: 3, HistoryMin: 1})
	state := engine.New(settings)
	fs := &fakeSink{}

	svc := New(state, []sink.Sink{fs}, Options{WindowIntervalSeconds: 1})
	svc.Start()
	defer svc.Stop()

	for _, pf := range burst("10.0.0.2", 0, 5) {
		svc.Ingest(pf)
	}
	// Push a packet 2 seconds later to force the Driver across the
	// window boundary and close the first window.
	svc.Ingest(packet.Features{
		Time: int64(2 * time.Second), SrcIP: "10.0.0.2", DstIP: "10.0.0.9",
		ProtoL4: packet.ProtoTCP, SrcPort: 2000, DstPort: 80,
		LenHeaders: 40, LenPayload: 100,
	})

	deadline := time.Now().Add(2 * time.Second)
	for fs.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if fs.count() != 1 {
		t.Fatalf("sink got %d records, want 1", fs.count())
	}
	if fs.records[0].SrcIP != "10.0.0.2" {
		t.Fatalf("record SrcIP = %q, want 10.0.0.2", fs.records[0].SrcIP)
	}
}

func TestServiceTryIngestRejectsWhenFull(t *testing.T) {
	settings := mustSettings(t, packet.Settings{WindowLength: 1, PacketsMin: 3, HistoryMin: 1})
	state := engine.New(settings)

	svc := New(state, nil, Options{WindowIntervalSeconds: 1, Buffer: 1})
	// Do not Start the worker, so the channel never drains.
	if !svc.TryIngest(packet.Features{Time: 1, SrcIP: "a", DstIP: "b", LenHeaders: 1}) {
		t.Fatal("expected first TryIngest with free buffer slot to succeed")
	}
	if svc.TryIngest(packet.Features{Time: 2, SrcIP: "a", DstIP: "b", LenHeaders: 1}) {
		t.Fatal("expected second TryIngest against a full buffer to fail")
	}
}

func TestServiceStopFlushesFinalWindow(t *testing.T) {
	settings := mustSettings(t, packet.Settings{WindowLength: 1, PacketsMin: 3, HistoryMin: 1})
	state := engine.New(settings)
	fs := &fakeSink{}

	svc := New(state, []sink.Sink{fs}, Options{WindowIntervalSeconds: 1})
	svc.Start()

	for _, pf := range burst("10.0.0.3", 0, 5) {
		svc.Ingest(pf)
	}
	svc.Stop()

	if fs.count() != 1 {
		t.Fatalf("sink got %d records after Stop, want 1", fs.count())
	}
}

func TestServiceIdleFlushIntervalClosesStaleWindow(t *testing.T) {
	settings := mustSettings(t, packet.Settings{WindowLength: 1, PacketsMin: 3, HistoryMin: 1})
	state := engine.New(settings)
	fs := &fakeSink{}

	svc := New(state, []sink.Sink{fs}, Options{WindowIntervalSeconds: 1, IdleFlushInterval: 10 * time.Millisecond})
	svc.Start()
	defer svc.Stop()

	for _, pf := range burst("10.0.0.4", 0, 5) {
		svc.Ingest(pf)
	}

	deadline := time.Now().Add(2 * time.Second)
	for fs.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if fs.count() != 1 {
		t.Fatalf("sink got %d records, want 1 after idle flush", fs.count())
	}
}
