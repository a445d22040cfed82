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

package engine

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"windower/internal/metrics"
	"windower/pkg/packet"
)

func mustSettings(t *testing.T, s packet.Settings) packet.Settings {
	t.Helper()
	out, err := packet.NewSettings(s)
	if err != nil {
		t.Fatalf("NewSettings: %v", err)
	}
	return out
}

// TestSubThresholdWindowDropped: 5 packets with packets_min = 10
// yields no history entry for the IP.
func TestSubThresholdWindowDropped(t *testing.T) {
	s := mustSettings(t, packet.Settings{WindowLength: 1, PacketsMin: 10, HistoryMin: 1})
	e := New(s)

	for i := 0; i < 5; i++ {
		e.Log(packet.Features{Time: int64(i) * 1e6, SrcIP: "10.0.0.2", DstIP: "10.0.0.9", LenHeaders: 40, LenPayload: 0})
	}
	e.EndWindow()

	if _, ok := e.windowHistory.Get("10.0.0.2"); ok {
		t.Fatal("expected no history entry for sub-threshold window")
	}
}

// TestExactlyPacketsMinRetained: a window with exactly packets_min
// packets is retained, one fewer is not.
func TestExactlyPacketsMinRetained(t *testing.T) {
	s := mustSettings(t, packet.Settings{WindowLength: 1, PacketsMin: 10, HistoryMin: 1})
	e := New(s)

	for i := 0; i < 10; i++ {
		e.Log(packet.Features{Time: int64(i) * 1e6, SrcIP: "10.0.0.3", DstIP: "10.0.0.9", LenHeaders: 40, LenPayload: 0})
	}
	e.EndWindow()

	hist, ok := e.windowHistory.Get("10.0.0.3")
	if !ok || len(hist) != 1 {
		t.Fatalf("expected exactly one retained window, got ok=%v hist=%v", ok, hist)
	}
}

func TestEndWindowOnEmptyCurrentIsNoOpExceptIncrement(t *testing.T) {
	s := mustSettings(t, packet.Settings{WindowLength: 1})
	e := New(s)

	before := e.windowID
	e.EndWindow()
	if e.windowID != before+1 {
		t.Fatalf("windowID = %d, want %d", e.windowID, before+1)
	}
}

// TestReadySetMonotonicity: once ready, an IP leaves only via
// eviction, retrieval, or Clear.
func TestReadySetMonotonicity(t *testing.T) {
	s := mustSettings(t, packet.Settings{WindowLength: 1, PacketsMin: 1, HistoryMin: 1, HistoryTimeout: 3600})
	e := New(s)

	e.Log(packet.Features{Time: 1, SrcIP: "10.0.0.4", DstIP: "10.0.0.9", LenHeaders: 40, LenPayload: 0})
	e.EndWindow()

	candidates := e.FindCandidates()
	if len(candidates) != 1 || candidates[0] != "10.0.0.4" {
		t.Fatalf("FindCandidates() = %v, want [10.0.0.4]", candidates)
	}

	res, ok := e.RetrieveStatistics("10.0.0.4", NewRetrieveOptions())
	if !ok || res.Record == nil {
		t.Fatal("expected a retrievable record")
	}

	if candidates := e.FindCandidates(); len(candidates) != 0 {
		t.Fatalf("FindCandidates() after retrieval = %v, want empty", candidates)
	}
}

func TestRetrieveTwiceReturnsAbsentSecondTime(t *testing.T) {
	s := mustSettings(t, packet.Settings{WindowLength: 1, PacketsMin: 1, HistoryMin: 1})
	e := New(s)

	e.Log(packet.Features{Time: 1, SrcIP: "10.0.0.5", DstIP: "10.0.0.9", LenHeaders: 40, LenPayload: 0})
	e.EndWindow()

	if _, ok := e.RetrieveStatistics("10.0.0.5", NewRetrieveOptions()); !ok {
		t.Fatal("expected first retrieval to succeed")
	}
	if _, ok := e.RetrieveStatistics("10.0.0.5", NewRetrieveOptions()); ok {
		t.Fatal("expected second retrieval to report absent")
	}
}

func TestFragmentationShare(t *testing.T) {
	s := mustSettings(t, packet.Settings{WindowLength: 1, PacketsMin: 1, HistoryMin: 1})
	e := New(s)

	for i := 0; i < 20; i++ {
		e.Log(packet.Features{
			Time: int64(i) * 1e6, SrcIP: "10.0.0.6", DstIP: "10.0.0.9",
			ProtoL4: packet.ProtoUDP, LenHeaders: 40, LenPayload: 0, Fragmented: i < 5,
		})
	}
	e.EndWindow()

	res, ok := e.RetrieveStatistics("10.0.0.6", NewRetrieveOptions())
	if !ok || res.Record == nil {
		t.Fatal("expected a record")
	}
	if got := res.Record.PktsFragShare; got < 0.24 || got > 0.26 {
		t.Fatalf("PktsFragShare = %v, want ~0.25", got)
	}
}

// TestHistoryMinClamp: logs_to_keep clamps to history_min even when
// every window is past the timeout.
func TestHistoryMinClamp(t *testing.T) {
	s := mustSettings(t, packet.Settings{WindowLength: 1, PacketsMin: 1, HistoryMin: 6, HistoryTimeout: 10})
	e := New(s)

	for w := 0; w < 6; w++ {
		e.Log(packet.Features{Time: int64(w) * 1e9, SrcIP: "10.0.0.7", DstIP: "10.0.0.9", LenHeaders: 40, LenPayload: 0})
		e.EndWindow()
	}

	currentTime := int64(100) * 1e9
	opts := NewRetrieveOptions()
	opts.CurrentTime = &currentTime

	res, ok := e.RetrieveStatistics("10.0.0.7", opts)
	if !ok || res.Record == nil {
		t.Fatal("expected a record")
	}
	if res.Record.WindowCount != 6 {
		t.Fatalf("WindowCount = %d, want 6 (clamped to history_min)", res.Record.WindowCount)
	}
}

// TestIPsEvictedMetricIncrementsOnBoundEviction wires a Registry into
// the engine and drives enough distinct IPs through it to overflow a
// deliberately tiny history_size, verifying windower_ips_evicted_total
// actually increments rather than staying dead at zero.
func TestIPsEvictedMetricIncrementsOnBoundEviction(t *testing.T) {
	s := mustSettings(t, packet.Settings{
		WindowLength: 1, PacketsMin: 1, HistoryMin: 1, HistoryTimeout: 3600,
		HistorySize: 2,
	})
	e := New(s)
	reg := metrics.New(prometheus.NewRegistry())
	e.SetMetrics(reg)

	for _, ip := range []string{"10.0.1.1", "10.0.1.2", "10.0.1.3"} {
		e.Log(packet.Features{Time: 1, SrcIP: ip, DstIP: "10.0.0.9", LenHeaders: 40, LenPayload: 0})
		e.EndWindow()
	}

	if got := testutil.ToFloat64(reg.IPsEvictedTotal); got <= 0 {
		t.Fatalf("IPsEvictedTotal = %v, want > 0 after overflowing history_size", got)
	}
}

func TestWindowSpanWrapsCorrectly(t *testing.T) {
	// last == first yields span 1.
	if got := windowSpan(5, 5); got != 1 {
		t.Errorf("windowSpan(5,5) = %d, want 1", got)
	}
	// ordinary forward span.
	if got := windowSpan(5, 8); got != 4 {
		t.Errorf("windowSpan(5,8) = %d, want 4", got)
	}
	// wraps past 2^32.
	if got := windowSpan(4294967295, 1); got != 3 {
		t.Errorf("windowSpan(2^32-1,1) = %d, want 3", got)
	}
}

func TestClearResetsStateButKeepsConfig(t *testing.T) {
	s := mustSettings(t, packet.Settings{WindowLength: 1, PacketsMin: 1, HistoryMin: 1})
	e := New(s)

	e.Log(packet.Features{Time: 1, SrcIP: "10.0.0.8", DstIP: "10.0.0.9", LenHeaders: 40, LenPayload: 0})
	e.EndWindow()
	e.Clear()

	if len(e.FindCandidates()) != 0 {
		t.Fatal("expected no candidates after Clear()")
	}
	if e.windowID != 0 {
		t.Fatalf("windowID after Clear() = %d, want 0", e.windowID)
	}
	if e.settings.PacketsMin != 1 {
		t.Fatalf("settings.PacketsMin after Clear() = %d, want 1 (config must survive)", e.settings.PacketsMin)
	}
}
