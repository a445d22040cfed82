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

	"windower/pkg/packet"
)

// TestWindowGapAdvancesAndClosesOnce: two packets five window-lengths
// apart. The driver must advance its window origin by five intervals
// and call EndWindow exactly once, bumping window_id by exactly one
// (not five).
func TestWindowGapAdvancesAndClosesOnce(t *testing.T) {
	s := mustSettings(t, packet.Settings{WindowLength: 1, PacketsMin: 1, HistoryMin: 1})
	e := New(s)
	d := NewDriver(e, 1.0, nil)

	d.Process(packet.Features{Time: 0, SrcIP: "10.0.0.3", DstIP: "10.0.0.9", LenHeaders: 40, LenPayload: 0})
	d.Process(packet.Features{Time: 5_000_000_000, SrcIP: "10.0.0.3", DstIP: "10.0.0.9", LenHeaders: 40, LenPayload: 0})

	if e.windowID != 1 {
		t.Fatalf("windowID = %d, want 1 (one increment per EndWindow call)", e.windowID)
	}

	hist, ok := e.windowHistory.Get("10.0.0.3")
	if !ok || len(hist) != 1 {
		t.Fatalf("expected the first packet's window closed into history, got ok=%v hist=%v", ok, hist)
	}

	// The second packet starts a fresh window at the shifted origin and
	// is still live (not yet closed).
	if _, ok := e.windowCurrent["10.0.0.3"]; !ok {
		t.Fatal("expected the second packet to be live in the new window")
	}
}

func TestDriverOnReadyCallback(t *testing.T) {
	s := mustSettings(t, packet.Settings{WindowLength: 1, PacketsMin: 1, HistoryMin: 1})
	e := New(s)

	var ready []string
	d := NewDriver(e, 1.0, func(ip string) { ready = append(ready, ip) })

	d.Process(packet.Features{Time: 0, SrcIP: "10.0.0.4", DstIP: "10.0.0.9", LenHeaders: 40, LenPayload: 0})
	d.EndWindow()

	if len(ready) != 1 || ready[0] != "10.0.0.4" {
		t.Fatalf("onReady callback = %v, want [10.0.0.4]", ready)
	}
}
