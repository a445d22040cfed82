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

// Package engine ties the per-IP window aggregator, the bounded window
// history, and the ready-set together into the single EngineState the
// whole module revolves around. It is single-writer: every exported
// method must be called from one goroutine (see internal/service for
// a channel-driven wrapper).
package engine

import (
	"time"

	"windower/internal/cache"
	"windower/internal/metrics"
	"windower/internal/window"
	"windower/pkg/packet"
)

// EngineState is the exclusive owner of all live per-IP aggregators,
// the bounded window history, and the ready-IP set.
type EngineState struct {
	settings packet.Settings

	windowCurrent map[string]*window.Aggregator
	windowHistory *cache.TTLCache[window.HistoryEntry]
	readyIPs      *cache.LRUSet

	windowID         uint32
	windowLengthNs   int64
	historyTimeoutNs int64

	metrics *metrics.Registry
}

// SetMetrics attaches a metrics Registry the engine reports counts and
// gauges to. Optional — a nil Registry (the default) disables
// reporting entirely.
func (e *EngineState) SetMetrics(m *metrics.Registry) {
	e.metrics = m
}

// New constructs an EngineState from validated settings.
func New(settings packet.Settings) *EngineState {
	e := &EngineState{}
	e.configure(settings)
	return e
}

func (e *EngineState) configure(settings packet.Settings) {
	e.settings = settings
	e.windowCurrent = make(map[string]*window.Aggregator)
	e.windowHistory = cache.NewTTLCache[window.HistoryEntry](
		settings.HistorySize,
		time.Duration(settings.HistoryTimeoutNsec())*time.Nanosecond,
	)
	e.readyIPs = cache.NewLRUSet(settings.ReadySetSize())
	e.windowHistory.SetOnEvict(e.onHistoryEvicted)
	e.readyIPs.SetOnEvict(e.onReadySetEvicted)
	e.windowID = 0
	e.windowLengthNs = settings.WindowLengthNsec()
	e.historyTimeoutNs = settings.HistoryTimeoutNsec()
}

// onHistoryEvicted fires when window_history drops an IP's whole entry
// list to stay within its total-entry bound.
func (e *EngineState) onHistoryEvicted(ip string) {
	if e.metrics != nil {
		e.metrics.IPsEvictedTotal.Inc()
	}
}

// onReadySetEvicted fires when the ready set drops its
// least-recently-used IP to stay within its size bound.
func (e *EngineState) onReadySetEvicted() {
	if e.metrics != nil {
		e.metrics.IPsEvictedTotal.Inc()
	}
}

// Clear resets all mutable state, preserving configuration.
func (e *EngineState) Clear() {
	e.windowCurrent = make(map[string]*window.Aggregator)
	e.windowID = 0
	e.windowHistory.Clear()
	e.readyIPs.Clear()
}

// SetWindowLength updates the informational window length used only
// by intrawindow_activity_ratio computation; it never touches live
// aggregation state.
func (e *EngineState) SetWindowLength(seconds float64) {
	e.windowLengthNs = packet.Sec2Nsec(seconds)
}

// Log routes a packet observation to its source IP's aggregator,
// creating the aggregator on first sight within the current window.
func (e *EngineState) Log(pf packet.Features) {
	agg, ok := e.windowCurrent[pf.SrcIP]
	if !ok {
		agg = window.NewAggregator(e.settings.SamplesSize)
		e.windowCurrent[pf.SrcIP] = agg
		if e.metrics != nil {
			e.metrics.ActiveIPsGauge.Set(float64(len(e.windowCurrent)))
		}
	}
	agg.Log(pf)
}

// EndWindow finalizes the currently active window: every IP with at
// least PacketsMin packets is folded into window history and
// re-evaluated for ready-set membership; the rest are dropped
// silently. window_id increments exactly once per call, regardless of
// how many windows elapsed upstream — see internal/engine.Driver for
// the gap-advancing logic that decides how often to call this.
func (e *EngineState) EndWindow() {
	curWindowID := e.windowID
	e.windowID++

	for ip, agg := range e.windowCurrent {
		if agg.PktsTotal() < uint64(e.settings.PacketsMin) {
			if e.metrics != nil {
				e.metrics.WindowsDroppedTotal.Inc()
			}
			continue
		}

		entry := agg.Finalize(curWindowID)
		e.pushHistory(ip, entry)
		if e.metrics != nil {
			e.metrics.WindowsClosedTotal.Inc()
		}
	}

	e.windowCurrent = make(map[string]*window.Aggregator)
	if e.metrics != nil {
		e.metrics.ActiveIPsGauge.Set(0)
		e.metrics.HistoryEntriesGauge.Set(float64(e.windowHistory.Total()))
	}
}

func (e *EngineState) pushHistory(ip string, entry window.HistoryEntry) {
	e.windowHistory.Append(ip, entry)

	hist, _ := e.windowHistory.Get(ip)
	if len(hist) < e.settings.HistoryMin {
		return
	}

	boundaryLogTime := hist[len(hist)-e.settings.HistoryMin].TstampStart
	if e.historyTimeoutNs > entry.TstampEnd-boundaryLogTime {
		e.readyIPs.Add(ip)
		if e.metrics != nil {
			e.metrics.IPsReadyTotal.Inc()
		}
		return
	}

	// Boundary log has already expired: a list of exactly HistoryMin
	// entries drops its oldest (the expired boundary); a longer list is
	// cut to its last HistoryMin entries, dropping the stale prefix.
	if len(hist) == e.settings.HistoryMin {
		e.windowHistory.Set(ip, hist[1:])
	} else {
		e.windowHistory.Set(ip, hist[len(hist)-e.settings.HistoryMin:])
	}
}

// FindCandidates returns a snapshot of IPs with enough recent,
// non-expired history to be summarized.
func (e *EngineState) FindCandidates() []string {
	return e.readyIPs.Keys()
}
