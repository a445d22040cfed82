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

import "windower/pkg/packet"

// Driver decides, from a stream of packet timestamps, when enough
// simulated time has elapsed to close the currently open window. It
// supplements the core EngineState (which only reacts to explicit
// EndWindow calls) with the gap-advancing policy dataset-style
// offline processing and live capture both need: advance the window
// start forward by whole window intervals and close exactly once per
// Process call that crosses a boundary, regardless of how many
// intervals elapsed.
type Driver struct {
	engine           *EngineState
	windowIntervalNs int64
	lastWindowStart  int64
	started          bool
	onReady          func(ip string)
}

// NewDriver constructs a Driver fronting engine, closing windows every
// windowIntervalSeconds of packet time.
func NewDriver(e *EngineState, windowIntervalSeconds float64, onReady func(ip string)) *Driver {
	return &Driver{
		engine:           e,
		windowIntervalNs: packet.Sec2Nsec(windowIntervalSeconds),
		onReady:          onReady,
	}
}

// Process logs pf, first advancing and closing windows as needed based
// on how far pf.Time has moved past the last window boundary.
func (d *Driver) Process(pf packet.Features) {
	timeSinceLastWindow := pf.Time - d.lastWindowStart

	switch {
	case !d.started:
		d.started = true
		d.lastWindowStart = pf.Time
	case timeSinceLastWindow > d.windowIntervalNs:
		windowsElapsed := timeSinceLastWindow / d.windowIntervalNs
		d.lastWindowStart += windowsElapsed * d.windowIntervalNs
		d.EndWindow()
	}

	d.engine.Log(pf)
}

// EndWindow closes the engine's current window and notifies onReady
// (if set) for every IP newly eligible for retrieval.
func (d *Driver) EndWindow() {
	d.engine.EndWindow()

	if d.onReady == nil {
		return
	}
	for _, ip := range d.engine.FindCandidates() {
		d.onReady(ip)
	}
}

// Clear resets the driver's windowing clock and the underlying engine.
func (d *Driver) Clear() {
	d.lastWindowStart = 0
	d.started = false
	d.engine.Clear()
}
