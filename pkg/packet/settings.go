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

package packet

import (
	"fmt"
	"math"
)

// NsecPerSec is the number of nanoseconds in one second.
const NsecPerSec = 1_000_000_000

// Sec2Nsec converts a floating point seconds value to nanoseconds.
func Sec2Nsec(seconds float64) int64 {
	return int64(seconds * NsecPerSec)
}

// Nsec2Sec converts nanoseconds to floating point seconds.
func Nsec2Sec(nsec int64) float64 {
	return float64(nsec) / NsecPerSec
}

// Defaults applied by NewSettings whenever the corresponding field is
// left zero. DefaultHistoryTimeout is the exception: NewSettings does
// not apply it, since a zero HistoryTimeout resolves to
// HistoryTimeoutCeiling.
const (
	DefaultHistoryMin     = 6
	DefaultHistoryTimeout = 120.0 // seconds
	DefaultPacketsMin     = 15
	DefaultSamplesSize    = 40
	DefaultHistorySize    = 0 // sentinel, resolved to HistorySizeCeiling below

	// HistorySizeCeiling is the "infinite" history bound: memory is finite,
	// so a very large number of total history entries stands in for no
	// limit at all.
	HistorySizeCeiling = 30_000_000

	// HistoryTimeoutCeiling is the "infinite" TTL: used when the caller
	// passes 0 for HistoryTimeout, allowing very large windows to still
	// get pruned eventually.
	HistoryTimeoutCeiling = 14400.0 // seconds
)

// Settings is the plain configuration record the engine is constructed
// from. All fields are informational/bounding only — the actual
// windowing cadence is driven externally by calls to EndWindow.
type Settings struct {
	// WindowLength is the size of a window in seconds. Mandatory.
	WindowLength float64

	// HistoryMin is the minimum number of historical window logs an IP
	// must accumulate before it becomes a retrieval candidate.
	HistoryMin int

	// HistoryTimeout is the number of seconds a history log remains
	// valid for. 0 means "use HistoryTimeoutCeiling".
	HistoryTimeout float64

	// PacketsMin is the minimum number of packets a window must contain
	// for an IP to be recorded into history at all.
	PacketsMin int

	// SamplesSize is the reservoir size used for source-port entropy.
	SamplesSize int

	// HistorySize bounds the total number of WindowHistoryEntry records
	// held across all IPs. 0 means "use HistorySizeCeiling".
	HistorySize int
}

// NewSettings validates and normalizes a Settings value, filling in
// defaults for zero fields and resolving the "0 means infinite"
// sentinels for HistoryTimeout and HistorySize.
func NewSettings(s Settings) (Settings, error) {
	if s.WindowLength <= 0 {
		return Settings{}, fmt.Errorf("%w: window_length is mandatory and must be > 0", ErrConfigInvalid)
	}
	if math.IsNaN(s.WindowLength) || math.IsInf(s.WindowLength, 0) {
		return Settings{}, fmt.Errorf("%w: window_length must be finite", ErrConfigInvalid)
	}

	out := s
	if out.HistoryMin <= 0 {
		out.HistoryMin = DefaultHistoryMin
	}
	if out.PacketsMin <= 0 {
		out.PacketsMin = DefaultPacketsMin
	}
	if out.SamplesSize <= 0 {
		out.SamplesSize = DefaultSamplesSize
	}
	if out.HistorySize <= 0 {
		out.HistorySize = HistorySizeCeiling
	}
	if out.HistoryTimeout <= 0 {
		out.HistoryTimeout = HistoryTimeoutCeiling
	}
	if out.HistorySize < out.HistoryMin {
		return Settings{}, fmt.Errorf("%w: history_size must be >= history_min", ErrConfigInvalid)
	}

	return out, nil
}

// WindowLengthNsec returns the configured window length in nanoseconds.
func (s Settings) WindowLengthNsec() int64 {
	return Sec2Nsec(s.WindowLength)
}

// HistoryTimeoutNsec returns the configured history TTL in nanoseconds.
func (s Settings) HistoryTimeoutNsec() int64 {
	return Sec2Nsec(s.HistoryTimeout)
}

// ReadySetSize is the bound used for the LRU ready-IP set: history_size
// divided by history_min.
func (s Settings) ReadySetSize() int {
	n := s.HistorySize / s.HistoryMin
	if n <= 0 {
		n = 1
	}
	return n
}

// flatHistoryEntrySize is the approximate on-the-wire size in bytes of a
// single WindowHistoryEntry record, used by HistoryElementsForMemory.
// 19 numeric fields (see internal/window.HistoryEntry): one u32 window
// id plus 18 further 4-or-8-byte fields. The figure is an estimate and
// is below the 140 bytes those fields take in HistoryEntry itself.
const flatHistoryEntrySize = 112

// HistoryElementsForMemory converts a memory budget in mebibytes into a
// HistorySize bound.
func HistoryElementsForMemory(memoryMiB int) int {
	bytesAvailable := float64(memoryMiB) * 1024 * 1024
	return int(math.Ceil(bytesAvailable / flatHistoryEntrySize))
}
