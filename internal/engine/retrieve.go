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
	"math"
	"time"

	"windower/internal/window"
	"windower/pkg/packet"
)

// FeatureRecord is the single-row summary-plus-inter-window feature
// vector produced by RetrieveStatistics, matching the field order and
// types of the external schema.
type FeatureRecord struct {
	SrcIP       string
	WindowCount uint32
	WindowSpan  uint32

	PktsTotal  uint64
	BytesTotal uint64
	PktRate    float32
	ByteRate   float32

	PktArrivalsAvg float64
	PktArrivalsStd float64

	PktSizeMin uint32
	PktSizeMax uint32
	PktSizeAvg float32
	PktSizeStd float32

	ProtoTCPShare  float32
	ProtoUDPShare  float32
	ProtoICMPShare float32

	PortSrcUnique  float32
	PortSrcEntropy float32

	ConnPktsAvg         float32
	PktsFragShare       float32
	HdrsPayloadRatioAvg float32

	PktsTotalStd             float32
	BytesTotalStd            float32
	PktSizeAvgStd            float32
	PktSizeStdStd            float32
	PktArrivalsAvgStd        float32
	PortSrcUniqueStd         float32
	PortSrcEntropyStd        float32
	ConnPktsAvgStd           float32
	PktsFragShareStd         float32
	HdrsPayloadRatioAvgStd   float32
	DominantProtoRatioStd    float32
	IntrawindowActivityRatio float32
	InterwindowActivityRatio float32
}

// RetrieveOptions configures RetrieveStatistics.
type RetrieveOptions struct {
	// CurrentTime, when set, bounds how many trailing history entries
	// are considered "still valid" by history timeout, counted from the
	// most recent backwards.
	CurrentTime *int64

	// ComputeInterwindowStats controls whether inter-window statistics
	// are computed (ignored when DumpWindows is true). Defaults to true
	// via NewRetrieveOptions.
	ComputeInterwindowStats bool

	// WindowCnt, when set, replaces the full history length as the
	// "how many trailing windows" count. A set CurrentTime takes
	// precedence over it.
	WindowCnt *int

	// DumpWindows, when true, skips summarization and returns the raw
	// trailing window entries instead.
	DumpWindows bool

	// DeleteAfter controls whether the IP's history is deleted once
	// retrieved. Defaults to true via NewRetrieveOptions.
	DeleteAfter bool
}

// NewRetrieveOptions returns the default options: all available
// history, inter-window stats computed, history deleted after read.
func NewRetrieveOptions() RetrieveOptions {
	return RetrieveOptions{ComputeInterwindowStats: true, DeleteAfter: true}
}

// RetrievalResult is the outcome of RetrieveStatistics: either a
// summarized Record, or (when DumpWindows was requested) the raw
// Windows slice.
type RetrievalResult struct {
	Record  *FeatureRecord
	Windows []window.HistoryEntry
}

// RetrieveStatistics synthesizes a feature record for ip from its
// rolling window history. Returns ok=false if ip has no history
// (absent state, not an error).
func (e *EngineState) RetrieveStatistics(ip string, opts RetrieveOptions) (RetrievalResult, bool) {
	if e.metrics != nil {
		start := time.Now()
		defer func() {
			e.metrics.RetrievalLatencySecs.Observe(time.Since(start).Seconds())
		}()
	}

	hist, ok := e.windowHistory.Get(ip)
	if !ok {
		return RetrievalResult{}, false
	}

	if opts.DeleteAfter {
		e.windowHistory.Delete(ip)
	}
	e.readyIPs.Remove(ip)

	logsToKeep := len(hist)
	if opts.WindowCnt != nil {
		logsToKeep = *opts.WindowCnt
	}

	if e.historyTimeoutNs != 0 && opts.CurrentTime != nil {
		logsToKeep = 0
		for i := len(hist) - 1; i >= 0; i-- {
			if *opts.CurrentTime-hist[i].TstampStart < e.historyTimeoutNs {
				logsToKeep++
			} else {
				break
			}
		}
	}

	if logsToKeep < e.settings.HistoryMin {
		logsToKeep = e.settings.HistoryMin
	}
	if logsToKeep > len(hist) {
		logsToKeep = len(hist)
	}

	stats := hist[len(hist)-logsToKeep:]

	if opts.DumpWindows {
		return RetrievalResult{Windows: stats}, true
	}

	record := summarizeWindows(ip, stats)
	if opts.ComputeInterwindowStats {
		addInterwindowStats(record, stats, e.windowLengthNs)
	}

	return RetrievalResult{Record: record}, true
}

// windowSpan returns the circular distance between two window IDs,
// defined so that last == first yields span 1. uint32 arithmetic wraps
// modulo 2^32 natively, so the wraparound case falls out of ordinary
// subtraction.
func windowSpan(first, last uint32) uint32 {
	return last - first + 1
}

func summarizeWindows(ip string, stats []window.HistoryEntry) *FeatureRecord {
	n := len(stats)
	r := &FeatureRecord{SrcIP: ip}

	r.WindowCount = uint32(n)
	r.WindowSpan = windowSpan(stats[0].WindowID, stats[n-1].WindowID)

	var pktsTotal, bytesTotal uint64
	var arrivalsAvg, arrivalsStd, sizeAvg, sizeStd, portUnique, portEntropy, connAvg, hdrRatio float64
	var tcpShare, udpShare, icmpShare, fragShare float64
	var sizeMin, sizeMax uint32 = stats[0].PktSizeMin, stats[0].PktSizeMax

	for _, w := range stats {
		pktsTotal += w.PktsTotal
		bytesTotal += w.BytesTotal
		arrivalsAvg += w.PktArrivalsAvg
		arrivalsStd += w.PktArrivalsStd
		sizeAvg += w.PktSizeAvg
		sizeStd += w.PktSizeStd
		portUnique += float64(w.PortSrcUnique)
		portEntropy += w.PortSrcEntropy
		connAvg += w.ConnPktsAvg
		hdrRatio += w.HdrsPayloadRatioAvg

		total := float64(w.PktsTotal)
		tcpShare += float64(w.TCPCount) / total
		udpShare += float64(w.UDPCount) / total
		icmpShare += float64(w.ICMPCount) / total
		fragShare += float64(w.FragCount) / total

		if w.PktSizeMin < sizeMin {
			sizeMin = w.PktSizeMin
		}
		if w.PktSizeMax > sizeMax {
			sizeMax = w.PktSizeMax
		}
	}

	fn := float64(n)
	r.PktsTotal = pktsTotal / uint64(n)
	r.BytesTotal = bytesTotal / uint64(n)
	r.PktArrivalsAvg = arrivalsAvg / fn
	r.PktArrivalsStd = arrivalsStd / fn
	r.PktSizeAvg = float32(sizeAvg / fn)
	r.PktSizeStd = float32(sizeStd / fn)
	r.ProtoTCPShare = float32(tcpShare / fn)
	r.ProtoUDPShare = float32(udpShare / fn)
	r.ProtoICMPShare = float32(icmpShare / fn)
	r.PortSrcUnique = float32(portUnique / fn)
	r.PortSrcEntropy = float32(portEntropy / fn)
	r.ConnPktsAvg = float32(connAvg / fn)
	r.PktsFragShare = float32(fragShare / fn)
	r.HdrsPayloadRatioAvg = float32(hdrRatio / fn)

	r.PktSizeMin = sizeMin
	r.PktSizeMax = sizeMax

	spanSeconds := packet.Nsec2Sec(stats[n-1].TstampEnd - stats[0].TstampStart)
	if spanSeconds > 0 {
		r.PktRate = float32(float64(pktsTotal) / spanSeconds)
		r.ByteRate = float32(float64(bytesTotal) / spanSeconds)
	}

	return r
}

func addInterwindowStats(r *FeatureRecord, stats []window.HistoryEntry, windowLengthNs int64) {
	n := len(stats)

	pktsTotal := make([]float64, n)
	bytesTotal := make([]float64, n)
	sizeAvg := make([]float64, n)
	sizeStd := make([]float64, n)
	arrivalsAvg := make([]float64, n)
	portUnique := make([]float64, n)
	portEntropy := make([]float64, n)
	connAvg := make([]float64, n)
	fragShare := make([]float64, n)
	hdrRatio := make([]float64, n)

	var totalTCP, totalUDP, totalICMP uint64
	var totalActivity int64

	for i, w := range stats {
		pktsTotal[i] = float64(w.PktsTotal)
		bytesTotal[i] = float64(w.BytesTotal)
		sizeAvg[i] = w.PktSizeAvg
		sizeStd[i] = w.PktSizeStd
		arrivalsAvg[i] = w.PktArrivalsAvg
		portUnique[i] = float64(w.PortSrcUnique)
		portEntropy[i] = w.PortSrcEntropy
		connAvg[i] = w.ConnPktsAvg
		fragShare[i] = float64(w.FragCount) / float64(w.PktsTotal)
		hdrRatio[i] = w.HdrsPayloadRatioAvg

		totalTCP += w.TCPCount
		totalUDP += w.UDPCount
		totalICMP += w.ICMPCount
		totalActivity += w.TstampEnd - w.TstampStart
	}

	r.PktsTotalStd = float32(populationStd(pktsTotal))
	r.BytesTotalStd = float32(populationStd(bytesTotal))
	r.PktSizeAvgStd = float32(populationStd(sizeAvg))
	r.PktSizeStdStd = float32(populationStd(sizeStd))
	r.PktArrivalsAvgStd = float32(populationStd(arrivalsAvg))
	r.PortSrcUniqueStd = float32(populationStd(portUnique))
	r.PortSrcEntropyStd = float32(populationStd(portEntropy))
	r.ConnPktsAvgStd = float32(populationStd(connAvg))
	r.PktsFragShareStd = float32(populationStd(fragShare))
	r.HdrsPayloadRatioAvgStd = float32(populationStd(hdrRatio))

	// Dominant L4 protocol across the suffix: ties favor TCP over UDP
	// over ICMP.
	dominant := make([]float64, n)
	switch {
	case totalTCP >= totalUDP && totalTCP >= totalICMP:
		for i, w := range stats {
			dominant[i] = float64(w.TCPCount) / float64(w.PktsTotal)
		}
	case totalUDP >= totalICMP:
		for i, w := range stats {
			dominant[i] = float64(w.UDPCount) / float64(w.PktsTotal)
		}
	default:
		for i, w := range stats {
			dominant[i] = float64(w.ICMPCount) / float64(w.PktsTotal)
		}
	}
	r.DominantProtoRatioStd = float32(populationStd(dominant))

	totalWindowTime := float64(n) * float64(windowLengthNs)
	if totalWindowTime > 0 {
		r.IntrawindowActivityRatio = float32(float64(totalActivity) / totalWindowTime)
	}

	span := windowSpan(stats[0].WindowID, stats[n-1].WindowID)
	if span > 0 {
		r.InterwindowActivityRatio = float32(float64(n) / float64(span))
	}
}

func populationStd(xs []float64) float64 {
	n := float64(len(xs))
	if n == 0 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= n

	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / n)
}
