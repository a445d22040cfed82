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

// Package window implements the per-source-IP live window aggregator:
// one Aggregator tracks all statistics for a single IP within the
// currently open window, and Finalize folds it into a flat
// HistoryEntry record when the window closes.
package window

import (
	"math"
	"strconv"

	"windower/pkg/hll"
	"windower/pkg/packet"
	"windower/pkg/streaming"
)

// HistoryEntry is a finalized window's flat record, one per IP per
// closed window, as stored in the bounded window history.
type HistoryEntry struct {
	WindowID uint32

	PktsTotal  uint64
	BytesTotal uint64

	TCPCount  uint64
	UDPCount  uint64
	ICMPCount uint64
	FragCount uint64

	TstampStart int64
	TstampEnd   int64

	PktArrivalsAvg float64
	PktArrivalsStd float64

	PktSizeMin uint32
	PktSizeMax uint32
	PktSizeAvg float64
	PktSizeStd float64

	PortSrcUnique  uint64
	PortSrcEntropy float64

	ConnPktsAvg         float64
	HdrsPayloadRatioAvg float64
}

// Aggregator accumulates online statistics for one source IP within
// the currently open window. It is created on the IP's first packet
// and discarded (or finalized into a HistoryEntry) when the window
// closes.
type Aggregator struct {
	pktsTotal  uint64
	bytesTotal uint64

	tcpCount  uint64
	udpCount  uint64
	icmpCount uint64
	fragCount uint64

	tstampStart    int64
	tstampEnd      int64
	lastPktArrival int64

	// Arrival-delay statistics run on the packet count, not the delay
	// count: the first packet contributes an implicit zero delay, so
	// pkts_total is the element count for both the mean and the
	// Welford auxiliary.
	pktArrivalsAvg float64
	pktArrivalsAux float64

	sizes    streaming.Variance
	hdrRatio streaming.Average

	pktSizeMin uint32
	pktSizeMax uint32

	samples *streaming.ReservoirSampler

	srcPortsHLL    *hll.HyperLogLog
	connectionsHLL *hll.HyperLogLog
}

// NewAggregator constructs an empty per-IP aggregator with the given
// reservoir sample size for source-port entropy.
func NewAggregator(samplesSize int) *Aggregator {
	return &Aggregator{
		samples:        streaming.NewReservoirSampler(samplesSize),
		srcPortsHLL:    hll.NewDefault(),
		connectionsHLL: hll.NewDefault(),
	}
}

// PktsTotal returns the number of packets logged so far in this window.
func (a *Aggregator) PktsTotal() uint64 { return a.pktsTotal }

// Log folds a single packet observation into the aggregator.
func (a *Aggregator) Log(pf packet.Features) {
	pktSize := pf.PktSize()

	if a.pktsTotal == 0 {
		a.logNewIP(pf, pktSize)
	} else {
		a.logExistingIP(pf, pktSize)
	}
	a.logCommon(pf)
}

func (a *Aggregator) logNewIP(pf packet.Features, pktSize uint32) {
	a.samples.Sample(int(pf.SrcPort))

	a.pktsTotal = 1
	a.bytesTotal = uint64(pktSize)

	a.tstampStart = pf.Time
	a.tstampEnd = pf.Time

	a.pktSizeMin = pktSize
	a.pktSizeMax = pktSize
	a.sizes.Process(float64(pktSize))

	a.hdrRatio.Process(float64(pf.LenHeaders) / float64(pktSize))
}

func (a *Aggregator) logExistingIP(pf packet.Features, pktSize uint32) {
	delay := float64(pf.Time - a.lastPktArrival)
	hdrRatio := float64(pf.LenHeaders) / float64(pktSize)

	a.samples.Sample(int(pf.SrcPort))

	a.pktsTotal++
	a.bytesTotal += uint64(pktSize)
	a.tstampEnd = pf.Time

	prevArrivalsAvg := a.pktArrivalsAvg
	a.pktArrivalsAvg = streaming.AvgStateless(delay, prevArrivalsAvg, a.pktsTotal)
	a.pktArrivalsAux = streaming.VarAuxStateless(delay, a.pktArrivalsAux, prevArrivalsAvg, a.pktArrivalsAvg)

	if pktSize < a.pktSizeMin {
		a.pktSizeMin = pktSize
	}
	if pktSize > a.pktSizeMax {
		a.pktSizeMax = pktSize
	}
	a.sizes.Process(float64(pktSize))

	a.hdrRatio.Process(hdrRatio)
}

func (a *Aggregator) logCommon(pf packet.Features) {
	a.lastPktArrival = pf.Time

	switch pf.ProtoL4 {
	case packet.ProtoTCP:
		a.tcpCount++
	case packet.ProtoUDP:
		a.udpCount++
	case packet.ProtoICMP:
		a.icmpCount++
	}

	if pf.Fragmented {
		a.fragCount++
	}

	a.srcPortsHLL.Add(strconv.FormatUint(uint64(pf.SrcPort), 10))
	a.connectionsHLL.Add(strconv.FormatUint(uint64(pf.SrcPort), 10) + pf.DstIP + strconv.FormatUint(uint64(pf.DstPort), 10))
}

// Finalize closes the window, computing the window-close-only
// statistics (standard deviations, HLL cardinalities, source-port
// entropy, connection average) and returns the flat record to append
// to history. windowID is the ID stamped onto the closed window.
func (a *Aggregator) Finalize(windowID uint32) HistoryEntry {
	sampleCount := a.pktsTotal
	if sampleCount > uint64(len(a.samples.Samples())) {
		sampleCount = uint64(len(a.samples.Samples()))
	}
	usedSamples := a.samples.Samples()[:sampleCount]

	connCard := a.connectionsHLL.Cardinality()
	connPktsAvg := 0.0
	if connCard > 0 {
		connPktsAvg = float64(a.pktsTotal) / float64(connCard)
	}

	return HistoryEntry{
		WindowID: windowID,

		PktsTotal:  a.pktsTotal,
		BytesTotal: a.bytesTotal,

		TCPCount:  a.tcpCount,
		UDPCount:  a.udpCount,
		ICMPCount: a.icmpCount,
		FragCount: a.fragCount,

		TstampStart: a.tstampStart,
		TstampEnd:   a.tstampEnd,

		PktArrivalsAvg: a.pktArrivalsAvg,
		PktArrivalsStd: math.Sqrt(streaming.VarStateless(a.pktArrivalsAux, a.pktsTotal)),

		PktSizeMin: a.pktSizeMin,
		PktSizeMax: a.pktSizeMax,
		PktSizeAvg: a.sizes.Mean(),
		PktSizeStd: math.Sqrt(a.sizes.Get()),

		PortSrcUnique:  a.srcPortsHLL.Cardinality(),
		PortSrcEntropy: streaming.ShannonNorm(usedSamples),

		ConnPktsAvg:         connPktsAvg,
		HdrsPayloadRatioAvg: a.hdrRatio.Get(),
	}
}
