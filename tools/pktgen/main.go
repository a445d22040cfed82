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

// pktgen is a dependency-free synthetic PacketFeatures stream
// generator: a fixed number of concurrent generator goroutines emit
// packet records at a configurable spacing. It exists to exercise the
// engine end-to-end (steady mixed traffic, plus an optional port-scan
// burst) without a real PCAP pipeline, which stays out of scope.
//
// Modes:
//   - steady: fixed pool of source IPs sending a steady TCP/UDP/ICMP mix
//   - scan:   a single source IP sweeps through many distinct source
//     ports against many destination ports, driving source-port
//     entropy toward 1.0 (a port-scan-like burst)
//
// Usage:
//
//	pktgen -mode=steady -ips=500 -n=200000 -c=8 | <consumer>
//	pktgen -mode=scan -target=10.0.0.1 -n=50000
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"windower/pkg/packet"
)

type modeType string

const (
	modeSteady modeType = "steady"
	modeScan   modeType = "scan"
)

func main() {
	mode := flag.String("mode", string(modeSteady), "generator mode: steady or scan")
	n := flag.Int("n", 100000, "total packets to generate")
	concurrency := flag.Int("c", 8, "number of concurrent generator workers")
	numIPs := flag.Int("ips", 500, "steady mode: number of distinct source IPs")
	target := flag.String("target", "10.0.0.1", "scan mode: the scanning source IP")
	dstIP := flag.String("dst", "10.0.0.254", "destination IP for generated packets")
	startNanos := flag.Int64("start", 0, "starting packet timestamp in nanoseconds")
	spacingNanos := flag.Int64("spacing", 1_000_000, "nanoseconds between consecutive packet timestamps (one counter shared by all workers)")
	flag.Parse()

	if *startNanos == 0 {
		*startNanos = time.Now().UnixNano()
	}

	enc := json.NewEncoder(bufio.NewWriterSize(os.Stdout, 1<<20))
	var encMu sync.Mutex
	emit := func(pf packet.Features) {
		encMu.Lock()
		_ = enc.Encode(pf)
		encMu.Unlock()
	}

	switch modeType(*mode) {
	case modeScan:
		generateScan(emit, *target, *dstIP, *n, *startNanos, *spacingNanos)
	case modeSteady:
		generateSteady(emit, *numIPs, *dstIP, *n, *concurrency, *startNanos, *spacingNanos)
	default:
		fmt.Fprintf(os.Stderr, "pktgen: unknown mode %q\n", *mode)
		os.Exit(1)
	}
}

var protos = []int{packet.ProtoTCP, packet.ProtoUDP, packet.ProtoICMP}

// generateSteady fans a fixed workload of n packets out across
// concurrency workers, each owning a slice of the source-IP pool and
// picking a random IP from it per packet. Timestamps come from a
// counter shared by all workers, so each worker's own packets carry
// increasing timestamps. Workers run concurrently but each writes
// through emit, which serializes output; the interleaving of different
// workers' packets in the output is not ordered by timestamp.
func generateSteady(emit func(packet.Features), numIPs int, dstIP string, n, concurrency int, startNanos, spacingNanos int64) {
	if numIPs <= 0 {
		numIPs = 1
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	var sent int64
	var wg sync.WaitGroup
	perWorker := numIPs / concurrency
	if perWorker == 0 {
		perWorker = 1
	}

	for w := 0; w < concurrency; w++ {
		loIdx := w * perWorker
		hiIdx := loIdx + perWorker
		if w == concurrency-1 {
			hiIdx = numIPs
		}
		if loIdx >= hiIdx {
			continue
		}

		wg.Add(1)
		go func(loIdx, hiIdx int, seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for atomic.LoadInt64(&sent) < int64(n) {
				ipIdx := loIdx + rng.Intn(hiIdx-loIdx)
				count := atomic.AddInt64(&sent, 1)
				if count > int64(n) {
					return
				}
				emit(packet.Features{
					Time:       startNanos + count*spacingNanos,
					SrcIP:      ipString(ipIdx),
					DstIP:      dstIP,
					ProtoL4:    protos[rng.Intn(len(protos))],
					SrcPort:    uint16(1024 + rng.Intn(64000)),
					DstPort:    80,
					LenHeaders: 40,
					LenPayload: uint32(64 + rng.Intn(1400)),
					Fragmented: rng.Intn(50) == 0,
				})
			}
		}(loIdx, hiIdx, int64(w)+1)
	}
	wg.Wait()
}

// generateScan drives a single source IP through n packets to distinct
// (srcPort, dstPort) pairs, which pushes source-port entropy and
// connection cardinality toward their maxima — the traffic shape a
// denylisting consumer downstream would look for, though this
// generator has no opinion on that decision itself.
func generateScan(emit func(packet.Features), target, dstIP string, n int, startNanos, spacingNanos int64) {
	for i := 0; i < n; i++ {
		emit(packet.Features{
			Time:       startNanos + int64(i)*spacingNanos,
			SrcIP:      target,
			DstIP:      dstIP,
			ProtoL4:    packet.ProtoTCP,
			SrcPort:    uint16(1024 + (i % 64000)),
			DstPort:    uint16(1 + (i % 1024)),
			LenHeaders: 40,
			LenPayload: 0,
		})
	}
}

func ipString(idx int) string {
	return fmt.Sprintf("10.%d.%d.%d", idx/65536%256, idx/256%256, idx%256)
}
