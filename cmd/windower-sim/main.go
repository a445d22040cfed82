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

// windower-sim is a synthetic traffic generator and soak tool for the
// windowing engine. It produces a configurable mix of source IPs,
// protocols, and ports, feeds them through the real Service, and
// writes retrieved per-IP feature vectors to the configured sink
// while exposing Prometheus metrics for window throughput.
//
// Usage:
//
//	go run ./cmd/windower-sim -http :8080 -qps 20000 -ips 2000 -sink csv -out features.csv
//	Observe metrics at GET /metrics (Prometheus exposition).
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"windower/internal/engine"
	imetrics "windower/internal/metrics"
	"windower/internal/service"
	"windower/internal/sink"
	"windower/pkg/packet"
)

func main() {
	httpAddr := flag.String("http", ":8080", "HTTP listen address for /metrics")
	windowLength := flag.Float64("window", 60, "window length in seconds")
	historyMin := flag.Int("history_min", 6, "minimum history entries before an IP is ready")
	packetsMin := flag.Int("packets_min", 15, "minimum packets per window for retention")
	samplesSize := flag.Int("samples", 40, "reservoir sample size for source-port entropy")

	sinkAdapter := flag.String("sink", "csv", "output sink adapter: csv, jsonl, or redis")
	outPath := flag.String("out", "features.csv", "output path for csv/jsonl sinks")
	redisAddr := flag.String("redis_addr", "", "redis address for the redis sink (empty logs instead of publishing)")
	redisStream := flag.String("redis_stream", "windower:features", "redis stream key")

	ips := flag.Int("ips", 2000, "number of distinct simulated source IPs")
	qps := flag.Int("qps", 20000, "target packets per second")
	burst := flag.Int("burst", 1000, "burst size per generator tick")
	duration := flag.Duration("duration", 30*time.Second, "run duration; 0 for forever")
	inFile := flag.String("infile", "", "CAIDA-style CSV trace to replay instead of the synthetic generator (columns: external_timestamp_secs,src_ip,dst_ip,proto_l4,src_port,dst_port,len_headers,len_payload,fragmented)")
	flag.Parse()

	settings, err := packet.NewSettings(packet.Settings{
		WindowLength: *windowLength,
		HistoryMin:   *historyMin,
		PacketsMin:   *packetsMin,
		SamplesSize:  *samplesSize,
	})
	if err != nil {
		log.Fatalf("invalid settings: %v", err)
	}

	reg := prometheus.DefaultRegisterer
	metricsReg := imetrics.New(reg)

	state := engine.New(settings)
	state.SetMetrics(metricsReg)

	sk, err := sink.Build(*sinkAdapter, sink.Options{
		Path:           *outPath,
		RedisAddr:      *redisAddr,
		RedisStreamKey: *redisStream,
	})
	if err != nil {
		log.Fatalf("build sink: %v", err)
	}
	defer sk.Close()

	svc := service.New(state, []sink.Sink{sk}, service.Options{
		Buffer:                8192,
		WindowIntervalSeconds: *windowLength,
	})
	svc.Start()
	defer svc.Stop()

	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("windower-sim listening on %s", *httpAddr)
		if err := http.ListenAndServe(*httpAddr, nil); err != nil {
			log.Fatalf("http: %v", err)
		}
	}()

	if *inFile != "" {
		if err := ingestFile(svc, *inFile); err != nil {
			log.Fatalf("ingest %s: %v", *inFile, err)
		}
		time.Sleep(200 * time.Millisecond)
		return
	}

	rng := rand.New(rand.NewSource(1))
	stop := make(chan struct{})
	go generate(svc, rng, *ips, *qps, *burst, stop)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	var endTimer <-chan time.Time
	if *duration > 0 {
		endTimer = time.After(*duration)
	}
	select {
	case <-sigCh:
	case <-endTimer:
	}
	close(stop)
	time.Sleep(200 * time.Millisecond)
}

// ingestFile replays a CAIDA-style CSV trace, substituting each row's
// external timestamp for the packet's own arrival time. A row whose
// timestamp cannot be parsed is logged and skipped rather than
// aborting the whole run, matching the engine's policy of never
// failing hard on a single malformed input.
func ingestFile(svc *service.Service, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	line := 0
	for {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("csv: %w", err)
		}
		line++
		pf, err := parseTraceRow(row)
		if err != nil {
			log.Printf("ingestFile: %s:%d: skipping row: %v", path, line, err)
			continue
		}
		svc.Ingest(pf)
	}
}

func parseTraceRow(row []string) (packet.Features, error) {
	if len(row) < 8 {
		return packet.Features{}, fmt.Errorf("expected at least 8 columns, got %d", len(row))
	}

	ts, err := packet.ParseExternalTimestamp(row[0])
	if err != nil {
		return packet.Features{}, err
	}

	proto, err := strconv.Atoi(row[3])
	if err != nil {
		return packet.Features{}, fmt.Errorf("proto_l4: %w", err)
	}
	srcPort, err := strconv.ParseUint(row[4], 10, 16)
	if err != nil {
		return packet.Features{}, fmt.Errorf("src_port: %w", err)
	}
	dstPort, err := strconv.ParseUint(row[5], 10, 16)
	if err != nil {
		return packet.Features{}, fmt.Errorf("dst_port: %w", err)
	}
	lenHeaders, err := strconv.ParseUint(row[6], 10, 32)
	if err != nil {
		return packet.Features{}, fmt.Errorf("len_headers: %w", err)
	}
	lenPayload, err := strconv.ParseUint(row[7], 10, 32)
	if err != nil {
		return packet.Features{}, fmt.Errorf("len_payload: %w", err)
	}
	fragmented := false
	if len(row) > 8 {
		fragmented, _ = strconv.ParseBool(row[8])
	}

	return packet.Features{
		Time:       ts,
		SrcIP:      row[1],
		DstIP:      row[2],
		ProtoL4:    proto,
		SrcPort:    uint16(srcPort),
		DstPort:    uint16(dstPort),
		LenHeaders: uint32(lenHeaders),
		LenPayload: uint32(lenPayload),
		Fragmented: fragmented,
	}, nil
}

// generate drives synthetic PacketFeatures into svc at roughly qps
// packets per second, distributed across a fixed pool of source IPs so
// windows actually accumulate enough packets per IP to clear
// packets_min.
func generate(svc *service.Service, rng *rand.Rand, numIPs, qps, burst int, stop <-chan struct{}) {
	if numIPs <= 0 {
		numIPs = 1
	}
	if qps <= 0 {
		qps = 1
	}
	protos := []int{packet.ProtoTCP, packet.ProtoUDP, packet.ProtoICMP}

	interval := time.Second * time.Duration(max(1, burst)) / time.Duration(max(1, qps))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	burstLeft := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			burstLeft += burst
			for burstLeft > 0 {
				burstLeft--
				ipIdx := rng.Intn(numIPs)
				pf := packet.Features{
					Time:       time.Now().UnixNano(),
					SrcIP:      fmt.Sprintf("10.%d.%d.%d", ipIdx/65536%256, ipIdx/256%256, ipIdx%256),
					DstIP:      "10.0.0.1",
					ProtoL4:    protos[rng.Intn(len(protos))],
					SrcPort:    uint16(1024 + rng.Intn(64000)),
					DstPort:    uint16(80),
					LenHeaders: 40,
					LenPayload: uint32(rng.Intn(1400)),
				}
				if !svc.TryIngest(pf) {
					svc.Ingest(pf)
				}
			}
		}
	}
}
