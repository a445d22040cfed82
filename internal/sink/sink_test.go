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

package sink

import (
	"bufio"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"windower/internal/engine"
)

func sampleRecord() *engine.FeatureRecord {
	return &engine.FeatureRecord{SrcIP: "10.0.0.1", WindowCount: 3, WindowSpan: 3, PktsTotal: 100}
}

func TestCSVSinkWritesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")

	s1, err := NewCSVSink(path)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}
	if err := s1.Publish(sampleRecord()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	s1.Close()

	s2, err := NewCSVSink(path)
	if err != nil {
		t.Fatalf("NewCSVSink (reopen): %v", err)
	}
	if err := s2.Publish(sampleRecord()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	s2.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows (incl header), want 3 (1 header + 2 data)", len(rows))
	}
	if rows[0][0] != "src_ip" {
		t.Fatalf("header row[0] = %q, want src_ip", rows[0][0])
	}
}

func TestJSONLSinkAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.jsonl")

	s, err := NewJSONLSink(path)
	if err != nil {
		t.Fatalf("NewJSONLSink: %v", err)
	}
	if err := s.Publish(sampleRecord()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty jsonl file")
	}
}

type fakeRedisPublisher struct {
	lastStream string
	lastFields map[string]interface{}
	closed     bool
}

func (f *fakeRedisPublisher) XAdd(_ context.Context, streamKey string, fields map[string]interface{}) error {
	f.lastStream = streamKey
	f.lastFields = fields
	return nil
}

func (f *fakeRedisPublisher) Close() error {
	f.closed = true
	return nil
}

func TestRedisSinkPublish(t *testing.T) {
	fake := &fakeRedisPublisher{}
	s := NewRedisSink(fake, "windower:features")

	if err := s.Publish(sampleRecord()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if fake.lastStream != "windower:features" {
		t.Fatalf("lastStream = %q, want windower:features", fake.lastStream)
	}
	if fake.lastFields["src_ip"] != "10.0.0.1" {
		t.Fatalf("lastFields[src_ip] = %v, want 10.0.0.1", fake.lastFields["src_ip"])
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !fake.closed {
		t.Fatal("expected underlying client closed")
	}
}

func TestBuildUnknownAdapter(t *testing.T) {
	if _, err := Build("nonsense", Options{}); err == nil {
		t.Fatal("expected error for unknown adapter")
	}
}

func TestBuildCSVAdapter(t *testing.T) {
	dir := t.TempDir()
	s, err := Build("csv", Options{Path: filepath.Join(dir, "a.csv")})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer s.Close()
}
