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
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"windower/internal/engine"
)

// CSVSink appends FeatureRecords as CSV rows, writing the header once
// on creation of a new (empty) file.
type CSVSink struct {
	f *os.File
	w *csv.Writer
}

// NewCSVSink opens (or creates) the file at path in append mode,
// writing the header row only if the file was just created.
func NewCSVSink(path string) (*CSVSink, error) {
	fresh := true
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		fresh = false
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	s := &CSVSink{f: f, w: csv.NewWriter(f)}
	if fresh {
		if err := s.w.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("sink: writing csv header: %w", err)
		}
		s.w.Flush()
	}
	return s, nil
}

// Publish appends record as one CSV row.
func (s *CSVSink) Publish(record *engine.FeatureRecord) error {
	row := []string{
		record.SrcIP,
		strconv.FormatUint(uint64(record.WindowCount), 10),
		strconv.FormatUint(uint64(record.WindowSpan), 10),
		strconv.FormatUint(record.PktsTotal, 10),
		strconv.FormatUint(record.BytesTotal, 10),
		strconv.FormatFloat(float64(record.PktRate), 'f', -1, 32),
		strconv.FormatFloat(float64(record.ByteRate), 'f', -1, 32),
		strconv.FormatFloat(record.PktArrivalsAvg, 'f', -1, 64),
		strconv.FormatFloat(record.PktArrivalsStd, 'f', -1, 64),
		strconv.FormatUint(uint64(record.PktSizeMin), 10),
		strconv.FormatUint(uint64(record.PktSizeMax), 10),
		strconv.FormatFloat(float64(record.PktSizeAvg), 'f', -1, 32),
		strconv.FormatFloat(float64(record.PktSizeStd), 'f', -1, 32),
		strconv.FormatFloat(float64(record.ProtoTCPShare), 'f', -1, 32),
		strconv.FormatFloat(float64(record.ProtoUDPShare), 'f', -1, 32),
		strconv.FormatFloat(float64(record.ProtoICMPShare), 'f', -1, 32),
		strconv.FormatFloat(float64(record.PortSrcUnique), 'f', -1, 32),
		strconv.FormatFloat(float64(record.PortSrcEntropy), 'f', -1, 32),
		strconv.FormatFloat(float64(record.ConnPktsAvg), 'f', -1, 32),
		strconv.FormatFloat(float64(record.PktsFragShare), 'f', -1, 32),
		strconv.FormatFloat(float64(record.HdrsPayloadRatioAvg), 'f', -1, 32),
		strconv.FormatFloat(float64(record.PktsTotalStd), 'f', -1, 32),
		strconv.FormatFloat(float64(record.BytesTotalStd), 'f', -1, 32),
		strconv.FormatFloat(float64(record.PktSizeAvgStd), 'f', -1, 32),
		strconv.FormatFloat(float64(record.PktSizeStdStd), 'f', -1, 32),
		strconv.FormatFloat(float64(record.PktArrivalsAvgStd), 'f', -1, 32),
		strconv.FormatFloat(float64(record.PortSrcUniqueStd), 'f', -1, 32),
		strconv.FormatFloat(float64(record.PortSrcEntropyStd), 'f', -1, 32),
		strconv.FormatFloat(float64(record.ConnPktsAvgStd), 'f', -1, 32),
		strconv.FormatFloat(float64(record.PktsFragShareStd), 'f', -1, 32),
		strconv.FormatFloat(float64(record.HdrsPayloadRatioAvgStd), 'f', -1, 32),
		strconv.FormatFloat(float64(record.DominantProtoRatioStd), 'f', -1, 32),
		strconv.FormatFloat(float64(record.IntrawindowActivityRatio), 'f', -1, 32),
		strconv.FormatFloat(float64(record.InterwindowActivityRatio), 'f', -1, 32),
	}
	if err := s.w.Write(row); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

// Close flushes and closes the underlying file.
func (s *CSVSink) Close() error {
	s.w.Flush()
	return s.f.Close()
}
