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

// Package packet defines the input record consumed by the windowed
// statistics engine and the L4 protocol identifiers it distinguishes.
package packet

// L4 protocol identifiers. ICMPv6 is folded into ProtoICMP for
// simplification, matching upstream packet decoding conventions.
const (
	ProtoICMP = 1
	ProtoTCP  = 6
	ProtoUDP  = 17
	ProtoSCTP = 132
)

// Features is a single packet observation as handed off by the upstream
// decoder. It is immutable once constructed.
type Features struct {
	// Time is a monotonic non-decreasing timestamp in nanoseconds.
	Time int64

	// SrcIP and DstIP are opaque textual addresses (IPv4 or IPv6),
	// at most 46 characters.
	SrcIP string
	DstIP string

	// ProtoL4 is one of the Proto* constants, or any other IANA protocol
	// number for protocols the engine does not break out individually.
	ProtoL4 int

	// SrcPort and DstPort are 16-bit port numbers; 0 when the protocol
	// carries no ports.
	SrcPort uint16
	DstPort uint16

	// LenHeaders and LenPayload are non-negative byte counts; their sum
	// (PktSize) must be at least 1.
	LenHeaders uint32
	LenPayload uint32

	// Fragmented indicates the packet is an IP fragment.
	Fragmented bool
}

// PktSize returns the packet's total size in bytes.
func (f Features) PktSize() uint32 {
	return f.LenHeaders + f.LenPayload
}
