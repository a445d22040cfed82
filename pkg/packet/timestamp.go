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
	"strconv"
)

// ParseExternalTimestamp parses an external arrival timestamp, given in
// seconds (optionally fractional, as CAIDA-style trace sidecar files
// carry them) and converts it to the nanosecond Time value Features
// expects. It substitutes for a packet's own captured timestamp: the
// same conversion applies whether the seconds value came from the
// packet itself or from a separate timing file.
func ParseExternalTimestamp(raw string) (int64, error) {
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrTimestampUnparseable, raw, err)
	}
	if secs < 0 {
		return 0, fmt.Errorf("%w: %q: negative timestamp", ErrTimestampUnparseable, raw)
	}
	return int64(secs * 1e9), nil
}
