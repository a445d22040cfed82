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

import "errors"

// Sentinel error kinds. ConfigInvalid and TimestampUnparseable are
// returned to callers; InputMalformed (a decode failure) and
// StateAbsent (retrieval of an unknown IP) are represented as a nil
// value rather than an error, matching the behavior the engine exposes.
var (
	// ErrConfigInvalid wraps any problem with a Settings value: a missing
	// mandatory field or a value outside its allowed range.
	ErrConfigInvalid = errors.New("packet: invalid configuration")

	// ErrTimestampUnparseable is returned by external timestamp readers
	// (dataset-creation / CAIDA-like ingestion) when a supplied timestamp
	// cannot be parsed. The engine itself never returns this error.
	ErrTimestampUnparseable = errors.New("packet: unparseable external timestamp")
)
