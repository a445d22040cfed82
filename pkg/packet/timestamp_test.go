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
	"errors"
	"testing"
)

func TestParseExternalTimestamp(t *testing.T) {
	got, err := ParseExternalTimestamp("1609459200.123456")
	if err != nil {
		t.Fatalf("ParseExternalTimestamp: %v", err)
	}
	want := int64(1609459200123456000)
	if got != want {
		t.Errorf("ParseExternalTimestamp = %d, want %d", got, want)
	}
}

func TestParseExternalTimestampInteger(t *testing.T) {
	got, err := ParseExternalTimestamp("100")
	if err != nil {
		t.Fatalf("ParseExternalTimestamp: %v", err)
	}
	if want := int64(100e9); got != want {
		t.Errorf("ParseExternalTimestamp = %d, want %d", got, want)
	}
}

func TestParseExternalTimestampUnparseable(t *testing.T) {
	if _, err := ParseExternalTimestamp("not-a-number"); !errors.Is(err, ErrTimestampUnparseable) {
		t.Fatalf("err = %v, want ErrTimestampUnparseable", err)
	}
}

func TestParseExternalTimestampNegative(t *testing.T) {
	if _, err := ParseExternalTimestamp("-1.0"); !errors.Is(err, ErrTimestampUnparseable) {
		t.Fatalf("err = %v, want ErrTimestampUnparseable", err)
	}
}
