// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

package ooxml

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
)

// Default inflation limits for one conversion.
const (
	DefaultMaxEntrySize    int64 = 50 << 20
	DefaultMaxExpandedSize int64 = 200 << 20
)

// ErrLimitExceeded is returned when an entry, or the sum of all entries read
// through one Budget, inflates past its limit.
var ErrLimitExceeded = errors.New("zip expansion limit exceeded")

// Budget caps the bytes inflated out of zip containers. One Budget is shared
// by every archive read during a conversion, nested ones included. It is not
// safe for concurrent use.
type Budget struct {
	maxEntry  int64
	remaining int64
}

// NewBudget returns a budget allowing entries up to maxEntry bytes and
// maxTotal bytes overall. Non-positive values select the defaults.
func NewBudget(maxEntry, maxTotal int64) *Budget {
	if maxEntry <= 0 {
		maxEntry = DefaultMaxEntrySize
	}
	if maxTotal <= 0 {
		maxTotal = DefaultMaxExpandedSize
	}
	return &Budget{maxEntry: maxEntry, remaining: maxTotal}
}

// Remaining reports how many bytes may still be inflated.
func (b *Budget) Remaining() int64 {
	return b.remaining
}

// MaxEntry reports the per-entry limit.
func (b *Budget) MaxEntry() int64 {
	return b.maxEntry
}

// ReadFile inflates f and charges its size to the budget. The declared size
// is checked first; the read itself is capped too, since headers can lie.
func (b *Budget) ReadFile(f *zip.File) ([]byte, error) {
	limit := min(b.maxEntry, b.remaining)
	if f.UncompressedSize64 > uint64(b.maxEntry) {
		return nil, fmt.Errorf("%s: %d bytes, entry limit %d: %w", f.Name, f.UncompressedSize64, b.maxEntry, ErrLimitExceeded)
	}
	if f.UncompressedSize64 > uint64(max(limit, 0)) {
		return nil, fmt.Errorf("%s: %d bytes, %d left in budget: %w", f.Name, f.UncompressedSize64, b.remaining, ErrLimitExceeded)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s: inflates past %d bytes: %w", f.Name, limit, ErrLimitExceeded)
	}
	b.remaining -= int64(len(data))
	return data, nil
}
