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

// Package artifact keeps converted documents in memory for a limited time so
// the download links on the result page can serve them.
package artifact

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultTTL        = 30 * time.Minute
	DefaultMaxEntries = 1000
)

// Artifact is one downloadable file. Artifacts stored together share a Group
// and are evicted together.
type Artifact struct {
	ID        string
	Group     string
	Name      string
	MIMEType  string
	Data      []byte
	CreatedAt time.Time
	ExpiresAt time.Time

	seq uint64
}

// File is the input to PutGroup.
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Store is a TTL-bounded, size-capped map of artifacts. It is safe for
// concurrent use.
type Store struct {
	mu         sync.RWMutex
	items      map[string]*Artifact
	groups     map[string][]string
	seq        uint64
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets how long artifacts live. Non-positive values keep the default.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMaxEntries caps the number of stored artifacts; the oldest groups are
// evicted first. Non-positive values keep the default.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		items:      make(map[string]*Artifact),
		groups:     make(map[string][]string),
		ttl:        DefaultTTL,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores a copy of data under a new random ID and returns the ID.
func (s *Store) Put(name, mimeType string, data []byte) string {
	return s.PutGroup(File{Name: name, MIMEType: mimeType, Data: data})[0]
}

// PutGroup stores copies of files as one group and returns their IDs in
// order. A group is never split by eviction.
func (s *Store) PutGroup(files ...File) []string {
	now := s.now()
	group := uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	ids := make([]string, 0, len(files))
	for _, f := range files {
		a := &Artifact{
			ID:        uuid.New().String(),
			Group:     group,
			Name:      f.Name,
			MIMEType:  f.MIMEType,
			Data:      append([]byte(nil), f.Data...),
			CreatedAt: now,
			ExpiresAt: now.Add(s.ttl),
			seq:       s.seq,
		}
		s.items[a.ID] = a
		ids = append(ids, a.ID)
	}
	s.groups[group] = ids
	s.evictLocked(group)
	return ids
}

// Get returns an unexpired artifact.
func (s *Store) Get(id string) (Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.items[id]
	if !ok || !s.now().Before(a.ExpiresAt) {
		return Artifact{}, false
	}
	return *a, true
}

// Len returns the number of stored artifacts, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Sweep drops every artifact that expired at or before now and reports how
// many were removed.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, a := range s.items {
		if !now.Before(a.ExpiresAt) {
			s.deleteLocked(id)
			removed++
		}
	}
	return removed
}

// Run sweeps on every tick until ctx is done. onSweep, if set, receives the
// number of removed artifacts.
func (s *Store) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.Sweep(s.now())
			if onSweep != nil {
				onSweep(removed)
			}
		}
	}
}

func (s *Store) deleteLocked(id string) {
	a, ok := s.items[id]
	if !ok {
		return
	}
	delete(s.items, id)
	rest := s.groups[a.Group][:0]
	for _, other := range s.groups[a.Group] {
		if other != id {
			rest = append(rest, other)
		}
	}
	if len(rest) == 0 {
		delete(s.groups, a.Group)
	} else {
		s.groups[a.Group] = rest
	}
}

// evictLocked drops whole groups, oldest first, until the store fits. The
// group just stored is kept even when it alone exceeds the cap.
func (s *Store) evictLocked(keep string) {
	if len(s.items) <= s.maxEntries {
		return
	}
	oldest := make([]*Artifact, 0, len(s.items))
	for _, a := range s.items {
		oldest = append(oldest, a)
	}
	sort.Slice(oldest, func(i, j int) bool {
		return oldest[i].seq < oldest[j].seq
	})
	for _, a := range oldest {
		if len(s.items) <= s.maxEntries {
			return
		}
		if a.Group == keep {
			continue
		}
		for _, id := range append([]string(nil), s.groups[a.Group]...) {
			s.deleteLocked(id)
		}
	}
}
