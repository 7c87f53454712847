package memory

import (
	"context"
	"sort"
	"sync"

	"docverify/internal/audit"
	"docverify/pkg/platform/tx"
)

type stored struct {
	seq   uint64
	entry audit.Entry
}

// InMemoryStore keeps entries in append order. Appends inside a unit of work
// are removed again if the unit rolls back.
type InMemoryStore struct {
	mu      sync.RWMutex
	nextSeq uint64
	entries []stored
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(ctx context.Context, entry audit.Entry) error {
	s.mu.Lock()
	s.nextSeq++
	seq := s.nextSeq
	s.entries = append(s.entries, stored{seq: seq, entry: entry})
	s.mu.Unlock()

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i := range s.entries {
			if s.entries[i].seq == seq {
				s.entries = append(s.entries[:i], s.entries[i+1:]...)
				return
			}
		}
	})
	return nil
}

// List returns matching entries newest first. Entries with equal timestamps
// keep reverse append order.
func (s *InMemoryStore) List(_ context.Context, filter audit.ListFilter) ([]audit.Entry, error) {
	s.mu.RLock()
	matched := make([]stored, 0, len(s.entries))
	for _, st := range s.entries {
		if filter.Matches(st.entry) {
			matched = append(matched, st)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		ti, tj := matched[i].entry.Timestamp, matched[j].entry.Timestamp
		if ti.Equal(tj) {
			return matched[i].seq > matched[j].seq
		}
		return ti.After(tj)
	})

	if filter.Offset >= len(matched) {
		return []audit.Entry{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	out := make([]audit.Entry, len(matched))
	for i, st := range matched {
		out[i] = st.entry
	}
	return out, nil
}

// Clear drops every entry.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}
