package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and single-process
// deployments. It mirrors the postgres store's query semantics.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*LogEntry
	policy  *RetentionPolicy
	nextID  int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// Insert assigns an ID and appends the entry.
func (s *MemoryStore) Insert(ctx context.Context, entry *LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = s.nextID
	s.nextID++
	s.entries = append(s.entries, entry)
	return nil
}

// Query filters, sorts by CreatedAt descending, and paginates.
func (s *MemoryStore) Query(ctx context.Context, filter Filter) ([]*LogEntry, int64, error) {
	if err := filter.Normalize(); err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*LogEntry, 0)
	for _, e := range s.entries {
		if filter.Matches(e) {
			matched = append(matched, e)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := filter.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}

	page := make([]*LogEntry, end-start)
	copy(page, matched[start:end])
	return page, total, nil
}

// Recent returns up to limit entries ordered by CreatedAt descending.
func (s *MemoryStore) Recent(ctx context.Context, limit int) ([]*LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recent := make([]*LogEntry, len(s.entries))
	copy(recent, s.entries)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].CreatedAt.After(recent[j].CreatedAt)
	})

	if limit > 0 && limit < len(recent) {
		recent = recent[:limit]
	}
	return recent, nil
}

// Counts computes exact whole-store counters.
func (s *MemoryStore) Counts(ctx context.Context) (Counters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var counters Counters
	todayStart := time.Now().UTC().Truncate(24 * time.Hour)

	for _, e := range s.entries {
		counters.Total++
		if !e.CreatedAt.Before(todayStart) {
			counters.Today++
		}
		if !e.Success {
			counters.Failed++
		}
		if e.RiskLevel == RiskHigh || e.RiskLevel == RiskCritical {
			counters.HighRisk++
		}
	}
	return counters, nil
}

// DeleteOlderThan removes entries created at or before the cutoff.
func (s *MemoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	var deleted int64
	for _, e := range s.entries {
		if e.CreatedAt.After(cutoff) {
			kept = append(kept, e)
		} else {
			deleted++
		}
	}
	s.entries = kept
	return deleted, nil
}

// GetRetentionPolicy returns a copy of the singleton policy, or nil
// when none has been created yet.
func (s *MemoryStore) GetRetentionPolicy(ctx context.Context) (*RetentionPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.policy == nil {
		return nil, nil
	}
	policy := *s.policy
	return &policy, nil
}

// SaveRetentionPolicy replaces the singleton policy.
func (s *MemoryStore) SaveRetentionPolicy(ctx context.Context, policy *RetentionPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := *policy
	s.policy = &saved
	return nil
}
