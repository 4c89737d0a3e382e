package audit

import (
	"context"
	"time"
)

// Counters are the exact whole-store counts surfaced by statistics.
type Counters struct {
	Total    int64
	Today    int64
	Failed   int64
	HighRisk int64
}

// Store is the persistence boundary for log entries and the retention
// policy singleton. Implementations must treat entries as append-only:
// Insert and DeleteOlderThan are the only mutations.
type Store interface {
	// Insert persists a new entry and assigns its ID.
	Insert(ctx context.Context, entry *LogEntry) error

	// Query returns one page of entries matching the filter, ordered
	// by CreatedAt descending, plus the total match count.
	Query(ctx context.Context, filter Filter) ([]*LogEntry, int64, error)

	// Recent returns up to limit most recent entries (CreatedAt
	// descending), used for windowed statistics.
	Recent(ctx context.Context, limit int) ([]*LogEntry, error)

	// Counts returns exact whole-store counters.
	Counts(ctx context.Context) (Counters, error)

	// DeleteOlderThan removes entries with CreatedAt at or before the
	// cutoff and reports how many were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// GetRetentionPolicy loads the singleton policy, returning
	// (nil, nil) when none exists yet.
	GetRetentionPolicy(ctx context.Context) (*RetentionPolicy, error)

	// SaveRetentionPolicy creates or replaces the singleton policy.
	SaveRetentionPolicy(ctx context.Context, policy *RetentionPolicy) error
}
