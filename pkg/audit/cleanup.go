package audit

import (
	"context"
	"fmt"
	"time"
)

// cleanupInterval is how far ahead the next scheduled pass is reported.
const cleanupInterval = 24 * time.Hour

// Cleanup applies the retention policy: entries older than the archive
// threshold are hard-deleted. The policy singleton is lazily created
// with defaults on first run. Idempotent: a second immediate call with
// no new writes deletes nothing.
//
// Concurrent cleanups are not mutually excluded; overlapping passes
// delete disjoint-or-overlapping row sets harmlessly and the later
// LastCleanup write wins.
func (s *Service) Cleanup(ctx context.Context) (*CleanupResult, error) {
	policy, err := s.store.GetRetentionPolicy(ctx)
	if err != nil {
		s.countCleanup("error")
		return nil, fmt.Errorf("cleanup failed to load retention policy: %w", err)
	}
	if policy == nil {
		defaults := DefaultRetentionPolicy()
		policy = &defaults
	}

	now := s.now().UTC()
	cutoff := now.AddDate(0, 0, -policy.ArchiveDays)

	deleted, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.countCleanup("error")
		return nil, fmt.Errorf("cleanup deletion failed: %w", err)
	}

	policy.LastCleanup = now
	if err := s.store.SaveRetentionPolicy(ctx, policy); err != nil {
		s.countCleanup("error")
		return nil, fmt.Errorf("cleanup failed to save retention policy: %w", err)
	}

	if s.metrics != nil {
		s.metrics.CleanupDeletedTotal.Add(float64(deleted))
	}
	s.countCleanup("success")
	s.log.WithField("deleted", deleted).WithField("cutoff", cutoff).Info("retention cleanup finished")

	return &CleanupResult{
		DeletedCount: deleted,
		CutoffDate:   cutoff,
		NextCleanup:  now.Add(cleanupInterval),
	}, nil
}

func (s *Service) countCleanup(outcome string) {
	if s.metrics != nil {
		s.metrics.CleanupRunsTotal.WithLabelValues(outcome).Inc()
	}
}
