package audit

import (
	"context"
	"fmt"
	"sort"
)

// topN caps each breakdown list in Stats.
const topN = 10

// Stats returns exact scalar counts over the whole store and top-N
// breakdowns computed over the most recent statsWindow entries.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	counters, err := s.store.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats counts failed: %w", err)
	}

	window, err := s.store.Recent(ctx, s.statsWindow)
	if err != nil {
		return nil, fmt.Errorf("stats window scan failed: %w", err)
	}

	users := newTally()
	actions := newTally()
	resources := newTally()
	risks := newTally()

	for _, e := range window {
		name := e.UserName
		if name == "" {
			name = e.UserEmail
		}
		if name == "" {
			name = e.UserID
		}
		users.add(name)
		actions.add(string(e.ActionType))
		resources.add(string(e.ResourceType))
		risks.add(string(e.RiskLevel))
	}

	return &Stats{
		TotalLogs:        counters.Total,
		TodayLogs:        counters.Today,
		FailedActions:    counters.Failed,
		HighRiskActions:  counters.HighRisk,
		TopUsers:         users.top(topN),
		TopActions:       actions.top(topN),
		TopResources:     resources.top(topN),
		RiskDistribution: risks.top(topN),
	}, nil
}

// tally counts keys while remembering first-seen order so that ties
// break deterministically.
type tally struct {
	counts map[string]int64
	order  []string
}

func newTally() *tally {
	return &tally{counts: make(map[string]int64)}
}

func (t *tally) add(key string) {
	if key == "" {
		return
	}
	if _, seen := t.counts[key]; !seen {
		t.order = append(t.order, key)
	}
	t.counts[key]++
}

// top returns up to n buckets sorted by descending count, ties broken
// by first-seen order.
func (t *tally) top(n int) []BucketCount {
	buckets := make([]BucketCount, 0, len(t.order))
	for _, key := range t.order {
		buckets = append(buckets, BucketCount{Key: key, Count: t.counts[key]})
	}
	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Count > buckets[j].Count
	})
	if len(buckets) > n {
		buckets = buckets[:n]
	}
	return buckets
}
