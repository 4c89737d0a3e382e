package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/consolehq/actionlog/pkg/observability"
)

// DefaultStatsWindow bounds the breakdown lists in Stats to the most
// recent N entries. This is a deliberate scalability tradeoff: exact
// whole-table rollups would scan everything on every call, so only
// the scalar counts are exact.
const DefaultStatsWindow = 1000

// ServiceOptions configures the operator-facing service.
type ServiceOptions struct {
	// StatsWindow overrides DefaultStatsWindow when positive.
	StatsWindow int
	Logger      logrus.FieldLogger
	Metrics     *observability.Metrics

	// now is injectable for tests.
	now func() time.Time
}

// Service exposes the synchronous operator operations: query, stats,
// export, and retention cleanup. Unlike the interceptor these
// propagate errors, since silent failure here would hide
// data-integrity problems.
type Service struct {
	store       Store
	statsWindow int
	log         logrus.FieldLogger
	metrics     *observability.Metrics
	now         func() time.Time
}

// NewService creates a service over the given store.
func NewService(store Store, opts ServiceOptions) *Service {
	if opts.StatsWindow <= 0 {
		opts.StatsWindow = DefaultStatsWindow
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	return &Service{
		store:       store,
		statsWindow: opts.StatsWindow,
		log:         opts.Logger,
		metrics:     opts.Metrics,
		now:         opts.now,
	}
}

// Query returns one page of entries matching the filter plus the total
// match count across all pages.
func (s *Service) Query(ctx context.Context, filter Filter) (*QueryResult, error) {
	entries, total, err := s.store.Query(ctx, filter)
	if err != nil {
		if IsValidation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return &QueryResult{Entries: entries, Total: total}, nil
}
