package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/consolehq/actionlog/pkg/observability"
)

// Pipeline defaults.
const (
	DefaultPipelineBuffer = 256
	DefaultWriteTimeout   = 5 * time.Second
)

// PipelineOptions configures the async write pipeline.
type PipelineOptions struct {
	// BufferSize bounds the dispatch queue; a full queue drops entries.
	BufferSize int
	// WriteTimeout bounds each deferred insert.
	WriteTimeout time.Duration
	Logger       logrus.FieldLogger
	Metrics      *observability.Metrics
}

// Pipeline dispatches log entries to the store without blocking the
// caller. Delivery is at-most-once: a failed or dropped insert is
// reported on the diagnostics channel and never retried. No ordering
// is guaranteed between dispatch order and insert order; CreatedAt,
// assigned at build time, is the only ordering anchor.
type Pipeline struct {
	store   Store
	queue   chan *LogEntry
	diag    chan error
	done    chan struct{}
	log     logrus.FieldLogger
	metrics *observability.Metrics
	timeout time.Duration

	closeOnce sync.Once
}

// NewPipeline creates and starts a pipeline with a single writer
// goroutine draining the queue.
func NewPipeline(store Store, opts PipelineOptions) *Pipeline {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultPipelineBuffer
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	p := &Pipeline{
		store:   store,
		queue:   make(chan *LogEntry, opts.BufferSize),
		diag:    make(chan error, opts.BufferSize),
		done:    make(chan struct{}),
		log:     opts.Logger,
		metrics: opts.Metrics,
		timeout: opts.WriteTimeout,
	}

	go p.writer()
	return p
}

// Dispatch hands an entry to the pipeline and returns immediately.
// When the buffer is full the entry is dropped and the drop reported
// to diagnostics; the caller is never blocked or failed.
func (p *Pipeline) Dispatch(entry *LogEntry) {
	select {
	case p.queue <- entry:
		if p.metrics != nil {
			p.metrics.QueueDepth.Set(float64(len(p.queue)))
		}
	default:
		if p.metrics != nil {
			p.metrics.EntriesDroppedTotal.Inc()
		}
		p.report(fmt.Errorf("pipeline buffer full, dropped entry for %s %s",
			entry.HTTPMethod, entry.Endpoint))
	}
}

// Diagnostics exposes write and drop failures. Reads are optional;
// reports are non-blocking and excess reports are discarded.
func (p *Pipeline) Diagnostics() <-chan error {
	return p.diag
}

// Close stops accepting entries and drains the queue, giving buffered
// entries a final write attempt. Returns when the drain finishes or
// ctx expires.
func (p *Pipeline) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		close(p.queue)
	})

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pipeline drain interrupted: %w", ctx.Err())
	}
}

func (p *Pipeline) writer() {
	defer close(p.done)

	for entry := range p.queue {
		if p.metrics != nil {
			p.metrics.QueueDepth.Set(float64(len(p.queue)))
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		err := p.store.Insert(ctx, entry)
		cancel()

		if err != nil {
			if p.metrics != nil {
				p.metrics.WriteFailuresTotal.Inc()
			}
			p.report(fmt.Errorf("deferred insert failed for %s %s: %w",
				entry.HTTPMethod, entry.Endpoint, err))
			continue
		}

		if p.metrics != nil {
			p.metrics.EntriesWrittenTotal.
				WithLabelValues(string(entry.ActionType), string(entry.RiskLevel)).Inc()
		}
	}
}

// report surfaces a diagnostic without ever blocking the hot path.
func (p *Pipeline) report(err error) {
	p.log.WithError(err).Warn("audit pipeline diagnostic")
	select {
	case p.diag <- err:
	default:
	}
}
