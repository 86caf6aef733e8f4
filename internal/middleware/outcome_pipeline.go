package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SigForge/internal/domain/models"
	domrepo "SigForge/internal/domain/repository"
	"SigForge/internal/engine"
)

// OutcomePipeline sits between the resolver and the outcome log. It
// validates records, folds them into the running aggregates, persists
// them, publishes them, and buffers retries when the log is down so a
// storage hiccup never loses a resolution.
type OutcomePipeline struct {
	log     domrepo.OutcomeLog
	pub     domrepo.Publisher
	tracker *engine.Tracker
	metrics domrepo.Metrics

	bufSize int
	bufCh   chan *models.Outcome
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
}

type PipelineOption func(*OutcomePipeline)

// WithBufferSize sets the retry buffer capacity.
func WithBufferSize(n int) PipelineOption {
	return func(p *OutcomePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func NewOutcomePipeline(log domrepo.OutcomeLog, pub domrepo.Publisher, tracker *engine.Tracker, metrics domrepo.Metrics, opts ...PipelineOption) *OutcomePipeline {
	p := &OutcomePipeline{
		log:     log,
		pub:     pub,
		tracker: tracker,
		metrics: metrics,
		bufSize: 1000,
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.Outcome, p.bufSize)
	return p
}

// Start launches background flushing of buffered outcomes.
func (p *OutcomePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case o := <-p.bufCh:
				if o == nil {
					continue
				}
				if err := p.log.Append(ctx, o); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					select {
					case p.bufCh <- o:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing and drains anything still
// buffered into the log, so shutdown does not lose accepted records.
func (p *OutcomePipeline) Stop() {
	p.mu.Lock()
	started := p.started
	p.started = false
	p.mu.Unlock()
	if started {
		close(p.stopCh)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case o := <-p.bufCh:
			if o == nil {
				continue
			}
			if err := p.log.Append(ctx, o); err != nil {
				p.metrics.RecordError("pipeline_drain_drop")
				return
			}
		default:
			return
		}
	}
}

// Submit accepts one outcome: validate, persist or buffer, then fold
// into the running aggregates. An error means the record was NOT
// accepted and the caller must retry the whole resolution; a buffered
// record counts as accepted since the flusher owns the retry. The fold
// happens exactly once per accepted record.
func (p *OutcomePipeline) Submit(ctx context.Context, o *models.Outcome) error {
	start := time.Now()
	if !o.Valid() {
		p.metrics.RecordError("pipeline_validate")
		return fmt.Errorf("malformed outcome for signal %q", outcomeID(o))
	}

	if err := p.log.Append(ctx, o); err != nil {
		p.metrics.RecordError("pipeline_append")
		select {
		case p.bufCh <- o:
			p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
		default:
			p.metrics.RecordError("pipeline_buffer_full")
			return fmt.Errorf("pipeline append: %w", err)
		}
	}

	p.tracker.Add(o)

	// Publishing is best effort; downstream consumers tolerate gaps.
	if err := p.pub.PublishOutcome(ctx, o); err != nil {
		p.metrics.RecordError("pipeline_publish")
	}
	p.metrics.RecordLatency("pipeline_submit", time.Since(start).Seconds())
	return nil
}

func outcomeID(o *models.Outcome) string {
	if o == nil {
		return ""
	}
	return o.SignalID
}
