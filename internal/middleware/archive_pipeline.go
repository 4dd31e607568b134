package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SpinTrack/internal/domain/models"
	domrepo "SpinTrack/internal/domain/repository"
	"SpinTrack/pkg/logger"
)

// Recorder is the downstream the pipeline writes to.
type Recorder interface {
	Record(ctx context.Context, s *models.Spin) error
}

// ArchivePipeline sits between the tracker and the archive backend. It
// validates spins, forwards them and keeps failed writes in a bounded buffer
// that a background loop retries with backoff.
type ArchivePipeline struct {
	rec     Recorder
	metrics domrepo.Metrics
	log     *logger.Logger
	bufCh   chan *models.Spin

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	done    chan struct{}

	minBackoff time.Duration
	maxBackoff time.Duration
}

type PipelineOption func(*ArchivePipeline)

// WithBufferSize sets how many failed writes are kept for retry.
func WithBufferSize(n int) PipelineOption {
	return func(p *ArchivePipeline) {
		if n > 0 {
			p.bufCh = make(chan *models.Spin, n)
		}
	}
}

// WithBackoff sets the retry backoff bounds.
func WithBackoff(min, max time.Duration) PipelineOption {
	return func(p *ArchivePipeline) {
		if min > 0 {
			p.minBackoff = min
		}
		if max >= p.minBackoff {
			p.maxBackoff = max
		}
	}
}

// WithPipelineLogger sets the logger.
func WithPipelineLogger(l *logger.Logger) PipelineOption {
	return func(p *ArchivePipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// NewArchivePipeline creates a pipeline in front of rec.
func NewArchivePipeline(rec Recorder, metrics domrepo.Metrics, opts ...PipelineOption) *ArchivePipeline {
	p := &ArchivePipeline{
		rec:        rec,
		metrics:    metrics,
		log:        logger.Nop(),
		bufCh:      make(chan *models.Spin, 1000),
		minBackoff: 50 * time.Millisecond,
		maxBackoff: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With(logger.String("component", "archive_pipeline"))
	return p
}

// Start launches the retry loop. ctx bounds the downstream calls.
func (p *ArchivePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})
	go p.flush(ctx, p.stopCh, p.done)
}

// Stop ends the retry loop and waits for it. Buffered spins are dropped.
func (p *ArchivePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.stopCh)
	done := p.done
	p.mu.Unlock()
	<-done
	if n := len(p.bufCh); n > 0 {
		p.log.Warn("dropping buffered spins", logger.Int("count", n))
	}
}

// Buffered returns the number of spins waiting for retry.
func (p *ArchivePipeline) Buffered() int { return len(p.bufCh) }

// Process validates s and forwards it. On a downstream failure the spin is
// buffered and the error is returned.
func (p *ArchivePipeline) Process(ctx context.Context, s *models.Spin) error {
	start := time.Now()
	if err := validateSpin(s); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if err := p.rec.Record(ctx, s); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- s:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func (p *ArchivePipeline) flush(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	backoff := p.minBackoff
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case s := <-p.bufCh:
			if err := p.rec.Record(ctx, s); err == nil {
				backoff = p.minBackoff
				continue
			}
			p.metrics.RecordError("pipeline_flush")
			select {
			case p.bufCh <- s:
			default:
				p.metrics.RecordError("pipeline_buffer_drop")
			}
			select {
			case <-time.After(backoff):
			case <-stop:
				return
			}
			if backoff *= 2; backoff > p.maxBackoff {
				backoff = p.maxBackoff
			}
		}
	}
}

func validateSpin(s *models.Spin) error {
	if s == nil {
		return fmt.Errorf("spin nil")
	}
	if !models.ValidNumber(s.Number) {
		return fmt.Errorf("spin number %d out of range", s.Number)
	}
	if s.Seq <= 0 {
		return fmt.Errorf("spin seq invalid")
	}
	if s.ObservedAt.IsZero() {
		return fmt.Errorf("spin timestamp missing")
	}
	return nil
}
