package usecase

import (
	"context"
	"sync"
	"time"

	"SpinTrack/internal/domain/models"
	drepo "SpinTrack/internal/domain/repository"
	"SpinTrack/internal/service/ratelimit"
	"SpinTrack/pkg/logger"
)

// SpinCollector reads a live stream into the tracker, reconnecting when the
// stream fails. Each source is throttled by a token bucket.
type SpinCollector struct {
	stream  drepo.SpinStream
	tracker *Tracker
	limiter *ratelimit.Limiter
	metrics drepo.Metrics
	log     *logger.Logger

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
}

func NewSpinCollector(stream drepo.SpinStream, tracker *Tracker, limiter *ratelimit.Limiter, metrics drepo.Metrics, log *logger.Logger) *SpinCollector {
	if log == nil {
		log = logger.Nop()
	}
	return &SpinCollector{
		stream:  stream,
		tracker: tracker,
		limiter: limiter,
		metrics: metrics,
		log:     log.With(logger.String("component", "spin_collector")),
	}
}

// IsConnected returns true if the stream is connected.
func (c *SpinCollector) IsConnected() bool { return c.stream.IsConnected() }

// Start connects and consumes in the background. A failed first connect is
// returned; later failures are retried.
func (c *SpinCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()
	go c.run(runCtx)
	return nil
}

func (c *SpinCollector) run(ctx context.Context) {
	defer close(c.done)
	for ctx.Err() == nil {
		spins, errs := c.stream.Read(ctx)
		c.consume(ctx, spins, errs)
		if ctx.Err() != nil {
			return
		}
		c.metrics.RecordError("stream")
		for ctx.Err() == nil {
			err := c.stream.Reconnect(ctx)
			if err == nil {
				c.log.Info("stream reconnected")
				break
			}
			c.log.Warn("reconnect failed", logger.Error(err))
		}
	}
}

func (c *SpinCollector) consume(ctx context.Context, spins <-chan *models.Spin, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if ok && err != nil {
				c.log.Warn("stream error", logger.Error(err))
				return
			}
			if !ok {
				errs = nil
			}
		case s, ok := <-spins:
			if !ok {
				return
			}
			c.handle(ctx, s)
		}
	}
}

func (c *SpinCollector) handle(ctx context.Context, s *models.Spin) {
	if s == nil {
		return
	}
	if !c.limiter.Allow(s.Source) {
		c.metrics.RecordError("stream_throttle")
		c.log.Debug("spin throttled", logger.String("source", s.Source), logger.Int("number", s.Number))
		return
	}
	if _, err := c.tracker.Observe(ctx, s.Number, s.Source); err != nil {
		c.log.Warn("rejected spin", logger.Int("number", s.Number), logger.Error(err))
	}
}

// Shutdown stops consuming and closes the stream.
func (c *SpinCollector) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	err := c.stream.Close()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
	return err
}
