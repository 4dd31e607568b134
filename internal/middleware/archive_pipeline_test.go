package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SpinTrack/internal/domain/models"
	"SpinTrack/pkg/metrics"
)

type flakyRecorder struct {
	mu       sync.Mutex
	failures int
	stored   []int
}

func (r *flakyRecorder) Record(_ context.Context, s *models.Spin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return errors.New("backend down")
	}
	r.stored = append(r.stored, s.Number)
	return nil
}

func (r *flakyRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stored)
}

func spin(n int, seq int64) *models.Spin {
	return &models.Spin{Number: n, Source: models.SourceAPI, Seq: seq, ObservedAt: time.Now()}
}

func TestArchivePipelineRejectsInvalid(t *testing.T) {
	p := NewArchivePipeline(&flakyRecorder{}, metrics.Nop{})
	for _, s := range []*models.Spin{nil, spin(37, 1), spin(5, 0), {Number: 5, Seq: 1}} {
		if err := p.Process(context.Background(), s); err == nil {
			t.Fatalf("expected validation error for %+v", s)
		}
	}
}

func TestArchivePipelineRetriesBufferedSpins(t *testing.T) {
	rec := &flakyRecorder{failures: 2}
	p := NewArchivePipeline(rec, metrics.Nop{}, WithBufferSize(4), WithBackoff(time.Millisecond, 5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Process(ctx, spin(7, 1)); err == nil {
		t.Fatal("expected downstream error")
	}
	if p.Buffered() != 1 {
		t.Fatalf("expected one buffered spin, got %d", p.Buffered())
	}

	p.Start(ctx)
	defer p.Stop()
	deadline := time.Now().Add(2 * time.Second)
	for rec.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if rec.count() != 1 {
		t.Fatalf("buffered spin was not retried")
	}
	if err := p.Process(ctx, spin(8, 2)); err != nil {
		t.Fatalf("healthy downstream: %v", err)
	}
}
