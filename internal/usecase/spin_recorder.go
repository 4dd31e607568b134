package usecase

import (
	"context"
	"fmt"
	"time"

	"SpinTrack/internal/domain/models"
	drepo "SpinTrack/internal/domain/repository"
	"SpinTrack/pkg/config"
)

// SpinRecorder routes recorded spins to the configured archive backend.
type SpinRecorder struct {
	pub     drepo.SpinPublisher
	store   drepo.SpinStorage
	metrics drepo.Metrics
	backend string
}

// NewSpinRecorder creates a recorder for backend, one of config.ArchiveKafka
// or config.ArchiveClickHouse. The matching dependency must be non-nil.
func NewSpinRecorder(pub drepo.SpinPublisher, store drepo.SpinStorage, metrics drepo.Metrics, backend string) (*SpinRecorder, error) {
	switch backend {
	case config.ArchiveKafka:
		if pub == nil {
			return nil, fmt.Errorf("archive backend kafka needs a publisher")
		}
	case config.ArchiveClickHouse:
		if store == nil {
			return nil, fmt.Errorf("archive backend clickhouse needs a storage")
		}
	default:
		return nil, fmt.Errorf("unknown archive backend: %s", backend)
	}
	return &SpinRecorder{pub: pub, store: store, metrics: metrics, backend: backend}, nil
}

// Backend names the archive backend.
func (r *SpinRecorder) Backend() string { return r.backend }

// Record writes one spin.
func (r *SpinRecorder) Record(ctx context.Context, s *models.Spin) error {
	if s == nil {
		return fmt.Errorf("spin is nil")
	}
	start := time.Now()
	var err error
	switch r.backend {
	case config.ArchiveKafka:
		err = r.pub.Publish(ctx, s)
	case config.ArchiveClickHouse:
		err = r.store.Store(ctx, s)
	}
	if err != nil {
		r.metrics.RecordError("archive")
		return fmt.Errorf("archive spin: %w", err)
	}
	r.metrics.RecordArchived(r.backend, 1)
	r.metrics.RecordLatency("archive", time.Since(start).Seconds())
	return nil
}

// RecordBatch writes several spins in one call.
func (r *SpinRecorder) RecordBatch(ctx context.Context, spins []*models.Spin) error {
	if len(spins) == 0 {
		return nil
	}
	start := time.Now()
	var err error
	switch r.backend {
	case config.ArchiveKafka:
		err = r.pub.PublishBatch(ctx, spins)
	case config.ArchiveClickHouse:
		err = r.store.StoreBatch(ctx, spins)
	}
	if err != nil {
		r.metrics.RecordError("archive_batch")
		return fmt.Errorf("archive batch: %w", err)
	}
	r.metrics.RecordArchived(r.backend, len(spins))
	r.metrics.RecordLatency("archive_batch", time.Since(start).Seconds())
	return nil
}
