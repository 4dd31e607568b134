package repository

import (
	"context"
	"errors"

	"SpinTrack/internal/domain/models"
)

// ErrNotFound is returned by stores when nothing was saved yet.
var ErrNotFound = errors.New("repository: not found")

// SpinStream is a live source of spins, such as a websocket feed.
type SpinStream interface {
	Connect(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Spin, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// SpinPublisher forwards recorded spins to a broker.
type SpinPublisher interface {
	Publish(ctx context.Context, s *models.Spin) error
	PublishBatch(ctx context.Context, spins []*models.Spin) error
	Close() error
}

// AlertPublisher delivers fired alerts. Implementations must not block for
// long; the tracker calls them after every observation.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, ev models.AlertEvent) error
}

// SpinStorage is the long-term spin archive.
type SpinStorage interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, s *models.Spin) error
	StoreBatch(ctx context.Context, spins []*models.Spin) error
	Recent(ctx context.Context, source string, limit int) ([]*models.Spin, error)
	Health(ctx context.Context) error
	Close() error
}

// SnapshotStore persists the tracker state between restarts.
type SnapshotStore interface {
	Save(ctx context.Context, snap models.Snapshot) error
	// Load returns ErrNotFound when no snapshot exists.
	Load(ctx context.Context) (*models.Snapshot, error)
}

type Metrics interface {
	RecordSpin(source string, number int)
	RecordOutcome(strategyType, outcome string)
	RecordAlert(kind string)
	RecordArchived(backend string, n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	SetStrategies(active, paused, priority int)
}
