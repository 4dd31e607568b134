package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SpinTrack/internal/domain/models"
	"SpinTrack/internal/domain/repository"
	"SpinTrack/pkg/cache"
)

// CacheSnapshotStore keeps the tracker snapshot under one cache key. It works
// on the memory cache and on redis alike.
type CacheSnapshotStore struct {
	cache cache.Service
	key   string
	ttl   time.Duration
}

func NewCacheSnapshotStore(c cache.Service, key string, ttl time.Duration) *CacheSnapshotStore {
	return &CacheSnapshotStore{cache: c, key: key, ttl: ttl}
}

var _ repository.SnapshotStore = (*CacheSnapshotStore)(nil)

func (s *CacheSnapshotStore) Save(ctx context.Context, snap models.Snapshot) error {
	if err := s.cache.Set(ctx, s.key, snap, s.ttl); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *CacheSnapshotStore) Load(ctx context.Context) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := s.cache.Get(ctx, s.key, &snap); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return &snap, nil
}
