package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"SpinTrack/internal/domain/models"
	domrepo "SpinTrack/internal/domain/repository"
	"SpinTrack/pkg/cache"
	pkgkafka "SpinTrack/pkg/kafka"
)

func TestCacheSnapshotStoreRoundTrip(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	store := NewCacheSnapshotStore(mc, "tracker:snapshot", 0)
	ctx := context.Background()

	if _, err := store.Load(ctx); !errors.Is(err, domrepo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	snap := models.Snapshot{
		Results: []int{3, 1},
		Strategies: []*models.Strategy{{
			ID:       "s1",
			Type:     models.KindColor,
			Sequence: []models.StrategyValue{models.ColorValue(models.ColorRed)},
			IsActive: true,
			Hits:     1,
			History:  []models.HistoryEntry{{Spin: 1, Result: models.OutcomeHit}},
		}},
		ExportDate: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Version:    models.SnapshotVersion,
	}
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Results) != 2 || got.Results[0] != 3 || len(got.Strategies) != 1 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	s := got.Strategies[0]
	if s.ID != "s1" || s.Hits != 1 || s.Sequence[0].Attr != models.ColorRed || !s.IsActive {
		t.Fatalf("unexpected strategy %+v", s)
	}
}

func TestBuildInsertSkipsInvalidSpins(t *testing.T) {
	now := time.Now()
	q, args := buildInsert("spintrack.spins", []*models.Spin{
		{Number: 32, Source: "api", Seq: 1, ObservedAt: now},
		nil,
		{Number: 40, Source: "api", Seq: 2, ObservedAt: now},
		{Number: 0, Source: "feed", Seq: 3, ObservedAt: now},
	})
	if !strings.HasPrefix(q, "INSERT INTO spintrack.spins (observed_at") || strings.Count(q, "(?, ?, ?, ?, ?, ?, ?)") != 2 {
		t.Fatalf("unexpected query %q", q)
	}
	if len(args) != 14 {
		t.Fatalf("expected 14 args, got %d", len(args))
	}
	if args[4] != models.ColorRed || args[11] != models.ColorGreen || args[12] != "" {
		t.Fatalf("unexpected derived columns %v", args)
	}
}

func TestQualify(t *testing.T) {
	if qualify("db", "spins") != "db.spins" || qualify("db", "other.spins") != "other.spins" || qualify("", "spins") != "spins" {
		t.Fatal("unexpected qualified names")
	}
	if !strings.Contains(spinsDDL("db.spins"), "ReplacingMergeTree") {
		t.Fatal("ddl must use ReplacingMergeTree")
	}
}

type recordingProducer struct {
	topic string
	keys  []string
	vals  []interface{}
}

func (p *recordingProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	p.topic = topic
	p.keys = append(p.keys, string(key))
	p.vals = append(p.vals, value)
	return nil
}

func (p *recordingProducer) PublishBatch(_ context.Context, topic string, msgs []pkgkafka.Message) error {
	p.topic = topic
	for _, m := range msgs {
		p.keys = append(p.keys, string(m.Key))
		p.vals = append(p.vals, m.Value)
	}
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func TestKafkaPublishersKeys(t *testing.T) {
	rp := &recordingProducer{}
	sp := NewKafkaSpinPublisher(rp, "spins.recorded")
	if err := sp.PublishBatch(context.Background(), []*models.Spin{{Number: 1, Source: "feed"}, {Number: 2, Source: "api"}}); err != nil {
		t.Fatalf("publish batch: %v", err)
	}
	if rp.topic != "spins.recorded" || rp.keys[0] != "feed" || rp.keys[1] != "api" {
		t.Fatalf("unexpected publish %+v", rp)
	}

	ap := NewKafkaAlertPublisher(rp, "strategy.alerts")
	if err := ap.PublishAlert(context.Background(), models.AlertEvent{StrategyID: "s9"}); err != nil {
		t.Fatalf("publish alert: %v", err)
	}
	if rp.topic != "strategy.alerts" || rp.keys[2] != "s9" {
		t.Fatalf("unexpected alert publish %+v", rp)
	}
}
