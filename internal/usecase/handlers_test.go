package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SpinTrack/internal/domain/models"
	"SpinTrack/internal/service/ratelimit"
	"SpinTrack/pkg/config"
	"SpinTrack/pkg/metrics"
)

type fakeStorage struct {
	mu     sync.Mutex
	stored []*models.Spin
	err    error
}

func (f *fakeStorage) Init(context.Context) error { return nil }

func (f *fakeStorage) Store(_ context.Context, s *models.Spin) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.stored = append(f.stored, s)
	return nil
}

func (f *fakeStorage) StoreBatch(ctx context.Context, spins []*models.Spin) error {
	for _, s := range spins {
		if err := f.Store(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStorage) Recent(context.Context, string, int) ([]*models.Spin, error) { return nil, nil }

func (f *fakeStorage) Health(context.Context) error { return nil }

func (f *fakeStorage) Close() error { return nil }

type fakePublisher struct {
	published []*models.Spin
}

func (f *fakePublisher) Publish(_ context.Context, s *models.Spin) error {
	f.published = append(f.published, s)
	return nil
}

func (f *fakePublisher) PublishBatch(_ context.Context, spins []*models.Spin) error {
	f.published = append(f.published, spins...)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func TestSpinRecorderBackends(t *testing.T) {
	if _, err := NewSpinRecorder(nil, nil, metrics.Nop{}, config.ArchiveKafka); err == nil {
		t.Fatal("kafka backend without publisher should fail")
	}
	if _, err := NewSpinRecorder(nil, nil, metrics.Nop{}, "s3"); err == nil {
		t.Fatal("unknown backend should fail")
	}

	pub := &fakePublisher{}
	r, err := NewSpinRecorder(pub, nil, metrics.Nop{}, config.ArchiveKafka)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	if err := r.Record(context.Background(), &models.Spin{Number: 3, Seq: 1}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := r.RecordBatch(context.Background(), []*models.Spin{{Number: 4}, {Number: 5}}); err != nil {
		t.Fatalf("record batch: %v", err)
	}
	if len(pub.published) != 3 {
		t.Fatalf("expected 3 published spins, got %d", len(pub.published))
	}

	store := &fakeStorage{err: errors.New("insert failed")}
	r, err = NewSpinRecorder(nil, store, metrics.Nop{}, config.ArchiveClickHouse)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	if err := r.Record(context.Background(), &models.Spin{Number: 3}); err == nil {
		t.Fatal("expected storage error")
	}
	if err := r.Record(context.Background(), nil); err == nil {
		t.Fatal("expected nil spin error")
	}
}

func TestKafkaIngestHandler(t *testing.T) {
	spins := &spinSink{}
	tr := newTestTracker(WithSpinListeners(spins))
	h := NewKafkaIngestHandler("spins.ingest", tr, metrics.Nop{}, nil)
	ctx := context.Background()

	if h.Topic() != "spins.ingest" {
		t.Fatalf("unexpected topic %s", h.Topic())
	}
	if err := h.Handle(ctx, []byte(`{"number":17,"source":"table-1","ts":1714564800000}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := h.Handle(ctx, []byte(`{"number":0,"ts":"2024-05-01T12:00:00Z"}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := h.Handle(ctx, []byte(`{"number":99}`)); err != nil {
		t.Fatalf("out of range numbers should be dropped, got %v", err)
	}
	if err := h.Handle(ctx, []byte(`{"source":"x"}`)); err == nil {
		t.Fatal("missing number should fail")
	}
	if err := h.Handle(ctx, []byte(`not json`)); err == nil {
		t.Fatal("bad json should fail")
	}
	if len(spins.spins) != 2 {
		t.Fatalf("expected 2 spins, got %+v", spins.spins)
	}
	if spins.spins[0].Source != "table-1" || spins.spins[1].Source != models.SourceKafka || spins.spins[1].Number != 0 {
		t.Fatalf("unexpected spins %+v", spins.spins)
	}
}

func TestKafkaArchiveHandler(t *testing.T) {
	store := &fakeStorage{}
	h := NewKafkaArchiveHandler("spins.recorded", store, metrics.Nop{})
	ctx := context.Background()
	if err := h.Handle(ctx, []byte(`{"number":12,"source":"api","seq":4,"observedAt":"2024-05-01T12:00:00Z"}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := h.Handle(ctx, []byte(`{"number":40}`)); err == nil {
		t.Fatal("out of range spin should fail")
	}
	if len(store.stored) != 1 || store.stored[0].Seq != 4 || store.stored[0].Number != 12 {
		t.Fatalf("unexpected stored spins %+v", store.stored)
	}
}

type fakeStream struct {
	mu         sync.Mutex
	connected  bool
	reads      int
	reconnects int
	batches    [][]*models.Spin
}

func (f *fakeStream) Connect(context.Context) error {
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

// Read serves one batch per call, then fails the stream so the collector
// reconnects. Once the batches run out it blocks until ctx ends.
func (f *fakeStream) Read(ctx context.Context) (<-chan *models.Spin, <-chan error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	spins := make(chan *models.Spin, 16)
	errs := make(chan error, 1)
	if f.reads >= len(f.batches) {
		go func() {
			<-ctx.Done()
			close(spins)
		}()
		return spins, errs
	}
	for _, s := range f.batches[f.reads] {
		spins <- s
	}
	f.reads++
	close(spins)
	return spins, errs
}

func (f *fakeStream) Reconnect(context.Context) error {
	f.mu.Lock()
	f.reconnects++
	f.mu.Unlock()
	return nil
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	return nil
}

func (f *fakeStream) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func TestSpinCollectorReconnectsAndThrottles(t *testing.T) {
	stream := &fakeStream{batches: [][]*models.Spin{
		{{Number: 1, Source: "feed"}, {Number: 2, Source: "feed"}},
		{{Number: 3, Source: "feed"}, {Number: 50, Source: "feed"}, {Number: 4, Source: "other"}},
	}}
	tr := newTestTracker()
	// burst of 2 for "feed" and no refill within the test
	c := NewSpinCollector(stream, tr, ratelimit.New(0.001, 2), metrics.Nop{}, nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !c.IsConnected() {
		t.Fatal("expected connected stream")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, total := tr.Results(0); total == 3 {
			break
		}
		if time.Now().After(deadline) {
			results, _ := tr.Results(0)
			t.Fatalf("collector did not observe spins in time: %v", results)
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	results, _ := tr.Results(0)
	if len(results) != 3 || results[0] != 4 || results[1] != 2 || results[2] != 1 {
		t.Fatalf("unexpected results %v", results)
	}
	stream.mu.Lock()
	defer stream.mu.Unlock()
	if stream.reconnects < 1 || stream.connected {
		t.Fatalf("unexpected stream state %+v", stream)
	}
}
