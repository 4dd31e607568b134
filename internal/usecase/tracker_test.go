package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"SpinTrack/internal/domain/models"
	drepo "SpinTrack/internal/domain/repository"
	"SpinTrack/internal/services/strategy"
	"SpinTrack/pkg/metrics"
)

type memStore struct {
	mu    sync.Mutex
	snap  *models.Snapshot
	saves int
	err   error
}

func (s *memStore) Save(_ context.Context, snap models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.snap = &snap
	s.saves++
	return nil
}

func (s *memStore) Load(context.Context) (*models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return nil, drepo.ErrNotFound
	}
	cp := *s.snap
	return &cp, nil
}

type alertSink struct {
	mu     sync.Mutex
	events []models.AlertEvent
	err    error
}

func (a *alertSink) PublishAlert(_ context.Context, ev models.AlertEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return a.err
}

type spinSink struct {
	mu    sync.Mutex
	spins []models.Spin
}

func (s *spinSink) SpinRecorded(_ context.Context, sp models.Spin) {
	s.mu.Lock()
	s.spins = append(s.spins, sp)
	s.mu.Unlock()
}

func (s *spinSink) Process(_ context.Context, sp *models.Spin) error {
	s.SpinRecorded(context.Background(), *sp)
	return nil
}

type countingMetrics struct {
	metrics.Nop
	mu       sync.Mutex
	outcomes map[string]int
	alerts   int
	active   int
}

func (m *countingMetrics) RecordOutcome(kind, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = map[string]int{}
	}
	m.outcomes[kind+"/"+outcome]++
}

func (m *countingMetrics) RecordAlert(string) {
	m.mu.Lock()
	m.alerts++
	m.mu.Unlock()
}

func (m *countingMetrics) SetStrategies(active, _, _ int) {
	m.mu.Lock()
	m.active = active
	m.mu.Unlock()
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestTracker(opts ...TrackerOption) *Tracker {
	n := 0
	eng := strategy.New(strategy.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("s%d", n)
	}))
	a := 0
	base := []TrackerOption{
		WithClock(func() time.Time { return fixedNow }),
		WithAlertIDs(func() string { a++; return fmt.Sprintf("a%d", a) }),
	}
	return NewTracker(eng, metrics.Nop{}, nil, append(base, opts...)...)
}

func redSpec(loss int) models.StrategySpec {
	return models.StrategySpec{
		Sequence:          []models.StrategyValue{models.ColorValue(models.ColorRed)},
		AlertOnLossStreak: loss,
	}
}

func TestTrackerObserveStampsAndFansOut(t *testing.T) {
	sink := &alertSink{}
	spins := &spinSink{}
	archive := &spinSink{}
	m := &countingMetrics{}
	tr := newTestTracker(WithAlertPublishers(nil, sink), WithSpinListeners(spins), WithArchiver(archive))
	tr.metrics = m
	ctx := context.Background()

	if _, err := tr.CreateStrategy(ctx, redSpec(2)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := tr.Observe(ctx, 2, models.SourceAPI); err != nil {
		t.Fatalf("observe: %v", err)
	}
	res, err := tr.Observe(ctx, 4, models.SourceAPI)
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if res.Spin.Seq != 2 || res.Spin.Number != 4 || !res.Spin.ObservedAt.Equal(fixedNow) {
		t.Fatalf("unexpected spin %+v", res.Spin)
	}
	if len(res.Alerts) != 1 {
		t.Fatalf("expected a loss alert, got %+v", res.Alerts)
	}
	ev := res.Alerts[0]
	if ev.ID != "a1" || ev.Kind != models.AlertLossStreak || !ev.OccurredAt.Equal(fixedNow) || ev.StrategyID != "s1" {
		t.Fatalf("unexpected alert %+v", ev)
	}
	if len(sink.events) != 1 || sink.events[0].ID != "a1" {
		t.Fatalf("alert not published: %+v", sink.events)
	}
	if len(spins.spins) != 2 || len(archive.spins) != 2 || archive.spins[1].Seq != 2 {
		t.Fatalf("spins not forwarded: %+v %+v", spins.spins, archive.spins)
	}
	if m.outcomes["color/miss"] != 2 || m.alerts != 1 || m.active != 1 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestTrackerPublishErrorDoesNotFailObserve(t *testing.T) {
	sink := &alertSink{err: errors.New("broker down")}
	tr := newTestTracker(WithAlertPublishers(sink))
	ctx := context.Background()
	if _, err := tr.CreateStrategy(ctx, redSpec(1)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := tr.Observe(ctx, 2, models.SourceAPI); err != nil {
		t.Fatalf("observe should succeed: %v", err)
	}
	if len(sink.events) != 1 {
		t.Fatal("publisher should have been called")
	}
}

func TestTrackerRejectsInvalidNumber(t *testing.T) {
	store := &memStore{}
	tr := newTestTracker(WithSnapshotStore(store, time.Second))
	_, err := tr.Observe(context.Background(), 37, models.SourceAPI)
	if !errors.Is(err, strategy.ErrInvalidNumber) {
		t.Fatalf("expected ErrInvalidNumber, got %v", err)
	}
	if store.saves != 0 {
		t.Fatal("invalid number must not persist")
	}
}

func TestTrackerBatch(t *testing.T) {
	spins := &spinSink{}
	tr := newTestTracker(WithSpinListeners(spins))
	ctx := context.Background()
	if _, err := tr.Observe(ctx, 5, models.SourceAPI); err != nil {
		t.Fatal(err)
	}
	res, err := tr.ObserveBatch(ctx, []int{1, 40, 2, -1, 3}, models.SourceAPI)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if fmt.Sprint(res.Accepted) != "[1 2 3]" || fmt.Sprint(res.Rejected) != "[40 -1]" || res.Total != 4 {
		t.Fatalf("unexpected batch result %+v", res)
	}
	// the batch is newest first, so 3 is observed right after 5
	if len(spins.spins) != 4 || spins.spins[1].Number != 3 || spins.spins[1].Seq != 2 || spins.spins[3].Number != 1 || spins.spins[3].Seq != 4 {
		t.Fatalf("unexpected spins %+v", spins.spins)
	}
	results, total := tr.Results(2)
	if total != 4 || fmt.Sprint(results) != "[1 2]" {
		t.Fatalf("unexpected results %v %d", results, total)
	}
}

func TestTrackerBatchRecordsOutcomes(t *testing.T) {
	m := &countingMetrics{}
	tr := newTestTracker()
	tr.metrics = m
	ctx := context.Background()
	if _, err := tr.CreateStrategy(ctx, redSpec(0)); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.ObserveBatch(ctx, []int{1, 2, 3}, models.SourceAPI); err != nil {
		t.Fatal(err)
	}
	hit := string(models.KindColor) + "/" + string(models.OutcomeHit)
	miss := string(models.KindColor) + "/" + string(models.OutcomeMiss)
	if m.outcomes[hit] != 2 || m.outcomes[miss] != 1 {
		t.Fatalf("unexpected outcomes %v", m.outcomes)
	}
}

func TestTrackerPersistsAndRestores(t *testing.T) {
	store := &memStore{}
	ctx := context.Background()
	tr := newTestTracker(WithSnapshotStore(store, time.Second))
	s, err := tr.CreateStrategy(ctx, redSpec(0))
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range []int{1, 2, 3} {
		if _, err := tr.Observe(ctx, n, models.SourceAPI); err != nil {
			t.Fatal(err)
		}
	}
	if store.saves != 4 {
		t.Fatalf("expected a save per mutation, got %d", store.saves)
	}
	if fmt.Sprint(store.snap.Results) != "[3 2 1]" || !store.snap.ExportDate.Equal(fixedNow) {
		t.Fatalf("unexpected saved snapshot %+v", store.snap)
	}

	restored := newTestTracker(WithSnapshotStore(store, time.Second))
	if err := restored.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	got, err := restored.Strategy(s.ID)
	if err != nil {
		t.Fatalf("strategy after restore: %v", err)
	}
	if got.Hits != 2 || got.Misses != 1 {
		t.Fatalf("unexpected restored counters %+v", got)
	}
	if _, n := restored.Results(0); n != 3 {
		t.Fatalf("unexpected restored log length %d", n)
	}
}

func TestTrackerRestoreWithoutSnapshot(t *testing.T) {
	tr := newTestTracker(WithSnapshotStore(&memStore{}, time.Second))
	if err := tr.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
}

func TestTrackerSaveFailureIsLogged(t *testing.T) {
	store := &memStore{err: errors.New("redis down")}
	tr := newTestTracker(WithSnapshotStore(store, time.Second))
	if _, err := tr.Observe(context.Background(), 1, models.SourceAPI); err != nil {
		t.Fatalf("observe must not fail on save errors: %v", err)
	}
}

func TestTrackerImportIsAtomic(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker()
	if _, err := tr.Observe(ctx, 9, models.SourceAPI); err != nil {
		t.Fatal(err)
	}
	bad := models.Snapshot{Results: []int{1}, Strategies: []*models.Strategy{{ID: "x", Type: models.KindColor}}}
	if err := tr.Import(ctx, bad); err == nil {
		t.Fatal("expected import error")
	}
	if results, _ := tr.Results(0); fmt.Sprint(results) != "[9]" {
		t.Fatalf("state changed after failed import: %v", results)
	}

	good := tr.Snapshot()
	good.Results = []int{4, 5, 6}
	if err := tr.Import(ctx, good); err != nil {
		t.Fatalf("import: %v", err)
	}
	if results, _ := tr.Results(0); fmt.Sprint(results) != "[4 5 6]" {
		t.Fatalf("unexpected results after import: %v", results)
	}
}

func TestTrackerUndoAndClear(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker()
	if _, err := tr.UndoLast(ctx); !errors.Is(err, strategy.ErrNothingToUndo) {
		t.Fatalf("expected ErrNothingToUndo, got %v", err)
	}
	_, _ = tr.Observe(ctx, 7, models.SourceAPI)
	_, _ = tr.Observe(ctx, 8, models.SourceAPI)
	n, err := tr.UndoLast(ctx)
	if err != nil || n != 8 {
		t.Fatalf("undo: %d %v", n, err)
	}
	tr.ClearResults(ctx)
	if _, total := tr.Results(0); total != 0 {
		t.Fatalf("expected empty log, got %d", total)
	}
}

func TestTrackerResultsCSV(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker()
	_, _ = tr.ObserveBatch(ctx, []int{2, 1}, models.SourceAPI)
	b, err := tr.ResultsCSV()
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	want := "number,timestamp,index\n" +
		"2,2024-05-01T12:00:00Z,2\n" +
		"1,2024-05-01T11:59:00Z,1\n"
	if string(b) != want {
		t.Fatalf("unexpected csv:\n%s", b)
	}
}

func TestTrackerStatsFollowState(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker()
	_, _ = tr.ObserveBatch(ctx, []int{1, 3}, models.SourceAPI)
	if s := tr.Summary(); s.Total != 2 || s.Red.Count != 2 {
		t.Fatalf("unexpected summary %+v", s)
	}
	// cached until the next mutation
	if s := tr.Summary(); s.Total != 2 {
		t.Fatalf("unexpected cached summary %+v", s)
	}
	_, _ = tr.Observe(ctx, 2, models.SourceAPI)
	if s := tr.Summary(); s.Total != 3 || s.Black.Count != 1 {
		t.Fatalf("summary not refreshed %+v", s)
	}
	if _, err := tr.CreateStrategy(ctx, redSpec(0)); err != nil {
		t.Fatal(err)
	}
	rates := tr.StrategyRates()
	if len(rates) != 1 || rates[0].Hits != 2 || !strings.HasPrefix(rates[0].HitRate.String(), "66.67") {
		t.Fatalf("unexpected rates %+v", rates)
	}
	if hc := tr.HotCold(); len(hc.Hot) != 5 {
		t.Fatalf("unexpected hot/cold %+v", hc)
	}
	if corr := tr.Correlation(5); len(corr) != 0 {
		t.Fatalf("expected no correlations for 3 distinct numbers, got %+v", corr)
	}
}
