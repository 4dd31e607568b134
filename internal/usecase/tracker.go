package usecase

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"SpinTrack/internal/domain/models"
	drepo "SpinTrack/internal/domain/repository"
	"SpinTrack/internal/service/cache"
	statsmetrics "SpinTrack/internal/service/metrics"
	"SpinTrack/internal/services/stats"
	"SpinTrack/internal/services/strategy"
	"SpinTrack/pkg/logger"

	"github.com/google/uuid"
)

// SpinListener is told about every recorded spin.
type SpinListener interface {
	SpinRecorded(ctx context.Context, s models.Spin)
}

// Archiver receives recorded spins for long-term storage.
type Archiver interface {
	Process(ctx context.Context, s *models.Spin) error
}

// ObserveResult is what one observation produced.
type ObserveResult struct {
	Spin   models.Spin         `json:"spin"`
	Alerts []models.AlertEvent `json:"alerts"`
}

// BatchResult is what a batch observation produced.
type BatchResult struct {
	Accepted []int               `json:"accepted"`
	Rejected []string            `json:"rejected"`
	Alerts   []models.AlertEvent `json:"alerts"`
	Total    int                 `json:"total"`
}

// Tracker serializes access to the strategy engine and runs the side effects
// of every mutation after the engine call: alert fan-out, archiving, spin
// listeners and snapshot persistence. Side effects never touch engine state.
type Tracker struct {
	mu     sync.Mutex
	engine *strategy.Engine

	store       drepo.SnapshotStore
	archive     Archiver
	alerts      []drepo.AlertPublisher
	listeners   []SpinListener
	metrics     drepo.Metrics
	log         *logger.Logger
	statsCache  *cache.RevisionCache
	saveTimeout time.Duration
	now         func() time.Time
	newID       func() string

	saveMu   sync.Mutex
	savedRev uint64
}

// TrackerOption configures Tracker.
type TrackerOption func(*Tracker)

// WithSnapshotStore persists state after every mutation.
func WithSnapshotStore(s drepo.SnapshotStore, saveTimeout time.Duration) TrackerOption {
	return func(t *Tracker) {
		t.store = s
		if saveTimeout > 0 {
			t.saveTimeout = saveTimeout
		}
	}
}

// WithArchiver sends recorded spins to a.
func WithArchiver(a Archiver) TrackerOption {
	return func(t *Tracker) { t.archive = a }
}

// WithAlertPublishers adds alert destinations. Nil entries are skipped.
func WithAlertPublishers(pubs ...drepo.AlertPublisher) TrackerOption {
	return func(t *Tracker) {
		for _, p := range pubs {
			if p != nil {
				t.alerts = append(t.alerts, p)
			}
		}
	}
}

// WithSpinListeners adds spin listeners. Nil entries are skipped.
func WithSpinListeners(ls ...SpinListener) TrackerOption {
	return func(t *Tracker) {
		for _, l := range ls {
			if l != nil {
				t.listeners = append(t.listeners, l)
			}
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// WithAlertIDs replaces the uuid generator for alert ids.
func WithAlertIDs(fn func() string) TrackerOption {
	return func(t *Tracker) { t.newID = fn }
}

func NewTracker(engine *strategy.Engine, metrics drepo.Metrics, log *logger.Logger, opts ...TrackerOption) *Tracker {
	if log == nil {
		log = logger.Nop()
	}
	t := &Tracker{
		engine:      engine,
		metrics:     metrics,
		log:         log.With(logger.String("component", "tracker")),
		statsCache:  cache.NewRevisionCache(0),
		saveTimeout: 2 * time.Second,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Restore loads the saved snapshot, if any.
func (t *Tracker) Restore(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	snap, err := t.store.Load(ctx)
	if errors.Is(err, drepo.ErrNotFound) {
		t.log.Info("no saved snapshot")
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	t.mu.Lock()
	err = t.engine.Load(snap.Results, snap.Strategies)
	t.gauge()
	t.mu.Unlock()
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	t.log.Info("snapshot restored",
		logger.Int("results", len(snap.Results)),
		logger.Int("strategies", len(snap.Strategies)),
	)
	return nil
}

// Observe records one number from source.
func (t *Tracker) Observe(ctx context.Context, n int, source string) (*ObserveResult, error) {
	start, at := time.Now(), t.now()
	t.mu.Lock()
	raw, err := t.engine.Observe(n)
	if err != nil {
		t.mu.Unlock()
		t.metrics.RecordError("observe_invalid")
		return nil, err
	}
	spin := models.Spin{Number: n, Source: source, Seq: int64(t.engine.Len()), ObservedAt: at}
	t.recordOutcomes()
	t.gauge()
	snap, rev := t.snapshotLocked()
	t.mu.Unlock()

	alerts := t.stamp(raw, at)
	t.metrics.RecordSpin(source, n)
	t.afterSpins(ctx, []models.Spin{spin}, alerts)
	t.persist(snap, rev)
	t.metrics.RecordLatency("observe", time.Since(start).Seconds())
	return &ObserveResult{Spin: spin, Alerts: alerts}, nil
}

// ObserveBatch records nums given newest first, so the last number is
// observed first. Out of range numbers are reported as rejected.
func (t *Tracker) ObserveBatch(ctx context.Context, nums []int, source string) (*BatchResult, error) {
	start, at := time.Now(), t.now()
	res := &BatchResult{Accepted: []int{}, Rejected: []string{}}
	for _, n := range nums {
		if !models.ValidNumber(n) {
			res.Rejected = append(res.Rejected, strconv.Itoa(n))
		}
	}

	t.mu.Lock()
	var spins []models.Spin
	accepted, raw := t.engine.ObserveBatch(nums, func(n int) {
		spins = append(spins, models.Spin{Number: n, Source: source, Seq: int64(t.engine.Len()), ObservedAt: at})
		t.recordOutcomes()
	})
	total := t.engine.Len()
	t.gauge()
	snap, rev := t.snapshotLocked()
	t.mu.Unlock()

	if accepted != nil {
		res.Accepted = accepted
	}
	res.Total = total
	res.Alerts = t.stamp(raw, at)
	for _, s := range spins {
		t.metrics.RecordSpin(source, s.Number)
	}
	if len(res.Rejected) > 0 {
		t.metrics.RecordError("observe_invalid")
	}
	t.afterSpins(ctx, spins, res.Alerts)
	if len(spins) > 0 {
		t.persist(snap, rev)
	}
	t.metrics.RecordLatency("observe_batch", time.Since(start).Seconds())
	return res, nil
}

// UndoLast removes the newest result and returns it.
func (t *Tracker) UndoLast(ctx context.Context) (int, error) {
	n, err := t.mutate(func(e *strategy.Engine) (int, error) { return e.UndoLast() })
	if err == nil {
		t.log.Info("undo last result", logger.Int("number", n))
	}
	return n, err
}

// ClearResults empties the results log and resets every strategy.
func (t *Tracker) ClearResults(ctx context.Context) {
	_, _ = t.mutate(func(e *strategy.Engine) (int, error) {
		e.ClearResults()
		return 0, nil
	})
}

func (t *Tracker) CreateStrategy(ctx context.Context, spec models.StrategySpec) (*models.Strategy, error) {
	return t.mutateStrategy(func(e *strategy.Engine) (*models.Strategy, error) { return e.Create(spec) })
}

func (t *Tracker) RemoveStrategy(ctx context.Context, id string) error {
	_, err := t.mutate(func(e *strategy.Engine) (int, error) { return 0, e.Remove(id) })
	return err
}

func (t *Tracker) ToggleStrategy(ctx context.Context, id string) (*models.Strategy, error) {
	return t.mutateStrategy(func(e *strategy.Engine) (*models.Strategy, error) { return e.Toggle(id) })
}

func (t *Tracker) ResetStrategy(ctx context.Context, id string) (*models.Strategy, error) {
	return t.mutateStrategy(func(e *strategy.Engine) (*models.Strategy, error) { return e.Reset(id) })
}

func (t *Tracker) ResetAll(ctx context.Context) {
	_, _ = t.mutate(func(e *strategy.Engine) (int, error) {
		e.ResetAll()
		return 0, nil
	})
}

func (t *Tracker) UpdateAlerts(ctx context.Context, id string, win, loss *int) (*models.Strategy, error) {
	return t.mutateStrategy(func(e *strategy.Engine) (*models.Strategy, error) {
		return e.UpdateAlertThresholds(id, win, loss)
	})
}

func (t *Tracker) Strategy(id string) (*models.Strategy, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engine.Strategy(id)
}

func (t *Tracker) Strategies() []*models.Strategy {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engine.Strategies()
}

// Results returns up to limit results newest first and the log length.
// limit <= 0 returns all of them.
func (t *Tracker) Results(limit int) ([]int, int) {
	t.mu.Lock()
	all := t.engine.Results()
	t.mu.Unlock()
	if limit > 0 && len(all) > limit {
		return all[:limit], len(all)
	}
	return all, len(all)
}

// Snapshot returns the export envelope stamped with the current time.
func (t *Tracker) Snapshot() models.Snapshot {
	t.mu.Lock()
	snap := t.engine.Snapshot()
	t.mu.Unlock()
	snap.ExportDate = t.now().UTC()
	return snap
}

// Import replaces the tracker state with snap. Nothing changes on error.
func (t *Tracker) Import(ctx context.Context, snap models.Snapshot) error {
	t.mu.Lock()
	if err := t.engine.Load(snap.Results, snap.Strategies); err != nil {
		t.mu.Unlock()
		t.metrics.RecordError("import")
		return err
	}
	t.gauge()
	saved, rev := t.snapshotLocked()
	t.mu.Unlock()
	t.persist(saved, rev)
	t.log.Info("snapshot imported",
		logger.Int("results", len(snap.Results)),
		logger.Int("strategies", len(snap.Strategies)),
	)
	return nil
}

// ResultsCSV renders the log as number,timestamp,index rows, newest first.
// Timestamps step back one minute per row from the export time.
func (t *Tracker) ResultsCSV() ([]byte, error) {
	results, _ := t.Results(0)
	now := t.now().UTC()
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"number", "timestamp", "index"}); err != nil {
		return nil, err
	}
	for i, n := range results {
		ts := now.Add(-time.Duration(i) * time.Minute)
		if err := w.Write([]string{
			strconv.Itoa(n),
			ts.Format(time.RFC3339),
			strconv.Itoa(len(results) - i),
		}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// Summary returns the color, parity, range, dozen and column shares.
func (t *Tracker) Summary() models.Summary {
	return cachedStat(t, "summary", stats.Summarize)
}

// HotCold returns the most and least frequent numbers.
func (t *Tracker) HotCold() models.HotCold {
	return cachedStat(t, "hotcold", stats.HotAndCold)
}

// Correlation returns the follower table limited to limit numbers.
func (t *Tracker) Correlation(limit int) []models.Correlation {
	key := "correlation:" + strconv.Itoa(limit)
	return cachedStat(t, key, func(results []int) []models.Correlation {
		return stats.Correlate(results, limit)
	})
}

// StrategyRates returns per-strategy hit rates in display order.
func (t *Tracker) StrategyRates() []models.StrategyRate {
	start := time.Now()
	t.mu.Lock()
	rev := t.engine.Revision()
	rates, hit := cache.GetOrCompute(t.statsCache, "strategies", rev, func() []models.StrategyRate {
		return stats.StrategyRates(t.engine.Strategies())
	})
	t.mu.Unlock()
	observeStat("strategies", start, hit)
	return rates
}

func cachedStat[T any](t *Tracker, key string, fn func([]int) T) T {
	start := time.Now()
	t.mu.Lock()
	rev := t.engine.Revision()
	v, hit := cache.GetOrCompute(t.statsCache, key, rev, func() T {
		return fn(t.engine.Results())
	})
	t.mu.Unlock()
	observeStat(key, start, hit)
	return v
}

func observeStat(endpoint string, start time.Time, hit bool) {
	statsmetrics.Observe(endpoint, start)
	if hit {
		statsmetrics.StatsCacheHits.WithLabelValues(endpoint).Inc()
	}
}

func (t *Tracker) mutate(fn func(*strategy.Engine) (int, error)) (int, error) {
	t.mu.Lock()
	n, err := fn(t.engine)
	if err != nil {
		t.mu.Unlock()
		return n, err
	}
	t.gauge()
	snap, rev := t.snapshotLocked()
	t.mu.Unlock()
	t.persist(snap, rev)
	return n, nil
}

func (t *Tracker) mutateStrategy(fn func(*strategy.Engine) (*models.Strategy, error)) (*models.Strategy, error) {
	var out *models.Strategy
	_, err := t.mutate(func(e *strategy.Engine) (int, error) {
		s, err := fn(e)
		out = s
		return 0, err
	})
	return out, err
}

// snapshotLocked copies the engine state. Callers hold t.mu.
func (t *Tracker) snapshotLocked() (models.Snapshot, uint64) {
	if t.store == nil {
		return models.Snapshot{}, 0
	}
	return t.engine.Snapshot(), t.engine.Revision()
}

func (t *Tracker) gauge() {
	t.metrics.SetStrategies(t.engine.Counts())
}

func (t *Tracker) recordOutcomes() {
	t.engine.EachLastOutcome(func(kind models.ValueKind, o models.Outcome) {
		t.metrics.RecordOutcome(string(kind), string(o))
	})
}

func (t *Tracker) stamp(raw []models.AlertEvent, at time.Time) []models.AlertEvent {
	out := make([]models.AlertEvent, len(raw))
	for i, ev := range raw {
		ev.ID = t.newID()
		ev.OccurredAt = at.UTC()
		out[i] = ev
		t.metrics.RecordAlert(string(ev.Kind))
		t.log.Info("strategy alert",
			logger.String("strategy_id", ev.StrategyID),
			logger.String("strategy", ev.StrategyName),
			logger.String("kind", string(ev.Kind)),
			logger.Int("streak", ev.Streak),
			logger.Int("threshold", ev.Threshold),
		)
	}
	return out
}

func (t *Tracker) afterSpins(ctx context.Context, spins []models.Spin, alerts []models.AlertEvent) {
	for i := range spins {
		s := spins[i]
		if t.archive != nil {
			if err := t.archive.Process(ctx, &s); err != nil {
				t.log.Warn("archive spin", logger.Int64("seq", s.Seq), logger.Error(err))
			}
		}
		for _, l := range t.listeners {
			l.SpinRecorded(ctx, s)
		}
	}
	for _, ev := range alerts {
		for _, p := range t.alerts {
			if err := p.PublishAlert(ctx, ev); err != nil {
				t.metrics.RecordError("alert_publish")
				t.log.Warn("publish alert", logger.String("alert_id", ev.ID), logger.Error(err))
			}
		}
	}
}

// persist saves snap unless a newer revision was already saved.
func (t *Tracker) persist(snap models.Snapshot, rev uint64) {
	if t.store == nil {
		return
	}
	t.saveMu.Lock()
	defer t.saveMu.Unlock()
	if rev <= t.savedRev {
		return
	}
	snap.ExportDate = t.now().UTC()
	ctx, cancel := context.WithTimeout(context.Background(), t.saveTimeout)
	defer cancel()
	start := time.Now()
	if err := t.store.Save(ctx, snap); err != nil {
		t.metrics.RecordError("snapshot_save")
		t.log.Error("save snapshot", logger.Error(err))
		return
	}
	t.savedRev = rev
	t.metrics.RecordLatency("snapshot_save", time.Since(start).Seconds())
}
