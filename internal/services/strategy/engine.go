// Package strategy hosts the strategy evaluation engine. An Engine is not
// safe for concurrent use; callers serialize access.
package strategy

import (
	"fmt"
	"sort"
	"strings"

	"SpinTrack/internal/domain/models"
	"SpinTrack/internal/services/alert"
	"SpinTrack/internal/services/wheel"

	"github.com/google/uuid"
)

// Engine owns the results log and the strategy collection. Strategy records
// are replaced wholesale on change and never handed out by reference.
type Engine struct {
	results      []int // oldest first
	strategies   []*models.Strategy
	historyLimit int
	maxStrat     int
	newID        func() string
	revision     uint64

	// windows maps a strategy id to the part of the log its run state was
	// built from.
	windows map[string]*runWindow
}

// runWindow is the log range a strategy's run state covers: every result
// from index since on, except those observed while it was paused.
type runWindow struct {
	since   int
	skipped map[int]bool
}

// Option configures Engine.
type Option func(*Engine)

// WithHistoryLimit keeps at most n history entries per strategy. 0 keeps all.
func WithHistoryLimit(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.historyLimit = n
		}
	}
}

// WithMaxStrategies caps the collection size. 0 means no cap.
func WithMaxStrategies(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxStrat = n
		}
	}
}

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// New creates an empty engine.
func New(opts ...Option) *Engine {
	e := &Engine{newID: uuid.NewString, windows: map[string]*runWindow{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Observe folds n into every active strategy, re-sorts the collection and
// returns the alerts it triggered.
func (e *Engine) Observe(n int) ([]models.AlertEvent, error) {
	if !models.ValidNumber(n) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidNumber, n)
	}
	var events []models.AlertEvent
	idx := len(e.results)
	for i, cur := range e.strategies {
		if !cur.IsActive {
			w := e.window(cur.ID)
			if w.skipped == nil {
				w.skipped = map[int]bool{}
			}
			w.skipped[idx] = true
			continue
		}
		next := cur.Clone()
		step(next, n, e.historyLimit)
		events = append(events, alert.Evaluate(cur, next, n)...)
		e.strategies[i] = next
	}
	e.results = append(e.results, n)
	sortByPriority(e.strategies)
	e.revision++
	return events, nil
}

// ObserveBatch takes nums newest first, like the results log, so the last
// number is observed first. Invalid numbers are skipped. accepted keeps the
// order of nums. each, when set, runs after every accepted observation.
func (e *Engine) ObserveBatch(nums []int, each func(n int)) (accepted []int, events []models.AlertEvent) {
	for i := len(nums) - 1; i >= 0; i-- {
		ev, err := e.Observe(nums[i])
		if err != nil {
			continue
		}
		accepted = append(accepted, nums[i])
		events = append(events, ev...)
		if each != nil {
			each(nums[i])
		}
	}
	for i, j := 0, len(accepted)-1; i < j; i, j = i+1, j-1 {
		accepted[i], accepted[j] = accepted[j], accepted[i]
	}
	return accepted, events
}

// Create validates spec, back-fills the new strategy from the results log and
// appends it to the collection.
func (e *Engine) Create(spec models.StrategySpec) (*models.Strategy, error) {
	if e.maxStrat > 0 && len(e.strategies) >= e.maxStrat {
		return nil, ErrTooManyStrategies
	}
	s := &models.Strategy{
		ID:                e.newID(),
		Name:              strings.TrimSpace(spec.Name),
		Type:              spec.Type,
		Sequence:          make([]models.StrategyValue, len(spec.Sequence)),
		IsActive:          true,
		AlertOnWinStreak:  spec.AlertOnWinStreak,
		AlertOnLossStreak: spec.AlertOnLossStreak,
	}
	for i, v := range spec.Sequence {
		s.Sequence[i] = v.Clone()
	}
	if s.Type == "" && len(s.Sequence) > 0 {
		s.Type = s.Sequence[0].Kind
	}
	if err := s.ValidateDefinition(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStrategySpec, err)
	}
	if spec.Neighbors < 0 {
		return nil, fmt.Errorf("%w: neighbors cannot be negative", ErrInvalidStrategySpec)
	}
	if spec.Neighbors > 0 && s.Type == models.KindTargetNumbers {
		s.Sequence[0].Targets = wheel.ExpandNeighbors(s.Sequence[0].Targets, spec.Neighbors)
	}
	if s.Name == "" {
		s.Name = s.DefaultName()
	}
	s.ResetRun()

	for _, n := range e.results {
		step(s, n, e.historyLimit)
	}
	s.IsActive = !spec.Inactive
	e.strategies = append(e.strategies, s)
	e.windows[s.ID] = &runWindow{}
	e.revision++
	return s.Clone(), nil
}

// Remove deletes a strategy.
func (e *Engine) Remove(id string) error {
	i, err := e.find(id)
	if err != nil {
		return err
	}
	delete(e.windows, id)
	e.strategies = append(e.strategies[:i], e.strategies[i+1:]...)
	e.revision++
	return nil
}

// Toggle flips the active flag. Paused strategies skip observations.
func (e *Engine) Toggle(id string) (*models.Strategy, error) {
	return e.update(id, func(s *models.Strategy) {
		s.IsActive = !s.IsActive
	})
}

// Reset zeroes a strategy's run state and keeps its configuration.
func (e *Engine) Reset(id string) (*models.Strategy, error) {
	s, err := e.update(id, (*models.Strategy).ResetRun)
	if err == nil {
		e.windows[id] = &runWindow{since: len(e.results)}
	}
	return s, err
}

// ResetAll resets every strategy.
func (e *Engine) ResetAll() {
	for i, cur := range e.strategies {
		next := cur.Clone()
		next.ResetRun()
		e.strategies[i] = next
		e.windows[next.ID] = &runWindow{since: len(e.results)}
	}
	e.revision++
}

// UpdateAlertThresholds sets the thresholds that are non-nil. 0 disables a
// threshold. Priority is always cleared.
func (e *Engine) UpdateAlertThresholds(id string, win, loss *int) (*models.Strategy, error) {
	if (win != nil && *win < 0) || (loss != nil && *loss < 0) {
		return nil, fmt.Errorf("%w: alert thresholds cannot be negative", ErrInvalidStrategySpec)
	}
	return e.update(id, func(s *models.Strategy) {
		if win != nil {
			s.AlertOnWinStreak = *win
		}
		if loss != nil {
			s.AlertOnLossStreak = *loss
		}
		s.IsPriority = false
	})
}

// Strategy returns a copy of one strategy.
func (e *Engine) Strategy(id string) (*models.Strategy, error) {
	i, err := e.find(id)
	if err != nil {
		return nil, err
	}
	return e.strategies[i].Clone(), nil
}

// Strategies returns copies in display order.
func (e *Engine) Strategies() []*models.Strategy {
	out := make([]*models.Strategy, len(e.strategies))
	for i, s := range e.strategies {
		out[i] = s.Clone()
	}
	return out
}

// Results returns the log newest first.
func (e *Engine) Results() []int {
	out := make([]int, len(e.results))
	for i, n := range e.results {
		out[len(e.results)-1-i] = n
	}
	return out
}

// Counts reports how many strategies are active, paused and flagged priority.
func (e *Engine) Counts() (active, paused, priority int) {
	for _, s := range e.strategies {
		if s.IsActive {
			active++
		} else {
			paused++
		}
		if s.IsPriority {
			priority++
		}
	}
	return active, paused, priority
}

// EachLastOutcome calls fn with the newest history entry of every active
// strategy. Right after Observe that is the outcome of the observed number.
func (e *Engine) EachLastOutcome(fn func(kind models.ValueKind, o models.Outcome)) {
	for _, s := range e.strategies {
		if s.IsActive && len(s.History) > 0 {
			fn(s.Type, s.History[len(s.History)-1].Result)
		}
	}
}

// Len is the number of recorded results.
func (e *Engine) Len() int { return len(e.results) }

// Revision changes on every mutation.
func (e *Engine) Revision() uint64 { return e.revision }

// UndoLast drops the newest result. Every strategy that observed it is
// rebuilt by replaying its own window of the log, so resets and pauses are
// kept. Strategies that were paused or reset after it are left as they are.
func (e *Engine) UndoLast() (int, error) {
	if len(e.results) == 0 {
		return 0, ErrNothingToUndo
	}
	idx := len(e.results) - 1
	last := e.results[idx]
	e.results = e.results[:idx]
	for i, cur := range e.strategies {
		w := e.window(cur.ID)
		switch {
		case w.since > idx:
			w.since = idx
		case w.skipped[idx]:
			delete(w.skipped, idx)
		default:
			e.strategies[i] = e.replay(cur, w)
		}
	}
	sortByPriority(e.strategies)
	e.revision++
	return last, nil
}

// ClearResults empties the log and resets every strategy.
func (e *Engine) ClearResults() {
	e.results = nil
	e.ResetAll()
}

// Load replaces the engine state. results are newest first. Either every
// strategy is accepted or the engine is left untouched. Loaded run state is
// taken to cover the whole log.
func (e *Engine) Load(results []int, strategies []*models.Strategy) error {
	log := make([]int, len(results))
	for i, n := range results {
		if !models.ValidNumber(n) {
			return fmt.Errorf("%w: results[%d]=%d", ErrInvalidSnapshot, i, n)
		}
		log[len(results)-1-i] = n
	}
	if e.maxStrat > 0 && len(strategies) > e.maxStrat {
		return ErrTooManyStrategies
	}
	seen := make(map[string]bool, len(strategies))
	loaded := make([]*models.Strategy, 0, len(strategies))
	for i, in := range strategies {
		if in == nil {
			return fmt.Errorf("%w: strategies[%d] is null", ErrInvalidSnapshot, i)
		}
		s, err := normalize(in.Clone())
		if err != nil {
			return fmt.Errorf("%w: strategies[%d]: %v", ErrInvalidSnapshot, i, err)
		}
		if s.ID == "" || seen[s.ID] {
			s.ID = e.newID()
		}
		seen[s.ID] = true
		loaded = append(loaded, s)
	}
	e.results = log
	e.strategies = loaded
	e.windows = make(map[string]*runWindow, len(loaded))
	for _, s := range loaded {
		e.windows[s.ID] = &runWindow{}
	}
	e.revision++
	return nil
}

// Snapshot returns the export envelope without a date.
func (e *Engine) Snapshot() models.Snapshot {
	return models.Snapshot{
		Results:    e.Results(),
		Strategies: e.Strategies(),
		Version:    models.SnapshotVersion,
	}
}

func (e *Engine) replay(cur *models.Strategy, w *runWindow) *models.Strategy {
	next := cur.Clone()
	next.ResetRun()
	next.IsActive = true
	for i := w.since; i < len(e.results); i++ {
		if !w.skipped[i] {
			step(next, e.results[i], e.historyLimit)
		}
	}
	next.IsActive = cur.IsActive
	return next
}

func (e *Engine) window(id string) *runWindow {
	w, ok := e.windows[id]
	if !ok {
		w = &runWindow{}
		e.windows[id] = w
	}
	return w
}

func (e *Engine) update(id string, fn func(*models.Strategy)) (*models.Strategy, error) {
	i, err := e.find(id)
	if err != nil {
		return nil, err
	}
	next := e.strategies[i].Clone()
	fn(next)
	e.strategies[i] = next
	e.revision++
	return next.Clone(), nil
}

func (e *Engine) find(id string) (int, error) {
	for i, s := range e.strategies {
		if s.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrStrategyNotFound, id)
}

// normalize fills fields older exports omit and rejects broken run state.
func normalize(s *models.Strategy) (*models.Strategy, error) {
	if s.Type == "" && len(s.Sequence) > 0 {
		s.Type = s.Sequence[0].Kind
	}
	if err := s.ValidateDefinition(); err != nil {
		return nil, err
	}
	if s.Hits < 0 || s.Misses < 0 || s.LongestWinStreak < 0 || s.LongestLossStreak < 0 {
		return nil, fmt.Errorf("counters cannot be negative")
	}
	if s.History == nil {
		s.History = []models.HistoryEntry{}
	}
	switch s.Mode() {
	case models.ModeOrdered:
		if s.CurrentProgress < 0 || s.CurrentProgress >= len(s.Sequence) {
			s.CurrentProgress = 0
		}
		s.CurrentConsecutiveHits = 0
		s.ConsecutiveHitStreaks = nil
	case models.ModeTargetNumbers:
		if s.CurrentConsecutiveHits != 1 {
			s.CurrentConsecutiveHits = 0
		}
	default:
		if s.CurrentConsecutiveHits < 0 {
			s.CurrentConsecutiveHits = 0
		}
	}
	if s.Mode() != models.ModeOrdered && s.ConsecutiveHitStreaks == nil {
		s.ConsecutiveHitStreaks = map[int]int{}
	}
	return s, nil
}

// sortByPriority orders priority first, then active, then paused. Ties keep
// their relative order.
func sortByPriority(list []*models.Strategy) {
	sort.SliceStable(list, func(i, j int) bool {
		return rank(list[i]) < rank(list[j])
	})
}

func rank(s *models.Strategy) int {
	switch {
	case s.IsPriority:
		return 0
	case s.IsActive:
		return 1
	default:
		return 2
	}
}
