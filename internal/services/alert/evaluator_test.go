package alert

import (
	"testing"

	"SpinTrack/internal/domain/models"
)

func strat(streak, win, loss int) *models.Strategy {
	return &models.Strategy{
		ID:                "s1",
		Type:              models.KindColor,
		Sequence:          []models.StrategyValue{models.ColorValue(models.ColorRed)},
		CurrentStreak:     streak,
		AlertOnWinStreak:  win,
		AlertOnLossStreak: loss,
	}
}

func TestEvaluateWinCrossing(t *testing.T) {
	ev := Evaluate(strat(2, 3, 0), strat(3, 3, 0), 7)
	if len(ev) != 1 {
		t.Fatalf("expected one event, got %d", len(ev))
	}
	e := ev[0]
	if e.Kind != models.AlertWinStreak || e.Threshold != 3 || e.Streak != 3 || e.Spin != 7 {
		t.Fatalf("unexpected event %+v", e)
	}
	if e.StrategyName != "red" {
		t.Fatalf("expected default name, got %q", e.StrategyName)
	}
}

func TestEvaluateEdgeTriggered(t *testing.T) {
	if ev := Evaluate(strat(3, 3, 0), strat(4, 3, 0), 1); len(ev) != 0 {
		t.Fatalf("must not re-fire above threshold: %+v", ev)
	}
	if ev := Evaluate(strat(-4, 0, 4), strat(-5, 0, 4), 1); len(ev) != 0 {
		t.Fatalf("must not re-fire above loss threshold: %+v", ev)
	}
}

func TestEvaluateLossCrossing(t *testing.T) {
	ev := Evaluate(strat(-1, 0, 2), strat(-2, 0, 2), 0)
	if len(ev) != 1 || ev[0].Kind != models.AlertLossStreak || ev[0].Streak != 2 {
		t.Fatalf("unexpected events %+v", ev)
	}
}

func TestEvaluateLossAfterWinRun(t *testing.T) {
	// a long win run flipping straight into a miss starts a fresh loss run
	ev := Evaluate(strat(5, 0, 1), strat(-1, 0, 1), 0)
	if len(ev) != 1 || ev[0].Kind != models.AlertLossStreak {
		t.Fatalf("expected loss alert, got %+v", ev)
	}
}

func TestEvaluateDisabled(t *testing.T) {
	if ev := Evaluate(strat(0, 0, 0), strat(1, 0, 0), 1); len(ev) != 0 {
		t.Fatalf("disabled thresholds must not fire: %+v", ev)
	}
	if ev := Evaluate(nil, strat(1, 1, 0), 1); ev != nil {
		t.Fatalf("nil before must not fire")
	}
}
