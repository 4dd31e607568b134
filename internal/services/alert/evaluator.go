package alert

import "SpinTrack/internal/domain/models"

// Evaluate compares a strategy right before and right after one observation
// and returns one event per threshold that was just reached. A streak that
// stays at or above its threshold reports nothing. Event ID and time are left
// to the caller.
func Evaluate(before, after *models.Strategy, spin int) []models.AlertEvent {
	if before == nil || after == nil {
		return nil
	}
	var events []models.AlertEvent
	if t := after.AlertOnWinStreak; t > 0 && crossed(winRun(before), winRun(after), t) {
		events = append(events, event(after, models.AlertWinStreak, t, winRun(after), spin))
	}
	if t := after.AlertOnLossStreak; t > 0 && crossed(lossRun(before), lossRun(after), t) {
		events = append(events, event(after, models.AlertLossStreak, t, lossRun(after), spin))
	}
	return events
}

func crossed(before, after, threshold int) bool {
	return before < threshold && after >= threshold
}

func winRun(s *models.Strategy) int {
	if s.CurrentStreak > 0 {
		return s.CurrentStreak
	}
	return 0
}

func lossRun(s *models.Strategy) int {
	if s.CurrentStreak < 0 {
		return -s.CurrentStreak
	}
	return 0
}

func event(s *models.Strategy, kind models.AlertKind, threshold, streak, spin int) models.AlertEvent {
	name := s.Name
	if name == "" {
		name = s.DefaultName()
	}
	return models.AlertEvent{
		StrategyID:   s.ID,
		StrategyName: name,
		Kind:         kind,
		Threshold:    threshold,
		Streak:       streak,
		Spin:         spin,
	}
}
