package strategy

import (
	"SpinTrack/internal/domain/models"
	"SpinTrack/internal/services/matcher"
)

// step folds one observed number into s in place. Callers own s exclusively;
// the engine always hands it a fresh clone. historyLimit > 0 keeps only that
// many of the newest history entries.
func step(s *models.Strategy, n int, historyLimit int) {
	if !s.IsActive || len(s.Sequence) == 0 {
		return
	}
	switch s.Mode() {
	case models.ModeNumberSet:
		stepNumberSet(s, n)
	case models.ModeTargetNumbers:
		stepTargetNumbers(s, n)
	default:
		stepOrdered(s, n)
	}
	if historyLimit > 0 && len(s.History) > historyLimit {
		s.History = s.History[len(s.History)-historyLimit:]
	}
}

func stepOrdered(s *models.Strategy, n int) {
	seq := s.Sequence
	last := len(seq) - 1
	p := s.CurrentProgress
	if p < 0 || p > last {
		p = 0
	}

	// A completed or failed attempt restarts at 1 when the same spin opens the
	// sequence again. Single element sequences always restart at 0.
	restart := func() int {
		if last > 0 && matcher.Matches(n, seq[0]) {
			return 1
		}
		return 0
	}

	if matcher.Matches(n, seq[p]) {
		if p == last {
			recordHit(s, n)
			s.CurrentProgress = restart()
			return
		}
		s.History = append(s.History, models.HistoryEntry{Spin: n, Result: models.OutcomeProgress})
		s.CurrentProgress = p + 1
		return
	}

	if p == last {
		recordMiss(s, n)
	}
	s.CurrentProgress = restart()
}

func stepNumberSet(s *models.Strategy, n int) {
	if s.ConsecutiveHitStreaks == nil {
		s.ConsecutiveHitStreaks = map[int]int{}
	}
	set := s.Sequence[0].Numbers

	if matcher.Contains(set, n) {
		s.CurrentConsecutiveHits++
		// the first number of a run only seeds it
		if s.CurrentConsecutiveHits >= 2 {
			recordHit(s, n)
		}
		return
	}

	run := s.CurrentConsecutiveHits
	switch {
	case run <= 0:
		s.CurrentConsecutiveHits = 0
		return
	case run >= 2:
		s.ConsecutiveHitStreaks[run]++
	}
	recordMiss(s, n)
	// n is outside the set, so it never seeds a new run
	s.CurrentConsecutiveHits = 0
}

func stepTargetNumbers(s *models.Strategy, n int) {
	v := s.Sequence[0]
	if s.ConsecutiveHitStreaks == nil {
		s.ConsecutiveHitStreaks = map[int]int{}
	}
	inBase := matcher.Contains(v.Base, n)

	if s.CurrentConsecutiveHits != 1 {
		if inBase {
			s.CurrentConsecutiveHits = 1
		} else {
			s.CurrentConsecutiveHits = 0
		}
		return
	}

	if matcher.Contains(v.Targets, n) {
		recordHit(s, n)
	} else {
		recordMiss(s, n)
	}
	if inBase {
		s.CurrentConsecutiveHits = 1
	} else {
		s.CurrentConsecutiveHits = 0
	}
}

func recordHit(s *models.Strategy, n int) {
	prevStreak := s.CurrentStreak
	s.Hits++
	s.History = append(s.History, models.HistoryEntry{Spin: n, Result: models.OutcomeHit})
	if s.CurrentStreak >= 0 {
		s.CurrentStreak++
	} else {
		s.CurrentStreak = 1
	}
	if s.CurrentStreak > s.LongestWinStreak {
		s.LongestWinStreak = s.CurrentStreak
	}

	// A priority held over from a loss run is dropped on the first hit and
	// win priority is only granted from the next hit on.
	if s.IsPriority && prevStreak < 0 && s.AlertOnLossStreak > 0 {
		s.IsPriority = false
		return
	}
	s.IsPriority = s.AlertOnWinStreak > 0 && s.CurrentStreak >= s.AlertOnWinStreak
}

func recordMiss(s *models.Strategy, n int) {
	s.Misses++
	s.History = append(s.History, models.HistoryEntry{Spin: n, Result: models.OutcomeMiss})
	if s.CurrentStreak <= 0 {
		s.CurrentStreak--
	} else {
		s.CurrentStreak = -1
	}
	if -s.CurrentStreak > s.LongestLossStreak {
		s.LongestLossStreak = -s.CurrentStreak
	}
	s.IsPriority = s.AlertOnLossStreak > 0 && -s.CurrentStreak >= s.AlertOnLossStreak
}
