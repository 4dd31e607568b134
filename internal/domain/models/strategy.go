package models

import (
	"errors"
	"fmt"
	"strings"
)

// Outcome classifies one observation relative to a strategy.
type Outcome string

const (
	OutcomeHit      Outcome = "hit"
	OutcomeMiss     Outcome = "miss"
	OutcomeProgress Outcome = "progress"
)

// HistoryEntry is one logged observation.
type HistoryEntry struct {
	Spin   int     `json:"spin"`
	Result Outcome `json:"result"`
}

// Mode selects the transition rules a strategy follows.
type Mode int

const (
	ModeOrdered Mode = iota
	ModeNumberSet
	ModeTargetNumbers
)

func (m Mode) String() string {
	switch m {
	case ModeNumberSet:
		return "number-set"
	case ModeTargetNumbers:
		return "target-numbers"
	default:
		return "ordered"
	}
}

// Strategy is a pattern matcher and its run state.
type Strategy struct {
	ID       string          `json:"id"`
	Name     string          `json:"name,omitempty"`
	Type     ValueKind       `json:"type"`
	Sequence []StrategyValue `json:"sequence"`

	Hits              int            `json:"hits"`
	Misses            int            `json:"misses"`
	CurrentProgress   int            `json:"currentProgress"`
	IsActive          bool           `json:"isActive"`
	History           []HistoryEntry `json:"history"`
	CurrentStreak     int            `json:"currentStreak"`
	LongestWinStreak  int            `json:"longestWinStreak"`
	LongestLossStreak int            `json:"longestLossStreak"`

	// Set modes only. For target-numbers CurrentConsecutiveHits is the phase
	// flag: 0 awaiting base, 1 awaiting target.
	CurrentConsecutiveHits int         `json:"currentConsecutiveHits"`
	ConsecutiveHitStreaks  map[int]int `json:"consecutiveHitStreaks"`

	AlertOnWinStreak  int  `json:"alertOnWinStreak"`
	AlertOnLossStreak int  `json:"alertOnLossStreak"`
	IsPriority        bool `json:"isPriority"`
}

// Mode derives the transition rules from the type tag.
func (s *Strategy) Mode() Mode {
	switch s.Type {
	case KindNumberSet:
		return ModeNumberSet
	case KindTargetNumbers:
		return ModeTargetNumbers
	default:
		return ModeOrdered
	}
}

// Clone returns a deep copy.
func (s *Strategy) Clone() *Strategy {
	if s == nil {
		return nil
	}
	out := *s
	out.Sequence = make([]StrategyValue, len(s.Sequence))
	for i, v := range s.Sequence {
		out.Sequence[i] = v.Clone()
	}
	out.History = append(make([]HistoryEntry, 0, len(s.History)+1), s.History...)
	if s.ConsecutiveHitStreaks != nil {
		out.ConsecutiveHitStreaks = make(map[int]int, len(s.ConsecutiveHitStreaks))
		for k, v := range s.ConsecutiveHitStreaks {
			out.ConsecutiveHitStreaks[k] = v
		}
	}
	return &out
}

// ResetRun zeroes run state and keeps identity, activity and thresholds.
func (s *Strategy) ResetRun() {
	s.Hits = 0
	s.Misses = 0
	s.CurrentProgress = 0
	s.History = []HistoryEntry{}
	s.CurrentStreak = 0
	s.LongestWinStreak = 0
	s.LongestLossStreak = 0
	s.CurrentConsecutiveHits = 0
	s.ConsecutiveHitStreaks = nil
	if s.Mode() != ModeOrdered {
		s.ConsecutiveHitStreaks = map[int]int{}
	}
	s.IsPriority = false
}

// DefaultName joins the element labels, e.g. "red → odd".
func (s *Strategy) DefaultName() string {
	labels := make([]string, len(s.Sequence))
	for i, v := range s.Sequence {
		labels[i] = v.Label()
	}
	return strings.Join(labels, " → ")
}

// ValidateDefinition checks type and sequence shape. Run state is not checked.
func (s *Strategy) ValidateDefinition() error {
	if !s.Type.Valid() {
		return fmt.Errorf("unknown strategy type %q", s.Type)
	}
	if len(s.Sequence) == 0 {
		return errors.New("sequence cannot be empty")
	}
	for i, v := range s.Sequence {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("sequence[%d]: %w", i, err)
		}
	}
	switch s.Mode() {
	case ModeNumberSet, ModeTargetNumbers:
		if len(s.Sequence) != 1 || s.Sequence[0].Kind != s.Type {
			return fmt.Errorf("%s strategy needs exactly one %s element", s.Type, s.Type)
		}
	default:
		for i, v := range s.Sequence {
			if !v.Kind.Ordered() {
				return fmt.Errorf("sequence[%d]: %s cannot be part of an ordered sequence", i, v.Kind)
			}
		}
	}
	if s.AlertOnWinStreak < 0 || s.AlertOnLossStreak < 0 {
		return errors.New("alert thresholds cannot be negative")
	}
	return nil
}

// StrategySpec is the input for creating a strategy.
type StrategySpec struct {
	Name              string
	Type              ValueKind
	Sequence          []StrategyValue
	AlertOnWinStreak  int
	AlertOnLossStreak int
	Inactive          bool
	// Neighbors widens every target of a target-numbers element by this many
	// wheel pockets on each side.
	Neighbors int
}
