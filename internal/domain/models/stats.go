package models

import "github.com/shopspring/decimal"

// Share is a count with its percentage of the total.
type Share struct {
	Count   int             `json:"count"`
	Percent decimal.Decimal `json:"percent"`
}

// Summary aggregates attribute counts over the results log.
type Summary struct {
	Total  int              `json:"total"`
	Red    Share            `json:"red"`
	Black  Share            `json:"black"`
	Green  Share            `json:"green"`
	Even   Share            `json:"even"`
	Odd    Share            `json:"odd"`
	Low    Share            `json:"low"`
	High   Share            `json:"high"`
	Dozens map[string]Share `json:"dozens"`
	Cols   map[string]Share `json:"columns"`
	Last   *int             `json:"lastNumber,omitempty"`
}

// NumberCount is the frequency of one number.
type NumberCount struct {
	Number int `json:"number"`
	Count  int `json:"count"`
}

// HotCold lists the most and least frequent numbers.
type HotCold struct {
	Hot  []NumberCount `json:"hot"`
	Cold []NumberCount `json:"cold"`
}

// Follower is a number that came right after another one.
type Follower struct {
	Number  int             `json:"number"`
	Count   int             `json:"count"`
	Percent decimal.Decimal `json:"percent"`
}

// Correlation lists what tends to follow Number.
type Correlation struct {
	Number      int        `json:"number"`
	Occurrences int        `json:"totalOccurrences"`
	Followers   []Follower `json:"followers"`
}

// StrategyRate is a strategy's hit rate over decided outcomes.
type StrategyRate struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Hits     int             `json:"hits"`
	Misses   int             `json:"misses"`
	HitRate  decimal.Decimal `json:"hitRate"`
	Streak   int             `json:"currentStreak"`
	Priority bool            `json:"isPriority"`
}
