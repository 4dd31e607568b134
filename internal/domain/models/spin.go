package models

import "time"

// Spin sources.
const (
	SourceAPI   = "api"
	SourceFeed  = "feed"
	SourceKafka = "kafka"
)

// Spin is one recorded outcome. Seq is its 1-based position in the results log.
type Spin struct {
	Number     int       `json:"number"`
	Source     string    `json:"source"`
	Seq        int64     `json:"seq"`
	ObservedAt time.Time `json:"observedAt"`
}

// AlertKind names the threshold that was crossed.
type AlertKind string

const (
	AlertWinStreak  AlertKind = "win_streak"
	AlertLossStreak AlertKind = "loss_streak"
)

// AlertEvent is emitted once per threshold crossing.
type AlertEvent struct {
	ID           string    `json:"id"`
	StrategyID   string    `json:"strategyId"`
	StrategyName string    `json:"strategyName"`
	Kind         AlertKind `json:"kind"`
	Threshold    int       `json:"threshold"`
	Streak       int       `json:"streak"`
	Spin         int       `json:"spin"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// SnapshotVersion is written into every export.
const SnapshotVersion = "1.0"

// Snapshot is the export/import envelope. Results are newest first.
type Snapshot struct {
	Results    []int       `json:"results"`
	Strategies []*Strategy `json:"strategies"`
	ExportDate time.Time   `json:"exportDate"`
	Version    string      `json:"version"`
}
