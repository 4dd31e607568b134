package models

// Requests for tracker HTTP endpoints.

type AddResultRequest struct {
	Number *int `json:"number" validate:"required,gte=0,lte=36"`
}

type AddBatchRequest struct {
	Numbers []int  `json:"numbers" validate:"required_without=Text,max=500"`
	Text    string `json:"text" validate:"required_without=Numbers,max=4000"`
}

type CreateStrategyRequest struct {
	Name              string          `json:"name" validate:"max=80"`
	Type              string          `json:"type" validate:"omitempty,oneof=color parity range dozen column number number-set target-numbers"`
	Sequence          []StrategyValue `json:"sequence" validate:"required,min=1,max=20"`
	AlertOnWinStreak  int             `json:"alertOnWinStreak" validate:"gte=0,lte=100"`
	AlertOnLossStreak int             `json:"alertOnLossStreak" validate:"gte=0,lte=100"`
	Neighbors         int             `json:"neighbors" validate:"gte=0,lte=18"`
	Active            *bool           `json:"active" default:"true"`
}

type StrategyIDRequest struct {
	ID string `param:"id" validate:"required"`
}

type UpdateAlertsRequest struct {
	ID                string `param:"id" validate:"required"`
	AlertOnWinStreak  *int   `json:"alertOnWinStreak" validate:"omitempty,gte=0,lte=100"`
	AlertOnLossStreak *int   `json:"alertOnLossStreak" validate:"omitempty,gte=0,lte=100"`
}

type ImportSnapshotRequest struct {
	Results    *[]int      `json:"results" validate:"required"`
	Strategies []*Strategy `json:"strategies"`
	Version    string      `json:"version"`
}

type ResultsRequest struct {
	Limit int `query:"limit" default:"100" validate:"gte=1,lte=10000"`
}

type CorrelationRequest struct {
	Limit int `query:"limit" default:"10" validate:"gte=1,lte=37"`
}

type NeighborsRequest struct {
	Number int `query:"number" validate:"gte=0,lte=36"`
	Count  int `query:"count" default:"1" validate:"gte=0,lte=18"`
}
