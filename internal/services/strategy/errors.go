package strategy

import "errors"

var (
	ErrInvalidNumber       = errors.New("strategy: number must be an integer in [0,36]")
	ErrInvalidStrategySpec = errors.New("strategy: invalid strategy spec")
	ErrStrategyNotFound    = errors.New("strategy: not found")
	ErrTooManyStrategies   = errors.New("strategy: strategy limit reached")
	ErrNothingToUndo       = errors.New("strategy: no results to undo")
	ErrInvalidSnapshot     = errors.New("strategy: invalid snapshot")
)
