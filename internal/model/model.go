// Package model contains the prediction sub-models combined by the ensemble.
// Each sub-model sees only the history handed to it; no model reaches past
// the end of its input slice.
package model

import (
	"context"

	"github.com/pwelter/hindcast/internal/core"
)

// Prediction is one sub-model's output for a single decision point.
type Prediction struct {
	Direction  core.Direction
	Confidence float64 // in [0, 1]
	// Fallback marks a prediction produced by a degraded path, e.g. a
	// heuristic substituted for an unavailable external model.
	Fallback bool
}

// SubModel produces a directional prediction from price history. The last
// bar of history is the decision bar; everything after it is unknown.
type SubModel interface {
	Name() string
	Predict(ctx context.Context, symbol string, history []core.PriceBar) (Prediction, error)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
