package model

import (
	"context"
	"math"

	"github.com/pwelter/hindcast/internal/core"
	"github.com/pwelter/hindcast/internal/indicator"
)

// trendLookback is the number of closes the regression is fit over.
const trendLookback = 20

// Trend predicts from the slope of a least-squares fit over recent closes.
// Confidence comes from the fit quality scaled by the slope magnitude.
type Trend struct {
	Lookback int
}

func NewTrend() *Trend {
	return &Trend{Lookback: trendLookback}
}

func (t *Trend) Name() string { return "trend" }

func (t *Trend) Predict(ctx context.Context, symbol string, history []core.PriceBar) (Prediction, error) {
	lookback := t.Lookback
	if lookback <= 0 {
		lookback = trendLookback
	}
	if len(history) < lookback {
		return Prediction{Direction: core.DirectionFlat, Confidence: 0}, nil
	}

	closes := core.Closes(history[len(history)-lookback:])
	slope, r2 := indicator.Slope(closes)

	last := closes[len(closes)-1]
	if last <= 0 {
		return Prediction{Direction: core.DirectionFlat, Confidence: 0}, nil
	}
	// Normalize slope to a per-bar return so confidence is price-scale free.
	relSlope := math.Abs(slope) / last
	conf := clamp01(r2 * clamp01(relSlope*200))

	return Prediction{Direction: core.Sign(slope), Confidence: conf}, nil
}
