package model

import (
	"context"
	"math"

	"github.com/markcheno/go-talib"

	"github.com/pwelter/hindcast/internal/core"
)

// technicalMinBars covers the slowest indicator warm-up (MACD slow EMA plus
// signal line).
const technicalMinBars = 40

// Technical votes three classic indicators and takes the majority direction:
// RSI relative to the 50 midline, MACD histogram sign, and price versus its
// 20-bar EMA.
type Technical struct{}

func NewTechnical() *Technical {
	return &Technical{}
}

func (t *Technical) Name() string { return "technical" }

func (t *Technical) Predict(ctx context.Context, symbol string, history []core.PriceBar) (Prediction, error) {
	if len(history) < technicalMinBars {
		return Prediction{Direction: core.DirectionFlat, Confidence: 0}, nil
	}
	closes := core.Closes(history)
	last := len(closes) - 1

	if flatSeries(closes) {
		return Prediction{Direction: core.DirectionFlat, Confidence: 0}, nil
	}

	var votes []core.Direction

	rsi := talib.Rsi(closes, 14)
	switch {
	case rsi[last] > 50:
		votes = append(votes, core.DirectionUp)
	case rsi[last] < 50:
		votes = append(votes, core.DirectionDown)
	default:
		votes = append(votes, core.DirectionFlat)
	}

	_, _, hist := talib.Macd(closes, 12, 26, 9)
	votes = append(votes, core.Sign(hist[last]))

	ema := talib.Ema(closes, 20)
	votes = append(votes, core.Sign(closes[last]-ema[last]))

	var sum int
	for _, v := range votes {
		sum += int(v)
	}
	dir := core.Sign(float64(sum))

	// Confidence scales with vote agreement: 3-0 is strong, 2-1 weak.
	conf := math.Abs(float64(sum)) / float64(len(votes))
	return Prediction{Direction: dir, Confidence: clamp01(conf)}, nil
}

// flatSeries reports whether every value equals the first. Indicator math
// on a zero-variance series is noise, not signal.
func flatSeries(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
