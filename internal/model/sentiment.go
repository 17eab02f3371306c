package model

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/pwelter/hindcast/internal/core"
)

// Scorer rates market sentiment for a symbol as of a date, in [-1, 1].
type Scorer interface {
	Score(ctx context.Context, symbol string, asOf time.Time) (float64, error)
}

// Sentiment wraps an external sentiment scorer. Without a scorer, or when
// the scorer fails, it falls back to the sign of the recent price return
// and flags the prediction.
type Sentiment struct {
	scorer Scorer
	logger *zap.Logger
}

func NewSentiment(scorer Scorer, logger *zap.Logger) *Sentiment {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sentiment{scorer: scorer, logger: logger}
}

func (s *Sentiment) Name() string { return "sentiment" }

func (s *Sentiment) Predict(ctx context.Context, symbol string, history []core.PriceBar) (Prediction, error) {
	if len(history) == 0 {
		return Prediction{Direction: core.DirectionFlat, Confidence: 0}, nil
	}
	asOf := history[len(history)-1].Date

	if s.scorer != nil {
		score, err := s.scorer.Score(ctx, symbol, asOf)
		if err == nil {
			return Prediction{
				Direction:  core.Sign(score),
				Confidence: clamp01(math.Abs(score)),
			}, nil
		}
		s.logger.Warn("sentiment scorer unavailable, using return fallback",
			zap.String("symbol", symbol), zap.Error(err))
	}

	return s.returnFallback(history), nil
}

// returnFallback proxies sentiment with the 5-bar price return.
func (s *Sentiment) returnFallback(history []core.PriceBar) Prediction {
	const lookback = 5
	if len(history) < lookback+1 {
		return Prediction{Direction: core.DirectionFlat, Confidence: 0, Fallback: true}
	}
	prev := history[len(history)-1-lookback].Close
	last := history[len(history)-1].Close
	if prev <= 0 {
		return Prediction{Direction: core.DirectionFlat, Confidence: 0, Fallback: true}
	}
	ret := (last - prev) / prev
	return Prediction{
		Direction:  core.Sign(ret),
		Confidence: clamp01(math.Abs(ret) * 20),
		Fallback:   true,
	}
}
