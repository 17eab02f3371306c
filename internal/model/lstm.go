package model

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/pwelter/hindcast/internal/core"
	"github.com/pwelter/hindcast/internal/indicator"
)

// SequenceClient scores a close-price sequence with an external sequence
// model. Score is the predicted next-bar return; positive means up.
type SequenceClient interface {
	Score(ctx context.Context, symbol string, closes []float64) (float64, error)
}

// LSTM wraps an external sequence model. When no client is configured or
// the client fails, it degrades to an EMA momentum heuristic and flags the
// prediction as a fallback.
type LSTM struct {
	client SequenceClient
	logger *zap.Logger
}

func NewLSTM(client SequenceClient, logger *zap.Logger) *LSTM {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LSTM{client: client, logger: logger}
}

func (l *LSTM) Name() string { return "lstm" }

func (l *LSTM) Predict(ctx context.Context, symbol string, history []core.PriceBar) (Prediction, error) {
	if len(history) < 26 {
		return Prediction{Direction: core.DirectionFlat, Confidence: 0}, nil
	}
	closes := core.Closes(history)

	if l.client != nil {
		score, err := l.client.Score(ctx, symbol, closes)
		if err == nil {
			// Map the predicted return into [0, 1]; a 2% move saturates.
			conf := clamp01(math.Abs(score) * 50)
			return Prediction{Direction: core.Sign(score), Confidence: conf}, nil
		}
		l.logger.Warn("sequence model unavailable, using momentum fallback",
			zap.String("symbol", symbol), zap.Error(err))
	}

	return l.momentumFallback(closes), nil
}

// momentumFallback votes the spread between fast and slow EMAs.
func (l *LSTM) momentumFallback(closes []float64) Prediction {
	fast := indicator.EMA(closes, 12)
	slow := indicator.EMA(closes, 26)
	if len(fast) == 0 || len(slow) == 0 {
		return Prediction{Direction: core.DirectionFlat, Confidence: 0, Fallback: true}
	}

	spread := fast[len(fast)-1] - slow[len(slow)-1]
	last := closes[len(closes)-1]
	if last <= 0 {
		return Prediction{Direction: core.DirectionFlat, Confidence: 0, Fallback: true}
	}
	conf := clamp01(math.Abs(spread) / last * 100)
	return Prediction{Direction: core.Sign(spread), Confidence: conf, Fallback: true}
}
