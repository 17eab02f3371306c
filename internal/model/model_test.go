package model

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/pwelter/hindcast/internal/core"
)

// barsFrom builds daily bars from the given closes, starting Monday
// 2025-01-06 and stepping one calendar day at a time.
func barsFrom(closes []float64) []core.PriceBar {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	bars := make([]core.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = core.PriceBar{
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func risingCloses(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

func fallingCloses(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 200 - float64(i)
	}
	return out
}

func flatCloses(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100
	}
	return out
}

func TestTrendPredict(t *testing.T) {
	m := NewTrend()
	ctx := context.Background()

	tests := []struct {
		name   string
		closes []float64
		want   core.Direction
	}{
		{"rising", risingCloses(60), core.DirectionUp},
		{"falling", fallingCloses(60), core.DirectionDown},
		{"flat", flatCloses(60), core.DirectionFlat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := m.Predict(ctx, "TEST", barsFrom(tt.closes))
			if err != nil {
				t.Fatal(err)
			}
			if p.Direction != tt.want {
				t.Errorf("direction = %d, want %d", p.Direction, tt.want)
			}
			if p.Confidence < 0 || p.Confidence > 1 {
				t.Errorf("confidence %v out of [0,1]", p.Confidence)
			}
			if tt.want == core.DirectionFlat && p.Confidence != 0 {
				t.Errorf("flat series confidence = %v, want 0", p.Confidence)
			}
		})
	}
}

func TestTrendInsufficientHistory(t *testing.T) {
	m := NewTrend()
	p, err := m.Predict(context.Background(), "TEST", barsFrom(risingCloses(5)))
	if err != nil {
		t.Fatal(err)
	}
	if p.Direction != core.DirectionFlat || p.Confidence != 0 {
		t.Errorf("got %+v, want flat zero-confidence", p)
	}
}

func TestTechnicalPredict(t *testing.T) {
	m := NewTechnical()
	ctx := context.Background()

	up, err := m.Predict(ctx, "TEST", barsFrom(risingCloses(120)))
	if err != nil {
		t.Fatal(err)
	}
	if up.Direction != core.DirectionUp {
		t.Errorf("rising series direction = %d, want up", up.Direction)
	}

	down, err := m.Predict(ctx, "TEST", barsFrom(fallingCloses(120)))
	if err != nil {
		t.Fatal(err)
	}
	if down.Direction != core.DirectionDown {
		t.Errorf("falling series direction = %d, want down", down.Direction)
	}

	flat, err := m.Predict(ctx, "TEST", barsFrom(flatCloses(120)))
	if err != nil {
		t.Fatal(err)
	}
	if flat.Direction != core.DirectionFlat || flat.Confidence != 0 {
		t.Errorf("flat series = %+v, want flat zero-confidence", flat)
	}
}

func TestTechnicalInsufficientHistory(t *testing.T) {
	m := NewTechnical()
	p, err := m.Predict(context.Background(), "TEST", barsFrom(risingCloses(10)))
	if err != nil {
		t.Fatal(err)
	}
	if p.Direction != core.DirectionFlat || p.Confidence != 0 {
		t.Errorf("got %+v, want flat zero-confidence", p)
	}
}

func TestVolumeMultiplier(t *testing.T) {
	v := NewVolume()
	bars := barsFrom(risingCloses(30))

	// Decision bar volume above the 20-bar average confirms.
	bars[len(bars)-1].Volume = 5000
	if got := v.Multiplier(bars, core.DirectionUp); got != ConfirmMultiplier {
		t.Errorf("above-average volume multiplier = %v, want %v", got, ConfirmMultiplier)
	}

	// Below average contradicts.
	bars[len(bars)-1].Volume = 10
	if got := v.Multiplier(bars, core.DirectionUp); got != ContradictMultiplier {
		t.Errorf("below-average volume multiplier = %v, want %v", got, ContradictMultiplier)
	}

	// Flat calls and short history are neutral.
	if got := v.Multiplier(bars, core.DirectionFlat); got != 1.0 {
		t.Errorf("flat direction multiplier = %v, want 1.0", got)
	}
	if got := v.Multiplier(bars[:5], core.DirectionUp); got != 1.0 {
		t.Errorf("short history multiplier = %v, want 1.0", got)
	}
}

type stubSequenceClient struct {
	score float64
	err   error
}

func (s stubSequenceClient) Score(ctx context.Context, symbol string, closes []float64) (float64, error) {
	return s.score, s.err
}

func TestLSTMClientPath(t *testing.T) {
	m := NewLSTM(stubSequenceClient{score: 0.015}, nil)
	p, err := m.Predict(context.Background(), "TEST", barsFrom(flatCloses(60)))
	if err != nil {
		t.Fatal(err)
	}
	if p.Direction != core.DirectionUp {
		t.Errorf("direction = %d, want up", p.Direction)
	}
	if p.Fallback {
		t.Error("client path must not be flagged as fallback")
	}
	if math.Abs(p.Confidence-0.75) > 1e-9 {
		t.Errorf("confidence = %v, want 0.75", p.Confidence)
	}
}

func TestLSTMFallbackOnClientError(t *testing.T) {
	m := NewLSTM(stubSequenceClient{err: errors.New("connection refused")}, nil)
	p, err := m.Predict(context.Background(), "TEST", barsFrom(risingCloses(60)))
	if err != nil {
		t.Fatal(err)
	}
	if !p.Fallback {
		t.Error("degraded prediction must be flagged as fallback")
	}
	if p.Direction != core.DirectionUp {
		t.Errorf("momentum fallback on rising series = %d, want up", p.Direction)
	}
}

func TestLSTMFallbackWithoutClient(t *testing.T) {
	m := NewLSTM(nil, nil)
	p, err := m.Predict(context.Background(), "TEST", barsFrom(fallingCloses(60)))
	if err != nil {
		t.Fatal(err)
	}
	if !p.Fallback {
		t.Error("prediction without a client must be flagged as fallback")
	}
	if p.Direction != core.DirectionDown {
		t.Errorf("momentum fallback on falling series = %d, want down", p.Direction)
	}
}

type stubScorer struct {
	score float64
	err   error
}

func (s stubScorer) Score(ctx context.Context, symbol string, asOf time.Time) (float64, error) {
	return s.score, s.err
}

func TestSentimentScorerPath(t *testing.T) {
	m := NewSentiment(stubScorer{score: -0.6}, nil)
	p, err := m.Predict(context.Background(), "TEST", barsFrom(flatCloses(30)))
	if err != nil {
		t.Fatal(err)
	}
	if p.Direction != core.DirectionDown {
		t.Errorf("direction = %d, want down", p.Direction)
	}
	if math.Abs(p.Confidence-0.6) > 1e-9 {
		t.Errorf("confidence = %v, want 0.6", p.Confidence)
	}
	if p.Fallback {
		t.Error("scorer path must not be flagged as fallback")
	}
}

func TestSentimentFallback(t *testing.T) {
	m := NewSentiment(stubScorer{err: errors.New("timeout")}, nil)
	p, err := m.Predict(context.Background(), "TEST", barsFrom(risingCloses(30)))
	if err != nil {
		t.Fatal(err)
	}
	if !p.Fallback {
		t.Error("degraded prediction must be flagged as fallback")
	}
	if p.Direction != core.DirectionUp {
		t.Errorf("return fallback on rising series = %d, want up", p.Direction)
	}
}

func TestSentimentEmptyHistory(t *testing.T) {
	m := NewSentiment(nil, nil)
	p, err := m.Predict(context.Background(), "TEST", nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.Direction != core.DirectionFlat || p.Confidence != 0 {
		t.Errorf("got %+v, want flat zero-confidence", p)
	}
}
