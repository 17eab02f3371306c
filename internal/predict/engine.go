// Package predict walks a validated series bar by bar and produces one
// ensemble prediction per decision point, using only history available at
// that point.
package predict

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/pwelter/hindcast/internal/core"
	"github.com/pwelter/hindcast/internal/model"
)

// ModelName identifies a sub-model in the weight table.
type ModelName string

const (
	ModelLSTM      ModelName = "lstm"
	ModelTrend     ModelName = "trend"
	ModelTechnical ModelName = "technical"
	ModelSentiment ModelName = "sentiment"
)

// Config holds ensemble weights and history requirements.
type Config struct {
	Weights    map[ModelName]float64
	MinHistory int
}

// DefaultConfig returns the standard ensemble weighting.
func DefaultConfig() Config {
	return Config{
		Weights: map[ModelName]float64{
			ModelLSTM:      0.45,
			ModelTrend:     0.25,
			ModelTechnical: 0.15,
			ModelSentiment: 0.15,
		},
		MinHistory: 100,
	}
}

// SingleModelConfig returns a configuration that gives the named model the
// full weight, used for single-model backtests.
func SingleModelConfig(name ModelName, minHistory int) Config {
	return Config{
		Weights:    map[ModelName]float64{name: 1.0},
		MinHistory: minHistory,
	}
}

// Sample is the ensemble output for one decision bar.
type Sample struct {
	AsOfDate     time.Time
	Direction    core.Direction
	Confidence   float64
	Models       map[ModelName]model.Prediction
	UsedFallback bool
}

// Engine runs the weighted sub-model vote over a series.
type Engine struct {
	cfg    Config
	models map[ModelName]model.SubModel
	// order fixes the accumulation sequence so summed confidences are
	// bit-identical across runs regardless of map iteration order.
	order  []ModelName
	volume *model.Volume
	logger *zap.Logger
}

// NewEngine builds an engine over the given sub-models. Models without a
// weight in cfg are ignored.
func NewEngine(cfg Config, models map[ModelName]model.SubModel, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Weights) == 0 {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("no model weights configured"))
	}
	for name, w := range cfg.Weights {
		if w <= 0 {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("weight for %s must be positive", name))
		}
		if _, ok := models[name]; !ok {
			return nil, core.WrapError(core.ErrModelUnavailable, fmt.Errorf("model %s has a weight but no implementation", name))
		}
	}
	if cfg.MinHistory <= 0 {
		cfg.MinHistory = DefaultConfig().MinHistory
	}
	order := make([]ModelName, 0, len(cfg.Weights))
	for name := range cfg.Weights {
		order = append(order, name)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	return &Engine{
		cfg:    cfg,
		models: models,
		order:  order,
		volume: model.NewVolume(),
		logger: logger,
	}, nil
}

// Run produces one Sample for every bar of series inside [start, end].
// The first MinHistory bars never produce samples so every prediction has
// enough history behind it.
func (e *Engine) Run(ctx context.Context, series *core.ValidatedSeries, start, end time.Time) ([]Sample, error) {
	if series.Verdict == core.VerdictInsufficientLength {
		return nil, core.WrapError(core.ErrInsufficientData,
			fmt.Errorf("series %s has %d bars, need %d", series.Symbol, series.Len(), e.cfg.MinHistory))
	}
	if series.Len() < e.cfg.MinHistory {
		return nil, core.WrapError(core.ErrInsufficientData,
			fmt.Errorf("series %s has %d bars, need %d", series.Symbol, series.Len(), e.cfg.MinHistory))
	}

	var samples []Sample
	for i := e.cfg.MinHistory - 1; i < series.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bar := series.Bars[i]
		if bar.Date.Before(start) {
			continue
		}
		if bar.Date.After(end) {
			break
		}

		// The prefix through bar i is everything known at the decision
		// point. Bars past i must never influence the sample.
		history := series.Bars[:i+1]
		sample, err := e.sampleAt(ctx, series.Symbol, bar.Date, history)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

func (e *Engine) sampleAt(ctx context.Context, symbol string, asOf time.Time, history []core.PriceBar) (Sample, error) {
	sample := Sample{
		AsOfDate: asOf,
		Models:   make(map[ModelName]model.Prediction, len(e.cfg.Weights)),
	}

	var vote, confSum float64
	for _, name := range e.order {
		weight := e.cfg.Weights[name]
		pred, err := e.models[name].Predict(ctx, symbol, history)
		if err != nil {
			return Sample{}, core.WrapError(core.ErrModelUnavailable,
				fmt.Errorf("model %s: %w", name, err))
		}
		sample.Models[name] = pred
		if pred.Fallback {
			sample.UsedFallback = true
		}
		vote += weight * float64(pred.Direction)
		confSum += weight * pred.Confidence
	}

	sample.Direction = core.Sign(vote)
	conf := confSum * e.volume.Multiplier(history, sample.Direction)
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	sample.Confidence = conf
	return sample, nil
}
