package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pwelter/hindcast/internal/cache"
	"github.com/pwelter/hindcast/internal/core"
	"github.com/pwelter/hindcast/internal/metrics"
	"github.com/pwelter/hindcast/internal/model"
	"github.com/pwelter/hindcast/internal/predict"
	"github.com/pwelter/hindcast/internal/provider"
	"github.com/pwelter/hindcast/internal/sim"
	"github.com/pwelter/hindcast/internal/validate"
)

const (
	fetchAttempts   = 3
	fetchBackoff    = 500 * time.Millisecond
	defaultTimeout  = 2 * time.Minute
	defaultParallel = 4
)

// Runner wires provider, cache, prediction, and simulation into one
// request/response cycle.
type Runner struct {
	provider    provider.Provider
	cache       *cache.Manager
	models      map[predict.ModelName]model.SubModel
	ensemble    predict.Config
	simDefaults sim.Config
	recorder    Recorder
	metrics     *metrics.Metrics
	logger      *zap.Logger
	// Timeout bounds one run end to end.
	Timeout time.Duration
}

// Options carries the Runner's collaborators.
type Options struct {
	Provider    provider.Provider
	Cache       *cache.Manager
	Models      map[predict.ModelName]model.SubModel
	Ensemble    predict.Config
	SimDefaults sim.Config
	Recorder    Recorder
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	Timeout     time.Duration
}

// NewRunner creates a backtest orchestrator.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Provider == nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("no data provider configured"))
	}
	if opts.Cache == nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("no cache manager configured"))
	}
	if len(opts.Models) == 0 {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("no models configured"))
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = NopRecorder{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if len(opts.Ensemble.Weights) == 0 {
		opts.Ensemble = predict.DefaultConfig()
	}
	if opts.SimDefaults == (sim.Config{}) {
		opts.SimDefaults = sim.DefaultConfig(0)
	}
	return &Runner{
		provider:    opts.Provider,
		cache:       opts.Cache,
		models:      opts.Models,
		ensemble:    opts.Ensemble,
		simDefaults: opts.SimDefaults,
		recorder:    opts.Recorder,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		Timeout:     opts.Timeout,
	}, nil
}

// Run executes one backtest request end to end.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()

	v, err := req.Validate()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	runID := uuid.NewString()
	log := r.logger.With(
		zap.String("run_id", runID),
		zap.String("symbol", v.Symbol),
		zap.String("model_type", string(v.ModelType)))
	log.Info("backtest started",
		zap.String("start", v.StartDate), zap.String("end", v.EndDate))

	series, warnings, err := r.loadSeries(ctx, v)
	if err != nil {
		r.observe("error", started)
		return nil, err
	}

	engine, err := r.buildEngine(v.ModelType)
	if err != nil {
		r.observe("error", started)
		return nil, err
	}
	samples, err := engine.Run(ctx, series, v.Start, v.End)
	if err != nil {
		r.observe("error", started)
		return nil, err
	}

	simCfg := r.simConfig(v)
	simulator, err := sim.New(simCfg, log)
	if err != nil {
		r.observe("error", started)
		return nil, err
	}
	outcome, err := simulator.Run(ctx, series, samples)
	if err != nil {
		r.observe("error", started)
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.BarsSimulated.Add(float64(len(outcome.Equity)))
	}

	result := r.assemble(runID, v, samples, outcome, warnings, started)
	if err := r.recorder.Record(ctx, result); err != nil {
		// Recording is a side channel; a failure does not void the run.
		log.Warn("result recording failed", zap.Error(err))
	}

	r.observe("ok", started)
	log.Info("backtest finished",
		zap.Int("trades", result.Metrics.TotalTrades),
		zap.Float64("final_equity", result.FinalEquity),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

// RunBatch executes independent requests in parallel, each with its own
// state. The first error cancels the remaining runs.
func (r *Runner) RunBatch(ctx context.Context, reqs []Request) ([]*Result, error) {
	results := make([]*Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultParallel)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := r.Run(gctx, req)
			if err != nil {
				return fmt.Errorf("run %s: %w", req.Symbol, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// loadSeries resolves the request's window to a cached, validated series.
func (r *Runner) loadSeries(ctx context.Context, v *Validated) (*core.ValidatedSeries, []string, error) {
	period := core.PeriodCovering(v.Start, time.Now())
	key := cache.Key{Symbol: v.Symbol, Period: period, Interval: v.BarSpan}

	series, err := r.cache.GetOrFetch(ctx, key, func(ctx context.Context, key cache.Key) (*core.ValidatedSeries, error) {
		raw, err := r.fetchWithRetry(ctx, key)
		if err != nil {
			return nil, err
		}
		return validate.Series(key.Symbol, key.Interval, raw, validate.DefaultOptions())
	})
	if err != nil {
		return nil, nil, err
	}

	var warnings []string
	switch series.Verdict {
	case core.VerdictInsufficientLength:
		return nil, nil, core.WrapError(core.ErrInsufficientData,
			fmt.Errorf("symbol %s: %d bars available, %d required",
				v.Symbol, series.Len(), validate.DefaultMinLength))
	case core.VerdictHasGaps:
		// Gaps degrade quality but the run proceeds.
		w := fmt.Sprintf("series for %s has gaps beyond tolerance", v.Symbol)
		warnings = append(warnings, w)
		r.logger.Warn("series has gaps", zap.String("symbol", v.Symbol))
	}
	return series, warnings, nil
}

// fetchWithRetry retries transient provider failures with exponential
// backoff. Exhaustion surfaces as DataUnavailable.
func (r *Runner) fetchWithRetry(ctx context.Context, key cache.Key) ([]core.PriceBar, error) {
	var lastErr error
	backoff := fetchBackoff
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		bars, err := r.provider.Fetch(ctx, key.Symbol, key.Period, key.Interval)
		if err == nil {
			r.observeFetch("ok")
			return bars, nil
		}
		lastErr = err
		if !core.Retryable(err) {
			r.observeFetch("error")
			return nil, err
		}
		r.logger.Warn("transient fetch failure",
			zap.String("symbol", key.Symbol),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt == fetchAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	r.observeFetch("exhausted")
	return nil, core.WrapError(core.ErrDataUnavailable,
		fmt.Errorf("fetch for %s failed after %d attempts: %w", key.Symbol, fetchAttempts, lastErr))
}

// buildEngine maps the requested model type onto an engine configuration.
// Single-model types give the named model the full weight.
func (r *Runner) buildEngine(mt ModelType) (*predict.Engine, error) {
	switch mt {
	case ModelTypeEnsemble:
		return predict.NewEngine(r.ensemble, r.models, r.logger)
	case ModelTypeLSTM:
		return predict.NewEngine(predict.SingleModelConfig(predict.ModelLSTM, r.ensemble.MinHistory), r.models, r.logger)
	case ModelTypeSentiment:
		return predict.NewEngine(predict.SingleModelConfig(predict.ModelSentiment, r.ensemble.MinHistory), r.models, r.logger)
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown model_type %q", mt))
	}
}

// simConfig layers request overrides onto the configured defaults. Capital
// always comes from the request; the remaining defaults are kept as
// configured so a zero commission or slippage rate stays zero.
func (r *Runner) simConfig(v *Validated) sim.Config {
	cfg := r.simDefaults
	cfg.InitialCapital = v.InitialCapital
	if cfg.PositionFraction <= 0 {
		cfg.PositionFraction = sim.DefaultConfig(v.InitialCapital).PositionFraction
	}
	if v.EntryThreshold > 0 {
		cfg.EntryThreshold = v.EntryThreshold
	}
	if v.PositionSizing > 0 {
		cfg.PositionFraction = v.PositionSizing
	}
	if v.StopLossPct > 0 {
		cfg.StopLossPct = v.StopLossPct
	}
	if v.TakeProfitPct > 0 {
		cfg.TakeProfitPct = v.TakeProfitPct
	}
	if v.CommissionRate > 0 {
		cfg.CommissionRate = v.CommissionRate
	}
	if v.SlippageRate > 0 {
		cfg.SlippageRate = v.SlippageRate
	}
	if v.AllowShort {
		cfg.AllowShort = true
	}
	return cfg
}

func (r *Runner) assemble(runID string, v *Validated, samples []predict.Sample, outcome *sim.Outcome, warnings []string, started time.Time) *Result {
	usedFallback := false
	for _, s := range samples {
		if s.UsedFallback {
			usedFallback = true
			break
		}
	}
	// A window that produced no samples leaves the account untouched.
	finalEquity := outcome.FinalEquity()
	if len(outcome.Equity) == 0 {
		finalEquity = v.InitialCapital
	}
	return &Result{
		RunID:             runID,
		Symbol:            v.Symbol,
		ModelType:         v.ModelType,
		StartDate:         v.StartDate,
		EndDate:           v.EndDate,
		InitialCapital:    v.InitialCapital,
		FinalEquity:       finalEquity,
		Metrics:           sim.ComputeMetrics(outcome, v.InitialCapital),
		EquityCurve:       sim.EquityCurve(outcome),
		DrawdownCurve:     sim.DrawdownCurve(outcome),
		TradeDistribution: sim.Distribution(outcome),
		MonthlyReturns:    sim.Monthly(outcome),
		UsedFallback:      usedFallback,
		DataWarnings:      warnings,
		CompletedAt:       time.Now(),
		Elapsed:           time.Since(started),
	}
}

func (r *Runner) observe(outcome string, started time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.BacktestsTotal.WithLabelValues(outcome).Inc()
	r.metrics.BacktestDuration.Observe(time.Since(started).Seconds())
}

func (r *Runner) observeFetch(outcome string) {
	if r.metrics == nil {
		return
	}
	r.metrics.FetchesTotal.WithLabelValues(r.provider.Name(), outcome).Inc()
}
