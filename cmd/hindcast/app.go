package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/pwelter/hindcast/internal/archive"
	"github.com/pwelter/hindcast/internal/backtest"
	"github.com/pwelter/hindcast/internal/cache"
	"github.com/pwelter/hindcast/internal/config"
	"github.com/pwelter/hindcast/internal/core"
	"github.com/pwelter/hindcast/internal/llm"
	llmfactory "github.com/pwelter/hindcast/internal/llm/factory"
	"github.com/pwelter/hindcast/internal/metrics"
	"github.com/pwelter/hindcast/internal/model"
	"github.com/pwelter/hindcast/internal/predict"
	"github.com/pwelter/hindcast/internal/provider"
	"github.com/pwelter/hindcast/internal/provider/piquette"
	"github.com/pwelter/hindcast/internal/provider/yahoo"
	"github.com/pwelter/hindcast/internal/sim"
)

// loadConfig reads the config file given with --config, or falls back to
// built-in defaults.
func loadConfig(log *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
		log.Warn("no config file specified, using defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// buildRunner assembles the backtest pipeline from configuration.
func buildRunner(cfg *config.Config, log *zap.Logger) (*backtest.Runner, *metrics.Metrics, error) {
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	dataProvider := buildProvider(cfg)

	store, err := buildCacheStore(cfg, m)
	if err != nil {
		return nil, nil, err
	}
	manager := cache.NewManager(store, buildTTL(cfg), log)
	if m != nil {
		manager.Instrument(m.CacheHits, m.CacheMisses)
	}

	models, err := buildModels(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	recorder, err := buildRecorder(cfg)
	if err != nil {
		return nil, nil, err
	}

	runner, err := backtest.NewRunner(backtest.Options{
		Provider: dataProvider,
		Cache:    manager,
		Models:   models,
		Ensemble: buildEnsemble(cfg),
		SimDefaults: sim.Config{
			EntryThreshold:   cfg.Simulator.EntryThreshold,
			PositionFraction: cfg.Simulator.PositionFraction,
			CommissionRate:   cfg.Simulator.CommissionRate,
			SlippageRate:     cfg.Simulator.SlippageRate,
			AllowShort:       cfg.Simulator.AllowShort,
			StopLossPct:      cfg.Simulator.StopLossPct,
			TakeProfitPct:    cfg.Simulator.TakeProfitPct,
		},
		Recorder: recorder,
		Metrics:  m,
		Logger:   log,
	})
	if err != nil {
		return nil, nil, err
	}
	return runner, m, nil
}

func buildProvider(cfg *config.Config) provider.Provider {
	switch cfg.Provider.Name {
	case "piquette":
		return piquette.New()
	default:
		var opts []yahoo.Option
		if cfg.Provider.Timeout > 0 {
			opts = append(opts, yahoo.WithTimeout(cfg.Provider.Timeout))
		}
		return yahoo.New(opts...)
	}
}

func buildCacheStore(cfg *config.Config, m *metrics.Metrics) (cache.Store, error) {
	if cfg.Cache.Driver == "sqlite" {
		store, err := cache.NewSQLite(cfg.Cache.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite cache: %w", err)
		}
		return store, nil
	}
	store := cache.NewMemory(cfg.Cache.MaxEntries)
	if m != nil {
		store.Instrument(m.CacheEvictions)
	}
	return store, nil
}

// buildTTL starts from the standard lifetime table and applies per-interval
// overrides from the config.
func buildTTL(cfg *config.Config) cache.TTLTable {
	ttl := cache.DefaultTTL()
	for k, d := range cfg.Cache.TTL {
		iv, err := core.ParseInterval(k)
		if err != nil {
			continue
		}
		ttl[iv] = d
	}
	return ttl
}

func buildModels(cfg *config.Config, log *zap.Logger) (map[predict.ModelName]model.SubModel, error) {
	var scorer model.Scorer
	if cfg.LLM.Provider != "" {
		llmProvider, err := llmfactory.New(cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("creating LLM provider: %w", err)
		}
		scorer = llm.NewSentimentScorer(llmProvider)
	}

	return map[predict.ModelName]model.SubModel{
		predict.ModelLSTM:      model.NewLSTM(nil, log),
		predict.ModelTrend:     model.NewTrend(),
		predict.ModelTechnical: model.NewTechnical(),
		predict.ModelSentiment: model.NewSentiment(scorer, log),
	}, nil
}

func buildEnsemble(cfg *config.Config) predict.Config {
	if len(cfg.Ensemble.Weights) == 0 {
		return predict.DefaultConfig()
	}
	weights := make(map[predict.ModelName]float64, len(cfg.Ensemble.Weights))
	for name, w := range cfg.Ensemble.Weights {
		weights[predict.ModelName(name)] = w
	}
	return predict.Config{
		Weights:    weights,
		MinHistory: cfg.Ensemble.MinHistory,
	}
}

func buildRecorder(cfg *config.Config) (backtest.Recorder, error) {
	switch cfg.Archive.Type {
	case "s3":
		storage, err := archive.NewS3(archive.S3Config{
			Bucket:    cfg.Archive.S3.Bucket,
			Endpoint:  cfg.Archive.S3.Endpoint,
			Region:    cfg.Archive.S3.Region,
			AccessKey: cfg.Archive.S3.AccessKey,
			SecretKey: cfg.Archive.S3.SecretKey,
			Prefix:    cfg.Archive.S3.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("creating S3 archive: %w", err)
		}
		return archive.NewRecorder(storage), nil
	case "localfs":
		storage, err := archive.NewLocalFS(cfg.Archive.Path)
		if err != nil {
			return nil, fmt.Errorf("creating local archive: %w", err)
		}
		return archive.NewRecorder(storage), nil
	default:
		return backtest.NopRecorder{}, nil
	}
}
