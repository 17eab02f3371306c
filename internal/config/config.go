package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pwelter/hindcast/internal/core"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Ensemble  EnsembleConfig  `mapstructure:"ensemble"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	APIKey      string `mapstructure:"api_key"`
	JobTTLHours int    `mapstructure:"job_ttl_hours"`
	MaxJobs     int    `mapstructure:"max_jobs"`
}

type ProviderConfig struct {
	// Name selects the market-data backend: "yahoo" or "piquette".
	Name    string        `mapstructure:"name"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	// Driver is "memory" or "sqlite".
	Driver     string                   `mapstructure:"driver"`
	DSN        string                   `mapstructure:"dsn"`
	MaxEntries int                      `mapstructure:"max_entries"`
	TTL        map[string]time.Duration `mapstructure:"ttl"`
}

type EnsembleConfig struct {
	Weights    map[string]float64 `mapstructure:"weights"`
	MinHistory int                `mapstructure:"min_history"`
}

type SimulatorConfig struct {
	EntryThreshold   float64 `mapstructure:"entry_threshold"`
	PositionFraction float64 `mapstructure:"position_fraction"`
	CommissionRate   float64 `mapstructure:"commission_rate"`
	SlippageRate     float64 `mapstructure:"slippage_rate"`
	AllowShort       bool    `mapstructure:"allow_short"`
	StopLossPct      float64 `mapstructure:"stop_loss_pct"`
	TakeProfitPct    float64 `mapstructure:"take_profit_pct"`
}

type LLMConfig struct {
	Provider string       `mapstructure:"provider"`
	Claude   ClaudeConfig `mapstructure:"claude"`
	OpenAI   OpenAIConfig `mapstructure:"openai"`
	Ollama   OllamaConfig `mapstructure:"ollama"`
}

type ClaudeConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OllamaConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
}

// ArchiveConfig selects where completed results are archived.
type ArchiveConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			JobTTLHours: 1,
			MaxJobs:     100,
		},
		Provider: ProviderConfig{
			Name:    "yahoo",
			Timeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			Driver:     "memory",
			MaxEntries: 256,
		},
		Ensemble: EnsembleConfig{
			Weights: map[string]float64{
				"lstm":      0.45,
				"trend":     0.25,
				"technical": 0.15,
				"sentiment": 0.15,
			},
			MinHistory: 100,
		},
		Simulator: SimulatorConfig{
			EntryThreshold:   0.55,
			PositionFraction: 0.95,
			CommissionRate:   0.001,
			SlippageRate:     0.0005,
		},
		Archive: ArchiveConfig{
			Type: "localfs",
			Path: "archive",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	switch c.Provider.Name {
	case "", "yahoo", "piquette":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown provider %q", c.Provider.Name))
	}

	switch c.Cache.Driver {
	case "", "memory":
	case "sqlite":
		if c.Cache.DSN == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("cache dsn required when driver is sqlite"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown cache driver %q", c.Cache.Driver))
	}

	for name, w := range c.Ensemble.Weights {
		if w <= 0 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("ensemble weight for %s must be positive, got %f", name, w))
		}
	}

	if c.Simulator.EntryThreshold < 0 || c.Simulator.EntryThreshold > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("entry_threshold must be between 0 and 1, got %f", c.Simulator.EntryThreshold))
	}
	if c.Simulator.PositionFraction < 0 || c.Simulator.PositionFraction > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("position_fraction must be in [0,1], got %f", c.Simulator.PositionFraction))
	}

	// LLM validation - if provider set, check config exists
	if c.LLM.Provider != "" {
		switch c.LLM.Provider {
		case "claude":
			if c.LLM.Claude.APIKey == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("claude api_key required when provider is claude"))
			}
		case "openai":
			if c.LLM.OpenAI.APIKey == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("openai api_key required when provider is openai"))
			}
		case "ollama":
			if c.LLM.Ollama.Endpoint == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("ollama endpoint required when provider is ollama"))
			}
		}
	}

	return nil
}
