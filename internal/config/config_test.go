package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_FromFile(t *testing.T) {
	content := []byte(`
server:
  host: "127.0.0.1"
  port: 8080

cache:
  driver: sqlite
  dsn: "hindcast.db"

archive:
  type: localfs
  path: "/tmp/hindcast/archive"
`)

	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}

	if cfg.Cache.Driver != "sqlite" {
		t.Errorf("expected sqlite, got %s", cfg.Cache.Driver)
	}

	if cfg.Archive.Type != "localfs" {
		t.Errorf("expected localfs, got %s", cfg.Archive.Type)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}

	if cfg.Simulator.EntryThreshold != 0.55 {
		t.Errorf("expected default entry_threshold 0.55, got %f", cfg.Simulator.EntryThreshold)
	}

	var sum float64
	for _, w := range cfg.Ensemble.Weights {
		sum += w
	}
	if sum != 1.0 {
		t.Errorf("expected default ensemble weights to sum to 1.0, got %f", sum)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
			},
			wantErr: false,
		},
		{
			name: "invalid port - zero",
			cfg: Config{
				Server: ServerConfig{Host: "0.0.0.0", Port: 0},
			},
			wantErr: true,
		},
		{
			name: "invalid port - too high",
			cfg: Config{
				Server: ServerConfig{Host: "0.0.0.0", Port: 70000},
			},
			wantErr: true,
		},
		{
			name: "unknown provider",
			cfg: Config{
				Server:   ServerConfig{Host: "0.0.0.0", Port: 8080},
				Provider: ProviderConfig{Name: "bloomberg"},
			},
			wantErr: true,
		},
		{
			name: "sqlite cache without dsn",
			cfg: Config{
				Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
				Cache:  CacheConfig{Driver: "sqlite"},
			},
			wantErr: true,
		},
		{
			name: "negative ensemble weight",
			cfg: Config{
				Server:   ServerConfig{Host: "0.0.0.0", Port: 8080},
				Ensemble: EnsembleConfig{Weights: map[string]float64{"trend": -0.25}},
			},
			wantErr: true,
		},
		{
			name: "invalid entry threshold",
			cfg: Config{
				Server:    ServerConfig{Host: "0.0.0.0", Port: 8080},
				Simulator: SimulatorConfig{EntryThreshold: 1.5},
			},
			wantErr: true,
		},
		{
			name: "claude provider without api key",
			cfg: Config{
				Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
				LLM:    LLMConfig{Provider: "claude"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
