package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"fraud_scorer/internal/model"
)

const (
	DefaultConfigPath = "configs/config.yaml"
	envPrefix         = "FRAUD_"
)

type Config struct {
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server    ServerConfig    `koanf:"server"`
	Artifacts ArtifactsConfig `koanf:"artifacts"`
	Scoring   ScoringConfig   `koanf:"scoring"`
	Alerts    AlertsConfig    `koanf:"alerts"`
	Security  SecurityConfig  `koanf:"security"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	MetricsAddr     string        `koanf:"metrics_addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type ArtifactsConfig struct {
	Dir    string   `koanf:"dir"`
	Models []string `koanf:"models"`
}

type ScoringConfig struct {
	BatchWorkers int `koanf:"batch_workers"`
	MaxBatchSize int `koanf:"max_batch_size"`
}

type AlertsConfig struct {
	Workers   int `koanf:"workers"`
	QueueSize int `koanf:"queue_size"`
}

type SecurityConfig struct {
	SigningSecret string `koanf:"signing_secret"`
}

func Defaults() *Config {
	return &Config{
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Addr:            ":8080",
			MetricsAddr:     ":9090",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Artifacts: ArtifactsConfig{
			Dir:    "models",
			Models: model.DefaultModelNames,
		},
		Scoring: ScoringConfig{
			BatchWorkers: 8,
			MaxBatchSize: 500,
		},
		Alerts: AlertsConfig{
			Workers:   3,
			QueueSize: 1000,
		},
	}
}

// Load layers struct defaults, an optional YAML file and FRAUD_ environment
// variables. A double underscore in a variable name separates nesting
// levels: FRAUD_SERVER__READ_TIMEOUT sets server.read_timeout.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading config file %s: %w", path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Artifacts.Dir == "" {
		return fmt.Errorf("artifacts.dir is required")
	}
	if len(c.Artifacts.Models) == 0 {
		return fmt.Errorf("artifacts.models must name at least one model")
	}
	if c.Scoring.MaxBatchSize <= 0 {
		return fmt.Errorf("scoring.max_batch_size must be positive")
	}
	return nil
}

func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
