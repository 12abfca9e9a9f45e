// Package config loads the application configuration from YAML with sensible
// defaults for a single-instance deployment.
package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StoreConfig locates the on-disk record store.
type StoreConfig struct {
	DataDir string `yaml:"data_dir"`
}

// QdrantConfig contains connection details for the vector index.
type QdrantConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ScrapeConfig tunes the outbound fetcher.
type ScrapeConfig struct {
	TimeoutSecs        int `yaml:"timeout_secs"`
	RequestSpacingSecs int `yaml:"request_spacing_secs"`
}

// RefreshConfig tunes the refresh cadences and per-scheme retry policy.
type RefreshConfig struct {
	FastEveryHours int `yaml:"fast_every_hours"`
	FullEveryHours int `yaml:"full_every_hours"`
	MaxAttempts    int `yaml:"max_attempts"`
	BaseDelaySecs  int `yaml:"base_delay_secs"`
	MaxDelaySecs   int `yaml:"max_delay_secs"`
	Concurrency    int `yaml:"concurrency"`
}

// ModelConfig selects the chat model used for answer phrasing.
type ModelConfig struct {
	ChatModel   string `yaml:"chat_model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"embed_batch_size"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Config is the root application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Qdrant  QdrantConfig  `yaml:"qdrant"`
	Scrape  ScrapeConfig  `yaml:"scrape"`
	Refresh RefreshConfig `yaml:"refresh"`
	Model   ModelConfig   `yaml:"model"`
	Server  ServerConfig  `yaml:"server"`
}

// Load reads a config from path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Store.DataDir == "" {
		cfg.Store.DataDir = "data"
	}
	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}
	if cfg.Scrape.TimeoutSecs == 0 {
		cfg.Scrape.TimeoutSecs = 30
	}
	if cfg.Scrape.RequestSpacingSecs < 1 {
		// The source site is throttled to at most one request per second.
		cfg.Scrape.RequestSpacingSecs = 1
	}
	if cfg.Refresh.FastEveryHours == 0 {
		cfg.Refresh.FastEveryHours = 24
	}
	if cfg.Refresh.FullEveryHours == 0 {
		cfg.Refresh.FullEveryHours = 168
	}
	if cfg.Refresh.MaxAttempts == 0 {
		cfg.Refresh.MaxAttempts = 3
	}
	if cfg.Refresh.BaseDelaySecs == 0 {
		cfg.Refresh.BaseDelaySecs = 2
	}
	if cfg.Refresh.MaxDelaySecs == 0 {
		cfg.Refresh.MaxDelaySecs = 10
	}
	if cfg.Refresh.Concurrency == 0 {
		cfg.Refresh.Concurrency = 4
	}
	if cfg.Model.TimeoutSecs == 0 {
		cfg.Model.TimeoutSecs = 20
	}
	if cfg.Model.BatchSize == 0 {
		cfg.Model.BatchSize = 100
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
}

// ScrapeTimeout returns the fetcher timeout as a duration.
func (c *Config) ScrapeTimeout() time.Duration {
	return time.Duration(c.Scrape.TimeoutSecs) * time.Second
}

// RequestSpacing returns the minimum delay between outbound page fetches.
func (c *Config) RequestSpacing() time.Duration {
	return time.Duration(c.Scrape.RequestSpacingSecs) * time.Second
}

// FastEvery returns the fast-refresh cadence.
func (c *Config) FastEvery() time.Duration {
	return time.Duration(c.Refresh.FastEveryHours) * time.Hour
}

// FullEvery returns the full-refresh cadence.
func (c *Config) FullEvery() time.Duration {
	return time.Duration(c.Refresh.FullEveryHours) * time.Hour
}

// ModelTimeout returns the completion-call timeout.
func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.Model.TimeoutSecs) * time.Second
}
