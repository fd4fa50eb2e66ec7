// Package config loads the application configuration and the source catalog
// from a YAML file. Configuration problems are surfaced immediately at load
// time; acquisition never starts against an invalid source.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/seriarr/seriarr/internal/data"
	"gopkg.in/yaml.v2"
)

// LogConfig controls the rotating log sink.
type LogConfig struct {
	Level      string `yaml:"level"`
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// StoreConfig selects the state store backend.
type StoreConfig struct {
	Kind string `yaml:"kind"` // "file" | "postgres"
	Dir  string `yaml:"dir"`
}

// SwarmConfig configures the swarm RPC client. Secret comes from the
// environment, never from the file.
type SwarmConfig struct {
	RPCURL           string `yaml:"rpc_url"`
	PollMS           int    `yaml:"poll_ms"`
	MetadataTimeoutS int    `yaml:"metadata_timeout_s"`
	DownloadDir      string `yaml:"download_dir"`
}

// DownloadConfig tunes the sequential downloader defaults.
type DownloadConfig struct {
	Retries      int `yaml:"retries"`
	BaseDelayMS  int `yaml:"base_delay_ms"`
	DelayMS      int `yaml:"delay_ms"`
	CheckpointN  int `yaml:"checkpoint"`
	FollowBound  int `yaml:"follow_bound"`
	MinSeeders   int `yaml:"min_seeders"`
	RankMinScore int `yaml:"rank_min_score"`
	RankLimit    int `yaml:"rank_limit"`
}

// SourceConfig is the YAML shape of one source entry.
type SourceConfig struct {
	ID           string                       `yaml:"id"`
	Name         string                       `yaml:"name"`
	Variant      string                       `yaml:"variant"`
	BaseURL      string                       `yaml:"base_url"`
	Enabled      *bool                        `yaml:"enabled"`
	TimeoutMS    int                          `yaml:"timeout_ms"`
	Retries      int                          `yaml:"retries"`
	BaseDelayMS  int                          `yaml:"base_delay_ms"`
	DelayMS      int                          `yaml:"delay_ms"`
	Capabilities []string                     `yaml:"capabilities"`
	Selectors    map[string]map[string]string `yaml:"selectors"`
}

// Config is the root document.
type Config struct {
	Listen   string         `yaml:"listen"`
	Log      LogConfig      `yaml:"log"`
	Store    StoreConfig    `yaml:"store"`
	Swarm    SwarmConfig    `yaml:"swarm"`
	Download DownloadConfig `yaml:"download"`
	Sources  []SourceConfig `yaml:"sources"`
}

// Load reads and validates the config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is Load for main wiring; it panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":9190"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Store.Kind == "" {
		c.Store.Kind = "file"
	}
	if c.Store.Dir == "" {
		c.Store.Dir = "data"
	}
	if c.Swarm.PollMS <= 0 {
		c.Swarm.PollMS = 1000
	}
	if c.Swarm.MetadataTimeoutS <= 0 {
		c.Swarm.MetadataTimeoutS = 60
	}
	if c.Download.Retries <= 0 {
		c.Download.Retries = 3
	}
	if c.Download.BaseDelayMS <= 0 {
		c.Download.BaseDelayMS = 1000
	}
	if c.Download.CheckpointN <= 0 {
		c.Download.CheckpointN = 20
	}
	if c.Download.FollowBound <= 0 {
		c.Download.FollowBound = 5
	}
	if c.Download.RankLimit <= 0 {
		c.Download.RankLimit = 10
	}
}

func (c *Config) validate() error {
	switch c.Store.Kind {
	case "file", "postgres":
	default:
		return fmt.Errorf("%w: unknown store kind %q", data.ErrInvalidSource, c.Store.Kind)
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for i := range c.Sources {
		sc := &c.Sources[i]
		if sc.ID == "" {
			return fmt.Errorf("%w: source %d has no id", data.ErrInvalidSource, i)
		}
		if _, dup := seen[sc.ID]; dup {
			return fmt.Errorf("%w: duplicate source id %q", data.ErrInvalidSource, sc.ID)
		}
		seen[sc.ID] = struct{}{}
		if !data.Variant(sc.Variant).Valid() {
			return fmt.Errorf("%w: source %q has unknown variant %q", data.ErrInvalidSource, sc.ID, sc.Variant)
		}
		if sc.BaseURL == "" && data.Variant(sc.Variant) != data.VariantSwarm {
			return fmt.Errorf("%w: source %q has no base_url", data.ErrInvalidSource, sc.ID)
		}
	}
	return nil
}

// Source materializes one SourceConfig into the engine's Source model.
func (sc *SourceConfig) Source() *data.Source {
	enabled := true
	if sc.Enabled != nil {
		enabled = *sc.Enabled
	}
	timeout := 15 * time.Second
	if sc.TimeoutMS > 0 {
		timeout = time.Duration(sc.TimeoutMS) * time.Millisecond
	}
	retries := 3
	if sc.Retries > 0 {
		retries = sc.Retries
	}
	baseDelay := time.Second
	if sc.BaseDelayMS > 0 {
		baseDelay = time.Duration(sc.BaseDelayMS) * time.Millisecond
	}
	return &data.Source{
		ID:      sc.ID,
		Name:    sc.Name,
		Variant: data.Variant(sc.Variant),
		BaseURL: sc.BaseURL,
		Enabled: enabled,
		HTTP: data.HTTPPolicy{
			Timeout:   timeout,
			Retries:   retries,
			BaseDelay: baseDelay,
			Delay:     time.Duration(sc.DelayMS) * time.Millisecond,
		},
		Capabilities: append([]string(nil), sc.Capabilities...),
		Selectors:    sc.Selectors,
	}
}

// SourceList materializes the whole catalog.
func (c *Config) SourceList() []*data.Source {
	out := make([]*data.Source, 0, len(c.Sources))
	for i := range c.Sources {
		out = append(out, c.Sources[i].Source())
	}
	return out
}
