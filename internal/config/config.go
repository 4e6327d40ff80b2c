// Package config loads and persists the repository-local configuration at
// .archo/config.json.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is the complete configuration.
type Config struct {
	Version  int    `json:"version" mapstructure:"version"`
	RepoRoot string `json:"repoRoot" mapstructure:"repoRoot"`

	PolicyPath string           `json:"policyPath" mapstructure:"policyPath"`
	Heuristics HeuristicsConfig `json:"heuristics" mapstructure:"heuristics"`
	Frames     FramesConfig     `json:"frames" mapstructure:"frames"`
	Store      StoreConfig      `json:"store" mapstructure:"store"`
	Extract    ExtractConfig    `json:"extract" mapstructure:"extract"`
	Logging    LoggingConfig    `json:"logging" mapstructure:"logging"`
}

// HeuristicsConfig controls the determinism ladder.
type HeuristicsConfig struct {
	// Rung is one of off, static-only, hard, soft.
	Rung string `json:"rung" mapstructure:"rung"`
	// Target overrides the policy determinism target when >= 0.
	Target float64 `json:"target" mapstructure:"target"`
}

// FramesConfig controls frame chunking and encoding.
type FramesConfig struct {
	MaxBytes int    `json:"maxBytes" mapstructure:"maxBytes"`
	Codec    string `json:"codec" mapstructure:"codec"`
}

// StoreConfig selects where frames are persisted.
type StoreConfig struct {
	// Mode is "local" (SQLite under .archo) or "remote".
	Mode string `json:"mode" mapstructure:"mode"`
	// RemotesPath locates the remote store configuration.
	RemotesPath string `json:"remotesPath" mapstructure:"remotesPath"`
}

// ExtractConfig controls fact extraction.
type ExtractConfig struct {
	// SCIPIndexPath enables the index-backed extractor when the file exists.
	SCIPIndexPath string `json:"scipIndexPath" mapstructure:"scipIndexPath"`
	// Ignore lists directory names skipped during source walks.
	Ignore []string `json:"ignore" mapstructure:"ignore"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Version:    1,
		RepoRoot:   ".",
		PolicyPath: "MODULES.toml",
		Heuristics: HeuristicsConfig{
			Rung:   "static-only",
			Target: -1,
		},
		Frames: FramesConfig{
			MaxBytes: 262144,
			Codec:    "zstd",
		},
		Store: StoreConfig{
			Mode:        "local",
			RemotesPath: ".archo/remotes.toml",
		},
		Extract: ExtractConfig{
			SCIPIndexPath: "index.scip",
			Ignore:        []string{"node_modules", "vendor", "__pycache__", "build"},
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from .archo/config.json. A missing file
// yields the defaults.
func LoadConfig(repoRoot string) (*Config, error) {
	v := viper.New()

	v.SetDefault("version", 1)
	v.SetDefault("repoRoot", ".")

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(repoRoot, ".archo"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to .archo/config.json, creating the state
// directory when needed.
func (c *Config) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, ".archo")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if c.Version != 1 {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Frames.MaxBytes <= 0 {
		return &ConfigError{Field: "frames.maxBytes", Message: "must be positive"}
	}
	switch c.Frames.Codec {
	case "", "none", "zstd":
	default:
		return &ConfigError{Field: "frames.codec", Message: "unknown codec " + c.Frames.Codec}
	}
	switch c.Store.Mode {
	case "local", "remote":
	default:
		return &ConfigError{Field: "store.mode", Message: "must be local or remote"}
	}
	if c.Heuristics.Target > 1 {
		return &ConfigError{Field: "heuristics.target", Message: "must be within [0,1]"}
	}
	return nil
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
