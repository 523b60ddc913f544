// Package config loads and validates the process configuration from a
// YAML or JSON file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration.
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Bus        BusConfig        `json:"bus" yaml:"bus"`
	Execution  ExecutionConfig  `json:"execution" yaml:"execution"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`
	Replay     ReplayConfig     `json:"replay,omitempty" yaml:"replay,omitempty"`
	Strategies []StrategyConfig `json:"strategies,omitempty" yaml:"strategies,omitempty"`
	LogLevel   string           `json:"log_level" yaml:"log_level"`
}

// ServerConfig contains the HTTP control surface parameters.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// BusConfig contains message bus parameters.
type BusConfig struct {
	Buffer int `json:"buffer" yaml:"buffer"`
}

// ExecutionConfig contains the simulator's fill parameters.
type ExecutionConfig struct {
	SlippagePct float64 `json:"slippage_pct" yaml:"slippage_pct"`
	Commission  float64 `json:"commission" yaml:"commission"`
	FillMode    string  `json:"fill_mode" yaml:"fill_mode"`
}

// JournalConfig contains fill journaling parameters.
type JournalConfig struct {
	Type      string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	FillsFile string `json:"fills_file,omitempty" yaml:"fills_file,omitempty"`
	DBPath    string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// ReplayConfig points serve at a bar file to replay on startup.
type ReplayConfig struct {
	File     string `json:"file,omitempty" yaml:"file,omitempty"`
	Symbol   string `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	Interval string `json:"interval,omitempty" yaml:"interval,omitempty"` // e.g., "100ms", "1s"
}

// ParseInterval converts the interval string to time.Duration.
func (r ReplayConfig) ParseInterval() (time.Duration, error) {
	if r.Interval == "" {
		return 0, nil
	}
	return time.ParseDuration(r.Interval)
}

// StrategyConfig describes a strategy to load at startup.
type StrategyConfig struct {
	ID     string         `json:"id,omitempty" yaml:"id,omitempty"`
	Type   string         `json:"type" yaml:"type"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// LoadFromFile loads configuration from a file (YAML or JSON).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if yamlErr := yaml.Unmarshal(data, cfg); yamlErr != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", yamlErr)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file (format by extension).
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Bus.Buffer <= 0 {
		return fmt.Errorf("bus.buffer must be positive")
	}
	if c.Execution.SlippagePct < 0 {
		return fmt.Errorf("execution.slippage_pct must not be negative")
	}
	if c.Execution.Commission < 0 {
		return fmt.Errorf("execution.commission must not be negative")
	}
	switch c.Execution.FillMode {
	case "conservative", "optimistic", "realistic":
	default:
		return fmt.Errorf("execution.fill_mode must be 'conservative', 'optimistic' or 'realistic'")
	}
	switch c.Journal.Type {
	case "none":
	case "csv":
		if c.Journal.FillsFile == "" {
			return fmt.Errorf("journal.fills_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}
	if _, err := c.Replay.ParseInterval(); err != nil {
		return fmt.Errorf("replay.interval: %w", err)
	}
	for i, s := range c.Strategies {
		if s.Type == "" {
			return fmt.Errorf("strategies[%d].type is required", i)
		}
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8083"},
		Bus:    BusConfig{Buffer: 256},
		Execution: ExecutionConfig{
			SlippagePct: 0.01,
			Commission:  1.0,
			FillMode:    "conservative",
		},
		Journal:  JournalConfig{Type: "none"},
		LogLevel: "info",
	}
}
