// Package config provides configuration loading and management for the frame
// console. It handles loading configuration from YAML files, applies
// environment overrides and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/frame-console-mcp/internal/datgrid"
)

// Environment variables recognized by ApplyEnv.
const (
	EnvConfigPath = "FRAME_MCP_CONFIG"
	EnvLogLevel   = "FRAME_MCP_LOG_LEVEL"
	EnvBackendURL = "FRAME_MCP_BACKEND_URL"
	EnvLogsURL    = "FRAME_MCP_LOGS_URL"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Backend describes the inference service
	Backend struct {
		// BaseURL is prepended to /infer, /infer_folder_path and /config/crop
		BaseURL string `yaml:"baseURL"`

		// Timeout bounds every HTTP request to the backend
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"backend"`

	// Logs describes the server-sent event log stream
	Logs struct {
		URL            string        `yaml:"url"`
		ReconnectDelay time.Duration `yaml:"reconnectDelay"`

		// MaxRecords caps the number of log records kept in memory
		MaxRecords int `yaml:"maxRecords"`

		// AutoConnect opens the stream when the server starts
		AutoConnect bool `yaml:"autoConnect"`
	} `yaml:"logs"`

	// Decode controls .dat decoding
	Decode struct {
		DefaultPrecision string `yaml:"defaultPrecision"`

		// Timeout bounds how long a frame manager waits for a decode.
		// Zero waits indefinitely.
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"decode"`

	Notifications struct {
		Duration time.Duration `yaml:"duration"`
	} `yaml:"notifications"`

	Logging struct {
		// Level is a logrus level name: debug, info, warn, error
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Backend.BaseURL = "http://localhost:8080/api"
	cfg.Backend.Timeout = 60 * time.Second

	cfg.Logs.URL = "http://localhost:8080/sse/logs"
	cfg.Logs.ReconnectDelay = 3 * time.Second
	cfg.Logs.MaxRecords = 1000
	cfg.Logs.AutoConnect = false

	cfg.Decode.DefaultPrecision = datgrid.DefaultPrecision.String()
	cfg.Decode.Timeout = 0

	cfg.Notifications.Duration = 1500 * time.Millisecond

	cfg.Logging.Level = "info"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v, ok := lookup(EnvBackendURL); ok && v != "" {
		c.Backend.BaseURL = v
	}
	if v, ok := lookup(EnvLogsURL); ok && v != "" {
		c.Logs.URL = v
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if _, err := datgrid.ParsePrecision(c.Decode.DefaultPrecision); err != nil {
		return fmt.Errorf("invalid decode.defaultPrecision: %w", err)
	}
	if c.Logs.MaxRecords < 0 {
		return fmt.Errorf("invalid logs.maxRecords: %d", c.Logs.MaxRecords)
	}
	if c.Backend.Timeout < 0 || c.Decode.Timeout < 0 || c.Logs.ReconnectDelay < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// Precision returns the configured default precision.
func (c *Config) Precision() datgrid.Precision {
	p, err := datgrid.ParsePrecision(c.Decode.DefaultPrecision)
	if err != nil {
		return datgrid.DefaultPrecision
	}
	return p
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
