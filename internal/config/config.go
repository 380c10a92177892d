// Package config loads fleetmedic configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all fleetmedic configuration.
type Config struct {
	// Gemini API configuration
	Gemini GeminiConfig `yaml:"gemini"`

	// Per-stage listen addresses and peer URLs
	Stages StagesConfig `yaml:"stages"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// GeminiConfig configures the Gemini REST client shared by all stages.
type GeminiConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// StageConfig is one stage's listen address plus its advertised URL.
type StageConfig struct {
	Addr string `yaml:"addr"`
	URL  string `yaml:"url"`
}

// StagesConfig maps the three pipeline stages.
type StagesConfig struct {
	Analysis    StageConfig `yaml:"analysis"`
	Diagnosis   StageConfig `yaml:"diagnosis"`
	Remediation StageConfig `yaml:"remediation"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Gemini: GeminiConfig{
			Model:   "gemini-1.5-flash",
			BaseURL: "https://generativelanguage.googleapis.com/v1beta",
			Timeout: "120s",
		},
		Stages: StagesConfig{
			Analysis:    StageConfig{Addr: ":8001", URL: "http://127.0.0.1:8001"},
			Diagnosis:   StageConfig{Addr: ":8002", URL: "http://127.0.0.1:8002"},
			Remediation: StageConfig{Addr: ":8003", URL: "http://127.0.0.1:8003"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment variables override either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Gemini.APIKey = key
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		c.Gemini.Model = model
	}
	if url := os.Getenv("GEMINI_BASE_URL"); url != "" {
		c.Gemini.BaseURL = url
	}

	if addr := os.Getenv("STAGE_ANALYSIS_ADDR"); addr != "" {
		c.Stages.Analysis.Addr = addr
	}
	if addr := os.Getenv("STAGE_DIAGNOSIS_ADDR"); addr != "" {
		c.Stages.Diagnosis.Addr = addr
	}
	if addr := os.Getenv("STAGE_REMEDIATION_ADDR"); addr != "" {
		c.Stages.Remediation.Addr = addr
	}
	if url := os.Getenv("STAGE_ANALYSIS_URL"); url != "" {
		c.Stages.Analysis.URL = url
	}
	if url := os.Getenv("STAGE_DIAGNOSIS_URL"); url != "" {
		c.Stages.Diagnosis.URL = url
	}
	if url := os.Getenv("STAGE_REMEDIATION_URL"); url != "" {
		c.Stages.Remediation.URL = url
	}
}

// GeminiTimeout returns the Gemini request timeout as a duration.
func (c *Config) GeminiTimeout() time.Duration {
	d, err := time.ParseDuration(c.Gemini.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("Gemini API key not configured (set GEMINI_API_KEY or gemini.api_key)")
	}
	if c.Gemini.Model == "" {
		return fmt.Errorf("Gemini model not configured")
	}
	for _, s := range []struct {
		name  string
		stage StageConfig
	}{
		{"analysis", c.Stages.Analysis},
		{"diagnosis", c.Stages.Diagnosis},
		{"remediation", c.Stages.Remediation},
	} {
		if s.stage.Addr == "" {
			return fmt.Errorf("stage %s has no listen address", s.name)
		}
		if s.stage.URL == "" {
			return fmt.Errorf("stage %s has no URL", s.name)
		}
	}
	return nil
}
