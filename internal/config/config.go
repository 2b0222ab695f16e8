// Package config loads cardaudit configuration from YAML with environment
// overrides. All knobs the pipeline needs (provider selection, worker pool
// size, per-claim timeout) travel through the Config struct; nothing reads
// the environment outside ApplyEnv.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all cardaudit configuration.
type Config struct {
	// LLM provider configuration.
	LLM LLMConfig `yaml:"llm"`

	// Verification engine settings.
	Engine EngineConfig `yaml:"engine"`

	// HTTP server settings (origin and relay).
	Server ServerConfig `yaml:"server"`

	// Logging.
	Debug bool `yaml:"debug"`
}

// LLMConfig configures the language-model provider.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini, openai
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"` // e.g. "120s"
}

// EngineConfig configures the parallel verification engine.
type EngineConfig struct {
	Workers      int    `yaml:"workers"`       // worker pool size
	ClaimTimeout string `yaml:"claim_timeout"` // per-claim sandbox timeout
	MaxAttempts  int    `yaml:"max_attempts"`  // program-generation attempts per claim
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	OriginURL string `yaml:"origin_url"` // upstream origin for relay mode
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Provider: "gemini",
			Timeout:  "120s",
		},
		Engine: EngineConfig{
			Workers:      5,
			ClaimTimeout: "60s",
			MaxAttempts:  1,
		},
		Server: ServerConfig{
			Addr: ":8085",
		},
	}
}

// Load reads cfg from path, starting from defaults. A missing file is not an
// error; the defaults plus environment overrides apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overlays CARDAUDIT_* environment variables onto cfg.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("CARDAUDIT_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("CARDAUDIT_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("CARDAUDIT_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("CARDAUDIT_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("CARDAUDIT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Engine.Workers = n
		}
	}
	if v := os.Getenv("CARDAUDIT_CLAIM_TIMEOUT"); v != "" {
		c.Engine.ClaimTimeout = v
	}
	if v := os.Getenv("CARDAUDIT_DEBUG"); v == "1" || v == "true" {
		c.Debug = true
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unknown provider %q (want gemini or openai)", c.LLM.Provider)
	}
	if c.Engine.Workers <= 0 {
		return fmt.Errorf("engine workers must be positive, got %d", c.Engine.Workers)
	}
	if _, err := time.ParseDuration(c.Engine.ClaimTimeout); err != nil {
		return fmt.Errorf("invalid claim_timeout %q: %w", c.Engine.ClaimTimeout, err)
	}
	if c.LLM.Timeout != "" {
		if _, err := time.ParseDuration(c.LLM.Timeout); err != nil {
			return fmt.Errorf("invalid llm timeout %q: %w", c.LLM.Timeout, err)
		}
	}
	if c.Engine.MaxAttempts <= 0 {
		c.Engine.MaxAttempts = 1
	}
	return nil
}

// ClaimTimeoutDuration returns the parsed per-claim timeout.
func (c *Config) ClaimTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Engine.ClaimTimeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// LLMTimeoutDuration returns the parsed provider call timeout.
func (c *Config) LLMTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}
