package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Engine.Workers != 5 {
		t.Errorf("default workers = %d, want 5", cfg.Engine.Workers)
	}
	if cfg.ClaimTimeoutDuration() != 60*time.Second {
		t.Errorf("default claim timeout = %v", cfg.ClaimTimeoutDuration())
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cardaudit.yaml")
	data := []byte(`
llm:
  provider: openai
  model: gpt-4o-mini
engine:
  workers: 3
  claim_timeout: 30s
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("llm config not loaded: %+v", cfg.LLM)
	}
	if cfg.Engine.Workers != 3 {
		t.Errorf("workers = %d, want 3", cfg.Engine.Workers)
	}
	if cfg.ClaimTimeoutDuration() != 30*time.Second {
		t.Errorf("claim timeout = %v, want 30s", cfg.ClaimTimeoutDuration())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file: %v", err)
	}
	if cfg.LLM.Provider != "gemini" {
		t.Errorf("provider = %q, want gemini default", cfg.LLM.Provider)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CARDAUDIT_PROVIDER", "openai")
	t.Setenv("CARDAUDIT_WORKERS", "9")
	t.Setenv("CARDAUDIT_CLAIM_TIMEOUT", "15s")

	cfg := Default()
	cfg.ApplyEnv()
	if cfg.LLM.Provider != "openai" {
		t.Errorf("provider = %q", cfg.LLM.Provider)
	}
	if cfg.Engine.Workers != 9 {
		t.Errorf("workers = %d", cfg.Engine.Workers)
	}
	if cfg.Engine.ClaimTimeout != "15s" {
		t.Errorf("claim timeout = %q", cfg.Engine.ClaimTimeout)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.LLM.Provider = "cohere" }},
		{"zero workers", func(c *Config) { c.Engine.Workers = 0 }},
		{"bad timeout", func(c *Config) { c.Engine.ClaimTimeout = "fast" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
