package llm

import (
	"context"
	"testing"
	"time"

	"cardaudit/internal/config"
)

func TestNewClientUnknownProvider(t *testing.T) {
	_, err := NewClient(context.Background(), config.LLMConfig{Provider: "llama-local"}, time.Minute)
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	for _, provider := range []string{"gemini", "openai"} {
		_, err := NewClient(context.Background(), config.LLMConfig{Provider: provider}, time.Minute)
		if err == nil {
			t.Errorf("provider %s: expected missing-key error", provider)
		}
	}
}

func TestNewOpenAIClientDefaults(t *testing.T) {
	c, err := NewOpenAIClient(config.LLMConfig{Provider: "openai", APIKey: "sk-test"}, time.Minute)
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}
	if c.model == "" {
		t.Error("model default not applied")
	}
}
