// Package llm wraps the language-model providers behind a single
// request/response interface. The pipeline only ever needs one-shot
// completions; streaming, tool calling, and retries live with the caller.
package llm

import (
	"context"
	"fmt"
	"time"

	"cardaudit/internal/config"
)

// Client is the minimal provider interface the pipeline calls.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// NewClient builds the provider selected by cfg.
func NewClient(ctx context.Context, cfg config.LLMConfig, timeout time.Duration) (Client, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGeminiClient(ctx, cfg)
	case "openai":
		return NewOpenAIClient(cfg, timeout)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
