// Package llm is a minimal text-completion client shared by the query
// rewriter, the quality judge and the answer generator.
package llm

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/lawrag/internal/config"
)

// Providers accepted in llm.provider.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Request is one completion call.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	// JSON asks the model for a JSON object response when the provider supports it.
	JSON bool
}

// Client completes prompts.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Model() string
}

// New returns the client for cfg.Provider.
func New(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	case ProviderOllama:
		return NewOllamaClient(OllamaConfig{Host: cfg.OllamaHost, Model: cfg.Model}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s (valid options: openai, ollama)", cfg.Provider)
	}
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) { return f(ctx, req) }

// Model returns "func".
func (f ClientFunc) Model() string { return "func" }
