package embed

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/lawrag/internal/config"
)

// Provider names accepted in embeddings.provider.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderStatic = "static"
)

// NewEmbedder builds the configured embedder wrapped in an LRU cache.
// With probe set, the Ollama provider checks the model at construction; the
// index build probes so a missing model fails fast, while query paths skip it
// and degrade per request instead.
func NewEmbedder(ctx context.Context, cfg config.EmbeddingsConfig, probe bool) (Embedder, error) {
	var (
		inner Embedder
		err   error
	)

	switch cfg.Provider {
	case ProviderOllama, "":
		inner, err = NewOllamaEmbedder(ctx, OllamaConfig{
			Host:            cfg.OllamaHost,
			Model:           cfg.Model,
			Dimensions:      cfg.Dimensions,
			BatchSize:       cfg.BatchSize,
			SkipHealthCheck: !probe,
		})
	case ProviderOpenAI:
		inner, err = NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		})
	case ProviderStatic:
		inner = NewStaticEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s (valid options: ollama, openai, static)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}
