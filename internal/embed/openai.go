package embed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAI-compatible embedding API.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	BatchSize  int
}

// OpenAIEmbedder calls the /embeddings endpoint of any OpenAI-compatible API.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	dims      int
	batchSize int
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an OpenAI-compatible embedder.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive, got %d", cfg.Dimensions)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     openai.EmbeddingModel(cfg.Model),
		dims:      cfg.Dimensions,
		batchSize: cfg.BatchSize,
	}, nil
}

// Embed embeds one text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in batches. Blank texts get zero vectors.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var idx []int
	var pending []string
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = make([]float32, e.dims)
			continue
		}
		idx = append(idx, i)
		pending = append(pending, text)
	}

	for _, b := range batches(len(pending), e.batchSize) {
		req := openai.EmbeddingRequest{
			Input:          pending[b[0]:b[1]],
			Model:          e.model,
			EncodingFormat: openai.EmbeddingEncodingFormatFloat,
			Dimensions:     e.dims,
		}
		resp, err := e.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return nil, parseAPIError(err)
		}
		if len(resp.Data) != b[1]-b[0] {
			return nil, fmt.Errorf("embedding API returned %d vectors for %d texts", len(resp.Data), b[1]-b[0])
		}

		data := resp.Data
		sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
		for j, d := range data {
			if len(d.Embedding) != e.dims {
				return nil, fmt.Errorf("embedding API returned %d dimensions, expected %d", len(d.Embedding), e.dims)
			}
			results[idx[b[0]+j]] = normalizeVector(d.Embedding)
		}
	}
	return results, nil
}

// Dimensions returns the embedding width.
func (e *OpenAIEmbedder) Dimensions() int { return e.dims }

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string { return string(e.model) }

// Available checks the API with ListModels.
func (e *OpenAIEmbedder) Available(ctx context.Context) bool {
	_, err := e.client.ListModels(ctx)
	return err == nil
}

// Close is a no-op.
func (e *OpenAIEmbedder) Close() error { return nil }

// parseAPIError extracts a readable message from an API failure.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, detail, err)
		}
		return fmt.Errorf("embedding API error %d: %w", reqErr.HTTPStatusCode, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	return fmt.Errorf("embedding request failed: %w", err)
}

// extractDetail reads a {"detail": "..."} error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		return parsed.Detail
	}
	return ""
}
