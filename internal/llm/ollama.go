package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultOllamaHost is the default Ollama API endpoint.
const DefaultOllamaHost = "http://localhost:11434"

// OllamaConfig configures the Ollama client.
type OllamaConfig struct {
	Host  string
	Model string
}

// OllamaClient calls Ollama's /api/generate without streaming.
type OllamaClient struct {
	client *http.Client
	config OllamaConfig
}

var _ Client = (*OllamaClient)(nil)

type generateRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system,omitempty"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaClient creates an Ollama client. Deadlines come from the context.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	return &OllamaClient{client: &http.Client{}, config: cfg}
}

// Complete runs one generation.
func (c *OllamaClient) Complete(ctx context.Context, req Request) (string, error) {
	body := generateRequest{
		Model:   c.config.Model,
		System:  req.System,
		Prompt:  req.Prompt,
		Stream:  false,
		Options: map[string]any{"temperature": req.Temperature},
	}
	if req.JSON {
		body.Format = "json"
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Host+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return result.Response, nil
}

// Model returns the model name.
func (c *OllamaClient) Model() string { return c.config.Model }
