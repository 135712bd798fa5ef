package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// HTTP scorer defaults.
const (
	DefaultScorerEndpoint = "http://localhost:9659"
	DefaultScorerModel    = "cross-encoder/ms-marco-MiniLM-L-6-v2"
)

// HTTPScorerConfig configures an HTTPScorer.
type HTTPScorerConfig struct {
	// Endpoint is the scoring server URL; requests go to Endpoint + "/rerank".
	Endpoint string
	Model    string
}

// HTTPScorer calls a cross-encoder server speaking the /rerank JSON protocol.
type HTTPScorer struct {
	client *http.Client
	config HTTPScorerConfig

	mu     sync.RWMutex
	closed bool
}

var _ Scorer = (*HTTPScorer)(nil)

// NewHTTPScorer creates a scorer. It does not contact the server; callers
// bound each call with their own timeout.
func NewHTTPScorer(cfg HTTPScorerConfig) *HTTPScorer {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultScorerEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultScorerModel
	}
	return &HTTPScorer{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		config: cfg,
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	} `json:"results"`
}

// Score returns one relevance score per document, in input order.
func (s *HTTPScorer) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("scorer is closed")
	}
	if len(documents) == 0 {
		return []float64{}, nil
	}

	body, err := json.Marshal(rerankRequest{Query: query, Documents: documents, Model: s.config.Model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("rerank failed (status %d): %s", resp.StatusCode, string(msg))
	}

	var result rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	scores := make([]float64, len(documents))
	seen := make([]bool, len(documents))
	for _, r := range result.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			return nil, fmt.Errorf("rerank response index %d out of range", r.Index)
		}
		scores[r.Index] = r.Score
		seen[r.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("rerank response missing score for document %d", i)
		}
	}

	slog.Debug("rerank_http_request",
		slog.Int("doc_count", len(documents)),
		slog.Int("payload_bytes", len(body)),
		slog.Duration("duration", time.Since(start)))

	return scores, nil
}

// Available checks the server's /health endpoint.
func (s *HTTPScorer) Available(ctx context.Context) bool {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return false
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, s.config.Endpoint+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close releases idle connections.
func (s *HTTPScorer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if transport, ok := s.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}
