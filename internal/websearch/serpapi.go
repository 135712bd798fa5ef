package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// SerpAPI defaults.
const (
	DefaultSerpAPIEndpoint = "https://serpapi.com/search.json"
	DefaultSerpAPIEngine   = "google"
)

// SerpAPIConfig configures a SerpAPIClient.
type SerpAPIConfig struct {
	Endpoint   string
	APIKey     string
	Engine     string
	MaxResults int
	// RatePerSecond paces outgoing requests. 0 disables pacing.
	RatePerSecond float64
}

// SerpAPIClient queries SerpAPI for organic results.
type SerpAPIClient struct {
	client  *http.Client
	config  SerpAPIConfig
	limiter *rate.Limiter
}

var _ Searcher = (*SerpAPIClient)(nil)

// NewSerpAPIClient creates a client. An API key is required.
func NewSerpAPIClient(cfg SerpAPIConfig) (*SerpAPIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("serpapi requires an API key (set SERPAPI_API_KEY or websearch.api_key)")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultSerpAPIEndpoint
	}
	if cfg.Engine == "" {
		cfg.Engine = DefaultSerpAPIEngine
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	return &SerpAPIClient{
		client:  &http.Client{Timeout: 30 * time.Second},
		config:  cfg,
		limiter: limiter,
	}, nil
}

type serpResponse struct {
	Error          string `json:"error"`
	OrganicResults []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"organic_results"`
}

// Search returns up to MaxResults organic results for query.
func (c *SerpAPIClient) Search(ctx context.Context, query string) ([]Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("web search rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("engine", c.config.Engine)
	params.Set("api_key", c.config.APIKey)
	params.Set("num", strconv.Itoa(c.config.MaxResults))
	params.Set("hl", "zh-cn")
	params.Set("gl", "cn")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create web search request: %w", err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("web search failed (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode web search response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("web search error: %s", parsed.Error)
	}

	results := make([]Result, 0, min(len(parsed.OrganicResults), c.config.MaxResults))
	for _, r := range parsed.OrganicResults {
		if len(results) == c.config.MaxResults {
			break
		}
		results = append(results, Result{Title: r.Title, Snippet: r.Snippet, URL: r.Link})
	}

	slog.Debug("web_search_completed",
		slog.Int("results", len(results)),
		slog.Duration("duration", time.Since(start)))

	return results, nil
}
