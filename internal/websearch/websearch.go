// Package websearch supplies supplementary snippets from the open web when
// local retrieval is not good enough.
package websearch

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/lawrag/internal/config"
)

// Providers accepted in websearch.provider.
const (
	ProviderSerpAPI = "serpapi"
	ProviderStatic  = "static"
	ProviderNone    = "none"
)

// DefaultMaxResults caps results per query.
const DefaultMaxResults = 5

// Result holds a single search result.
type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// Searcher queries a web search service. An empty result is not an error.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// New returns the searcher for cfg.Provider.
func New(cfg config.WebSearchConfig) (Searcher, error) {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	switch cfg.Provider {
	case ProviderSerpAPI:
		return NewSerpAPIClient(SerpAPIConfig{
			Endpoint:      cfg.Endpoint,
			APIKey:        cfg.APIKey,
			Engine:        cfg.Engine,
			MaxResults:    maxResults,
			RatePerSecond: cfg.RatePerSecond,
		})
	case ProviderStatic:
		results := make([]Result, len(cfg.Static))
		for i, r := range cfg.Static {
			results[i] = Result{Title: r.Title, Snippet: r.Snippet, URL: r.URL}
		}
		return NewStatic(results, maxResults), nil
	case ProviderNone, "":
		return None{}, nil
	default:
		return nil, fmt.Errorf("unknown websearch provider: %s (valid options: serpapi, static, none)", cfg.Provider)
	}
}

// Static returns a fixed result list for every query. It serves offline
// deployments and tests.
type Static struct {
	results []Result
}

// NewStatic creates a static provider returning at most maxResults results.
func NewStatic(results []Result, maxResults int) *Static {
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return &Static{results: results}
}

// Search returns a copy of the configured results.
func (s *Static) Search(ctx context.Context, _ string) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Result, len(s.results))
	copy(out, s.results)
	return out, nil
}

// None disables web search.
type None struct{}

// Search always returns no results.
func (None) Search(context.Context, string) ([]Result, error) { return nil, nil }
