package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lrerrors "github.com/Aman-CERP/lawrag/internal/errors"
	"github.com/Aman-CERP/lawrag/internal/store"
)

// scorerFunc adapts a function to Scorer.
type scorerFunc func(ctx context.Context, query string, documents []string) ([]float64, error)

func (f scorerFunc) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	return f(ctx, query, documents)
}

func docHits(texts ...string) []Hit {
	hits := make([]Hit, len(texts))
	for i, text := range texts {
		id := uint64(i + 1)
		hits[i] = Hit{
			FusedHit:   FusedHit{DocID: id, Score: 0.1 / float64(i+1)},
			FusedScore: 0.1 / float64(i+1),
			Document:   &store.Document{ID: id, Text: text},
		}
	}
	return hits
}

// =============================================================================
// Reranker
// =============================================================================

func TestReranker_ReordersByScore(t *testing.T) {
	scorer := scorerFunc(func(_ context.Context, _ string, docs []string) ([]float64, error) {
		return []float64{0.2, 0.9, 0.5}, nil
	})
	r := NewReranker(scorer, nil, time.Second)

	got, err := r.Rerank(context.Background(), "离婚", docHits("a", "b", "c"), 10)

	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 3, 1}, hitIDs(got))
	assert.Equal(t, 0.9, got[0].Score)
	assert.InDelta(t, 0.05, got[0].FusedScore, 1e-12)
	assert.True(t, got[0].Reranked)
}

func TestReranker_StableForEqualScores(t *testing.T) {
	scorer := scorerFunc(func(_ context.Context, _ string, docs []string) ([]float64, error) {
		return []float64{0.5, 0.5, 0.7, 0.5}, nil
	})
	r := NewReranker(scorer, nil, time.Second)

	got, err := r.Rerank(context.Background(), "q", docHits("a", "b", "c", "d"), 10)

	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 1, 2, 4}, hitIDs(got))
}

func TestReranker_TruncatesAndPreservesMembership(t *testing.T) {
	scorer := scorerFunc(func(_ context.Context, _ string, docs []string) ([]float64, error) {
		out := make([]float64, len(docs))
		for i := range docs {
			out[i] = float64(i)
		}
		return out, nil
	})
	r := NewReranker(scorer, nil, time.Second)
	in := docHits("a", "b", "c", "d", "e")

	got, err := r.Rerank(context.Background(), "q", in, 2)

	require.NoError(t, err)
	assert.Equal(t, []uint64{5, 4}, hitIDs(got))
	// Input is untouched
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, hitIDs(in))
	assert.False(t, in[0].Reranked)
}

func TestReranker_Failures(t *testing.T) {
	tests := []struct {
		name   string
		scorer scorerFunc
	}{
		{"scorer error", func(context.Context, string, []string) ([]float64, error) {
			return nil, errors.New("connection refused")
		}},
		{"wrong score count", func(context.Context, string, []string) ([]float64, error) {
			return []float64{1}, nil
		}},
		{"timeout", func(ctx context.Context, _ string, _ []string) ([]float64, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReranker(tt.scorer, nil, 20*time.Millisecond)

			got, err := r.Rerank(context.Background(), "q", docHits("a", "b"), 5)

			require.Error(t, err)
			assert.Nil(t, got)
			assert.Equal(t, lrerrors.ErrCodeRerankUnavailable, lrerrors.GetCode(err))
		})
	}
}

func TestReranker_EmptyInput(t *testing.T) {
	called := false
	r := NewReranker(scorerFunc(func(context.Context, string, []string) ([]float64, error) {
		called = true
		return nil, nil
	}), nil, time.Second)

	got, err := r.Rerank(context.Background(), "q", nil, 5)

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, called)
}

// =============================================================================
// HTTPScorer
// =============================================================================

func TestHTTPScorer_Score(t *testing.T) {
	var received rerankRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rerank":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			// Results arrive sorted by score, not by index
			_, _ = w.Write([]byte(`{"results":[{"index":1,"score":0.9},{"index":0,"score":0.1}]}`))
		case "/health":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	s := NewHTTPScorer(HTTPScorerConfig{Endpoint: server.URL, Model: "bge-reranker"})
	defer func() { _ = s.Close() }()

	scores, err := s.Score(context.Background(), "离婚条件", []string{"甲", "乙"})

	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.9}, scores)
	assert.Equal(t, "离婚条件", received.Query)
	assert.Equal(t, "bge-reranker", received.Model)
	assert.True(t, s.Available(context.Background()))
}

func TestHTTPScorer_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"server error", http.StatusInternalServerError, "boom", "status 500"},
		{"missing index", http.StatusOK, `{"results":[{"index":0,"score":0.3}]}`, "missing score"},
		{"index out of range", http.StatusOK, `{"results":[{"index":0,"score":0.3},{"index":7,"score":0.1}]}`, "out of range"},
		{"bad json", http.StatusOK, `{`, "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			s := NewHTTPScorer(HTTPScorerConfig{Endpoint: server.URL})
			_, err := s.Score(context.Background(), "q", []string{"a", "b"})

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestHTTPScorer_Closed(t *testing.T) {
	s := NewHTTPScorer(HTTPScorerConfig{Endpoint: "http://127.0.0.1:1"})
	require.NoError(t, s.Close())

	_, err := s.Score(context.Background(), "q", []string{"a"})
	assert.Error(t, err)
	assert.False(t, s.Available(context.Background()))
}
