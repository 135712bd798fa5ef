package search

import (
	"context"
	"fmt"
	"time"

	"github.com/Aman-CERP/lawrag/internal/embed"
	lrerrors "github.com/Aman-CERP/lawrag/internal/errors"
	"github.com/Aman-CERP/lawrag/internal/resilience"
	"github.com/Aman-CERP/lawrag/internal/store"
)

// KeywordPath ranks documents by lexical score.
type KeywordPath struct {
	index store.KeywordIndex
}

var _ Searcher = (*KeywordPath)(nil)

// NewKeywordPath wraps a keyword index.
func NewKeywordPath(index store.KeywordIndex) *KeywordPath {
	return &KeywordPath{index: index}
}

// Search returns at most topK keyword hits ranked from 1.
func (p *KeywordPath) Search(ctx context.Context, query string, topK int) ([]RankedHit, error) {
	if topK <= 0 {
		return []RankedHit{}, nil
	}
	results, err := p.index.Search(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	if len(results) > topK {
		results = results[:topK]
	}
	return toRankedHits(results,
		func(r *store.KeywordResult) uint64 { return r.DocID },
		func(r *store.KeywordResult) float64 { return r.Score }), nil
}

// VectorPath ranks documents by embedding similarity. The query embedding
// comes from the embedding collaborator under the resilience guard.
type VectorPath struct {
	vectors  store.VectorStore
	embedder embed.Embedder
	guard    *resilience.Guard
	timeout  time.Duration
}

var _ Searcher = (*VectorPath)(nil)

// NewVectorPath wraps a vector store and its embedder. guard may be nil.
func NewVectorPath(vectors store.VectorStore, embedder embed.Embedder, guard *resilience.Guard, timeout time.Duration) *VectorPath {
	return &VectorPath{vectors: vectors, embedder: embedder, guard: guard, timeout: timeout}
}

// Search returns at most topK vector hits ranked from 1. Embedding failures
// and timeouts return ERR_302_EMBEDDING_UNAVAILABLE.
func (p *VectorPath) Search(ctx context.Context, query string, topK int) ([]RankedHit, error) {
	if topK <= 0 {
		return []RankedHit{}, nil
	}

	vec, err := resilience.Call(ctx, p.guard, resilience.Embedding, p.timeout,
		func(ctx context.Context) ([]float32, error) {
			return p.embedder.Embed(ctx, query)
		})
	if err != nil {
		return nil, lrerrors.New(lrerrors.ErrCodeEmbeddingUnavailable, "query embedding failed", err).
			WithDetail("model", p.embedder.ModelName()).
			WithDetail("reason", resilience.Reason(err))
	}

	results, err := p.vectors.Search(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	if len(results) > topK {
		results = results[:topK]
	}
	return toRankedHits(results,
		func(r *store.VectorResult) uint64 { return r.ID },
		func(r *store.VectorResult) float64 { return float64(r.Score) }), nil
}
