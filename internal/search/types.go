// Package search implements adaptive hybrid retrieval over the legal corpus.
// Keyword and vector paths run concurrently, their ranks are combined with
// weighted Reciprocal Rank Fusion, and the fused pool is optionally reranked.
package search

import (
	"context"

	"github.com/Aman-CERP/lawrag/internal/store"
)

// QueryType classifies how a query should weight the retrieval paths.
type QueryType string

const (
	// QueryTypeExact marks queries dominated by quoted terms, statute
	// references or legal code names.
	QueryTypeExact QueryType = "exact"
	// QueryTypeSemantic marks open questions and abstractions.
	QueryTypeSemantic QueryType = "semantic"
	// QueryTypeHybrid is everything else.
	QueryTypeHybrid QueryType = "hybrid"
)

// QueryProfile carries the fusion weights derived for one query.
// VectorWeight + KeywordWeight is always 1.0.
type QueryProfile struct {
	Type          QueryType `json:"query_type"`
	VectorWeight  float64   `json:"vector_weight"`
	KeywordWeight float64   `json:"keyword_weight"`
}

// ProfileFor returns the fixed weights for a query type.
// Unknown types get the hybrid weights.
func ProfileFor(t QueryType) QueryProfile {
	switch t {
	case QueryTypeExact:
		return QueryProfile{Type: QueryTypeExact, VectorWeight: 0.3, KeywordWeight: 0.7}
	case QueryTypeSemantic:
		return QueryProfile{Type: QueryTypeSemantic, VectorWeight: 0.8, KeywordWeight: 0.2}
	default:
		return QueryProfile{Type: QueryTypeHybrid, VectorWeight: 0.6, KeywordWeight: 0.4}
	}
}

// RankedHit is one result of a single retrieval path. Rank is 1-based and
// contiguous within its list. Scores are path-specific and never compared
// across paths.
type RankedHit struct {
	DocID uint64  `json:"doc_id"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// ContributingRanks records where a fused document appeared. 0 means absent.
type ContributingRanks struct {
	Vector  int `json:"vector"`
	Keyword int `json:"keyword"`
}

// FusedHit is one result of a fusion run. Score is only comparable within
// the same run.
type FusedHit struct {
	DocID uint64            `json:"doc_id"`
	Score float64           `json:"score"`
	Ranks ContributingRanks `json:"ranks"`
}

// Hit is a fused hit resolved to its document. After reranking Score holds
// the relevance service score and FusedScore keeps the fusion score.
type Hit struct {
	FusedHit
	FusedScore float64         `json:"fused_score"`
	Reranked   bool            `json:"reranked"`
	Document   *store.Document `json:"document"`
}

// Searcher is a single retrieval path.
type Searcher interface {
	// Search returns at most topK hits ranked from 1. topK <= 0 yields an
	// empty result without error.
	Search(ctx context.Context, query string, topK int) ([]RankedHit, error)
}

// Degradation labels recorded when a retrieval stage falls back.
const (
	DegradedEmbedding = "embedding_unavailable"
	DegradedVector    = "vector_unavailable"
	DegradedKeyword   = "keyword_unavailable"
	DegradedRerank    = "rerank_unavailable"
)

// Retrieval is the outcome of retrieving for one or more queries.
type Retrieval struct {
	Query        string       `json:"query"`
	Profile      QueryProfile `json:"profile"`
	Hits         []Hit        `json:"hits"`
	Degradations []string     `json:"degradations,omitempty"`
}

// Degraded reports whether any stage fell back.
func (r *Retrieval) Degraded() bool { return len(r.Degradations) > 0 }

func toRankedHits[T any](results []T, id func(T) uint64, score func(T) float64) []RankedHit {
	hits := make([]RankedHit, len(results))
	for i, r := range results {
		hits[i] = RankedHit{DocID: id(r), Score: score(r), Rank: i + 1}
	}
	return hits
}
