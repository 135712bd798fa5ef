package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	lrerrors "github.com/Aman-CERP/lawrag/internal/errors"
	"github.com/Aman-CERP/lawrag/internal/resilience"
)

// Scorer is the pairwise relevance service. It returns one score per
// document, in input order.
type Scorer interface {
	Score(ctx context.Context, query string, documents []string) ([]float64, error)
}

// Reranker reorders fused hits with a Scorer.
type Reranker struct {
	scorer  Scorer
	guard   *resilience.Guard
	timeout time.Duration
}

// NewReranker creates a reranker. guard may be nil.
func NewReranker(scorer Scorer, guard *resilience.Guard, timeout time.Duration) *Reranker {
	return &Reranker{scorer: scorer, guard: guard, timeout: timeout}
}

// Rerank scores hits against query and returns at most topN of them, best
// first. It never adds documents, and hits with equal scores keep their
// input order. On scorer failure or timeout it returns
// ERR_303_RERANK_UNAVAILABLE and no hits; the caller keeps the fused order.
func (r *Reranker) Rerank(ctx context.Context, query string, hits []Hit, topN int) ([]Hit, error) {
	if topN <= 0 || len(hits) == 0 {
		return []Hit{}, nil
	}

	docs := make([]string, len(hits))
	for i, h := range hits {
		if h.Document != nil {
			docs[i] = h.Document.Text
		}
	}

	start := time.Now()
	scores, err := resilience.Call(ctx, r.guard, resilience.Rerank, r.timeout,
		func(ctx context.Context) ([]float64, error) {
			return r.scorer.Score(ctx, query, docs)
		})
	if err == nil && len(scores) != len(hits) {
		err = fmt.Errorf("scorer returned %d scores for %d documents", len(scores), len(hits))
	}
	if err != nil {
		return nil, lrerrors.New(lrerrors.ErrCodeRerankUnavailable, "reranking failed", err).
			WithDetail("reason", resilience.Reason(err))
	}

	reranked := make([]Hit, len(hits))
	copy(reranked, hits)
	for i := range reranked {
		reranked[i].FusedScore = hits[i].Score
		reranked[i].Score = scores[i]
		reranked[i].Reranked = true
	}
	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Score > reranked[j].Score
	})

	if len(reranked) > topN {
		reranked = reranked[:topN]
	}

	slog.Debug("rerank_completed",
		slog.Int("candidates", len(hits)),
		slog.Int("kept", len(reranked)),
		slog.Duration("duration", time.Since(start)))

	return reranked, nil
}
