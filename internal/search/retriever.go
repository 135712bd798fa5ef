package search

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	lrerrors "github.com/Aman-CERP/lawrag/internal/errors"
	"github.com/Aman-CERP/lawrag/internal/store"
)

// RetrieverConfig sizes a retrieval run.
type RetrieverConfig struct {
	// CandidateK is the per-path depth and the fused pool handed to the reranker.
	CandidateK int
	// TopN is the number of hits returned.
	TopN        int
	RRFConstant int
}

// DefaultRetrieverConfig returns the default sizes.
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{CandidateK: 20, TopN: 5, RRFConstant: DefaultRRFConstant}
}

// Retriever runs classification, both retrieval paths, fusion and reranking.
// It holds only read-only collaborators and is safe for concurrent use.
type Retriever struct {
	classifier *QueryClassifier
	keyword    Searcher
	vector     Searcher
	docs       store.DocumentStore
	reranker   *Reranker
	config     RetrieverConfig
}

// NewRetriever creates a retriever. reranker may be nil to keep fused order.
func NewRetriever(classifier *QueryClassifier, keyword, vector Searcher, docs store.DocumentStore, reranker *Reranker, cfg RetrieverConfig) *Retriever {
	defaults := DefaultRetrieverConfig()
	if cfg.TopN <= 0 {
		cfg.TopN = defaults.TopN
	}
	if cfg.CandidateK < cfg.TopN {
		cfg.CandidateK = max(defaults.CandidateK, cfg.TopN)
	}
	if cfg.RRFConstant <= 0 {
		cfg.RRFConstant = defaults.RRFConstant
	}
	return &Retriever{
		classifier: classifier,
		keyword:    keyword,
		vector:     vector,
		docs:       docs,
		reranker:   reranker,
		config:     cfg,
	}
}

// Classifier returns the retriever's query classifier.
func (r *Retriever) Classifier() *QueryClassifier { return r.classifier }

// Retrieve returns the top hits for one query. Invalid queries fail with
// ERR_403_INVALID_QUERY. A failing path degrades to the other one; only
// when both fail does Retrieve return ERR_503_SEARCH_FAILED. Reranker
// failures keep the fused order.
func (r *Retriever) Retrieve(ctx context.Context, query string) (*Retrieval, error) {
	start := time.Now()

	profile, err := r.classifier.Classify(query)
	if err != nil {
		return nil, err
	}

	var (
		vectorHits, keywordHits []RankedHit
		vectorErr, keywordErr   error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		keywordHits, keywordErr = r.keyword.Search(gctx, query, r.config.CandidateK)
		return nil
	})
	g.Go(func() error {
		vectorHits, vectorErr = r.vector.Search(gctx, query, r.config.CandidateK)
		return nil
	})
	_ = g.Wait()

	out := &Retrieval{Query: query, Profile: profile}

	if keywordErr != nil && vectorErr != nil {
		return nil, lrerrors.New(lrerrors.ErrCodeSearchFailed, "both retrieval paths failed", errors.Join(keywordErr, vectorErr))
	}
	if keywordErr != nil {
		slog.Warn("keyword_search_failed", lrerrors.LogAttrs(keywordErr)...)
		out.Degradations = append(out.Degradations, DegradedKeyword)
	}
	if vectorErr != nil {
		label := DegradedVector
		if lrerrors.GetCode(vectorErr) == lrerrors.ErrCodeEmbeddingUnavailable {
			label = DegradedEmbedding
		}
		slog.Warn("vector_search_failed", append([]any{slog.String("degradation", label)}, lrerrors.LogAttrs(vectorErr)...)...)
		out.Degradations = append(out.Degradations, label)
	}

	fused := Fuse(vectorHits, keywordHits, profile, r.config.RRFConstant, r.config.CandidateK)
	hits, err := r.resolve(ctx, fused)
	if err != nil {
		return nil, err
	}

	if r.reranker != nil && len(hits) > 0 {
		reranked, err := r.reranker.Rerank(ctx, query, hits, r.config.TopN)
		if err != nil {
			slog.Warn("rerank_failed", lrerrors.LogAttrs(err)...)
			out.Degradations = append(out.Degradations, DegradedRerank)
		} else {
			hits = reranked
		}
	}
	if len(hits) > r.config.TopN {
		hits = hits[:r.config.TopN]
	}
	out.Hits = hits

	slog.Info("retrieval_completed",
		slog.String("query_type", string(profile.Type)),
		slog.Int("keyword_hits", len(keywordHits)),
		slog.Int("vector_hits", len(vectorHits)),
		slog.Int("hits", len(hits)),
		slog.Any("degradations", out.Degradations),
		slog.Duration("duration", time.Since(start)))

	return out, nil
}

// resolve attaches documents to fused hits, preserving order. Ids the
// document store does not know are dropped.
func (r *Retriever) resolve(ctx context.Context, fused []FusedHit) ([]Hit, error) {
	if len(fused) == 0 {
		return []Hit{}, nil
	}
	ids := make([]uint64, len(fused))
	for i, f := range fused {
		ids[i] = f.DocID
	}
	docs, err := r.docs.Get(ctx, ids)
	if err != nil {
		return nil, lrerrors.New(lrerrors.ErrCodeSearchFailed, "failed to load documents", err)
	}

	hits := make([]Hit, 0, len(fused))
	for _, f := range fused {
		doc, ok := docs[f.DocID]
		if !ok {
			slog.Warn("document_missing", slog.Uint64("doc_id", f.DocID))
			continue
		}
		hits = append(hits, Hit{FusedHit: f, FusedScore: f.Score, Document: doc})
	}
	return hits, nil
}

// RetrieveAll retrieves for every query concurrently and combines the runs
// with equal-weight RRF. The first query is the primary: its profile is
// reported and its classification errors are returned. Alternative queries
// that fail are skipped. A single query is returned unchanged.
func (r *Retriever) RetrieveAll(ctx context.Context, queries []string) (*Retrieval, error) {
	if len(queries) == 0 {
		return nil, lrerrors.InvalidQuery("no queries to retrieve")
	}
	if len(queries) == 1 {
		return r.Retrieve(ctx, queries[0])
	}

	runs := make([]*Retrieval, len(queries))
	errs := make([]error, len(queries))

	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			runs[i], errs[i] = r.Retrieve(ctx, q)
		}(i, q)
	}
	wg.Wait()

	if lrerrors.GetCode(errs[0]) == lrerrors.ErrCodeInvalidQuery {
		return nil, errs[0]
	}

	out := &Retrieval{Query: queries[0]}
	var hitRuns [][]Hit
	seen := make(map[string]bool)
	var firstErr error
	for i, run := range runs {
		if errs[i] != nil {
			slog.Warn("alternative_retrieval_failed",
				append([]any{slog.Int("query_index", i)}, lrerrors.LogAttrs(errs[i])...)...)
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		if out.Profile.Type == "" {
			out.Profile = run.Profile
		}
		hitRuns = append(hitRuns, run.Hits)
		for _, d := range run.Degradations {
			if !seen[d] {
				seen[d] = true
				out.Degradations = append(out.Degradations, d)
			}
		}
	}
	if len(hitRuns) == 0 {
		return nil, firstErr
	}

	out.Hits = fuseRuns(hitRuns, r.config.RRFConstant, r.config.TopN)
	return out, nil
}
