package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/lawrag/internal/config"
	"github.com/Aman-CERP/lawrag/internal/embed"
	lrerrors "github.com/Aman-CERP/lawrag/internal/errors"
	"github.com/Aman-CERP/lawrag/internal/generate"
	"github.com/Aman-CERP/lawrag/internal/llm"
	"github.com/Aman-CERP/lawrag/internal/metrics"
	"github.com/Aman-CERP/lawrag/internal/orchestrator"
	"github.com/Aman-CERP/lawrag/internal/quality"
	"github.com/Aman-CERP/lawrag/internal/resilience"
	"github.com/Aman-CERP/lawrag/internal/rewrite"
	"github.com/Aman-CERP/lawrag/internal/search"
	"github.com/Aman-CERP/lawrag/internal/store"
	"github.com/Aman-CERP/lawrag/internal/telemetry"
	"github.com/Aman-CERP/lawrag/internal/websearch"
)

// State keys written by the index build.
const (
	stateEmbeddingModel = "embedding_model"
	stateDimensions     = "dimensions"
	stateCorpusPath     = "corpus_path"
	stateDocumentCount  = "document_count"
	stateIndexedAt      = "indexed_at"
)

// newLLMClient builds the chat client; tests replace it.
var newLLMClient = llm.New

// loadConfig loads configuration from --dir (or the working directory) and
// resolves relative paths against that directory.
func loadConfig() (*config.Config, error) {
	dir := configDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, lrerrors.ConfigError(err.Error(), err)
	}
	cfg.Corpus.Path = resolvePath(dir, cfg.Corpus.Path)
	cfg.Corpus.DataDir = resolvePath(dir, cfg.Corpus.DataDir)
	if cfg.Telemetry.Path != "" {
		cfg.Telemetry.Path = resolvePath(dir, cfg.Telemetry.Path)
	}
	return cfg, nil
}

func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// app holds the opened indexes and the pipeline built over them.
type app struct {
	cfg      *config.Config
	metrics  *metrics.Metrics
	guard    *resilience.Guard
	docs     store.DocumentStore
	keyword  store.KeywordIndex
	vectors  store.VectorStore
	embedder embed.Embedder

	retriever    *search.Retriever
	orchestrator *orchestrator.Orchestrator
	telemetry    *telemetry.Store
}

// openApp opens the built indexes and the retriever. Index-missing errors
// carry a suggestion to run 'lawrag index'.
func openApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg, metrics: metrics.New()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if _, statErr := os.Stat(cfg.DocumentsPath()); statErr != nil {
		return nil, lrerrors.New(lrerrors.ErrCodeIndexMissing, "no index found", statErr).
			WithDetail("data_dir", cfg.Corpus.DataDir).
			WithSuggestion("Run 'lawrag index' first")
	}
	dims, err := store.ReadHNSWStoreDimensions(cfg.VectorIndexPath())
	if err != nil {
		return nil, lrerrors.New(lrerrors.ErrCodeIndexMissing, "vector index missing or unreadable", err).
			WithSuggestion("Run 'lawrag index' to rebuild")
	}

	a.guard = resilience.NewGuard(cfg.Resilience, a.metrics.ObserveCollaborator)

	docs, err := store.NewSQLiteDocumentStore(cfg.DocumentsPath())
	if err != nil {
		return nil, lrerrors.New(lrerrors.ErrCodeCorruptIndex, "failed to open document store", err)
	}
	a.docs = docs
	keyword, err := store.NewKeywordIndex(cfg.KeywordIndexBase(), cfg.Search.KeywordBackend, store.DefaultKeywordConfig())
	if err != nil {
		return nil, lrerrors.New(lrerrors.ErrCodeCorruptIndex, "failed to open keyword index", err)
	}
	a.keyword = keyword
	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dims))
	if err != nil {
		return nil, err
	}
	a.vectors = vectors
	if err = vectors.Load(cfg.VectorIndexPath()); err != nil {
		return nil, lrerrors.New(lrerrors.ErrCodeCorruptIndex, "failed to load vector index", err)
	}

	// Queries must be embedded into the space the index was built in.
	embCfg := cfg.Embeddings
	embCfg.Dimensions = dims
	if built, _ := a.docs.GetState(ctx, stateEmbeddingModel); built != "" && built != embCfg.Model && embCfg.Provider != embed.ProviderStatic {
		slog.Warn("embedding_model_changed",
			slog.String("indexed_with", built),
			slog.String("configured", embCfg.Model))
	}
	embedder, err := embed.NewEmbedder(ctx, embCfg, false)
	if err != nil {
		return nil, lrerrors.New(lrerrors.ErrCodeConfigInvalid, "failed to create embedder", err)
	}
	a.embedder = embedder

	var reranker *search.Reranker
	if cfg.Reranker.Provider == "http" {
		scorer := search.NewHTTPScorer(search.HTTPScorerConfig{Endpoint: cfg.Reranker.Endpoint, Model: cfg.Reranker.Model})
		reranker = search.NewReranker(scorer, a.guard, cfg.Timeouts.Rerank)
	}

	a.retriever = search.NewRetriever(
		search.NewQueryClassifier(cfg.Search.ClassifierCacheSize, cfg.Search.MaxQueryLength),
		search.NewKeywordPath(a.keyword),
		search.NewVectorPath(a.vectors, a.embedder, a.guard, cfg.Timeouts.Embedding),
		a.docs,
		reranker,
		search.RetrieverConfig{
			CandidateK:  cfg.Search.CandidateK,
			TopN:        cfg.Search.TopN,
			RRFConstant: cfg.Search.RRFConstant,
		},
	)
	return a, nil
}

// enableAnswering builds the LLM collaborators, web search, the run log and
// the orchestrator on top of the retriever.
func (a *app) enableAnswering() error {
	cfg := a.cfg

	client, err := newLLMClient(cfg.LLM)
	if err != nil {
		return lrerrors.ConfigError("failed to create llm client", err)
	}
	web, err := websearch.New(cfg.WebSearch)
	if err != nil {
		// Web search is optional; the fallback branch runs with no results.
		slog.Warn("web_search_disabled", slog.String("error", err.Error()))
		web = websearch.None{}
	}

	if cfg.Telemetry.Enabled {
		runs, err := telemetry.Open(cfg.TelemetryPath())
		if err != nil {
			slog.Warn("telemetry_disabled", slog.String("error", err.Error()))
		} else {
			a.telemetry = runs
		}
	}

	deps := orchestrator.Dependencies{
		Validator: a.retriever.Classifier(),
		Rewriter: rewrite.New(client, a.guard, rewrite.Config{
			MaxRewrites: cfg.LLM.MaxRewrites,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.Timeouts.Rewrite,
		}),
		Retriever: a.retriever,
		Evaluator: quality.NewGate(quality.NewLLMJudge(client, cfg.LLM.Temperature), a.guard, quality.GateConfig{
			Threshold:    cfg.Quality.Threshold,
			MaxDocuments: cfg.Quality.MaxDocuments,
			Timeout:      cfg.Timeouts.Judge,
		}),
		WebSearch: web,
		Generator: generate.New(client, a.guard, generate.Config{
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.Timeouts.Generation,
		}),
		Guard:            a.guard,
		WebSearchTimeout: cfg.Timeouts.WebSearch,
		Metrics:          a.metrics,
	}
	if a.telemetry != nil {
		deps.Recorder = a.telemetry
	}

	a.orchestrator, err = orchestrator.New(deps)
	return err
}

// Close releases everything that was opened.
func (a *app) Close() error {
	var errs []error
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Close())
	}
	if a.embedder != nil {
		errs = append(errs, a.embedder.Close())
	}
	if a.vectors != nil {
		errs = append(errs, a.vectors.Close())
	}
	if a.keyword != nil {
		errs = append(errs, a.keyword.Close())
	}
	if a.docs != nil {
		errs = append(errs, a.docs.Close())
	}
	return errors.Join(errs...)
}
