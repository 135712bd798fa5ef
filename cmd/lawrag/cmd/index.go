package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/lawrag/internal/config"
	"github.com/Aman-CERP/lawrag/internal/corpus"
	"github.com/Aman-CERP/lawrag/internal/embed"
	lrerrors "github.com/Aman-CERP/lawrag/internal/errors"
	"github.com/Aman-CERP/lawrag/internal/output"
	"github.com/Aman-CERP/lawrag/internal/store"
)

// indexBatchSize is how many documents are embedded and indexed per step.
const indexBatchSize = 64

func newIndexCmd() *cobra.Command {
	var corpusPath string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the keyword and vector indexes from the statute corpus",
		Long: `Build the document store, keyword index and vector index from the
line-delimited statute file. Existing indexes are replaced.

Examples:
  lawrag index
  lawrag index --corpus data/chinese_law.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if corpusPath != "" {
				cfg.Corpus.Path = corpusPath
			}
			return runIndex(cmd.Context(), cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&corpusPath, "corpus", "", "Corpus file (overrides corpus.path)")
	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	out := output.New(cmd.OutOrStdout())
	start := time.Now()

	lock, err := store.NewIndexLock(cfg.Corpus.DataDir)
	if err != nil {
		return lrerrors.IOError("failed to prepare data directory", err)
	}
	locked, err := lock.TryLock()
	if err != nil {
		return err
	}
	if !locked {
		return lrerrors.New(lrerrors.ErrCodeIndexLocked, "another index build is running", nil).
			WithDetail("lock", lock.Path())
	}
	defer func() { _ = lock.Unlock() }()

	out.Statusf("📖", "Loading corpus %s", cfg.Corpus.Path)
	docs, err := corpus.Load(ctx, cfg.Corpus.Path)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return lrerrors.New(lrerrors.ErrCodeCorpusEmpty, "corpus has no provisions", nil).
			WithDetail("path", cfg.Corpus.Path)
	}

	embedder, err := embed.NewEmbedder(ctx, cfg.Embeddings, true)
	if err != nil {
		return lrerrors.New(lrerrors.ErrCodeEmbeddingUnavailable, "embedding provider unavailable", err).
			WithSuggestion("Start the embedding service or set embeddings.provider: static")
	}
	defer func() { _ = embedder.Close() }()

	// The corpus is rebuilt from scratch; stale artifacts would mix ids.
	for _, p := range []string{
		cfg.DocumentsPath(),
		store.KeywordIndexPath(cfg.KeywordIndexBase(), cfg.Search.KeywordBackend),
		cfg.VectorIndexPath(),
	} {
		if err := os.RemoveAll(p); err != nil {
			return lrerrors.IOError("failed to remove old index", err).WithDetail("path", p)
		}
	}

	docStore, err := store.NewSQLiteDocumentStore(cfg.DocumentsPath())
	if err != nil {
		return lrerrors.New(lrerrors.ErrCodeIndexFailed, "failed to create document store", err)
	}
	defer func() { _ = docStore.Close() }()

	keyword, err := store.NewKeywordIndex(cfg.KeywordIndexBase(), cfg.Search.KeywordBackend, store.DefaultKeywordConfig())
	if err != nil {
		return lrerrors.New(lrerrors.ErrCodeIndexFailed, "failed to create keyword index", err)
	}
	defer func() { _ = keyword.Close() }()

	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(embedder.Dimensions()))
	if err != nil {
		return lrerrors.New(lrerrors.ErrCodeIndexFailed, "failed to create vector index", err)
	}
	defer func() { _ = vectors.Close() }()

	if err := docStore.Put(ctx, docs); err != nil {
		return lrerrors.New(lrerrors.ErrCodeIndexFailed, "failed to store documents", err)
	}

	retryCfg := lrerrors.DefaultRetryConfig()
	for i := 0; i < len(docs); i += indexBatchSize {
		batch := docs[i:min(i+indexBatchSize, len(docs))]

		if err := keyword.Index(ctx, batch); err != nil {
			return lrerrors.New(lrerrors.ErrCodeIndexFailed, "failed to index keywords", err)
		}

		texts := make([]string, len(batch))
		ids := make([]uint64, len(batch))
		for j, d := range batch {
			texts[j] = d.Text
			ids[j] = d.ID
		}
		vecs, err := lrerrors.RetryWithResult(ctx, retryCfg, func() ([][]float32, error) {
			return embedder.EmbedBatch(ctx, texts)
		})
		if err != nil {
			return lrerrors.New(lrerrors.ErrCodeEmbeddingUnavailable, "failed to embed corpus", err).
				WithDetail("first_line", strconv.FormatUint(ids[0], 10))
		}
		if err := vectors.Add(ctx, ids, vecs); err != nil {
			return lrerrors.New(lrerrors.ErrCodeIndexFailed, "failed to add vectors", err)
		}

		out.Progress(i+len(batch), len(docs), "embedding")
	}

	if err := vectors.Save(cfg.VectorIndexPath()); err != nil {
		return lrerrors.New(lrerrors.ErrCodeIndexFailed, "failed to save vector index", err)
	}

	state := map[string]string{
		stateEmbeddingModel: embedder.ModelName(),
		stateDimensions:     strconv.Itoa(embedder.Dimensions()),
		stateCorpusPath:     cfg.Corpus.Path,
		stateDocumentCount:  strconv.Itoa(len(docs)),
		stateIndexedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range state {
		if err := docStore.SetState(ctx, k, v); err != nil {
			return lrerrors.New(lrerrors.ErrCodeIndexFailed, "failed to record index state", err)
		}
	}

	elapsed := time.Since(start)
	slog.Info("index_completed",
		slog.Int("documents", len(docs)),
		slog.String("embedding_model", embedder.ModelName()),
		slog.Int("dimensions", embedder.Dimensions()),
		slog.Duration("duration", elapsed))
	out.Successf("Indexed %d provisions in %s (%s, %d dims)", len(docs), elapsed.Round(time.Millisecond), embedder.ModelName(), embedder.Dimensions())
	return nil
}

// indexSummary describes a built index for status output.
func indexSummary(ctx context.Context, docs store.DocumentStore) string {
	count, _ := docs.GetState(ctx, stateDocumentCount)
	model, _ := docs.GetState(ctx, stateEmbeddingModel)
	at, _ := docs.GetState(ctx, stateIndexedAt)
	return fmt.Sprintf("%s provisions, %s, built %s", count, model, at)
}
