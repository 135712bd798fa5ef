// Package store provides the persistence layer for the legal corpus:
// the document store (SQLite), keyword indexes (Bleve, SQLite FTS5) and the
// vector index (HNSW). Indexes are written once by the index build and are
// read-only while answering queries.
package store

import (
	"context"
	"fmt"
)

// Metadata keys attached to every corpus document.
const (
	MetaLaw     = "law"
	MetaArticle = "article"
	MetaLine    = "line"
)

// State keys recorded by the index build.
const (
	StateKeyEmbeddingModel     = "embedding_model"
	StateKeyEmbeddingDimension = "embedding_dimension"
	StateKeyCorpusPath         = "corpus_path"
	StateKeyBuiltAt            = "built_at"
)

// Document is one immutable corpus unit.
type Document struct {
	ID       uint64
	Text     string
	Metadata map[string]string
}

// Law returns the statute name, if known.
func (d *Document) Law() string { return d.Metadata[MetaLaw] }

// Article returns the article label (e.g. 第一千零七十九条), if known.
func (d *Document) Article() string { return d.Metadata[MetaArticle] }

// KeywordResult is a single keyword index hit.
type KeywordResult struct {
	DocID        uint64
	Score        float64
	MatchedTerms []string
}

// VectorResult is a single nearest-neighbor hit.
type VectorResult struct {
	ID       uint64
	Distance float32
	Score    float32 // similarity derived from Distance, higher is closer
}

// KeywordIndex is a tokenized inverted index over document text.
type KeywordIndex interface {
	// Index adds or replaces documents.
	Index(ctx context.Context, docs []*Document) error

	// Search returns at most limit hits, best first.
	Search(ctx context.Context, query string, limit int) ([]*KeywordResult, error)

	// Count returns the number of indexed documents.
	Count() int

	Close() error
}

// VectorStore is an approximate nearest-neighbor index keyed by document id.
type VectorStore interface {
	Add(ctx context.Context, ids []uint64, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Count() int
	Save(path string) error
	Load(path string) error
	Close() error
}

// DocumentStore resolves document ids to text and metadata.
type DocumentStore interface {
	Put(ctx context.Context, docs []*Document) error
	Get(ctx context.Context, ids []uint64) (map[uint64]*Document, error)
	Count(ctx context.Context) (int, error)
	SetState(ctx context.Context, key, value string) error
	GetState(ctx context.Context, key string) (string, error)
	Close() error
}

// KeywordConfig configures the keyword index.
type KeywordConfig struct {
	StopWords []string
}

// DefaultKeywordConfig returns the default keyword configuration.
func DefaultKeywordConfig() KeywordConfig {
	return KeywordConfig{StopWords: DefaultLegalStopWords}
}

// DefaultLegalStopWords are function words that carry no retrieval signal.
// Han bigrams rarely collide with them; they mostly catch single-character
// runs and English filler.
var DefaultLegalStopWords = []string{
	"的", "了", "和", "与", "或", "及", "在", "是", "为", "对", "由", "其", "之", "而", "等", "被", "把", "吗", "呢",
	"the", "a", "an", "of", "and", "or", "to", "in", "is", "are", "what", "how",
}

// VectorStoreConfig configures the HNSW vector store.
type VectorStoreConfig struct {
	Dimensions int
	Metric     string // "cos" or "l2"
	M          int
	EfSearch   int
}

// DefaultVectorStoreConfig returns cosine HNSW settings for the given dimensions.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   64,
	}
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
