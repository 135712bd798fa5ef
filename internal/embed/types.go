// Package embed turns text into dense vectors for the vector index.
// Providers are Ollama, any OpenAI-compatible API, and a deterministic
// hashed embedder that needs no service.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// DefaultBatchSize is the number of texts sent per embedding request.
	DefaultBatchSize = 32

	// MaxBatchSize prevents oversized requests.
	MaxBatchSize = 256

	// DefaultRequestTimeout bounds a single HTTP request when the caller's
	// context carries no deadline.
	DefaultRequestTimeout = 60 * time.Second

	// StaticDimensions is the default width of the static embedder.
	StaticDimensions = 256
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding width.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the provider can serve requests.
	Available(ctx context.Context) bool

	Close() error
}

// normalizeVector returns v scaled to unit length. A zero vector is returned as-is.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}

// batches splits n items into [start,end) ranges of at most size.
func batches(n, size int) [][2]int {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if size > MaxBatchSize {
		size = MaxBatchSize
	}
	var out [][2]int
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}
