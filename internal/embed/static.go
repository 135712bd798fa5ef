package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/Aman-CERP/lawrag/internal/store"
)

// StaticModelName identifies vectors produced by StaticEmbedder.
const StaticModelName = "static-hash"

// Weights for vector generation.
const (
	termWeight  = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// StaticEmbedder hashes legal-text terms and character trigrams into a
// fixed-width vector. It needs no network or model, is deterministic, and
// only captures lexical overlap.
type StaticEmbedder struct {
	dims      int
	stopWords map[string]struct{}

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates a static embedder; dims <= 0 uses StaticDimensions.
func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = StaticDimensions
	}
	return &StaticEmbedder{
		dims:      dims,
		stopWords: store.BuildStopWordMap(store.DefaultLegalStopWords),
	}
}

// Embed generates the embedding for a single text.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, e.dims), nil
	}
	return normalizeVector(e.generateVector(trimmed)), nil
}

func (e *StaticEmbedder) generateVector(text string) []float32 {
	vector := make([]float32, e.dims)

	for _, term := range store.Terms(text, e.stopWords) {
		vector[hashToIndex(term, e.dims)] += termWeight
	}
	for _, gram := range runeNgrams(normalizeForNgrams(text), ngramSize) {
		vector[hashToIndex(gram, e.dims)] += ngramWeight
	}
	return vector
}

// normalizeForNgrams keeps letters and digits of the NFKC-folded, lowercased text.
func normalizeForNgrams(text string) []rune {
	var out []rune
	for _, r := range strings.ToLower(norm.NFKC.String(text)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out = append(out, r)
		}
	}
	return out
}

// runeNgrams extracts n-rune sliding windows.
func runeNgrams(runes []rune, n int) []string {
	if len(runes) < n {
		return nil
	}
	out := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		out = append(out, string(runes[i:i+n]))
	}
	return out
}

// hashToIndex maps s to a bucket with FNV-64.
func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

// EmbedBatch embeds each text in order.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		results[i] = vec
	}
	return results, nil
}

// Dimensions returns the embedding width.
func (e *StaticEmbedder) Dimensions() int { return e.dims }

// ModelName returns StaticModelName.
func (e *StaticEmbedder) ModelName() string { return StaticModelName }

// Available is true until Close.
func (e *StaticEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close marks the embedder closed.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
