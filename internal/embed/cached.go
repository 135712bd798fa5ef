package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"
)

// DefaultEmbeddingCacheSize is the default number of query embeddings kept.
// At 1024 dimensions that is about 4MB.
const DefaultEmbeddingCacheSize = 1000

// CachedEmbedder wraps an Embedder with an LRU keyed by model and the
// NFKC-folded text, so full-width and half-width spellings of a question
// share an entry. Concurrent lookups of the same missing text make one
// embedding call.
type CachedEmbedder struct {
	inner  Embedder
	cache  *lru.Cache[string, []float32]
	flight singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats counts lookups since construction.
type CacheStats struct {
	Hits   int64
	Misses int64
	Size   int
}

// NewCachedEmbedder wraps inner; cacheSize <= 0 uses DefaultEmbeddingCacheSize.
func NewCachedEmbedder(inner Embedder, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultEmbeddingCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedEmbedder{inner: inner, cache: cache}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	folded := norm.NFKC.String(strings.TrimSpace(text))
	sum := sha256.Sum256([]byte(c.inner.ModelName() + "\x00" + folded))
	return hex.EncodeToString(sum[:])
}

// Embed returns the cached vector or computes and caches it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return vec, nil
	}
	c.misses.Add(1)

	v, err, _ := c.flight.Do(key, func() (any, error) {
		vec, err := c.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// EmbedBatch embeds only the texts missing from the cache, in one inner call.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var (
		missIdx  []int
		missText []string
	)
	for i, text := range texts {
		if vec, ok := c.cache.Get(c.cacheKey(text)); ok {
			c.hits.Add(1)
			results[i] = vec
			continue
		}
		c.misses.Add(1)
		missIdx = append(missIdx, i)
		missText = append(missText, text)
	}
	if len(missText) == 0 {
		return results, nil
	}

	vecs, err := c.inner.EmbedBatch(ctx, missText)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		results[idx] = vecs[j]
		c.cache.Add(c.cacheKey(texts[idx]), vecs[j])
	}
	return results, nil
}

func (c *CachedEmbedder) Dimensions() int                    { return c.inner.Dimensions() }
func (c *CachedEmbedder) ModelName() string                  { return c.inner.ModelName() }
func (c *CachedEmbedder) Available(ctx context.Context) bool { return c.inner.Available(ctx) }
func (c *CachedEmbedder) Close() error                       { return c.inner.Close() }

// Stats returns hit and miss counts and the current cache size.
func (c *CachedEmbedder) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load(), Size: c.cache.Len()}
}
