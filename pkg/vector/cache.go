package vector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/dgraph-io/ristretto"
	"github.com/ferdian/memoir/internal/observability"
)

// CachingEmbedder wraps an Embedder with a ristretto cache keyed on the
// text's sha256, so re-embedding an unchanged observation costs nothing.
type CachingEmbedder struct {
	inner Embedder
	cache *ristretto.Cache
}

// NewCachingEmbedder wraps inner with a cache of roughly maxEntries.
func NewCachingEmbedder(inner Embedder, maxEntries int64) (*CachingEmbedder, error) {
	if maxEntries <= 0 {
		maxEntries = 10000
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &CachingEmbedder{inner: inner, cache: cache}, nil
}

func (c *CachingEmbedder) Dimension() int {
	return c.inner.Dimension()
}

// Embed serves cached vectors where possible and embeds only the misses,
// preserving input order.
func (c *CachingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))

	var (
		missTexts   []string
		missIndexes []int
	)
	for i, text := range texts {
		key := cacheKey(text)
		if cached, ok := c.cache.Get(key); ok {
			if vec, ok := cached.([]float32); ok {
				results[i] = vec
				observability.RecordEmbeddingCache(true)
				continue
			}
		}
		observability.RecordEmbeddingCache(false)
		missTexts = append(missTexts, text)
		missIndexes = append(missIndexes, i)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	embedded, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, vec := range embedded {
		i := missIndexes[j]
		results[i] = vec
		c.cache.Set(cacheKey(texts[i]), vec, 1)
	}
	return results, nil
}

// Close releases the cache's internal goroutines.
func (c *CachingEmbedder) Close() {
	c.cache.Close()
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
