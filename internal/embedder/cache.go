package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of vectors a Cached embedder keeps.
const DefaultCacheSize = 1024

// Cached wraps an Embedder with an LRU cache keyed by content hash. It is
// used for query text, which repeats across chat turns and MCP calls.
type Cached struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// NewCached wraps inner with a cache of size entries.
func NewCached(inner Embedder, size int) *Cached {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		cache, _ = lru.New[string, []float32](DefaultCacheSize)
	}
	return &Cached{inner: inner, cache: cache}
}

func (c *Cached) Dimension() int { return c.inner.Dimension() }
func (c *Cached) Model() string  { return c.inner.Model() }

// Len returns the number of cached vectors.
func (c *Cached) Len() int { return c.cache.Len() }

func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if v, ok := c.cache.Get(ComputeHash(text)); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		c.cache.Add(ComputeHash(texts[i]), vecs[j])
	}
	return out, nil
}

// ComputeHash returns the SHA-256 hex digest of text.
func ComputeHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
