package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"copilot-orchestrator/internal/domain"
)

// CachedEncoder wraps a VectorEncoder with an in-process LRU. Repeated
// queries over the same text (re-runs, deep-search refinements) skip the
// embeddings call. Keys include the encoder version so a model change
// never serves stale vectors.
type CachedEncoder struct {
	inner domain.VectorEncoder
	cache *lru.Cache[string, []float32]
}

func NewCachedEncoder(inner domain.VectorEncoder, entries int) (*CachedEncoder, error) {
	if entries <= 0 {
		entries = 512
	}
	cache, err := lru.New[string, []float32](entries)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	return &CachedEncoder{inner: inner, cache: cache}, nil
}

func (c *CachedEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		if vec, ok := c.cache.Get(c.key(text)); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	encoded, err := c.inner.Encode(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(encoded) != len(missing) {
		return nil, fmt.Errorf("embedding cache: got %d vectors for %d texts", len(encoded), len(missing))
	}

	for i, vec := range encoded {
		idx := missingIdx[i]
		out[idx] = vec
		c.cache.Add(c.key(texts[idx]), vec)
	}
	return out, nil
}

func (c *CachedEncoder) Version() string {
	return c.inner.Version()
}

func (c *CachedEncoder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.inner.Version() + ":" + hex.EncodeToString(sum[:])
}

var _ domain.VectorEncoder = (*CachedEncoder)(nil)
