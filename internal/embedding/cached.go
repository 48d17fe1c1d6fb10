package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/docrag/internal/cache"
)

// QueryCache is the subset of cache.Cache used for query embeddings.
type QueryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CachedEmbedder memoizes single-text embeddings, which is how queries are
// embedded at retrieval time. Batch calls go straight to the inner embedder.
// Cache failures are logged and never fail the call.
type CachedEmbedder struct {
	inner Embedder
	cache QueryCache
	model string
	ttl   time.Duration
}

func NewCachedEmbedder(inner Embedder, c QueryCache, model string, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: c, model: model, ttl: ttl}
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.Embed(ctx, texts)
}

func (c *CachedEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)

	var vec []float32
	err := c.cache.Get(ctx, key, &vec)
	if err == nil && len(vec) > 0 {
		return vec, nil
	}
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		slog.Warn("query embedding cache read failed", "error", err)
	}

	vec, err = c.inner.EmbedSingle(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, vec, c.ttl); err != nil {
		slog.Warn("query embedding cache write failed", "error", err)
	}
	return vec, nil
}

func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + c.model + ":" + hex.EncodeToString(sum[:])
}
