package embedding

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/golf-qa/backend/internal/metrics"
	"github.com/golf-qa/backend/pkg/logger"
	"github.com/golf-qa/backend/pkg/utils"
)

// Cache stores vectors by key. The redis client satisfies it.
type Cache interface {
	GetEmbedding(ctx context.Context, key string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, key string, embedding []float32, ttl time.Duration) error
}

// CachedProvider consults the cache before calling the wrapped provider. Cache errors are
// logged and treated as misses.
type CachedProvider struct {
	inner Provider
	cache Cache
	ttl   time.Duration
}

func NewCachedProvider(inner Provider, cache Cache, ttl time.Duration) *CachedProvider {
	return &CachedProvider{inner: inner, cache: cache, ttl: ttl}
}

func (p *CachedProvider) Name() string {
	return p.inner.Name()
}

func (p *CachedProvider) Dimension() int {
	return p.inner.Dimension()
}

func (p *CachedProvider) key(text string) string {
	return p.inner.Name() + ":" + utils.ContentHash(text)
}

func (p *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (p *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		vec, ok, err := p.cache.GetEmbedding(ctx, p.key(text))
		if err != nil {
			logger.Warn("Embedding cache lookup failed", zap.Error(err))
		}
		if ok {
			metrics.CacheHits.WithLabelValues("embedding").Inc()
			out[i] = vec
			continue
		}
		metrics.CacheMisses.WithLabelValues("embedding").Inc()
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := p.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, vec := range fresh {
		out[missIdx[j]] = vec
		if err := p.cache.SetEmbedding(ctx, p.key(missTexts[j]), vec, p.ttl); err != nil {
			logger.Warn("Embedding cache store failed", zap.Error(err))
		}
	}

	return out, nil
}
