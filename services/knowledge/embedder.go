package knowledge

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// EmbedderConfig configures the OpenAI-compatible embedding endpoint.
type EmbedderConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	CacheSize int
}

// LangchainEmbedder embeds questions through langchaingo and keeps recent
// query vectors in an LRU cache. The cache is safe for concurrent use.
type LangchainEmbedder struct {
	impl  embeddings.Embedder
	cache *lru.Cache[string, []float32]
}

// NewLangchainEmbedder builds an embedder backed by an OpenAI-compatible
// embeddings API.
func NewLangchainEmbedder(cfg EmbedderConfig) (*LangchainEmbedder, error) {
	if cfg.Model == "" {
		return nil, errors.New("embedder model is required")
	}
	opts := []openai.Option{
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
	}
	impl, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("failed to construct embedder: %w", err)
	}
	return WrapEmbedder(impl, cfg.CacheSize)
}

// WrapEmbedder wraps an existing langchaingo embedder. A cacheSize of zero
// disables caching.
func WrapEmbedder(impl embeddings.Embedder, cacheSize int) (*LangchainEmbedder, error) {
	if impl == nil {
		return nil, errors.New("embedder implementation is required")
	}
	e := &LangchainEmbedder{impl: impl}
	if cacheSize > 0 {
		cache, err := lru.New[string, []float32](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("init embedding cache: %w", err)
		}
		e.cache = cache
	}
	return e, nil
}

// Embed returns the query vector for text.
func (e *LangchainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.cache != nil {
		if v, ok := e.cache.Get(text); ok {
			return cloneVector(v), nil
		}
	}
	vector, err := e.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vector) == 0 {
		return nil, errors.New("embed query: empty vector")
	}
	if e.cache != nil {
		e.cache.Add(text, cloneVector(vector))
	}
	return vector, nil
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
