package embeddings

import (
	"context"
	"fmt"
	"strings"
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderTEI       = "tei"
	ProviderFastEmbed = "fastembed"
	// ProviderFake is the deterministic in-process provider.
	ProviderFake = "fake"
)

// Provider is one embedding model backend.
type Provider interface {
	// EmbedDocuments returns one vector per text, in input order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the width of vectors produced by the model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is "openai", "tei" or "fastembed".
	Provider string
	Model    string
	// BaseURL is the API root for openai and tei.
	BaseURL string
	APIKey  string
	// Dimension overrides the detected model width when non-zero.
	Dimension int
	// CacheDir is the model cache directory (fastembed only).
	CacheDir string
}

// detectDimensionFromModel returns the embedding dimension for a model name.
func detectDimensionFromModel(model string) int {
	if dim, ok := fastEmbedModelDimension(model); ok {
		return dim
	}
	switch {
	case strings.Contains(model, "text-embedding-3-large"):
		return 3072
	case strings.Contains(model, "text-embedding"):
		return 1536
	case strings.Contains(model, "large"):
		return 1024
	case strings.Contains(model, "base"):
		return 768
	case strings.Contains(model, "small"), strings.Contains(model, "mini"):
		return 384
	default:
		return 1536
	}
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	dim := cfg.Dimension
	if dim == 0 {
		dim = detectDimensionFromModel(cfg.Model)
	}

	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case ProviderOpenAI, "":
		p, err = NewOpenAIProvider(OpenAIConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			Dimension: dim,
		})
	case ProviderTEI:
		p, err = NewTEIProvider(TEIConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			Dimension: dim,
		})
	case ProviderFastEmbed:
		p, err = NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	case ProviderFake:
		p = NewFakeProvider(dim)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
