package embeddings

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBatchSize is the number of texts sent per model call.
const DefaultBatchSize = 100

// GeneratorConfig configures a Generator.
type GeneratorConfig struct {
	// Model is used as a metrics label only.
	Model     string
	BatchSize int
	// RateLimit is model calls per second; zero disables limiting.
	RateLimit float64
	Burst     int
}

// Generator batches texts through a Provider and checks vector widths.
// It is safe for concurrent use.
type Generator struct {
	provider  Provider
	model     string
	batchSize int
	limiter   *rate.Limiter
	metrics   *Metrics
	logger    *zap.Logger
}

// NewGenerator wraps provider.
func NewGenerator(provider Provider, cfg GeneratorConfig, logger *zap.Logger) (*Generator, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: provider is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	g := &Generator{
		provider:  provider,
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
		metrics:   NewMetrics(logger),
		logger:    logger,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return g, nil
}

// Dimension returns the provider's vector width.
func (g *Generator) Dimension() int {
	return g.provider.Dimension()
}

// BatchSize returns the configured batch size.
func (g *Generator) BatchSize() int {
	return g.batchSize
}

// EmbedBatch embeds texts in batches and returns one vector per text, in
// order. Any failing batch fails the whole call. When dimension is positive
// every vector must have exactly that length.
func (g *Generator) EmbedBatch(ctx context.Context, texts []string, dimension int) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += g.batchSize {
		end := min(start+g.batchSize, len(texts))
		batch := texts[start:end]

		vectors, err := g.call(ctx, "embed_documents", batch, func(ctx context.Context) ([][]float32, error) {
			return g.provider.EmbedDocuments(ctx, batch)
		})
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end-1, err)
		}
		if err := checkVectors(vectors, len(batch), dimension); err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end-1, err)
		}
		out = append(out, vectors...)
	}

	g.logger.Debug("embedded texts",
		zap.Int("count", len(texts)),
		zap.Int("batch_size", g.batchSize))
	return out, nil
}

// EmbedOne embeds a single search query through the document path, so
// queries and chunks share one embedding space.
func (g *Generator) EmbedOne(ctx context.Context, text string, dimension int) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	vectors, err := g.EmbedBatch(ctx, []string{text}, dimension)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (g *Generator) call(ctx context.Context, op string, batch []string, fn func(context.Context) ([][]float32, error)) (vectors [][]float32, err error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	start := time.Now()
	defer func() {
		g.metrics.RecordCall(ctx, g.model, op, time.Since(start), len(batch), err)
	}()
	return fn(ctx)
}

func checkVectors(vectors [][]float32, want, dimension int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: model returned %d vectors for %d texts", ErrEmbeddingFailed, len(vectors), want)
	}
	if dimension <= 0 {
		return nil
	}
	for i, v := range vectors {
		if len(v) != dimension {
			return fmt.Errorf("%w: vector %d has %d dimensions, index expects %d",
				ErrDimensionMismatch, i, len(v), dimension)
		}
	}
	return nil
}
