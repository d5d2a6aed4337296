package embeddings

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAIConfig configures an OpenAI-compatible embeddings client.
type OpenAIConfig struct {
	// BaseURL defaults to the public OpenAI API when empty.
	BaseURL   string
	Model     string
	APIKey    string
	Dimension int
}

// OpenAIProvider embeds through langchaingo's OpenAI client.
type OpenAIProvider struct {
	embedder  embeddings.Embedder
	dimension int
}

// NewOpenAIProvider creates a provider backed by an OpenAI-compatible API.
func NewOpenAIProvider(config OpenAIConfig) (*OpenAIProvider, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	if config.Model == "" {
		config.Model = DefaultOpenAIModel
	}

	apiKey := config.APIKey
	if apiKey == "" {
		// langchaingo requires a token; self-hosted compatible servers ignore it
		apiKey = "placeholder"
	}

	opts := []openai.Option{
		openai.WithEmbeddingModel(config.Model),
		openai.WithToken(apiKey),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(false))
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return &OpenAIProvider{embedder: embedder, dimension: config.Dimension}, nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	vector, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vector, nil
}

// Dimension returns the configured model width.
func (p *OpenAIProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op; the HTTP client needs no teardown.
func (p *OpenAIProvider) Close() error {
	return nil
}
