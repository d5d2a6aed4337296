package embeddings

import "errors"

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates the model call failed or returned garbage.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrDimensionMismatch indicates vectors whose width differs from the target index.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
