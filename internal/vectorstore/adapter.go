package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrIndexNotFound is returned when the named index does not exist.
	ErrIndexNotFound = errors.New("vector index not found")

	// ErrIndexExists is returned when creating an index that already exists.
	ErrIndexExists = errors.New("vector index already exists")

	// ErrInvalidIndexName indicates an index name that is unsafe as a store identifier.
	ErrInvalidIndexName = errors.New("invalid index name")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrLengthMismatch indicates vectors and metadata of different lengths.
	ErrLengthMismatch = errors.New("vectors and metadata length mismatch")

	// ErrMissingID indicates a metadata record without an id.
	ErrMissingID = errors.New("metadata id is required")

	// ErrConnectionFailed indicates the remote store is unreachable.
	ErrConnectionFailed = errors.New("failed to connect to vector store")
)

// Adapter is the vector database capability, keyed by index name.
// Implementations hold one process-wide connection and are safe for
// concurrent use.
type Adapter interface {
	// CreateIndex creates an empty index for vectors of the given width.
	CreateIndex(ctx context.Context, name string, dimension int) error

	// Upsert writes vectors with positionally paired metadata. Each
	// metadata ID becomes the entry's vectorId.
	Upsert(ctx context.Context, name string, vectors [][]float32, metadata []Metadata) error

	// Query returns up to topK matches ordered by descending score.
	Query(ctx context.Context, name string, vector []float32, topK int) ([]Match, error)

	// Delete removes specific vectors by vectorId. Unknown ids are ignored.
	Delete(ctx context.Context, name string, ids []string) error

	// DeleteIndex removes the index and all its vectors. Missing indexes are not an error.
	DeleteIndex(ctx context.Context, name string) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the connection.
	Close() error
}

// Match is one query result.
type Match struct {
	ID string
	// Score is the store-defined similarity; nil when the store returned none.
	Score    *float32
	Metadata Metadata
}

// ScoreOf returns the match score, or fallback when it is missing.
func (m Match) ScoreOf(fallback float32) float32 {
	if m.Score == nil {
		return fallback
	}
	return *m.Score
}

// indexNamePattern allows letters, digits and underscore, 1-64 characters,
// not starting with a digit.
var indexNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// ValidateIndexName checks that name is safe as an external store identifier.
func ValidateIndexName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidIndexName)
	}
	if !indexNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q must be 1-64 letters, digits or underscores and not start with a digit", ErrInvalidIndexName, name)
	}
	return nil
}

func validateUpsert(name string, vectors [][]float32, metadata []Metadata) error {
	if err := ValidateIndexName(name); err != nil {
		return err
	}
	if len(vectors) != len(metadata) {
		return fmt.Errorf("%w: %d vectors, %d metadata", ErrLengthMismatch, len(vectors), len(metadata))
	}
	for i, m := range metadata {
		if m.ID == "" {
			return fmt.Errorf("%w: entry %d", ErrMissingID, i)
		}
	}
	return nil
}
