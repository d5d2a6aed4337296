package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var chromemTracer = otel.Tracer("vectord.vectorstore.chromem")

// errPrecomputedOnly is returned if chromem ever asks us to embed text.
var errPrecomputedOnly = errors.New("chromem: embeddings must be precomputed")

// ChromemConfig holds configuration for the embedded chromem-go database.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty means in-memory only.
	Path string
	// Compress enables gzip compression of persisted files.
	Compress bool
}

// ChromemStore implements Adapter on chromem-go.
type ChromemStore struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger
	// mu serialises index creation so the exists check and create are atomic.
	mu sync.Mutex
}

// NewChromemStore opens (or creates) a chromem database.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var db *chromem.DB
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		path, err := expandPath(config.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", path, err)
		}
		db, err = chromem.NewPersistentDB(path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
		config.Path = path
	}

	logger.Info("chromem store initialized",
		zap.String("path", config.Path),
		zap.Bool("compress", config.Compress),
		zap.Int("indexes", len(db.ListCollections())))

	return &ChromemStore{db: db, config: config, logger: logger}, nil
}

func expandPath(path string) (string, error) {
	if rest, ok := strings.CutPrefix(path, "~"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, rest), nil
	}
	return path, nil
}

func precomputedOnly(context.Context, string) ([]float32, error) {
	return nil, errPrecomputedOnly
}

func (s *ChromemStore) collection(name string) *chromem.Collection {
	return s.db.GetCollection(name, precomputedOnly)
}

// CreateIndex creates a collection named name.
func (s *ChromemStore) CreateIndex(ctx context.Context, name string, dimension int) error {
	_, span := chromemTracer.Start(ctx, "ChromemStore.CreateIndex")
	defer span.End()
	span.SetAttributes(attribute.String("index", name), attribute.Int("dimension", dimension))

	if err := ValidateIndexName(name); err != nil {
		return err
	}
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collection(name) != nil {
		return fmt.Errorf("%w: %s", ErrIndexExists, name)
	}
	meta := map[string]string{"dimension": strconv.Itoa(dimension)}
	if _, err := s.db.CreateCollection(name, meta, precomputedOnly); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating index %s: %w", name, err)
	}

	span.SetStatus(codes.Ok, "created")
	return nil
}

// Upsert adds or replaces documents with precomputed embeddings.
func (s *ChromemStore) Upsert(ctx context.Context, name string, vectors [][]float32, metadata []Metadata) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()
	span.SetAttributes(attribute.String("index", name), attribute.Int("count", len(vectors)))

	start := time.Now()
	err := s.upsert(ctx, name, vectors, metadata)
	observe("chromem", "upsert", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

func (s *ChromemStore) upsert(ctx context.Context, name string, vectors [][]float32, metadata []Metadata) error {
	if err := validateUpsert(name, vectors, metadata); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}

	col := s.collection(name)
	if col == nil {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}

	docs := make([]chromem.Document, len(vectors))
	for i := range vectors {
		docs[i] = chromem.Document{
			ID:        metadata[i].ID,
			Metadata:  metadata[i].Flatten(),
			Embedding: vectors[i],
			Content:   metadata[i].Text,
		}
	}
	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding documents to %s: %w", name, err)
	}
	return nil
}

// Query returns the topK nearest documents by cosine similarity.
func (s *ChromemStore) Query(ctx context.Context, name string, vector []float32, topK int) ([]Match, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()
	span.SetAttributes(attribute.String("index", name), attribute.Int("top_k", topK))

	start := time.Now()
	matches, err := s.query(ctx, name, vector, topK)
	observe("chromem", "query", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("results_count", len(matches)))
	span.SetStatus(codes.Ok, "success")
	return matches, nil
}

func (s *ChromemStore) query(ctx context.Context, name string, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("top k must be positive, got %d", topK)
	}
	col := s.collection(name)
	if col == nil {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}

	// chromem rejects nResults larger than the collection.
	count := col.Count()
	if count == 0 {
		return []Match{}, nil
	}
	k := min(topK, count)

	results, err := col.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", name, err)
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		score := r.Similarity
		meta := ParseMetadata(r.Metadata)
		if meta.ID == "" {
			meta.ID = r.ID
		}
		if meta.Text == "" {
			meta.Text = r.Content
		}
		matches[i] = Match{ID: r.ID, Score: &score, Metadata: meta}
	}
	return matches, nil
}

// Delete removes documents by id.
func (s *ChromemStore) Delete(ctx context.Context, name string, ids []string) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("index", name), attribute.Int("id_count", len(ids)))

	if len(ids) == 0 {
		return nil
	}
	col := s.collection(name)
	if col == nil {
		return nil
	}

	existing := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := col.GetByID(ctx, id); err == nil {
			existing = append(existing, id)
		}
	}
	if len(existing) == 0 {
		return nil
	}

	start := time.Now()
	err := col.Delete(ctx, nil, nil, existing...)
	observe("chromem", "delete", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting from %s: %w", name, err)
	}
	return nil
}

// DeleteIndex removes the collection.
func (s *ChromemStore) DeleteIndex(ctx context.Context, name string) error {
	_, span := chromemTracer.Start(ctx, "ChromemStore.DeleteIndex")
	defer span.End()
	span.SetAttributes(attribute.String("index", name))

	if err := ValidateIndexName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(name); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting index %s: %w", name, err)
	}
	return nil
}

// Ping always succeeds for the embedded store.
func (s *ChromemStore) Ping(context.Context) error {
	return nil
}

// Close is a no-op; chromem persists on every write.
func (s *ChromemStore) Close() error {
	return nil
}
