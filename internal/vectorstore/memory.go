package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Adapter using brute-force cosine similarity.
// It is meant for tests and single-process development setups.
type MemoryStore struct {
	mu      sync.RWMutex
	indexes map[string]*memoryIndex
}

type memoryIndex struct {
	dimension int
	order     []string
	entries   map[string]memoryEntry
}

type memoryEntry struct {
	vector   []float32
	metadata Metadata
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{indexes: make(map[string]*memoryIndex)}
}

func (s *MemoryStore) CreateIndex(_ context.Context, name string, dimension int) error {
	if err := ValidateIndexName(name); err != nil {
		return err
	}
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[name]; ok {
		return fmt.Errorf("%w: %s", ErrIndexExists, name)
	}
	s.indexes[name] = &memoryIndex{dimension: dimension, entries: make(map[string]memoryEntry)}
	return nil
}

func (s *MemoryStore) Upsert(_ context.Context, name string, vectors [][]float32, metadata []Metadata) (err error) {
	start := time.Now()
	defer func() { observe("memory", "upsert", start, err) }()
	if err := validateUpsert(name, vectors, metadata); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	for i, v := range vectors {
		if len(v) != idx.dimension {
			return fmt.Errorf("vector %d has %d dimensions, index %s expects %d", i, len(v), name, idx.dimension)
		}
	}
	for i, v := range vectors {
		id := metadata[i].ID
		if _, exists := idx.entries[id]; !exists {
			idx.order = append(idx.order, id)
		}
		idx.entries[id] = memoryEntry{vector: append([]float32(nil), v...), metadata: metadata[i]}
	}
	return nil
}

func (s *MemoryStore) Query(_ context.Context, name string, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("top k must be positive, got %d", topK)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}

	matches := make([]Match, 0, len(idx.entries))
	for _, id := range idx.order {
		e := idx.entries[id]
		score := cosine(vector, e.vector)
		matches = append(matches, Match{ID: id, Score: &score, Metadata: e.metadata})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return *matches[i].Score > *matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *MemoryStore) Delete(_ context.Context, name string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[name]
	if !ok {
		return nil
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
		delete(idx.entries, id)
	}
	kept := idx.order[:0]
	for _, id := range idx.order {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	idx.order = kept
	return nil
}

func (s *MemoryStore) DeleteIndex(_ context.Context, name string) error {
	if err := ValidateIndexName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indexes, name)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// HasIndex reports whether the named index exists.
func (s *MemoryStore) HasIndex(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.indexes[name]
	return ok
}

// IDs returns the vectorIds stored in an index, in insertion order.
func (s *MemoryStore) IDs(name string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[name]
	if !ok {
		return nil
	}
	return append([]string(nil), idx.order...)
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
