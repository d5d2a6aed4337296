package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
)

// FakeProvider is a deterministic in-process Provider for tests and local
// development. Equal texts always map to equal unit vectors.
type FakeProvider struct {
	mu        sync.Mutex
	dimension int
	calls     int
	queries   int
	batches   [][]string
	// Err, when set, is returned from every call.
	Err error
	// FailOnCall fails only the n-th call (1-based) when non-zero.
	FailOnCall int
	// OutputDimension overrides the width of returned vectors.
	OutputDimension int
}

// NewFakeProvider creates a fake provider of the given width.
func NewFakeProvider(dimension int) *FakeProvider {
	return &FakeProvider{dimension: dimension}
}

func (f *FakeProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := f.record(texts); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

func (f *FakeProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.queries++
	f.mu.Unlock()
	if err := f.record([]string{text}); err != nil {
		return nil, err
	}
	return f.vector(text), nil
}

func (f *FakeProvider) Dimension() int { return f.dimension }

func (f *FakeProvider) Close() error { return nil }

// Calls returns the number of model calls made.
func (f *FakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// QueryCalls returns how many calls went through EmbedQuery.
func (f *FakeProvider) QueryCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

// Batches returns the texts of every call, in call order.
func (f *FakeProvider) Batches() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.batches...)
}

func (f *FakeProvider) record(texts []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.batches = append(f.batches, append([]string(nil), texts...))
	if f.Err != nil {
		return f.Err
	}
	if f.FailOnCall != 0 && f.calls == f.FailOnCall {
		return ErrEmbeddingFailed
	}
	return nil
}

func (f *FakeProvider) vector(text string) []float32 {
	dim := f.dimension
	if f.OutputDimension > 0 {
		dim = f.OutputDimension
	}
	v := make([]float32, dim)
	var norm float64
	for i := range v {
		h := fnv.New64a()
		_, _ = h.Write([]byte(text))
		_, _ = h.Write([]byte{byte(i), byte(i >> 8)})
		x := float64(h.Sum64()%2000)/1000 - 1
		v[i] = float32(x)
		norm += x * x
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}
