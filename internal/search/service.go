package search

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/vectord/internal/apperr"
	"github.com/fyrsmithlabs/vectord/internal/embeddings"
	"github.com/fyrsmithlabs/vectord/internal/metadata"
	"github.com/fyrsmithlabs/vectord/internal/vectorstore"
)

var tracer = otel.Tracer("vectord.search")

// Caller-facing messages.
const (
	MsgIndexNotFound   = "Index not found or access denied"
	MsgProjectNotFound = "Project not found or access denied"
	MsgQueryRequired   = "Query is required"
	MsgTopK            = "topK is out of range"
	MsgMinScore        = "minScore must be between 0 and 1"
	MsgDimension       = "Embedding dimension does not match the index dimension"
)

// Defaults applied when Config leaves a field unset.
const (
	DefaultTopK        = 5
	DefaultProjectTopK = 10
	DefaultMaxTopK     = 20
	DefaultMaxProjTopK = 50
)

// MetadataStore is the subset of the metadata store used by retrieval.
type MetadataStore interface {
	GetIndex(ctx context.Context, owner, id string) (metadata.Index, error)
	GetProject(ctx context.Context, owner, id string) (metadata.ProjectDetail, error)
	ChunksByVectorIDs(ctx context.Context, indexID string, vectorIDs []string) (map[string]metadata.ChunkRef, error)
}

// Embedder embeds a single query.
type Embedder interface {
	EmbedOne(ctx context.Context, text string, dimension int) ([]float32, error)
}

// Config bounds result counts.
type Config struct {
	DefaultTopK    int `koanf:"default_top_k"`
	ProjectTopK    int `koanf:"project_top_k"`
	MaxTopK        int `koanf:"max_top_k"`
	MaxProjectTopK int `koanf:"max_project_top_k"`
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if c.DefaultTopK <= 0 {
		c.DefaultTopK = DefaultTopK
	}
	if c.ProjectTopK <= 0 {
		c.ProjectTopK = DefaultProjectTopK
	}
	if c.MaxTopK <= 0 {
		c.MaxTopK = DefaultMaxTopK
	}
	if c.MaxProjectTopK <= 0 {
		c.MaxProjectTopK = DefaultMaxProjTopK
	}
}

// Service answers index and project searches. It is safe for concurrent use.
type Service struct {
	cfg      Config
	md       MetadataStore
	vectors  vectorstore.Adapter
	embedder Embedder
	logger   *zap.Logger
}

// NewService builds a Service. A nil logger discards output.
func NewService(cfg Config, md MetadataStore, vectors vectorstore.Adapter, embedder Embedder, logger *zap.Logger) (*Service, error) {
	if md == nil || vectors == nil || embedder == nil {
		return nil, errors.New("search: metadata, vectors and embedder are required")
	}
	cfg.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cfg: cfg, md: md, vectors: vectors, embedder: embedder, logger: logger}, nil
}

// IndexRef identifies the index a result came from.
type IndexRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Result is one enriched hit.
type Result struct {
	// Score is nil when the store returned none.
	Score    *float32          `json:"score"`
	Chunk    metadata.ChunkRef `json:"chunk"`
	Index    IndexRef          `json:"index"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IndexRequest is a single-index search. Zero TopK means the default.
type IndexRequest struct {
	OwnerUserID string
	IndexID     string
	Query       string
	TopK        int
	MinScore    float64
}

// IndexResponse holds single-index results in store order.
type IndexResponse struct {
	Results      []Result `json:"results"`
	Query        string   `json:"query"`
	TotalResults int      `json:"totalResults"`
}

// ProjectRequest is a cross-index search. Nil IndexIDs means every index
// of the project; otherwise ids outside the project are ignored, so an
// empty list searches nothing.
type ProjectRequest struct {
	OwnerUserID string
	ProjectID   string
	Query       string
	TopK        int
	MinScore    float64
	IndexIDs    []string
}

// ProjectResponse holds merged results in descending score order.
type ProjectResponse struct {
	Results         []Result   `json:"results"`
	Query           string     `json:"query"`
	TotalResults    int        `json:"totalResults"`
	SearchedIndexes []IndexRef `json:"searchedIndexes"`
}

// hit is a raw match tagged with its index.
type hit struct {
	match vectorstore.Match
	index metadata.Index
}

// SearchIndex queries one index.
func (s *Service) SearchIndex(ctx context.Context, req IndexRequest) (resp IndexResponse, err error) {
	ctx, finish := s.begin(ctx, "index", attribute.String("index.id", req.IndexID))
	defer func() { finish(err) }()

	const op = "search.index"
	topK, err := s.validate(op, req.Query, req.TopK, s.cfg.DefaultTopK, s.cfg.MaxTopK, req.MinScore)
	if err != nil {
		return IndexResponse{}, err
	}

	idx, err := s.md.GetIndex(ctx, req.OwnerUserID, req.IndexID)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			return IndexResponse{}, apperr.Authorization(op, MsgIndexNotFound)
		}
		return IndexResponse{}, apperr.Dependency(op, apperr.DepMetadata, err)
	}

	vector, err := s.embedder.EmbedOne(ctx, req.Query, idx.Dimension)
	if err != nil {
		if errors.Is(err, embeddings.ErrDimensionMismatch) {
			return IndexResponse{}, apperr.Validation(op, MsgDimension, err)
		}
		return IndexResponse{}, apperr.Dependency(op, apperr.DepEmbedding, err)
	}

	matches, err := s.vectors.Query(ctx, idx.Name, vector, topK)
	if err != nil {
		return IndexResponse{}, apperr.Dependency(op, apperr.DepVectorStore, err)
	}

	hits := make([]hit, 0, len(matches))
	for _, m := range matches {
		if passes(m, req.MinScore) {
			hits = append(hits, hit{match: m, index: idx})
		}
	}

	results, err := s.enrich(ctx, hits)
	if err != nil {
		return IndexResponse{}, apperr.Dependency(op, apperr.DepMetadata, err)
	}
	return IndexResponse{Results: results, Query: req.Query, TotalResults: len(results)}, nil
}

// SearchProject queries every target index of a project and merges the hits
// into one global ranking.
func (s *Service) SearchProject(ctx context.Context, req ProjectRequest) (resp ProjectResponse, err error) {
	ctx, finish := s.begin(ctx, "project", attribute.String("project.id", req.ProjectID))
	defer func() { finish(err) }()

	const op = "search.project"
	topK, err := s.validate(op, req.Query, req.TopK, s.cfg.ProjectTopK, s.cfg.MaxProjectTopK, req.MinScore)
	if err != nil {
		return ProjectResponse{}, err
	}

	project, err := s.md.GetProject(ctx, req.OwnerUserID, req.ProjectID)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			return ProjectResponse{}, apperr.Authorization(op, MsgProjectNotFound)
		}
		return ProjectResponse{}, apperr.Dependency(op, apperr.DepMetadata, err)
	}

	targets := targetIndexes(project.Indexes, req.IndexIDs)
	resp = ProjectResponse{
		Results:         []Result{},
		Query:           req.Query,
		SearchedIndexes: make([]IndexRef, len(targets)),
	}
	for i, idx := range targets {
		resp.SearchedIndexes[i] = IndexRef{ID: idx.ID, Name: idx.Name}
	}
	if len(targets) == 0 {
		return resp, nil
	}

	// Indexes may differ in width, so the shared vector is checked per index.
	vector, err := s.embedder.EmbedOne(ctx, req.Query, 0)
	if err != nil {
		return ProjectResponse{}, apperr.Dependency(op, apperr.DepEmbedding, err)
	}

	perIndex := make([][]hit, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, idx := range targets {
		g.Go(func() error {
			perIndex[i] = s.queryIndex(gctx, idx, vector, topK)
			return nil
		})
	}
	_ = g.Wait()

	var merged []hit
	for _, hits := range perIndex {
		merged = append(merged, hits...)
	}
	merged = rank(merged, req.MinScore, topK)

	results, err := s.enrich(ctx, merged)
	if err != nil {
		return ProjectResponse{}, apperr.Dependency(op, apperr.DepMetadata, err)
	}
	resp.Results = results
	resp.TotalResults = len(results)
	return resp, nil
}

// queryIndex runs one leg of a project search. Failures yield no hits.
func (s *Service) queryIndex(ctx context.Context, idx metadata.Index, vector []float32, topK int) []hit {
	logger := s.logger.With(zap.String("index_id", idx.ID), zap.String("index_name", idx.Name))
	if idx.Dimension > 0 && idx.Dimension != len(vector) {
		IndexFailuresTotal.Inc()
		logger.Warn("skipping index with mismatched dimension",
			zap.Int("index_dimension", idx.Dimension),
			zap.Int("query_dimension", len(vector)))
		return nil
	}
	matches, err := s.vectors.Query(ctx, idx.Name, vector, topK)
	if err != nil {
		IndexFailuresTotal.Inc()
		logger.Warn("index query failed, treating as empty", zap.Error(err))
		return nil
	}
	hits := make([]hit, len(matches))
	for i, m := range matches {
		hits[i] = hit{match: m, index: idx}
	}
	return hits
}

// rank sorts hits by descending score with missing scores last, keeps the
// ones passing minScore and caps the list at topK.
func rank(hits []hit, minScore float64, topK int) []hit {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i].match.Score, hits[j].match.Score
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a > *b
		}
	})
	out := hits[:0]
	for _, h := range hits {
		if passes(h.match, minScore) {
			out = append(out, h)
		}
	}
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

// passes reports whether m survives the minScore filter. Unscored matches always pass.
func passes(m vectorstore.Match, minScore float64) bool {
	return m.Score == nil || float64(*m.Score) >= minScore
}

// enrich joins hits to chunk rows, one lookup per index, preserving order.
// Hits with no row are orphans and are dropped.
func (s *Service) enrich(ctx context.Context, hits []hit) ([]Result, error) {
	byIndex := make(map[string][]string)
	for _, h := range hits {
		byIndex[h.index.ID] = append(byIndex[h.index.ID], h.match.ID)
	}
	refs := make(map[string]map[string]metadata.ChunkRef, len(byIndex))
	for indexID, ids := range byIndex {
		found, err := s.md.ChunksByVectorIDs(ctx, indexID, ids)
		if err != nil {
			return nil, err
		}
		refs[indexID] = found
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		ref, ok := refs[h.index.ID][h.match.ID]
		if !ok {
			OrphansTotal.Inc()
			s.logger.Warn("dropping vector without chunk row",
				zap.String("kind", string(apperr.KindConsistency)),
				zap.String("index_id", h.index.ID),
				zap.String("vector_id", h.match.ID))
			continue
		}
		meta := ref.Metadata
		if len(meta) == 0 {
			meta = h.match.Metadata.Custom
		}
		results = append(results, Result{
			Score:    h.match.Score,
			Chunk:    ref,
			Index:    IndexRef{ID: h.index.ID, Name: h.index.Name},
			Metadata: meta,
		})
	}
	return results, nil
}

// validate checks the query and bounds, returning the effective topK.
func (s *Service) validate(op, query string, topK, def, maxTopK int, minScore float64) (int, error) {
	if strings.TrimSpace(query) == "" {
		return 0, apperr.Validation(op, MsgQueryRequired, nil)
	}
	if topK == 0 {
		topK = def
	}
	if topK < 1 || topK > maxTopK {
		return 0, apperr.Validation(op, MsgTopK, nil)
	}
	if minScore < 0 || minScore > 1 {
		return 0, apperr.Validation(op, MsgMinScore, nil)
	}
	return topK, nil
}

// begin starts a span and returns a finisher recording metrics.
func (s *Service) begin(ctx context.Context, scope string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "search."+scope, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		QueryDuration.WithLabelValues(scope).Observe(time.Since(start).Seconds())
		result := "success"
		if err != nil {
			result = string(apperr.KindOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, apperr.MessageOf(err))
		}
		QueriesTotal.WithLabelValues(scope, result).Inc()
		span.End()
	}
}

// targetIndexes intersects the requested ids with the project's indexes,
// keeping project order. A nil request means all indexes; an empty one
// selects none.
func targetIndexes(indexes []metadata.Index, requested []string) []metadata.Index {
	if requested == nil {
		return indexes
	}
	want := make(map[string]bool, len(requested))
	for _, id := range requested {
		want[id] = true
	}
	var out []metadata.Index
	for _, idx := range indexes {
		if want[idx.ID] {
			out = append(out, idx)
		}
	}
	return out
}
