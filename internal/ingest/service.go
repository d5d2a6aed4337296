package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/apperr"
	"github.com/fyrsmithlabs/vectord/internal/chunker"
	"github.com/fyrsmithlabs/vectord/internal/embeddings"
	"github.com/fyrsmithlabs/vectord/internal/events"
	"github.com/fyrsmithlabs/vectord/internal/extraction"
	"github.com/fyrsmithlabs/vectord/internal/journal"
	"github.com/fyrsmithlabs/vectord/internal/metadata"
	"github.com/fyrsmithlabs/vectord/internal/secrets"
	"github.com/fyrsmithlabs/vectord/internal/vectorstore"
)

var tracer = otel.Tracer("vectord.ingest")

// Caller-facing messages.
const (
	MsgIndexNotFound   = "Index not found or access denied"
	MsgNoText          = "No text found in the document"
	MsgContentRequired = "Content is required"
	MsgChunkingFailed  = "Failed to create text chunks"
	MsgFileTooLarge    = "File exceeds the maximum upload size"
	MsgUnsupported     = "Unsupported file type"
	MsgCorrupt         = "The document could not be read"
	MsgDimension       = "Embedding dimension does not match the index dimension"
	MsgFileNameMissing = "File name is required"
)

// DefaultMaxUploadBytes bounds uploaded documents when Config leaves it unset.
const DefaultMaxUploadBytes = 32 << 20

// MetadataStore is the subset of the metadata store used by ingestion.
type MetadataStore interface {
	GetIndex(ctx context.Context, owner, id string) (metadata.Index, error)
	CreateFile(ctx context.Context, f *metadata.File, chunks []metadata.Chunk) error
}

// Embedder produces vectors of a required width.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string, dimension int) ([][]float32, error)
}

// Journal records ingestion intents.
type Journal interface {
	Begin(ctx context.Context, in journal.Intent) (journal.Intent, error)
	Complete(ctx context.Context, id string) error
	RecordFailure(ctx context.Context, id string, cause error) error
}

// Extractor turns uploaded bytes into text.
type Extractor interface {
	Extract(ctx context.Context, data []byte, fileName, mimeType string) (extraction.Document, error)
}

// Config tunes ingestion.
type Config struct {
	Chunking       chunker.Config
	MaxUploadBytes int64
}

// Deps are the collaborators of a Service. Redactor and Events are optional.
type Deps struct {
	Metadata  MetadataStore
	Vectors   vectorstore.Adapter
	Embedder  Embedder
	Journal   Journal
	Extractor Extractor
	Redactor  secrets.Redactor
	Events    events.Publisher
	Logger    *zap.Logger
}

// Service runs ingestions. It is safe for concurrent use.
type Service struct {
	cfg  Config
	deps Deps
	now  func() time.Time
}

// NewService validates deps and applies defaults.
func NewService(cfg Config, deps Deps) (*Service, error) {
	if deps.Metadata == nil || deps.Vectors == nil || deps.Embedder == nil || deps.Journal == nil || deps.Extractor == nil {
		return nil, errors.New("ingest: metadata, vectors, embedder, journal and extractor are required")
	}
	cfg.Chunking.ApplyDefaults()
	if err := cfg.Chunking.Validate(); err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if deps.Redactor == nil {
		deps.Redactor = secrets.Nop{}
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Service{cfg: cfg, deps: deps, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Source is either uploaded bytes or raw text. Bytes wins when both are set.
type Source struct {
	Bytes []byte
	Text  string
}

func (s Source) isFile() bool { return s.Bytes != nil }

// Request describes one ingestion.
type Request struct {
	OwnerUserID string
	IndexID     string
	Source      Source
	// FileName is the upload name; required for byte sources.
	FileName string
	// MimeType is the declared type of an upload; detected when empty.
	MimeType string
	// Title names a text ingestion.
	Title string
	// Metadata is copied onto every chunk and vector.
	Metadata map[string]string
}

// Result summarizes a successful ingestion.
type Result struct {
	FileID     string `json:"fileId"`
	Name       string `json:"name"`
	ChunkCount int    `json:"chunkCount"`
	SizeBytes  int64  `json:"size"`
}

// document is the extracted form of a request.
type document struct {
	name     string
	text     string
	mimeType string
	size     int64
}

// Ingest runs the full pipeline for one file or text blob.
func (s *Service) Ingest(ctx context.Context, req Request) (res Result, err error) {
	source := "text"
	if req.Source.isFile() {
		source = "file"
	}
	start := time.Now()
	ctx, span := tracer.Start(ctx, "ingest."+source)
	defer func() {
		Duration.WithLabelValues(source).Observe(time.Since(start).Seconds())
		outcome := "success"
		if err != nil {
			outcome = string(apperr.KindOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, apperr.MessageOf(err))
		}
		FilesTotal.WithLabelValues(source, outcome).Inc()
		span.End()
	}()
	span.SetAttributes(attribute.String("index.id", req.IndexID))

	idx, err := s.authorize(ctx, req.OwnerUserID, req.IndexID)
	if err != nil {
		return Result{}, err
	}

	doc, err := s.extract(ctx, req)
	if err != nil {
		return Result{}, err
	}

	text, err := s.redact(ctx, doc.text)
	if err != nil {
		return Result{}, err
	}

	chunks, err := chunker.Split(text, s.cfg.Chunking)
	if err != nil || len(chunks) == 0 {
		return Result{}, apperr.Validation("ingest.chunk", MsgChunkingFailed, err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.deps.Embedder.EmbedBatch(ctx, texts, idx.Dimension)
	if err != nil {
		if errors.Is(err, embeddings.ErrDimensionMismatch) {
			return Result{}, apperr.Validation("ingest.embed", MsgDimension, err)
		}
		return Result{}, apperr.Dependency("ingest.embed", apperr.DepEmbedding, err)
	}

	fileID := uuid.NewString()
	createdAt := s.now()
	vectorIDs := make([]string, len(chunks))
	metas := make([]vectorstore.Metadata, len(chunks))
	rows := make([]metadata.Chunk, len(chunks))
	for i, c := range chunks {
		vectorIDs[i] = VectorID(fileID, c.Index)
		metas[i] = vectorstore.Metadata{
			ID:          vectorIDs[i],
			Text:        c.Text,
			Source:      doc.name,
			ChunkIndex:  c.Index,
			TotalChunks: len(chunks),
			CreatedAt:   createdAt,
			Custom:      req.Metadata,
		}
		if req.Source.isFile() {
			metas[i].FileSize = doc.size
		}
		rows[i] = metadata.Chunk{
			ChunkIndex: c.Index,
			Text:       c.Text,
			VectorID:   vectorIDs[i],
			Metadata:   req.Metadata,
		}
	}

	intent, err := s.deps.Journal.Begin(ctx, journal.Intent{
		ID:        fileID,
		IndexName: idx.Name,
		FileID:    fileID,
		VectorIDs: vectorIDs,
	})
	if err != nil {
		return Result{}, apperr.Dependency("ingest.journal", apperr.DepJournal, err)
	}

	if err := s.deps.Vectors.Upsert(ctx, idx.Name, vectors, metas); err != nil {
		s.recordFailure(ctx, intent.ID, err)
		return Result{}, apperr.Dependency("ingest.upsert", apperr.DepVectorStore, err)
	}

	file := &metadata.File{
		ID:        fileID,
		Name:      doc.name,
		Size:      doc.size,
		MimeType:  doc.mimeType,
		IndexID:   idx.ID,
		CreatedAt: createdAt,
	}
	if err := s.deps.Metadata.CreateFile(ctx, file, rows); err != nil {
		if delErr := s.deps.Vectors.Delete(ctx, idx.Name, vectorIDs); delErr != nil {
			s.deps.Logger.Warn("vector cleanup after metadata failure failed; leaving intent for reconciler",
				zap.String("file_id", fileID),
				zap.String("index", idx.Name),
				zap.Error(delErr))
		}
		s.recordFailure(ctx, intent.ID, err)
		return Result{}, apperr.Dependency("ingest.metadata", apperr.DepMetadata, err)
	}

	if err := s.deps.Journal.Complete(ctx, intent.ID); err != nil {
		s.deps.Logger.Warn("marking intent complete failed",
			zap.String("intent_id", intent.ID),
			zap.Error(err))
	}
	ChunksTotal.Add(float64(len(chunks)))

	s.publish(ctx, events.Event{
		Type:       events.TypeIngested,
		OwnerID:    req.OwnerUserID,
		ProjectID:  idx.ProjectID,
		IndexID:    idx.ID,
		IndexName:  idx.Name,
		FileID:     fileID,
		FileName:   doc.name,
		ChunkCount: len(chunks),
		OccurredAt: createdAt,
	})

	s.deps.Logger.Info("ingested",
		zap.String("file_id", fileID),
		zap.String("index", idx.Name),
		zap.String("source", source),
		zap.Int("chunks", len(chunks)),
		zap.Int64("size", doc.size))

	return Result{FileID: fileID, Name: doc.name, ChunkCount: len(chunks), SizeBytes: doc.size}, nil
}

// VectorID derives the vector id of chunk i of a file.
func VectorID(fileID string, chunkIndex int) string {
	return fileID + "_chunk_" + strconv.Itoa(chunkIndex)
}

func (s *Service) authorize(ctx context.Context, owner, indexID string) (metadata.Index, error) {
	if owner == "" || indexID == "" {
		return metadata.Index{}, apperr.Authorization("ingest.authorize", MsgIndexNotFound)
	}
	idx, err := s.deps.Metadata.GetIndex(ctx, owner, indexID)
	if errors.Is(err, metadata.ErrNotFound) {
		return metadata.Index{}, apperr.Authorization("ingest.authorize", MsgIndexNotFound)
	}
	if err != nil {
		return metadata.Index{}, apperr.Dependency("ingest.authorize", apperr.DepMetadata, err)
	}
	return idx, nil
}

func (s *Service) extract(ctx context.Context, req Request) (document, error) {
	if !req.Source.isFile() {
		if isBlank(req.Source.Text) {
			return document{}, apperr.Validation("ingest.extract", MsgContentRequired, nil)
		}
		name := strings.TrimSpace(req.Title)
		if name == "" {
			name = "Text upload " + s.now().Format(time.RFC3339)
		}
		return document{
			name:     name,
			text:     req.Source.Text,
			mimeType: extraction.MIMEPlain,
			size:     int64(len(req.Source.Text)),
		}, nil
	}

	if strings.TrimSpace(req.FileName) == "" {
		return document{}, apperr.Validation("ingest.extract", MsgFileNameMissing, nil)
	}
	size := int64(len(req.Source.Bytes))
	if size > s.cfg.MaxUploadBytes {
		return document{}, apperr.Validation("ingest.extract", MsgFileTooLarge,
			fmt.Errorf("%d bytes exceeds %d", size, s.cfg.MaxUploadBytes))
	}
	doc, err := s.deps.Extractor.Extract(ctx, req.Source.Bytes, req.FileName, req.MimeType)
	switch {
	case errors.Is(err, extraction.ErrUnsupportedFormat):
		return document{}, apperr.Validation("ingest.extract", MsgUnsupported, err)
	case errors.Is(err, extraction.ErrCorruptDocument):
		return document{}, apperr.Validation("ingest.extract", MsgCorrupt, err)
	case err != nil:
		return document{}, apperr.Dependency("ingest.extract", apperr.DepExtraction, err)
	}
	if isBlank(doc.Text) {
		return document{}, apperr.Validation("ingest.extract", MsgNoText, nil)
	}
	return document{
		name:     req.FileName,
		text:     doc.Text,
		mimeType: doc.MimeType,
		size:     size,
	}, nil
}

func (s *Service) redact(ctx context.Context, text string) (string, error) {
	res, err := s.deps.Redactor.Redact(ctx, text)
	if err != nil {
		return "", apperr.Dependency("ingest.redact", apperr.DepExtraction, err)
	}
	if len(res.Findings) > 0 {
		s.deps.Logger.Info("redacted secrets before indexing",
			zap.Int("findings", len(res.Findings)),
			zap.Any("rules", res.RuleCounts))
	}
	return res.Content, nil
}

func (s *Service) recordFailure(ctx context.Context, intentID string, cause error) {
	if err := s.deps.Journal.RecordFailure(ctx, intentID, cause); err != nil {
		s.deps.Logger.Warn("recording intent failure failed",
			zap.String("intent_id", intentID),
			zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.deps.Events.Publish(ctx, e); err != nil {
		s.deps.Logger.Warn("publishing event failed",
			zap.String("type", string(e.Type)),
			zap.Error(err))
	}
}

func isBlank(s string) bool {
	return strings.TrimFunc(s, unicode.IsSpace) == ""
}
