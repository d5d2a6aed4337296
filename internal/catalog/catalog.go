package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/apperr"
	"github.com/fyrsmithlabs/vectord/internal/auth"
	"github.com/fyrsmithlabs/vectord/internal/events"
	"github.com/fyrsmithlabs/vectord/internal/ingest"
	"github.com/fyrsmithlabs/vectord/internal/metadata"
	"github.com/fyrsmithlabs/vectord/internal/search"
	"github.com/fyrsmithlabs/vectord/internal/vectorstore"
)

// Caller-facing messages.
const (
	MsgProjectNotFound = "Project not found or access denied"
	MsgIndexNotFound   = "Index not found or access denied"
	MsgFileNotFound    = "File not found or access denied"
	MsgTokenNotFound   = "Token not found or access denied"
	MsgIndexNameTaken  = "Index name already exists"
	MsgIndexName       = "Index name must be 1-64 letters, digits or underscores and must not start with a digit"
	MsgDimension       = "Dimension must be a positive integer"
)

// DefaultDimension is the index width used when neither the request nor
// Deps provide one.
const DefaultDimension = 1536

// Store is the metadata store used by the catalog.
type Store interface {
	CreateProject(ctx context.Context, p *metadata.Project) error
	ListProjects(ctx context.Context, owner string) ([]metadata.Project, error)
	GetProject(ctx context.Context, owner, id string) (metadata.ProjectDetail, error)
	UpdateProject(ctx context.Context, owner, id string, u metadata.ProjectUpdate) (metadata.Project, error)
	DeleteProject(ctx context.Context, owner, id string) error

	CreateIndex(ctx context.Context, owner string, idx *metadata.Index) error
	IndexNameExists(ctx context.Context, name string) (bool, error)
	ListIndexes(ctx context.Context, owner, projectID string) ([]metadata.Index, error)
	GetIndex(ctx context.Context, owner, id string) (metadata.Index, error)
	DeleteIndex(ctx context.Context, owner, id string) error

	ListFiles(ctx context.Context, owner, indexID string) ([]metadata.File, error)
	GetFile(ctx context.Context, owner, id string) (metadata.FileDetail, error)
	FileChunks(ctx context.Context, owner, fileID string) ([]metadata.Chunk, error)
	DeleteFile(ctx context.Context, owner, id string) error
}

// Ingester runs ingestions.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (ingest.Result, error)
}

// Searcher answers similarity queries.
type Searcher interface {
	SearchIndex(ctx context.Context, req search.IndexRequest) (search.IndexResponse, error)
	SearchProject(ctx context.Context, req search.ProjectRequest) (search.ProjectResponse, error)
}

// Deps are the collaborators of a Catalog. Tokens, Events and Logger are optional.
type Deps struct {
	Store   Store
	Vectors vectorstore.Adapter
	Ingest  Ingester
	Search  Searcher
	Tokens  *auth.Tokens
	Events  events.Publisher
	Logger  *zap.Logger
	// Dimension is the default width of new indexes.
	Dimension int
}

// Catalog implements every caller-facing operation. It is safe for
// concurrent use.
type Catalog struct {
	store     Store
	vectors   vectorstore.Adapter
	ingest    Ingester
	search    Searcher
	tokens    *auth.Tokens
	events    events.Publisher
	logger    *zap.Logger
	dimension int
	now       func() time.Time
}

// New builds a Catalog.
func New(d Deps) (*Catalog, error) {
	if d.Store == nil || d.Vectors == nil || d.Ingest == nil || d.Search == nil {
		return nil, errors.New("catalog: store, vectors, ingest and search are required")
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Dimension <= 0 {
		d.Dimension = DefaultDimension
	}
	return &Catalog{
		store:     d.Store,
		vectors:   d.Vectors,
		ingest:    d.Ingest,
		search:    d.Search,
		tokens:    d.Tokens,
		events:    d.Events,
		logger:    d.Logger,
		dimension: d.Dimension,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// storeErr classifies a metadata store error.
func storeErr(op, notFound string, err error) error {
	switch {
	case errors.Is(err, metadata.ErrNotFound):
		return apperr.Authorization(op, notFound)
	case errors.Is(err, metadata.ErrIndexNameTaken):
		return apperr.Validation(op, MsgIndexNameTaken, err)
	case errors.Is(err, metadata.ErrInvalidArgument):
		return apperr.Validation(op, invalidMessage(err), err)
	default:
		return apperr.Dependency(op, apperr.DepMetadata, err)
	}
}

// invalidMessage strips the sentinel prefix from an invalid-argument error.
func invalidMessage(err error) string {
	if msg, ok := strings.CutPrefix(err.Error(), metadata.ErrInvalidArgument.Error()+": "); ok {
		return msg
	}
	return err.Error()
}

// publish sends e, logging failures.
func (c *Catalog) publish(ctx context.Context, e events.Event) {
	e.OccurredAt = c.now()
	if err := c.events.Publish(ctx, e); err != nil {
		c.logger.Warn("failed to publish event", zap.String("type", string(e.Type)), zap.Error(err))
	}
}
