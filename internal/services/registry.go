package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/auth"
	"github.com/fyrsmithlabs/vectord/internal/catalog"
	"github.com/fyrsmithlabs/vectord/internal/config"
	"github.com/fyrsmithlabs/vectord/internal/embeddings"
	"github.com/fyrsmithlabs/vectord/internal/events"
	"github.com/fyrsmithlabs/vectord/internal/extraction"
	"github.com/fyrsmithlabs/vectord/internal/ingest"
	"github.com/fyrsmithlabs/vectord/internal/journal"
	"github.com/fyrsmithlabs/vectord/internal/metadata"
	"github.com/fyrsmithlabs/vectord/internal/search"
	"github.com/fyrsmithlabs/vectord/internal/secrets"
	"github.com/fyrsmithlabs/vectord/internal/vectorstore"
)

// Registry provides access to all vectord services.
// Use accessor methods to retrieve individual services.
type Registry interface {
	Metadata() *metadata.Store
	Journal() *journal.Journal
	VectorStore() vectorstore.Adapter
	Embeddings() *embeddings.Generator
	Events() events.Publisher
	Ingest() *ingest.Service
	Search() *search.Service
	Reconciler() *ingest.Reconciler
	Tokens() *auth.Tokens
	Catalog() *catalog.Catalog

	// Health pings the stores the catalog depends on.
	Health(ctx context.Context) Health
	// Close releases every client in reverse order of construction.
	Close() error
}

// Health reports the reachability of each backing store.
type Health struct {
	Healthy  bool              `json:"healthy"`
	Services map[string]string `json:"services"`
}

// Options configures the registry with service instances.
type Options struct {
	Metadata    *metadata.Store
	Journal     *journal.Journal
	VectorStore vectorstore.Adapter
	Embeddings  *embeddings.Generator
	Provider    embeddings.Provider
	Events      events.Publisher
	Ingest      *ingest.Service
	Search      *search.Service
	Reconciler  *ingest.Reconciler
	Tokens      *auth.Tokens
	Catalog     *catalog.Catalog
}

// registry is the concrete implementation of Registry.
type registry struct {
	metadata    *metadata.Store
	journal     *journal.Journal
	vectorStore vectorstore.Adapter
	embeddings  *embeddings.Generator
	provider    embeddings.Provider
	events      events.Publisher
	ingest      *ingest.Service
	search      *search.Service
	reconciler  *ingest.Reconciler
	tokens      *auth.Tokens
	catalog     *catalog.Catalog
}

// NewRegistry creates a registry over already constructed services.
func NewRegistry(opts Options) Registry {
	return &registry{
		metadata:    opts.Metadata,
		journal:     opts.Journal,
		vectorStore: opts.VectorStore,
		embeddings:  opts.Embeddings,
		provider:    opts.Provider,
		events:      opts.Events,
		ingest:      opts.Ingest,
		search:      opts.Search,
		reconciler:  opts.Reconciler,
		tokens:      opts.Tokens,
		catalog:     opts.Catalog,
	}
}

func (r *registry) Metadata() *metadata.Store         { return r.metadata }
func (r *registry) Journal() *journal.Journal         { return r.journal }
func (r *registry) VectorStore() vectorstore.Adapter  { return r.vectorStore }
func (r *registry) Embeddings() *embeddings.Generator { return r.embeddings }
func (r *registry) Events() events.Publisher          { return r.events }
func (r *registry) Ingest() *ingest.Service           { return r.ingest }
func (r *registry) Search() *search.Service           { return r.search }
func (r *registry) Reconciler() *ingest.Reconciler    { return r.reconciler }
func (r *registry) Tokens() *auth.Tokens              { return r.tokens }
func (r *registry) Catalog() *catalog.Catalog         { return r.catalog }

func (r *registry) Health(ctx context.Context) Health {
	h := Health{Healthy: true, Services: map[string]string{}}
	check := func(name string, ping func(context.Context) error) {
		if ping == nil {
			return
		}
		if err := ping(ctx); err != nil {
			h.Healthy = false
			h.Services[name] = "unavailable"
			return
		}
		h.Services[name] = "ok"
	}
	if r.metadata != nil {
		check("metadata", r.metadata.Ping)
	}
	if r.vectorStore != nil {
		check("vectorstore", r.vectorStore.Ping)
	}
	return h
}

func (r *registry) Close() error {
	var errs []error
	if r.events != nil {
		r.events.Close()
	}
	if r.provider != nil {
		errs = append(errs, r.provider.Close())
	}
	if r.vectorStore != nil {
		errs = append(errs, r.vectorStore.Close())
	}
	if r.journal != nil {
		errs = append(errs, r.journal.Close())
	}
	if r.metadata != nil {
		errs = append(errs, r.metadata.Close())
	}
	return errors.Join(errs...)
}

// Build opens every client described by cfg and assembles the services.
// On failure, clients opened so far are closed.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ Registry, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var opts Options
	defer func() {
		if err != nil {
			_ = NewRegistry(opts).Close()
		}
	}()

	if opts.Metadata, err = metadata.Open(ctx, cfg.Storage.SQLitePath, logger.Named("metadata")); err != nil {
		return nil, fmt.Errorf("opening metadata store: %w", err)
	}
	if opts.Journal, err = journal.Open(cfg.Storage.JournalPath, logger.Named("journal")); err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	if opts.VectorStore, err = vectorstore.NewAdapter(VectorStoreConfig(cfg), logger.Named("vectorstore")); err != nil {
		return nil, fmt.Errorf("creating vector store: %w", err)
	}

	ec := cfg.Embeddings
	if opts.Provider, err = embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:  ec.Provider,
		Model:     ec.Model,
		BaseURL:   ec.BaseURL,
		APIKey:    ec.APIKey.Value(),
		Dimension: ec.Dimension,
		CacheDir:  ec.CacheDir,
	}); err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}
	if opts.Embeddings, err = embeddings.NewGenerator(opts.Provider, embeddings.GeneratorConfig{
		Model:     ec.Model,
		BatchSize: ec.BatchSize,
		RateLimit: ec.RateLimit,
		Burst:     ec.Burst,
	}, logger.Named("embeddings")); err != nil {
		return nil, fmt.Errorf("creating embedding generator: %w", err)
	}

	if opts.Events, err = events.New(cfg.Events, logger.Named("events")); err != nil {
		return nil, fmt.Errorf("connecting event publisher: %w", err)
	}
	redactor, err := secrets.New(cfg.Ingest.Secrets, logger.Named("secrets"))
	if err != nil {
		return nil, fmt.Errorf("creating redactor: %w", err)
	}

	if opts.Ingest, err = ingest.NewService(ingest.Config{
		Chunking:       cfg.Chunking,
		MaxUploadBytes: cfg.Ingest.MaxUploadBytes,
	}, ingest.Deps{
		Metadata:  opts.Metadata,
		Vectors:   opts.VectorStore,
		Embedder:  opts.Embeddings,
		Journal:   opts.Journal,
		Extractor: extraction.NewRegistry(),
		Redactor:  redactor,
		Events:    opts.Events,
		Logger:    logger.Named("ingest"),
	}); err != nil {
		return nil, fmt.Errorf("creating ingest service: %w", err)
	}
	if opts.Search, err = search.NewService(cfg.Search, opts.Metadata, opts.VectorStore, opts.Embeddings, logger.Named("search")); err != nil {
		return nil, fmt.Errorf("creating search service: %w", err)
	}
	opts.Reconciler = ingest.NewReconciler(opts.Journal, opts.Metadata, opts.VectorStore,
		cfg.Ingest.ReconcileGrace.Duration(), logger.Named("reconciler"),
		ingest.WithRetention(cfg.Ingest.CompletedRetention.Duration()))
	opts.Tokens = auth.NewTokens(opts.Metadata, logger.Named("auth"))

	if opts.Catalog, err = catalog.New(catalog.Deps{
		Store:     opts.Metadata,
		Vectors:   opts.VectorStore,
		Ingest:    opts.Ingest,
		Search:    opts.Search,
		Tokens:    opts.Tokens,
		Events:    opts.Events,
		Logger:    logger.Named("catalog"),
		Dimension: opts.Embeddings.Dimension(),
	}); err != nil {
		return nil, fmt.Errorf("creating catalog: %w", err)
	}

	logger.Info("services initialized",
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.String("embeddings", ec.Provider),
		zap.String("model", ec.Model),
		zap.Int("dimension", opts.Embeddings.Dimension()),
		zap.Bool("events", cfg.Events.Enabled))
	return NewRegistry(opts), nil
}

// VectorStoreConfig converts the vectorstore section of cfg.
func VectorStoreConfig(cfg *config.Config) vectorstore.Config {
	vc := cfg.VectorStore
	return vectorstore.Config{
		Provider: vc.Provider,
		Chromem: vectorstore.ChromemConfig{
			Path:     vc.Chromem.Path,
			Compress: vc.Chromem.Compress,
		},
		Qdrant: vectorstore.QdrantConfig{
			Host:       vc.Qdrant.Host,
			Port:       vc.Qdrant.Port,
			APIKey:     vc.Qdrant.APIKey.Value(),
			UseTLS:     vc.Qdrant.UseTLS,
			MaxRetries: vc.Qdrant.MaxRetries,
		},
	}
}
