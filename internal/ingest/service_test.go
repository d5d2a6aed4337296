package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

const owner = "owner-1"

type fixture struct {
	svc      *Service
	store    *metadata.Store
	journal  *journal.Journal
	vectors  *vectorstore.MemoryStore
	provider *embeddings.FakeProvider
	events   *recordingPublisher
	index    metadata.Index
}

type recordingPublisher struct {
	published []events.Event
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.published = append(p.published, e)
	return p.err
}

func (p *recordingPublisher) Close() {}

// failingStore fails CreateFile while delegating everything else.
type failingStore struct {
	*metadata.Store
	err error
}

func (f failingStore) CreateFile(context.Context, *metadata.File, []metadata.Chunk) error {
	return f.err
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	indexDim    int
	providerDim int
	chunking    chunker.Config
	storeErr    error
	redactor    secrets.Redactor
}

func withIndexDimension(d int) fixtureOption { return func(c *fixtureConfig) { c.indexDim = d } }
func withProviderDimension(d int) fixtureOption {
	return func(c *fixtureConfig) { c.providerDim = d }
}
func withCreateFileError(err error) fixtureOption   { return func(c *fixtureConfig) { c.storeErr = err } }
func withRedactor(r secrets.Redactor) fixtureOption { return func(c *fixtureConfig) { c.redactor = r } }

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	ctx := context.Background()
	cfg := fixtureConfig{indexDim: 8, providerDim: 8, chunking: chunker.Config{MaxSize: 64, Overlap: 8}}
	for _, o := range opts {
		o(&cfg)
	}

	dir := t.TempDir()
	store, err := metadata.Open(ctx, filepath.Join(dir, "vectord.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	j, err := journal.Open(filepath.Join(dir, "journal.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	project := metadata.Project{Name: "docs", OwnerUserID: owner}
	require.NoError(t, store.CreateProject(ctx, &project))
	idx := metadata.Index{Name: "handbook", Dimension: cfg.indexDim, ProjectID: project.ID}
	require.NoError(t, store.CreateIndex(ctx, owner, &idx))

	vectors := vectorstore.NewMemoryStore()
	require.NoError(t, vectors.CreateIndex(ctx, idx.Name, cfg.indexDim))

	provider := embeddings.NewFakeProvider(cfg.providerDim)
	gen, err := embeddings.NewGenerator(provider, embeddings.GeneratorConfig{BatchSize: 2}, nil)
	require.NoError(t, err)

	var md MetadataStore = store
	if cfg.storeErr != nil {
		md = failingStore{Store: store, err: cfg.storeErr}
	}
	pub := &recordingPublisher{}
	svc, err := NewService(Config{Chunking: cfg.chunking}, Deps{
		Metadata:  md,
		Vectors:   vectors,
		Embedder:  gen,
		Journal:   j,
		Extractor: extraction.NewRegistry(),
		Redactor:  cfg.redactor,
		Events:    pub,
		Logger:    zap.NewNop(),
	})
	require.NoError(t, err)

	return &fixture{svc: svc, store: store, journal: j, vectors: vectors, provider: provider, events: pub, index: idx}
}

func longText(paragraphs int) string {
	var b strings.Builder
	for i := range paragraphs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Paragraph about vector search and chunk number ")
		b.WriteByte(byte('a' + i%26))
		b.WriteString(".")
	}
	return b.String()
}

func TestIngest_Text(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.Ingest(ctx, Request{
		OwnerUserID: owner,
		IndexID:     f.index.ID,
		Source:      Source{Text: longText(6)},
		Title:       "Onboarding",
		Metadata:    map[string]string{"team": "search"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Onboarding", res.Name)
	assert.Equal(t, int64(len(longText(6))), res.SizeBytes)
	require.Greater(t, res.ChunkCount, 1)

	// Chunk rows are contiguous from zero and joined to vectors by id.
	chunks, err := f.store.FileChunks(ctx, owner, res.FileID)
	require.NoError(t, err)
	require.Len(t, chunks, res.ChunkCount)
	ids := f.vectors.IDs(f.index.Name)
	require.Len(t, ids, res.ChunkCount)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, VectorID(res.FileID, i), c.VectorID)
		assert.Equal(t, "search", c.Metadata["team"])
		assert.Contains(t, ids, c.VectorID)
	}

	detail, err := f.store.GetFile(ctx, owner, res.FileID)
	require.NoError(t, err)
	assert.Equal(t, extraction.MIMEPlain, detail.MimeType)

	// Batches of two.
	assert.Equal(t, (res.ChunkCount+1)/2, f.provider.Calls())

	in, err := f.journal.Get(ctx, res.FileID)
	require.NoError(t, err)
	assert.Equal(t, journal.StateComplete, in.State)

	require.Len(t, f.events.published, 1)
	assert.Equal(t, events.TypeIngested, f.events.published[0].Type)
	assert.Equal(t, res.ChunkCount, f.events.published[0].ChunkCount)
}

func TestIngest_TextDefaultName(t *testing.T) {
	f := newFixture(t)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return fixed }

	res, err := f.svc.Ingest(context.Background(), Request{
		OwnerUserID: owner,
		IndexID:     f.index.ID,
		Source:      Source{Text: "short note"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Text upload 2024-03-01T12:00:00Z", res.Name)
	assert.Equal(t, 1, res.ChunkCount)
}

func TestIngest_File(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	data := []byte("# Title\n\nSome markdown body text.")
	res, err := f.svc.Ingest(ctx, Request{
		OwnerUserID: owner,
		IndexID:     f.index.ID,
		Source:      Source{Bytes: data},
		FileName:    "notes.md",
	})
	require.NoError(t, err)
	assert.Equal(t, "notes.md", res.Name)
	assert.Equal(t, int64(len(data)), res.SizeBytes)

	detail, err := f.store.GetFile(ctx, owner, res.FileID)
	require.NoError(t, err)
	assert.Equal(t, extraction.MIMEMarkdown, detail.MimeType)

	matches, err := f.vectors.Query(ctx, f.index.Name, make([]float32, 8), 10)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, int64(len(data)), matches[0].Metadata.FileSize)
	assert.Equal(t, "notes.md", matches[0].Metadata.Source)
}

func TestIngest_Docx(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>Quarterly report</w:t></w:r></w:p></w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	f := newFixture(t)
	res, err := f.svc.Ingest(context.Background(), Request{
		OwnerUserID: owner,
		IndexID:     f.index.ID,
		Source:      Source{Bytes: buf.Bytes()},
		FileName:    "report.docx",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChunkCount)
}

func TestIngest_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     func(indexID string) Request
		kind    apperr.Kind
		message string
	}{
		{
			name: "unknown index",
			req: func(string) Request {
				return Request{OwnerUserID: owner, IndexID: "missing", Source: Source{Text: "x"}}
			},
			kind:    apperr.KindAuthorization,
			message: MsgIndexNotFound,
		},
		{
			name: "foreign owner",
			req: func(id string) Request {
				return Request{OwnerUserID: "someone-else", IndexID: id, Source: Source{Text: "x"}}
			},
			kind:    apperr.KindAuthorization,
			message: MsgIndexNotFound,
		},
		{
			name: "blank text",
			req: func(id string) Request {
				return Request{OwnerUserID: owner, IndexID: id, Source: Source{Text: " \n\t"}}
			},
			kind:    apperr.KindValidation,
			message: MsgContentRequired,
		},
		{
			name: "empty document",
			req: func(id string) Request {
				return Request{OwnerUserID: owner, IndexID: id, Source: Source{Bytes: []byte("   ")}, FileName: "empty.txt"}
			},
			kind:    apperr.KindValidation,
			message: MsgNoText,
		},
		{
			name: "missing file name",
			req: func(id string) Request {
				return Request{OwnerUserID: owner, IndexID: id, Source: Source{Bytes: []byte("hello")}}
			},
			kind:    apperr.KindValidation,
			message: MsgFileNameMissing,
		},
		{
			name: "unsupported type",
			req: func(id string) Request {
				return Request{OwnerUserID: owner, IndexID: id, Source: Source{Bytes: []byte{0x89, 'P', 'N', 'G', 0, 1, 2}}, FileName: "image.png"}
			},
			kind:    apperr.KindValidation,
			message: MsgUnsupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Ingest(context.Background(), tt.req(f.index.ID))
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.Equal(t, tt.message, apperr.MessageOf(err))
			assert.Empty(t, f.vectors.IDs(f.index.Name))
			assert.Zero(t, f.provider.Calls())
		})
	}
}

func TestIngest_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withIndexDimension(768), withProviderDimension(1536))

	_, err := f.svc.Ingest(ctx, Request{
		OwnerUserID: owner,
		IndexID:     f.index.ID,
		Source:      Source{Text: longText(4)},
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.ErrorIs(t, err, embeddings.ErrDimensionMismatch)

	assert.Empty(t, f.vectors.IDs(f.index.Name))
	files, err := f.store.ListFiles(ctx, owner, f.index.ID)
	require.NoError(t, err)
	assert.Empty(t, files)
	pending, err := f.journal.Pending(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestIngest_EmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.provider.FailOnCall = 2

	_, err := f.svc.Ingest(ctx, Request{OwnerUserID: owner, IndexID: f.index.ID, Source: Source{Text: longText(8)}})
	require.Error(t, err)
	assert.Equal(t, apperr.KindDependency, apperr.KindOf(err))
	assert.Equal(t, apperr.DepEmbedding, apperr.DependencyOf(err))
	assert.Empty(t, f.vectors.IDs(f.index.Name))
}

func TestIngest_MetadataFailureCleansVectors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withCreateFileError(errors.New("disk full")))

	_, err := f.svc.Ingest(ctx, Request{OwnerUserID: owner, IndexID: f.index.ID, Source: Source{Text: longText(3)}})
	require.Error(t, err)
	assert.Equal(t, apperr.DepMetadata, apperr.DependencyOf(err))

	assert.Empty(t, f.vectors.IDs(f.index.Name))

	pending, err := f.journal.Pending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Contains(t, pending[0].LastError, "disk full")
	assert.Empty(t, f.events.published)
}

func TestIngest_EventFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("nats down")

	res, err := f.svc.Ingest(context.Background(), Request{OwnerUserID: owner, IndexID: f.index.ID, Source: Source{Text: "hello"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChunkCount)
}

type stubRedactor struct{}

func (stubRedactor) Redact(_ context.Context, content string) (secrets.Result, error) {
	out := strings.ReplaceAll(content, "hunter2", "[REDACTED]")
	var findings []secrets.Finding
	if out != content {
		findings = []secrets.Finding{{RuleID: "password"}}
	}
	return secrets.Result{Content: out, Findings: findings}, nil
}

func TestIngest_RedactsBeforeChunking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withRedactor(stubRedactor{}))

	res, err := f.svc.Ingest(ctx, Request{OwnerUserID: owner, IndexID: f.index.ID, Source: Source{Text: "the password is hunter2"}})
	require.NoError(t, err)

	chunks, err := f.store.FileChunks(ctx, owner, res.FileID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "the password is [REDACTED]", chunks[0].Text)
}

func TestIngest_VectorIDsAreUniqueAcrossSameNames(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req := Request{OwnerUserID: owner, IndexID: f.index.ID, Source: Source{Bytes: []byte("same content")}, FileName: "a.txt"}
	first, err := f.svc.Ingest(ctx, req)
	require.NoError(t, err)
	second, err := f.svc.Ingest(ctx, req)
	require.NoError(t, err)

	assert.NotEqual(t, first.FileID, second.FileID)
	assert.Len(t, f.vectors.IDs(f.index.Name), 2)
}

func TestVectorID(t *testing.T) {
	assert.Equal(t, "f1_chunk_0", VectorID("f1", 0))
	assert.Equal(t, "f1_chunk_12", VectorID("f1", 12))
}
