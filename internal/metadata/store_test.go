package metadata

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "metadata.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func seedProject(t *testing.T, s *Store, owner, name string) Project {
	t.Helper()
	p := Project{Name: name, OwnerUserID: owner}
	require.NoError(t, s.CreateProject(context.Background(), &p))
	return p
}

func seedIndex(t *testing.T, s *Store, owner, projectID, name string) Index {
	t.Helper()
	idx := Index{Name: name, Dimension: 4, ProjectID: projectID}
	require.NoError(t, s.CreateIndex(context.Background(), owner, &idx))
	return idx
}

func seedFile(t *testing.T, s *Store, indexID, name string, n int) File {
	t.Helper()
	f := File{Name: name, Size: 100, MimeType: "text/plain", IndexID: indexID}
	chunks := make([]Chunk, n)
	for i := range chunks {
		chunks[i] = Chunk{ChunkIndex: i, Text: name + " part", VectorID: name + "_chunk_" + string(rune('0'+i))}
	}
	require.NoError(t, s.CreateFile(context.Background(), &f, chunks))
	return f
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "metadata.db")

	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	v, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()
	v, err = s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.NoError(t, s.Ping(ctx))
}

func TestProjects(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := seedProject(t, s, "alice", "first")
	second := seedProject(t, s, "alice", "second")
	seedProject(t, s, "bob", "bobs")
	seedIndex(t, s, "alice", first.ID, "first_idx")

	projects, err := s.ListProjects(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, second.ID, projects[0].ID, "most recently updated first")
	assert.Equal(t, 1, projects[1].IndexCount)

	desc := "renamed project"
	name := "first-renamed"
	updated, err := s.UpdateProject(ctx, "alice", first.ID, ProjectUpdate{Name: &name, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, desc, updated.Description)
	assert.True(t, updated.UpdatedAt.After(first.UpdatedAt))

	projects, err = s.ListProjects(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, projects[0].ID, "update moves project to the front")

	detail, err := s.GetProject(ctx, "alice", first.ID)
	require.NoError(t, err)
	require.Len(t, detail.Indexes, 1)
	assert.Equal(t, "first_idx", detail.Indexes[0].Name)

	_, err = s.GetProject(ctx, "bob", first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.UpdateProject(ctx, "bob", first.ID, ProjectUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteProject(ctx, "bob", first.ID), ErrNotFound)

	empty := " "
	_, err = s.UpdateProject(ctx, "alice", first.ID, ProjectUpdate{Name: &empty})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	err = s.CreateProject(ctx, &Project{OwnerUserID: "alice"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestIndexes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProject(t, s, "alice", "p")

	older := seedIndex(t, s, "alice", p.ID, "older")
	newer := seedIndex(t, s, "alice", p.ID, "newer")
	seedFile(t, s, older.ID, "a.txt", 2)

	indexes, err := s.ListIndexes(ctx, "alice", p.ID)
	require.NoError(t, err)
	require.Len(t, indexes, 2)
	assert.Equal(t, newer.ID, indexes[0].ID)
	assert.Equal(t, 1, indexes[1].FileCount)

	_, err = s.ListIndexes(ctx, "bob", p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.CreateIndex(ctx, "alice", &Index{Name: "older", Dimension: 4, ProjectID: p.ID})
	assert.ErrorIs(t, err, ErrIndexNameTaken)

	err = s.CreateIndex(ctx, "bob", &Index{Name: "bobs", Dimension: 4, ProjectID: p.ID})
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err := s.IndexNameExists(ctx, "newer")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := s.GetIndex(ctx, "alice", older.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Dimension)
	_, err = s.GetIndex(ctx, "bob", older.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeleteIndex(ctx, "alice", older.ID))
	_, err = s.GetIndex(ctx, "alice", older.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteIndex(ctx, "alice", older.ID), ErrNotFound)
}

func TestFilesAndChunks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProject(t, s, "alice", "p")
	idx := seedIndex(t, s, "alice", p.ID, "docs")

	f := File{Name: "notes.txt", Size: 12, MimeType: "text/plain", IndexID: idx.ID}
	chunks := []Chunk{
		{ChunkIndex: 0, Text: "zero", VectorID: "v0", Metadata: map[string]string{"lang": "en"}},
		{ChunkIndex: 1, Text: "one", VectorID: "v1"},
		{ChunkIndex: 2, Text: "two", VectorID: "v2"},
	}
	require.NoError(t, s.CreateFile(ctx, &f, chunks))
	assert.NotEmpty(t, f.ID)
	assert.Equal(t, 3, f.ChunkCount)

	got, err := s.FileChunks(ctx, "alice", f.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, c := range got {
		assert.Equal(t, i, c.ChunkIndex)
	}
	assert.Equal(t, "en", got[0].Metadata["lang"])

	detail, err := s.GetFile(ctx, "alice", f.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, detail.ChunkCount)
	assert.Equal(t, "docs", detail.Index.Name)
	assert.Len(t, detail.Chunks, 3)

	_, err = s.GetFile(ctx, "bob", f.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.FileChunks(ctx, "bob", f.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	refs, err := s.ChunksByVectorIDs(ctx, idx.ID, []string{"v2", "v0", "orphan"})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "two", refs["v2"].Text)
	assert.Equal(t, "notes.txt", refs["v2"].File.Name)
	assert.NotContains(t, refs, "orphan")

	existing, err := s.ExistingVectorIDs(ctx, []string{"v1", "gone"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"v1": true}, existing)

	second := seedFile(t, s, idx.ID, "later.txt", 1)
	files, err := s.ListFiles(ctx, "alice", idx.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, second.ID, files[0].ID)
	assert.Equal(t, 3, files[1].ChunkCount)

	require.NoError(t, s.DeleteFile(ctx, "alice", f.ID))
	existing, err = s.ExistingVectorIDs(ctx, []string{"v0", "v1", "v2"})
	require.NoError(t, err)
	assert.Empty(t, existing)
	assert.ErrorIs(t, s.DeleteFile(ctx, "alice", f.ID), ErrNotFound)
}

func TestCreateFile_RejectsGapsAndRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProject(t, s, "alice", "p")
	idx := seedIndex(t, s, "alice", p.ID, "docs")

	err := s.CreateFile(ctx, &File{Name: "gap.txt", IndexID: idx.ID},
		[]Chunk{{ChunkIndex: 0, VectorID: "a"}, {ChunkIndex: 2, VectorID: "b"}})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	seedFile(t, s, idx.ID, "dup", 1)
	// second file reuses a vector id; the whole write must roll back
	err = s.CreateFile(ctx, &File{Name: "clash.txt", IndexID: idx.ID, MimeType: "text/plain"},
		[]Chunk{{ChunkIndex: 0, VectorID: "fresh"}, {ChunkIndex: 1, VectorID: "dup_chunk_0"}})
	require.Error(t, err)

	files, err := s.ListFiles(ctx, "alice", idx.ID)
	require.NoError(t, err)
	assert.Len(t, files, 1)
	existing, err := s.ExistingVectorIDs(ctx, []string{"fresh"})
	require.NoError(t, err)
	assert.Empty(t, existing)
}

func TestDeleteProject_Cascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProject(t, s, "alice", "p")
	idx := seedIndex(t, s, "alice", p.ID, "docs")
	f := seedFile(t, s, idx.ID, "a", 2)

	require.NoError(t, s.DeleteProject(ctx, "alice", p.ID))

	_, err := s.GetIndex(ctx, "alice", idx.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetFile(ctx, "alice", f.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	existing, err := s.ExistingVectorIDs(ctx, []string{"a_chunk_0", "a_chunk_1"})
	require.NoError(t, err)
	assert.Empty(t, existing)

	// the index name is free again
	exists, err := s.IndexNameExists(ctx, "docs")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTokens(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	expires := time.Now().Add(time.Hour).UTC()
	tok := APIToken{Name: "ci", TokenHash: "hash-1", UserID: "alice", ExpiresAt: &expires}
	require.NoError(t, s.CreateToken(ctx, &tok))
	assert.True(t, tok.IsActive)

	got, err := s.TokenByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, tok.ID, got.ID)
	require.NotNil(t, got.ExpiresAt)
	assert.WithinDuration(t, expires, *got.ExpiresAt, time.Microsecond)
	assert.Nil(t, got.LastUsedAt)

	now := time.Now()
	require.NoError(t, s.TouchToken(ctx, tok.ID, now))
	got, err = s.TokenByHash(ctx, "hash-1")
	require.NoError(t, err)
	require.NotNil(t, got.LastUsedAt)

	assert.ErrorIs(t, s.SetTokenActive(ctx, "bob", tok.ID, false), ErrNotFound)
	require.NoError(t, s.SetTokenActive(ctx, "alice", tok.ID, false))
	got, err = s.TokenByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	tokens, err := s.ListTokens(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, tokens, 1)

	require.NoError(t, s.DeleteToken(ctx, "alice", tok.ID))
	_, err = s.TokenByHash(ctx, "hash-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
