package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/vectord/internal/catalog"
	"github.com/fyrsmithlabs/vectord/internal/config"
	"github.com/fyrsmithlabs/vectord/internal/services"
)

const testOwner = "owner-1"

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.DataDir = t.TempDir()
	cfg.VectorStore.Provider = "memory"
	cfg.Embeddings.Provider = "fake"
	cfg.Embeddings.Dimension = 16
	require.NoError(t, cfg.Resolve())

	reg, err := services.Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })
	return reg.Catalog()
}

// connect starts a server session over in-memory transports and returns the
// client side.
func connect(t *testing.T, cat *catalog.Catalog) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	srv, err := NewServer(&Config{Name: "vectord-test", Version: "test", Owner: testOwner}, cat)
	require.NoError(t, err)

	serverT, clientT := mcp.NewInMemoryTransports()
	ss, err := srv.Connect(ctx, serverT)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func call[T any](t *testing.T, cs *mcp.ClientSession, name string, args any) (T, *mcp.CallToolResult) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)

	var out T
	if !res.IsError && res.StructuredContent != nil {
		raw, err := json.Marshal(res.StructuredContent)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return out, res
}

func TestNewServer(t *testing.T) {
	cat := newTestCatalog(t)

	_, err := NewServer(&Config{Owner: testOwner}, nil)
	assert.ErrorContains(t, err, "catalog is required")

	_, err = NewServer(nil, cat)
	assert.ErrorContains(t, err, "owner is required")

	srv, err := NewServer(&Config{Owner: testOwner}, cat)
	require.NoError(t, err)
	assert.NotNil(t, srv.logger)
}

func TestTools_Listed(t *testing.T) {
	cs := connect(t, newTestCatalog(t))

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"index_search", "project_search", "ingest_text", "list_projects", "list_indexes"}, names)
}

func TestTools_EndToEnd(t *testing.T) {
	ctx := context.Background()
	cat := newTestCatalog(t)
	p := cat.CreateProject(ctx, testOwner, catalog.CreateProjectInput{Name: "docs"})
	require.True(t, p.Success)
	idx := cat.CreateIndex(ctx, testOwner, catalog.CreateIndexInput{ProjectID: p.Data.ID, Name: "runbooks"})
	require.True(t, idx.Success, idx.Message)

	cs := connect(t, cat)

	projects, _ := call[listProjectsOutput](t, cs, "list_projects", map[string]any{})
	require.Equal(t, 1, projects.Count)
	assert.Equal(t, "docs", projects.Projects[0].Name)
	assert.Equal(t, 1, projects.Projects[0].IndexCount)

	indexes, _ := call[listIndexesOutput](t, cs, "list_indexes", map[string]any{"project_id": p.Data.ID})
	require.Equal(t, 1, indexes.Count)
	assert.Equal(t, 16, indexes.Indexes[0].Dimension)

	const text = "Restart the ingest worker before rotating keys."
	ingested, res := call[ingestTextOutput](t, cs, "ingest_text", map[string]any{
		"index_id": idx.Data.ID,
		"content":  text,
		"title":    "rotation.md",
	})
	require.False(t, res.IsError)
	assert.Equal(t, "rotation.md", ingested.Name)
	assert.Equal(t, 1, ingested.ChunkCount)

	hits, res := call[searchOutput](t, cs, "index_search", map[string]any{"index_id": idx.Data.ID, "query": text})
	require.False(t, res.IsError)
	require.Equal(t, 1, hits.Count)
	assert.Equal(t, text, hits.Results[0].Text)
	assert.Equal(t, "rotation.md", hits.Results[0].FileName)
	assert.Equal(t, "runbooks", hits.Results[0].IndexName)

	merged, res := call[searchOutput](t, cs, "project_search", map[string]any{"project_id": p.Data.ID, "query": text})
	require.False(t, res.IsError)
	assert.Equal(t, 1, merged.Count)
}

func TestTools_ErrorsAreToolResults(t *testing.T) {
	ctx := context.Background()
	cat := newTestCatalog(t)
	// Owned by someone else, so it must look missing.
	p := cat.CreateProject(ctx, "someone-else", catalog.CreateProjectInput{Name: "private"})
	require.True(t, p.Success)

	cs := connect(t, cat)

	_, res := call[listIndexesOutput](t, cs, "list_indexes", map[string]any{"project_id": p.Data.ID})
	require.True(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, catalog.CodeNotFound)
}
