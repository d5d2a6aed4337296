package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/vectord/internal/auth"
	"github.com/fyrsmithlabs/vectord/internal/catalog"
	"github.com/fyrsmithlabs/vectord/internal/config"
	vhttp "github.com/fyrsmithlabs/vectord/internal/http"
	"github.com/fyrsmithlabs/vectord/internal/logging"
	"github.com/fyrsmithlabs/vectord/internal/search"
	"github.com/fyrsmithlabs/vectord/internal/services"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.DataDir = t.TempDir()
	cfg.VectorStore.Provider = "memory"
	cfg.Embeddings.Provider = "fake"
	cfg.Embeddings.Dimension = 8
	require.NoError(t, cfg.Resolve())
	return cfg
}

// testAPI serves a real catalog and returns a client holding a valid token
// plus the id of an empty index.
func testAPI(t *testing.T) (*apiClient, string) {
	t.Helper()
	ctx := context.Background()
	reg, err := services.Build(ctx, testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	srv, err := vhttp.NewServer(reg.Catalog(), reg, reg.Tokens(), logging.Nop(), &vhttp.Config{AuthRequired: true})
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	issued, err := reg.Tokens().Create(ctx, "operator", "vctl", nil)
	require.NoError(t, err)

	cat := reg.Catalog()
	p := cat.CreateProject(ctx, "operator", catalog.CreateProjectInput{Name: "docs"})
	require.True(t, p.Success)
	idx := cat.CreateIndex(ctx, "operator", catalog.CreateIndexInput{ProjectID: p.Data.ID, Name: "handbook"})
	require.True(t, idx.Success, idx.Message)

	return newAPIClient(ts.URL, issued.Raw), idx.Data.ID
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func TestRunIngest(t *testing.T) {
	client, indexID := testAPI(t)
	root := writeTree(t, map[string]string{
		".gitignore":           "drafts/\n",
		"guide.md":             "# Guide\n\nDeploys happen on Tuesdays.",
		"ops/oncall.md":        "Page the secondary after fifteen minutes.",
		"drafts/unfinished.md": "not yet",
		"notes.txt":            "ignored by the glob",
	})

	var out bytes.Buffer
	sum, err := runIngest(context.Background(), client, indexID, "**/*.md",
		ingestOptions{root: root, quiet: true, perFileTO: defaultTimeout, metadata: map[string]string{"team": "ops"}}, &out)
	require.NoError(t, err, out.String())
	assert.Equal(t, 2, sum.Files)
	assert.Equal(t, 2, sum.Uploaded)
	assert.Positive(t, sum.Chunks)
	assert.Contains(t, out.String(), "Uploaded 2/2 files")

	var resp search.IndexResponse
	require.NoError(t, client.postJSON(context.Background(), "/api/v1/indexes/"+indexID+"/search",
		catalog.SearchIndexInput{Query: "Page the secondary after fifteen minutes.", TopK: 1}, &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "oncall.md", resp.Results[0].Chunk.File.Name)
	assert.Equal(t, "ops/oncall.md", resp.Results[0].Metadata["path"])
	assert.Equal(t, "ops", resp.Results[0].Metadata["team"])
}

func TestRunIngest_DryRun(t *testing.T) {
	root := writeTree(t, map[string]string{"a.md": "a", "b/c.md": "c"})

	var out bytes.Buffer
	sum, err := runIngest(context.Background(), newAPIClient("http://127.0.0.1:1", ""), "idx", "**/*.md",
		ingestOptions{root: root, dryRun: true}, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Files)
	assert.Contains(t, out.String(), "b/c.md")
}

func TestRunIngest_Unauthorized(t *testing.T) {
	client, indexID := testAPI(t)
	client.token = auth.TokenPrefix + "wrong"
	root := writeTree(t, map[string]string{"a.md": "a", "b.md": "b"})

	sum, err := runIngest(context.Background(), client, indexID, "*.md",
		ingestOptions{root: root, quiet: true, perFileTO: defaultTimeout}, &bytes.Buffer{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, vhttp.CodeUnauthorized, apiErr.Code)
	assert.Len(t, sum.Failed, 1, "stops at the first unauthorized upload")
}

func TestAPIClient_NotFound(t *testing.T) {
	client, _ := testAPI(t)
	var resp search.IndexResponse
	err := client.postJSON(context.Background(), "/api/v1/indexes/missing/search",
		catalog.SearchIndexInput{Query: "x"}, &resp)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)
	assert.Equal(t, catalog.CodeNotFound, apiErr.Code)
}

func TestRunMigrate(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runMigrate(context.Background(), testConfig(t), &out))
	assert.Contains(t, out.String(), "Schema version: ")
	assert.NotContains(t, out.String(), "Schema version: 0")
}

func TestRunReconcile(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runReconcile(context.Background(), testConfig(t), &out))
	assert.Contains(t, out.String(), `"examined": 0`)
}

func TestPrintResults(t *testing.T) {
	var out bytes.Buffer
	printResults(&out, nil)
	assert.Equal(t, "No results\n", out.String())

	score := float32(0.8123)
	out.Reset()
	r := search.Result{Score: &score, Index: search.IndexRef{Name: "handbook"}}
	r.Chunk.Text = "line one\n\nline   two"
	r.Chunk.File.Name = "guide.md"
	printResults(&out, []search.Result{r, {Index: search.IndexRef{Name: "other"}}})
	assert.Contains(t, out.String(), "1. [0.8123] handbook / guide.md #0")
	assert.Contains(t, out.String(), "line one line two")
	assert.Contains(t, out.String(), "2. [   n/a] other")
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "abc", snippet("  abc ", 10))
	assert.Equal(t, "ab...", snippet("abcdef", 2))
}
