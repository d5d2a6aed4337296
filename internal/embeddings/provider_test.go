package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name      string
		cfg       ProviderConfig
		wantError bool
		wantDim   int
	}{
		{
			name:    "tei provider with valid config",
			cfg:     ProviderConfig{Provider: ProviderTEI, BaseURL: "http://localhost:8080", Model: "BAAI/bge-small-en-v1.5"},
			wantDim: 384,
		},
		{
			name:      "tei provider without base URL",
			cfg:       ProviderConfig{Provider: ProviderTEI, Model: "BAAI/bge-small-en-v1.5"},
			wantError: true,
		},
		{
			name:    "openai provider with explicit dimension",
			cfg:     ProviderConfig{Provider: ProviderOpenAI, Model: "text-embedding-3-small", APIKey: "sk-test", Dimension: 512},
			wantDim: 512,
		},
		{
			name:    "fake provider",
			cfg:     ProviderConfig{Provider: ProviderFake, Dimension: 16},
			wantDim: 16,
		},
		{
			name:    "openai provider detects dimension",
			cfg:     ProviderConfig{Provider: ProviderOpenAI, Model: "text-embedding-3-small", APIKey: "sk-test"},
			wantDim: 1536,
		},
		{
			name:      "unknown provider",
			cfg:       ProviderConfig{Provider: "unknown"},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.cfg)
			if tt.wantError {
				require.Error(t, err)
				assert.Nil(t, provider)
				return
			}
			require.NoError(t, err)
			defer provider.Close()
			assert.Equal(t, tt.wantDim, provider.Dimension())
		})
	}
}

func TestDetectDimensionFromModel(t *testing.T) {
	assert.Equal(t, 384, detectDimensionFromModel("BAAI/bge-small-en-v1.5"))
	assert.Equal(t, 3072, detectDimensionFromModel("text-embedding-3-large"))
	assert.Equal(t, 1536, detectDimensionFromModel("text-embedding-ada-002"))
	assert.Equal(t, 768, detectDimensionFromModel("nomic-embed-text-base"))
	assert.Equal(t, 1536, detectDimensionFromModel(""))
}

func TestTEIProvider(t *testing.T) {
	var gotInputs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req teiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Truncate)
		gotInputs = req.Inputs

		out := make([][]float32, len(req.Inputs))
		for i := range out {
			out[i] = []float32{float32(i), 1, 2}
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL + "/", APIKey: "secret", Dimension: 3})
	require.NoError(t, err)

	vectors, err := p.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, gotInputs)
	assert.Equal(t, [][]float32{{0, 1, 2}, {1, 1, 2}}, vectors)

	v, err := p.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 2}, v)

	_, err = p.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestTEIProvider_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL, Dimension: 3})
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "503")
}
