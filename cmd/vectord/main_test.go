package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/vectord/internal/auth"
	"github.com/fyrsmithlabs/vectord/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.DataDir = t.TempDir()
	cfg.VectorStore.Provider = "memory"
	cfg.Embeddings.Provider = "fake"
	cfg.Embeddings.Dimension = 8
	cfg.Telemetry.Enabled = false
	require.NoError(t, cfg.Resolve())
	return cfg
}

func TestPrintVersion(t *testing.T) {
	var buf bytes.Buffer
	printVersion(&buf)
	assert.Contains(t, buf.String(), "Version:    "+version)
}

func TestResolveOwner(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	var logs bytes.Buffer
	rt, err := start(ctx, cfg, &logs)
	require.NoError(t, err)
	defer rt.stop(cfg.Server.ShutdownTimeout.Duration())

	owner, err := resolveOwner(ctx, cfg, rt.registry.Tokens())
	require.NoError(t, err)
	assert.Equal(t, auth.LocalOwnerID(), owner)

	issued, err := rt.registry.Tokens().Create(ctx, "agent-owner", "mcp", nil)
	require.NoError(t, err)
	cfg.Auth.Token = config.Secret(issued.Raw)
	owner, err = resolveOwner(ctx, cfg, rt.registry.Tokens())
	require.NoError(t, err)
	assert.Equal(t, "agent-owner", owner)

	cfg.Auth.Token = config.Secret(auth.TokenPrefix + "bogus")
	_, err = resolveOwner(ctx, cfg, rt.registry.Tokens())
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Port = 0
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx, cfg) }()
	cancel()
	assert.NoError(t, <-errCh)
}
