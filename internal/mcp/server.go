package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/catalog"
)

// Server is an MCP server backed by a catalog.
type Server struct {
	mcp     *mcp.Server
	catalog *catalog.Catalog
	owner   string
	metrics *toolMetrics
	logger  *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "vectord")
	Name string

	// Version is the server version (default: "dev")
	Version string

	// Owner is the user id every tool call acts as.
	Owner string

	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "vectord",
		Version: "dev",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates an MCP server and registers its tools.
func NewServer(cfg *Config, cat *catalog.Catalog) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cat == nil {
		return nil, errors.New("catalog is required")
	}
	if cfg.Owner == "" {
		return nil, errors.New("owner is required")
	}
	if cfg.Name == "" {
		cfg.Name = "vectord"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := &Server{
		mcp:     mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil),
		catalog: cat,
		owner:   cfg.Owner,
		metrics: defaultToolMetrics(cfg.Logger),
		logger:  cfg.Logger,
	}
	s.registerTools()
	return s, nil
}

// Run serves on the stdio transport until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Connect serves a single session on t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}
