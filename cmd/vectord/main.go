// Vectord serves the vectord catalog over HTTP, or over MCP stdio.
//
// Configuration comes from ~/.config/vectord/config.yaml (or --config),
// .env files and VECTORD_* environment variables.
//
// Usage:
//
//	# Start the HTTP API
//	vectord
//
//	# Serve MCP tools on stdin/stdout
//	vectord mcp
//
//	# Configure via environment
//	VECTORD_SERVER_PORT=9191 VECTORD_VECTORSTORE_PROVIDER=qdrant vectord
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/auth"
	"github.com/fyrsmithlabs/vectord/internal/config"
	"github.com/fyrsmithlabs/vectord/internal/http"
	"github.com/fyrsmithlabs/vectord/internal/logging"
	"github.com/fyrsmithlabs/vectord/internal/mcp"
	"github.com/fyrsmithlabs/vectord/internal/services"
	"github.com/fyrsmithlabs/vectord/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()
	args := flag.Args()

	mode := "serve"
	if len(args) > 0 {
		mode = args[0]
	}
	switch mode {
	case "serve", "mcp":
	case "version":
		printVersion(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintf(os.Stderr, "\nUsage:\n")
		fmt.Fprintf(os.Stderr, "  vectord [--config path]          Start the HTTP API\n")
		fmt.Fprintf(os.Stderr, "  vectord [--config path] mcp      Serve MCP tools on stdio\n")
		fmt.Fprintf(os.Stderr, "  vectord version                  Show version information\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	if mode == "mcp" {
		err = runStdio(ctx, cfg)
	} else {
		err = run(ctx, cfg)
	}
	if err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "vectord by Fyrsmith Labs\n")
	fmt.Fprintf(w, "Version:    %s\n", version)
	fmt.Fprintf(w, "Commit:     %s\n", gitCommit)
	fmt.Fprintf(w, "Build Date: %s\n", buildDate)
}

// runtime holds what both modes share.
type runtime struct {
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	registry  services.Registry
}

// start builds the logger, telemetry and service registry. Logs go to w.
func start(ctx context.Context, cfg *config.Config, w io.Writer) (*runtime, error) {
	cfg.Telemetry.ServiceVersion = version
	logger, err := logging.NewLoggerWriter(&cfg.Logging, w, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	tel, err := telemetry.New(ctx, &cfg.Telemetry, logger.Underlying())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	reg, err := services.Build(ctx, cfg, logger.Underlying())
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	return &runtime{logger: logger, telemetry: tel, registry: reg}, nil
}

// stop releases everything start acquired.
func (r *runtime) stop(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := r.registry.Close(); err != nil {
		r.logger.Warn(ctx, "closing services", zap.Error(err))
	}
	if err := r.telemetry.Shutdown(ctx); err != nil {
		r.logger.Warn(ctx, "telemetry shutdown", zap.Error(err))
	}
	_ = r.logger.Sync()
}

// run serves the HTTP API until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg *config.Config) error {
	rt, err := start(ctx, cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer rt.stop(cfg.Server.ShutdownTimeout.Duration())

	rt.logger.Info(ctx, "starting vectord",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.String("embeddings", cfg.Embeddings.Provider))

	srv, err := http.NewServer(rt.registry.Catalog(), rt.registry, rt.registry.Tokens(), rt.logger, &http.Config{
		Addr:           cfg.Server.Addr(),
		AuthRequired:   cfg.Auth.Required,
		MaxUploadBytes: cfg.Ingest.MaxUploadBytes,
		MetricsHandler: rt.telemetry.MetricsHandler(),
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	if interval := cfg.Ingest.ReconcileInterval.Duration(); interval > 0 {
		go rt.registry.Reconciler().Run(ctx, interval)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	rt.logger.Info(shutdownCtx, "server shutdown complete")
	return nil
}

// runStdio serves MCP tools on stdin/stdout. Logs go to stderr since stdout
// carries the protocol.
func runStdio(ctx context.Context, cfg *config.Config) error {
	rt, err := start(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer rt.stop(cfg.Server.ShutdownTimeout.Duration())

	owner, err := resolveOwner(ctx, cfg, rt.registry.Tokens())
	if err != nil {
		return err
	}
	ctx = logging.WithOwnerID(ctx, owner)

	srv, err := mcp.NewServer(&mcp.Config{
		Name:    "vectord",
		Version: version,
		Owner:   owner,
		Logger:  rt.logger.Underlying(),
	}, rt.registry.Catalog())
	if err != nil {
		return fmt.Errorf("failed to create mcp server: %w", err)
	}

	if interval := cfg.Ingest.ReconcileInterval.Duration(); interval > 0 {
		go rt.registry.Reconciler().Run(ctx, interval)
	}

	rt.logger.Info(ctx, "vectord mcp mode started", zap.String("version", version))
	return srv.Run(ctx)
}

// resolveOwner returns the owner of the configured token, or the local user.
func resolveOwner(ctx context.Context, cfg *config.Config, tokens *auth.Tokens) (string, error) {
	if !cfg.Auth.Token.IsSet() {
		return auth.LocalOwnerID(), nil
	}
	owner, err := tokens.Verify(ctx, cfg.Auth.Token.Value())
	if err != nil {
		return "", fmt.Errorf("auth.token: %w", err)
	}
	return owner, nil
}
