// Package main implements vctl, the operator CLI for vectord.
//
// Local commands (migrate, reconcile, token) open the data directory
// directly. Remote commands (ingest, search) go through the HTTP API.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vectord/internal/config"
)

var (
	configPath string
	serverURL  string
	apiToken   string
	version    = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vctl",
		Short: "Operate a vectord installation",
		Long: `vctl manages a vectord installation.

Local commands read the same configuration as the server
(~/.config/vectord/config.yaml, .env and VECTORD_* variables).
Remote commands talk to the HTTP API at --server.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")
	root.PersistentFlags().StringVar(&serverURL, "server", "", "vectord server URL (default from server.host/port)")
	root.PersistentFlags().StringVar(&apiToken, "token", "", "API token (default from auth.token)")

	root.AddCommand(newMigrateCmd(), newReconcileCmd(), newTokenCmd(), newIngestCmd(), newSearchCmd())
	return root
}

// loadConfig reads the configuration the server would use.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// remote returns an API client from flags, falling back to the config.
func remote() (*apiClient, error) {
	base, token := serverURL, apiToken
	if base == "" || token == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		if base == "" {
			base = "http://" + cfg.Server.Addr()
		}
		if token == "" {
			token = cfg.Auth.Token.Value()
		}
	}
	return newAPIClient(strings.TrimRight(base, "/"), token), nil
}
