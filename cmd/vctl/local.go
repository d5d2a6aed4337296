package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/auth"
	"github.com/fyrsmithlabs/vectord/internal/config"
	"github.com/fyrsmithlabs/vectord/internal/ingest"
	"github.com/fyrsmithlabs/vectord/internal/journal"
	"github.com/fyrsmithlabs/vectord/internal/metadata"
	"github.com/fyrsmithlabs/vectord/internal/services"
	"github.com/fyrsmithlabs/vectord/internal/vectorstore"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply metadata schema migrations",
		Long: `Open the metadata database, applying any pending schema migrations,
and print the resulting schema version. Safe to run repeatedly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runMigrate(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
}

func runMigrate(ctx context.Context, cfg *config.Config, out io.Writer) error {
	store, err := metadata.Open(ctx, cfg.Storage.SQLitePath, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	v, err := store.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	fmt.Fprintf(out, "Metadata: %s\n", store.Path())
	fmt.Fprintf(out, "Schema version: %d\n", v)
	return nil
}

func newReconcileCmd() *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Remove vectors left behind by interrupted ingestions",
		Long: `Sweep the ingestion journal once. Intents older than the grace period
whose chunk rows were never written have their vectors deleted.

The journal is locked by a running server; stop it first or rely on its
periodic sweep (ingest.reconcile_interval).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("grace") {
				cfg.Ingest.ReconcileGrace = config.Duration(grace)
			}
			return runReconcile(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 0, "only sweep intents older than this (default from config)")
	return cmd
}

func runReconcile(ctx context.Context, cfg *config.Config, out io.Writer) error {
	logger := zap.NewNop()
	store, err := metadata.Open(ctx, cfg.Storage.SQLitePath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	j, err := journal.Open(cfg.Storage.JournalPath, logger)
	if err != nil {
		return err
	}
	defer j.Close()

	vectors, err := vectorstore.NewAdapter(services.VectorStoreConfig(cfg), logger)
	if err != nil {
		return err
	}
	defer vectors.Close()

	res, err := ingest.NewReconciler(j, store, vectors, cfg.Ingest.ReconcileGrace.Duration(), logger,
		ingest.WithRetention(cfg.Ingest.CompletedRetention.Duration())).Sweep(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func newTokenCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens",
		Long: `Manage API tokens in the local metadata database.

Tokens belong to --owner, which defaults to the local user's owner id
(the same id the server uses for unauthenticated local requests).`,
	}
	cmd.PersistentFlags().StringVar(&owner, "owner", "", "owner user id (default: local user)")

	withTokens := func(ctx context.Context, fn func(*auth.Tokens, string) error) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := metadata.Open(ctx, cfg.Storage.SQLitePath, nil)
		if err != nil {
			return err
		}
		defer store.Close()
		id := owner
		if id == "" {
			id = auth.LocalOwnerID()
		}
		return fn(auth.NewTokens(store, nil), id)
	}

	var expires time.Duration
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a token and print it once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTokens(cmd.Context(), func(t *auth.Tokens, id string) error {
				var exp *time.Time
				if expires > 0 {
					at := time.Now().Add(expires).UTC()
					exp = &at
				}
				issued, err := t.Create(cmd.Context(), id, args[0], exp)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Token %s (%s) created. It is shown only once:\n\n  %s\n",
					issued.Name, issued.ID, issued.Raw)
				return nil
			})
		},
	}
	create.Flags().DurationVar(&expires, "expires-in", 0, "expiry relative to now, e.g. 720h (default: never)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withTokens(cmd.Context(), func(t *auth.Tokens, id string) error {
				tokens, err := t.List(cmd.Context(), id)
				if err != nil {
					return err
				}
				printTokens(cmd.OutOrStdout(), tokens)
				return nil
			})
		},
	}

	var remove bool
	revoke := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Disable a token, or delete it with --delete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTokens(cmd.Context(), func(t *auth.Tokens, id string) error {
				if remove {
					if err := t.Delete(cmd.Context(), id, args[0]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Token %s deleted\n", args[0])
					return nil
				}
				if err := t.SetActive(cmd.Context(), id, args[0], false); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Token %s disabled\n", args[0])
				return nil
			})
		},
	}
	revoke.Flags().BoolVar(&remove, "delete", false, "delete the token instead of disabling it")

	cmd.AddCommand(create, list, revoke)
	return cmd
}

func printTokens(w io.Writer, tokens []metadata.APIToken) {
	if len(tokens) == 0 {
		fmt.Fprintln(w, "No tokens")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tACTIVE\tEXPIRES\tLAST USED")
	for _, t := range tokens {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", t.ID, t.Name, t.IsActive, formatTime(t.ExpiresAt), formatTime(t.LastUsedAt))
	}
	_ = tw.Flush()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.RFC3339)
}
