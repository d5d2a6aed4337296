package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vectord/internal/ignore"
	"github.com/fyrsmithlabs/vectord/internal/ingest"
)

const defaultTimeout = 2 * time.Minute

type ingestOptions struct {
	root      string
	noIgnore  bool
	dryRun    bool
	failFast  bool
	metadata  map[string]string
	quiet     bool
	perFileTO time.Duration
}

func newIngestCmd() *cobra.Command {
	opts := ingestOptions{}
	cmd := &cobra.Command{
		Use:   "ingest <indexId> <glob>",
		Short: "Upload every file matching a glob into an index",
		Long: `Upload files matching a doublestar glob into an index through the HTTP API.

Paths matched by .gitignore, .vectordignore and the built-in excludes
(.git, node_modules, vendor, __pycache__) are skipped.

Examples:
  # Upload all markdown under the current directory
  vctl ingest 6f1c... '**/*.md'

  # Upload from another root, tagging every chunk
  vctl ingest 6f1c... 'docs/**/*.{md,txt}' --root ~/src/handbook --meta team=platform`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := remote()
			if err != nil {
				return err
			}
			_, err = runIngest(cmd.Context(), client, args[0], args[1], opts, cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().StringVar(&opts.root, "root", ".", "directory the glob is relative to")
	cmd.Flags().BoolVar(&opts.noIgnore, "no-ignore", false, "do not apply ignore files or default excludes")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "list the files that would be uploaded")
	cmd.Flags().BoolVar(&opts.failFast, "fail-fast", false, "stop at the first failed upload")
	cmd.Flags().StringToStringVar(&opts.metadata, "meta", nil, "metadata key=value copied onto every chunk")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "hide the progress bar")
	cmd.Flags().DurationVar(&opts.perFileTO, "file-timeout", defaultTimeout, "timeout per upload")
	return cmd
}

// ingestSummary reports a bulk upload.
type ingestSummary struct {
	Files    int
	Uploaded int
	Chunks   int
	Failed   map[string]error
}

func runIngest(ctx context.Context, client *apiClient, indexID, pattern string, opts ingestOptions, out io.Writer) (ingestSummary, error) {
	sum := ingestSummary{Failed: map[string]error{}}

	var matcher *ignore.Matcher
	if !opts.noIgnore {
		m, err := ignore.Load(opts.root)
		if err != nil {
			return sum, err
		}
		matcher = m
	}
	files, err := ignore.Select(opts.root, pattern, matcher)
	if err != nil {
		return sum, err
	}
	sum.Files = len(files)
	if len(files) == 0 {
		fmt.Fprintf(out, "No files match %s under %s\n", pattern, opts.root)
		return sum, nil
	}
	if opts.dryRun {
		for _, f := range files {
			fmt.Fprintln(out, f)
		}
		fmt.Fprintf(out, "%d files would be uploaded\n", len(files))
		return sum, nil
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(out),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetVisibility(!opts.quiet),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Uploading[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(out) }),
	)

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		bar.Describe("[cyan]Uploading[reset] " + rel)
		res, err := uploadFile(ctx, client, indexID, opts, rel)
		if err != nil {
			sum.Failed[rel] = err
			var apiErr *APIError
			if opts.failFast || (errors.As(err, &apiErr) && apiErr.Status == 401) {
				_ = bar.Exit()
				return sum, fmt.Errorf("uploading %s: %w", rel, err)
			}
		} else {
			sum.Uploaded++
			sum.Chunks += res.ChunkCount
		}
		_ = bar.Add(1)
	}

	fmt.Fprintf(out, "Uploaded %d/%d files (%d chunks)\n", sum.Uploaded, sum.Files, sum.Chunks)
	for rel, err := range sum.Failed {
		fmt.Fprintf(out, "  failed %s: %v\n", rel, err)
	}
	if len(sum.Failed) > 0 {
		return sum, fmt.Errorf("%d uploads failed", len(sum.Failed))
	}
	return sum, nil
}

func uploadFile(ctx context.Context, client *apiClient, indexID string, opts ingestOptions, rel string) (ingest.Result, error) {
	var res ingest.Result
	data, err := os.ReadFile(filepath.Join(opts.root, filepath.FromSlash(rel)))
	if err != nil {
		return res, err
	}
	ctx, cancel := context.WithTimeout(ctx, opts.perFileTO)
	defer cancel()

	meta := map[string]string{"path": rel}
	for k, v := range opts.metadata {
		meta[k] = v
	}
	err = client.upload(ctx, indexID, filepath.Base(rel), data, meta, &res)
	return res, err
}
