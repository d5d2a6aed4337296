package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vectord/internal/catalog"
	"github.com/fyrsmithlabs/vectord/internal/search"
)

func newSearchCmd() *cobra.Command {
	var (
		project  bool
		topK     int
		minScore float64
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "search <indexId> <query>",
		Short: "Query an index, or a whole project with --project",
		Long: `Run a similarity query through the HTTP API.

Examples:
  vctl search 6f1c... "how do I rotate keys"
  vctl search --project 91ab... "on-call escalation" --top-k 10`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := remote()
			if err != nil {
				return err
			}
			query := strings.Join(args[1:], " ")

			var results []search.Result
			if project {
				var resp search.ProjectResponse
				err = client.postJSON(cmd.Context(), "/api/v1/projects/"+args[0]+"/search",
					catalog.SearchProjectInput{Query: query, TopK: topK, MinScore: minScore}, &resp)
				results = resp.Results
			} else {
				var resp search.IndexResponse
				err = client.postJSON(cmd.Context(), "/api/v1/indexes/"+args[0]+"/search",
					catalog.SearchIndexInput{Query: query, TopK: topK, MinScore: minScore}, &resp)
				results = resp.Results
			}
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			printResults(cmd.OutOrStdout(), results)
			return nil
		},
	}
	cmd.Flags().BoolVar(&project, "project", false, "treat the id as a project and search all its indexes")
	cmd.Flags().IntVar(&topK, "top-k", 0, "maximum results (server default when 0)")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "drop results scoring below this value")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw results as JSON")
	return cmd
}

func printResults(w io.Writer, results []search.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results")
		return
	}
	for i, r := range results {
		score := "   n/a"
		if r.Score != nil {
			score = fmt.Sprintf("%.4f", *r.Score)
		}
		fmt.Fprintf(w, "%d. [%s] %s / %s #%d\n", i+1, score, r.Index.Name, r.Chunk.File.Name, r.Chunk.ChunkIndex)
		fmt.Fprintf(w, "   %s\n", snippet(r.Chunk.Text, 160))
	}
}

func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	if r := []rune(text); len(r) > n {
		return string(r[:n]) + "..."
	}
	return text
}
