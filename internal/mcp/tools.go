package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/catalog"
	"github.com/fyrsmithlabs/vectord/internal/search"
)

// ToolError is returned by a tool whose catalog operation failed.
type ToolError struct {
	Code    string
	Message string
}

func (e *ToolError) Error() string {
	return e.Code + ": " + e.Message
}

// unwrap returns the envelope data, or a ToolError when it failed.
func unwrap[T any](env catalog.Envelope[T]) (T, error) {
	if !env.Success {
		var zero T
		return zero, &ToolError{Code: env.Error, Message: env.Message}
	}
	return env.Data, nil
}

// addTool registers a tool with metrics and a one-line text summary.
func addTool[In, Out any](s *Server, tool *mcp.Tool, run func(context.Context, In) (Out, string, error)) {
	mcp.AddTool(s.mcp, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		done := s.metrics.begin(ctx, tool.Name)
		out, summary, err := run(ctx, in)
		done(err)
		if err != nil {
			s.logger.Debug("tool failed", zap.String("tool", tool.Name), zap.Error(err))
			var zero Out
			return nil, zero, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: summary}},
		}, out, nil
	})
}

type searchHit struct {
	Score     *float32          `json:"score,omitempty" jsonschema:"Cosine similarity, absent when the store returned none"`
	Text      string            `json:"text"`
	ChunkID   string            `json:"chunk_id"`
	FileID    string            `json:"file_id"`
	FileName  string            `json:"file_name"`
	IndexID   string            `json:"index_id"`
	IndexName string            `json:"index_name"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type searchOutput struct {
	Query   string      `json:"query"`
	Results []searchHit `json:"results"`
	Count   int         `json:"count"`
}

func toHits(results []search.Result) []searchHit {
	hits := make([]searchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, searchHit{
			Score:     r.Score,
			Text:      r.Chunk.Text,
			ChunkID:   r.Chunk.ID,
			FileID:    r.Chunk.File.ID,
			FileName:  r.Chunk.File.Name,
			IndexID:   r.Index.ID,
			IndexName: r.Index.Name,
			Metadata:  r.Metadata,
		})
	}
	return hits
}

type indexSearchInput struct {
	IndexID  string  `json:"index_id" jsonschema:"Index to search"`
	Query    string  `json:"query" jsonschema:"Natural language query"`
	TopK     int     `json:"top_k,omitempty" jsonschema:"Maximum results (default 5)"`
	MinScore float64 `json:"min_score,omitempty" jsonschema:"Drop results scoring below this value"`
}

type projectSearchInput struct {
	ProjectID string   `json:"project_id" jsonschema:"Project to search"`
	Query     string   `json:"query" jsonschema:"Natural language query"`
	TopK      int      `json:"top_k,omitempty" jsonschema:"Maximum results across all indexes (default 10)"`
	MinScore  float64  `json:"min_score,omitempty" jsonschema:"Drop results scoring below this value"`
	IndexIDs  []string `json:"index_ids,omitempty" jsonschema:"Restrict the search to these indexes of the project"`
}

type ingestTextInput struct {
	IndexID  string            `json:"index_id" jsonschema:"Index that receives the text"`
	Content  string            `json:"content" jsonschema:"Text to chunk and embed"`
	Title    string            `json:"title,omitempty" jsonschema:"File name recorded for the text"`
	Metadata map[string]string `json:"metadata,omitempty" jsonschema:"String metadata copied onto every chunk"`
}

type ingestTextOutput struct {
	FileID     string `json:"file_id"`
	Name       string `json:"name"`
	ChunkCount int    `json:"chunk_count"`
}

type listProjectsInput struct{}

type projectSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IndexCount  int    `json:"index_count"`
	UpdatedAt   string `json:"updated_at"`
}

type listProjectsOutput struct {
	Projects []projectSummary `json:"projects"`
	Count    int              `json:"count"`
}

type listIndexesInput struct {
	ProjectID string `json:"project_id" jsonschema:"Project whose indexes to list"`
}

type indexSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	FileCount int    `json:"file_count"`
}

type listIndexesOutput struct {
	Indexes []indexSummary `json:"indexes"`
	Count   int            `json:"count"`
}

func (s *Server) registerTools() {
	addTool(s, &mcp.Tool{
		Name:        "index_search",
		Description: "Semantic search over the chunks of one index. Results are ordered by similarity.",
	}, func(ctx context.Context, in indexSearchInput) (searchOutput, string, error) {
		resp, err := unwrap(s.catalog.SearchIndex(ctx, s.owner, catalog.SearchIndexInput{
			IndexID:  in.IndexID,
			Query:    in.Query,
			TopK:     in.TopK,
			MinScore: in.MinScore,
		}))
		if err != nil {
			return searchOutput{}, "", err
		}
		out := searchOutput{Query: resp.Query, Results: toHits(resp.Results), Count: resp.TotalResults}
		return out, fmt.Sprintf("Found %d results for query: %s", out.Count, out.Query), nil
	})

	addTool(s, &mcp.Tool{
		Name:        "project_search",
		Description: "Semantic search across every index of a project, merged into one ranking.",
	}, func(ctx context.Context, in projectSearchInput) (searchOutput, string, error) {
		resp, err := unwrap(s.catalog.SearchProject(ctx, s.owner, catalog.SearchProjectInput{
			ProjectID: in.ProjectID,
			Query:     in.Query,
			TopK:      in.TopK,
			MinScore:  in.MinScore,
			IndexIDs:  in.IndexIDs,
		}))
		if err != nil {
			return searchOutput{}, "", err
		}
		out := searchOutput{Query: resp.Query, Results: toHits(resp.Results), Count: resp.TotalResults}
		return out, fmt.Sprintf("Found %d results in %d indexes for query: %s",
			out.Count, len(resp.SearchedIndexes), out.Query), nil
	})

	addTool(s, &mcp.Tool{
		Name:        "ingest_text",
		Description: "Store text in an index. The text is redacted, chunked and embedded.",
	}, func(ctx context.Context, in ingestTextInput) (ingestTextOutput, string, error) {
		res, err := unwrap(s.catalog.IngestText(ctx, s.owner, catalog.IngestTextInput{
			IndexID:  in.IndexID,
			Content:  in.Content,
			Title:    in.Title,
			Metadata: in.Metadata,
		}))
		if err != nil {
			return ingestTextOutput{}, "", err
		}
		out := ingestTextOutput{FileID: res.FileID, Name: res.Name, ChunkCount: res.ChunkCount}
		return out, fmt.Sprintf("Stored %s as %d chunks", out.Name, out.ChunkCount), nil
	})

	addTool(s, &mcp.Tool{
		Name:        "list_projects",
		Description: "List your projects, most recently updated first.",
	}, func(ctx context.Context, _ listProjectsInput) (listProjectsOutput, string, error) {
		projects, err := unwrap(s.catalog.GetProjectList(ctx, s.owner))
		if err != nil {
			return listProjectsOutput{}, "", err
		}
		out := listProjectsOutput{Projects: make([]projectSummary, 0, len(projects))}
		for _, p := range projects {
			out.Projects = append(out.Projects, projectSummary{
				ID:          p.ID,
				Name:        p.Name,
				Description: p.Description,
				IndexCount:  p.IndexCount,
				UpdatedAt:   p.UpdatedAt.Format(time.RFC3339),
			})
		}
		out.Count = len(out.Projects)
		return out, fmt.Sprintf("%d projects", out.Count), nil
	})

	addTool(s, &mcp.Tool{
		Name:        "list_indexes",
		Description: "List the indexes of a project.",
	}, func(ctx context.Context, in listIndexesInput) (listIndexesOutput, string, error) {
		indexes, err := unwrap(s.catalog.GetIndexList(ctx, s.owner, in.ProjectID))
		if err != nil {
			return listIndexesOutput{}, "", err
		}
		out := listIndexesOutput{Indexes: make([]indexSummary, 0, len(indexes))}
		for _, idx := range indexes {
			out.Indexes = append(out.Indexes, indexSummary{
				ID:        idx.ID,
				Name:      idx.Name,
				Dimension: idx.Dimension,
				FileCount: idx.FileCount,
			})
		}
		out.Count = len(out.Indexes)
		return out, fmt.Sprintf("%d indexes", out.Count), nil
	})
}
