package catalog

import (
	"context"

	"github.com/fyrsmithlabs/vectord/internal/search"
)

// SearchIndexInput is the body of SearchIndex. Zero TopK means the default.
type SearchIndexInput struct {
	IndexID  string  `json:"indexId"`
	Query    string  `json:"query"`
	TopK     int     `json:"topK,omitempty"`
	MinScore float64 `json:"minScore,omitempty"`
}

// SearchProjectInput is the body of SearchProject.
type SearchProjectInput struct {
	ProjectID string   `json:"projectId"`
	Query     string   `json:"query"`
	TopK      int      `json:"topK,omitempty"`
	MinScore  float64  `json:"minScore,omitempty"`
	IndexIDs  []string `json:"indexIds"`
}

// SearchIndex queries one index.
func (c *Catalog) SearchIndex(ctx context.Context, owner string, in SearchIndexInput) Envelope[search.IndexResponse] {
	resp, err := c.search.SearchIndex(ctx, search.IndexRequest{
		OwnerUserID: owner,
		IndexID:     in.IndexID,
		Query:       in.Query,
		TopK:        in.TopK,
		MinScore:    in.MinScore,
	})
	if err != nil {
		return fail[search.IndexResponse](c.logger, err)
	}
	return ok(resp, "")
}

// SearchProject queries the project's indexes and merges the results.
func (c *Catalog) SearchProject(ctx context.Context, owner string, in SearchProjectInput) Envelope[search.ProjectResponse] {
	resp, err := c.search.SearchProject(ctx, search.ProjectRequest{
		OwnerUserID: owner,
		ProjectID:   in.ProjectID,
		Query:       in.Query,
		TopK:        in.TopK,
		MinScore:    in.MinScore,
		IndexIDs:    in.IndexIDs,
	})
	if err != nil {
		return fail[search.ProjectResponse](c.logger, err)
	}
	return ok(resp, "")
}
