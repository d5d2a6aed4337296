package catalog

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/apperr"
	"github.com/fyrsmithlabs/vectord/internal/events"
	"github.com/fyrsmithlabs/vectord/internal/metadata"
	"github.com/fyrsmithlabs/vectord/internal/vectorstore"
)

// CreateIndexInput is the body of CreateIndex. Zero Dimension means the
// configured default.
type CreateIndexInput struct {
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Dimension int    `json:"dimension,omitempty"`
}

// CreateIndex creates the vector index and then its row. If the row cannot
// be written the vector index is dropped again.
func (c *Catalog) CreateIndex(ctx context.Context, owner string, in CreateIndexInput) Envelope[metadata.Index] {
	const op = "catalog.createIndex"
	if err := vectorstore.ValidateIndexName(in.Name); err != nil {
		return fail[metadata.Index](c.logger, apperr.Validation(op, MsgIndexName, err))
	}
	dim := in.Dimension
	if dim == 0 {
		dim = c.dimension
	}
	if dim < 0 {
		return fail[metadata.Index](c.logger, apperr.Validation(op, MsgDimension, nil))
	}

	if _, err := c.store.GetProject(ctx, owner, in.ProjectID); err != nil {
		return fail[metadata.Index](c.logger, storeErr(op, MsgProjectNotFound, err))
	}
	taken, err := c.store.IndexNameExists(ctx, in.Name)
	if err != nil {
		return fail[metadata.Index](c.logger, apperr.Dependency(op, apperr.DepMetadata, err))
	}
	if taken {
		return fail[metadata.Index](c.logger, apperr.Validation(op, MsgIndexNameTaken, nil))
	}

	if err := c.vectors.CreateIndex(ctx, in.Name, dim); err != nil {
		if errors.Is(err, vectorstore.ErrIndexExists) {
			return fail[metadata.Index](c.logger, apperr.Validation(op, MsgIndexNameTaken, err))
		}
		return fail[metadata.Index](c.logger, apperr.Dependency(op, apperr.DepVectorStore, err))
	}

	idx := metadata.Index{Name: in.Name, Dimension: dim, ProjectID: in.ProjectID}
	if err := c.store.CreateIndex(ctx, owner, &idx); err != nil {
		if derr := c.vectors.DeleteIndex(ctx, in.Name); derr != nil {
			c.logger.Warn("orphaned vector index after failed create",
				zap.String("kind", string(apperr.KindConsistency)),
				zap.String("index_name", in.Name),
				zap.Error(derr))
		}
		return fail[metadata.Index](c.logger, storeErr(op, MsgProjectNotFound, err))
	}
	return ok(idx, "Index created successfully")
}

// GetIndexList lists a project's indexes, newest first.
func (c *Catalog) GetIndexList(ctx context.Context, owner, projectID string) Envelope[[]metadata.Index] {
	indexes, err := c.store.ListIndexes(ctx, owner, projectID)
	if err != nil {
		return fail[[]metadata.Index](c.logger, storeErr("catalog.getIndexList", MsgProjectNotFound, err))
	}
	return ok(indexes, "")
}

// GetIndex returns one index.
func (c *Catalog) GetIndex(ctx context.Context, owner, id string) Envelope[metadata.Index] {
	idx, err := c.store.GetIndex(ctx, owner, id)
	if err != nil {
		return fail[metadata.Index](c.logger, storeErr("catalog.getIndex", MsgIndexNotFound, err))
	}
	return ok(idx, "")
}

// DeleteIndex drops the vector index and then the row with its files and chunks.
func (c *Catalog) DeleteIndex(ctx context.Context, owner, id string) Envelope[Deleted] {
	const op = "catalog.deleteIndex"
	idx, err := c.store.GetIndex(ctx, owner, id)
	if err != nil {
		return fail[Deleted](c.logger, storeErr(op, MsgIndexNotFound, err))
	}
	if err := c.vectors.DeleteIndex(ctx, idx.Name); err != nil {
		return fail[Deleted](c.logger, apperr.Dependency(op, apperr.DepVectorStore, err))
	}
	if err := c.store.DeleteIndex(ctx, owner, id); err != nil {
		return fail[Deleted](c.logger, storeErr(op, MsgIndexNotFound, err))
	}

	c.publish(ctx, events.Event{
		Type:      events.TypeIndexDeleted,
		OwnerID:   owner,
		ProjectID: idx.ProjectID,
		IndexID:   idx.ID,
		IndexName: idx.Name,
	})
	return ok(Deleted{ID: id}, "Index deleted successfully")
}
