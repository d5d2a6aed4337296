package catalog

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/apperr"
	"github.com/fyrsmithlabs/vectord/internal/events"
	"github.com/fyrsmithlabs/vectord/internal/metadata"
)

// CreateProjectInput is the body of CreateProject.
type CreateProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CreateProject creates a project owned by owner.
func (c *Catalog) CreateProject(ctx context.Context, owner string, in CreateProjectInput) Envelope[metadata.Project] {
	p := metadata.Project{Name: in.Name, Description: in.Description, OwnerUserID: owner}
	if err := c.store.CreateProject(ctx, &p); err != nil {
		return fail[metadata.Project](c.logger, storeErr("catalog.createProject", MsgProjectNotFound, err))
	}
	return ok(p, "Project created successfully")
}

// GetProjectList lists the owner's projects, most recently updated first.
func (c *Catalog) GetProjectList(ctx context.Context, owner string) Envelope[[]metadata.Project] {
	projects, err := c.store.ListProjects(ctx, owner)
	if err != nil {
		return fail[[]metadata.Project](c.logger, storeErr("catalog.getProjectList", MsgProjectNotFound, err))
	}
	return ok(projects, "")
}

// GetProject returns a project with its indexes.
func (c *Catalog) GetProject(ctx context.Context, owner, id string) Envelope[metadata.ProjectDetail] {
	p, err := c.store.GetProject(ctx, owner, id)
	if err != nil {
		return fail[metadata.ProjectDetail](c.logger, storeErr("catalog.getProject", MsgProjectNotFound, err))
	}
	return ok(p, "")
}

// UpdateProject changes the name or description of a project.
func (c *Catalog) UpdateProject(ctx context.Context, owner, id string, u metadata.ProjectUpdate) Envelope[metadata.Project] {
	p, err := c.store.UpdateProject(ctx, owner, id, u)
	if err != nil {
		return fail[metadata.Project](c.logger, storeErr("catalog.updateProject", MsgProjectNotFound, err))
	}
	return ok(p, "Project updated successfully")
}

// DeleteProject removes a project, its rows and every vector index it owns.
// Vector indexes are dropped first so a failure leaves the project
// visible and the delete retryable.
func (c *Catalog) DeleteProject(ctx context.Context, owner, id string) Envelope[Deleted] {
	const op = "catalog.deleteProject"
	p, err := c.store.GetProject(ctx, owner, id)
	if err != nil {
		return fail[Deleted](c.logger, storeErr(op, MsgProjectNotFound, err))
	}

	for _, idx := range p.Indexes {
		if err := c.vectors.DeleteIndex(ctx, idx.Name); err != nil {
			return fail[Deleted](c.logger, apperr.Dependency(op, apperr.DepVectorStore, err))
		}
	}
	if err := c.store.DeleteProject(ctx, owner, id); err != nil {
		return fail[Deleted](c.logger, storeErr(op, MsgProjectNotFound, err))
	}

	c.logger.Info("project deleted", zap.String("project_id", id), zap.Int("indexes", len(p.Indexes)))
	c.publish(ctx, events.Event{Type: events.TypeProjectDeleted, OwnerID: owner, ProjectID: id})
	return ok(Deleted{ID: id}, "Project deleted successfully")
}
