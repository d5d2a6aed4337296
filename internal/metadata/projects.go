package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateProject inserts p, assigning ID and timestamps.
func (s *Store) CreateProject(ctx context.Context, p *Project) error {
	if strings.TrimSpace(p.Name) == "" || p.OwnerUserID == "" {
		return fmt.Errorf("%w: project name and owner are required", ErrInvalidArgument)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, owner_user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, nullString(p.Description), p.OwnerUserID, toNanos(now), toNanos(now))
	if err != nil {
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

// ListProjects returns the owner's projects, most recently updated first.
func (s *Store) ListProjects(ctx context.Context, owner string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.description, p.owner_user_id, p.created_at, p.updated_at,
		       (SELECT COUNT(*) FROM indexes i WHERE i.project_id = p.id)
		FROM projects p
		WHERE p.owner_user_id = ?
		ORDER BY p.updated_at DESC, p.rowid DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetProject returns the project with its indexes.
func (s *Store) GetProject(ctx context.Context, owner, id string) (ProjectDetail, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.name, p.description, p.owner_user_id, p.created_at, p.updated_at,
		       (SELECT COUNT(*) FROM indexes i WHERE i.project_id = p.id)
		FROM projects p
		WHERE p.id = ? AND p.owner_user_id = ?`, id, owner)
	p, err := scanProject(row)
	if err != nil {
		return ProjectDetail{}, err
	}

	indexes, err := s.projectIndexes(ctx, id)
	if err != nil {
		return ProjectDetail{}, err
	}
	return ProjectDetail{Project: p, Indexes: indexes}, nil
}

// UpdateProject applies u and bumps UpdatedAt.
func (s *Store) UpdateProject(ctx context.Context, owner, id string, u ProjectUpdate) (Project, error) {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return Project{}, fmt.Errorf("%w: project name cannot be empty", ErrInvalidArgument)
	}

	sets := []string{"updated_at = ?"}
	args := []any{toNanos(time.Now())}
	if u.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *u.Name)
	}
	if u.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullString(*u.Description))
	}
	args = append(args, id, owner)

	res, err := s.db.ExecContext(ctx,
		"UPDATE projects SET "+strings.Join(sets, ", ")+" WHERE id = ? AND owner_user_id = ?", args...)
	if err != nil {
		return Project{}, fmt.Errorf("updating project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Project{}, ErrNotFound
	}

	detail, err := s.GetProject(ctx, owner, id)
	if err != nil {
		return Project{}, err
	}
	return detail.Project, nil
}

// DeleteProject removes the project and, by cascade, its indexes, files and chunks.
func (s *Store) DeleteProject(ctx context.Context, owner, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ? AND owner_user_id = ?", id, owner)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (Project, error) {
	var (
		p                Project
		desc             sql.NullString
		created, updated int64
	)
	err := row.Scan(&p.ID, &p.Name, &desc, &p.OwnerUserID, &created, &updated, &p.IndexCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, ErrNotFound
	}
	if err != nil {
		return Project{}, fmt.Errorf("scanning project: %w", err)
	}
	p.Description = desc.String
	p.CreatedAt = fromNanos(created)
	p.UpdatedAt = fromNanos(updated)
	return p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
