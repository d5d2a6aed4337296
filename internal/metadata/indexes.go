package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const indexColumns = `i.id, i.name, i.dimension, i.project_id, i.created_at,
	(SELECT COUNT(*) FROM files f WHERE f.index_id = i.id)`

// CreateIndex inserts idx under a project owned by owner.
func (s *Store) CreateIndex(ctx context.Context, owner string, idx *Index) error {
	if idx.Name == "" || idx.Dimension <= 0 {
		return fmt.Errorf("%w: index name and positive dimension are required", ErrInvalidArgument)
	}
	if idx.ID == "" {
		idx.ID = uuid.NewString()
	}
	idx.CreatedAt = time.Now().UTC()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM projects WHERE id = ? AND owner_user_id = ?", idx.ProjectID, owner).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("checking project: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO indexes (id, name, dimension, project_id, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			idx.ID, idx.Name, idx.Dimension, idx.ProjectID, toNanos(idx.CreatedAt))
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrIndexNameTaken, idx.Name)
		}
		if err != nil {
			return fmt.Errorf("inserting index: %w", err)
		}
		return nil
	})
}

// IndexNameExists reports whether any index, owned by anyone, uses name.
func (s *Store) IndexNameExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM indexes WHERE name = ?", name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking index name: %w", err)
	}
	return n > 0, nil
}

// ListIndexes returns a project's indexes, newest first.
func (s *Store) ListIndexes(ctx context.Context, owner, projectID string) ([]Index, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM projects WHERE id = ? AND owner_user_id = ?", projectID, owner).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checking project: %w", err)
	}
	return s.projectIndexes(ctx, projectID)
}

func (s *Store) projectIndexes(ctx context.Context, projectID string) ([]Index, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+indexColumns+`
		FROM indexes i
		WHERE i.project_id = ?
		ORDER BY i.created_at DESC, i.rowid DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying indexes: %w", err)
	}
	defer rows.Close()

	indexes := []Index{}
	for rows.Next() {
		idx, err := scanIndex(rows)
		if err != nil {
			return nil, err
		}
		indexes = append(indexes, idx)
	}
	return indexes, rows.Err()
}

// GetIndex returns an index whose project is owned by owner.
func (s *Store) GetIndex(ctx context.Context, owner, id string) (Index, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+indexColumns+`
		FROM indexes i
		JOIN projects p ON p.id = i.project_id
		WHERE i.id = ? AND p.owner_user_id = ?`, id, owner)
	return scanIndex(row)
}

// DeleteIndex removes the index row and, by cascade, its files and chunks.
func (s *Store) DeleteIndex(ctx context.Context, owner, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM indexes
		WHERE id = ? AND project_id IN (SELECT id FROM projects WHERE owner_user_id = ?)`, id, owner)
	if err != nil {
		return fmt.Errorf("deleting index: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanIndex(row scanner) (Index, error) {
	var (
		idx     Index
		created int64
	)
	err := row.Scan(&idx.ID, &idx.Name, &idx.Dimension, &idx.ProjectID, &created, &idx.FileCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Index{}, ErrNotFound
	}
	if err != nil {
		return Index{}, fmt.Errorf("scanning index: %w", err)
	}
	idx.CreatedAt = fromNanos(created)
	return idx, nil
}
