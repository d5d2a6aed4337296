package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateFile inserts f and all of its chunks in one transaction. Chunk
// indexes must be exactly 0..len(chunks)-1.
func (s *Store) CreateFile(ctx context.Context, f *File, chunks []Chunk) error {
	if f.IndexID == "" || f.Name == "" {
		return fmt.Errorf("%w: file name and index are required", ErrInvalidArgument)
	}
	for i, c := range chunks {
		if c.ChunkIndex != i {
			return fmt.Errorf("%w: chunk %d has index %d", ErrInvalidArgument, i, c.ChunkIndex)
		}
		if c.VectorID == "" {
			return fmt.Errorf("%w: chunk %d has no vector id", ErrInvalidArgument, i)
		}
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO files (id, name, size, mime_type, index_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			f.ID, f.Name, f.Size, f.MimeType, f.IndexID, toNanos(f.CreatedAt)); err != nil {
			return fmt.Errorf("inserting file: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (id, file_id, chunk_index, text, vector_id, metadata)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing chunk insert: %w", err)
		}
		defer stmt.Close()

		for i := range chunks {
			c := &chunks[i]
			if c.ID == "" {
				c.ID = uuid.NewString()
			}
			c.FileID = f.ID
			meta, err := encodeMetadata(c.Metadata)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, c.ID, f.ID, c.ChunkIndex, c.Text, c.VectorID, meta); err != nil {
				return fmt.Errorf("inserting chunk %d: %w", c.ChunkIndex, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	f.ChunkCount = len(chunks)
	return nil
}

// ListFiles returns an index's files, newest first.
func (s *Store) ListFiles(ctx context.Context, owner, indexID string) ([]File, error) {
	if _, err := s.GetIndex(ctx, owner, indexID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.name, f.size, f.mime_type, f.index_id, f.created_at,
		       (SELECT COUNT(*) FROM chunks c WHERE c.file_id = f.id)
		FROM files f
		WHERE f.index_id = ?
		ORDER BY f.created_at DESC, f.rowid DESC`, indexID)
	if err != nil {
		return nil, fmt.Errorf("querying files: %w", err)
	}
	defer rows.Close()

	files := []File{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// GetFile returns a file with its index and ordered chunks.
func (s *Store) GetFile(ctx context.Context, owner, id string) (FileDetail, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT f.id, f.name, f.size, f.mime_type, f.index_id, f.created_at,
		       (SELECT COUNT(*) FROM chunks c WHERE c.file_id = f.id)
		FROM files f
		JOIN indexes i ON i.id = f.index_id
		JOIN projects p ON p.id = i.project_id
		WHERE f.id = ? AND p.owner_user_id = ?`, id, owner)
	f, err := scanFile(row)
	if err != nil {
		return FileDetail{}, err
	}

	idx, err := s.GetIndex(ctx, owner, f.IndexID)
	if err != nil {
		return FileDetail{}, err
	}
	chunks, err := s.fileChunks(ctx, id)
	if err != nil {
		return FileDetail{}, err
	}
	return FileDetail{File: f, Index: idx, Chunks: chunks}, nil
}

// FileChunks returns a file's chunks ordered by chunk index.
func (s *Store) FileChunks(ctx context.Context, owner, fileID string) ([]Chunk, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM files f
		JOIN indexes i ON i.id = f.index_id
		JOIN projects p ON p.id = i.project_id
		WHERE f.id = ? AND p.owner_user_id = ?`, fileID, owner).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checking file: %w", err)
	}
	return s.fileChunks(ctx, fileID)
}

func (s *Store) fileChunks(ctx context.Context, fileID string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_id, chunk_index, text, vector_id, metadata
		FROM chunks WHERE file_id = ?
		ORDER BY chunk_index ASC`, fileID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	chunks := []Chunk{}
	for rows.Next() {
		var (
			c    Chunk
			meta sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.FileID, &c.ChunkIndex, &c.Text, &c.VectorID, &meta); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if c.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// DeleteFile removes a file and its chunks.
func (s *Store) DeleteFile(ctx context.Context, owner, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM files
		WHERE id = ? AND index_id IN (
			SELECT i.id FROM indexes i
			JOIN projects p ON p.id = i.project_id
			WHERE p.owner_user_id = ?)`, id, owner)
	if err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ChunksByVectorIDs resolves vector ids within one index. Ids with no chunk
// row are absent from the result.
func (s *Store) ChunksByVectorIDs(ctx context.Context, indexID string, vectorIDs []string) (map[string]ChunkRef, error) {
	out := make(map[string]ChunkRef, len(vectorIDs))
	if len(vectorIDs) == 0 {
		return out, nil
	}

	args := append([]any{indexID}, stringArgs(vectorIDs)...)
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.vector_id, c.id, c.text, c.chunk_index, c.metadata, f.id, f.name
		FROM chunks c
		JOIN files f ON f.id = c.file_id
		WHERE f.index_id = ? AND c.vector_id IN (`+placeholders(len(vectorIDs))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks by vector id: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			vectorID string
			ref      ChunkRef
			meta     sql.NullString
		)
		if err := rows.Scan(&vectorID, &ref.ID, &ref.Text, &ref.ChunkIndex, &meta, &ref.File.ID, &ref.File.Name); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if ref.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, err
		}
		out[vectorID] = ref
	}
	return out, rows.Err()
}

// ExistingVectorIDs returns the subset of vectorIDs that have a chunk row.
func (s *Store) ExistingVectorIDs(ctx context.Context, vectorIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(vectorIDs))
	if len(vectorIDs) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT vector_id FROM chunks WHERE vector_id IN ("+placeholders(len(vectorIDs))+")",
		stringArgs(vectorIDs)...)
	if err != nil {
		return nil, fmt.Errorf("querying vector ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning vector id: %w", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}

func scanFile(row scanner) (File, error) {
	var (
		f       File
		created int64
	)
	err := row.Scan(&f.ID, &f.Name, &f.Size, &f.MimeType, &f.IndexID, &created, &f.ChunkCount)
	if errors.Is(err, sql.ErrNoRows) {
		return File{}, ErrNotFound
	}
	if err != nil {
		return File{}, fmt.Errorf("scanning file: %w", err)
	}
	f.CreatedAt = fromNanos(created)
	return f, nil
}

func encodeMetadata(m map[string]string) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding chunk metadata: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeMetadata(s sql.NullString) (map[string]string, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil, fmt.Errorf("decoding chunk metadata: %w", err)
	}
	return m, nil
}
