package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const tokenColumns = "id, name, token_hash, user_id, is_active, expires_at, last_used_at, created_at, updated_at"

// CreateToken stores a token record. TokenHash must already be set.
func (s *Store) CreateToken(ctx context.Context, t *APIToken) error {
	if t.TokenHash == "" || t.UserID == "" || t.Name == "" {
		return fmt.Errorf("%w: token name, hash and user are required", ErrInvalidArgument)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	t.IsActive = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_tokens (`+tokenColumns+`)
		VALUES (?, ?, ?, ?, 1, ?, NULL, ?, ?)`,
		t.ID, t.Name, t.TokenHash, t.UserID, nullNanos(t.ExpiresAt), toNanos(now), toNanos(now))
	if err != nil {
		return fmt.Errorf("inserting token: %w", err)
	}
	return nil
}

// ListTokens returns the user's tokens, newest first.
func (s *Store) ListTokens(ctx context.Context, userID string) ([]APIToken, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+tokenColumns+" FROM api_tokens WHERE user_id = ? ORDER BY created_at DESC, rowid DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("querying tokens: %w", err)
	}
	defer rows.Close()

	tokens := []APIToken{}
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// TokenByHash looks a token up by its hash regardless of state.
func (s *Store) TokenByHash(ctx context.Context, hash string) (APIToken, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+tokenColumns+" FROM api_tokens WHERE token_hash = ?", hash)
	return scanToken(row)
}

// SetTokenActive enables or disables one of the user's tokens.
func (s *Store) SetTokenActive(ctx context.Context, userID, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE api_tokens SET is_active = ?, updated_at = ? WHERE id = ? AND user_id = ?",
		active, toNanos(time.Now()), id, userID)
	if err != nil {
		return fmt.Errorf("updating token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteToken removes one of the user's tokens.
func (s *Store) DeleteToken(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM api_tokens WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchToken records a use of the token.
func (s *Store) TouchToken(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, "UPDATE api_tokens SET last_used_at = ? WHERE id = ?", toNanos(at), id)
	if err != nil {
		return fmt.Errorf("touching token: %w", err)
	}
	return nil
}

func scanToken(row scanner) (APIToken, error) {
	var (
		t                APIToken
		expires, used    sql.NullInt64
		created, updated int64
	)
	err := row.Scan(&t.ID, &t.Name, &t.TokenHash, &t.UserID, &t.IsActive, &expires, &used, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return APIToken{}, ErrNotFound
	}
	if err != nil {
		return APIToken{}, fmt.Errorf("scanning token: %w", err)
	}
	t.ExpiresAt = nullTime(expires)
	t.LastUsedAt = nullTime(used)
	t.CreatedAt = fromNanos(created)
	t.UpdatedAt = fromNanos(updated)
	return t, nil
}
