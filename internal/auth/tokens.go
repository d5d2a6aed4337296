package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/metadata"
)

// TokenPrefix marks vectord API tokens. The logging redaction pattern
// matches it.
const TokenPrefix = "vtk_"

const tokenBytes = 32

// touchTimeout bounds the asynchronous last-used update.
const touchTimeout = 5 * time.Second

var (
	// ErrInvalidToken covers unknown, malformed, disabled and expired tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrMissingToken is returned when a request carries no credentials.
	ErrMissingToken = errors.New("missing bearer token")
)

// TokenStore persists token records.
type TokenStore interface {
	CreateToken(ctx context.Context, t *metadata.APIToken) error
	ListTokens(ctx context.Context, userID string) ([]metadata.APIToken, error)
	TokenByHash(ctx context.Context, hash string) (metadata.APIToken, error)
	SetTokenActive(ctx context.Context, userID, id string, active bool) error
	DeleteToken(ctx context.Context, userID, id string) error
	TouchToken(ctx context.Context, id string, at time.Time) error
}

// GenerateToken returns a new raw token and its storage hash.
func GenerateToken() (raw, hash string, err error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("reading random bytes: %w", err)
	}
	raw = TokenPrefix + base64.RawURLEncoding.EncodeToString(b)
	return raw, HashToken(raw), nil
}

// HashToken returns the hex SHA-256 digest stored for raw.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// IssuedToken is a freshly created token. Raw is never retrievable again.
type IssuedToken struct {
	metadata.APIToken
	Raw string `json:"token"`
}

// Tokens manages API tokens. It is safe for concurrent use.
type Tokens struct {
	store  TokenStore
	logger *zap.Logger
	now    func() time.Time
}

// NewTokens creates a token manager. A nil logger discards output.
func NewTokens(store TokenStore, logger *zap.Logger) *Tokens {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tokens{store: store, logger: logger, now: time.Now}
}

// Create issues a token for userID. A nil expiresAt never expires.
func (t *Tokens) Create(ctx context.Context, userID, name string, expiresAt *time.Time) (IssuedToken, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return IssuedToken{}, fmt.Errorf("%w: token name is required", metadata.ErrInvalidArgument)
	}
	if expiresAt != nil && !expiresAt.After(t.now()) {
		return IssuedToken{}, fmt.Errorf("%w: expiry must be in the future", metadata.ErrInvalidArgument)
	}
	raw, hash, err := GenerateToken()
	if err != nil {
		return IssuedToken{}, err
	}
	rec := metadata.APIToken{Name: name, TokenHash: hash, UserID: userID, ExpiresAt: expiresAt}
	if err := t.store.CreateToken(ctx, &rec); err != nil {
		return IssuedToken{}, err
	}
	t.logger.Info("api token created", zap.String("token_id", rec.ID), zap.String("name", name))
	return IssuedToken{APIToken: rec, Raw: raw}, nil
}

// List returns the user's tokens without their hashes.
func (t *Tokens) List(ctx context.Context, userID string) ([]metadata.APIToken, error) {
	return t.store.ListTokens(ctx, userID)
}

// SetActive enables or disables a token.
func (t *Tokens) SetActive(ctx context.Context, userID, id string, active bool) error {
	return t.store.SetTokenActive(ctx, userID, id, active)
}

// Delete removes a token.
func (t *Tokens) Delete(ctx context.Context, userID, id string) error {
	return t.store.DeleteToken(ctx, userID, id)
}

// Verify resolves raw to its user id. The last-used timestamp is updated in
// the background and its failure is only logged.
func (t *Tokens) Verify(ctx context.Context, raw string) (string, error) {
	if !strings.HasPrefix(raw, TokenPrefix) {
		return "", ErrInvalidToken
	}
	hash := HashToken(raw)
	rec, err := t.store.TokenByHash(ctx, hash)
	if errors.Is(err, metadata.ErrNotFound) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("looking up token: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(rec.TokenHash), []byte(hash)) != 1 {
		return "", ErrInvalidToken
	}
	now := t.now()
	if !rec.IsActive || (rec.ExpiresAt != nil && !rec.ExpiresAt.After(now)) {
		return "", ErrInvalidToken
	}

	go func() {
		touchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), touchTimeout)
		defer cancel()
		if err := t.store.TouchToken(touchCtx, rec.ID, now.UTC()); err != nil {
			t.logger.Warn("failed to record token use", zap.String("token_id", rec.ID), zap.Error(err))
		}
	}()
	return rec.UserID, nil
}
