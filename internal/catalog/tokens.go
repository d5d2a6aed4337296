package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/fyrsmithlabs/vectord/internal/apperr"
	"github.com/fyrsmithlabs/vectord/internal/auth"
	"github.com/fyrsmithlabs/vectord/internal/metadata"
)

var errTokensDisabled = errors.New("token management is not configured")

// CreateTokenInput is the body of CreateToken.
type CreateTokenInput struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// TokenState is the body of SetTokenActive and its payload.
type TokenState struct {
	ID       string `json:"id,omitempty"`
	IsActive bool   `json:"isActive"`
}

// CreateToken issues an API token. The raw token is only in this response.
func (c *Catalog) CreateToken(ctx context.Context, owner string, in CreateTokenInput) Envelope[auth.IssuedToken] {
	if c.tokens == nil {
		return fail[auth.IssuedToken](c.logger, errTokensDisabled)
	}
	t, err := c.tokens.Create(ctx, owner, in.Name, in.ExpiresAt)
	if err != nil {
		return fail[auth.IssuedToken](c.logger, storeErr("catalog.createToken", MsgTokenNotFound, err))
	}
	return ok(t, "Token created; store it now, it will not be shown again")
}

// ListTokens lists the owner's tokens.
func (c *Catalog) ListTokens(ctx context.Context, owner string) Envelope[[]metadata.APIToken] {
	if c.tokens == nil {
		return fail[[]metadata.APIToken](c.logger, errTokensDisabled)
	}
	tokens, err := c.tokens.List(ctx, owner)
	if err != nil {
		return fail[[]metadata.APIToken](c.logger, storeErr("catalog.listTokens", MsgTokenNotFound, err))
	}
	return ok(tokens, "")
}

// SetTokenActive enables or disables a token.
func (c *Catalog) SetTokenActive(ctx context.Context, owner, id string, in TokenState) Envelope[TokenState] {
	if c.tokens == nil {
		return fail[TokenState](c.logger, errTokensDisabled)
	}
	if err := c.tokens.SetActive(ctx, owner, id, in.IsActive); err != nil {
		return fail[TokenState](c.logger, storeErr("catalog.setTokenActive", MsgTokenNotFound, err))
	}
	msg := "Token disabled"
	if in.IsActive {
		msg = "Token enabled"
	}
	return ok(TokenState{ID: id, IsActive: in.IsActive}, msg)
}

// DeleteToken removes a token.
func (c *Catalog) DeleteToken(ctx context.Context, owner, id string) Envelope[Deleted] {
	if c.tokens == nil {
		return fail[Deleted](c.logger, errTokensDisabled)
	}
	if err := c.tokens.Delete(ctx, owner, id); err != nil {
		return fail[Deleted](c.logger, storeErr("catalog.deleteToken", MsgTokenNotFound, err))
	}
	return ok(Deleted{ID: id}, "Token deleted successfully")
}

// VerifyToken resolves a raw token to its owner id.
func (c *Catalog) VerifyToken(ctx context.Context, raw string) Envelope[string] {
	const op = "catalog.verifyToken"
	if c.tokens == nil {
		return fail[string](c.logger, errTokensDisabled)
	}
	owner, err := c.tokens.Verify(ctx, raw)
	if errors.Is(err, auth.ErrInvalidToken) {
		return fail[string](c.logger, apperr.Authorization(op, "Invalid or expired token"))
	}
	if err != nil {
		return fail[string](c.logger, apperr.Dependency(op, apperr.DepMetadata, err))
	}
	return ok(owner, "")
}
