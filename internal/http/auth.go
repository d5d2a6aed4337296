package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/auth"
	"github.com/fyrsmithlabs/vectord/internal/catalog"
	"github.com/fyrsmithlabs/vectord/internal/logging"
)

// CodeUnauthorized is the envelope error for missing or rejected credentials.
const CodeUnauthorized = "unauthorized"

const ownerKey = "vectord.owner"

// authenticate resolves the caller's owner id from the bearer token.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		raw, err := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))

		var owner string
		switch {
		case err == nil && s.verifier != nil:
			owner, err = s.verifier.Verify(ctx, raw)
		case err == nil:
			err = auth.ErrInvalidToken
		case errors.Is(err, auth.ErrMissingToken) && !s.config.AuthRequired:
			owner, err = auth.LocalOwnerID(), nil
		}
		if err != nil {
			s.logger.Debug(ctx, "request unauthorized", zap.Error(err))
			return c.JSON(http.StatusUnauthorized, catalog.Envelope[any]{
				Error:   CodeUnauthorized,
				Message: "Missing or invalid API token",
			})
		}

		c.Set(ownerKey, owner)
		c.SetRequest(c.Request().WithContext(logging.WithOwnerID(ctx, owner)))
		return next(c)
	}
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", auth.ErrMissingToken
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", auth.ErrInvalidToken
	}
	return strings.TrimSpace(token), nil
}

func ownerOf(c echo.Context) string {
	owner, _ := c.Get(ownerKey).(string)
	return owner
}
