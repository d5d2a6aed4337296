package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/catalog"
	"github.com/fyrsmithlabs/vectord/internal/logging"
)

// StatusFor maps an envelope error code to an HTTP status.
func StatusFor(code string) int {
	switch code {
	case "":
		return http.StatusOK
	case catalog.CodeNotFound:
		return http.StatusNotFound
	case catalog.CodeValidation:
		return http.StatusBadRequest
	case catalog.CodeDependency:
		return http.StatusBadGateway
	case CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respond writes env with the status derived from its error code. Successful
// responses use okStatus.
func respond[T any](c echo.Context, okStatus int, env catalog.Envelope[T]) error {
	if env.Success {
		return c.JSON(okStatus, env)
	}
	return c.JSON(StatusFor(env.Error), env)
}

// badRequest reports an undecodable request body.
func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, catalog.Envelope[any]{
		Error:   catalog.CodeValidation,
		Message: message,
	})
}

// envelopeErrorHandler renders framework errors such as unknown routes as envelopes.
func envelopeErrorHandler(logger *logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		code := catalog.CodeInternal
		message := catalog.MsgInternal

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			switch {
			case status == http.StatusNotFound:
				code, message = catalog.CodeNotFound, "Route not found"
			case status == http.StatusRequestEntityTooLarge:
				code, message = catalog.CodeValidation, "Request body too large"
			case status < http.StatusInternalServerError:
				code, message = catalog.CodeValidation, http.StatusText(status)
			}
		}
		if status >= http.StatusInternalServerError {
			logger.Error(c.Request().Context(), "unhandled request error", zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, catalog.Envelope[any]{Error: code, Message: message})
	}
}
