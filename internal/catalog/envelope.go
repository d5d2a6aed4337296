package catalog

import (
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/apperr"
)

// Error codes carried in Envelope.Error.
const (
	CodeNotFound   = "not_found_or_forbidden"
	CodeValidation = "validation_failed"
	CodeDependency = "dependency_failed"
	CodeInternal   = "internal"
)

// MsgInternal replaces the message of unclassified failures.
const MsgInternal = "Internal error"

// Envelope is the uniform response of every catalog operation.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Deleted is the payload of delete operations.
type Deleted struct {
	ID string `json:"id"`
}

// CodeFor maps an error kind to its envelope code.
func CodeFor(kind apperr.Kind) string {
	switch kind {
	case apperr.KindAuthorization:
		return CodeNotFound
	case apperr.KindValidation:
		return CodeValidation
	case apperr.KindDependency:
		return CodeDependency
	default:
		return CodeInternal
	}
}

func ok[T any](data T, message string) Envelope[T] {
	return Envelope[T]{Success: true, Data: data, Message: message}
}

// fail converts err into a failed envelope and logs it at a level matching
// its kind.
func fail[T any](logger *zap.Logger, err error) Envelope[T] {
	kind := apperr.KindOf(err)
	code := CodeFor(kind)
	message := apperr.MessageOf(err)

	fields := []zap.Field{zap.String("code", code), zap.Error(err)}
	switch kind {
	case apperr.KindAuthorization, apperr.KindValidation:
		logger.Debug("request rejected", fields...)
	case apperr.KindDependency:
		logger.Error("dependency failure", append(fields, zap.String("dependency", apperr.DependencyOf(err)))...)
	default:
		message = MsgInternal
		logger.Error("internal failure", fields...)
	}
	return Envelope[T]{Success: false, Error: code, Message: message}
}
