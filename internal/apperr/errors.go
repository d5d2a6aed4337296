// Package apperr defines the error taxonomy shared by the ingestion and
// retrieval pipelines and the catalog envelope.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the caller.
type Kind string

const (
	// KindAuthorization covers "not found" and "not owned"; the two are never distinguished.
	KindAuthorization Kind = "authorization"
	// KindValidation covers bad input: empty content, malformed names, dimension mismatch.
	KindValidation Kind = "validation"
	// KindDependency covers failures of the embedding model, vector store, metadata store or extraction.
	KindDependency Kind = "dependency"
	// KindConsistency marks orphaned vectors or rows. Logged, never returned to callers.
	KindConsistency Kind = "consistency"
	// KindInternal is anything that was not classified.
	KindInternal Kind = "internal"
)

// Dependency names used in dependency errors.
const (
	DepEmbedding   = "embedding"
	DepVectorStore = "vectorstore"
	DepMetadata    = "metadata"
	DepExtraction  = "extraction"
	DepJournal     = "journal"
)

// Error is a classified failure.
type Error struct {
	Kind       Kind
	Dependency string // set for KindDependency
	Op         string // operation that failed, e.g. "ingest.embed"
	Message    string // human-readable, safe to show to callers
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Dependency != "":
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Dependency, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

// Unwrap allows errors.Is and errors.As to see the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Authorization returns a not-found-or-forbidden error.
func Authorization(op, message string) *Error {
	return &Error{Kind: KindAuthorization, Op: op, Message: message}
}

// Validation returns a validation error wrapping err (which may be nil).
func Validation(op, message string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message, Err: err}
}

// Dependency returns an error tagged with the failing dependency.
func Dependency(op, dependency string, err error) *Error {
	msg := dependency + " failure"
	if err != nil {
		msg = err.Error()
	}
	return &Error{Kind: KindDependency, Dependency: dependency, Op: op, Message: msg, Err: err}
}

// KindOf returns the kind of err, or KindInternal when err is unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the caller-safe message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// DependencyOf returns the dependency name of a dependency error.
func DependencyOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Dependency
	}
	return ""
}
