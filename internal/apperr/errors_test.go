package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"authorization", Authorization("op", "Index not found or access denied"), KindAuthorization},
		{"validation", Validation("op", "Content is required", nil), KindValidation},
		{"dependency", Dependency("op", DepVectorStore, cause), KindDependency},
		{"wrapped", fmt.Errorf("outer: %w", Validation("op", "bad", nil)), KindValidation},
		{"plain", cause, KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
			assert.True(t, IsKind(tt.err, tt.want))
		})
	}
}

func TestDependencyError(t *testing.T) {
	cause := errors.New("timeout")
	err := Dependency("ingest.embed", DepEmbedding, cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, DepEmbedding, DependencyOf(err))
	assert.Equal(t, "timeout", MessageOf(err))
	assert.Contains(t, err.Error(), "ingest.embed")
	assert.Contains(t, err.Error(), "embedding")
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "", MessageOf(nil))
	assert.Equal(t, "Project not found or access denied",
		MessageOf(Authorization("op", "Project not found or access denied")))
	assert.Equal(t, "boom", MessageOf(errors.New("boom")))
	assert.False(t, IsKind(nil, KindInternal))
}
