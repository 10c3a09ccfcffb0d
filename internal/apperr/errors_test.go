package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("bad input"), http.StatusBadRequest},
		{Authentication("invalid credentials"), http.StatusUnauthorized},
		{Authorization("forbidden"), http.StatusForbidden},
		{NotFound("missing"), http.StatusNotFound},
		{Conflict("duplicate"), http.StatusConflict},
		{QuotaExceeded("limit reached"), http.StatusUnprocessableEntity},
		{Internal("boom", errors.New("cause")), http.StatusInternalServerError},
		{errors.New("unclassified"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestKindOfWrapped(t *testing.T) {
	// Kind survives fmt.Errorf wrapping
	inner := NotFound("project not found")
	wrapped := fmt.Errorf("loading project: %w", inner)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindNotFound))
	assert.False(t, IsKind(wrapped, KindConflict))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal("database error", cause)

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestMessageMasksInternals(t *testing.T) {
	// Internal causes must never leak into responses
	assert.Equal(t, "internal server error", Message(Internal("db", errors.New("password=hunter2"))))
	assert.Equal(t, "internal server error", Message(errors.New("raw failure")))
	assert.Equal(t, "duplicate subdomain", Message(Conflict("duplicate subdomain")))
}

func TestIsKindNil(t *testing.T) {
	assert.False(t, IsKind(nil, KindInternal))
}
