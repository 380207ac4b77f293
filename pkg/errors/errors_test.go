package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapAndUnwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(cause, "INTERNAL_ERROR", http.StatusInternalServerError, "failed to load enrollment")

	assert.Equal(t, "failed to load enrollment: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	typed := Clone(ErrNotFound, "enrollment not found")
	got := FromError(typed)
	assert.Equal(t, "NOT_FOUND", got.Code)
	assert.Equal(t, http.StatusNotFound, got.Status)
	assert.Equal(t, "enrollment not found", got.Message)

	// A typed error survives wrapping with fmt.Errorf.
	got = FromError(fmt.Errorf("update: %w", typed))
	assert.Equal(t, "NOT_FOUND", got.Code)

	// Untyped errors normalize to internal without leaking the cause message.
	got = FromError(stderrors.New("pq: deadlock detected"))
	assert.Equal(t, "INTERNAL_ERROR", got.Code)
	assert.Equal(t, ErrInternal.Message, got.Message)
}

func TestCloneDoesNotMutatePredefined(t *testing.T) {
	clone := Clone(ErrConflict, "course offering is at capacity")
	require.NotSame(t, ErrConflict, clone)
	assert.Equal(t, "course offering is at capacity", clone.Message)
	assert.Equal(t, "conflict", ErrConflict.Message)

	// Empty override keeps the original message.
	assert.Equal(t, ErrCertificateIssued.Message, Clone(ErrCertificateIssued, "").Message)
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("issue: %w", Clone(ErrCertificateIssued, ""))
	assert.True(t, Is(err, ErrCertificateIssued))
	assert.False(t, Is(err, ErrConflict))
	assert.False(t, Is(nil, ErrConflict))
	assert.False(t, Is(stderrors.New("plain"), ErrConflict))
}
