package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPassesClassifiedErrors(t *testing.T) {
	orig := Conflict("Email already exists")
	wrapped := fmt.Errorf("register: %w", orig)

	got := Wrap(wrapped, "Registration failed")
	ae, ok := As(got)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, ae.Status)
	assert.Equal(t, "Email already exists", ae.Message)
	assert.False(t, IsUnexpected(got))
}

func TestWrapFlattensUnknownErrors(t *testing.T) {
	cause := errors.New("connection reset")

	got := Wrap(cause, "Login failed")
	ae, ok := As(got)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, ae.Status)
	assert.Equal(t, "Login failed", ae.Message)
	assert.ErrorIs(t, got, cause)
	assert.True(t, IsUnexpected(got))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "whatever"))
}
