package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMatchesByCode(t *testing.T) {
	err := ErrTransferExceedsRemaining.with("items", "transfer of %s", "10.00")
	wrapped := fmt.Errorf("handler: %w", err)

	assert.ErrorIs(t, wrapped, ErrTransferExceedsRemaining)
	assert.NotErrorIs(t, wrapped, ErrSplitExceedsTotal)
	assert.Equal(t, "transfer value must stay below the source invoice's remaining amount: transfer of 10.00", err.Error())
	assert.Equal(t, map[string][]string{"items": {"transfer of 10.00"}}, err.Fields())
	// sentinels are never mutated
	assert.Empty(t, ErrTransferExceedsRemaining.Detail)
}

func TestClassifyWrapsUnknownErrors(t *testing.T) {
	cause := errors.New("connection reset")
	e := classify(cause, ErrMergeFailed)

	assert.ErrorIs(t, e, ErrMergeFailed)
	assert.ErrorIs(t, e, cause)
	assert.Equal(t, KindUnexpected, e.Kind)
	assert.Empty(t, e.Fields())

	expected := ErrSessionNotFound.with("session_id", "gone")
	assert.Same(t, expected, classify(fmt.Errorf("tx: %w", expected), ErrMergeFailed))
}

func TestAsError(t *testing.T) {
	_, ok := AsError(errors.New("plain"))
	assert.False(t, ok)

	e, ok := AsError(ErrInvalidRequest.with("x", "bad"))
	require.True(t, ok)
	assert.Equal(t, "validation", e.Kind.String())
}
