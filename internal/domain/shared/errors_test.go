package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	t.Run("sentinel matches itself", func(t *testing.T) {
		assert.True(t, errors.Is(ErrNotFound, ErrNotFound))
	})

	t.Run("constructed error matches its sentinel by code", func(t *testing.T) {
		err := NewCounterUpdateFailed("4f0c2a9e-0000-0000-0000-000000000000")
		assert.True(t, errors.Is(err, ErrCounterUpdateFailed))
	})

	t.Run("different codes do not match", func(t *testing.T) {
		assert.False(t, errors.Is(ErrInvalidDelta, ErrInvalidAmount))
	})

	t.Run("wrapped domain errors still match", func(t *testing.T) {
		err := fmt.Errorf("record usage: %w", ErrLogWriteFailed)
		assert.True(t, errors.Is(err, ErrLogWriteFailed))
	})

	t.Run("plain errors never match", func(t *testing.T) {
		assert.False(t, errors.Is(errors.New("not found"), ErrNotFound))
	})
}

func TestNewCounterUpdateFailed(t *testing.T) {
	err := NewCounterUpdateFailed("9d3a1c7b-0000-0000-0000-000000000000")

	assert.Equal(t, ErrCounterUpdateFailed.Code, err.Code)
	assert.Contains(t, err.Message, "9d3a1c7b-0000-0000-0000-000000000000")
	assert.Contains(t, err.Message, "reconcile")
}
