package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation("bad amount: %s", "-1")))
	assert.Equal(t, KindNotFound, KindOf(NotFound("account not found")))
	assert.Equal(t, KindInsufficientFunds, KindOf(InsufficientFunds("short by %s", "10")))
	assert.Equal(t, KindConflict, KindOf(Conflict("version mismatch")))
	assert.Equal(t, KindDependency, KindOf(Dependency("mongo write failed", errors.New("timeout"))))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain error")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("handler: %w", NotFound("account %s not found", "u1"))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, Is(err, KindNotFound))
	assert.False(t, Is(err, KindConflict))
}

func TestUnwrapReachesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Dependency("redis unavailable", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "redis unavailable")
	assert.Contains(t, err.Error(), "connection refused")
}
