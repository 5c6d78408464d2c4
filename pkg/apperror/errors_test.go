package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("list sessions: %w", StoreUnavailable("SessionRegistry.List", cause))

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindStoreUnavailable, kind)
	assert.ErrorIs(t, err, cause)
	assert.True(t, Is(err, KindStoreUnavailable))
	assert.False(t, Is(err, KindReplyFailed))
}

func TestKindOfPlainError(t *testing.T) {
	_, ok := KindOf(errors.New("boom"))
	assert.False(t, ok)
}

func TestErrorMessage(t *testing.T) {
	err := Validation("Synchronizer.Send", ErrEmptyMessage)
	assert.Equal(t, "Synchronizer.Send: ValidationError: message text is empty", err.Error())
	assert.ErrorIs(t, err, ErrEmptyMessage)
}
