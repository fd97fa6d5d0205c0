package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	err := fmt.Errorf("placing wager: %w", Validation("bet %d below minimum %d", 5, 10))

	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Contains(t, err.Error(), "bet 5 below minimum 10")
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindConflict, cause, "duplicate")

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, Kind(""), KindOf(cause))
}

func TestUnauthenticated(t *testing.T) {
	assert.ErrorIs(t, Unauthenticated(), ErrUnauthenticated)
}
