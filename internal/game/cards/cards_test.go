package cards

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-casino/internal/model"
)

func TestShuffledIsPermutation(t *testing.T) {
	deck := Shuffled("abc123")
	require.Len(t, deck, 52)

	seen := make(map[model.Card]bool)
	for _, c := range deck {
		assert.False(t, seen[c], "duplicate %v", c)
		seen[c] = true
	}
	assert.Equal(t, deck, Shuffled("abc123"))
	assert.NotEqual(t, deck, Shuffled("abc124"))
}

func TestDraw(t *testing.T) {
	deck := NewDeck()
	drawn, rest, err := Draw(deck, 3)
	require.NoError(t, err)
	assert.Len(t, drawn, 3)
	assert.Len(t, rest, 49)
	assert.Equal(t, deck[0], drawn[0])

	_, _, err = Draw(rest[:2], 3)
	assert.ErrorIs(t, err, ErrDeckEmpty)
}
