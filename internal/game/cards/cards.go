// Package cards provides seeded 52-card decks.
package cards

import (
	"errors"

	"social-casino/internal/game/seed"
	"social-casino/internal/model"
)

// ErrDeckEmpty is returned when drawing from an exhausted deck.
var ErrDeckEmpty = errors.New("deck is empty")

var suits = []model.Suit{model.Hearts, model.Diamonds, model.Clubs, model.Spades}

// NewDeck returns an ordered 52-card deck.
func NewDeck() []model.Card {
	deck := make([]model.Card, 0, 52)
	for _, s := range suits {
		for r := 1; r <= 13; r++ {
			deck = append(deck, model.Card{Rank: r, Suit: s})
		}
	}
	return deck
}

// Shuffled returns a deck shuffled deterministically from s.
func Shuffled(s string) []model.Card {
	deck := NewDeck()
	rng := seed.Rand(s)
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}

// Draw removes and returns the top n cards of deck.
func Draw(deck []model.Card, n int) (drawn, rest []model.Card, err error) {
	if n > len(deck) {
		return nil, deck, ErrDeckEmpty
	}
	drawn = append([]model.Card(nil), deck[:n]...)
	return drawn, deck[n:], nil
}
