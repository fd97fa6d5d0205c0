// Package baccarat implements punto banco with the standard third-card rules.
package baccarat

import (
	"fmt"

	"github.com/shopspring/decimal"

	"social-casino/internal/game"
	"social-casino/internal/game/cards"
	"social-casino/internal/model"
)

// Bet sides, also used as the winner of a coup.
const (
	Player = "player"
	Banker = "banker"
	Tie    = "tie"
)

// bankerMultiplier pays even money less a 5% commission.
var bankerMultiplier = decimal.RequireFromString("1.95")

// Baccarat implements game.Game.
type Baccarat struct{}

// New creates the baccarat game.
func New() *Baccarat {
	return &Baccarat{}
}

func (*Baccarat) Type() model.GameType { return model.GameBaccarat }
func (*Baccarat) Name() string         { return "Baccarat" }

// CardValue returns the baccarat value of c: aces 1, tens and faces 0.
func CardValue(c model.Card) int {
	if c.Rank >= 10 {
		return 0
	}
	return c.Rank
}

// HandValue returns the sum of the card values modulo 10.
func HandValue(hand []model.Card) int {
	total := 0
	for _, c := range hand {
		total += CardValue(c)
	}
	return total % 10
}

// PlayerDraws reports whether the player takes a third card.
func PlayerDraws(playerValue, bankerValue int) bool {
	return playerValue <= 5 && bankerValue < 8
}

// BankerDraws reports whether the banker takes a third card, given the
// player's value after any third card.
func BankerDraws(bankerValue, playerValue int) bool {
	return bankerValue <= 5 && playerValue < 8
}

// Deal plays out a coup from deck: player, player, banker, banker, then
// third cards as the rules require.
func Deal(deck []model.Card) (model.BaccaratResult, error) {
	dealt, deck, err := cards.Draw(deck, 4)
	if err != nil {
		return model.BaccaratResult{}, err
	}
	playerHand := []model.Card{dealt[0], dealt[1]}
	bankerHand := []model.Card{dealt[2], dealt[3]}

	pv, bv := HandValue(playerHand), HandValue(bankerHand)
	if PlayerDraws(pv, bv) {
		var third []model.Card
		if third, deck, err = cards.Draw(deck, 1); err != nil {
			return model.BaccaratResult{}, err
		}
		playerHand = append(playerHand, third[0])
		pv = HandValue(playerHand)
	}
	if BankerDraws(bv, pv) {
		third, _, err := cards.Draw(deck, 1)
		if err != nil {
			return model.BaccaratResult{}, err
		}
		bankerHand = append(bankerHand, third[0])
		bv = HandValue(bankerHand)
	}

	winner := Tie
	switch {
	case pv > bv:
		winner = Player
	case bv > pv:
		winner = Banker
	}

	return model.BaccaratResult{
		PlayerCards: playerHand,
		BankerCards: bankerHand,
		PlayerValue: pv,
		BankerValue: bv,
		Winner:      winner,
	}, nil
}

// ValidateBet checks the side.
func (*Baccarat) ValidateBet(b model.Bet) error {
	if b.Amount <= 0 {
		return game.ErrInvalidAmount
	}
	switch b.BetType {
	case Player, Banker, Tie:
		return nil
	}
	return fmt.Errorf("%w: %q", game.ErrInvalidBetType, b.BetType)
}

// Payout returns the gross amount owed for b given the coup winner.
// Banker wins are floored to whole units.
func Payout(b model.Bet, winner string) int64 {
	if b.BetType != winner {
		return 0
	}
	switch winner {
	case Player:
		return b.Amount * 2
	case Banker:
		return decimal.NewFromInt(b.Amount).Mul(bankerMultiplier).Floor().IntPart()
	case Tie:
		return b.Amount * 8
	}
	return 0
}

// Resolve deals a coup from the deck shuffled by s.
func (*Baccarat) Resolve(s string, bets []model.Bet) (*game.Outcome, error) {
	result, err := Deal(cards.Shuffled(s))
	if err != nil {
		return nil, err
	}
	return game.Settle(result, bets, func(b model.Bet) int64 { return Payout(b, result.Winner) }), nil
}
