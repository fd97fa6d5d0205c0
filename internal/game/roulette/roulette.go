// Package roulette implements the single-zero wheel.
package roulette

import (
	"fmt"
	"slices"
	"strconv"

	"social-casino/internal/game"
	"social-casino/internal/game/seed"
	"social-casino/internal/model"
)

// Wheel constants.
const (
	Pockets = 37
	// spinFactor scrambles the seed before reducing it to a pocket.
	spinFactor = 982451653
)

// Bet types.
const (
	BetStraight = "straight"
	BetRed      = "red"
	BetBlack    = "black"
	BetEven     = "even"
	BetOdd      = "odd"
	BetLow      = "low"
	BetHigh     = "high"
)

// Pocket colors.
const (
	Red   = "red"
	Black = "black"
	Green = "green"
)

var (
	redNumbers   = []int{1, 3, 5, 7, 9, 12, 14, 16, 18, 19, 21, 23, 25, 27, 30, 32, 34, 36}
	blackNumbers = []int{2, 4, 6, 8, 10, 11, 13, 15, 17, 20, 22, 24, 26, 28, 29, 31, 33, 35}
)

// Roulette implements game.Game.
type Roulette struct{}

// New creates the roulette game.
func New() *Roulette {
	return &Roulette{}
}

func (*Roulette) Type() model.GameType { return model.GameRoulette }
func (*Roulette) Name() string         { return "Roulette" }

// Spin returns the pocket selected by s.
func Spin(s string) int {
	return int(seed.Mod(s, Pockets) * (spinFactor % Pockets) % Pockets)
}

// Color returns the color of pocket n.
func Color(n int) string {
	switch {
	case slices.Contains(redNumbers, n):
		return Red
	case slices.Contains(blackNumbers, n):
		return Black
	default:
		return Green
	}
}

// ValidateBet checks the bet type and, for straight bets, the number.
func (*Roulette) ValidateBet(b model.Bet) error {
	if b.Amount <= 0 {
		return game.ErrInvalidAmount
	}
	switch b.BetType {
	case BetStraight:
		n, err := strconv.Atoi(b.Value)
		if err != nil || n < 0 || n >= Pockets {
			return fmt.Errorf("%w: straight bet needs a number 0-36", game.ErrInvalidBetValue)
		}
	case BetRed, BetBlack, BetEven, BetOdd, BetLow, BetHigh:
	default:
		return fmt.Errorf("%w: %q", game.ErrInvalidBetType, b.BetType)
	}
	return nil
}

// Payout returns the gross amount owed for b when the wheel lands on n.
func Payout(b model.Bet, n int) int64 {
	if wins(b, n) {
		return b.Amount * multiplier(b.BetType)
	}
	return 0
}

func multiplier(betType string) int64 {
	if betType == BetStraight {
		return 35
	}
	return 2
}

func wins(b model.Bet, n int) bool {
	switch b.BetType {
	case BetStraight:
		v, err := strconv.Atoi(b.Value)
		return err == nil && v == n
	case BetRed:
		return Color(n) == Red
	case BetBlack:
		return Color(n) == Black
	case BetEven:
		return n != 0 && n%2 == 0
	case BetOdd:
		return n%2 == 1
	case BetLow:
		return n >= 1 && n <= 18
	case BetHigh:
		return n >= 19 && n <= 36
	}
	return false
}

// Resolve spins the wheel for s and pays every bet.
func (r *Roulette) Resolve(s string, bets []model.Bet) (*game.Outcome, error) {
	n := Spin(s)
	result := model.RouletteResult{Number: n, Color: Color(n)}
	return game.Settle(result, bets, func(b model.Bet) int64 { return Payout(b, n) }), nil
}
