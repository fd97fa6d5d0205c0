// Package quick implements the single-draw coin flip and high/low games.
package quick

import (
	"fmt"

	"github.com/shopspring/decimal"

	"social-casino/internal/game"
	"social-casino/internal/game/seed"
	"social-casino/internal/model"
)

// Coin flip sides.
const (
	Heads = "heads"
	Tails = "tails"
)

// High/low sides.
const (
	High = "high"
	Low  = "low"
)

var highLowMultiplier = decimal.RequireFromString("1.9")

// CoinFlip implements game.Game for a fair coin paying 2x.
type CoinFlip struct{}

// NewCoinFlip creates the coin flip game.
func NewCoinFlip() *CoinFlip {
	return &CoinFlip{}
}

func (*CoinFlip) Type() model.GameType { return model.GameCoinFlip }
func (*CoinFlip) Name() string         { return "Coin Flip" }

// Flip returns the side selected by s.
func Flip(s string) string {
	if seed.Mod(s, 2) == 0 {
		return Heads
	}
	return Tails
}

func (*CoinFlip) ValidateBet(b model.Bet) error {
	return validateSide(b, Heads, Tails)
}

func (*CoinFlip) Resolve(s string, bets []model.Bet) (*game.Outcome, error) {
	side := Flip(s)
	result := model.QuickResult{GameType: model.GameCoinFlip, Outcome: side}
	return game.Settle(result, bets, func(b model.Bet) int64 {
		if b.BetType == side {
			return b.Amount * 2
		}
		return 0
	}), nil
}

// HighLow implements game.Game for a 1-100 draw where 51 and up is high.
// Wins pay 1.9x, floored.
type HighLow struct{}

// NewHighLow creates the high/low game.
func NewHighLow() *HighLow {
	return &HighLow{}
}

func (*HighLow) Type() model.GameType { return model.GameHighLow }
func (*HighLow) Name() string         { return "High or Low" }

// Draw returns the number selected by s, in 1..100.
func Draw(s string) int {
	return int(seed.Mod(s, 100)) + 1
}

func (*HighLow) ValidateBet(b model.Bet) error {
	return validateSide(b, High, Low)
}

func (*HighLow) Resolve(s string, bets []model.Bet) (*game.Outcome, error) {
	n := Draw(s)
	side := Low
	if n > 50 {
		side = High
	}
	result := model.QuickResult{GameType: model.GameHighLow, Outcome: side, Number: n}
	return game.Settle(result, bets, func(b model.Bet) int64 {
		if b.BetType != side {
			return 0
		}
		return decimal.NewFromInt(b.Amount).Mul(highLowMultiplier).Floor().IntPart()
	}), nil
}

func validateSide(b model.Bet, sides ...string) error {
	if b.Amount <= 0 {
		return game.ErrInvalidAmount
	}
	for _, s := range sides {
		if b.BetType == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", game.ErrInvalidBetType, b.BetType)
}
