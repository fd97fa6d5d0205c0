// Package game defines the interface shared by wager-resolved games and the
// registry the wager engine looks them up in.
package game

import (
	"errors"

	"social-casino/internal/model"
)

// Errors returned by bet validation.
var (
	ErrInvalidBetType  = errors.New("invalid bet type")
	ErrInvalidBetValue = errors.New("invalid bet value")
	ErrInvalidAmount   = errors.New("bet amount must be positive")
)

// Outcome is the resolution of a session's bets.
type Outcome struct {
	Result model.Result
	// Payouts holds the gross amount credited per user. Losing users are absent.
	Payouts map[int64]int64
}

// Game is a variant whose outcome is a pure function of the session seed and
// the bets placed on it. New variants only need to implement this interface
// and be registered.
type Game interface {
	// Type returns the variant this game resolves.
	Type() model.GameType

	// Name returns the display name.
	Name() string

	// ValidateBet checks the bet type and value. Table bounds and balances
	// are checked by the caller.
	ValidateBet(bet model.Bet) error

	// Resolve computes the result of seed and the payout of every bet.
	Resolve(seed string, bets []model.Bet) (*Outcome, error)
}

// Settle sums per-bet payouts into an Outcome. payout returns the gross
// amount owed for a single bet.
func Settle(result model.Result, bets []model.Bet, payout func(model.Bet) int64) *Outcome {
	o := &Outcome{Result: result, Payouts: make(map[int64]int64)}
	for _, b := range bets {
		if p := payout(b); p > 0 {
			o.Payouts[b.UserID] += p
		}
	}
	return o
}
