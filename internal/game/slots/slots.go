// Package slots implements a 3x3 weighted reel machine with five paylines.
package slots

import (
	"social-casino/internal/game"
	"social-casino/internal/game/seed"
	"social-casino/internal/model"
)

// reelModulus is the prime the seed is reduced by before picking a symbol.
const reelModulus = 982451653

// BetSpin is the only bet type: the whole stake rides every line.
const BetSpin = "spin"

// Symbol is a reel symbol with its line multiplier and selection weight.
type Symbol struct {
	Glyph  string
	Value  int64
	Weight int64
}

// Symbols in selection order. Weights sum to 100.
var Symbols = []Symbol{
	{"🍒", 2, 30},
	{"🍋", 3, 25},
	{"🍊", 4, 20},
	{"🍇", 5, 15},
	{"🔔", 10, 8},
	{"💎", 20, 2},
}

// Paylines are positions in the row-major 3x3 grid.
var Paylines = [][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Slots implements game.Game.
type Slots struct{}

// New creates the slot machine.
func New() *Slots {
	return &Slots{}
}

func (*Slots) Type() model.GameType { return model.GameSlots }
func (*Slots) Name() string         { return "Slots" }

// Spin returns the grid selected by s.
func Spin(s string) [9]string {
	base := seed.Mod(s, reelModulus)
	var grid [9]string
	for i := range grid {
		x := base * int64(i+1) % reelModulus
		grid[i] = pick(x)
	}
	return grid
}

// pick returns the first symbol whose cumulative weight covers x/reelModulus
// as a percentage.
func pick(x int64) string {
	var cum int64
	for _, sym := range Symbols {
		cum += sym.Weight
		if x*100 <= cum*reelModulus {
			return sym.Glyph
		}
	}
	return Symbols[len(Symbols)-1].Glyph
}

// Evaluate returns the winning paylines of grid and the sum of their multipliers.
func Evaluate(grid [9]string) (lines []int, multiplier int64) {
	lines = []int{}
	for i, line := range Paylines {
		a, b, c := grid[line[0]], grid[line[1]], grid[line[2]]
		if a != b || b != c {
			continue
		}
		for _, sym := range Symbols {
			if sym.Glyph == a {
				lines = append(lines, i)
				multiplier += sym.Value
				break
			}
		}
	}
	return lines, multiplier
}

// ValidateBet accepts a positive spin.
func (*Slots) ValidateBet(b model.Bet) error {
	if b.Amount <= 0 {
		return game.ErrInvalidAmount
	}
	if b.BetType != "" && b.BetType != BetSpin {
		return game.ErrInvalidBetType
	}
	return nil
}

// Resolve spins the reels for s. Every bet is paid stake times the summed
// multipliers of the winning lines.
func (*Slots) Resolve(s string, bets []model.Bet) (*game.Outcome, error) {
	grid := Spin(s)
	lines, mult := Evaluate(grid)
	result := model.SlotsResult{Grid: grid, WinningLines: lines, Multiplier: mult}
	return game.Settle(result, bets, func(b model.Bet) int64 { return b.Amount * mult }), nil
}
