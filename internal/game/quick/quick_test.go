package quick

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"social-casino/internal/game"
	"social-casino/internal/model"
)

func TestFlipFollowsSeedParity(t *testing.T) {
	// 623698779 is odd
	assert.Equal(t, Tails, Flip("abc123"))
	assert.Equal(t, Heads, Flip("2"))
}

func TestCoinFlipResolve(t *testing.T) {
	bets := []model.Bet{
		{UserID: 1, Amount: 50, BetType: Heads},
		{UserID: 2, Amount: 50, BetType: Tails},
	}
	out, err := NewCoinFlip().Resolve("2", bets)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{1: 100}, out.Payouts)
	assert.Equal(t, model.QuickResult{GameType: model.GameCoinFlip, Outcome: Heads}, out.Result)
}

func TestHighLowResolve(t *testing.T) {
	// "1d" = 49, so the draw is 50: low
	out, err := NewHighLow().Resolve("1d", []model.Bet{
		{UserID: 1, Amount: 15, BetType: Low},
		{UserID: 2, Amount: 15, BetType: High},
	})
	require.NoError(t, err)
	assert.Equal(t, model.QuickResult{GameType: model.GameHighLow, Outcome: Low, Number: 50}, out.Result)
	// 15 * 1.9 = 28.5, floored
	assert.Equal(t, map[int64]int64{1: 28}, out.Payouts)
}

func TestDrawRangeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := Draw(rapid.String().Draw(t, "seed"))
		if n < 1 || n > 100 {
			t.Fatalf("Draw out of range: %d", n)
		}
	})
}

func TestValidateSide(t *testing.T) {
	assert.NoError(t, NewCoinFlip().ValidateBet(model.Bet{Amount: 1, BetType: Heads}))
	assert.ErrorIs(t, NewCoinFlip().ValidateBet(model.Bet{Amount: 1, BetType: High}), game.ErrInvalidBetType)
	assert.ErrorIs(t, NewHighLow().ValidateBet(model.Bet{Amount: 0, BetType: High}), game.ErrInvalidAmount)
}

func TestSpinWheelSegmentBoundaries(t *testing.T) {
	tests := []struct {
		seed    string
		segment int
		prize   int64
	}{
		{"0", 0, 50},
		{"t", 0, 50},    // 29
		{"u", 1, 100},   // 30
		{"1i", 1, 100},  // 54
		{"1j", 2, 200},  // 55
		{"22", 2, 200},  // 74
		{"23", 3, 500},  // 75
		{"2h", 3, 500},  // 89
		{"2i", 4, 1000}, // 90
		{"2p", 4, 1000}, // 97
		{"2q", 5, 2500}, // 98
		{"2r", 5, 2500}, // 99
		{"2s", 0, 50},   // 100 wraps
	}
	for _, tt := range tests {
		t.Run(tt.seed, func(t *testing.T) {
			segment, prize := SpinWheel(tt.seed)
			assert.Equal(t, tt.segment, segment)
			assert.Equal(t, tt.prize, prize)
		})
	}
}

func TestSpinWheelWeightsProperty(t *testing.T) {
	var total int64
	for _, seg := range WheelSegments {
		total += seg.Weight
	}
	assert.Equal(t, int64(100), total)

	rapid.Check(t, func(t *rapid.T) {
		s := rapid.StringMatching(`[0-9a-z]{1,16}`).Draw(t, "seed")
		segment, prize := SpinWheel(s)
		if segment < 0 || segment >= len(WheelSegments) {
			t.Fatalf("segment %d out of range", segment)
		}
		if prize != WheelSegments[segment].Prize {
			t.Fatalf("prize %d does not match segment %d", prize, segment)
		}
		again, _ := SpinWheel(s)
		if again != segment {
			t.Fatalf("seed %q selected %d then %d", s, segment, again)
		}
	})
}
