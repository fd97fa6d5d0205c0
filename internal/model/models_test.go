package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to SessionStatus
		want     bool
	}{
		{StatusWaiting, StatusBetting, true},
		{StatusBetting, StatusPlaying, true},
		{StatusBetting, StatusFinished, true},
		{StatusPlaying, StatusFinished, true},
		{StatusWaiting, StatusFinished, false},
		{StatusFinished, StatusBetting, false},
		{StatusPlaying, StatusBetting, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestAddBetMergesSameKey(t *testing.T) {
	s := &GameSession{}
	s.AddBet(Bet{UserID: 1, Amount: 10, BetType: "red"})
	s.AddBet(Bet{UserID: 1, Amount: 5, BetType: "red"})
	s.AddBet(Bet{UserID: 1, Amount: 5, BetType: "straight", Value: "7"})
	s.AddBet(Bet{UserID: 1, Amount: 5, BetType: "straight", Value: "8"})
	s.AddBet(Bet{UserID: 2, Amount: 5, BetType: "red"})

	require.Len(t, s.Bets, 4)
	assert.Equal(t, int64(15), s.Bets[0].Amount)
}

func TestBettingOpen(t *testing.T) {
	now := time.Now()
	ends := now.Add(time.Second)
	s := &GameSession{Status: StatusBetting, BettingEndsAt: &ends}
	assert.True(t, s.BettingOpen(now))
	assert.False(t, s.BettingOpen(ends))

	s.Status = StatusFinished
	assert.False(t, s.BettingOpen(now))
}

func TestRoundID(t *testing.T) {
	s := &GameSession{RoundNumber: 12}
	assert.Equal(t, "round_12", s.RoundID())
}

func TestResultEnvelope(t *testing.T) {
	results := []Result{
		RouletteResult{Number: 22, Color: "black"},
		BaccaratResult{PlayerCards: []Card{{Rank: 1, Suit: Hearts}}, Winner: "player"},
		SlotsResult{Grid: [9]string{"🍒"}, WinningLines: []int{0}, Multiplier: 2},
		QuickResult{GameType: GameHighLow, Outcome: "high", Number: 77},
		PokerResult{Winners: []int64{1, 2}, Hand: "pair", Pot: 40},
	}
	for _, r := range results {
		b, err := MarshalResult(r)
		require.NoError(t, err)
		got, err := UnmarshalResult(b)
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}

	_, err := UnmarshalResult([]byte(`{"game":"blackjack","data":{}}`))
	assert.Error(t, err)

	got, err := UnmarshalResult([]byte("null"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStateEnvelopeAndClone(t *testing.T) {
	ps := &PokerState{
		Players: []PokerPlayer{{UserID: 1, Chips: 100, Cards: []Card{{Rank: 13, Suit: Spades}}}},
		Phase:   PhaseFlop,
		Pot:     20,
	}
	b, err := MarshalState(ps)
	require.NoError(t, err)
	got, err := UnmarshalState(b)
	require.NoError(t, err)
	assert.Equal(t, ps, got)

	c := ps.Clone()
	c.Players[0].Cards[0].Rank = 2
	assert.Equal(t, 13, ps.Players[0].Cards[0].Rank)
}

func TestDefaultFriendBetSettings(t *testing.T) {
	s := DefaultFriendBetSettings()
	assert.True(t, s.Enabled)
	assert.Equal(t, "1.8", s.Multiplier(FriendBetGains).String())
	assert.Equal(t, "1.5", s.Multiplier(FriendBetLosses).String())
}

func TestTournamentPhase(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := &Tournament{StartTime: start, EndTime: start.Add(time.Hour), Status: TournamentUpcoming}

	assert.Equal(t, TournamentUpcoming, tr.Phase(start.Add(-time.Second)))
	assert.Equal(t, TournamentActive, tr.Phase(start))
	assert.Equal(t, TournamentActive, tr.Phase(start.Add(59*time.Minute)))
	assert.Equal(t, TournamentFinished, tr.Phase(start.Add(time.Hour)))

	tr.Status = TournamentFinished
	assert.Equal(t, TournamentFinished, tr.Phase(start))
}

func TestTournamentCounts(t *testing.T) {
	single := &Tournament{GameType: GameRoulette}
	assert.True(t, single.Counts(GameRoulette))
	assert.False(t, single.Counts(GameSlots))

	multi := &Tournament{GameType: GameMulti, Games: []GameType{GameSlots, GamePoker}}
	assert.True(t, multi.Counts(GamePoker))
	assert.False(t, multi.Counts(GameRoulette))

	open := &Tournament{GameType: GameMulti}
	assert.True(t, open.Counts(GameCoinFlip))
}

func TestTournamentAddScore(t *testing.T) {
	tr := &Tournament{}
	tr.AddScore(1, 100)
	tr.AddScore(2, 300)
	tr.AddScore(3, 100)
	tr.AddScore(1, 250)

	assert.Equal(t, []LeaderboardEntry{
		{UserID: 1, Score: 350, Position: 1},
		{UserID: 2, Score: 300, Position: 2},
		{UserID: 3, Score: 100, Position: 3},
	}, tr.Leaderboard)

	// a tie keeps the earlier entry ahead
	tr.AddScore(3, 200)
	assert.Equal(t, int64(2), tr.Leaderboard[1].UserID)
	assert.Equal(t, int64(3), tr.Leaderboard[2].UserID)
	assert.Equal(t, 3, tr.Leaderboard[2].Position)
}

func TestSpinDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	got := SpinDay(time.Date(2026, 3, 2, 7, 30, 0, 0, loc))
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got)
}
