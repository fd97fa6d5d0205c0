package poker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"social-casino/internal/model"
)

func headsUp(t *testing.T) *model.PokerState {
	st := NewState(map[int64]int64{1: 100, 2: 100}, []int64{1, 2}, 10)
	require.NoError(t, Deal(st, "abc123"))
	return st
}

func TestDealRequiresTwoFundedPlayers(t *testing.T) {
	st := NewState(map[int64]int64{1: 100, 2: 0}, []int64{1, 2}, 10)
	assert.ErrorIs(t, Deal(st, "x"), ErrNotEnoughPlayers)
}

func TestDealGivesHoleCards(t *testing.T) {
	st := headsUp(t)
	assert.Len(t, st.Players[0].Cards, 2)
	assert.Len(t, st.Players[1].Cards, 2)
	assert.Len(t, st.Deck, 48)
	assert.Equal(t, model.PhasePreflop, st.Phase)
	// first to act sits after the dealer
	assert.Equal(t, 1, st.CurrentPlayer)
}

func TestActTurnOrder(t *testing.T) {
	st := headsUp(t)
	assert.ErrorIs(t, Act(st, 1, ActionCheck, 0), ErrNotYourTurn)
	assert.ErrorIs(t, Act(st, 3, ActionCheck, 0), ErrNotSeated)
	assert.ErrorIs(t, Act(st, 2, "dance", 0), ErrUnknownAction)
}

func TestFoldEndsHand(t *testing.T) {
	st := headsUp(t)
	require.NoError(t, Act(st, 2, ActionRaise, 10))
	assert.Equal(t, int64(10), st.Pot)
	assert.Equal(t, int64(10), st.CurrentBet)

	assert.ErrorIs(t, Act(st, 1, ActionCheck, 0), ErrCannotCheck)
	require.NoError(t, Act(st, 1, ActionFold, 0))
	require.True(t, Finished(st))

	res := Showdown(st)
	assert.Equal(t, []int64{2}, res.Winners)
	assert.Equal(t, "uncontested", res.Hand)
	assert.Equal(t, int64(100), st.Players[0].Chips)
	assert.Equal(t, int64(100), st.Players[1].Chips)
	assert.Zero(t, st.Pot)
}

func TestRaiseArithmetic(t *testing.T) {
	st := headsUp(t)
	require.NoError(t, Act(st, 2, ActionRaise, 10))
	// re-raise by 20: total 30, player 1 puts in 30
	require.NoError(t, Act(st, 1, ActionRaise, 20))
	assert.Equal(t, int64(30), st.CurrentBet)
	assert.Equal(t, int64(40), st.Pot)
	assert.Equal(t, int64(70), st.Players[0].Chips)

	require.NoError(t, Act(st, 2, ActionCall, 0))
	assert.Equal(t, int64(60), st.Pot)
	assert.Equal(t, model.PhaseFlop, st.Phase)
	assert.Len(t, st.CommunityCards, 3)
	assert.Zero(t, st.CurrentBet)

	assert.ErrorIs(t, Act(st, 2, ActionRaise, 5), ErrRaiseTooSmall)
	assert.ErrorIs(t, Act(st, 2, ActionRaise, 500), ErrInsufficientChips)
}

func TestCheckDownReachesShowdown(t *testing.T) {
	st := headsUp(t)
	for !Finished(st) {
		cur := st.Players[st.CurrentPlayer].UserID
		require.NoError(t, Act(st, cur, ActionCheck, 0))
	}
	assert.Len(t, st.CommunityCards, 5)
	res := Showdown(st)
	assert.NotEmpty(t, res.Winners)
	assert.NotEmpty(t, res.Hand)
}

func TestAllInRunsOutBoard(t *testing.T) {
	st := headsUp(t)
	require.NoError(t, Act(st, 2, ActionAllIn, 0))
	require.NoError(t, Act(st, 1, ActionCall, 0))
	require.True(t, Finished(st))
	assert.Len(t, st.CommunityCards, 5)

	Showdown(st)
	assert.Equal(t, int64(200), st.Players[0].Chips+st.Players[1].Chips)
}

func TestShowdownSidePots(t *testing.T) {
	st := &model.PokerState{
		CommunityCards: parse(t, "2c 7d 9h Js 4c"),
		Pot:            250,
		Phase:          model.PhaseRiver,
		Players: []model.PokerPlayer{
			{UserID: 1, Position: 0, TotalBet: 50, Status: model.PlayerAllIn, Cards: parse(t, "Ac Ad")},
			{UserID: 2, Position: 1, TotalBet: 100, Status: model.PlayerCalled, Cards: parse(t, "Kc Kd")},
			{UserID: 3, Position: 2, TotalBet: 100, Status: model.PlayerCalled, Cards: parse(t, "3s 5s")},
		},
	}
	res := Showdown(st)

	assert.Equal(t, []int64{1, 2}, res.Winners)
	assert.Equal(t, int64(150), st.Players[0].Chips)
	assert.Equal(t, int64(100), st.Players[1].Chips)
	assert.Zero(t, st.Players[2].Chips)
}

func TestShowdownSplitOddChip(t *testing.T) {
	st := &model.PokerState{
		CommunityCards: parse(t, "As Ks Qs Js 10s"),
		Pot:            21,
		Players: []model.PokerPlayer{
			{UserID: 1, Position: 0, TotalBet: 10, Status: model.PlayerCalled, Cards: parse(t, "2c 3d")},
			{UserID: 2, Position: 1, TotalBet: 11, Status: model.PlayerCalled, Cards: parse(t, "4c 5d")},
		},
	}
	res := Showdown(st)

	assert.Equal(t, []int64{1, 2}, res.Winners)
	assert.Equal(t, "straight flush", res.Hand)
	// 20 split evenly, the extra chip only player 2 contested
	assert.Equal(t, int64(10), st.Players[0].Chips)
	assert.Equal(t, int64(11), st.Players[1].Chips)
}

func TestChipConservationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(2, 6).Draw(t, "players")
		stacks := make(map[int64]int64, n)
		order := make([]int64, n)
		var total int64
		for i := 0; i < n; i++ {
			id := int64(i + 1)
			order[i] = id
			stacks[id] = rapid.Int64Range(20, 500).Draw(t, "stack")
			total += stacks[id]
		}
		st := NewState(stacks, order, 10)
		if err := Deal(st, rapid.StringMatching(`[0-9a-z]{6}`).Draw(t, "seed")); err != nil {
			t.Fatal(err)
		}

		actions := []Action{ActionFold, ActionCheck, ActionCall, ActionRaise, ActionAllIn}
		for steps := 0; !Finished(st) && steps < 200; steps++ {
			cur := st.Players[st.CurrentPlayer].UserID
			a := rapid.SampledFrom(actions).Draw(t, "action")
			amt := rapid.Int64Range(10, 60).Draw(t, "amount")
			_ = Act(st, cur, a, amt)

			var committed, chips int64
			for _, p := range st.Players {
				committed += p.TotalBet
				chips += p.Chips
			}
			if st.Pot != committed {
				t.Fatalf("pot %d != committed %d", st.Pot, committed)
			}
			if chips+st.Pot != total {
				t.Fatalf("chips %d + pot %d != %d", chips, st.Pot, total)
			}
		}
		if !Finished(st) {
			return
		}
		Showdown(st)
		var chips int64
		for _, p := range st.Players {
			chips += p.Chips
		}
		if chips != total {
			t.Fatalf("after showdown chips %d != %d", chips, total)
		}
	})
}
