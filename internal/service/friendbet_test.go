package service

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-casino/internal/apperr"
	"social-casino/internal/config"
	"social-casino/internal/model"
	"social-casino/internal/repository"
)

type friendBetFixture struct {
	*fixture
	bettor, target model.Caller
	sess           *model.GameSession
}

func newFriendBetFixture(t *testing.T) *friendBetFixture {
	f := newFixture(t)
	fb := &friendBetFixture{fixture: f, bettor: f.user(t, 1), target: f.user(t, 2)}
	f.befriend(t, fb.bettor, fb.target)
	fb.sess = f.openRound(t, "roulette-vip")
	return fb
}

func (f *friendBetFixture) request(stake int64) FriendBetRequest {
	return FriendBetRequest{
		TargetID:  f.target.UserID,
		SessionID: f.sess.ID,
		RoundID:   f.sess.RoundID(),
		BetType:   model.FriendBetGains,
		Stake:     stake,
	}
}

func (f *friendBetFixture) finishRound(t *testing.T) {
	f.advance(time.Minute)
	_, err := f.wagers.ResolveRound(f.ctx, f.bettor, f.sess.ID)
	require.NoError(t, err)
}

func TestFriendBet_GainsPaysOnce(t *testing.T) {
	f := newFriendBetFixture(t)

	bet, err := f.friendBets.Place(f.ctx, f.bettor, f.request(50))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), bet.TargetStartBalance)
	assert.True(t, decimal.RequireFromString("1.8").Equal(bet.Multiplier))
	assert.Equal(t, "round_1", bet.RoundID)
	assert.Equal(t, int64(950), f.balance(t, f.bettor))

	// the target ends the round 200 up
	_, _, err = f.accounts.AdjustBalance(f.ctx, admin, f.target.UserID, 200, "lucky streak")
	require.NoError(t, err)
	f.finishRound(t)

	assert.Equal(t, int64(1040), f.balance(t, f.bettor))
	history, err := f.friendBets.History(f.ctx, f.bettor, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	got := history[0]
	assert.Equal(t, model.FriendBetWon, got.Status)
	require.NotNil(t, got.Payout)
	assert.Equal(t, int64(90), *got.Payout)
	require.NotNil(t, got.TargetEndBalance)
	assert.Equal(t, int64(1200), *got.TargetEndBalance)

	n, err := f.friendBets.SettleSession(f.ctx, f.sess.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = f.friendBets.SweepStale(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int64(1040), f.balance(t, f.bettor))

	txs, err := f.accounts.History(f.ctx, f.bettor, 10)
	require.NoError(t, err)
	wins := 0
	for _, tx := range txs {
		if tx.Type == model.TxFriendBetWin {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
	f.audit(t, f.bettor, f.target)
}

func TestFriendBet_LossesLose(t *testing.T) {
	f := newFriendBetFixture(t)
	req := f.request(100)
	req.BetType = model.FriendBetLosses
	_, err := f.friendBets.Place(f.ctx, f.bettor, req)
	require.NoError(t, err)

	f.finishRound(t)
	assert.Equal(t, int64(900), f.balance(t, f.bettor))

	on, err := f.friendBets.OnMe(f.ctx, f.target, 10)
	require.NoError(t, err)
	require.Len(t, on, 1)
	assert.Equal(t, model.FriendBetLost, on[0].Status)
	assert.Equal(t, int64(0), *on[0].Payout)
}

func TestResolve(t *testing.T) {
	gains := &model.FriendBet{BetType: model.FriendBetGains, Stake: 50, Multiplier: decimal.RequireFromString("1.8"), TargetStartBalance: 1000}
	losses := &model.FriendBet{BetType: model.FriendBetLosses, Stake: 33, Multiplier: decimal.RequireFromString("1.5"), TargetStartBalance: 1000}

	tests := []struct {
		name   string
		bet    *model.FriendBet
		end    int64
		won    bool
		payout int64
	}{
		{"gains up", gains, 1200, true, 90},
		{"gains flat", gains, 1000, false, 0},
		{"gains down", gains, 800, false, 0},
		{"losses down rounds half up", losses, 999, true, 50},
		{"losses flat", losses, 1000, false, 0},
		{"losses up", losses, 1001, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			won, payout := Resolve(tt.bet, tt.end)
			assert.Equal(t, tt.won, won)
			assert.Equal(t, tt.payout, payout)
		})
	}
}

func TestFriendBet_IneligibleLeavesLedgerUntouched(t *testing.T) {
	f := newFriendBetFixture(t)
	stranger := f.user(t, 3)
	other := f.openRound(t, "roulette-beginner")

	tests := []struct {
		name   string
		mutate func(r *FriendBetRequest)
		want   error
	}{
		{"below minimum", func(r *FriendBetRequest) { r.Stake = 9 }, apperr.ErrValidation},
		{"above maximum", func(r *FriendBetRequest) { r.Stake = 1001 }, apperr.ErrValidation},
		{"unknown direction", func(r *FriendBetRequest) { r.BetType = "sideways" }, apperr.ErrValidation},
		{"self", func(r *FriendBetRequest) { r.TargetID = f.bettor.UserID }, apperr.ErrValidation},
		{"not a friend", func(r *FriendBetRequest) { r.TargetID = stranger.UserID }, apperr.ErrValidation},
		{"unknown session", func(r *FriendBetRequest) { r.SessionID = uuid.New() }, apperr.ErrNotFound},
		{"wrong round id", func(r *FriendBetRequest) { r.RoundID = "round_7" }, apperr.ErrValidation},
		{"round id of another table", func(r *FriendBetRequest) { r.SessionID = other.ID; r.RoundID = "round_2" }, apperr.ErrValidation},
	}
	before := f.txCount(t, f.bettor)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.request(50)
			tt.mutate(&req)
			_, err := f.friendBets.Place(f.ctx, f.bettor, req)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, int64(1000), f.balance(t, f.bettor))
			assert.Equal(t, before, f.txCount(t, f.bettor))
		})
	}

	active, err := f.friendBets.Active(f.ctx, f.bettor)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestFriendBet_InsufficientBalance(t *testing.T) {
	f := newFriendBetFixture(t)
	_, _, err := f.accounts.AdjustBalance(f.ctx, admin, f.bettor.UserID, -990, "")
	require.NoError(t, err)
	before := f.txCount(t, f.bettor)

	_, err = f.friendBets.Place(f.ctx, f.bettor, f.request(11))
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, before, f.txCount(t, f.bettor))
}

func TestFriendBet_FinishedSession(t *testing.T) {
	f := newFriendBetFixture(t)
	f.finishRound(t)

	_, err := f.friendBets.Place(f.ctx, f.bettor, f.request(50))
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, int64(1000), f.balance(t, f.bettor))
}

func TestFriendBet_DuplicateCooldownAndCap(t *testing.T) {
	f := newFriendBetFixture(t)

	_, err := f.friendBets.Place(f.ctx, f.bettor, f.request(50))
	require.NoError(t, err)

	_, err = f.friendBets.Place(f.ctx, f.bettor, f.request(50))
	assert.ErrorIs(t, err, apperr.ErrConflict)

	second := f.openRound(t, "roulette-beginner")
	req := f.request(50)
	req.SessionID, req.RoundID = second.ID, second.RoundID()
	_, err = f.friendBets.Place(f.ctx, f.bettor, req)
	assert.ErrorIs(t, err, apperr.ErrValidation, "cooldown")

	f.advance(5 * time.Minute)
	_, err = f.friendBets.Place(f.ctx, f.bettor, req)
	require.NoError(t, err)

	f.advance(5 * time.Minute)
	third := f.openRound(t, "poker-vip")
	req.SessionID, req.RoundID = third.ID, third.RoundID()
	_, err = f.friendBets.Place(f.ctx, f.bettor, req)
	require.NoError(t, err)

	f.advance(5 * time.Minute)
	fourth := f.openRound(t, "poker-beginner")
	req.SessionID, req.RoundID = fourth.ID, fourth.RoundID()
	_, err = f.friendBets.Place(f.ctx, f.bettor, req)
	assert.ErrorIs(t, err, apperr.ErrValidation, "at most three active bets")

	assert.Equal(t, int64(850), f.balance(t, f.bettor))
	f.audit(t, f.bettor)
}

func TestFriendBet_ConcurrentDuplicatesPlaceOnce(t *testing.T) {
	f := newFriendBetFixture(t)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := range attempts {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.friendBets.Place(f.ctx, f.bettor, f.request(50))
		}(i)
	}
	wg.Wait()

	placed := 0
	for _, err := range errs {
		if err == nil {
			placed++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrConflict)
	}
	assert.Equal(t, 1, placed)
	assert.Equal(t, int64(950), f.balance(t, f.bettor))

	active, err := f.friendBets.Active(f.ctx, f.bettor)
	require.NoError(t, err)
	assert.Len(t, active, 1)
	f.audit(t, f.bettor)
}

func TestFriendBet_Cancel(t *testing.T) {
	f := newFriendBetFixture(t)
	bet, err := f.friendBets.Place(f.ctx, f.bettor, f.request(75))
	require.NoError(t, err)

	_, err = f.friendBets.Cancel(f.ctx, f.target, bet.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	cancelled, err := f.friendBets.Cancel(f.ctx, f.bettor, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FriendBetCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.ResolvedAt)
	assert.Equal(t, int64(1000), f.balance(t, f.bettor))

	_, err = f.friendBets.Cancel(f.ctx, f.bettor, bet.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// a cancelled bet is never settled
	f.finishRound(t)
	assert.Equal(t, int64(1000), f.balance(t, f.bettor))
	f.audit(t, f.bettor)
}

func TestFriendBet_SweepStale(t *testing.T) {
	f := newFriendBetFixture(t)
	f.rounds.SetSettler(nil)

	_, err := f.friendBets.Place(f.ctx, f.bettor, f.request(50))
	require.NoError(t, err)
	_, _, err = f.accounts.AdjustBalance(f.ctx, admin, f.target.UserID, 1, "")
	require.NoError(t, err)
	f.finishRound(t)

	active, err := f.friendBets.Active(f.ctx, f.bettor)
	require.NoError(t, err)
	require.Len(t, active, 1, "left active without a settler")

	n, err := f.friendBets.SweepStale(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(1040), f.balance(t, f.bettor))
	f.audit(t, f.bettor)
}

func TestFriendBet_Settings(t *testing.T) {
	f := newFriendBetFixture(t)

	got, err := f.friendBets.Settings(f.ctx)
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.Equal(t, int64(10), got.MinStake)
	assert.Equal(t, int64(1000), got.MaxStake)
	assert.Equal(t, 5, got.CooldownMinutes)
	assert.Equal(t, 3, got.MaxActiveBetsPerUser)

	disabled := false
	_, err = f.friendBets.UpdateSettings(f.ctx, f.bettor, SettingsUpdate{Enabled: &disabled})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	low := decimal.RequireFromString("0.9")
	_, err = f.friendBets.UpdateSettings(f.ctx, admin, SettingsUpdate{GainsMultiplier: &low})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	updated, err := f.friendBets.UpdateSettings(f.ctx, admin, SettingsUpdate{Enabled: &disabled})
	require.NoError(t, err)
	assert.False(t, updated.Enabled)
	assert.Equal(t, int64(10), updated.MinStake, "unchanged fields keep their value")
	require.NotNil(t, updated.UpdatedBy)
	assert.Equal(t, admin.UserID, *updated.UpdatedBy)

	_, err = f.friendBets.Place(f.ctx, f.bettor, f.request(50))
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, int64(1000), f.balance(t, f.bettor))

	require.NoError(t, f.store.InTx(f.ctx, func(tx repository.Tx) error {
		logs, err := tx.ListAdminLogs(f.ctx, 1)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, "update_friend_bet_settings", logs[0].Action)
		return nil
	}))
}

func TestSummarize(t *testing.T) {
	payout := func(v int64) *int64 { return &v }
	bets := []*model.FriendBet{
		{Status: model.FriendBetWon, Stake: 50, Payout: payout(90)},
		{Status: model.FriendBetLost, Stake: 100, Payout: payout(0)},
		{Status: model.FriendBetLost, Stake: 20, Payout: payout(0)},
		{Status: model.FriendBetActive, Stake: 30},
		{Status: model.FriendBetCancelled, Stake: 40},
	}
	st := Summarize(bets)
	assert.Equal(t, 5, st.TotalBets)
	assert.Equal(t, 1, st.Won)
	assert.Equal(t, 2, st.Lost)
	assert.Equal(t, 1, st.Active)
	assert.Equal(t, 1, st.Cancelled)
	assert.Equal(t, int64(200), st.TotalStaked)
	assert.Equal(t, int64(90), st.TotalPayout)
	assert.InDelta(t, 33.33, st.WinRate, 0.01)
	assert.Equal(t, int64(-80), st.NetProfit)

	empty := Summarize(nil)
	assert.Zero(t, empty.WinRate)
}

func TestFriendBetDefaults(t *testing.T) {
	cfg := config.FriendBetsConfig{
		Enabled:              true,
		MinStake:             10,
		MaxStake:             1000,
		GainsMultiplier:      "1.8",
		LossesMultiplier:     "1.5",
		CooldownMinutes:      5,
		MaxActiveBetsPerUser: 3,
	}
	s, err := FriendBetDefaults(cfg)
	require.NoError(t, err)
	want := model.DefaultFriendBetSettings()
	assert.True(t, s.GainsMultiplier.Equal(want.GainsMultiplier))
	assert.True(t, s.LossesMultiplier.Equal(want.LossesMultiplier))
	assert.Equal(t, want.MinStake, s.MinStake)
	assert.Equal(t, want.MaxActiveBetsPerUser, s.MaxActiveBetsPerUser)

	bad := cfg
	bad.GainsMultiplier = "fast"
	_, err = FriendBetDefaults(bad)
	require.Error(t, err)

	bad = cfg
	bad.LossesMultiplier = "0.9"
	_, err = FriendBetDefaults(bad)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
