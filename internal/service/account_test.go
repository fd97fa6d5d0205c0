package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-casino/internal/apperr"
	"social-casino/internal/game/quick"
	"social-casino/internal/model"
	"social-casino/internal/repository"
)

func TestCreateProfile(t *testing.T) {
	f := newFixture(t)
	alice := model.Caller{UserID: 1}

	profile, wallet, err := f.accounts.CreateProfile(f.ctx, alice, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, int64(1000), wallet.Balance)

	txs, err := f.accounts.History(f.ctx, alice, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, model.TxInitial, txs[0].Type)
	f.audit(t, alice)

	_, _, err = f.accounts.CreateProfile(f.ctx, model.Caller{UserID: 2}, "alice")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, _, err = f.accounts.CreateProfile(f.ctx, alice, "alice2")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, _, err = f.accounts.CreateProfile(f.ctx, model.Caller{UserID: 3}, "no spaces")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, _, err = f.accounts.CreateProfile(f.ctx, model.Caller{}, "ghost")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestWalletNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.accounts.Wallet(f.ctx, model.Caller{UserID: 42})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestClaimDaily(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, 1)

	res, err := f.accounts.ClaimDaily(f.ctx, alice)
	require.NoError(t, err)
	assert.True(t, res.Claimed)
	assert.Equal(t, int64(1100), res.Balance)

	f.advance(23 * time.Hour)
	res, err = f.accounts.ClaimDaily(f.ctx, alice)
	require.NoError(t, err)
	assert.False(t, res.Claimed)
	assert.Equal(t, time.Hour, res.Remaining)
	assert.Equal(t, int64(1100), f.balance(t, alice))

	f.advance(time.Hour)
	res, err = f.accounts.ClaimDaily(f.ctx, alice)
	require.NoError(t, err)
	assert.True(t, res.Claimed)
	assert.Equal(t, int64(1200), res.Balance)
	f.audit(t, alice)
}

func TestSpinWheel_OncePerDay(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, 1)

	_, _, err := f.accounts.SpinWheel(f.ctx, model.Caller{})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	spin, balance, err := f.accounts.SpinWheel(f.ctx, alice)
	require.NoError(t, err)
	segment, prize := quick.SpinWheel(spin.Seed)
	assert.Equal(t, segment, spin.Segment)
	assert.Equal(t, prize, spin.Prize)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), spin.Day)
	assert.Equal(t, 1000+prize, balance)

	// 23:00 is still the same day
	f.advance(11 * time.Hour)
	_, _, err = f.accounts.SpinWheel(f.ctx, alice)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, 1000+prize, f.balance(t, alice))

	f.advance(time.Hour)
	next, balance, err := f.accounts.SpinWheel(f.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1000+prize+next.Prize, balance)
	f.audit(t, alice)

	_, _, err = f.accounts.SpinWheel(f.ctx, model.Caller{UserID: 404})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestVaultDepositAndWithdraw(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, 1)

	w, err := f.accounts.DepositToVault(f.ctx, alice, 300)
	require.NoError(t, err)
	assert.Equal(t, int64(700), w.Balance)
	assert.Equal(t, int64(300), w.Vault)

	_, err = f.accounts.DepositToVault(f.ctx, alice, 701)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.accounts.WithdrawFromVault(f.ctx, alice, 301)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.accounts.DepositToVault(f.ctx, alice, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	w, err = f.accounts.WithdrawFromVault(f.ctx, alice, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(800), w.Balance)
	assert.Equal(t, int64(200), w.Vault)

	txs, err := f.accounts.History(f.ctx, alice, 10)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, model.TxWithdrawal, txs[0].Type)
	assert.Equal(t, int64(100), txs[0].Amount)
	assert.Equal(t, model.TxDeposit, txs[1].Type)
	assert.Equal(t, int64(-300), txs[1].Amount)
	f.audit(t, alice)
}

func TestClaimInterest(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, 1)
	_, err := f.accounts.DepositToVault(f.ctx, alice, 1000)
	require.NoError(t, err)

	f.advance(12 * time.Hour)
	_, _, err = f.accounts.ClaimInterest(f.ctx, alice)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	f.advance(36 * time.Hour)
	interest, w, err := f.accounts.ClaimInterest(f.ctx, alice)
	require.NoError(t, err)
	// two whole days at 5%
	assert.Equal(t, int64(100), interest)
	assert.Equal(t, int64(100), w.Balance)
	assert.Equal(t, int64(1000), w.Vault)

	_, _, err = f.accounts.ClaimInterest(f.ctx, alice)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	f.audit(t, alice)
}

func TestInterestFor(t *testing.T) {
	rate := decimal.RequireFromString("0.05")
	assert.Equal(t, int64(0), InterestFor(19, rate, 1))
	assert.Equal(t, int64(1), InterestFor(39, rate, 1))
	assert.Equal(t, int64(150), InterestFor(1000, rate, 3))
}

func TestAdjustBalance(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, 1)

	_, _, err := f.accounts.AdjustBalance(f.ctx, alice, alice.UserID, 500, "gift")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	applied, w, err := f.accounts.AdjustBalance(f.ctx, admin, alice.UserID, 250, "promo")
	require.NoError(t, err)
	assert.Equal(t, int64(250), applied)
	assert.Equal(t, int64(1250), w.Balance)

	applied, w, err = f.accounts.AdjustBalance(f.ctx, admin, alice.UserID, -5000, "penalty")
	require.NoError(t, err)
	assert.Equal(t, int64(-1250), applied)
	assert.Zero(t, w.Balance)
	f.audit(t, alice)

	_, _, err = f.accounts.AdjustBalance(f.ctx, admin, 404, 10, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.accounts.AdminLogs(f.ctx, alice, 10)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	logs, err := f.accounts.AdminLogs(f.ctx, admin, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "adjust_balance", logs[0].Action)
	assert.Contains(t, logs[0].Details, "penalty")
	require.NotNil(t, logs[0].TargetUserID)
	assert.Equal(t, alice.UserID, *logs[0].TargetUserID)

	logs, err = f.accounts.AdminLogs(f.ctx, admin, 1)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestAddFriend(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, 1), f.user(t, 2)

	status, err := f.accounts.AddFriend(f.ctx, alice, "user2")
	require.NoError(t, err)
	assert.Equal(t, model.FriendshipPending, status)

	_, err = f.accounts.AddFriend(f.ctx, alice, "user1")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.accounts.AddFriend(f.ctx, alice, "nobody")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	status, err = f.accounts.AddFriend(f.ctx, bob, "user1")
	require.NoError(t, err)
	assert.Equal(t, model.FriendshipAccepted, status)

	require.NoError(t, f.store.InTx(f.ctx, func(tx repository.Tx) error {
		ok, err := tx.AreFriends(f.ctx, alice.UserID, bob.UserID)
		require.NoError(t, err)
		assert.True(t, ok)
		return nil
	}))
}
