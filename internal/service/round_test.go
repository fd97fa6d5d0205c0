package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-casino/internal/apperr"
	"social-casino/internal/game/roulette"
	"social-casino/internal/model"
)

func TestStartNewRound_Idempotent(t *testing.T) {
	f := newFixture(t)

	first, created, err := f.rounds.StartNewRound(f.ctx, "roulette-vip")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, first.RoundNumber)

	second, created, err := f.rounds.StartNewRound(f.ctx, "roulette-vip")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	tables, err := f.rounds.ListTables(f.ctx)
	require.NoError(t, err)
	for _, tbl := range tables {
		if tbl.ID == "roulette-vip" {
			require.NotNil(t, tbl.RoundStartTime)
			require.NotNil(t, tbl.RoundEndTime)
			assert.Equal(t, 30*time.Second, tbl.RoundEndTime.Sub(*tbl.RoundStartTime))
		}
	}
}

func TestStartNewRound_Concurrent(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	ids := map[string]bool{}
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, ok, err := f.rounds.StartNewRound(f.ctx, "roulette-beginner")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if ok {
				created++
			}
			ids[sess.ID.String()] = true
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)
}

func TestStartNewRound_AfterFinish(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, 1)
	first := f.openRound(t, "roulette-vip")
	f.advance(time.Minute)
	_, err := f.wagers.ResolveRound(f.ctx, alice, first.ID)
	require.NoError(t, err)

	next, created, err := f.rounds.StartNewRound(f.ctx, "roulette-vip")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 2, next.RoundNumber)
	assert.NotEqual(t, first.Seed, next.Seed)
}

func TestStartNewRound_UnknownTable(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.rounds.StartNewRound(f.ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestJoinTable_SeatsThenSpectators(t *testing.T) {
	f := newFixture(t)

	var sess *model.GameSession
	for id := int64(1); id <= 7; id++ {
		var err error
		sess, err = f.rounds.JoinTable(f.ctx, f.user(t, id), "roulette-beginner", 0)
		require.NoError(t, err)
	}
	assert.Len(t, sess.Players, 6)
	assert.Equal(t, []int64{7}, sess.Spectators)

	// joining twice changes nothing
	again, err := f.rounds.JoinTable(f.ctx, model.Caller{UserID: 1}, "roulette-beginner", 0)
	require.NoError(t, err)
	assert.Len(t, again.Players, 6)
	assert.Len(t, again.Spectators, 1)
}

func TestPlaceWager_KeepsSeatLimit(t *testing.T) {
	f := newFixture(t)

	for id := int64(1); id <= 7; id++ {
		_, err := f.rounds.JoinTable(f.ctx, f.user(t, id), "roulette-beginner", 0)
		require.NoError(t, err)
	}
	// a bettor who never joined arrives after the seats are gone
	late := f.user(t, 8)

	for _, c := range []model.Caller{{UserID: 7}, late, {UserID: 7}} {
		_, err := f.wagers.PlaceWager(f.ctx, c, WagerRequest{TableID: "roulette-beginner", Amount: 10, BetType: roulette.BetRed})
		require.NoError(t, err)
	}

	sess, err := f.rounds.CurrentSession(f.ctx, "roulette-beginner")
	require.NoError(t, err)
	assert.Len(t, sess.Players, 6)
	assert.Equal(t, []int64{7, 8}, sess.Spectators)
	for _, id := range sess.Spectators {
		assert.False(t, sess.HasPlayer(id), "user %d is both seated and watching", id)
	}
	assert.Len(t, sess.Bets, 2)
}

func TestJoinTable_Rejections(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, 1)

	_, err := f.rounds.JoinTable(f.ctx, alice, "coinflip", 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.rounds.JoinTable(f.ctx, alice, "nowhere", 0)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.rounds.JoinTable(f.ctx, model.Caller{UserID: 77}, "roulette-vip", 0)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.rounds.JoinTable(f.ctx, model.Caller{}, "roulette-vip", 0)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestCreateTable(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, 1)

	tbl := model.GameTable{ID: "roulette-night", GameType: model.GameRoulette, MaxPlayers: 4, MinBet: 5, MaxBet: 50, IsActive: true}
	_, err := f.rounds.CreateTable(f.ctx, alice, tbl)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	bad := tbl
	bad.MaxBet = 1
	_, err = f.rounds.CreateTable(f.ctx, admin, bad)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	created, err := f.rounds.CreateTable(f.ctx, admin, tbl)
	require.NoError(t, err)
	assert.Equal(t, "roulette-night", created.Name)

	sess := f.openRound(t, "roulette-night")
	assert.Equal(t, model.StatusBetting, sess.Status)
}

func TestStartNewRound_SingleShotTable(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.rounds.StartNewRound(f.ctx, "slots-lucky-sevens")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
