package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/require"

	"social-casino/internal/config"
	"social-casino/internal/game"
	"social-casino/internal/game/baccarat"
	"social-casino/internal/game/quick"
	"social-casino/internal/game/roulette"
	"social-casino/internal/game/slots"
	"social-casino/internal/ledger"
	"social-casino/internal/model"
	"social-casino/internal/pkg/lock"
	"social-casino/internal/repository"
)

var admin = model.Caller{UserID: 999, Admin: true}

// fakeScheduler records scheduled rounds instead of arming timers.
type fakeScheduler struct {
	mu    sync.Mutex
	calls []string
	after []time.Duration
}

func (f *fakeScheduler) Schedule(_ context.Context, tableID string, after time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tableID)
	f.after = append(f.after, after)
	return nil
}

type fixture struct {
	ctx   context.Context
	store *repository.MemoryStore
	now   time.Time

	accounts    *AccountService
	rounds      *RoundService
	wagers      *WagerService
	poker       *PokerService
	friendBets  *FriendBetService
	tournaments *TournamentService
	scheduler   *fakeScheduler
}

func newFixture(t require.TestingT) *fixture {
	f := &fixture{
		ctx:       context.Background(),
		store:     repository.NewMemoryStore(),
		now:       time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		scheduler: &fakeScheduler{},
	}
	clockFn := func() time.Time { return f.now }

	var err error
	f.accounts, err = NewAccountService(f.store,
		config.WalletConfig{StartingBalance: 1000, VaultInterestRate: "0.05"},
		config.DailyConfig{Reward: 100, CooldownHours: 24})
	require.NoError(t, err)

	registry, err := game.NewRegistry(roulette.New(), baccarat.New(), slots.New(), quick.NewCoinFlip(), quick.NewHighLow())
	require.NoError(t, err)

	locks := lock.New()
	f.rounds = NewRoundService(f.store, locks, config.RoundsConfig{
		BettingWindow: 30 * time.Second,
		NextRoundIn:   5 * time.Second,
	})
	f.wagers = NewWagerService(f.store, registry, f.rounds)
	f.poker = NewPokerService(f.store, f.rounds)
	f.friendBets = NewFriendBetService(f.store, locks, model.DefaultFriendBetSettings())
	f.tournaments = NewTournamentService(f.store)
	f.rounds.SetScheduler(f.scheduler)
	f.rounds.SetSettler(f.friendBets)
	f.rounds.SetScorer(f.tournaments)

	for _, c := range []interface{ SetClock(func() time.Time) }{f.accounts, f.rounds, f.wagers, f.poker, f.friendBets, f.tournaments} {
		c.SetClock(clockFn)
	}

	require.NoError(t, f.rounds.SeedTables(f.ctx, config.DefaultTables()))
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// user creates a profile for id and returns its caller.
func (f *fixture) user(t require.TestingT, id int64) model.Caller {
	c := model.Caller{UserID: id}
	_, _, err := f.accounts.CreateProfile(f.ctx, c, fmt.Sprintf("user%d", id))
	require.NoError(t, err)
	return c
}

func (f *fixture) befriend(t require.TestingT, a, b model.Caller) {
	_, err := f.accounts.AddFriend(f.ctx, a, fmt.Sprintf("user%d", b.UserID))
	require.NoError(t, err)
	status, err := f.accounts.AddFriend(f.ctx, b, fmt.Sprintf("user%d", a.UserID))
	require.NoError(t, err)
	require.Equal(t, model.FriendshipAccepted, status)
}

func (f *fixture) balance(t require.TestingT, c model.Caller) int64 {
	w, err := f.accounts.Wallet(f.ctx, c)
	require.NoError(t, err)
	return w.Balance
}

func (f *fixture) txCount(t require.TestingT, c model.Caller) int {
	txs, err := f.accounts.History(f.ctx, c, 100)
	require.NoError(t, err)
	return len(txs)
}

// audit checks that every wallet equals the sum of its ledger and is not negative.
func (f *fixture) audit(t require.TestingT, callers ...model.Caller) {
	require.NoError(t, f.store.InTx(f.ctx, func(tx repository.Tx) error {
		for _, c := range callers {
			ok, err := ledger.Audit(f.ctx, tx, c.UserID)
			require.NoError(t, err)
			require.True(t, ok, "ledger of user %d does not sum to its balance", c.UserID)
			w, err := tx.GetWallet(f.ctx, c.UserID)
			require.NoError(t, err)
			require.GreaterOrEqual(t, w.Balance, int64(0))
			require.GreaterOrEqual(t, w.Vault, int64(0))
		}
		return nil
	}))
}

// openRound starts a round at the table and returns it.
func (f *fixture) openRound(t require.TestingT, tableID string) *model.GameSession {
	sess, _, err := f.rounds.StartNewRound(f.ctx, tableID)
	require.NoError(t, err)
	return sess
}
