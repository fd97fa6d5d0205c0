package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"social-casino/internal/apperr"
	"social-casino/internal/config"
	"social-casino/internal/ledger"
	"social-casino/internal/model"
	"social-casino/internal/pkg/lock"
	"social-casino/internal/repository"
)

// staleBatch bounds how many stuck side-bets one sweep settles.
const staleBatch = 100

// FriendBetRequest places a side-bet on another user's round.
type FriendBetRequest struct {
	TargetID  int64
	SessionID uuid.UUID
	RoundID   string
	BetType   model.FriendBetType
	Stake     int64
}

// SettingsUpdate changes side-bet settings. Nil fields are left unchanged.
type SettingsUpdate struct {
	Enabled              *bool
	MinStake             *int64
	MaxStake             *int64
	GainsMultiplier      *decimal.Decimal
	LossesMultiplier     *decimal.Decimal
	CooldownMinutes      *int
	MaxActiveBetsPerUser *int
}

// FriendBetService places, cancels and settles side-bets. A side-bet wins
// on the direction of its target's balance change over the round.
type FriendBetService struct {
	clock
	store    repository.Store
	locks    *lock.KeyLock
	defaults model.FriendBetSettings
}

// NewFriendBetService creates a new FriendBetService instance. defaults are
// served until an admin saves settings.
func NewFriendBetService(store repository.Store, locks *lock.KeyLock, defaults model.FriendBetSettings) *FriendBetService {
	return &FriendBetService{store: store, locks: locks, defaults: defaults}
}

// Settings returns the settings in force.
func (s *FriendBetService) Settings(ctx context.Context) (model.FriendBetSettings, error) {
	var out model.FriendBetSettings
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		out, err = s.settings(ctx, tx)
		return err
	})
	return out, err
}

func (s *FriendBetService) settings(ctx context.Context, tx repository.Tx) (model.FriendBetSettings, error) {
	saved, err := tx.GetFriendBetSettings(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return s.defaults, nil
	}
	if err != nil {
		return model.FriendBetSettings{}, err
	}
	return *saved, nil
}

// UpdateSettings applies u to the current settings. Admin only.
func (s *FriendBetService) UpdateSettings(ctx context.Context, caller model.Caller, u SettingsUpdate) (model.FriendBetSettings, error) {
	if err := requireAdmin(caller); err != nil {
		return model.FriendBetSettings{}, err
	}

	var out model.FriendBetSettings
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		cur, err := s.settings(ctx, tx)
		if err != nil {
			return err
		}
		apply(&cur.Enabled, u.Enabled)
		apply(&cur.MinStake, u.MinStake)
		apply(&cur.MaxStake, u.MaxStake)
		apply(&cur.GainsMultiplier, u.GainsMultiplier)
		apply(&cur.LossesMultiplier, u.LossesMultiplier)
		apply(&cur.CooldownMinutes, u.CooldownMinutes)
		apply(&cur.MaxActiveBetsPerUser, u.MaxActiveBetsPerUser)
		if err := validateSettings(cur); err != nil {
			return err
		}

		now := s.time()
		cur.UpdatedBy = ptr(caller.UserID)
		cur.UpdatedAt = now
		if err := tx.SaveFriendBetSettings(ctx, &cur); err != nil {
			return err
		}
		out = cur
		return adminLog(ctx, tx, caller, "update_friend_bet_settings", nil, now,
			"enabled=%t stake=%d-%d gains=%s losses=%s cooldown=%dm max_active=%d",
			cur.Enabled, cur.MinStake, cur.MaxStake, cur.GainsMultiplier, cur.LossesMultiplier,
			cur.CooldownMinutes, cur.MaxActiveBetsPerUser)
	})
	return out, err
}

// FriendBetDefaults converts configured side-bet settings.
func FriendBetDefaults(cfg config.FriendBetsConfig) (model.FriendBetSettings, error) {
	gains, err := decimal.NewFromString(cfg.GainsMultiplier)
	if err != nil {
		return model.FriendBetSettings{}, fmt.Errorf("gains multiplier: %w", err)
	}
	losses, err := decimal.NewFromString(cfg.LossesMultiplier)
	if err != nil {
		return model.FriendBetSettings{}, fmt.Errorf("losses multiplier: %w", err)
	}
	s := model.FriendBetSettings{
		Enabled:              cfg.Enabled,
		MinStake:             cfg.MinStake,
		MaxStake:             cfg.MaxStake,
		GainsMultiplier:      gains,
		LossesMultiplier:     losses,
		CooldownMinutes:      cfg.CooldownMinutes,
		MaxActiveBetsPerUser: cfg.MaxActiveBetsPerUser,
	}
	if err := validateSettings(s); err != nil {
		return model.FriendBetSettings{}, err
	}
	return s, nil
}

func apply[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func validateSettings(s model.FriendBetSettings) error {
	one := decimal.NewFromInt(1)
	switch {
	case s.MinStake <= 0 || s.MaxStake < s.MinStake:
		return apperr.Validation("stake bounds %d-%d are invalid", s.MinStake, s.MaxStake)
	case s.GainsMultiplier.LessThanOrEqual(one) || s.LossesMultiplier.LessThanOrEqual(one):
		return apperr.Validation("multipliers must be greater than 1")
	case s.CooldownMinutes < 0:
		return apperr.Validation("cooldown must not be negative")
	case s.MaxActiveBetsPerUser < 1:
		return apperr.Validation("at least one active bet must be allowed")
	}
	return nil
}

// Place stakes on whether the target's balance rises (gains) or falls
// (losses) during the referenced round. The multiplier is fixed from the
// settings in force now, and the target's balance is recorded as the start
// of the comparison.
//
// Placements by one bettor are serialized: the bettor's key is held and both
// wallet rows are locked before the duplicate, cap and cooldown checks read
// the bettor's bets.
func (s *FriendBetService) Place(ctx context.Context, caller model.Caller, req FriendBetRequest) (*model.FriendBet, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	var bet *model.FriendBet
	err := s.locks.WithLockContext(ctx, lockTimeout, func() error {
		return s.store.InTx(ctx, func(tx repository.Tx) error {
			var err error
			bet, err = s.place(ctx, tx, caller, req)
			return err
		})
	}, lock.UserKey(caller.UserID))
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperr.Conflict("you already have an active bet on this player's round")
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("bet_id", bet.ID.String()).
		Int64("bettor_id", bet.BettorID).
		Int64("target_id", bet.TargetID).
		Str("session_id", bet.SessionID.String()).
		Str("type", string(bet.BetType)).
		Int64("stake", bet.Stake).
		Msg("Friend bet placed")
	return bet, nil
}

func (s *FriendBetService) place(ctx context.Context, tx repository.Tx, caller model.Caller, req FriendBetRequest) (*model.FriendBet, error) {
	settings, err := s.settings(ctx, tx)
	if err != nil {
		return nil, err
	}
	wallets, err := loadWallets(ctx, tx, caller.UserID, req.TargetID)
	if err != nil {
		return nil, err
	}
	if err := s.checkEligibility(ctx, tx, caller, req, settings); err != nil {
		return nil, err
	}

	sess, err := tx.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, notFound(err, "session %s not found", req.SessionID)
	}
	if sess.Status == model.StatusFinished {
		return nil, apperr.Validation("round %d has already finished", sess.RoundNumber)
	}
	if req.RoundID != sess.RoundID() {
		return nil, apperr.Validation("round %q does not match the session's %s", req.RoundID, sess.RoundID())
	}

	bettor, target := wallets[caller.UserID], wallets[req.TargetID]
	if err := requireBalance(bettor, req.Stake); err != nil {
		return nil, err
	}

	now := s.time()
	bet := &model.FriendBet{
		ID:                 uuid.New(),
		BettorID:           caller.UserID,
		TargetID:           req.TargetID,
		SessionID:          sess.ID,
		TableID:            sess.TableID,
		RoundID:            sess.RoundID(),
		BetType:            req.BetType,
		Stake:              req.Stake,
		Multiplier:         settings.Multiplier(req.BetType),
		Status:             model.FriendBetActive,
		TargetStartBalance: target.Balance,
		CreatedAt:          now,
	}
	if err := post(ctx, tx, bettor, ledger.Entry{
		Type:          model.TxFriendBet,
		Amount:        -req.Stake,
		Description:   fmt.Sprintf("friend bet (%s) on round %d", req.BetType, sess.RoundNumber),
		SessionID:     ptr(sess.ID),
		RelatedUserID: ptr(req.TargetID),
	}, now); err != nil {
		return nil, err
	}
	if err := tx.CreateFriendBet(ctx, bet); err != nil {
		return nil, err
	}
	return bet, nil
}

// checkEligibility applies the settings and the bettor's limits. Nothing has
// been written when it runs.
func (s *FriendBetService) checkEligibility(ctx context.Context, tx repository.Tx, caller model.Caller, req FriendBetRequest, settings model.FriendBetSettings) error {
	if !settings.Enabled {
		return apperr.Validation("friend bets are disabled")
	}
	if req.BetType != model.FriendBetGains && req.BetType != model.FriendBetLosses {
		return apperr.Validation("bet type must be gains or losses")
	}
	if req.Stake < settings.MinStake || req.Stake > settings.MaxStake {
		return apperr.Validation("stake must be between %d and %d", settings.MinStake, settings.MaxStake)
	}
	if req.TargetID == caller.UserID {
		return apperr.Validation("you cannot bet on yourself")
	}
	friends, err := tx.AreFriends(ctx, caller.UserID, req.TargetID)
	if err != nil {
		return err
	}
	if !friends {
		return apperr.Validation("you can only bet on friends")
	}

	active, err := tx.ListFriendBets(ctx, repository.FriendBetFilter{BettorID: caller.UserID, Status: model.FriendBetActive})
	if err != nil {
		return err
	}
	for _, b := range active {
		if b.TargetID == req.TargetID && b.SessionID == req.SessionID {
			return apperr.Conflict("you already have an active bet on this player's round")
		}
	}
	if len(active) >= settings.MaxActiveBetsPerUser {
		return apperr.Validation("you may have at most %d active friend bets", settings.MaxActiveBetsPerUser)
	}

	latest, err := tx.ListFriendBets(ctx, repository.FriendBetFilter{BettorID: caller.UserID, Limit: 1})
	if err != nil {
		return err
	}
	if len(latest) > 0 && settings.CooldownMinutes > 0 {
		ready := latest[0].CreatedAt.Add(time.Duration(settings.CooldownMinutes) * time.Minute)
		if now := s.time(); now.Before(ready) {
			return apperr.Validation("wait %s before placing another friend bet", ready.Sub(now).Round(time.Second))
		}
	}
	return nil
}

// Cancel refunds an active side-bet to its bettor.
func (s *FriendBetService) Cancel(ctx context.Context, caller model.Caller, betID uuid.UUID) (*model.FriendBet, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	var bet *model.FriendBet
	err := s.locks.WithLockContext(ctx, lockTimeout, func() error {
		return s.store.InTx(ctx, func(tx repository.Tx) error {
			return s.cancel(ctx, tx, caller, betID, &bet)
		})
	}, lock.UserKey(caller.UserID))
	if err != nil {
		return nil, err
	}
	return bet, nil
}

func (s *FriendBetService) cancel(ctx context.Context, tx repository.Tx, caller model.Caller, betID uuid.UUID, out **model.FriendBet) error {
	bet, err := tx.GetFriendBet(ctx, betID)
	if err != nil {
		return notFound(err, "friend bet %s not found", betID)
	}
	if bet.BettorID != caller.UserID {
		return apperr.NotFound("friend bet %s not found", betID)
	}
	if bet.Status != model.FriendBetActive {
		return apperr.Validation("friend bet is already %s", bet.Status)
	}

	w, err := loadWallet(ctx, tx, caller.UserID)
	if err != nil {
		return err
	}
	now := s.time()
	if err := post(ctx, tx, w, ledger.Entry{
		Type:          model.TxBonus,
		Amount:        bet.Stake,
		Description:   "friend bet refund",
		SessionID:     ptr(bet.SessionID),
		RelatedUserID: ptr(bet.TargetID),
	}, now); err != nil {
		return err
	}
	bet.Status = model.FriendBetCancelled
	bet.ResolvedAt = ptr(now)
	*out = bet
	return tx.UpdateFriendBet(ctx, bet)
}

// SettleSession resolves every active side-bet on a finished session, each
// in its own unit of work. It returns how many were settled.
func (s *FriendBetService) SettleSession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var bets []*model.FriendBet
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		bets, err = tx.ListFriendBets(ctx, repository.FriendBetFilter{SessionID: sessionID, Status: model.FriendBetActive})
		return err
	})
	if err != nil {
		return 0, err
	}
	return s.settleAll(ctx, bets)
}

// SweepStale settles active side-bets whose session finished without
// settling them, for example after a crash between the two steps.
func (s *FriendBetService) SweepStale(ctx context.Context) (int, error) {
	var bets []*model.FriendBet
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		bets, err = tx.ListStaleFriendBets(ctx, staleBatch)
		return err
	})
	if err != nil {
		return 0, err
	}
	return s.settleAll(ctx, bets)
}

func (s *FriendBetService) settleAll(ctx context.Context, bets []*model.FriendBet) (int, error) {
	settled := 0
	var errs []error
	for _, b := range bets {
		ok, err := s.settle(ctx, b.ID)
		if err != nil {
			log.Error().Err(err).Str("bet_id", b.ID.String()).Msg("Failed to settle friend bet")
			errs = append(errs, err)
			continue
		}
		if ok {
			settled++
		}
	}
	return settled, errors.Join(errs...)
}

// settle resolves one side-bet. It is a no-op if the bet is no longer
// active or its session has not finished.
func (s *FriendBetService) settle(ctx context.Context, betID uuid.UUID) (bool, error) {
	settled := false
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		bet, err := tx.GetFriendBet(ctx, betID)
		if err != nil {
			return err
		}
		if bet.Status != model.FriendBetActive {
			return nil
		}
		sess, err := tx.GetSession(ctx, bet.SessionID)
		if err != nil {
			return err
		}
		if sess.Status != model.StatusFinished {
			return nil
		}

		wallets, err := loadWallets(ctx, tx, bet.BettorID, bet.TargetID)
		if err != nil {
			return err
		}
		end := wallets[bet.TargetID].Balance
		won, payout := Resolve(bet, end)

		now := s.time()
		if won {
			bet.Status = model.FriendBetWon
			if err := post(ctx, tx, wallets[bet.BettorID], ledger.Entry{
				Type:          model.TxFriendBetWin,
				Amount:        payout,
				Description:   fmt.Sprintf("friend bet won (%s)", bet.BetType),
				SessionID:     ptr(bet.SessionID),
				RelatedUserID: ptr(bet.TargetID),
			}, now); err != nil {
				return err
			}
		} else {
			bet.Status = model.FriendBetLost
		}
		bet.TargetEndBalance = ptr(end)
		bet.Payout = ptr(payout)
		bet.ResolvedAt = ptr(now)
		if err := tx.UpdateFriendBet(ctx, bet); err != nil {
			return err
		}
		settled = true
		return nil
	})
	return settled, err
}

// Resolve decides a side-bet from the target's balance at the end of the
// round. A win pays round(stake × multiplier); a loss pays nothing.
func Resolve(bet *model.FriendBet, endBalance int64) (won bool, payout int64) {
	delta := endBalance - bet.TargetStartBalance
	switch bet.BetType {
	case model.FriendBetGains:
		won = delta > 0
	case model.FriendBetLosses:
		won = delta < 0
	}
	if !won {
		return false, 0
	}
	return true, decimal.NewFromInt(bet.Stake).Mul(bet.Multiplier).Round(0).IntPart()
}

// Active returns the caller's active side-bets.
func (s *FriendBetService) Active(ctx context.Context, caller model.Caller) ([]*model.FriendBet, error) {
	return s.list(ctx, caller, repository.FriendBetFilter{BettorID: caller.UserID, Status: model.FriendBetActive})
}

// History returns the caller's side-bets, newest first.
func (s *FriendBetService) History(ctx context.Context, caller model.Caller, limit int) ([]*model.FriendBet, error) {
	return s.list(ctx, caller, repository.FriendBetFilter{BettorID: caller.UserID, Limit: limit})
}

// OnMe returns side-bets other users placed on the caller.
func (s *FriendBetService) OnMe(ctx context.Context, caller model.Caller, limit int) ([]*model.FriendBet, error) {
	return s.list(ctx, caller, repository.FriendBetFilter{TargetID: caller.UserID, Limit: limit})
}

func (s *FriendBetService) list(ctx context.Context, caller model.Caller, f repository.FriendBetFilter) ([]*model.FriendBet, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	var bets []*model.FriendBet
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		bets, err = tx.ListFriendBets(ctx, f)
		return err
	})
	return bets, err
}

// Stats aggregates the caller's side-bet history. Cancelled bets count
// towards the total but not the amount staked.
func (s *FriendBetService) Stats(ctx context.Context, caller model.Caller) (*model.FriendBetStats, error) {
	bets, err := s.History(ctx, caller, 0)
	if err != nil {
		return nil, err
	}
	return Summarize(bets), nil
}

// Summarize computes statistics over a set of side-bets.
func Summarize(bets []*model.FriendBet) *model.FriendBetStats {
	st := &model.FriendBetStats{TotalBets: len(bets)}
	var resolvedStake int64
	for _, b := range bets {
		switch b.Status {
		case model.FriendBetWon:
			st.Won++
			resolvedStake += b.Stake
		case model.FriendBetLost:
			st.Lost++
			resolvedStake += b.Stake
		case model.FriendBetActive:
			st.Active++
		case model.FriendBetCancelled:
			st.Cancelled++
			continue
		}
		st.TotalStaked += b.Stake
		if b.Payout != nil {
			st.TotalPayout += *b.Payout
		}
	}
	if resolved := st.Won + st.Lost; resolved > 0 {
		st.WinRate = float64(st.Won) / float64(resolved) * 100
	}
	st.NetProfit = st.TotalPayout - resolvedStake
	return st
}
