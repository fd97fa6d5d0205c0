package service

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"social-casino/internal/apperr"
	"social-casino/internal/game"
	"social-casino/internal/game/seed"
	"social-casino/internal/ledger"
	"social-casino/internal/model"
	"social-casino/internal/repository"
)

// WagerRequest is a stake on a table or on a round in progress.
// Single-shot tables are addressed by TableID. Round-based bets name the
// session, or the table whose current round should take the bet.
type WagerRequest struct {
	TableID   string
	SessionID uuid.UUID
	Amount    int64
	BetType   string
	Value     string
}

// WagerResult reports a placed wager. Result is nil while the round is
// still taking bets.
type WagerResult struct {
	Session *model.GameSession
	Result  model.Result
	Payout  int64
	Balance int64
}

// RoundResult reports a resolved round.
type RoundResult struct {
	Session *model.GameSession
	Payouts map[int64]int64
}

// WagerService places and resolves wagers for every registered game.
type WagerService struct {
	clock
	store    repository.Store
	registry *game.Registry
	rounds   *RoundService
}

// NewWagerService creates a new WagerService instance.
func NewWagerService(store repository.Store, registry *game.Registry, rounds *RoundService) *WagerService {
	return &WagerService{store: store, registry: registry, rounds: rounds}
}

// PlaceWager validates and debits a stake. Single-shot games resolve in the
// same unit of work; round-based games add the bet to the open round.
// Nothing is written unless every check passes.
func (s *WagerService) PlaceWager(ctx context.Context, caller model.Caller, req WagerRequest) (*WagerResult, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, apperr.Validation("stake must be positive")
	}

	var res *WagerResult
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		table, sess, err := s.target(ctx, tx, req)
		if err != nil {
			return err
		}
		g, ok := s.registry.Get(table.GameType)
		if !ok {
			return apperr.Validation("%s bets are placed with table actions", table.GameType)
		}
		if req.Amount < table.MinBet || req.Amount > table.MaxBet {
			return apperr.Validation("stake must be between %d and %d", table.MinBet, table.MaxBet)
		}
		bet := model.Bet{UserID: caller.UserID, Amount: req.Amount, BetType: req.BetType, Value: req.Value}
		if err := g.ValidateBet(bet); err != nil {
			return apperr.Wrap(apperr.KindValidation, err, "invalid bet")
		}

		w, err := loadWallet(ctx, tx, caller.UserID)
		if err != nil {
			return err
		}
		if err := requireBalance(w, req.Amount); err != nil {
			return err
		}

		if sess == nil {
			res, err = s.playSingle(ctx, tx, g, table, w, bet)
		} else {
			res, err = s.addBet(ctx, tx, table, sess, w, bet)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("user_id", caller.UserID).
		Str("table_id", res.Session.TableID).
		Str("session_id", res.Session.ID.String()).
		Int64("stake", req.Amount).
		Str("bet_type", req.BetType).
		Int64("payout", res.Payout).
		Msg("Wager placed")

	if res.Session.Status == model.StatusFinished {
		s.rounds.roundFinished(ctx, res.Session, map[int64]int64{caller.UserID: res.Payout})
	}
	return res, nil
}

// target resolves the table and, for round-based games, the open session.
// Status checks come before any wallet access.
func (s *WagerService) target(ctx context.Context, tx repository.Tx, req WagerRequest) (*model.GameTable, *model.GameSession, error) {
	var sess *model.GameSession
	tableID := req.TableID
	if req.SessionID != uuid.Nil {
		var err error
		if sess, err = tx.GetSession(ctx, req.SessionID); err != nil {
			return nil, nil, notFound(err, "session %s not found", req.SessionID)
		}
		tableID = sess.TableID
	}

	table, err := loadTable(ctx, tx, tableID)
	if err != nil {
		return nil, nil, err
	}
	if !table.GameType.RoundBased() {
		if sess != nil {
			return nil, nil, apperr.Validation("%s wagers are placed on the table, not a session", table.GameType)
		}
		return table, nil, nil
	}

	if sess == nil {
		if sess, err = tx.CurrentSession(ctx, table.ID); err != nil {
			return nil, nil, notFound(err, "table %s has no open round", table.ID)
		}
	}
	if !sess.BettingOpen(s.time()) {
		return nil, nil, apperr.Validation("betting is closed for round %d", sess.RoundNumber)
	}
	return table, sess, nil
}

func (s *WagerService) playSingle(ctx context.Context, tx repository.Tx, g game.Game, table *model.GameTable, w *model.Wallet, bet model.Bet) (*WagerResult, error) {
	latest, err := tx.LatestRoundNumber(ctx, table.ID)
	if err != nil {
		return nil, err
	}
	now := s.time()
	sess := &model.GameSession{
		ID:          uuid.New(),
		TableID:     table.ID,
		GameType:    table.GameType,
		Players:     []int64{w.UserID},
		Spectators:  []int64{},
		Bets:        []model.Bet{bet},
		Status:      model.StatusFinished,
		RoundNumber: latest + 1,
		Seed:        seed.New(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := post(ctx, tx, w, ledger.Entry{
		Type:        model.TxBet,
		Amount:      -bet.Amount,
		Description: fmt.Sprintf("%s bet on %s", bet.BetType, table.Name),
		SessionID:   ptr(sess.ID),
	}, now); err != nil {
		return nil, err
	}

	outcome, err := g.Resolve(sess.Seed, sess.Bets)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", table.GameType, err)
	}
	payout := outcome.Payouts[w.UserID]
	if payout > 0 {
		if err := post(ctx, tx, w, ledger.Entry{
			Type:        model.TxWin,
			Amount:      payout,
			Description: fmt.Sprintf("%s win on %s", table.GameType, table.Name),
			SessionID:   ptr(sess.ID),
		}, now); err != nil {
			return nil, err
		}
	}

	sess.Result = outcome.Result
	if err := tx.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return &WagerResult{Session: sess, Result: outcome.Result, Payout: payout, Balance: w.Balance}, nil
}

// addBet debits the stake and merges it into the round. A bettor who is not
// yet at the table takes a free seat; once the seats are gone they bet as a
// spectator.
func (s *WagerService) addBet(ctx context.Context, tx repository.Tx, table *model.GameTable, sess *model.GameSession, w *model.Wallet, bet model.Bet) (*WagerResult, error) {
	now := s.time()
	if err := post(ctx, tx, w, ledger.Entry{
		Type:        model.TxBet,
		Amount:      -bet.Amount,
		Description: fmt.Sprintf("%s bet on round %d", bet.BetType, sess.RoundNumber),
		SessionID:   ptr(sess.ID),
	}, now); err != nil {
		return nil, err
	}
	sess.AddBet(bet)
	switch {
	case sess.HasParticipant(w.UserID):
	case len(sess.Players) < table.MaxPlayers:
		sess.Players = append(sess.Players, w.UserID)
	default:
		sess.Spectators = append(sess.Spectators, w.UserID)
	}
	sess.UpdatedAt = now
	if err := tx.UpdateSession(ctx, sess); err != nil {
		return nil, err
	}
	return &WagerResult{Session: sess, Balance: w.Balance}, nil
}

// ResolveRound computes the outcome of a round whose betting window has
// closed, credits every winner once and finishes the session. Side-bets on
// the round are settled and the next round is scheduled afterwards.
func (s *WagerService) ResolveRound(ctx context.Context, caller model.Caller, sessionID uuid.UUID) (*RoundResult, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	var res *RoundResult
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		sess, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return notFound(err, "session %s not found", sessionID)
		}
		if sess.Status != model.StatusBetting {
			return apperr.Validation("round %d is %s, not taking bets", sess.RoundNumber, sess.Status)
		}
		now := s.time()
		if sess.BettingOpen(now) {
			return apperr.Validation("betting is open for another %s", sess.BettingEndsAt.Sub(now).Round(time.Second))
		}
		g, ok := s.registry.Get(sess.GameType)
		if !ok {
			return apperr.Validation("%s rounds are not resolved by a spin", sess.GameType)
		}

		outcome, err := g.Resolve(sess.Seed, sess.Bets)
		if err != nil {
			return fmt.Errorf("failed to resolve round %d: %w", sess.RoundNumber, err)
		}
		if err := s.payOut(ctx, tx, sess, outcome.Payouts, now); err != nil {
			return err
		}

		sess.Result = outcome.Result
		if err := transition(sess, model.StatusFinished, now); err != nil {
			return err
		}
		if err := tx.UpdateSession(ctx, sess); err != nil {
			return err
		}
		res = &RoundResult{Session: sess, Payouts: outcome.Payouts}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("table_id", res.Session.TableID).
		Int("round", res.Session.RoundNumber).
		Int("winners", len(res.Payouts)).
		Msg("Round resolved")

	s.rounds.roundFinished(ctx, res.Session, res.Payouts)
	return res, nil
}

// payOut credits each winner with one aggregated win transaction, locking
// wallets in ascending user order.
func (s *WagerService) payOut(ctx context.Context, tx repository.Tx, sess *model.GameSession, payouts map[int64]int64, at time.Time) error {
	ids := slices.Sorted(maps.Keys(payouts))
	wallets, err := loadWallets(ctx, tx, ids...)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := post(ctx, tx, wallets[id], ledger.Entry{
			Type:        model.TxWin,
			Amount:      payouts[id],
			Description: fmt.Sprintf("%s round %d win", sess.GameType, sess.RoundNumber),
			SessionID:   ptr(sess.ID),
		}, at); err != nil {
			return err
		}
	}
	return nil
}
