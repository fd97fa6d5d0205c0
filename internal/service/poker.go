package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"social-casino/internal/apperr"
	"social-casino/internal/game/poker"
	"social-casino/internal/ledger"
	"social-casino/internal/model"
	"social-casino/internal/repository"
)

// PokerService runs hold'em hands. A session holds one hand: players buy in
// when they join, and every stack is cashed back to its wallet at showdown.
type PokerService struct {
	clock
	store  repository.Store
	rounds *RoundService
}

// NewPokerService creates a new PokerService instance.
func NewPokerService(store repository.Store, rounds *RoundService) *PokerService {
	return &PokerService{store: store, rounds: rounds}
}

// DealHand deals hole cards and opens betting. The caller must be seated.
func (s *PokerService) DealHand(ctx context.Context, caller model.Caller, sessionID uuid.UUID) (*model.GameSession, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	var sess *model.GameSession
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var st *model.PokerState
		var err error
		if sess, st, err = loadPoker(ctx, tx, sessionID); err != nil {
			return err
		}
		if !sess.HasPlayer(caller.UserID) {
			return apperr.Validation("only seated players can deal")
		}
		if sess.Status != model.StatusWaiting {
			return apperr.Validation("the hand has already been dealt")
		}
		if err := poker.Deal(st, sess.Seed); err != nil {
			return pokerError(err)
		}
		if err := transition(sess, model.StatusBetting, s.time()); err != nil {
			return err
		}
		sess.State = st
		return tx.UpdateSession(ctx, sess)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", sessionID.String()).
		Int("players", len(sess.Players)).
		Msg("Poker hand dealt")
	return sess, nil
}

// Act applies a betting action. When the hand ends the pot is awarded and
// every stack is cashed out.
func (s *PokerService) Act(ctx context.Context, caller model.Caller, sessionID uuid.UUID, action poker.Action, amount int64) (*model.GameSession, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	var sess *model.GameSession
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var st *model.PokerState
		var err error
		if sess, st, err = loadPoker(ctx, tx, sessionID); err != nil {
			return err
		}
		if sess.Status != model.StatusBetting && sess.Status != model.StatusPlaying {
			return apperr.Validation("there is no hand in progress")
		}
		if err := poker.Act(st, caller.UserID, action, amount); err != nil {
			return pokerError(err)
		}

		now := s.time()
		if sess.Status == model.StatusBetting {
			if err := transition(sess, model.StatusPlaying, now); err != nil {
				return err
			}
		}
		sess.State = st
		sess.UpdatedAt = now

		if poker.Finished(st) {
			if err := s.showdown(ctx, tx, sess, st, now); err != nil {
				return err
			}
		}
		return tx.UpdateSession(ctx, sess)
	})
	if err != nil {
		return nil, err
	}

	if sess.Status == model.StatusFinished {
		res, _ := sess.Result.(model.PokerResult)
		log.Info().
			Str("session_id", sessionID.String()).
			Ints64("winners", res.Winners).
			Str("hand", res.Hand).
			Int64("pot", res.Pot).
			Msg("Poker hand finished")
		s.rounds.roundFinished(ctx, sess, potShares(res))
	}
	return sess, nil
}

// potShares splits the pot evenly between the winners for tournament
// scoring.
func potShares(res model.PokerResult) map[int64]int64 {
	if len(res.Winners) == 0 {
		return nil
	}
	share := res.Pot / int64(len(res.Winners))
	out := make(map[int64]int64, len(res.Winners))
	for _, id := range res.Winners {
		out[id] = share
	}
	return out
}

// showdown awards the pot and cashes every stack out with a win transaction.
func (s *PokerService) showdown(ctx context.Context, tx repository.Tx, sess *model.GameSession, st *model.PokerState, at time.Time) error {
	res := poker.Showdown(st)

	ids := make([]int64, 0, len(st.Players))
	for _, p := range st.Players {
		ids = append(ids, p.UserID)
	}
	wallets, err := loadWallets(ctx, tx, ids...)
	if err != nil {
		return err
	}
	for i := range st.Players {
		p := &st.Players[i]
		if p.Chips == 0 {
			continue
		}
		if err := post(ctx, tx, wallets[p.UserID], ledger.Entry{
			Type:        model.TxWin,
			Amount:      p.Chips,
			Description: fmt.Sprintf("poker cash-out, round %d", sess.RoundNumber),
			SessionID:   ptr(sess.ID),
		}, at); err != nil {
			return err
		}
		p.Chips = 0
	}

	sess.Result = res
	return transition(sess, model.StatusFinished, at)
}

// Leave returns the caller's buy-in and frees their seat before the deal.
func (s *PokerService) Leave(ctx context.Context, caller model.Caller, sessionID uuid.UUID) (int64, error) {
	if err := requireCaller(caller); err != nil {
		return 0, err
	}

	var refund int64
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		sess, st, err := loadPoker(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if sess.Status != model.StatusWaiting {
			return apperr.Validation("you cannot leave once the hand is dealt")
		}
		p, ok := st.Player(caller.UserID)
		if !ok {
			return apperr.Validation("you are not seated at this table")
		}
		refund = p.Chips

		now := s.time()
		if refund > 0 {
			w, err := loadWallet(ctx, tx, caller.UserID)
			if err != nil {
				return err
			}
			if err := post(ctx, tx, w, ledger.Entry{
				Type:        model.TxBonus,
				Amount:      refund,
				Description: "poker buy-in refund",
				SessionID:   ptr(sess.ID),
			}, now); err != nil {
				return err
			}
		}

		kept := st.Players[:0]
		for _, pl := range st.Players {
			if pl.UserID != caller.UserID {
				pl.Position = len(kept)
				kept = append(kept, pl)
			}
		}
		st.Players = kept
		players := sess.Players[:0]
		for _, id := range sess.Players {
			if id != caller.UserID {
				players = append(players, id)
			}
		}
		sess.Players = players
		sess.State = st
		sess.UpdatedAt = now
		return tx.UpdateSession(ctx, sess)
	})
	return refund, err
}

func loadPoker(ctx context.Context, tx repository.Tx, sessionID uuid.UUID) (*model.GameSession, *model.PokerState, error) {
	sess, err := tx.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, notFound(err, "session %s not found", sessionID)
	}
	if sess.GameType != model.GamePoker {
		return nil, nil, apperr.Validation("session %s is not a poker table", sessionID)
	}
	st, ok := sess.State.(*model.PokerState)
	if !ok || st == nil {
		return nil, nil, fmt.Errorf("poker session %s has no state", sessionID)
	}
	return sess, st, nil
}

// pokerError classifies table rule violations as validation errors.
func pokerError(err error) error {
	for _, rule := range []error{
		poker.ErrNotEnoughPlayers, poker.ErrNotSeated, poker.ErrNotYourTurn, poker.ErrHandOver,
		poker.ErrCannotCheck, poker.ErrInsufficientChips, poker.ErrRaiseTooSmall, poker.ErrUnknownAction,
	} {
		if errors.Is(err, rule) {
			return apperr.Wrap(apperr.KindValidation, err, "illegal action")
		}
	}
	return err
}
