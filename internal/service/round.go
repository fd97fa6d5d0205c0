package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"social-casino/internal/apperr"
	"social-casino/internal/config"
	"social-casino/internal/game/poker"
	"social-casino/internal/game/seed"
	"social-casino/internal/ledger"
	"social-casino/internal/model"
	"social-casino/internal/pkg/lock"
	"social-casino/internal/repository"
)

// lockTimeout bounds how long an operation waits for a table.
const lockTimeout = 5 * time.Second

// RoundScheduler defers opening the next round at a table.
type RoundScheduler interface {
	Schedule(ctx context.Context, tableID string, after time.Duration) error
}

// SessionSettler resolves side-bets referencing a finished session.
type SessionSettler interface {
	SettleSession(ctx context.Context, sessionID uuid.UUID) (int, error)
}

// RoundScorer credits a finished round's winnings to running tournaments.
type RoundScorer interface {
	ScoreRound(ctx context.Context, sess *model.GameSession, winnings map[int64]int64) (int, error)
}

// RoundService owns tables and the lifecycle of their sessions.
type RoundService struct {
	clock
	store         repository.Store
	locks         *lock.KeyLock
	bettingWindow time.Duration
	nextRoundIn   time.Duration
	scheduler     RoundScheduler
	settler       SessionSettler
	scorer        RoundScorer
}

// NewRoundService creates a new RoundService instance.
func NewRoundService(store repository.Store, locks *lock.KeyLock, cfg config.RoundsConfig) *RoundService {
	return &RoundService{
		store:         store,
		locks:         locks,
		bettingWindow: cfg.BettingWindow,
		nextRoundIn:   cfg.NextRoundIn,
	}
}

// SetScheduler sets the deferred-round facility.
func (s *RoundService) SetScheduler(sch RoundScheduler) {
	s.scheduler = sch
}

// SetSettler sets the side-bet settlement run after every finished round.
func (s *RoundService) SetSettler(st SessionSettler) {
	s.settler = st
}

// SetScorer sets the tournament scoring run after every finished round.
func (s *RoundService) SetScorer(sc RoundScorer) {
	s.scorer = sc
}

// SeedTables creates or updates the configured tables.
func (s *RoundService) SeedTables(ctx context.Context, tables []config.TableConfig) error {
	return s.store.InTx(ctx, func(tx repository.Tx) error {
		for _, tc := range tables {
			t := &model.GameTable{
				ID:         tc.ID,
				GameType:   model.GameType(tc.GameType),
				Name:       tc.Name,
				MaxPlayers: tc.MaxPlayers,
				MinBet:     tc.MinBet,
				MaxBet:     tc.MaxBet,
				IsActive:   true,
			}
			if err := validateTable(t); err != nil {
				return fmt.Errorf("table %q: %w", tc.ID, err)
			}
			if existing, err := tx.GetTable(ctx, t.ID); err == nil {
				t.RoundStartTime, t.RoundEndTime = existing.RoundStartTime, existing.RoundEndTime
			}
			if err := tx.UpsertTable(ctx, t); err != nil {
				return err
			}
		}
		return nil
	})
}

// CreateTable adds or replaces a table. Admin only.
func (s *RoundService) CreateTable(ctx context.Context, caller model.Caller, t model.GameTable) (*model.GameTable, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if err := validateTable(&t); err != nil {
		return nil, err
	}
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.UpsertTable(ctx, &t); err != nil {
			return err
		}
		return adminLog(ctx, tx, caller, "create_table", nil, s.time(),
			"%s (%s) bets %d-%d", t.ID, t.GameType, t.MinBet, t.MaxBet)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func validateTable(t *model.GameTable) error {
	switch {
	case t.ID == "":
		return apperr.Validation("table id is required")
	case !t.GameType.Valid():
		return apperr.Validation("unknown game type %q", t.GameType)
	case t.MaxPlayers < 1:
		return apperr.Validation("max players must be at least 1")
	case t.MinBet <= 0 || t.MaxBet < t.MinBet:
		return apperr.Validation("bet bounds %d-%d are invalid", t.MinBet, t.MaxBet)
	}
	if t.Name == "" {
		t.Name = t.ID
	}
	return nil
}

// ListTables returns the active tables.
func (s *RoundService) ListTables(ctx context.Context) ([]*model.GameTable, error) {
	var tables []*model.GameTable
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		tables, err = tx.ListTables(ctx, true)
		return err
	})
	return tables, err
}

// Session returns a session by id.
func (s *RoundService) Session(ctx context.Context, id uuid.UUID) (*model.GameSession, error) {
	var sess *model.GameSession
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		sess, err = tx.GetSession(ctx, id)
		return notFound(err, "session %s not found", id)
	})
	return sess, err
}

// CurrentSession returns the table's non-finished session.
func (s *RoundService) CurrentSession(ctx context.Context, tableID string) (*model.GameSession, error) {
	var sess *model.GameSession
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		sess, err = tx.CurrentSession(ctx, tableID)
		return notFound(err, "table %s has no open round", tableID)
	})
	return sess, err
}

// JoinTable seats the caller in the table's current session, opening one if
// needed. Once the session is full the caller joins as a spectator. Poker
// seats require a buy-in within the table's bet bounds, which is moved from
// the wallet into the caller's chip stack.
func (s *RoundService) JoinTable(ctx context.Context, caller model.Caller, tableID string, buyIn int64) (*model.GameSession, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	var sess *model.GameSession
	err := s.locks.WithLockContext(ctx, lockTimeout, func() error {
		return s.store.InTx(ctx, func(tx repository.Tx) error {
			table, err := loadTable(ctx, tx, tableID)
			if err != nil {
				return err
			}
			if !table.GameType.RoundBased() && table.GameType != model.GamePoker {
				return apperr.Validation("%s tables settle each wager instantly, there is nothing to join", table.GameType)
			}
			w, err := loadWallet(ctx, tx, caller.UserID)
			if err != nil {
				return err
			}

			sess, err = tx.CurrentSession(ctx, tableID)
			if errors.Is(err, repository.ErrNotFound) {
				sess, err = s.openSession(ctx, tx, table)
			}
			if err != nil {
				return err
			}
			if sess.HasParticipant(caller.UserID) {
				return nil
			}

			seated := len(sess.Players) < table.MaxPlayers
			if table.GameType == model.GamePoker && sess.Status == model.StatusWaiting && seated {
				if err := s.buyIn(ctx, tx, table, sess, w, buyIn); err != nil {
					return err
				}
			} else if table.GameType == model.GamePoker {
				seated = false
			}

			if seated {
				sess.Players = append(sess.Players, caller.UserID)
			} else {
				sess.Spectators = append(sess.Spectators, caller.UserID)
			}
			sess.UpdatedAt = s.time()
			return tx.UpdateSession(ctx, sess)
		})
	}, lock.TableKey(tableID))
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("user_id", caller.UserID).
		Str("table_id", tableID).
		Str("session_id", sess.ID.String()).
		Bool("spectator", !sess.HasPlayer(caller.UserID)).
		Msg("Joined table")
	return sess, nil
}

func (s *RoundService) buyIn(ctx context.Context, tx repository.Tx, table *model.GameTable, sess *model.GameSession, w *model.Wallet, amount int64) error {
	if amount < table.MinBet || amount > table.MaxBet {
		return apperr.Validation("buy-in must be between %d and %d", table.MinBet, table.MaxBet)
	}
	if err := requireBalance(w, amount); err != nil {
		return err
	}
	st, ok := sess.State.(*model.PokerState)
	if !ok || st == nil {
		st = poker.NewState(nil, nil, table.MinBet)
	}
	if err := post(ctx, tx, w, ledger.Entry{
		Type:        model.TxBet,
		Amount:      -amount,
		Description: "poker buy-in at " + table.Name,
		SessionID:   ptr(sess.ID),
	}, s.time()); err != nil {
		return err
	}
	poker.Seat(st, w.UserID, amount)
	sess.State = st
	return nil
}

// StartNewRound opens a session at the table unless it already has a
// non-finished one. It reports whether a session was created.
func (s *RoundService) StartNewRound(ctx context.Context, tableID string) (*model.GameSession, bool, error) {
	var sess *model.GameSession
	created := false
	err := s.locks.WithLockContext(ctx, lockTimeout, func() error {
		return s.store.InTx(ctx, func(tx repository.Tx) error {
			table, err := loadTable(ctx, tx, tableID)
			if err != nil {
				return err
			}
			if !table.GameType.RoundBased() && table.GameType != model.GamePoker {
				return apperr.Validation("%s tables have no rounds", table.GameType)
			}
			sess, err = tx.CurrentSession(ctx, tableID)
			if err == nil {
				return nil
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			sess, err = s.openSession(ctx, tx, table)
			created = err == nil
			return err
		})
	}, lock.TableKey(tableID))
	if errors.Is(err, repository.ErrDuplicate) {
		// Another process opened the round first.
		sess, err = s.CurrentSession(ctx, tableID)
		created = false
	}
	if err != nil {
		return nil, false, err
	}
	if created {
		log.Info().
			Str("table_id", tableID).
			Int("round", sess.RoundNumber).
			Str("session_id", sess.ID.String()).
			Msg("New round started")
	}
	return sess, created, nil
}

// openSession creates the next session at table. Round-based tables open
// straight into betting; poker waits for players to buy in.
func (s *RoundService) openSession(ctx context.Context, tx repository.Tx, table *model.GameTable) (*model.GameSession, error) {
	latest, err := tx.LatestRoundNumber(ctx, table.ID)
	if err != nil {
		return nil, err
	}

	now := s.time()
	sess := &model.GameSession{
		ID:          uuid.New(),
		TableID:     table.ID,
		GameType:    table.GameType,
		Players:     []int64{},
		Spectators:  []int64{},
		Bets:        []model.Bet{},
		Status:      model.StatusWaiting,
		RoundNumber: latest + 1,
		Seed:        seed.New(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	switch {
	case table.GameType.RoundBased():
		sess.Status = model.StatusBetting
		sess.BettingEndsAt = ptr(now.Add(s.bettingWindow))
	case table.GameType == model.GamePoker:
		sess.State = poker.NewState(nil, nil, table.MinBet)
	}
	if err := tx.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	table.RoundStartTime = ptr(now)
	table.RoundEndTime = sess.BettingEndsAt
	if err := tx.UpsertTable(ctx, table); err != nil {
		return nil, err
	}
	return sess, nil
}

// transition moves sess to the next status if the move is allowed.
func transition(sess *model.GameSession, to model.SessionStatus, at time.Time) error {
	if !model.CanTransition(sess.Status, to) {
		return apperr.Validation("round %d is %s and cannot move to %s", sess.RoundNumber, sess.Status, to)
	}
	sess.Status = to
	sess.UpdatedAt = at
	return nil
}

// roundFinished runs the work that follows a finished session: side-bet
// settlement, then the deferred next round for round-based tables. Failures
// are logged and never reach the caller.
func (s *RoundService) roundFinished(ctx context.Context, sess *model.GameSession, winnings map[int64]int64) {
	if s.settler != nil {
		n, err := s.settler.SettleSession(ctx, sess.ID)
		if err != nil {
			log.Error().Err(err).Str("session_id", sess.ID.String()).Msg("Failed to settle friend bets")
		} else if n > 0 {
			log.Info().Int("settled", n).Str("session_id", sess.ID.String()).Msg("Friend bets settled")
		}
	}

	if s.scorer != nil {
		n, err := s.scorer.ScoreRound(ctx, sess, winnings)
		if err != nil {
			log.Error().Err(err).Str("session_id", sess.ID.String()).Msg("Failed to score tournaments")
		} else if n > 0 {
			log.Info().Int("entries", n).Str("session_id", sess.ID.String()).Msg("Tournament scores updated")
		}
	}

	if sess.GameType.RoundBased() && s.scheduler != nil {
		if err := s.scheduler.Schedule(ctx, sess.TableID, s.nextRoundIn); err != nil {
			log.Error().Err(err).Str("table_id", sess.TableID).Msg("Failed to schedule next round")
		}
	}
}

func loadTable(ctx context.Context, tx repository.Tx, tableID string) (*model.GameTable, error) {
	t, err := tx.GetTable(ctx, tableID)
	if err != nil {
		return nil, notFound(err, "table %s not found", tableID)
	}
	if !t.IsActive {
		return nil, apperr.Validation("table %s is closed", tableID)
	}
	return t, nil
}
