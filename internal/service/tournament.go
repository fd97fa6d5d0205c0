package service

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"social-casino/internal/apperr"
	"social-casino/internal/ledger"
	"social-casino/internal/model"
	"social-casino/internal/repository"
)

// Tournaments open for entries a short while after they are created.
const (
	tournamentStartDelay = 5 * time.Minute
	multiGameStartDelay  = 10 * time.Minute
	maxTournamentLength  = 7 * 24 * time.Hour
	upcomingLimit        = 10
)

// TournamentRequest describes a tournament to create. Games is only used
// when GameType is model.GameMulti.
type TournamentRequest struct {
	Name            string
	GameType        model.GameType
	Games           []model.GameType
	EntryFee        int64
	MaxParticipants int
	Duration        time.Duration
}

// TournamentService runs timed competitions. Scores come from finished
// rounds; the prize pool is paid to the leaders once the tournament ends.
type TournamentService struct {
	clock
	store repository.Store
}

// NewTournamentService creates a new TournamentService instance.
func NewTournamentService(store repository.Store) *TournamentService {
	return &TournamentService{store: store}
}

// Create schedules a tournament. Admin only.
func (s *TournamentService) Create(ctx context.Context, caller model.Caller, req TournamentRequest) (*model.Tournament, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	games, err := validateTournament(&req)
	if err != nil {
		return nil, err
	}

	delay := tournamentStartDelay
	if req.GameType == model.GameMulti {
		delay = multiGameStartDelay
	}
	now := s.time()
	start := now.Add(delay)
	t := &model.Tournament{
		ID:              uuid.New(),
		Name:            req.Name,
		GameType:        req.GameType,
		Games:           games,
		EntryFee:        req.EntryFee,
		MaxParticipants: req.MaxParticipants,
		StartTime:       start,
		EndTime:         start.Add(req.Duration),
		Status:          model.TournamentUpcoming,
		CreatedBy:       caller.UserID,
		CreatedAt:       now,
	}
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.CreateTournament(ctx, t); err != nil {
			return err
		}
		return adminLog(ctx, tx, caller, "create_tournament", nil, now,
			"%s %q fee=%d seats=%d starts=%s ends=%s",
			t.GameType, t.Name, t.EntryFee, t.MaxParticipants,
			t.StartTime.Format(time.RFC3339), t.EndTime.Format(time.RFC3339))
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("tournament_id", t.ID.String()).
		Str("name", t.Name).
		Str("game_type", string(t.GameType)).
		Time("start", t.StartTime).
		Time("end", t.EndTime).
		Msg("Tournament created")
	return t, nil
}

// validateTournament checks req and returns the deduplicated game list of a
// multi-game tournament.
func validateTournament(req *TournamentRequest) ([]model.GameType, error) {
	req.Name = strings.TrimSpace(req.Name)
	switch {
	case req.Name == "" || utf8.RuneCountInString(req.Name) > 64:
		return nil, apperr.Validation("tournament name must be 1-64 characters")
	case req.EntryFee < 0:
		return nil, apperr.Validation("entry fee must not be negative")
	case req.MaxParticipants < 2:
		return nil, apperr.Validation("a tournament needs at least 2 seats")
	case req.Duration < time.Minute || req.Duration > maxTournamentLength:
		return nil, apperr.Validation("duration must be between 1 minute and %s", maxTournamentLength)
	}

	if req.GameType != model.GameMulti {
		if !req.GameType.Valid() {
			return nil, apperr.Validation("unknown game %q", req.GameType)
		}
		return nil, nil
	}
	var games []model.GameType
	for _, g := range req.Games {
		if !g.Valid() {
			return nil, apperr.Validation("unknown game %q", g)
		}
		if !slices.Contains(games, g) {
			games = append(games, g)
		}
	}
	return games, nil
}

// Join debits the entry fee into the prize pool and adds the caller.
func (s *TournamentService) Join(ctx context.Context, caller model.Caller, id uuid.UUID) (*model.Tournament, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	var t *model.Tournament
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		if t, err = tx.GetTournament(ctx, id); err != nil {
			return notFound(err, "tournament %s not found", id)
		}
		now := s.time()
		if t.Phase(now) == model.TournamentFinished {
			return apperr.Validation("tournament %q has ended", t.Name)
		}
		if t.HasParticipant(caller.UserID) {
			return apperr.Conflict("you already joined %q", t.Name)
		}
		if len(t.Participants) >= t.MaxParticipants {
			return apperr.Validation("tournament %q is full", t.Name)
		}

		w, err := loadWallet(ctx, tx, caller.UserID)
		if err != nil {
			return err
		}
		if t.EntryFee > 0 {
			if err := requireBalance(w, t.EntryFee); err != nil {
				return err
			}
			if err := post(ctx, tx, w, ledger.Entry{
				Type:        model.TxBet,
				Amount:      -t.EntryFee,
				Description: "tournament entry: " + t.Name,
			}, now); err != nil {
				return err
			}
		}
		t.Participants = append(t.Participants, caller.UserID)
		t.PrizePool += t.EntryFee
		return tx.UpdateTournament(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("tournament_id", t.ID.String()).
		Int64("user_id", caller.UserID).
		Int64("prize_pool", t.PrizePool).
		Msg("Tournament joined")
	return t, nil
}

// Get returns one tournament.
func (s *TournamentService) Get(ctx context.Context, id uuid.UUID) (*model.Tournament, error) {
	var t *model.Tournament
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		t, err = tx.GetTournament(ctx, id)
		return notFound(err, "tournament %s not found", id)
	})
	return t, err
}

// Active returns the tournaments running now.
func (s *TournamentService) Active(ctx context.Context) ([]*model.Tournament, error) {
	return s.inPhase(ctx, model.TournamentActive, 0)
}

// Upcoming returns the next tournaments to start, soonest first.
func (s *TournamentService) Upcoming(ctx context.Context) ([]*model.Tournament, error) {
	return s.inPhase(ctx, model.TournamentUpcoming, upcomingLimit)
}

func (s *TournamentService) inPhase(ctx context.Context, phase model.TournamentStatus, limit int) ([]*model.Tournament, error) {
	var out []*model.Tournament
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		open, err := tx.ListOpenTournaments(ctx)
		if err != nil {
			return err
		}
		now := s.time()
		for _, t := range open {
			if t.Phase(now) == phase {
				out = append(out, t)
			}
		}
		return nil
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

// RecordScore adds score to a participant's total and returns the updated
// leaderboard. Admin only.
func (s *TournamentService) RecordScore(ctx context.Context, caller model.Caller, id uuid.UUID, userID, score int64) ([]model.LeaderboardEntry, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if score == 0 {
		return nil, apperr.Validation("score must not be zero")
	}

	var board []model.LeaderboardEntry
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		t, err := tx.GetTournament(ctx, id)
		if err != nil {
			return notFound(err, "tournament %s not found", id)
		}
		now := s.time()
		if t.Phase(now) != model.TournamentActive {
			return apperr.Validation("tournament %q is not running", t.Name)
		}
		if !t.HasParticipant(userID) {
			return apperr.Validation("user %d has not joined %q", userID, t.Name)
		}
		t.AddScore(userID, score)
		if err := tx.UpdateTournament(ctx, t); err != nil {
			return err
		}
		board = t.Leaderboard
		return adminLog(ctx, tx, caller, "tournament_score", ptr(userID), now,
			"%q %+d", t.Name, score)
	})
	return board, err
}

// ScoreRound credits each participant's winnings from a finished round to
// every running tournament that counts the round's game. It returns the
// number of leaderboard entries changed.
func (s *TournamentService) ScoreRound(ctx context.Context, sess *model.GameSession, winnings map[int64]int64) (int, error) {
	if len(winnings) == 0 {
		return 0, nil
	}
	ids := slices.Sorted(maps.Keys(winnings))

	changed := 0
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		open, err := tx.ListOpenTournaments(ctx)
		if err != nil {
			return err
		}
		now := s.time()
		for _, t := range open {
			if t.Phase(now) != model.TournamentActive || !t.Counts(sess.GameType) {
				continue
			}
			n := 0
			for _, id := range ids {
				if amt := winnings[id]; amt > 0 && t.HasParticipant(id) {
					t.AddScore(id, amt)
					n++
				}
			}
			if n == 0 {
				continue
			}
			if err := tx.UpdateTournament(ctx, t); err != nil {
				return err
			}
			changed += n
		}
		return nil
	})
	return changed, err
}

// SweepStale pays out every tournament whose end time has passed and
// returns how many were finished.
func (s *TournamentService) SweepStale(ctx context.Context) (int, error) {
	var finished []*model.Tournament
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		open, err := tx.ListOpenTournaments(ctx)
		if err != nil {
			return err
		}
		now := s.time()
		for _, t := range open {
			if t.Phase(now) != model.TournamentFinished {
				continue
			}
			if err := s.payOut(ctx, tx, t, now); err != nil {
				return fmt.Errorf("pay out tournament %s: %w", t.ID, err)
			}
			t.Status = model.TournamentFinished
			if err := tx.UpdateTournament(ctx, t); err != nil {
				return err
			}
			finished = append(finished, t)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, t := range finished {
		log.Info().
			Str("tournament_id", t.ID.String()).
			Str("name", t.Name).
			Int64("prize_pool", t.PrizePool).
			Int("participants", len(t.Participants)).
			Msg("Tournament finished")
	}
	return len(finished), nil
}

// payOut splits the prize pool evenly between the entries tied for first
// place with a positive score; the remainder goes to the first of them.
// Without a positive score every entry fee is refunded.
func (s *TournamentService) payOut(ctx context.Context, tx repository.Tx, t *model.Tournament, at time.Time) error {
	if t.PrizePool == 0 {
		return nil
	}

	var winners []int64
	if len(t.Leaderboard) > 0 && t.Leaderboard[0].Score > 0 {
		top := t.Leaderboard[0].Score
		for _, e := range t.Leaderboard {
			if e.Score == top {
				winners = append(winners, e.UserID)
			}
		}
	}

	credits := make(map[int64]int64)
	desc := "tournament prize: " + t.Name
	txType := model.TxWin
	if len(winners) == 0 {
		for _, id := range t.Participants {
			credits[id] += t.EntryFee
		}
		desc = "tournament refund: " + t.Name
		txType = model.TxBonus
	} else {
		share := t.PrizePool / int64(len(winners))
		for _, id := range winners {
			credits[id] = share
		}
		credits[winners[0]] += t.PrizePool - share*int64(len(winners))
	}

	ids := slices.Sorted(maps.Keys(credits))
	wallets, err := loadWallets(ctx, tx, ids...)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if credits[id] == 0 {
			continue
		}
		if err := post(ctx, tx, wallets[id], ledger.Entry{
			Type:        txType,
			Amount:      credits[id],
			Description: desc,
		}, at); err != nil {
			return err
		}
	}
	return nil
}
