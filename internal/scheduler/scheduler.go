// Package scheduler opens deferred rounds and runs periodic sweeps such as
// settling stale side-bets and finishing tournaments.
// Pending rounds are persisted so a restart can re-arm them.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"social-casino/internal/apperr"
	"social-casino/internal/model"
	"social-casino/internal/repository"
)

// fireTimeout bounds one deferred round start.
const fireTimeout = 10 * time.Second

// Starter opens the next round at a table.
type Starter interface {
	StartNewRound(ctx context.Context, tableID string) (*model.GameSession, bool, error)
}

// Sweeper resolves work left behind by finished rounds or elapsed
// deadlines and reports how much it resolved.
type Sweeper interface {
	SweepStale(ctx context.Context) (int, error)
}

// Rounds arms one timer per table and runs the periodic sweep.
type Rounds struct {
	store    repository.Store
	starter  Starter
	sweepers []Sweeper
	interval time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

// New creates a scheduler. A zero interval disables the sweep.
func New(store repository.Store, starter Starter, sweeper Sweeper, interval time.Duration) *Rounds {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Rounds{
		store:    store,
		starter:  starter,
		interval: interval,
		timers:   make(map[string]*time.Timer),
		ctx:      ctx,
		cancel:   cancel,
	}
	if sweeper != nil {
		s.sweepers = append(s.sweepers, sweeper)
	}
	return s
}

// AddSweeper adds a sweep run on every tick. Call it before Start.
func (s *Rounds) AddSweeper(sw Sweeper) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepers = append(s.sweepers, sw)
}

// Schedule opens a round at tableID after the delay. A table with a pending
// round keeps its existing timer.
func (s *Rounds) Schedule(ctx context.Context, tableID string, after time.Duration) error {
	s.mu.Lock()
	_, pending := s.timers[tableID]
	s.mu.Unlock()
	if pending {
		return nil
	}

	due := time.Now().UTC().Add(after)
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		return tx.UpsertScheduledRound(ctx, &model.ScheduledRound{TableID: tableID, DueAt: due})
	})
	if err != nil {
		return err
	}
	s.arm(tableID, after)

	log.Debug().
		Str("table_id", tableID).
		Dur("after", after).
		Msg("Next round scheduled")
	return nil
}

// Recover re-arms every persisted round. Overdue rounds fire immediately.
func (s *Rounds) Recover(ctx context.Context) (int, error) {
	var pending []*model.ScheduledRound
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		pending, err = tx.ListScheduledRounds(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	for _, r := range pending {
		s.arm(r.TableID, max(r.DueAt.Sub(now), 0))
	}
	if len(pending) > 0 {
		log.Info().Int("rounds", len(pending)).Msg("Recovered scheduled rounds")
	}
	return len(pending), nil
}

// Pending reports how many timers are armed.
func (s *Rounds) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Rounds) arm(tableID string, after time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return
	}
	if _, ok := s.timers[tableID]; ok {
		return
	}
	s.timers[tableID] = time.AfterFunc(after, func() { s.fire(tableID) })
}

func (s *Rounds) fire(tableID string) {
	s.mu.Lock()
	delete(s.timers, tableID)
	base := s.ctx
	s.mu.Unlock()
	if base.Err() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(base, fireTimeout)
	defer cancel()

	sess, created, err := s.starter.StartNewRound(ctx, tableID)
	if err != nil {
		log.Error().Err(err).Str("table_id", tableID).Msg("Failed to start scheduled round")
		// A missing or closed table will never open; drop the record.
		if !errors.Is(err, apperr.ErrNotFound) && !errors.Is(err, apperr.ErrValidation) {
			return
		}
	} else if created {
		log.Info().
			Str("table_id", tableID).
			Int("round", sess.RoundNumber).
			Msg("Scheduled round opened")
	}

	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		return tx.DeleteScheduledRound(ctx, tableID)
	})
	if err != nil {
		log.Error().Err(err).Str("table_id", tableID).Msg("Failed to clear scheduled round")
	}
}

// Start runs the sweeps until Stop.
func (s *Rounds) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.interval <= 0 || len(s.sweepers) == 0 {
		return
	}
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
	log.Info().Dur("interval", s.interval).Int("sweepers", len(s.sweepers)).Msg("Sweep started")
}

func (s *Rounds) sweep() {
	for i, sw := range s.sweepers {
		n, err := sw.SweepStale(s.ctx)
		if err != nil {
			log.Error().Err(err).Int("sweeper", i).Msg("Sweep failed")
		}
		if n > 0 {
			log.Info().Int("sweeper", i).Int("resolved", n).Msg("Sweep resolved stale work")
		}
	}
}

// Stop cancels armed timers and the sweep. Persisted rounds are kept for
// the next Recover.
func (s *Rounds) Stop() {
	s.mu.Lock()
	s.cancel()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	log.Info().Msg("Scheduler stopped")
}
