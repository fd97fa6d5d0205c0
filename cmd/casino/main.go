// Package main is the entry point for the social casino bot.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"social-casino/internal/bot"
	"social-casino/internal/config"
	"social-casino/internal/game"
	"social-casino/internal/game/baccarat"
	"social-casino/internal/game/quick"
	"social-casino/internal/game/roulette"
	"social-casino/internal/game/slots"
	"social-casino/internal/model"
	"social-casino/internal/pkg/db"
	"social-casino/internal/pkg/lock"
	"social-casino/internal/repository"
	"social-casino/internal/scheduler"
	"social-casino/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Info().Str("storage", cfg.Storage.Driver).Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer closeStore()

	registry, err := game.NewRegistry(
		roulette.New(),
		baccarat.New(),
		slots.New(),
		quick.NewCoinFlip(),
		quick.NewHighLow(),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register games")
	}
	log.Info().Int("game_count", registry.Count()).Msg("Games registered")

	accounts, err := service.NewAccountService(store, cfg.Wallet, cfg.Daily)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid wallet configuration")
	}
	fbDefaults, err := service.FriendBetDefaults(cfg.FriendBets)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid friend bet configuration")
	}

	locks := lock.New()
	rounds := service.NewRoundService(store, locks, cfg.Rounds)
	wagers := service.NewWagerService(store, registry, rounds)
	pokerSvc := service.NewPokerService(store, rounds)
	friendBets := service.NewFriendBetService(store, locks, fbDefaults)
	tournaments := service.NewTournamentService(store)

	sched := scheduler.New(store, rounds, friendBets, cfg.Rounds.SweepInterval)
	sched.AddSweeper(tournaments)
	rounds.SetSettler(friendBets)
	rounds.SetScorer(tournaments)
	rounds.SetScheduler(sched)

	if err := rounds.SeedTables(ctx, cfg.Tables); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed tables")
	}
	if _, err := sched.Recover(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to recover scheduled rounds")
	}
	sched.Start()
	defer sched.Stop()
	openRoundTables(ctx, rounds, cfg.Tables)

	telegramBot, err := bot.New(&bot.Dependencies{
		Config:      cfg,
		Accounts:    accounts,
		Rounds:      rounds,
		Wagers:      wagers,
		Poker:       pokerSvc,
		FriendBets:  friendBets,
		Tournaments: tournaments,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go telegramBot.Start(ctx)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	telegramBot.Stop()
	cancel()
	log.Info().Msg("Bot stopped gracefully")
}

// openStore returns the configured ledger store and its cleanup.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	switch cfg.Storage.Driver {
	case "memory":
		log.Warn().Msg("Using in-memory store, state is lost on restart")
		return repository.NewMemoryStore(), func() {}, nil
	case "postgres", "":
		pool, err := db.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		return repository.NewPostgresStore(pool.Pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// openRoundTables makes sure every roulette table has a round to bet on.
func openRoundTables(ctx context.Context, rounds *service.RoundService, tables []config.TableConfig) {
	for _, t := range tables {
		if model.GameType(t.GameType) != model.GameRoulette {
			continue
		}
		sess, created, err := rounds.StartNewRound(ctx, t.ID)
		if err != nil {
			log.Error().Err(err).Str("table_id", t.ID).Msg("Failed to open round")
			continue
		}
		if created {
			log.Info().Str("table_id", t.ID).Int("round", sess.RoundNumber).Msg("Round opened")
		}
	}
}
