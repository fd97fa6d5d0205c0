package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// migrations are applied in order; each statement is idempotent.
var migrations = []struct {
	name string
	sql  string
}{
	{"wallets", `
		CREATE TABLE IF NOT EXISTS wallets (
			user_id BIGINT PRIMARY KEY,
			balance BIGINT NOT NULL CHECK (balance >= 0),
			vault BIGINT NOT NULL DEFAULT 0 CHECK (vault >= 0),
			vault_interest_rate NUMERIC(10,4) NOT NULL,
			last_interest_claim TIMESTAMPTZ,
			last_daily_bonus TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"profiles", `
		CREATE TABLE IF NOT EXISTS profiles (
			user_id BIGINT PRIMARY KEY,
			username VARCHAR(64) NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"transactions", `
		CREATE TABLE IF NOT EXISTS transactions (
			seq BIGSERIAL PRIMARY KEY,
			id UUID NOT NULL UNIQUE,
			user_id BIGINT NOT NULL REFERENCES wallets(user_id),
			type VARCHAR(32) NOT NULL,
			amount BIGINT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			session_id UUID,
			related_user_id BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id, seq DESC);
	`},
	{"game_tables", `
		CREATE TABLE IF NOT EXISTS game_tables (
			id VARCHAR(64) PRIMARY KEY,
			game_type VARCHAR(32) NOT NULL,
			name VARCHAR(255) NOT NULL,
			max_players INT NOT NULL,
			min_bet BIGINT NOT NULL,
			max_bet BIGINT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			round_start_time TIMESTAMPTZ,
			round_end_time TIMESTAMPTZ
		);
	`},
	{"game_sessions", `
		CREATE TABLE IF NOT EXISTS game_sessions (
			id UUID PRIMARY KEY,
			table_id VARCHAR(64) NOT NULL REFERENCES game_tables(id),
			game_type VARCHAR(32) NOT NULL,
			players JSONB NOT NULL DEFAULT '[]',
			spectators JSONB NOT NULL DEFAULT '[]',
			bets JSONB NOT NULL DEFAULT '[]',
			result JSONB,
			state JSONB,
			status VARCHAR(16) NOT NULL,
			round_number INT NOT NULL,
			seed VARCHAR(64) NOT NULL,
			betting_ends_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_game_sessions_open
			ON game_sessions(table_id) WHERE status <> 'finished';
		CREATE INDEX IF NOT EXISTS idx_game_sessions_table_round ON game_sessions(table_id, round_number DESC);
	`},
	{"friend_bets", `
		CREATE TABLE IF NOT EXISTS friend_bets (
			id UUID PRIMARY KEY,
			bettor_id BIGINT NOT NULL REFERENCES wallets(user_id),
			target_id BIGINT NOT NULL REFERENCES wallets(user_id),
			session_id UUID NOT NULL REFERENCES game_sessions(id),
			table_id VARCHAR(64) NOT NULL,
			round_id VARCHAR(32) NOT NULL,
			bet_type VARCHAR(16) NOT NULL,
			stake BIGINT NOT NULL CHECK (stake > 0),
			multiplier NUMERIC(10,4) NOT NULL,
			status VARCHAR(16) NOT NULL,
			target_start_balance BIGINT NOT NULL,
			target_end_balance BIGINT,
			payout BIGINT,
			resolved_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_friend_bets_bettor ON friend_bets(bettor_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_friend_bets_target ON friend_bets(target_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_friend_bets_session ON friend_bets(session_id) WHERE status = 'active';
		CREATE UNIQUE INDEX IF NOT EXISTS uq_friend_bets_active ON friend_bets(bettor_id, target_id, session_id) WHERE status = 'active';
	`},
	{"friend_bet_settings", `
		CREATE TABLE IF NOT EXISTS friend_bet_settings (
			id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			enabled BOOLEAN NOT NULL,
			min_stake BIGINT NOT NULL,
			max_stake BIGINT NOT NULL,
			gains_multiplier NUMERIC(10,4) NOT NULL,
			losses_multiplier NUMERIC(10,4) NOT NULL,
			cooldown_minutes INT NOT NULL,
			max_active_bets_per_user INT NOT NULL,
			updated_by BIGINT,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"friendships", `
		CREATE TABLE IF NOT EXISTS friendships (
			requester_id BIGINT NOT NULL,
			addressee_id BIGINT NOT NULL,
			status VARCHAR(16) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (requester_id, addressee_id)
		);
	`},
	{"admin_logs", `
		CREATE TABLE IF NOT EXISTS admin_logs (
			seq BIGSERIAL PRIMARY KEY,
			id UUID NOT NULL UNIQUE,
			admin_id BIGINT NOT NULL,
			action VARCHAR(64) NOT NULL,
			target_user_id BIGINT,
			details TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"scheduled_rounds", `
		CREATE TABLE IF NOT EXISTS scheduled_rounds (
			table_id VARCHAR(64) PRIMARY KEY,
			due_at TIMESTAMPTZ NOT NULL
		);
	`},
	{"tournaments", `
		CREATE TABLE IF NOT EXISTS tournaments (
			id UUID PRIMARY KEY,
			name VARCHAR(64) NOT NULL,
			game_type VARCHAR(32) NOT NULL,
			games JSONB NOT NULL DEFAULT '[]',
			entry_fee BIGINT NOT NULL CHECK (entry_fee >= 0),
			prize_pool BIGINT NOT NULL DEFAULT 0 CHECK (prize_pool >= 0),
			max_participants INT NOT NULL CHECK (max_participants > 1),
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL CHECK (end_time > start_time),
			status VARCHAR(16) NOT NULL,
			participants JSONB NOT NULL DEFAULT '[]',
			leaderboard JSONB NOT NULL DEFAULT '[]',
			created_by BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_tournaments_open ON tournaments(start_time) WHERE status <> 'finished';
	`},
	{"wheel_spins", `
		CREATE TABLE IF NOT EXISTS wheel_spins (
			user_id BIGINT NOT NULL REFERENCES wallets(user_id),
			day DATE NOT NULL,
			seed VARCHAR(32) NOT NULL,
			segment INT NOT NULL,
			prize BIGINT NOT NULL CHECK (prize > 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, day)
		);
	`},
}

// Migrate creates the schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", i+1, m.name, err)
		}
		log.Info().Int("step", i+1).Str("name", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
