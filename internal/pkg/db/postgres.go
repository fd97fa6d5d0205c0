// Package db opens the casino's PostgreSQL pool and owns its schema.
package db

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"social-casino/internal/config"
)

// applicationName tags the casino's sessions in pg_stat_activity.
const applicationName = "social-casino"

// Pool is the connection pool behind the Postgres store.
type Pool struct {
	*pgxpool.Pool
}

// poolConfig builds the pgx pool settings. Sessions run in UTC so stored
// timestamps compare with the services' clocks, and every statement is
// bounded by the configured timeout.
func poolConfig(cfg *config.DatabaseConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.PoolSize > 0 {
		pc.MaxConns = int32(cfg.PoolSize)
	}
	pc.MinConns = max(pc.MaxConns/4, 1)
	pc.ConnConfig.ConnectTimeout = orDefault(cfg.ConnectTimeout, 10*time.Second)
	pc.MaxConnLifetime = orDefault(cfg.MaxConnLifetime, time.Hour)
	pc.MaxConnIdleTime = orDefault(cfg.MaxConnIdleTime, 30*time.Minute)
	pc.HealthCheckPeriod = 30 * time.Second

	params := pc.ConnConfig.RuntimeParams
	params["application_name"] = applicationName
	params["timezone"] = "UTC"
	if cfg.StatementTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}
	return pc, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// Open connects to PostgreSQL, applies the schema when AutoMigrate is set
// and checks that the ledger tables are present.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*Pool, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Int32("max_conns", pc.MaxConns).
		Dur("statement_timeout", cfg.StatementTimeout).
		Bool("auto_migrate", cfg.AutoMigrate).
		Msg("Connecting to PostgreSQL")

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	p := &Pool{Pool: pool}

	if cfg.AutoMigrate {
		if err := Migrate(ctx, pool); err != nil {
			p.Close()
			return nil, err
		}
	}
	if err := p.HealthCheck(ctx); err != nil {
		p.Close()
		return nil, err
	}

	log.Info().Msg("PostgreSQL ready")
	return p, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	if p.Pool != nil {
		p.Pool.Close()
		log.Info().Msg("PostgreSQL connection pool closed")
	}
}

// HealthCheck pings the server and reports the first missing table. Each
// migration is named after the table it creates.
func (p *Pool) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	for _, m := range migrations {
		table := m.name
		var present bool
		if err := p.Pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&present); err != nil {
			return fmt.Errorf("failed to check table %s: %w", table, err)
		}
		if !present {
			return fmt.Errorf("table %s is missing; run with database.auto_migrate enabled", table)
		}
	}
	return nil
}
