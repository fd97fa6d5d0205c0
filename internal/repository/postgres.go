package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"social-casino/internal/model"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique index conflict.
const uniqueViolation = "23505"

// PostgresStore is a Store backed by PostgreSQL. Wallet and session reads
// inside a unit of work take row locks.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// InTx runs fn in a database transaction, committing on success.
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

type pgTx struct {
	tx pgx.Tx
}

func wrapErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

const walletColumns = `user_id, balance, vault, vault_interest_rate, last_interest_claim, last_daily_bonus, created_at, updated_at`

func scanWallet(row pgx.Row) (*model.Wallet, error) {
	var w model.Wallet
	err := row.Scan(
		&w.UserID,
		&w.Balance,
		&w.Vault,
		&w.VaultInterestRate,
		&w.LastInterestClaim,
		&w.LastDailyBonus,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (t *pgTx) GetWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 FOR UPDATE`
	w, err := scanWallet(t.tx.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, wrapErr("get wallet", err)
	}
	return w, nil
}

func (t *pgTx) CreateWallet(ctx context.Context, w *model.Wallet) error {
	const query = `
		INSERT INTO wallets (user_id, balance, vault, vault_interest_rate, last_interest_claim, last_daily_bonus, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := t.tx.Exec(ctx, query, w.UserID, w.Balance, w.Vault, w.VaultInterestRate,
		w.LastInterestClaim, w.LastDailyBonus, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return wrapErr("create wallet", err)
	}
	return nil
}

func (t *pgTx) UpdateWallet(ctx context.Context, w *model.Wallet) error {
	const query = `
		UPDATE wallets
		SET balance = $2, vault = $3, vault_interest_rate = $4, last_interest_claim = $5,
			last_daily_bonus = $6, updated_at = $7
		WHERE user_id = $1
	`
	tag, err := t.tx.Exec(ctx, query, w.UserID, w.Balance, w.Vault, w.VaultInterestRate,
		w.LastInterestClaim, w.LastDailyBonus, w.UpdatedAt)
	if err != nil {
		return wrapErr("update wallet", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) AppendTransaction(ctx context.Context, tx *model.Transaction) error {
	const query = `
		INSERT INTO transactions (id, user_id, type, amount, description, session_id, related_user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := t.tx.Exec(ctx, query, tx.ID, tx.UserID, string(tx.Type), tx.Amount, tx.Description,
		tx.SessionID, tx.RelatedUserID, tx.CreatedAt)
	if err != nil {
		return wrapErr("append transaction", err)
	}
	return nil
}

func (t *pgTx) ListTransactions(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error) {
	query := `
		SELECT id, user_id, type, amount, description, session_id, related_user_id, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY seq DESC
	`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list transactions", err)
	}
	defer rows.Close()

	var out []*model.Transaction
	for rows.Next() {
		var tx model.Transaction
		var txType string
		if err := rows.Scan(&tx.ID, &tx.UserID, &txType, &tx.Amount, &tx.Description,
			&tx.SessionID, &tx.RelatedUserID, &tx.CreatedAt); err != nil {
			return nil, wrapErr("scan transaction", err)
		}
		tx.Type = model.TxType(txType)
		out = append(out, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate transactions", err)
	}
	return out, nil
}

func (t *pgTx) SumTransactions(ctx context.Context, userID int64) (int64, error) {
	var sum int64
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = $1`, userID).Scan(&sum)
	if err != nil {
		return 0, wrapErr("sum transactions", err)
	}
	return sum, nil
}

func (t *pgTx) GetProfile(ctx context.Context, userID int64) (*model.Profile, error) {
	var p model.Profile
	err := t.tx.QueryRow(ctx, `SELECT user_id, username, created_at FROM profiles WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.Username, &p.CreatedAt)
	if err != nil {
		return nil, wrapErr("get profile", err)
	}
	return &p, nil
}

func (t *pgTx) GetProfileByUsername(ctx context.Context, username string) (*model.Profile, error) {
	var p model.Profile
	err := t.tx.QueryRow(ctx, `SELECT user_id, username, created_at FROM profiles WHERE username = $1`, username).
		Scan(&p.UserID, &p.Username, &p.CreatedAt)
	if err != nil {
		return nil, wrapErr("get profile by username", err)
	}
	return &p, nil
}

func (t *pgTx) CreateProfile(ctx context.Context, p *model.Profile) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO profiles (user_id, username, created_at) VALUES ($1, $2, $3)`,
		p.UserID, p.Username, p.CreatedAt)
	if err != nil {
		return wrapErr("create profile", err)
	}
	return nil
}

const tableColumns = `id, game_type, name, max_players, min_bet, max_bet, is_active, round_start_time, round_end_time`

func scanTable(row pgx.Row) (*model.GameTable, error) {
	var tb model.GameTable
	var gameType string
	if err := row.Scan(&tb.ID, &gameType, &tb.Name, &tb.MaxPlayers, &tb.MinBet, &tb.MaxBet,
		&tb.IsActive, &tb.RoundStartTime, &tb.RoundEndTime); err != nil {
		return nil, err
	}
	tb.GameType = model.GameType(gameType)
	return &tb, nil
}

func (t *pgTx) GetTable(ctx context.Context, id string) (*model.GameTable, error) {
	tb, err := scanTable(t.tx.QueryRow(ctx, `SELECT `+tableColumns+` FROM game_tables WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("get table", err)
	}
	return tb, nil
}

func (t *pgTx) ListTables(ctx context.Context, activeOnly bool) ([]*model.GameTable, error) {
	query := `SELECT ` + tableColumns + ` FROM game_tables`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY id`

	rows, err := t.tx.Query(ctx, query)
	if err != nil {
		return nil, wrapErr("list tables", err)
	}
	defer rows.Close()

	var out []*model.GameTable
	for rows.Next() {
		tb, err := scanTable(rows)
		if err != nil {
			return nil, wrapErr("scan table", err)
		}
		out = append(out, tb)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate tables", err)
	}
	return out, nil
}

func (t *pgTx) UpsertTable(ctx context.Context, tb *model.GameTable) error {
	const query = `
		INSERT INTO game_tables (id, game_type, name, max_players, min_bet, max_bet, is_active, round_start_time, round_end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			game_type = EXCLUDED.game_type, name = EXCLUDED.name, max_players = EXCLUDED.max_players,
			min_bet = EXCLUDED.min_bet, max_bet = EXCLUDED.max_bet, is_active = EXCLUDED.is_active,
			round_start_time = EXCLUDED.round_start_time, round_end_time = EXCLUDED.round_end_time
	`
	_, err := t.tx.Exec(ctx, query, tb.ID, string(tb.GameType), tb.Name, tb.MaxPlayers, tb.MinBet, tb.MaxBet,
		tb.IsActive, tb.RoundStartTime, tb.RoundEndTime)
	if err != nil {
		return wrapErr("upsert table", err)
	}
	return nil
}

const sessionColumns = `id, table_id, game_type, players, spectators, bets, result, state, status, round_number, seed, betting_ends_at, created_at, updated_at`

func scanSession(row pgx.Row) (*model.GameSession, error) {
	var s model.GameSession
	var gameType, status string
	var players, spectators, bets, result, state []byte
	if err := row.Scan(&s.ID, &s.TableID, &gameType, &players, &spectators, &bets, &result, &state,
		&status, &s.RoundNumber, &s.Seed, &s.BettingEndsAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.GameType = model.GameType(gameType)
	s.Status = model.SessionStatus(status)

	if err := json.Unmarshal(players, &s.Players); err != nil {
		return nil, fmt.Errorf("decode players: %w", err)
	}
	if err := json.Unmarshal(spectators, &s.Spectators); err != nil {
		return nil, fmt.Errorf("decode spectators: %w", err)
	}
	if err := json.Unmarshal(bets, &s.Bets); err != nil {
		return nil, fmt.Errorf("decode bets: %w", err)
	}
	var err error
	if s.Result, err = model.UnmarshalResult(result); err != nil {
		return nil, err
	}
	if s.State, err = model.UnmarshalState(state); err != nil {
		return nil, err
	}
	return &s, nil
}

type sessionColumnsJSON struct {
	players, spectators, bets, result, state []byte
}

func encodeSession(s *model.GameSession) (*sessionColumnsJSON, error) {
	var enc sessionColumnsJSON
	var err error
	if enc.players, err = json.Marshal(nonNil(s.Players)); err != nil {
		return nil, err
	}
	if enc.spectators, err = json.Marshal(nonNil(s.Spectators)); err != nil {
		return nil, err
	}
	if enc.bets, err = json.Marshal(nonNil(s.Bets)); err != nil {
		return nil, err
	}
	if s.Result != nil {
		if enc.result, err = model.MarshalResult(s.Result); err != nil {
			return nil, err
		}
	}
	if s.State != nil {
		if enc.state, err = model.MarshalState(s.State); err != nil {
			return nil, err
		}
	}
	return &enc, nil
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func (t *pgTx) GetSession(ctx context.Context, id uuid.UUID) (*model.GameSession, error) {
	s, err := scanSession(t.tx.QueryRow(ctx, `SELECT `+sessionColumns+` FROM game_sessions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, wrapErr("get session", err)
	}
	return s, nil
}

func (t *pgTx) CurrentSession(ctx context.Context, tableID string) (*model.GameSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM game_sessions WHERE table_id = $1 AND status <> 'finished' FOR UPDATE`
	s, err := scanSession(t.tx.QueryRow(ctx, query, tableID))
	if err != nil {
		return nil, wrapErr("get current session", err)
	}
	return s, nil
}

func (t *pgTx) LatestRoundNumber(ctx context.Context, tableID string) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(MAX(round_number), 0) FROM game_sessions WHERE table_id = $1`, tableID).Scan(&n)
	if err != nil {
		return 0, wrapErr("get latest round", err)
	}
	return n, nil
}

func (t *pgTx) CreateSession(ctx context.Context, s *model.GameSession) error {
	enc, err := encodeSession(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	query := `INSERT INTO game_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err = t.tx.Exec(ctx, query, s.ID, s.TableID, string(s.GameType), enc.players, enc.spectators, enc.bets,
		enc.result, enc.state, string(s.Status), s.RoundNumber, s.Seed, s.BettingEndsAt, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return wrapErr("create session", err)
	}
	return nil
}

func (t *pgTx) UpdateSession(ctx context.Context, s *model.GameSession) error {
	enc, err := encodeSession(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	const query = `
		UPDATE game_sessions
		SET players = $2, spectators = $3, bets = $4, result = $5, state = $6, status = $7,
			betting_ends_at = $8, updated_at = $9
		WHERE id = $1
	`
	tag, err := t.tx.Exec(ctx, query, s.ID, enc.players, enc.spectators, enc.bets, enc.result, enc.state,
		string(s.Status), s.BettingEndsAt, s.UpdatedAt)
	if err != nil {
		return wrapErr("update session", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const friendBetColumns = `id, bettor_id, target_id, session_id, table_id, round_id, bet_type, stake, multiplier, status,
	target_start_balance, target_end_balance, payout, resolved_at, created_at`

func scanFriendBet(row pgx.Row) (*model.FriendBet, error) {
	var b model.FriendBet
	var betType, status string
	if err := row.Scan(&b.ID, &b.BettorID, &b.TargetID, &b.SessionID, &b.TableID, &b.RoundID, &betType,
		&b.Stake, &b.Multiplier, &status, &b.TargetStartBalance, &b.TargetEndBalance, &b.Payout,
		&b.ResolvedAt, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.BetType = model.FriendBetType(betType)
	b.Status = model.FriendBetStatus(status)
	return &b, nil
}

func collectFriendBets(rows pgx.Rows) ([]*model.FriendBet, error) {
	defer rows.Close()
	var out []*model.FriendBet
	for rows.Next() {
		b, err := scanFriendBet(rows)
		if err != nil {
			return nil, wrapErr("scan friend bet", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate friend bets", err)
	}
	return out, nil
}

func (t *pgTx) GetFriendBet(ctx context.Context, id uuid.UUID) (*model.FriendBet, error) {
	b, err := scanFriendBet(t.tx.QueryRow(ctx, `SELECT `+friendBetColumns+` FROM friend_bets WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, wrapErr("get friend bet", err)
	}
	return b, nil
}

func (t *pgTx) CreateFriendBet(ctx context.Context, b *model.FriendBet) error {
	query := `INSERT INTO friend_bets (` + friendBetColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := t.tx.Exec(ctx, query, b.ID, b.BettorID, b.TargetID, b.SessionID, b.TableID, b.RoundID,
		string(b.BetType), b.Stake, b.Multiplier, string(b.Status), b.TargetStartBalance, b.TargetEndBalance,
		b.Payout, b.ResolvedAt, b.CreatedAt)
	if err != nil {
		return wrapErr("create friend bet", err)
	}
	return nil
}

func (t *pgTx) UpdateFriendBet(ctx context.Context, b *model.FriendBet) error {
	const query = `
		UPDATE friend_bets
		SET status = $2, target_end_balance = $3, payout = $4, resolved_at = $5
		WHERE id = $1
	`
	tag, err := t.tx.Exec(ctx, query, b.ID, string(b.Status), b.TargetEndBalance, b.Payout, b.ResolvedAt)
	if err != nil {
		return wrapErr("update friend bet", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) ListFriendBets(ctx context.Context, f FriendBetFilter) ([]*model.FriendBet, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.BettorID != 0 {
		add("bettor_id = $%d", f.BettorID)
	}
	if f.TargetID != 0 {
		add("target_id = $%d", f.TargetID)
	}
	if f.SessionID != uuid.Nil {
		add("session_id = $%d", f.SessionID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}

	query := `SELECT ` + friendBetColumns + ` FROM friend_bets`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list friend bets", err)
	}
	return collectFriendBets(rows)
}

func (t *pgTx) ListStaleFriendBets(ctx context.Context, limit int) ([]*model.FriendBet, error) {
	query := `
		SELECT ` + prefixed("fb.", friendBetColumns) + `
		FROM friend_bets fb
		JOIN game_sessions gs ON gs.id = fb.session_id
		WHERE fb.status = 'active' AND gs.status = 'finished'
		ORDER BY fb.created_at DESC, fb.id
		LIMIT $1
	`
	if limit <= 0 {
		limit = 100
	}
	rows, err := t.tx.Query(ctx, query, limit)
	if err != nil {
		return nil, wrapErr("list stale friend bets", err)
	}
	return collectFriendBets(rows)
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func (t *pgTx) GetFriendBetSettings(ctx context.Context) (*model.FriendBetSettings, error) {
	const query = `
		SELECT enabled, min_stake, max_stake, gains_multiplier, losses_multiplier, cooldown_minutes,
			max_active_bets_per_user, updated_by, updated_at
		FROM friend_bet_settings WHERE id = 1
	`
	var s model.FriendBetSettings
	err := t.tx.QueryRow(ctx, query).Scan(&s.Enabled, &s.MinStake, &s.MaxStake, &s.GainsMultiplier,
		&s.LossesMultiplier, &s.CooldownMinutes, &s.MaxActiveBetsPerUser, &s.UpdatedBy, &s.UpdatedAt)
	if err != nil {
		return nil, wrapErr("get friend bet settings", err)
	}
	return &s, nil
}

func (t *pgTx) SaveFriendBetSettings(ctx context.Context, s *model.FriendBetSettings) error {
	const query = `
		INSERT INTO friend_bet_settings (id, enabled, min_stake, max_stake, gains_multiplier, losses_multiplier,
			cooldown_minutes, max_active_bets_per_user, updated_by, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			enabled = EXCLUDED.enabled, min_stake = EXCLUDED.min_stake, max_stake = EXCLUDED.max_stake,
			gains_multiplier = EXCLUDED.gains_multiplier, losses_multiplier = EXCLUDED.losses_multiplier,
			cooldown_minutes = EXCLUDED.cooldown_minutes, max_active_bets_per_user = EXCLUDED.max_active_bets_per_user,
			updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
	`
	_, err := t.tx.Exec(ctx, query, s.Enabled, s.MinStake, s.MaxStake, s.GainsMultiplier, s.LossesMultiplier,
		s.CooldownMinutes, s.MaxActiveBetsPerUser, s.UpdatedBy, s.UpdatedAt)
	if err != nil {
		return wrapErr("save friend bet settings", err)
	}
	return nil
}

func (t *pgTx) AreFriends(ctx context.Context, a, b int64) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM friendships
			WHERE status = 'accepted'
			AND ((requester_id = $1 AND addressee_id = $2) OR (requester_id = $2 AND addressee_id = $1))
		)
	`
	var ok bool
	if err := t.tx.QueryRow(ctx, query, a, b).Scan(&ok); err != nil {
		return false, wrapErr("check friendship", err)
	}
	return ok, nil
}

func (t *pgTx) GetFriendship(ctx context.Context, requesterID, addresseeID int64) (*model.Friendship, error) {
	const query = `
		SELECT requester_id, addressee_id, status, created_at
		FROM friendships WHERE requester_id = $1 AND addressee_id = $2
	`
	var f model.Friendship
	var status string
	if err := t.tx.QueryRow(ctx, query, requesterID, addresseeID).
		Scan(&f.RequesterID, &f.AddresseeID, &status, &f.CreatedAt); err != nil {
		return nil, wrapErr("get friendship", err)
	}
	f.Status = model.FriendshipStatus(status)
	return &f, nil
}

func (t *pgTx) UpsertFriendship(ctx context.Context, f *model.Friendship) error {
	const query = `
		INSERT INTO friendships (requester_id, addressee_id, status, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (requester_id, addressee_id) DO UPDATE SET status = EXCLUDED.status
	`
	if _, err := t.tx.Exec(ctx, query, f.RequesterID, f.AddresseeID, string(f.Status), f.CreatedAt); err != nil {
		return wrapErr("upsert friendship", err)
	}
	return nil
}

func (t *pgTx) AppendAdminLog(ctx context.Context, l *model.AdminLog) error {
	const query = `
		INSERT INTO admin_logs (id, admin_id, action, target_user_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := t.tx.Exec(ctx, query, l.ID, l.AdminID, l.Action, l.TargetUserID, l.Details, l.CreatedAt); err != nil {
		return wrapErr("append admin log", err)
	}
	return nil
}

func (t *pgTx) ListAdminLogs(ctx context.Context, limit int) ([]*model.AdminLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := t.tx.Query(ctx, `
		SELECT id, admin_id, action, target_user_id, details, created_at
		FROM admin_logs ORDER BY seq DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, wrapErr("list admin logs", err)
	}
	defer rows.Close()

	var out []*model.AdminLog
	for rows.Next() {
		var l model.AdminLog
		if err := rows.Scan(&l.ID, &l.AdminID, &l.Action, &l.TargetUserID, &l.Details, &l.CreatedAt); err != nil {
			return nil, wrapErr("scan admin log", err)
		}
		out = append(out, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate admin logs", err)
	}
	return out, nil
}

func (t *pgTx) UpsertScheduledRound(ctx context.Context, r *model.ScheduledRound) error {
	const query = `
		INSERT INTO scheduled_rounds (table_id, due_at) VALUES ($1, $2)
		ON CONFLICT (table_id) DO UPDATE SET due_at = EXCLUDED.due_at
	`
	if _, err := t.tx.Exec(ctx, query, r.TableID, r.DueAt); err != nil {
		return wrapErr("upsert scheduled round", err)
	}
	return nil
}

func (t *pgTx) DeleteScheduledRound(ctx context.Context, tableID string) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM scheduled_rounds WHERE table_id = $1`, tableID); err != nil {
		return wrapErr("delete scheduled round", err)
	}
	return nil
}

func (t *pgTx) ListScheduledRounds(ctx context.Context) ([]*model.ScheduledRound, error) {
	rows, err := t.tx.Query(ctx, `SELECT table_id, due_at FROM scheduled_rounds ORDER BY due_at`)
	if err != nil {
		return nil, wrapErr("list scheduled rounds", err)
	}
	defer rows.Close()

	var out []*model.ScheduledRound
	for rows.Next() {
		var r model.ScheduledRound
		if err := rows.Scan(&r.TableID, &r.DueAt); err != nil {
			return nil, wrapErr("scan scheduled round", err)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate scheduled rounds", err)
	}
	return out, nil
}

const tournamentColumns = `id, name, game_type, games, entry_fee, prize_pool, max_participants, start_time, end_time,
	status, participants, leaderboard, created_by, created_at`

func scanTournament(row pgx.Row) (*model.Tournament, error) {
	var tr model.Tournament
	var gameType, status string
	var games, participants, leaderboard []byte
	if err := row.Scan(&tr.ID, &tr.Name, &gameType, &games, &tr.EntryFee, &tr.PrizePool, &tr.MaxParticipants,
		&tr.StartTime, &tr.EndTime, &status, &participants, &leaderboard, &tr.CreatedBy, &tr.CreatedAt); err != nil {
		return nil, err
	}
	tr.GameType = model.GameType(gameType)
	tr.Status = model.TournamentStatus(status)

	if err := json.Unmarshal(games, &tr.Games); err != nil {
		return nil, fmt.Errorf("decode games: %w", err)
	}
	if err := json.Unmarshal(participants, &tr.Participants); err != nil {
		return nil, fmt.Errorf("decode participants: %w", err)
	}
	if err := json.Unmarshal(leaderboard, &tr.Leaderboard); err != nil {
		return nil, fmt.Errorf("decode leaderboard: %w", err)
	}
	return &tr, nil
}

func encodeTournament(tr *model.Tournament) (games, participants, leaderboard []byte, err error) {
	if games, err = json.Marshal(nonNil(tr.Games)); err != nil {
		return nil, nil, nil, err
	}
	if participants, err = json.Marshal(nonNil(tr.Participants)); err != nil {
		return nil, nil, nil, err
	}
	if leaderboard, err = json.Marshal(nonNil(tr.Leaderboard)); err != nil {
		return nil, nil, nil, err
	}
	return games, participants, leaderboard, nil
}

func (t *pgTx) GetTournament(ctx context.Context, id uuid.UUID) (*model.Tournament, error) {
	tr, err := scanTournament(t.tx.QueryRow(ctx, `SELECT `+tournamentColumns+` FROM tournaments WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, wrapErr("get tournament", err)
	}
	return tr, nil
}

func (t *pgTx) CreateTournament(ctx context.Context, tr *model.Tournament) error {
	games, participants, leaderboard, err := encodeTournament(tr)
	if err != nil {
		return fmt.Errorf("failed to encode tournament: %w", err)
	}
	query := `INSERT INTO tournaments (` + tournamentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err = t.tx.Exec(ctx, query, tr.ID, tr.Name, string(tr.GameType), games, tr.EntryFee, tr.PrizePool,
		tr.MaxParticipants, tr.StartTime, tr.EndTime, string(tr.Status), participants, leaderboard,
		tr.CreatedBy, tr.CreatedAt)
	if err != nil {
		return wrapErr("create tournament", err)
	}
	return nil
}

func (t *pgTx) UpdateTournament(ctx context.Context, tr *model.Tournament) error {
	_, participants, leaderboard, err := encodeTournament(tr)
	if err != nil {
		return fmt.Errorf("failed to encode tournament: %w", err)
	}
	const query = `
		UPDATE tournaments
		SET prize_pool = $2, status = $3, participants = $4, leaderboard = $5
		WHERE id = $1
	`
	tag, err := t.tx.Exec(ctx, query, tr.ID, tr.PrizePool, string(tr.Status), participants, leaderboard)
	if err != nil {
		return wrapErr("update tournament", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) ListOpenTournaments(ctx context.Context) ([]*model.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments
		WHERE status <> 'finished' ORDER BY start_time, id FOR UPDATE`
	rows, err := t.tx.Query(ctx, query)
	if err != nil {
		return nil, wrapErr("list tournaments", err)
	}
	defer rows.Close()

	var out []*model.Tournament
	for rows.Next() {
		tr, err := scanTournament(rows)
		if err != nil {
			return nil, wrapErr("scan tournament", err)
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate tournaments", err)
	}
	return out, nil
}

func (t *pgTx) GetWheelSpin(ctx context.Context, userID int64, day time.Time) (*model.WheelSpin, error) {
	var sp model.WheelSpin
	err := t.tx.QueryRow(ctx, `
		SELECT user_id, day, seed, segment, prize, created_at
		FROM wheel_spins WHERE user_id = $1 AND day = $2
	`, userID, model.SpinDay(day)).Scan(&sp.UserID, &sp.Day, &sp.Seed, &sp.Segment, &sp.Prize, &sp.CreatedAt)
	if err != nil {
		return nil, wrapErr("get wheel spin", err)
	}
	return &sp, nil
}

func (t *pgTx) CreateWheelSpin(ctx context.Context, sp *model.WheelSpin) error {
	const query = `
		INSERT INTO wheel_spins (user_id, day, seed, segment, prize, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := t.tx.Exec(ctx, query, sp.UserID, model.SpinDay(sp.Day), sp.Seed, sp.Segment, sp.Prize, sp.CreatedAt); err != nil {
		return wrapErr("create wheel spin", err)
	}
	return nil
}
