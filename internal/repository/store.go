// Package repository provides the ledger store: keyed records and index
// scans, mutated only inside a unit of work.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"social-casino/internal/model"
)

// Common errors for repository operations.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Store runs units of work. Either every mutation made by fn is committed
// or none is.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// FriendBetFilter narrows a side-bet scan. Zero fields do not filter.
// Results are ordered newest first.
type FriendBetFilter struct {
	BettorID  int64
	TargetID  int64
	SessionID uuid.UUID
	Status    model.FriendBetStatus
	Limit     int
}

func (f FriendBetFilter) match(b *model.FriendBet) bool {
	return (f.BettorID == 0 || b.BettorID == f.BettorID) &&
		(f.TargetID == 0 || b.TargetID == f.TargetID) &&
		(f.SessionID == uuid.Nil || b.SessionID == f.SessionID) &&
		(f.Status == "" || b.Status == f.Status)
}

// Tx is the view of the store inside a unit of work. Reads of wallets,
// sessions and tournaments lock the row until the unit of work ends.
type Tx interface {
	GetWallet(ctx context.Context, userID int64) (*model.Wallet, error)
	CreateWallet(ctx context.Context, w *model.Wallet) error
	UpdateWallet(ctx context.Context, w *model.Wallet) error

	AppendTransaction(ctx context.Context, t *model.Transaction) error
	ListTransactions(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error)
	SumTransactions(ctx context.Context, userID int64) (int64, error)

	GetProfile(ctx context.Context, userID int64) (*model.Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (*model.Profile, error)
	CreateProfile(ctx context.Context, p *model.Profile) error

	GetTable(ctx context.Context, id string) (*model.GameTable, error)
	ListTables(ctx context.Context, activeOnly bool) ([]*model.GameTable, error)
	UpsertTable(ctx context.Context, t *model.GameTable) error

	GetSession(ctx context.Context, id uuid.UUID) (*model.GameSession, error)
	// CurrentSession returns the table's non-finished session.
	CurrentSession(ctx context.Context, tableID string) (*model.GameSession, error)
	LatestRoundNumber(ctx context.Context, tableID string) (int, error)
	// CreateSession fails with ErrDuplicate if the table already has a
	// non-finished session.
	CreateSession(ctx context.Context, s *model.GameSession) error
	UpdateSession(ctx context.Context, s *model.GameSession) error

	GetFriendBet(ctx context.Context, id uuid.UUID) (*model.FriendBet, error)
	CreateFriendBet(ctx context.Context, b *model.FriendBet) error
	UpdateFriendBet(ctx context.Context, b *model.FriendBet) error
	ListFriendBets(ctx context.Context, f FriendBetFilter) ([]*model.FriendBet, error)
	// ListStaleFriendBets returns active side-bets whose session has finished.
	ListStaleFriendBets(ctx context.Context, limit int) ([]*model.FriendBet, error)

	// GetFriendBetSettings returns ErrNotFound until settings are saved.
	GetFriendBetSettings(ctx context.Context) (*model.FriendBetSettings, error)
	SaveFriendBetSettings(ctx context.Context, s *model.FriendBetSettings) error

	// AreFriends reports an accepted friendship in either direction.
	AreFriends(ctx context.Context, a, b int64) (bool, error)
	GetFriendship(ctx context.Context, requesterID, addresseeID int64) (*model.Friendship, error)
	UpsertFriendship(ctx context.Context, f *model.Friendship) error

	AppendAdminLog(ctx context.Context, l *model.AdminLog) error
	ListAdminLogs(ctx context.Context, limit int) ([]*model.AdminLog, error)

	UpsertScheduledRound(ctx context.Context, r *model.ScheduledRound) error
	DeleteScheduledRound(ctx context.Context, tableID string) error
	ListScheduledRounds(ctx context.Context) ([]*model.ScheduledRound, error)

	GetTournament(ctx context.Context, id uuid.UUID) (*model.Tournament, error)
	CreateTournament(ctx context.Context, t *model.Tournament) error
	UpdateTournament(ctx context.Context, t *model.Tournament) error
	// ListOpenTournaments returns tournaments not yet paid out, by start
	// time. The rows stay locked until the unit of work ends.
	ListOpenTournaments(ctx context.Context) ([]*model.Tournament, error)

	GetWheelSpin(ctx context.Context, userID int64, day time.Time) (*model.WheelSpin, error)
	// CreateWheelSpin fails with ErrDuplicate if the user already spun on
	// that day.
	CreateWheelSpin(ctx context.Context, s *model.WheelSpin) error
}
