// Package service provides the wagering core: accounts, rounds, wagers,
// poker hands and side-bets. Every operation runs as one unit of work
// against the ledger store.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"social-casino/internal/apperr"
	"social-casino/internal/ledger"
	"social-casino/internal/model"
	"social-casino/internal/repository"
)

// clock is embedded by services that read the current time.
type clock struct {
	now func() time.Time
}

// SetClock replaces the time source. Used by tests.
func (c *clock) SetClock(now func() time.Time) {
	c.now = now
}

func (c *clock) time() time.Time {
	if c.now == nil {
		return time.Now().UTC()
	}
	return c.now()
}

func requireCaller(caller model.Caller) error {
	if caller.UserID == 0 {
		return apperr.Unauthenticated()
	}
	return nil
}

func requireAdmin(caller model.Caller) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if !caller.Admin {
		return apperr.New(apperr.KindUnauthenticated, "admin privileges required")
	}
	return nil
}

// notFound maps a repository miss to a NotFound error and passes other
// errors through.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(format, args...)
	}
	return err
}

func loadWallet(ctx context.Context, tx repository.Tx, userID int64) (*model.Wallet, error) {
	w, err := tx.GetWallet(ctx, userID)
	if err != nil {
		return nil, notFound(err, "wallet for user %d not found", userID)
	}
	return w, nil
}

// loadWallets reads several wallets in ascending user order so concurrent
// units of work lock rows in the same order.
func loadWallets(ctx context.Context, tx repository.Tx, userIDs ...int64) (map[int64]*model.Wallet, error) {
	ids := slices.Clone(userIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	out := make(map[int64]*model.Wallet, len(ids))
	for _, id := range ids {
		w, err := loadWallet(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		out[id] = w
	}
	return out, nil
}

// post applies a ledger entry and maps an overdraft to a validation error.
func post(ctx context.Context, tx repository.Tx, w *model.Wallet, e ledger.Entry, at time.Time) error {
	if _, err := ledger.Post(ctx, tx, w, e, at); err != nil {
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			return apperr.Validation("insufficient balance: have %d, need %d", w.Balance, -e.Amount)
		}
		return err
	}
	return nil
}

func requireBalance(w *model.Wallet, amount int64) error {
	if w.Balance < amount {
		return apperr.Validation("insufficient balance: have %d, need %d", w.Balance, amount)
	}
	return nil
}

func adminLog(ctx context.Context, tx repository.Tx, caller model.Caller, action string, target *int64, at time.Time, format string, args ...any) error {
	return tx.AppendAdminLog(ctx, &model.AdminLog{
		ID:           uuid.New(),
		AdminID:      caller.UserID,
		Action:       action,
		TargetUserID: target,
		Details:      fmt.Sprintf(format, args...),
		CreatedAt:    at,
	})
}

func ptr[T any](v T) *T {
	return &v
}
