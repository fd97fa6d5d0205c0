// Package ledger is the single place wallet balances change. Every balance
// mutation goes through Post, which appends exactly one transaction whose
// amount equals the applied delta.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"social-casino/internal/model"
	"social-casino/internal/repository"
)

// ErrInsufficientBalance is returned when a debit would leave the balance negative.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Entry describes one balance change.
type Entry struct {
	Type          model.TxType
	Amount        int64
	Description   string
	SessionID     *uuid.UUID
	RelatedUserID *int64
}

// Post applies e to w, persists the wallet and appends the transaction.
// w must have been read in the same unit of work. On error w is unchanged.
func Post(ctx context.Context, tx repository.Tx, w *model.Wallet, e Entry, at time.Time) (*model.Transaction, error) {
	if w.Balance+e.Amount < 0 {
		return nil, ErrInsufficientBalance
	}

	next := *w
	next.Balance += e.Amount
	next.UpdatedAt = at
	if err := tx.UpdateWallet(ctx, &next); err != nil {
		return nil, fmt.Errorf("failed to update wallet %d: %w", w.UserID, err)
	}

	rec := &model.Transaction{
		ID:            uuid.New(),
		UserID:        w.UserID,
		Type:          e.Type,
		Amount:        e.Amount,
		Description:   e.Description,
		SessionID:     e.SessionID,
		RelatedUserID: e.RelatedUserID,
		CreatedAt:     at,
	}
	if err := tx.AppendTransaction(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to append transaction for %d: %w", w.UserID, err)
	}

	*w = next
	return rec, nil
}

// Open creates a wallet holding opening and records it as an initial
// transaction, so the wallet balance always equals the sum of its ledger.
func Open(ctx context.Context, tx repository.Tx, w *model.Wallet, opening int64, at time.Time) error {
	w.Balance = 0
	w.CreatedAt = at
	w.UpdatedAt = at
	if err := tx.CreateWallet(ctx, w); err != nil {
		return err
	}
	if opening == 0 {
		return nil
	}
	_, err := Post(ctx, tx, w, Entry{Type: model.TxInitial, Amount: opening, Description: "starting balance"}, at)
	return err
}

// Audit reports whether the wallet balance equals the sum of its transactions.
func Audit(ctx context.Context, tx repository.Tx, userID int64) (bool, error) {
	w, err := tx.GetWallet(ctx, userID)
	if err != nil {
		return false, err
	}
	sum, err := tx.SumTransactions(ctx, userID)
	if err != nil {
		return false, err
	}
	return w.Balance == sum, nil
}
