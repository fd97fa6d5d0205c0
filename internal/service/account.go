package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"social-casino/internal/apperr"
	"social-casino/internal/config"
	"social-casino/internal/game/quick"
	"social-casino/internal/game/seed"
	"social-casino/internal/ledger"
	"social-casino/internal/model"
	"social-casino/internal/repository"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)

// DailyResult is the outcome of a daily bonus claim.
type DailyResult struct {
	Claimed   bool
	Reward    int64
	Balance   int64
	Remaining time.Duration
}

// AccountService handles profiles, wallets and banking operations.
type AccountService struct {
	clock
	store           repository.Store
	startingBalance int64
	interestRate    decimal.Decimal
	dailyReward     int64
	dailyCooldown   time.Duration
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(store repository.Store, wallet config.WalletConfig, daily config.DailyConfig) (*AccountService, error) {
	rate, err := decimal.NewFromString(wallet.VaultInterestRate)
	if err != nil {
		return nil, fmt.Errorf("invalid vault interest rate %q: %w", wallet.VaultInterestRate, err)
	}
	return &AccountService{
		store:           store,
		startingBalance: wallet.StartingBalance,
		interestRate:    rate,
		dailyReward:     daily.Reward,
		dailyCooldown:   time.Duration(daily.CooldownHours) * time.Hour,
	}, nil
}

// CreateProfile registers the caller under username and opens their wallet
// with the starting balance.
func (s *AccountService) CreateProfile(ctx context.Context, caller model.Caller, username string) (*model.Profile, *model.Wallet, error) {
	if err := requireCaller(caller); err != nil {
		return nil, nil, err
	}
	if !usernamePattern.MatchString(username) {
		return nil, nil, apperr.Validation("username must be 3-32 letters, digits or underscores")
	}

	now := s.time()
	profile := &model.Profile{UserID: caller.UserID, Username: username, CreatedAt: now}
	wallet := &model.Wallet{UserID: caller.UserID, VaultInterestRate: s.interestRate}

	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetProfile(ctx, caller.UserID); err == nil {
			return apperr.Conflict("you already have a profile")
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if _, err := tx.GetProfileByUsername(ctx, username); err == nil {
			return apperr.Conflict("username %q is taken", username)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		if err := tx.CreateProfile(ctx, profile); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperr.Conflict("username %q is taken", username)
			}
			return err
		}
		if err := ledger.Open(ctx, tx, wallet, s.startingBalance, now); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperr.Conflict("you already have a wallet")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Int64("user_id", caller.UserID).
		Str("username", username).
		Int64("balance", wallet.Balance).
		Msg("Profile created")
	return profile, wallet, nil
}

// Wallet returns the caller's wallet.
func (s *AccountService) Wallet(ctx context.Context, caller model.Caller) (*model.Wallet, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	var w *model.Wallet
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		w, err = loadWallet(ctx, tx, caller.UserID)
		return err
	})
	return w, err
}

// Profile looks up a profile by username.
func (s *AccountService) Profile(ctx context.Context, username string) (*model.Profile, error) {
	var p *model.Profile
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		p, err = tx.GetProfileByUsername(ctx, username)
		return notFound(err, "user %q not found", username)
	})
	return p, err
}

// History returns the caller's most recent transactions, newest first.
func (s *AccountService) History(ctx context.Context, caller model.Caller, limit int) ([]*model.Transaction, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var txs []*model.Transaction
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		if _, err := loadWallet(ctx, tx, caller.UserID); err != nil {
			return err
		}
		var err error
		txs, err = tx.ListTransactions(ctx, caller.UserID, limit)
		return err
	})
	return txs, err
}

// ClaimDaily credits the daily reward if the cooldown has elapsed.
// A claim during the cooldown is not an error: Claimed is false and
// Remaining says how long to wait.
func (s *AccountService) ClaimDaily(ctx context.Context, caller model.Caller) (*DailyResult, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	now := s.time()
	res := &DailyResult{}
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		w, err := loadWallet(ctx, tx, caller.UserID)
		if err != nil {
			return err
		}
		if w.LastDailyBonus != nil {
			if next := w.LastDailyBonus.Add(s.dailyCooldown); now.Before(next) {
				res.Remaining = next.Sub(now)
				res.Balance = w.Balance
				return nil
			}
		}

		w.LastDailyBonus = ptr(now)
		if err := post(ctx, tx, w, ledger.Entry{Type: model.TxBonus, Amount: s.dailyReward, Description: "daily bonus"}, now); err != nil {
			return err
		}
		res.Claimed = true
		res.Reward = s.dailyReward
		res.Balance = w.Balance
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SpinWheel spins the daily bonus wheel once per UTC calendar day and
// credits the prize. The spin's seed is kept so the prize can be checked.
func (s *AccountService) SpinWheel(ctx context.Context, caller model.Caller) (*model.WheelSpin, int64, error) {
	if err := requireCaller(caller); err != nil {
		return nil, 0, err
	}

	now := s.time()
	var spin *model.WheelSpin
	var balance int64
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		w, err := loadWallet(ctx, tx, caller.UserID)
		if err != nil {
			return err
		}
		day := model.SpinDay(now)
		if _, err := tx.GetWheelSpin(ctx, caller.UserID, day); err == nil {
			return apperr.Conflict("the wheel was already spun today")
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		sd := seed.New()
		segment, prize := quick.SpinWheel(sd)
		spin = &model.WheelSpin{UserID: caller.UserID, Day: day, Seed: sd, Segment: segment, Prize: prize, CreatedAt: now}
		if err := tx.CreateWheelSpin(ctx, spin); err != nil {
			return err
		}
		if err := post(ctx, tx, w, ledger.Entry{
			Type:        model.TxBonus,
			Amount:      prize,
			Description: fmt.Sprintf("daily wheel prize: %d", prize),
		}, now); err != nil {
			return err
		}
		balance = w.Balance
		return nil
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, 0, apperr.Conflict("the wheel was already spun today")
	}
	if err != nil {
		return nil, 0, err
	}

	log.Info().
		Int64("user_id", caller.UserID).
		Str("seed", spin.Seed).
		Int64("prize", spin.Prize).
		Msg("Daily wheel spun")
	return spin, balance, nil
}

// DepositToVault moves amount from the balance into the vault.
func (s *AccountService) DepositToVault(ctx context.Context, caller model.Caller, amount int64) (*model.Wallet, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, apperr.Validation("amount must be positive")
	}

	var w *model.Wallet
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		if w, err = loadWallet(ctx, tx, caller.UserID); err != nil {
			return err
		}
		if err := requireBalance(w, amount); err != nil {
			return err
		}
		w.Vault += amount
		return post(ctx, tx, w, ledger.Entry{Type: model.TxDeposit, Amount: -amount, Description: "vault deposit"}, s.time())
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// WithdrawFromVault moves amount from the vault back to the balance.
func (s *AccountService) WithdrawFromVault(ctx context.Context, caller model.Caller, amount int64) (*model.Wallet, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, apperr.Validation("amount must be positive")
	}

	var w *model.Wallet
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		if w, err = loadWallet(ctx, tx, caller.UserID); err != nil {
			return err
		}
		if w.Vault < amount {
			return apperr.Validation("vault holds %d, cannot withdraw %d", w.Vault, amount)
		}
		w.Vault -= amount
		return post(ctx, tx, w, ledger.Entry{Type: model.TxWithdrawal, Amount: amount, Description: "vault withdrawal"}, s.time())
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// ClaimInterest pays floor(vault × rate × days) to the balance, where days
// counts whole days since the last claim or wallet creation.
func (s *AccountService) ClaimInterest(ctx context.Context, caller model.Caller) (int64, *model.Wallet, error) {
	if err := requireCaller(caller); err != nil {
		return 0, nil, err
	}

	now := s.time()
	var interest int64
	var w *model.Wallet
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		if w, err = loadWallet(ctx, tx, caller.UserID); err != nil {
			return err
		}
		since := w.CreatedAt
		if w.LastInterestClaim != nil {
			since = *w.LastInterestClaim
		}
		days := int64(now.Sub(since) / (24 * time.Hour))
		if days < 1 {
			return apperr.Validation("interest can be claimed once per day")
		}

		interest = InterestFor(w.Vault, w.VaultInterestRate, days)
		w.LastInterestClaim = ptr(now)
		if interest == 0 {
			w.UpdatedAt = now
			return tx.UpdateWallet(ctx, w)
		}
		return post(ctx, tx, w, ledger.Entry{
			Type:        model.TxInterest,
			Amount:      interest,
			Description: fmt.Sprintf("vault interest for %d day(s)", days),
		}, now)
	})
	if err != nil {
		return 0, nil, err
	}
	return interest, w, nil
}

// InterestFor returns floor(vault × rate × days).
func InterestFor(vault int64, rate decimal.Decimal, days int64) int64 {
	return decimal.NewFromInt(vault).Mul(rate).Mul(decimal.NewFromInt(days)).Floor().IntPart()
}

// AdjustBalance applies a privileged credit or debit. Debits are clamped so
// the balance never goes below zero; the applied delta is returned.
func (s *AccountService) AdjustBalance(ctx context.Context, caller model.Caller, userID, amount int64, reason string) (int64, *model.Wallet, error) {
	if err := requireAdmin(caller); err != nil {
		return 0, nil, err
	}
	if amount == 0 {
		return 0, nil, apperr.Validation("amount must not be zero")
	}
	if reason == "" {
		reason = "admin adjustment"
	}

	now := s.time()
	var applied int64
	var w *model.Wallet
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		if w, err = loadWallet(ctx, tx, userID); err != nil {
			return err
		}
		applied = max(amount, -w.Balance)
		if applied != 0 {
			txType := model.TxBonus
			if applied < 0 {
				txType = model.TxWithdrawal
			}
			if err := post(ctx, tx, w, ledger.Entry{
				Type:          txType,
				Amount:        applied,
				Description:   reason,
				RelatedUserID: ptr(caller.UserID),
			}, now); err != nil {
				return err
			}
		}
		return adminLog(ctx, tx, caller, "adjust_balance", ptr(userID), now,
			"requested %d, applied %d: %s", amount, applied, reason)
	})
	if err != nil {
		return 0, nil, err
	}

	log.Info().
		Int64("admin_id", caller.UserID).
		Int64("user_id", userID).
		Int64("requested", amount).
		Int64("applied", applied).
		Msg("Balance adjusted")
	return applied, w, nil
}

// AdminLogs returns the most recent privileged mutations, newest first.
// Admin only.
func (s *AccountService) AdminLogs(ctx context.Context, caller model.Caller, limit int) ([]*model.AdminLog, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var logs []*model.AdminLog
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		logs, err = tx.ListAdminLogs(ctx, limit)
		return err
	})
	return logs, err
}

// AddFriend sends a friend request to username, or accepts theirs if one is
// pending. It returns the resulting status.
func (s *AccountService) AddFriend(ctx context.Context, caller model.Caller, username string) (model.FriendshipStatus, error) {
	if err := requireCaller(caller); err != nil {
		return "", err
	}

	now := s.time()
	status := model.FriendshipPending
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		other, err := tx.GetProfileByUsername(ctx, username)
		if err != nil {
			return notFound(err, "user %q not found", username)
		}
		if other.UserID == caller.UserID {
			return apperr.Validation("you cannot befriend yourself")
		}
		if ok, err := tx.AreFriends(ctx, caller.UserID, other.UserID); err != nil {
			return err
		} else if ok {
			status = model.FriendshipAccepted
			return nil
		}

		// Accept a pending request from the other side.
		reverse := &model.Friendship{
			RequesterID: other.UserID,
			AddresseeID: caller.UserID,
			Status:      model.FriendshipPending,
			CreatedAt:   now,
		}
		if pending, err := s.hasPendingRequest(ctx, tx, other.UserID, caller.UserID); err != nil {
			return err
		} else if pending {
			reverse.Status = model.FriendshipAccepted
			status = model.FriendshipAccepted
			return tx.UpsertFriendship(ctx, reverse)
		}

		return tx.UpsertFriendship(ctx, &model.Friendship{
			RequesterID: caller.UserID,
			AddresseeID: other.UserID,
			Status:      model.FriendshipPending,
			CreatedAt:   now,
		})
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

// hasPendingRequest reports an unanswered request from requester to addressee.
func (s *AccountService) hasPendingRequest(ctx context.Context, tx repository.Tx, requester, addressee int64) (bool, error) {
	f, err := tx.GetFriendship(ctx, requester, addressee)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return f.Status == model.FriendshipPending, nil
}
