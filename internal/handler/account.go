package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"social-casino/internal/config"
	"social-casino/internal/model"
	"social-casino/internal/service"
)

// AccountHandler handles profile, wallet and vault commands.
type AccountHandler struct {
	identity
	accounts *service.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(cfg *config.Config, accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{identity: identity{cfg: cfg}, accounts: accounts}
}

// HandleStart handles /start <username>.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	args := c.Args()
	username := c.Sender().Username
	if len(args) > 0 {
		username = parseUsername(args[0])
	}
	if username == "" {
		return usage(c, "/start <username>")
	}

	profile, wallet, err := h.accounts.CreateProfile(context.Background(), caller, username)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf(
		"🎉 Welcome @%s!\n\n"+
			"Your wallet opened with %d chips.\n\n"+
			"/balance - wallet and vault\n"+
			"/daily - daily bonus\n"+
			"/tables - open tables\n"+
			"/friend <username> - add a friend",
		profile.Username, wallet.Balance,
	))
}

// HandleBalance handles /balance.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	w, err := h.accounts.Wallet(context.Background(), caller)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(formatWallet(w))
}

// HandleHistory handles /history [n].
func (h *AccountHandler) HandleHistory(c tele.Context) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	limit := 10
	if args := c.Args(); len(args) > 0 {
		n, err := parseAmount(args[0])
		if err != nil {
			return usage(c, "/history [count]")
		}
		limit = int(min(n, 50))
	}

	txs, err := h.accounts.History(context.Background(), caller, limit)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(formatHistory(txs))
}

// HandleDaily handles /daily.
func (h *AccountHandler) HandleDaily(c tele.Context) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	res, err := h.accounts.ClaimDaily(context.Background(), caller)
	if err != nil {
		return replyError(c, err)
	}
	if !res.Claimed {
		return c.Reply(fmt.Sprintf("⏰ Come back in %s", res.Remaining.Round(time.Minute)))
	}
	return c.Reply(fmt.Sprintf("✅ +%d chips\n💰 Balance: %d", res.Reward, res.Balance))
}

// HandleWheel handles /wheel.
func (h *AccountHandler) HandleWheel(c tele.Context) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	spin, balance, err := h.accounts.SpinWheel(context.Background(), caller)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("🎡 The wheel stops on %d chips!\n💰 Balance: %d\n🔑 Seed: %s", spin.Prize, balance, spin.Seed))
}

// HandleVaultIn handles /vault_in <amount>.
func (h *AccountHandler) HandleVaultIn(c tele.Context) error {
	return h.vault(c, "/vault_in <amount>", h.accounts.DepositToVault)
}

// HandleVaultOut handles /vault_out <amount>.
func (h *AccountHandler) HandleVaultOut(c tele.Context) error {
	return h.vault(c, "/vault_out <amount>", h.accounts.WithdrawFromVault)
}

func (h *AccountHandler) vault(c tele.Context, line string, op func(context.Context, model.Caller, int64) (*model.Wallet, error)) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	args := c.Args()
	if len(args) < 1 {
		return usage(c, line)
	}
	amount, err := parseAmount(args[0])
	if err != nil {
		return usage(c, line)
	}
	w, err := op(context.Background(), caller, amount)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(formatWallet(w))
}

// HandleInterest handles /interest.
func (h *AccountHandler) HandleInterest(c tele.Context) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	interest, w, err := h.accounts.ClaimInterest(context.Background(), caller)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("🏦 Interest paid: %d\n💰 Balance: %d", interest, w.Balance))
}

// HandleFriend handles /friend <username>.
func (h *AccountHandler) HandleFriend(c tele.Context) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	args := c.Args()
	if len(args) < 1 {
		return usage(c, "/friend <username>")
	}
	name := parseUsername(args[0])
	status, err := h.accounts.AddFriend(context.Background(), caller, name)
	if err != nil {
		return replyError(c, err)
	}
	if status == model.FriendshipAccepted {
		return c.Reply(fmt.Sprintf("🤝 You and @%s are friends", name))
	}
	return c.Reply(fmt.Sprintf("📨 Friend request sent to @%s", name))
}

func formatWallet(w *model.Wallet) string {
	return fmt.Sprintf(
		"💰 Balance: %d\n"+
			"🏦 Vault: %d (%s%% per day)",
		w.Balance, w.Vault, w.VaultInterestRate.Shift(2).String(),
	)
}

func formatHistory(txs []*model.Transaction) string {
	if len(txs) == 0 {
		return "📜 No transactions yet"
	}
	var b strings.Builder
	b.WriteString("📜 Recent transactions\n")
	b.WriteString("━━━━━━━━━━━━━━━\n")
	for _, tx := range txs {
		fmt.Fprintf(&b, "%s %+d %s", tx.CreatedAt.Format("01-02 15:04"), tx.Amount, tx.Type)
		if tx.Description != "" {
			fmt.Fprintf(&b, " (%s)", tx.Description)
		}
		b.WriteByte('\n')
	}
	b.WriteString("━━━━━━━━━━━━━━━")
	return b.String()
}
