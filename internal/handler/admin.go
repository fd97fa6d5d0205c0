package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"

	"social-casino/internal/config"
	"social-casino/internal/model"
	"social-casino/internal/service"
)

// AdminHandler handles privileged commands. The bot routes them through the
// admin middleware, and the services check the caller again.
type AdminHandler struct {
	identity
	accounts    *service.AccountService
	rounds      *service.RoundService
	friendBets  *service.FriendBetService
	tournaments *service.TournamentService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(cfg *config.Config, accounts *service.AccountService, rounds *service.RoundService, friendBets *service.FriendBetService, tournaments *service.TournamentService) *AdminHandler {
	return &AdminHandler{
		identity:    identity{cfg: cfg},
		accounts:    accounts,
		rounds:      rounds,
		friendBets:  friendBets,
		tournaments: tournaments,
	}
}

// HandleAdjust handles /admin_adjust <user_id> <amount> [reason].
func (h *AdminHandler) HandleAdjust(c tele.Context) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	userID, amount, reason, err := parseAdjust(c.Args())
	if err != nil {
		return usage(c, "/admin_adjust <user_id> <±amount> [reason]\nExample: /admin_adjust 123456789 -500 chargeback")
	}

	applied, w, err := h.accounts.AdjustBalance(context.Background(), caller, userID, amount, reason)
	if err != nil {
		return replyError(c, err)
	}

	log.Info().
		Int64("admin_id", caller.UserID).
		Int64("target_id", userID).
		Int64("applied", applied).
		Str("operation", "admin_adjust").
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf(
		"✅ Done\n\n"+
			"👤 User: %d\n"+
			"±  Applied: %+d\n"+
			"💰 Balance: %d",
		userID, applied, w.Balance,
	))
}

// HandleFriendBetSettings handles /admin_fbet_settings key=value ...
func (h *AdminHandler) HandleFriendBetSettings(c tele.Context) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	u, err := parseSettingsUpdate(c.Args())
	if err != nil {
		return usage(c, "/admin_fbet_settings enabled=true min=10 max=1000 gains=1.8 losses=1.5 cooldown=5 max_active=3")
	}
	s, err := h.friendBets.UpdateSettings(context.Background(), caller, u)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply("✅ Saved\n" + formatSettings(s))
}

// HandleTable handles /admin_table <id> <game> <min> <max> <seats> [name].
func (h *AdminHandler) HandleTable(c tele.Context) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	t, err := parseTable(c.Args())
	if err != nil {
		return usage(c, "/admin_table <id> <game> <min> <max> <seats> [name]")
	}
	created, err := h.rounds.CreateTable(context.Background(), caller, t)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("✅ Table %s (%s) open, bets %d-%d", created.ID, created.GameType, created.MinBet, created.MaxBet))
}

// HandleTournament handles /admin_tournament <game|multi[:g1,g2]> <fee> <seats> <minutes> <name>.
func (h *AdminHandler) HandleTournament(c tele.Context) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	req, err := parseTournament(c.Args())
	if err != nil {
		return usage(c, "/admin_tournament <game|multi[:slots,poker]> <fee> <seats> <minutes> <name>\nExample: /admin_tournament multi:slots,coinflip 100 8 60 Friday Cup")
	}
	t, err := h.tournaments.Create(context.Background(), caller, req)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("✅ Tournament %s created\n🆔 %s\n🕐 %s to %s UTC",
		t.Name, t.ID, t.StartTime.UTC().Format("01-02 15:04"), t.EndTime.UTC().Format("01-02 15:04")))
}

// HandleTournamentScore handles /admin_tscore <id> <user_id> <±score>.
func (h *AdminHandler) HandleTournamentScore(c tele.Context) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	id, userID, score, err := parseTournamentScore(c.Args())
	if err != nil {
		return usage(c, "/admin_tscore <tournament_id> <user_id> <±score>")
	}
	board, err := h.tournaments.RecordScore(context.Background(), caller, id, userID, score)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply("✅ Score recorded\n\n" + formatLeaderboard(id.String()[:8], board))
}

func parseTournamentScore(args []string) (uuid.UUID, int64, int64, error) {
	if len(args) < 3 {
		return uuid.Nil, 0, 0, errUsage
	}
	id, err := parseTournamentID(args[0])
	if err != nil {
		return uuid.Nil, 0, 0, err
	}
	userID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return uuid.Nil, 0, 0, errUsage
	}
	score, err := parseSigned(args[2])
	if err != nil {
		return uuid.Nil, 0, 0, err
	}
	return id, userID, score, nil
}

// HandleLogs handles /admin_logs [n].
func (h *AdminHandler) HandleLogs(c tele.Context) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	limit := 10
	if args := c.Args(); len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return usage(c, "/admin_logs [count]")
		}
		limit = n
	}
	logs, err := h.accounts.AdminLogs(context.Background(), caller, limit)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(formatAdminLogs(logs))
}

func formatAdminLogs(logs []*model.AdminLog) string {
	if len(logs) == 0 {
		return "📋 No admin actions yet"
	}
	var b strings.Builder
	b.WriteString("📋 Admin actions\n")
	for _, l := range logs {
		fmt.Fprintf(&b, "\n%s · %d · %s", l.CreatedAt.UTC().Format("01-02 15:04"), l.AdminID, l.Action)
		if l.TargetUserID != nil {
			fmt.Fprintf(&b, " → %d", *l.TargetUserID)
		}
		if l.Details != "" {
			b.WriteString("\n   " + l.Details)
		}
	}
	return b.String()
}

func parseAdjust(args []string) (int64, int64, string, error) {
	if len(args) < 2 {
		return 0, 0, "", errUsage
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, 0, "", errUsage
	}
	amount, err := parseSigned(args[1])
	if err != nil {
		return 0, 0, "", err
	}
	return userID, amount, strings.Join(args[2:], " "), nil
}

// parseSettingsUpdate reads key=value pairs. At least one pair is required.
func parseSettingsUpdate(args []string) (service.SettingsUpdate, error) {
	var u service.SettingsUpdate
	if len(args) == 0 {
		return u, errUsage
	}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return u, fmt.Errorf("%w: %q is not key=value", errUsage, arg)
		}
		var err error
		switch strings.ToLower(key) {
		case "enabled":
			var v bool
			v, err = strconv.ParseBool(value)
			u.Enabled = &v
		case "min", "min_stake":
			var v int64
			v, err = strconv.ParseInt(value, 10, 64)
			u.MinStake = &v
		case "max", "max_stake":
			var v int64
			v, err = strconv.ParseInt(value, 10, 64)
			u.MaxStake = &v
		case "gains":
			var v decimal.Decimal
			v, err = decimal.NewFromString(value)
			u.GainsMultiplier = &v
		case "losses":
			var v decimal.Decimal
			v, err = decimal.NewFromString(value)
			u.LossesMultiplier = &v
		case "cooldown":
			var v int
			v, err = strconv.Atoi(value)
			u.CooldownMinutes = &v
		case "max_active":
			var v int
			v, err = strconv.Atoi(value)
			u.MaxActiveBetsPerUser = &v
		default:
			return u, fmt.Errorf("%w: unknown setting %q", errUsage, key)
		}
		if err != nil {
			return u, fmt.Errorf("%w: %s: %v", errUsage, key, err)
		}
	}
	return u, nil
}

func parseTable(args []string) (model.GameTable, error) {
	if len(args) < 5 {
		return model.GameTable{}, errUsage
	}
	minBet, err := parseAmount(args[2])
	if err != nil {
		return model.GameTable{}, err
	}
	maxBet, err := parseAmount(args[3])
	if err != nil {
		return model.GameTable{}, err
	}
	seats, err := strconv.Atoi(args[4])
	if err != nil {
		return model.GameTable{}, errUsage
	}
	return model.GameTable{
		ID:         args[0],
		GameType:   model.GameType(strings.ToLower(args[1])),
		Name:       strings.Join(args[5:], " "),
		MaxPlayers: seats,
		MinBet:     minBet,
		MaxBet:     maxBet,
		IsActive:   true,
	}, nil
}
