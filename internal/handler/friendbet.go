package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v3"

	"social-casino/internal/config"
	"social-casino/internal/model"
	"social-casino/internal/service"
)

// FriendBetHandler handles side-bet commands.
type FriendBetHandler struct {
	identity
	accounts   *service.AccountService
	friendBets *service.FriendBetService
}

// NewFriendBetHandler creates a new FriendBetHandler.
func NewFriendBetHandler(cfg *config.Config, accounts *service.AccountService, friendBets *service.FriendBetService) *FriendBetHandler {
	return &FriendBetHandler{identity: identity{cfg: cfg}, accounts: accounts, friendBets: friendBets}
}

// friendBetArgs is a parsed /fbet command before the target is looked up.
type friendBetArgs struct {
	target    string
	sessionID uuid.UUID
	roundID   string
	betType   model.FriendBetType
	stake     int64
}

// parseFriendBet reads <target> <session> <round> <gains|losses> <stake>.
// A bare round number is accepted for the round id.
func parseFriendBet(args []string) (friendBetArgs, error) {
	if len(args) < 5 {
		return friendBetArgs{}, errUsage
	}
	id, err := parseSession(args[1])
	if err != nil {
		return friendBetArgs{}, err
	}
	round := args[2]
	if !strings.HasPrefix(round, "round_") {
		round = "round_" + round
	}
	stake, err := parseAmount(args[4])
	if err != nil {
		return friendBetArgs{}, err
	}
	return friendBetArgs{
		target:    parseUsername(args[0]),
		sessionID: id,
		roundID:   round,
		betType:   model.FriendBetType(strings.ToLower(args[3])),
		stake:     stake,
	}, nil
}

// HandlePlace handles /fbet.
func (h *FriendBetHandler) HandlePlace(c tele.Context) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	args, err := parseFriendBet(c.Args())
	if err != nil {
		return usage(c, "/fbet <friend> <session> <round> <gains|losses> <stake>")
	}

	ctx := context.Background()
	target, err := h.accounts.Profile(ctx, args.target)
	if err != nil {
		return replyError(c, err)
	}
	bet, err := h.friendBets.Place(ctx, caller, service.FriendBetRequest{
		TargetID:  target.UserID,
		SessionID: args.sessionID,
		RoundID:   args.roundID,
		BetType:   args.betType,
		Stake:     args.stake,
	})
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf(
		"🎯 Bet %s placed\n"+
			"@%s %s over %s · stake %d · ×%s\n"+
			"Cancel with /fbet_cancel %s",
		shortID(bet.ID), target.Username, bet.BetType, bet.RoundID, bet.Stake, bet.Multiplier, bet.ID,
	))
}

// HandleCancel handles /fbet_cancel <id>.
func (h *FriendBetHandler) HandleCancel(c tele.Context) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	args := c.Args()
	if len(args) < 1 {
		return usage(c, "/fbet_cancel <bet id>")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return usage(c, "/fbet_cancel <bet id>")
	}
	bet, err := h.friendBets.Cancel(context.Background(), caller, id)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("↩️ Bet %s cancelled, %d refunded", shortID(bet.ID), bet.Stake))
}

// HandleActive handles /fbets.
func (h *FriendBetHandler) HandleActive(c tele.Context) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	bets, err := h.friendBets.Active(context.Background(), caller)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(formatFriendBets("🎯 Active friend bets", bets))
}

// HandleHistory handles /fbet_history.
func (h *FriendBetHandler) HandleHistory(c tele.Context) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	bets, err := h.friendBets.History(context.Background(), caller, 20)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(formatFriendBets("📜 Friend bet history", bets))
}

// HandleOnMe handles /fbets_on_me.
func (h *FriendBetHandler) HandleOnMe(c tele.Context) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	bets, err := h.friendBets.OnMe(context.Background(), caller, 20)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(formatFriendBets("👀 Bets on you", bets))
}

// HandleStats handles /fbet_stats.
func (h *FriendBetHandler) HandleStats(c tele.Context) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	st, err := h.friendBets.Stats(context.Background(), caller)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf(
		"📊 Friend bets\n"+
			"━━━━━━━━━━━━━━━\n"+
			"Total: %d (won %d, lost %d, active %d, cancelled %d)\n"+
			"Staked: %d · Paid: %d\n"+
			"Win rate: %.1f%% · Net: %+d\n"+
			"━━━━━━━━━━━━━━━",
		st.TotalBets, st.Won, st.Lost, st.Active, st.Cancelled,
		st.TotalStaked, st.TotalPayout, st.WinRate, st.NetProfit,
	))
}

// HandleSettings handles /fbet_settings.
func (h *FriendBetHandler) HandleSettings(c tele.Context) error {
	s, err := h.friendBets.Settings(context.Background())
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(formatSettings(s))
}

func formatFriendBets(title string, bets []*model.FriendBet) string {
	if len(bets) == 0 {
		return title + ": none"
	}
	var b strings.Builder
	b.WriteString(title + "\n━━━━━━━━━━━━━━━\n")
	for _, bet := range bets {
		fmt.Fprintf(&b, "%s · %d → %d · %s %s · %d · %s", shortID(bet.ID), bet.BettorID, bet.TargetID, bet.RoundID, bet.BetType, bet.Stake, bet.Status)
		if bet.Payout != nil && *bet.Payout > 0 {
			fmt.Fprintf(&b, " +%d", *bet.Payout)
		}
		b.WriteByte('\n')
	}
	b.WriteString("━━━━━━━━━━━━━━━")
	return b.String()
}

func formatSettings(s model.FriendBetSettings) string {
	state := "on"
	if !s.Enabled {
		state = "off"
	}
	return fmt.Sprintf(
		"⚙️ Friend bets %s\n"+
			"Stake %d-%d · gains ×%s · losses ×%s\n"+
			"Cooldown %dm · max %d active",
		state, s.MinStake, s.MaxStake, s.GainsMultiplier, s.LossesMultiplier,
		s.CooldownMinutes, s.MaxActiveBetsPerUser,
	)
}
