package handler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"social-casino/internal/config"
	"social-casino/internal/game/poker"
	"social-casino/internal/game/slots"
	"social-casino/internal/model"
	"social-casino/internal/service"
)

// MessageDeleteInterval is how long round announcements stay in the chat.
const MessageDeleteInterval = 30 * time.Minute

// TrackedMessage is a bot message to be deleted later.
type TrackedMessage struct {
	ChatID    int64
	MessageID int
	SentAt    time.Time
}

// GameHandler handles table, wager and poker commands.
type GameHandler struct {
	identity
	rounds *service.RoundService
	wagers *service.WagerService
	poker  *service.PokerService

	trackedMessages []TrackedMessage
	messagesMu      sync.Mutex
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(cfg *config.Config, rounds *service.RoundService, wagers *service.WagerService, pokerSvc *service.PokerService) *GameHandler {
	return &GameHandler{
		identity: identity{cfg: cfg},
		rounds:   rounds,
		wagers:   wagers,
		poker:    pokerSvc,
	}
}

// StartMessageCleaner deletes old round announcements until ctx is done.
func (h *GameHandler) StartMessageCleaner(ctx context.Context, bot *tele.Bot) {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.cleanOldMessages(bot)
			}
		}
	}()
}

func (h *GameHandler) cleanOldMessages(bot *tele.Bot) {
	for _, msg := range h.takeExpired(time.Now()) {
		if err := bot.Delete(&tele.Message{ID: msg.MessageID, Chat: &tele.Chat{ID: msg.ChatID}}); err != nil {
			log.Debug().Err(err).Int("msg_id", msg.MessageID).Msg("Failed to delete old message")
		}
	}
}

// takeExpired removes and returns the messages older than
// MessageDeleteInterval.
func (h *GameHandler) takeExpired(now time.Time) []TrackedMessage {
	h.messagesMu.Lock()
	defer h.messagesMu.Unlock()

	var expired []TrackedMessage
	remaining := h.trackedMessages[:0]
	for _, msg := range h.trackedMessages {
		if now.Sub(msg.SentAt) < MessageDeleteInterval {
			remaining = append(remaining, msg)
			continue
		}
		expired = append(expired, msg)
	}
	h.trackedMessages = remaining
	return expired
}

// trackMessage remembers a bot message sent to a group chat for deletion.
func (h *GameHandler) trackMessage(msg *tele.Message, at time.Time) {
	if msg == nil || msg.Chat == nil || msg.Chat.Type == tele.ChatPrivate {
		return
	}
	h.messagesMu.Lock()
	defer h.messagesMu.Unlock()
	h.trackedMessages = append(h.trackedMessages, TrackedMessage{ChatID: msg.Chat.ID, MessageID: msg.ID, SentAt: at})
}

// replyTracked sends a round announcement and schedules the bot's own
// message for deletion.
func (h *GameHandler) replyTracked(c tele.Context, text string) error {
	msg, err := c.Bot().Send(c.Chat(), text)
	if err != nil {
		return err
	}
	h.trackMessage(msg, time.Now())
	return nil
}

// HandleTables handles /tables.
func (h *GameHandler) HandleTables(c tele.Context) error {
	tables, err := h.rounds.ListTables(context.Background())
	if err != nil {
		return replyError(c, err)
	}
	if len(tables) == 0 {
		return c.Reply("🎰 No tables are open")
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].ID < tables[j].ID })

	var b strings.Builder
	b.WriteString("🎰 Tables\n━━━━━━━━━━━━━━━\n")
	for _, t := range tables {
		fmt.Fprintf(&b, "%s · %s · %d-%d · %d seats\n", t.ID, t.GameType, t.MinBet, t.MaxBet, t.MaxPlayers)
	}
	b.WriteString("━━━━━━━━━━━━━━━")
	return c.Reply(b.String())
}

// HandleRound handles /round <table>.
func (h *GameHandler) HandleRound(c tele.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return usage(c, "/round <table>")
	}
	sess, err := h.rounds.CurrentSession(context.Background(), args[0])
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(formatSession(sess, time.Now()))
}

// HandleJoin handles /join <table> [buyIn].
func (h *GameHandler) HandleJoin(c tele.Context) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	tableID, buyIn, err := parseJoin(c.Args())
	if err != nil {
		return usage(c, "/join <table> [buy-in]")
	}
	sess, err := h.rounds.JoinTable(context.Background(), caller, tableID, buyIn)
	if err != nil {
		return replyError(c, err)
	}
	role := "🪑 Seated"
	if !sess.HasPlayer(caller.UserID) {
		role = "👀 Watching"
	}
	return c.Reply(role + "\n" + formatSession(sess, time.Now()))
}

// HandleBet handles /bet <session|table> <amount> <type> [value].
func (h *GameHandler) HandleBet(c tele.Context) error {
	req, err := parseBet(c.Args())
	if err != nil {
		return usage(c, "/bet <session|table> <amount> <type> [value]")
	}
	return h.wager(c, req)
}

// HandleSlots handles /slots <table> <amount>.
func (h *GameHandler) HandleSlots(c tele.Context) error {
	req, err := parseTableWager(c.Args(), slots.BetSpin)
	if err != nil {
		return usage(c, "/slots <table> <amount>")
	}
	return h.wager(c, req)
}

// HandleSideWager handles /baccarat, /coinflip and /highlow: <table> <amount> <side>.
func (h *GameHandler) HandleSideWager(c tele.Context) error {
	req, err := parseTableWager(c.Args(), "")
	if err != nil {
		return usage(c, strings.Fields(c.Text())[0]+" <table> <amount> <side>")
	}
	return h.wager(c, req)
}

func (h *GameHandler) wager(c tele.Context, req service.WagerRequest) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	res, err := h.wagers.PlaceWager(context.Background(), caller, req)
	if err != nil {
		return replyError(c, err)
	}
	if res.Result == nil {
		return c.Reply(fmt.Sprintf("✅ Bet placed on round %d\n💰 Balance: %d", res.Session.RoundNumber, res.Balance))
	}
	return c.Reply(fmt.Sprintf("%s\n🎁 Payout: %d\n💰 Balance: %d", formatResult(res.Result), res.Payout, res.Balance))
}

// HandleSpin handles /spin <session>.
func (h *GameHandler) HandleSpin(c tele.Context) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	args := c.Args()
	if len(args) < 1 {
		return usage(c, "/spin <session>")
	}
	id, err := parseSession(args[0])
	if err != nil {
		return usage(c, "/spin <session>")
	}
	res, err := h.wagers.ResolveRound(context.Background(), caller, id)
	if err != nil {
		return replyError(c, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎡 Round %d\n%s\n", res.Session.RoundNumber, formatResult(res.Session.Result))
	winners := make([]int64, 0, len(res.Payouts))
	for uid := range res.Payouts {
		winners = append(winners, uid)
	}
	sort.Slice(winners, func(i, j int) bool { return winners[i] < winners[j] })
	for _, uid := range winners {
		fmt.Fprintf(&b, "🏆 %d +%d\n", uid, res.Payouts[uid])
	}
	if len(winners) == 0 {
		b.WriteString("No winners this round\n")
	}
	return h.replyTracked(c, strings.TrimSpace(b.String()))
}

// HandleDeal handles /deal <session>.
func (h *GameHandler) HandleDeal(c tele.Context) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	args := c.Args()
	if len(args) < 1 {
		return usage(c, "/deal <session>")
	}
	id, err := parseSession(args[0])
	if err != nil {
		return usage(c, "/deal <session>")
	}
	sess, err := h.poker.DealHand(context.Background(), caller, id)
	if err != nil {
		return replyError(c, err)
	}
	return h.replyTracked(c, "🃏 Cards dealt\n"+formatPoker(sess))
}

// HandlePokerAction handles /check, /call, /fold, /allin <session> and
// /raise <session> <amount>.
func (h *GameHandler) HandlePokerAction(c tele.Context) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	action, id, amount, err := parsePokerAction(c.Text())
	if err != nil {
		return usage(c, "/check|/call|/fold|/allin <session>, /raise <session> <amount>")
	}
	sess, err := h.poker.Act(context.Background(), caller, id, action, amount)
	if err != nil {
		return replyError(c, err)
	}
	if sess.Status == model.StatusFinished {
		return h.replyTracked(c, formatResult(sess.Result))
	}
	return c.Reply(formatPoker(sess))
}

// HandleLeave handles /leave <session>.
func (h *GameHandler) HandleLeave(c tele.Context) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	args := c.Args()
	if len(args) < 1 {
		return usage(c, "/leave <session>")
	}
	id, err := parseSession(args[0])
	if err != nil {
		return usage(c, "/leave <session>")
	}
	refund, err := h.poker.Leave(context.Background(), caller, id)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("👋 Left the table, %d chips returned", refund))
}

func parseJoin(args []string) (string, int64, error) {
	if len(args) < 1 {
		return "", 0, errUsage
	}
	if len(args) == 1 {
		return args[0], 0, nil
	}
	buyIn, err := parseAmount(args[1])
	if err != nil {
		return "", 0, err
	}
	return args[0], buyIn, nil
}

// parseBet reads <session|table> <amount> <type> [value]. A target that
// parses as a uuid names a session, anything else a table.
func parseBet(args []string) (service.WagerRequest, error) {
	if len(args) < 3 {
		return service.WagerRequest{}, errUsage
	}
	amount, err := parseAmount(args[1])
	if err != nil {
		return service.WagerRequest{}, err
	}
	req := service.WagerRequest{Amount: amount, BetType: strings.ToLower(args[2])}
	if id, err := uuid.Parse(args[0]); err == nil {
		req.SessionID = id
	} else {
		req.TableID = args[0]
	}
	if len(args) > 3 {
		req.Value = args[3]
	}
	return req, nil
}

// parseTableWager reads <table> <amount> and, unless betType is fixed, <side>.
func parseTableWager(args []string, betType string) (service.WagerRequest, error) {
	need := 3
	if betType != "" {
		need = 2
	}
	if len(args) < need {
		return service.WagerRequest{}, errUsage
	}
	amount, err := parseAmount(args[1])
	if err != nil {
		return service.WagerRequest{}, err
	}
	if betType == "" {
		betType = strings.ToLower(args[2])
	}
	return service.WagerRequest{TableID: args[0], Amount: amount, BetType: betType}, nil
}

// parsePokerAction reads "/<action> <session> [amount]".
func parsePokerAction(text string) (poker.Action, uuid.UUID, int64, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return "", uuid.Nil, 0, errUsage
	}
	// strip a /cmd@botname suffix
	cmd, _, _ := strings.Cut(strings.TrimPrefix(fields[0], "/"), "@")
	action := poker.Action(strings.ToLower(cmd))

	id, err := parseSession(fields[1])
	if err != nil {
		return "", uuid.Nil, 0, err
	}
	var amount int64
	if action == poker.ActionRaise {
		if len(fields) < 3 {
			return "", uuid.Nil, 0, errUsage
		}
		if amount, err = parseAmount(fields[2]); err != nil {
			return "", uuid.Nil, 0, err
		}
	}
	return action, id, amount, nil
}

func formatSession(sess *model.GameSession, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎲 %s round %d (%s)\n🆔 %s\n", sess.TableID, sess.RoundNumber, sess.Status, sess.ID)
	fmt.Fprintf(&b, "👥 %d playing, %d watching", len(sess.Players), len(sess.Spectators))
	if sess.BettingOpen(now) && sess.BettingEndsAt != nil {
		fmt.Fprintf(&b, "\n⏳ Betting closes in %s", sess.BettingEndsAt.Sub(now).Round(time.Second))
	}
	return b.String()
}

func formatPoker(sess *model.GameSession) string {
	st, ok := sess.State.(*model.PokerState)
	if !ok || st == nil {
		return formatSession(sess, time.Now())
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🃏 %s · pot %d · bet %d\n", st.Phase, st.Pot, st.CurrentBet)
	if len(st.CommunityCards) > 0 {
		fmt.Fprintf(&b, "Board: %s\n", cardList(st.CommunityCards))
	}
	for i, p := range st.Players {
		marker := "  "
		if i == st.CurrentPlayer {
			marker = "👉"
		}
		fmt.Fprintf(&b, "%s %d · %d chips · %s\n", marker, p.UserID, p.Chips, p.Status)
	}
	return strings.TrimSpace(b.String())
}

func formatResult(r model.Result) string {
	switch res := r.(type) {
	case model.RouletteResult:
		return fmt.Sprintf("🎡 %d %s", res.Number, res.Color)
	case model.BaccaratResult:
		return fmt.Sprintf("🂡 Player %s (%d) vs Banker %s (%d): %s wins",
			cardList(res.PlayerCards), res.PlayerValue, cardList(res.BankerCards), res.BankerValue, res.Winner)
	case model.SlotsResult:
		rows := make([]string, 3)
		for i := range rows {
			rows[i] = strings.Join(res.Grid[i*3:i*3+3], " ")
		}
		return fmt.Sprintf("🎰\n%s\n×%d", strings.Join(rows, "\n"), res.Multiplier)
	case model.QuickResult:
		if res.GameType == model.GameHighLow {
			return fmt.Sprintf("🔢 %d (%s)", res.Number, res.Outcome)
		}
		return "🪙 " + res.Outcome
	case model.PokerResult:
		return fmt.Sprintf("🏆 %v win %d with %s", res.Winners, res.Pot, res.Hand)
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", r)
}

func cardList(cards []model.Card) string {
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}
