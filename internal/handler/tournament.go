package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v3"

	"social-casino/internal/config"
	"social-casino/internal/model"
	"social-casino/internal/service"
)

// TournamentHandler handles tournament commands.
type TournamentHandler struct {
	identity
	tournaments *service.TournamentService
}

// NewTournamentHandler creates a new TournamentHandler.
func NewTournamentHandler(cfg *config.Config, tournaments *service.TournamentService) *TournamentHandler {
	return &TournamentHandler{identity: identity{cfg: cfg}, tournaments: tournaments}
}

// HandleList handles /tournaments.
func (h *TournamentHandler) HandleList(c tele.Context) error {
	ctx := context.Background()
	active, err := h.tournaments.Active(ctx)
	if err != nil {
		return replyError(c, err)
	}
	upcoming, err := h.tournaments.Upcoming(ctx)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(formatTournaments(active, upcoming, time.Now()))
}

// HandleJoin handles /tjoin <id>.
func (h *TournamentHandler) HandleJoin(c tele.Context) error {
	caller, ok := h.caller(c)
	if !ok {
		return nil
	}
	args := c.Args()
	if len(args) < 1 {
		return usage(c, "/tjoin <tournament_id>")
	}
	id, err := parseTournamentID(args[0])
	if err != nil {
		return usage(c, "/tjoin <tournament_id>")
	}
	t, err := h.tournaments.Join(context.Background(), caller, id)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf(
		"✅ Joined %s\n👥 Players: %d/%d\n🏆 Prize pool: %d\n🕐 Starts: %s UTC",
		t.Name, len(t.Participants), t.MaxParticipants, t.PrizePool, t.StartTime.UTC().Format("01-02 15:04"),
	))
}

// HandleBoard handles /tboard <id>.
func (h *TournamentHandler) HandleBoard(c tele.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return usage(c, "/tboard <tournament_id>")
	}
	id, err := parseTournamentID(args[0])
	if err != nil {
		return usage(c, "/tboard <tournament_id>")
	}
	t, err := h.tournaments.Get(context.Background(), id)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(formatLeaderboard(t.Name, t.Leaderboard))
}

func parseTournamentID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q is not a tournament id", errUsage, s)
	}
	return id, nil
}

// parseTournament reads <game|multi[:g1,g2]> <fee> <seats> <minutes> <name...>.
func parseTournament(args []string) (service.TournamentRequest, error) {
	var req service.TournamentRequest
	if len(args) < 5 {
		return req, errUsage
	}
	kind, list, _ := strings.Cut(strings.ToLower(args[0]), ":")
	req.GameType = model.GameType(kind)
	if list != "" {
		if req.GameType != model.GameMulti {
			return req, fmt.Errorf("%w: only multi takes a game list", errUsage)
		}
		for _, g := range strings.Split(list, ",") {
			req.Games = append(req.Games, model.GameType(strings.TrimSpace(g)))
		}
	}

	var err error
	if args[1] != "0" {
		if req.EntryFee, err = parseAmount(args[1]); err != nil {
			return req, err
		}
	}
	seats, err := parseAmount(args[2])
	if err != nil {
		return req, err
	}
	minutes, err := parseAmount(args[3])
	if err != nil {
		return req, err
	}
	req.MaxParticipants = int(seats)
	req.Duration = time.Duration(minutes) * time.Minute
	req.Name = strings.Join(args[4:], " ")
	return req, nil
}

func formatTournaments(active, upcoming []*model.Tournament, now time.Time) string {
	if len(active) == 0 && len(upcoming) == 0 {
		return "🏆 No tournaments right now"
	}
	var b strings.Builder
	if len(active) > 0 {
		b.WriteString("🔥 Running\n")
		for _, t := range active {
			writeTournament(&b, t)
			fmt.Fprintf(&b, "   ⏳ Ends in %s\n", t.EndTime.Sub(now).Round(time.Minute))
		}
	}
	if len(upcoming) > 0 {
		if len(active) > 0 {
			b.WriteString("\n")
		}
		b.WriteString("📅 Upcoming\n")
		for _, t := range upcoming {
			writeTournament(&b, t)
			fmt.Fprintf(&b, "   ⏳ Starts in %s\n", t.StartTime.Sub(now).Round(time.Minute))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeTournament(b *strings.Builder, t *model.Tournament) {
	game := string(t.GameType)
	if len(t.Games) > 0 {
		parts := make([]string, len(t.Games))
		for i, g := range t.Games {
			parts[i] = string(g)
		}
		game += " (" + strings.Join(parts, ", ") + ")"
	}
	fmt.Fprintf(b, "\n%s · %s\n   🆔 %s\n   💵 Fee %d · 🏆 Pool %d · 👥 %d/%d\n",
		t.Name, game, t.ID, t.EntryFee, t.PrizePool, len(t.Participants), t.MaxParticipants)
}

func formatLeaderboard(name string, board []model.LeaderboardEntry) string {
	if len(board) == 0 {
		return fmt.Sprintf("🏆 %s\n\nNo scores yet", name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🏆 %s\n", name)
	for _, e := range board {
		medal := ""
		switch e.Position {
		case 1:
			medal = "🥇 "
		case 2:
			medal = "🥈 "
		case 3:
			medal = "🥉 "
		}
		fmt.Fprintf(&b, "\n%s%d. %d · %d", medal, e.Position, e.UserID, e.Score)
	}
	return b.String()
}
