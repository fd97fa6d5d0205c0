// Package bot wires the Telegram transport to the casino services.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"social-casino/internal/config"
	"social-casino/internal/handler"
	"social-casino/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot    *tele.Bot
	cfg    *config.Config
	access *ChatAccess

	accountHandler    *handler.AccountHandler
	gameHandler       *handler.GameHandler
	friendBetHandler  *handler.FriendBetHandler
	tournamentHandler *handler.TournamentHandler
	adminHandler      *handler.AdminHandler
}

// Dependencies holds the services the handlers call.
type Dependencies struct {
	Config      *config.Config
	Accounts    *service.AccountService
	Rounds      *service.RoundService
	Wagers      *service.WagerService
	Poker       *service.PokerService
	FriendBets  *service.FriendBetService
	Tournaments *service.TournamentService
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	teleBot, err := tele.NewBot(tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:               teleBot,
		cfg:               deps.Config,
		access:            NewChatAccess(),
		accountHandler:    handler.NewAccountHandler(deps.Config, deps.Accounts),
		gameHandler:       handler.NewGameHandler(deps.Config, deps.Rounds, deps.Wagers, deps.Poker),
		friendBetHandler:  handler.NewFriendBetHandler(deps.Config, deps.Accounts, deps.FriendBets),
		tournamentHandler: handler.NewTournamentHandler(deps.Config, deps.Tournaments),
		adminHandler:      handler.NewAdminHandler(deps.Config, deps.Accounts, deps.Rounds, deps.FriendBets, deps.Tournaments),
	}

	b.registerMiddleware()
	b.registerHandlers()
	return b, nil
}

func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg, b.access))
	b.bot.Use(LoggingMiddleware())
}

func (b *Bot) registerHandlers() {
	// Accounts
	b.bot.Handle("/start", b.accountHandler.HandleStart)
	b.bot.Handle("/balance", b.accountHandler.HandleBalance)
	b.bot.Handle("/history", b.accountHandler.HandleHistory)
	b.bot.Handle("/daily", b.accountHandler.HandleDaily)
	b.bot.Handle("/vault_in", b.accountHandler.HandleVaultIn)
	b.bot.Handle("/vault_out", b.accountHandler.HandleVaultOut)
	b.bot.Handle("/interest", b.accountHandler.HandleInterest)
	b.bot.Handle("/friend", b.accountHandler.HandleFriend)
	b.bot.Handle("/wheel", b.accountHandler.HandleWheel)

	// Tables and rounds
	b.bot.Handle("/tables", b.gameHandler.HandleTables)
	b.bot.Handle("/round", b.gameHandler.HandleRound)
	b.bot.Handle("/join", b.gameHandler.HandleJoin)
	b.bot.Handle("/bet", b.gameHandler.HandleBet)
	b.bot.Handle("/spin", b.gameHandler.HandleSpin)
	b.bot.Handle("/slots", b.gameHandler.HandleSlots)
	b.bot.Handle("/baccarat", b.gameHandler.HandleSideWager)
	b.bot.Handle("/coinflip", b.gameHandler.HandleSideWager)
	b.bot.Handle("/highlow", b.gameHandler.HandleSideWager)

	// Poker
	b.bot.Handle("/deal", b.gameHandler.HandleDeal)
	for _, cmd := range []string{"/check", "/call", "/raise", "/fold", "/allin"} {
		b.bot.Handle(cmd, b.gameHandler.HandlePokerAction)
	}
	b.bot.Handle("/leave", b.gameHandler.HandleLeave)

	// Friend bets
	b.bot.Handle("/fbet", b.friendBetHandler.HandlePlace)
	b.bot.Handle("/fbet_cancel", b.friendBetHandler.HandleCancel)
	b.bot.Handle("/fbets", b.friendBetHandler.HandleActive)
	b.bot.Handle("/fbet_history", b.friendBetHandler.HandleHistory)
	b.bot.Handle("/fbets_on_me", b.friendBetHandler.HandleOnMe)
	b.bot.Handle("/fbet_stats", b.friendBetHandler.HandleStats)
	b.bot.Handle("/fbet_settings", b.friendBetHandler.HandleSettings)

	// Tournaments
	b.bot.Handle("/tournaments", b.tournamentHandler.HandleList)
	b.bot.Handle("/tjoin", b.tournamentHandler.HandleJoin)
	b.bot.Handle("/tboard", b.tournamentHandler.HandleBoard)

	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/admin_adjust", b.adminHandler.HandleAdjust)
	adminGroup.Handle("/admin_fbet_settings", b.adminHandler.HandleFriendBetSettings)
	adminGroup.Handle("/admin_table", b.adminHandler.HandleTable)
	adminGroup.Handle("/admin_logs", b.adminHandler.HandleLogs)
	adminGroup.Handle("/admin_tournament", b.adminHandler.HandleTournament)
	adminGroup.Handle("/admin_tscore", b.adminHandler.HandleTournamentScore)
}

// Start polls for updates until Stop is called. The message cleaner runs
// until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	log.Info().Msg("Starting bot...")
	b.gameHandler.StartMessageCleaner(ctx, b.bot)
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
