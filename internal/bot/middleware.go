package bot

import (
	"sync"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"social-casino/internal/config"
)

// ChatAccess remembers players seen in an allowed group. They may then talk
// to the bot in private chat.
type ChatAccess struct {
	mu    sync.RWMutex
	users map[int64]struct{}
}

// NewChatAccess creates an empty ChatAccess.
func NewChatAccess() *ChatAccess {
	return &ChatAccess{users: make(map[int64]struct{})}
}

// Allow marks a user as allowed in private chat.
func (a *ChatAccess) Allow(userID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.users[userID] = struct{}{}
}

// Allowed reports whether a user may use private chat.
func (a *ChatAccess) Allowed(userID int64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.users[userID]
	return ok
}

// admit decides whether an update is processed. Group messages from an
// allowed chat also grant the sender private access.
func (a *ChatAccess) admit(cfg *config.Config, private bool, chatID, userID int64) bool {
	if private {
		return len(cfg.Whitelist.Chats) == 0 || a.Allowed(userID)
	}
	if !cfg.IsChatAllowed(chatID) {
		return false
	}
	a.Allow(userID)
	return true
}

// WhitelistMiddleware drops updates from chats outside the whitelist.
func WhitelistMiddleware(cfg *config.Config, access *ChatAccess) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat := c.Chat()
			sender := c.Sender()
			if chat == nil || sender == nil {
				return nil
			}

			if !access.admit(cfg, chat.Type == tele.ChatPrivate, chat.ID, sender.ID) {
				log.Debug().
					Int64("chat_id", chat.ID).
					Int64("user_id", sender.ID).
					Msg("Ignoring update from non-whitelisted chat")
				return nil
			}
			return next(c)
		}
	}
}

// AdminMiddleware rejects non-admin senders.
func AdminMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return nil
			}

			if !cfg.IsAdmin(sender.ID) {
				log.Warn().
					Int64("user_id", sender.ID).
					Str("command", c.Text()).
					Msg("Non-admin attempted admin command")
				return c.Reply("❌ Admins only")
			}
			return next(c)
		}
	}
}

// LoggingMiddleware logs every incoming update at debug level.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			ev := log.Debug()
			if sender := c.Sender(); sender != nil {
				ev = ev.Int64("user_id", sender.ID).Str("username", sender.Username)
			}
			if chat := c.Chat(); chat != nil {
				ev = ev.Int64("chat_id", chat.ID).Str("chat_type", string(chat.Type))
			}
			ev.Str("text", c.Text()).Msg("Received message")
			return next(c)
		}
	}
}

// RecoveryMiddleware turns a handler panic into an error reply.
func RecoveryMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Str("command", c.Text()).
						Msg("Recovered from panic in handler")
					_ = c.Reply("❌ Internal error, please try again later")
				}
			}()
			return next(c)
		}
	}
}
