// Package handler provides Telegram bot command handlers. Handlers parse
// arguments, identify the caller and render service results; every rule is
// enforced by the service layer.
package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"social-casino/internal/apperr"
	"social-casino/internal/config"
	"social-casino/internal/model"
)

// errUsage marks an argument error; the reply is the usage line.
var errUsage = errors.New("usage")

// identity turns the Telegram sender into a service caller.
type identity struct {
	cfg *config.Config
}

func (i identity) caller(c tele.Context) (model.Caller, bool) {
	sender := c.Sender()
	if sender == nil {
		return model.Caller{}, false
	}
	return model.Caller{UserID: sender.ID, Admin: i.cfg.IsAdmin(sender.ID)}, true
}

// replyError renders a service error. Unclassified errors are logged and
// reported generically.
func replyError(c tele.Context, err error) error {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		log.Error().Err(err).Str("command", c.Text()).Msg("Command failed")
		return c.Reply("❌ Something went wrong, please try again later")
	}
	switch ae.Kind {
	case apperr.KindUnauthenticated:
		if ae.Message == "not authenticated" {
			return c.Reply("❌ Create a profile first with /start <username>")
		}
		return c.Reply("❌ " + ae.Message)
	case apperr.KindNotFound:
		return c.Reply("🔍 " + ae.Message)
	case apperr.KindConflict:
		return c.Reply("⚠️ " + ae.Message)
	default:
		return c.Reply("❌ " + ae.Message)
	}
}

func usage(c tele.Context, line string) error {
	return c.Reply("❌ Usage: " + line)
}

// parseAmount parses a positive integer amount.
func parseAmount(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q is not a positive amount", errUsage, s)
	}
	return n, nil
}

// parseSigned parses a non-zero integer that may carry a sign.
func parseSigned(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimPrefix(s, "+"), 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: %q is not a non-zero amount", errUsage, s)
	}
	return n, nil
}

// parseSession accepts a full session id.
func parseSession(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q is not a session id", errUsage, s)
	}
	return id, nil
}

// parseUsername strips a leading @.
func parseUsername(s string) string {
	return strings.TrimPrefix(s, "@")
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
