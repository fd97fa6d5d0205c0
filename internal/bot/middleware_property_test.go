package bot

import (
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"social-casino/internal/config"
)

func drawIDs(t *rapid.T, label string, negative bool) []int64 {
	ids := rapid.SliceOfN(rapid.Int64Range(1, 1_000_000_000), 1, 10).Draw(t, label)
	if negative {
		for i := range ids {
			ids[i] = -ids[i]
		}
	}
	return ids
}

// Admin status holds exactly for configured ids.
func TestAdminCheckProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		adminIDs := drawIDs(t, "adminIDs", false)
		cfg := &config.Config{Admin: config.AdminConfig{IDs: adminIDs}}

		known := rapid.SampledFrom(adminIDs).Draw(t, "known")
		if !cfg.IsAdmin(known) {
			t.Fatalf("admin %d not recognized in %v", known, adminIDs)
		}

		userID := rapid.Int64Range(1, 1_000_000_000).Draw(t, "userID")
		if cfg.IsAdmin(userID) != slices.Contains(adminIDs, userID) {
			t.Fatalf("admin check mismatch for %d in %v", userID, adminIDs)
		}
	})
}

// Group updates pass only from whitelisted chats and then open private chat
// for the sender.
func TestWhitelistAdmitsGroupsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chats := drawIDs(t, "chats", true)
		cfg := &config.Config{Whitelist: config.WhitelistConfig{Chats: chats}}
		access := NewChatAccess()

		userID := rapid.Int64Range(1, 1_000_000_000).Draw(t, "userID")
		chatID := -rapid.Int64Range(1, 1_000_000_000).Draw(t, "chatID")
		allowed := slices.Contains(chats, chatID)

		if access.admit(cfg, true, userID, userID) {
			t.Fatalf("private chat admitted before any group activity")
		}
		if got := access.admit(cfg, false, chatID, userID); got != allowed {
			t.Fatalf("group %d admitted=%v, whitelist %v", chatID, got, chats)
		}
		if got := access.admit(cfg, true, userID, userID); got != allowed {
			t.Fatalf("private access=%v after group admitted=%v", got, allowed)
		}
	})
}

// An empty whitelist admits every chat.
func TestEmptyWhitelistAdmitsAllProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := &config.Config{}
		access := NewChatAccess()
		chatID := rapid.Int64().Draw(t, "chatID")
		userID := rapid.Int64Range(1, 1_000_000_000).Draw(t, "userID")
		private := rapid.Bool().Draw(t, "private")

		if !access.admit(cfg, private, chatID, userID) {
			t.Fatalf("empty whitelist rejected chat %d (private=%v)", chatID, private)
		}
	})
}

// Allowed holds for exactly the users passed to Allow.
func TestChatAccessProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		access := NewChatAccess()
		users := rapid.SliceOfNDistinct(rapid.Int64Range(1, 1_000_000), 0, 20, rapid.ID[int64]).Draw(t, "users")
		for _, u := range users {
			access.Allow(u)
		}
		candidate := rapid.Int64Range(1, 1_000_000).Draw(t, "candidate")
		if access.Allowed(candidate) != slices.Contains(users, candidate) {
			t.Fatalf("Allowed(%d) disagrees with %v", candidate, users)
		}
	})
}

func TestChatAccessConcurrent(t *testing.T) {
	access := NewChatAccess()
	var wg sync.WaitGroup
	for i := int64(1); i <= 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			access.Allow(id)
			_ = access.Allowed(id + 1)
		}(i)
	}
	wg.Wait()

	for i := int64(1); i <= 50; i++ {
		assert.True(t, access.Allowed(i))
	}
	assert.False(t, access.Allowed(51))
}
