package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
)

func TestTrackMessage_KeepsBotMessagesInGroups(t *testing.T) {
	h := &GameHandler{}
	sent := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	group := &tele.Chat{ID: -100, Type: tele.ChatSuperGroup}

	h.trackMessage(&tele.Message{ID: 42, Chat: group}, sent)
	h.trackMessage(&tele.Message{ID: 43, Chat: &tele.Chat{ID: 7, Type: tele.ChatPrivate}}, sent)
	h.trackMessage(nil, sent)

	require.Len(t, h.trackedMessages, 1)
	assert.Equal(t, TrackedMessage{ChatID: -100, MessageID: 42, SentAt: sent}, h.trackedMessages[0])
}

func TestTakeExpired(t *testing.T) {
	h := &GameHandler{}
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	group := &tele.Chat{ID: -100, Type: tele.ChatGroup}

	h.trackMessage(&tele.Message{ID: 1, Chat: group}, start)
	h.trackMessage(&tele.Message{ID: 2, Chat: group}, start.Add(20*time.Minute))
	h.trackMessage(&tele.Message{ID: 3, Chat: group}, start.Add(MessageDeleteInterval))

	expired := h.takeExpired(start.Add(MessageDeleteInterval))
	require.Len(t, expired, 1)
	assert.Equal(t, 1, expired[0].MessageID)

	require.Len(t, h.trackedMessages, 2)
	assert.Equal(t, 2, h.trackedMessages[0].MessageID)
	assert.Equal(t, 3, h.trackedMessages[1].MessageID)

	assert.Empty(t, h.takeExpired(start.Add(MessageDeleteInterval)))
	assert.Len(t, h.takeExpired(start.Add(3*MessageDeleteInterval)), 2)
	assert.Empty(t, h.trackedMessages)
}
