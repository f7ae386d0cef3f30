package telegram

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcal-io/bcal/pkg/logger"
)

func newTestTelegram() *Telegram {
	return &Telegram{
		log:   logger.New().WithField("component", "telegram"),
		chats: make(map[int]int64),
	}
}

func TestLinkLifecycle(t *testing.T) {
	tg := newTestTelegram()

	_, ok := tg.linkedUser(100)
	assert.False(t, ok)

	tg.link(7, 100)
	userID, ok := tg.linkedUser(100)
	require.True(t, ok)
	assert.Equal(t, 7, userID)

	// Relinking the same chat to another account replaces the old link.
	tg.link(8, 100)
	userID, ok = tg.linkedUser(100)
	require.True(t, ok)
	assert.Equal(t, 8, userID)

	tg.unlink(100)
	_, ok = tg.linkedUser(100)
	assert.False(t, ok)
}

func TestNotifyWithoutLinkIsNoop(t *testing.T) {
	tg := newTestTelegram()
	// No linked chat means no send attempt, so a nil bot is never touched.
	assert.NoError(t, tg.Notify(context.Background(), "hello", 7))
}
