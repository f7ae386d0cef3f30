package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	tele "gopkg.in/telebot.v3"

	"github.com/bcal-io/bcal/pkg/models"
)

// Telegram lets hosts link their chat to an account and receive booking
// notifications there. Links live in memory; a restart just means
// re-linking.
type Telegram struct {
	log *logrus.Entry
	bot *tele.Bot
	app App

	mu    sync.Mutex
	chats map[int]int64
}

type App interface {
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	UserBookings(ctx context.Context, userID int) ([]models.Booking, error)
}

func New(log *logrus.Logger, bot *tele.Bot, app App) *Telegram {
	t := Telegram{
		log:   log.WithField("component", "telegram"),
		bot:   bot,
		app:   app,
		chats: make(map[int]int64),
	}
	t.initButtons()
	t.initHandlers()
	return &t
}

func NewBot(token string) (*tele.Bot, error) {
	config := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(config)
	if err != nil {
		return nil, fmt.Errorf("new bot failed: %w", err)
	}
	return b, nil
}

// Notify sends the message to the host's linked chat. Hosts without a link
// are skipped quietly; notifications are best effort.
func (t *Telegram) Notify(_ context.Context, message string, userID int) error {
	t.mu.Lock()
	chatID, ok := t.chats[userID]
	t.mu.Unlock()
	if !ok {
		t.log.Debugf("no linked chat for user %d, skipping notification", userID)
		return nil
	}
	if _, err := t.bot.Send(tele.ChatID(chatID), message); err != nil {
		return fmt.Errorf("tg send message failed: %w", err)
	}
	return nil
}

// link binds the chat to one account, dropping any previous link the chat
// held.
func (t *Telegram) link(userID int, chatID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, linked := range t.chats {
		if linked == chatID {
			delete(t.chats, id)
		}
	}
	t.chats[userID] = chatID
}

func (t *Telegram) unlink(chatID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for userID, linked := range t.chats {
		if linked == chatID {
			delete(t.chats, userID)
		}
	}
}

func (t *Telegram) linkedUser(chatID int64) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for userID, linked := range t.chats {
		if linked == chatID {
			return userID, true
		}
	}
	return 0, false
}

func (t *Telegram) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		t.bot.Stop()
	}()
	t.log.Infof("starting telegram bot as %v", t.bot.Me.Username)
	t.bot.Start()
}
