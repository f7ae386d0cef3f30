package telegram

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"
)

const cmdStart = "/start"

func (t *Telegram) initHandlers() {
	t.bot.Handle(cmdStart, t.startHandler)
	t.bot.Handle(&myBookingsBtn, t.bookingsHandler)
	t.bot.Handle(&unlinkBtn, t.unlinkHandler)
	t.bot.Handle(tele.OnText, t.textHandler)
}

func (t *Telegram) startHandler(ctx tele.Context) error {
	msg := "Hi! Send me the email of your host account and I will deliver booking updates here."
	return ctx.Send(msg)
}

// textHandler treats any plain message as a linking attempt by email.
func (t *Telegram) textHandler(ctx tele.Context) error {
	email := strings.TrimSpace(ctx.Text())
	if !strings.Contains(email, "@") {
		return ctx.Send("That does not look like an email. Send me your host account email to link this chat.")
	}
	user, err := t.app.GetUserByEmail(context.Background(), email)
	if err != nil || !user.Active {
		t.log.Debugf("link attempt for unknown email from chat %d", ctx.Chat().ID)
		return ctx.Send("I could not find a host account with that email.")
	}
	t.link(user.ID, ctx.Chat().ID)
	msg := fmt.Sprintf("Linked! Booking updates for %s will arrive here.", user.FullName())
	return ctx.Send(msg, linked)
}

func (t *Telegram) bookingsHandler(ctx tele.Context) error {
	userID, ok := t.linkedUser(ctx.Chat().ID)
	if !ok {
		return ctx.Edit("This chat is not linked yet. Send me your host account email first.")
	}
	bookings, err := t.app.UserBookings(context.Background(), userID)
	if err != nil {
		t.log.Warnf("err getting bookings for user %d: %v", userID, err)
		return ctx.Edit("Could not fetch your bookings, try again later.")
	}
	if len(bookings) == 0 {
		return ctx.Edit("You have no bookings yet.", linked)
	}
	var sb strings.Builder
	sb.WriteString("Your bookings:\n")
	for _, b := range bookings {
		fmt.Fprintf(&sb, "%s  %s  [%s]\n", b.StartTime.Format("Mon 02 Jan 15:04"), b.Title, b.Status)
	}
	return ctx.Edit(sb.String(), linked)
}

func (t *Telegram) unlinkHandler(ctx tele.Context) error {
	t.unlink(ctx.Chat().ID)
	return ctx.Edit("Unlinked. Send me an email to link this chat again.")
}
