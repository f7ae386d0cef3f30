package telegram

import tele "gopkg.in/telebot.v3"

func (t *Telegram) initButtons() {
	linked.Inline(
		linked.Row(myBookingsBtn),
		linked.Row(unlinkBtn))
}

var (
	linked        = &tele.ReplyMarkup{}
	myBookingsBtn = linked.Data("My bookings", "bookings")
	unlinkBtn     = linked.Data("Unlink this chat", "unlink")
)
