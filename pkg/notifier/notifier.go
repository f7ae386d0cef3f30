package notifier

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogNotifier is the fallback when no telegram token is configured: every
// notification goes to the log and nowhere else.
type LogNotifier struct {
	log *logrus.Entry
}

func New(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{
		log: log.WithField("component", "notifier"),
	}
}

func (n *LogNotifier) Notify(_ context.Context, message string, userID int) error {
	n.log.Infof("notifying user %d: %s", userID, message)
	return nil
}
