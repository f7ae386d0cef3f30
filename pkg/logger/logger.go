package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the process logger. LOG_LEVEL overrides the default debug
// level (any value logrus.ParseLevel accepts).
func New() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if parsed, err := logrus.ParseLevel(lvl); err == nil {
			log.SetLevel(parsed)
		}
	}
	return log
}
