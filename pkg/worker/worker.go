package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bcal-io/bcal/pkg/models"
)

const (
	sweepInterval = time.Minute
	reminderLead  = time.Hour
)

type Store interface {
	CompleteElapsed(ctx context.Context, now time.Time) (int64, error)
	UpcomingUnnotified(ctx context.Context, from, to time.Time) ([]models.Booking, error)
	MarkNotified(ctx context.Context, id int) error
}

type Notifier interface {
	Notify(ctx context.Context, message string, userID int) error
}

// Worker runs the periodic bookkeeping no request triggers: confirming
// bookings past their end as completed and sending reminders shortly before
// the start.
type Worker struct {
	log      *logrus.Entry
	store    Store
	notifier Notifier
	interval time.Duration
	now      func() time.Time
}

func New(log *logrus.Logger, store Store, notifier Notifier) *Worker {
	return &Worker{
		log:      log.WithField("component", "worker"),
		store:    store,
		notifier: notifier,
		interval: sweepInterval,
		now:      time.Now,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.log.Infof("starting worker, sweep every %s", w.interval)
	for {
		if err := w.sweep(ctx); err != nil {
			w.log.Warnf("err during sweep: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) sweep(ctx context.Context) error {
	now := w.now()
	completed, err := w.store.CompleteElapsed(ctx, now)
	if err != nil {
		return fmt.Errorf("err completing elapsed bookings: %w", err)
	}
	if completed > 0 {
		w.log.Debugf("completed %d elapsed bookings", completed)
	}

	upcoming, err := w.store.UpcomingUnnotified(ctx, now, now.Add(reminderLead))
	if err != nil {
		return fmt.Errorf("err getting upcoming bookings: %w", err)
	}
	for _, b := range upcoming {
		msg := fmt.Sprintf("Reminder: %s starts at %s", b.Title, b.StartTime.Format(time.RFC3339))
		if err = w.notifier.Notify(ctx, msg, b.HostID); err != nil {
			w.log.Warnf("err notifying host %d: %v", b.HostID, err)
			continue
		}
		if err = w.store.MarkNotified(ctx, b.ID); err != nil {
			return fmt.Errorf("err marking booking %d notified: %w", b.ID, err)
		}
	}
	return nil
}
