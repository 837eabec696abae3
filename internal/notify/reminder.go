package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-clinic-booking/internal/calendar"
)

// ReminderSource lists reminder events for the active appointments of a day.
type ReminderSource interface {
	ReminderEvents(ctx context.Context, day time.Time) ([]Event, error)
}

// ReminderJob enqueues a reminder for every active appointment tomorrow.
type ReminderJob struct {
	source  ReminderSource
	pub     Publisher
	logger  zerolog.Logger
	now     func() time.Time
	timeout time.Duration
}

func NewReminderJob(source ReminderSource, pub Publisher, logger zerolog.Logger) *ReminderJob {
	return &ReminderJob{
		source:  source,
		pub:     pub,
		logger:  logger.With().Str("component", "reminders").Logger(),
		now:     time.Now,
		timeout: 2 * time.Minute,
	}
}

// Run sends the reminders and returns how many were queued.
func (j *ReminderJob) Run(ctx context.Context) (int, error) {
	day := calendar.DateOf(j.now()).AddDate(0, 0, 1)

	events, err := j.source.ReminderEvents(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("list reminders for %s: %w", calendar.Format(day), err)
	}

	queued := 0
	for _, ev := range events {
		ev.Type = EventReminder
		if ev.OccurredAt.IsZero() {
			ev.OccurredAt = j.now().UTC()
		}
		if err := j.pub.Publish(ctx, ev); err != nil {
			j.logger.Error().Err(err).Str("appointment_id", ev.AppointmentID.String()).Msg("queue reminder")
			continue
		}
		queued++
	}

	j.logger.Info().Str("date", calendar.Format(day)).Int("found", len(events)).Int("queued", queued).Msg("reminders queued")
	return queued, nil
}

// Schedule registers the job on c under a standard five-field cron spec.
func (j *ReminderJob) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()
		if _, err := j.Run(ctx); err != nil {
			j.logger.Error().Err(err).Msg("reminder run failed")
		}
	})
	if err != nil {
		return 0, fmt.Errorf("schedule reminders %q: %w", spec, err)
	}
	return id, nil
}
