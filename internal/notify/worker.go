package notify

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Consumer yields queued events one at a time.
type Consumer interface {
	Next(ctx context.Context) (Event, error)
	Close() error
}

// Worker drains a consumer into a sender. Delivery failures are logged and
// the event is dropped.
type Worker struct {
	consumer Consumer
	sender   Sender
	logger   zerolog.Logger
	backoff  time.Duration
}

func NewWorker(consumer Consumer, sender Sender, logger zerolog.Logger) *Worker {
	return &Worker{
		consumer: consumer,
		sender:   sender,
		logger:   logger.With().Str("component", "notify-worker").Logger(),
		backoff:  time.Second,
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		ev, err := w.consumer.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			w.logger.Error().Err(err).Msg("read notification")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.backoff):
			}
			continue
		}

		if err := w.sender.Send(ctx, ev); err != nil {
			w.logger.Error().Err(err).
				Str("type", string(ev.Type)).
				Str("appointment_id", ev.AppointmentID.String()).
				Msg("deliver notification")
		}
	}
}
