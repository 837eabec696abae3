package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Dispatcher is what the booking flow talks to.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event)
}

// Publisher hands an event to a transport.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, Event) {}

type DispatcherOptions struct {
	Buffer         int
	Workers        int
	PublishTimeout time.Duration
}

// AsyncDispatcher buffers events in memory and publishes them from
// background goroutines. A full buffer drops the event.
type AsyncDispatcher struct {
	pub     Publisher
	logger  zerolog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	events chan Event
	wg     sync.WaitGroup
}

func NewAsyncDispatcher(pub Publisher, logger zerolog.Logger, opts DispatcherOptions) *AsyncDispatcher {
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 5 * time.Second
	}

	d := &AsyncDispatcher{
		pub:     pub,
		logger:  logger.With().Str("component", "notify").Logger(),
		timeout: opts.PublishTimeout,
		events:  make(chan Event, opts.Buffer),
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

func (d *AsyncDispatcher) Dispatch(_ context.Context, ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn().Str("type", string(ev.Type)).Str("appointment_id", ev.AppointmentID.String()).Msg("dispatcher closed, event dropped")
		return
	}

	select {
	case d.events <- ev:
	default:
		d.logger.Warn().Str("type", string(ev.Type)).Str("appointment_id", ev.AppointmentID.String()).Msg("notification buffer full, event dropped")
	}
}

func (d *AsyncDispatcher) run() {
	defer d.wg.Done()
	for ev := range d.events {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.pub.Publish(ctx, ev)
		cancel()
		if err != nil {
			d.logger.Error().Err(err).
				Str("type", string(ev.Type)).
				Str("appointment_id", ev.AppointmentID.String()).
				Msg("publish notification failed")
			continue
		}
		d.logger.Debug().Str("type", string(ev.Type)).Str("appointment_id", ev.AppointmentID.String()).Msg("notification published")
	}
}

// Close stops accepting events, drains the buffer and closes the
// publisher. It gives up when ctx is done.
func (d *AsyncDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.events)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return d.pub.Close()
}
