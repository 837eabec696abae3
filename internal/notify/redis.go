package notify

import (
	"context"
	"errors"
	"time"

	redisclient "github.com/hackgods/dental-clinic-booking/internal/redis"
)

// RedisPublisher pushes JSON events onto a Redis list.
type RedisPublisher struct {
	queue *redisclient.Queue
}

func NewRedisPublisher(queue *redisclient.Queue) *RedisPublisher {
	return &RedisPublisher{queue: queue}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := Encode(ev)
	if err != nil {
		return err
	}
	return p.queue.Push(ctx, data)
}

// Close is a no-op; the Redis client is owned by main.
func (p *RedisPublisher) Close() error { return nil }

// RedisConsumer pops events off the list the publisher writes to.
type RedisConsumer struct {
	queue   *redisclient.Queue
	timeout time.Duration
}

func NewRedisConsumer(queue *redisclient.Queue, pollTimeout time.Duration) *RedisConsumer {
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	return &RedisConsumer{queue: queue, timeout: pollTimeout}
}

func (c *RedisConsumer) Next(ctx context.Context) (Event, error) {
	for {
		data, err := c.queue.Pop(ctx, c.timeout)
		if errors.Is(err, redisclient.ErrQueueEmpty) {
			if ctx.Err() != nil {
				return Event{}, ctx.Err()
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return Event{}, ctx.Err()
			}
			return Event{}, err
		}
		return Decode(data)
	}
}

func (c *RedisConsumer) Close() error { return nil }
