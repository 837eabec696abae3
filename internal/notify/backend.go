package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/dental-clinic-booking/internal/config"
	redisclient "github.com/hackgods/dental-clinic-booking/internal/redis"
)

const (
	BackendRedis = "redis"
	BackendKafka = "kafka"
	BackendNone  = "none"
)

const kafkaGroupID = "dental-clinic-notify"

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
func (nopPublisher) Close() error                         { return nil }

// NewPublisher picks the transport named by cfg.NotifyBackend. rdb is only
// needed for the redis backend.
func NewPublisher(cfg config.Config, rdb *redis.Client) (Publisher, error) {
	switch cfg.NotifyBackend {
	case BackendRedis:
		if rdb == nil {
			return nil, errors.New("redis notify backend needs a redis client")
		}
		return NewRedisPublisher(redisclient.NewQueue(rdb, cfg.NotifyQueue)), nil
	case BackendKafka:
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case BackendNone:
		return nopPublisher{}, nil
	}
	return nil, fmt.Errorf("unknown notify backend %q", cfg.NotifyBackend)
}

// NewConsumer is the reading side of NewPublisher.
func NewConsumer(cfg config.Config, rdb *redis.Client) (Consumer, error) {
	switch cfg.NotifyBackend {
	case BackendRedis:
		if rdb == nil {
			return nil, errors.New("redis notify backend needs a redis client")
		}
		return NewRedisConsumer(redisclient.NewQueue(rdb, cfg.NotifyQueue), 0), nil
	case BackendKafka:
		return NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, kafkaGroupID), nil
	case BackendNone:
		return nil, errors.New("notify backend is none, nothing to consume")
	}
	return nil, fmt.Errorf("unknown notify backend %q", cfg.NotifyBackend)
}
