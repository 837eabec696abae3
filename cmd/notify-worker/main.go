package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-clinic-booking/internal/appointment"
	"github.com/hackgods/dental-clinic-booking/internal/config"
	"github.com/hackgods/dental-clinic-booking/internal/db"
	"github.com/hackgods/dental-clinic-booking/internal/doctor"
	"github.com/hackgods/dental-clinic-booking/internal/logging"
	"github.com/hackgods/dental-clinic-booking/internal/notify"
	redisclient "github.com/hackgods/dental-clinic-booking/internal/redis"
	"github.com/hackgods/dental-clinic-booking/internal/slot"
	"github.com/hackgods/dental-clinic-booking/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("notify-worker", true)
		boot.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New("notify-worker", cfg.IsDev())
	logger.Info().Str("env", cfg.Env).Str("backend", cfg.NotifyBackend).Str("reminder_cron", cfg.ReminderCron).Msg("notify-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(rootCtx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("notify-worker stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("notify-worker stopped")
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	if cfg.NotifyBackend == notify.BackendNone {
		return errors.New("NOTIFY_BACKEND=none, nothing to deliver")
	}

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(ctx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		return err
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	var rdb *redis.Client
	if cfg.NotifyBackend == notify.BackendRedis {
		rdb, err = redisclient.NewRedisClient(redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		logger.Info().Msg("connected to Redis")
	}

	consumer, err := notify.NewConsumer(cfg, rdb)
	if err != nil {
		return err
	}
	defer consumer.Close()

	pub, err := notify.NewPublisher(cfg, rdb)
	if err != nil {
		return err
	}
	defer pub.Close()

	// reminders only read appointments, so no lock and no dispatcher
	doctorRepo := doctor.NewPgRepository(pgPool)
	appointments := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		slot.NewService(slot.NewPgRepository(pgPool), doctorRepo, logger),
		doctorRepo,
		user.NewPgRepository(pgPool),
		nil,
		nil,
		logger,
	)

	reminders := notify.NewReminderJob(appointments, pub, logger)
	scheduler := cron.New()
	if _, err := reminders.Schedule(scheduler, cfg.ReminderCron); err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		<-scheduler.Stop().Done()
	}()

	sender := notify.NewSender(cfg.SMTP, logger)
	worker := notify.NewWorker(consumer, sender, logger)
	logger.Info().Msg("waiting for notifications")
	return worker.Run(ctx)
}
