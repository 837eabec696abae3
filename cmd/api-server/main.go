package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-clinic-booking/internal/api"
	"github.com/hackgods/dental-clinic-booking/internal/appointment"
	"github.com/hackgods/dental-clinic-booking/internal/auth"
	"github.com/hackgods/dental-clinic-booking/internal/config"
	"github.com/hackgods/dental-clinic-booking/internal/db"
	"github.com/hackgods/dental-clinic-booking/internal/doctor"
	"github.com/hackgods/dental-clinic-booking/internal/logging"
	"github.com/hackgods/dental-clinic-booking/internal/notify"
	redisclient "github.com/hackgods/dental-clinic-booking/internal/redis"
	"github.com/hackgods/dental-clinic-booking/internal/slot"
	"github.com/hackgods/dental-clinic-booking/internal/user"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("api-server", true)
		boot.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New("api-server", cfg.IsDev())
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Str("api_prefix", cfg.APIPrefix).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(rootCtx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("api-server stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("api-server stopped")
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(ctx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		return err
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	if cfg.MigrateOnStart {
		applied, err := db.Migrate(ctx, pgPool)
		if err != nil {
			return err
		}
		logger.Info().Int("applied", applied).Msg("migrations up to date")
	}

	// Redis is optional for correctness; without it there is no slot lock
	// and notifications can only go to Kafka.
	var locker redisclient.Locker = redisclient.NoopLocker{}
	var rdb *redis.Client
	rdb, err = redisclient.NewRedisClient(redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, booking without slot lock")
	} else {
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
		logger.Info().Msg("connected to Redis")
	}

	pub, err := notify.NewPublisher(cfg, rdb)
	if err != nil {
		logger.Warn().Err(err).Str("backend", cfg.NotifyBackend).Msg("notifications disabled")
		pub, _ = notify.NewPublisher(config.Config{NotifyBackend: notify.BackendNone}, nil)
	}
	dispatcher := notify.NewAsyncDispatcher(pub, logger, notify.DispatcherOptions{})

	tokens := auth.NewTokenAuthority(cfg.JWTSecret, cfg.JWTTTL)

	userRepo := user.NewPgRepository(pgPool)
	doctorRepo := doctor.NewPgRepository(pgPool)
	slotRepo := slot.NewPgRepository(pgPool)
	apptRepo := appointment.NewPgRepository(pgPool)

	accounts := user.NewService(userRepo, tokens, logger)
	doctors := doctor.NewService(doctorRepo, apptRepo, logger)
	slots := slot.NewService(slotRepo, doctorRepo, logger)
	appointments := appointment.NewService(apptRepo, slots, doctorRepo, userRepo, locker, dispatcher, logger)

	if cfg.AdminPassword != "" {
		created, err := accounts.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return err
		}
		if created {
			logger.Info().Str("email", cfg.AdminEmail).Msg("admin account created")
		}
	}

	var redisProbe api.Pinger
	if rdb != nil {
		redisProbe = api.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	health := api.NewHealthHandler(api.PingFunc(pgPool.Ping), redisProbe, cfg.Env, version)

	router := api.NewRouter(api.RouterConfig{
		Appointments: appointments,
		Slots:        slots,
		Doctors:      doctors,
		Accounts:     accounts,
		Tokens:       tokens,
		Health:       health,
		Logger:       logger,
		APIPrefix:    cfg.APIPrefix,
		Dev:          cfg.IsDev(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down api-server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("flush notifications")
	}
	return nil
}
