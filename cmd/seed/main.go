package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-clinic-booking/internal/apperr"
	"github.com/hackgods/dental-clinic-booking/internal/appointment"
	"github.com/hackgods/dental-clinic-booking/internal/auth"
	"github.com/hackgods/dental-clinic-booking/internal/calendar"
	"github.com/hackgods/dental-clinic-booking/internal/config"
	"github.com/hackgods/dental-clinic-booking/internal/db"
	"github.com/hackgods/dental-clinic-booking/internal/doctor"
	"github.com/hackgods/dental-clinic-booking/internal/logging"
	"github.com/hackgods/dental-clinic-booking/internal/slot"
	"github.com/hackgods/dental-clinic-booking/internal/user"
)

type seedConfig struct {
	Doctors         int
	Patients        int
	Days            int
	PatientPassword string
}

func loadSeedConfig() seedConfig {
	return seedConfig{
		Doctors:         getInt("SEED_DOCTORS", 8),
		Patients:        getInt("SEED_PATIENTS", 50),
		Days:            getInt("SEED_DAYS", 14),
		PatientPassword: getEnv("SEED_PATIENT_PASSWORD", "patient123"),
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("seed", true)
		boot.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New("seed", cfg.IsDev())
	sc := loadSeedConfig()
	logger.Info().Int("doctors", sc.Doctors).Int("patients", sc.Patients).Int("days", sc.Days).Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := run(ctx, cfg, sc, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed failed")
	}
	logger.Info().Msg("seed complete")
}

func run(ctx context.Context, cfg config.Config, sc seedConfig, logger zerolog.Logger) error {
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if _, err := db.Migrate(ctx, pool); err != nil {
		return err
	}

	gofakeit.Seed(time.Now().UnixNano())

	quiet := logger.Level(zerolog.WarnLevel)
	tokens := auth.NewTokenAuthority(cfg.JWTSecret, cfg.JWTTTL)
	userRepo := user.NewPgRepository(pool)
	doctorRepo := doctor.NewPgRepository(pool)
	apptRepo := appointment.NewPgRepository(pool)

	accounts := user.NewService(userRepo, tokens, quiet)
	doctors := doctor.NewService(doctorRepo, apptRepo, quiet)
	slots := slot.NewService(slot.NewPgRepository(pool), doctorRepo, quiet)

	if err := seedAdmin(ctx, cfg, accounts, logger); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	created, err := seedDoctors(ctx, doctors, sc.Doctors, logger)
	if err != nil {
		return fmt.Errorf("seed doctors: %w", err)
	}
	if err := seedSlots(ctx, slots, created, sc.Days, logger); err != nil {
		return fmt.Errorf("seed slots: %w", err)
	}
	if err := seedPatients(ctx, accounts, sc.Patients, sc.PatientPassword, logger); err != nil {
		return fmt.Errorf("seed patients: %w", err)
	}
	return nil
}

func seedAdmin(ctx context.Context, cfg config.Config, accounts *user.Service, logger zerolog.Logger) error {
	password := cfg.AdminPassword
	if password == "" {
		password = "admin123"
		logger.Warn().Msg("ADMIN_PASSWORD not set, using the default seed password")
	}
	created, err := accounts.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminEmail, password)
	if err != nil {
		return err
	}
	if created {
		logger.Info().Str("email", cfg.AdminEmail).Msg("admin account created")
	} else {
		logger.Info().Str("email", cfg.AdminEmail).Msg("admin account already exists")
	}
	return nil
}

func seedDoctors(ctx context.Context, doctors *doctor.Service, count int, logger zerolog.Logger) ([]*doctor.Doctor, error) {
	logger.Info().Int("count", count).Msg("seeding doctors")

	specs := doctors.Specializations()
	out := make([]*doctor.Doctor, 0, count)
	for i := 0; i < count; i++ {
		first, last := gofakeit.FirstName(), gofakeit.LastName()
		d, err := doctors.Create(ctx, &doctor.Doctor{
			Name:            "Dr. " + first + " " + last,
			Email:           strings.ToLower(fmt.Sprintf("%s.%s.%d@dentalclinic.local", first, last, gofakeit.Number(100, 999))),
			Phone:           gofakeit.Phone(),
			Specialization:  specs[i%len(specs)],
			Experience:      gofakeit.Number(1, 30),
			Qualification:   gofakeit.RandomString([]string{"DDS", "DMD", "BDS, MDS", "DDS, MS"}),
			ConsultationFee: float64(gofakeit.Number(5, 30) * 10),
			About:           fmt.Sprintf("%s with a focus on gentle, patient-first care.", specs[i%len(specs)]),
		})
		if errors.Is(err, apperr.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}

	logger.Info().Int("created", len(out)).Msg("doctors seeded")
	return out, nil
}

func seedSlots(ctx context.Context, slots *slot.Service, doctors []*doctor.Doctor, days int, logger zerolog.Logger) error {
	start := calendar.DateOf(time.Now())
	end := start.AddDate(0, 0, days-1)

	total := 0
	for _, d := range doctors {
		n, err := slots.BulkCreate(ctx, slot.BulkInput{
			DoctorID: d.ID,
			Start:    start,
			End:      end,
			Times:    slots.DefaultTimes(),
		})
		if err != nil {
			return err
		}
		total += n
	}

	logger.Info().Int("created", total).Str("from", calendar.Format(start)).Str("to", calendar.Format(end)).Msg("slots seeded")
	return nil
}

func seedPatients(ctx context.Context, accounts *user.Service, count int, password string, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding patients")

	created := 0
	for i := 0; i < count; i++ {
		_, err := accounts.Register(ctx, user.RegisterInput{
			Name:     gofakeit.Name(),
			Email:    fmt.Sprintf("patient%03d@dentalclinic.local", i+1),
			Password: password,
			Phone:    gofakeit.Phone(),
		})
		if errors.Is(err, apperr.ErrConflict) {
			continue
		}
		if err != nil {
			return err
		}
		created++

		if created%25 == 0 {
			logger.Info().Int("created", created).Int("count", count).Msg("patients seeded")
		}
	}

	logger.Info().Int("created", created).Msg("patients seeded")
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
