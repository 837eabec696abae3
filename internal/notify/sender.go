package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/dental-clinic-booking/internal/config"
)

// Sender delivers one rendered event.
type Sender interface {
	Send(ctx context.Context, ev Event) error
}

// LogSender logs instead of mailing. Used when SMTP is not configured.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "mail").Logger()}
}

func (s *LogSender) Send(_ context.Context, ev Event) error {
	msg, err := Render(ev)
	if err != nil {
		return err
	}
	s.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("appointment_id", ev.AppointmentID.String()).
		Msg("email not sent, smtp disabled")
	return nil
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type SMTPSender struct {
	cfg      config.SMTPConfig
	logger   zerolog.Logger
	sendMail sendMailFunc
	now      func() time.Time

	authOnce sync.Once
	auth     smtp.Auth
}

func NewSMTPSender(cfg config.SMTPConfig, logger zerolog.Logger) *SMTPSender {
	return &SMTPSender{
		cfg:      cfg,
		logger:   logger.With().Str("component", "mail").Logger(),
		sendMail: smtp.SendMail,
		now:      time.Now,
	}
}

func (s *SMTPSender) plainAuth() smtp.Auth {
	s.authOnce.Do(func() {
		if s.cfg.Username != "" {
			s.auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		}
	})
	return s.auth
}

func (s *SMTPSender) Send(ctx context.Context, ev Event) error {
	msg, err := Render(ev)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	body := mimeMessage(s.cfg.From, msg, s.now())
	if err := s.sendMail(addr, s.plainAuth(), s.cfg.From, []string{msg.To}, body); err != nil {
		return fmt.Errorf("send %s to %s: %w", ev.Type, msg.To, err)
	}

	s.logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("email sent")
	return nil
}

// NewSender picks SMTP when configured and the log sender otherwise.
func NewSender(cfg config.SMTPConfig, logger zerolog.Logger) Sender {
	if cfg.Enabled() {
		return NewSMTPSender(cfg, logger)
	}
	return NewLogSender(logger)
}
