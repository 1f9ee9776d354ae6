package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

// Sender delivers one message and returns its delivery id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

type SMTPSender struct {
	cfg SMTPConfig
	now func() time.Time
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, now: time.Now}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw, id, err := Compose(s.cfg.From, s.cfg.FromName, msg, s.now())
	if err != nil {
		return "", err
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{msg.To}, raw); err != nil {
		return "", fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return id, nil
}
