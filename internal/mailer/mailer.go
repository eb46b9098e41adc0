// Package mailer delivers transactional email over SMTP.
package mailer

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"gopkg.in/gomail.v2"
)

var ErrNoRecipient = errors.New("message has no recipient")

type Message struct {
	To      []string
	Subject string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// lateGrace is how long Send keeps waiting on an in-flight delivery after
// its context ends.
const lateGrace = 30 * time.Second

// SMTP sends through a fresh dialer connection per message.
type SMTP struct {
	from  string
	send  func(m ...*gomail.Message) error
	grace time.Duration
}

func NewSMTP(cfg SMTPConfig) *SMTP {
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	return &SMTP{
		from:  from,
		send:  dialer.DialAndSend,
		grace: lateGrace,
	}
}

// New returns an SMTP mailer, or a Noop one when no host is configured.
func New(cfg SMTPConfig) Mailer {
	if strings.TrimSpace(cfg.Host) == "" {
		log.Println("[MAILER] [WARN] SMTP_HOST not set, outgoing mail will only be logged")
		return Noop{}
	}
	return NewSMTP(cfg)
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	to := recipients(msg.To)
	if len(to) == 0 {
		return ErrNoRecipient
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	done := make(chan error, 1)
	go func() {
		done <- s.send(m)
	}()

	// DialAndSend cannot be interrupted, so once it is running its result
	// decides the outcome.
	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		select {
		case err = <-done:
			log.Println("[MAILER] [WARN] delivery finished after context ended:", msg.Subject)
		case <-time.After(s.grace):
			log.Println("[MAILER] [ERROR] delivery still running after grace period:", msg.Subject)
			return ctx.Err()
		}
	}
	if err != nil {
		log.Println("[MAILER] [ERROR] send failed:", msg.Subject, err)
		return err
	}
	log.Println("[MAILER] [INFO] sent:", msg.Subject, "->", strings.Join(to, ","))
	return nil
}

// Noop logs instead of sending.
type Noop struct{}

func (Noop) Send(_ context.Context, msg Message) error {
	to := recipients(msg.To)
	if len(to) == 0 {
		return ErrNoRecipient
	}
	log.Println("[MAILER] [INFO] (noop)", msg.Subject, "->", strings.Join(to, ","))
	return nil
}

func recipients(to []string) []string {
	out := make([]string, 0, len(to))
	for _, addr := range to {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
