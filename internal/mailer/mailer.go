// Package mailer dispatches staff email over SMTP.
package mailer

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/mail.v2"

	"github.com/AnshRaj112/civicpulse-backend/internal/apperr"
)

// Sender is satisfied by *mail.Dialer.
type Sender interface {
	DialAndSend(m ...*mail.Message) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Message is one outbound email.
type Message struct {
	To      []string `json:"to" validate:"required,min=1,max=50,dive,email"`
	Subject string   `json:"subject" validate:"required,max=200"`
	Body    string   `json:"body" validate:"required,max=20000"`
	HTML    bool     `json:"html"`
}

type Mailer struct {
	sender   Sender
	from     string
	validate *validator.Validate
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// New returns a mailer; without an SMTP host it is unconfigured and Send
// reports a config error.
func New(cfg Config, logger *zap.Logger) *Mailer {
	var sender Sender
	if cfg.Host != "" {
		sender = mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return NewWithSender(sender, cfg.From, logger)
}

func NewWithSender(sender Sender, from string, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{sender: sender, from: from, validate: validator.New(), logger: logger}
}

func (m *Mailer) IsConfigured() bool {
	return m.sender != nil && m.from != ""
}

// Send validates msg and dispatches it in the background. Delivery failures
// are logged for the operator, never returned.
func (m *Mailer) Send(msg Message) error {
	if !m.IsConfigured() {
		return apperr.Config("email_unconfigured", "Email is not configured.")
	}
	for i := range msg.To {
		msg.To[i] = strings.TrimSpace(msg.To[i])
	}
	if err := m.validate.Struct(msg); err != nil {
		return apperr.Validation("invalid_email", "Please provide valid recipients, a subject and a message.")
	}

	out := mail.NewMessage()
	out.SetHeader("From", m.from)
	out.SetHeader("To", msg.To...)
	out.SetHeader("Subject", msg.Subject)
	if msg.HTML {
		out.SetBody("text/html", msg.Body)
	} else {
		out.SetBody("text/plain", msg.Body)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.sender.DialAndSend(out); err != nil {
			m.logger.Error("failed to send email",
				zap.Strings("to", msg.To),
				zap.String("subject", msg.Subject),
				zap.Error(err))
			return
		}
		m.logger.Info("email sent", zap.Int("recipients", len(msg.To)))
	}()
	return nil
}

// Wait blocks until every in-flight send has finished.
func (m *Mailer) Wait() { m.wg.Wait() }
