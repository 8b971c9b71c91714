package services

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AnshRaj112/storefront-backend/internal/config"
)

// ErrMailDisabled is returned when no SMTP server is configured in production.
var ErrMailDisabled = errors.New("email delivery is not configured")

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Text    string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer delivers mail through one SMTP relay using STARTTLS when offered.
type SMTPMailer struct {
	addr string
	host string
	from *mail.Address
	auth smtp.Auth
	send sendFunc
	log  *zap.Logger
	now  func() time.Time
}

func NewSMTPMailer(cfg config.SMTPConfig, log *zap.Logger) (*SMTPMailer, error) {
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_FROM: %w", err)
	}
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPMailer{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		host: cfg.Host,
		from: from,
		auth: auth,
		send: smtp.SendMail,
		log:  log,
		now:  time.Now,
	}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}

	body := buildMessage(m.from, to, msg, m.now())
	if err := m.send(m.addr, m.auth, m.from.Address, []string{to.Address}, body); err != nil {
		m.log.Error("❌ Failed to send email", zap.String("subject", msg.Subject), zap.Error(err))
		return fmt.Errorf("send email: %w", err)
	}
	m.log.Info("📧 Email sent", zap.String("subject", msg.Subject))
	return nil
}

func buildMessage(from, to *mail.Address, msg Message, at time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from.String())
	fmt.Fprintf(&b, "To: %s\r\n", to.String())
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", at.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Text, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// LogMailer writes messages to the log instead of sending them. Used in
// development when no SMTP server is configured.
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.log.Info("📧 Email (not sent, SMTP disabled)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Text),
	)
	return nil
}

type disabledMailer struct{}

func (disabledMailer) Send(context.Context, Message) error { return ErrMailDisabled }

// NewMailer picks SMTP when configured. Without it, development logs the
// message and production fails every send.
func NewMailer(cfg *config.Config, log *zap.Logger) (Mailer, error) {
	if cfg.SMTP.Host != "" {
		return NewSMTPMailer(cfg.SMTP, log)
	}
	if cfg.IsProduction() {
		return disabledMailer{}, nil
	}
	return NewLogMailer(log), nil
}
