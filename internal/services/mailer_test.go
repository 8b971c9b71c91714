package services

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AnshRaj112/storefront-backend/internal/config"
)

func TestSMTPMailerSend(t *testing.T) {
	m, err := NewSMTPMailer(config.SMTPConfig{
		Host: "smtp.example.com",
		Port: 587,
		From: "Storefront <no-reply@example.com>",
	}, zap.NewNop())
	require.NoError(t, err)
	m.now = func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) }

	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotBody string
	)
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotBody = addr, from, to, string(msg)
		return nil
	}

	err = m.Send(context.Background(), Message{To: "a@x.com", Subject: "Hello", Text: "line1\nline2"})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "no-reply@example.com", gotFrom)
	assert.Equal(t, []string{"a@x.com"}, gotTo)
	assert.Contains(t, gotBody, "Subject: Hello\r\n")
	assert.Contains(t, gotBody, "To: <a@x.com>\r\n")
	assert.True(t, strings.HasSuffix(gotBody, "line1\r\nline2\r\n"))
}

func TestSMTPMailerPropagatesFailure(t *testing.T) {
	m, err := NewSMTPMailer(config.SMTPConfig{Host: "smtp.example.com", Port: 25, From: "no-reply@example.com"}, zap.NewNop())
	require.NoError(t, err)
	boom := errors.New("connection refused")
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	err = m.Send(context.Background(), Message{To: "a@x.com", Subject: "s", Text: "t"})
	assert.ErrorIs(t, err, boom)

	err = m.Send(context.Background(), Message{To: "not an address", Subject: "s"})
	assert.Error(t, err)
}

func TestNewMailerSelection(t *testing.T) {
	dev := &config.Config{Environment: "development"}
	m, err := NewMailer(dev, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LogMailer{}, m)
	assert.NoError(t, m.Send(context.Background(), Message{To: "a@x.com"}))

	prod := &config.Config{Environment: "production"}
	m, err = NewMailer(prod, zap.NewNop())
	require.NoError(t, err)
	assert.ErrorIs(t, m.Send(context.Background(), Message{To: "a@x.com"}), ErrMailDisabled)

	smtpCfg := &config.Config{SMTP: config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "no-reply@example.com"}}
	m, err = NewMailer(smtpCfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &SMTPMailer{}, m)
}
