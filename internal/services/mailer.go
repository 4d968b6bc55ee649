package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog/log"
)

var ErrMailerNotConfigured = errors.New("smtp host is not configured")

// Mailer is the outbound email capability
type Mailer interface {
	SendMail(ctx context.Context, to, subject, body string) error
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Sender   string
}

// SMTPMailer sends plain text emails via SMTP
type SMTPMailer struct {
	config SMTPConfig
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(config SMTPConfig) *SMTPMailer {
	if config.Sender == "" {
		config.Sender = "no-reply@localhost"
	}

	if config.Port == "" {
		config.Port = "587"
	}

	return &SMTPMailer{config: config, send: smtp.SendMail}
}

func (m *SMTPMailer) SendMail(ctx context.Context, to, subject, body string) error {
	if m.config.Host == "" {
		return ErrMailerNotConfigured
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	recipient, err := mail.ParseAddress(to)

	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", sanitizeHeader(to), err)
	}

	var auth smtp.Auth

	if m.config.Username != "" && m.config.Password != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	addr := fmt.Sprintf("%s:%s", m.config.Host, m.config.Port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", m.config.Sender, recipient.Address, sanitizeHeader(subject)) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=UTF-8\r\n\r\n" +
			body,
	)

	if err := m.send(addr, auth, m.config.Sender, []string{recipient.Address}, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", recipient.Address, err)
	}

	log.Debug().Str("to", recipient.Address).Str("addr", addr).Msg("Email sent")

	return nil
}

func sanitizeHeader(value string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
}
