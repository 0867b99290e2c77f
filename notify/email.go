// Package notify holds the channel transports that deliver one-time
// codes: SMTP for email, an HTTP gateway for SMS.
package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/kilnworks/go-admin-gate/internal/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const emailSubject = "Your admin verification code"

// SMTPSender delivers one-time codes by email. Fire-and-forget: the
// caller decides whether a failed send may be retried.
type SMTPSender struct {
	host     string
	port     string
	account  string
	password string
}

func NewSMTPSender(cfg config.EnvConfig) *SMTPSender {
	return &SMTPSender{
		host:     cfg.GetSmtpHost(),
		port:     cfg.GetSmtpPort(),
		account:  cfg.GetSmtpAccount(),
		password: cfg.GetSmtpPassword(),
	}
}

func (s *SMTPSender) SendCode(ctx context.Context, address, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.account == "" {
		return errors.New("[SMTPSender.SendCode] SMTP account not configured")
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\nYour verification code is %s. It expires in a few minutes.\r\n",
		s.account, address, emailSubject, code)

	auth := smtp.PlainAuth("", s.account, s.password, s.host)
	if err := smtp.SendMail(s.host+":"+s.port, auth, s.account, []string{address}, []byte(msg)); err != nil {
		return errors.Wrap(err, "[SMTPSender.SendCode] smtp.SendMail")
	}

	log.Debug().Str("to", address).Msg("verification code emailed")
	return nil
}
