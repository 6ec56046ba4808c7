package email

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/pkg/errors"
)

// SMTP sends mail through an authenticated SMTP relay.
type SMTP struct {
	Host     string
	Port     string
	Account  string
	Password string
	From     string

	// sendMail is swapped out in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTP(host, port, account, password, from string) *SMTP {
	if from == "" {
		from = account
	}
	return &SMTP{
		Host:     host,
		Port:     port,
		Account:  account,
		Password: password,
		From:     from,
		sendMail: smtp.SendMail,
	}
}

// SendEmail satisfies SendEmailFunc.
func (s *SMTP) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return errors.New("[SMTP.SendEmail] header values must not contain line breaks")
	}

	var auth smtp.Auth
	if s.Account != "" {
		auth = smtp.PlainAuth("", s.Account, s.Password, s.Host)
	}

	addr := net.JoinHostPort(s.Host, s.Port)
	if err := s.sendMail(addr, auth, s.From, []string{to}, Message(s.From, to, subject, body)); err != nil {
		return errors.Wrapf(err, "[SMTP.SendEmail] smtp.SendMail %s", addr)
	}
	return nil
}

// Message builds a plain-text RFC 5322 message.
func Message(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}
