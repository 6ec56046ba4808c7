package email

import (
	"bytes"
	"context"
	"net/url"
	"strings"
	"text/template"
	"time"

	"github.com/pkg/errors"
)

// Params is passed as data when executing the email template.
type Params struct {
	Recipient  string
	SiteName   string
	Token      string
	LoginURL   string
	Expiration time.Duration
	SenderName string
}

// DefaultTemplate is used when Config.Template is empty.
const DefaultTemplate = `Hi {{.Recipient}},

Use the link below to sign in to {{.SiteName}}:

{{.LoginURL}}

The link is valid for {{printf "%.f" .Expiration.Minutes}} minutes and can only be used once.

If you did not request it, you can ignore this email.


Regards,

{{.SenderName}}
`

// DefaultSubject is used when Config.Subject is empty.
const DefaultSubject = "Your sign-in link"

type Config struct {
	SiteName   string
	SenderName string
	Subject    string
	Template   string

	// AcceptURL is the absolute URL of the accept-token endpoint.
	// The token and uid are appended as query parameters.
	AcceptURL string

	// Expiration is shown to the recipient; keep it in line with the token TTL.
	Expiration time.Duration
}

// SendEmailFunc hands a rendered message to a mail transport.
type SendEmailFunc func(ctx context.Context, to, subject, body string) error

// Sender renders login emails and passes them to a mail transport.
type Sender struct {
	config    Config
	tmpl      *template.Template
	sendEmail SendEmailFunc
}

func New(config Config, sendEmail SendEmailFunc) (*Sender, error) {
	if sendEmail == nil {
		return nil, errors.New("[email.New] sendEmail is required")
	}
	if config.Template == "" {
		config.Template = DefaultTemplate
	}
	if config.Subject == "" {
		config.Subject = DefaultSubject
	}
	if config.AcceptURL == "" {
		return nil, errors.New("[email.New] AcceptURL is required")
	}
	if _, err := url.Parse(config.AcceptURL); err != nil {
		return nil, errors.Wrap(err, "[email.New] AcceptURL")
	}

	tmpl, err := template.New("email").Parse(config.Template)
	if err != nil {
		return nil, errors.Wrap(err, "[email.New] template.Parse")
	}

	return &Sender{
		config:    config,
		tmpl:      tmpl,
		sendEmail: sendEmail,
	}, nil
}

// Send renders the email for tok and mails it to recipient.
func (s *Sender) Send(ctx context.Context, tok, uid, recipient string) error {
	body, err := s.Render(tok, uid, recipient)
	if err != nil {
		return err
	}
	if err := s.sendEmail(ctx, recipient, s.config.Subject, body); err != nil {
		return errors.Wrap(err, "[Sender.Send] sendEmail")
	}
	return nil
}

// Render executes the template for tok.
func (s *Sender) Render(tok, uid, recipient string) (string, error) {
	params := Params{
		Recipient:  recipient,
		SiteName:   s.config.SiteName,
		Token:      tok,
		LoginURL:   LoginURL(s.config.AcceptURL, tok, uid),
		Expiration: s.config.Expiration,
		SenderName: s.config.SenderName,
	}

	var body bytes.Buffer
	if err := s.tmpl.Execute(&body, params); err != nil {
		return "", errors.Wrap(err, "[Sender.Render] template.Execute")
	}
	return body.String(), nil
}

// LoginURL appends the token (and uid when set) to acceptURL.
func LoginURL(acceptURL, tok, uid string) string {
	query := url.Values{}
	query.Set("token", tok)
	if uid != "" {
		query.Set("uid", uid)
	}

	sep := "?"
	if strings.Contains(acceptURL, "?") {
		sep = "&"
	}
	return acceptURL + sep + query.Encode()
}
