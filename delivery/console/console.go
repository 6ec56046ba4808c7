package console

import (
	"context"

	"github.com/jrsteele09/go-passwordless/delivery/email"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sender writes tokens to the log instead of delivering them.
// Only meant for local development.
type Sender struct {
	logger    zerolog.Logger
	acceptURL string
}

type Option func(*Sender)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Sender) {
		s.logger = logger
	}
}

// WithAcceptURL adds a ready-to-click login link to each entry.
func WithAcceptURL(acceptURL string) Option {
	return func(s *Sender) {
		s.acceptURL = acceptURL
	}
}

func New(options ...Option) *Sender {
	s := &Sender{
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Sender) Send(_ context.Context, tok, uid, recipient string) error {
	event := s.logger.Warn().
		Str("recipient", recipient).
		Str("uid", uid).
		Str("token", tok)
	if s.acceptURL != "" {
		event = event.Str("link", email.LoginURL(s.acceptURL, tok, uid))
	}
	event.Msg("console delivery")
	return nil
}
