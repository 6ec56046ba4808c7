package main

import (
	"github.com/jrsteele09/go-passwordless/delivery"
	"github.com/jrsteele09/go-passwordless/delivery/console"
	"github.com/jrsteele09/go-passwordless/delivery/email"
	"github.com/jrsteele09/go-passwordless/internal/config"
	"github.com/jrsteele09/go-passwordless/server"
	"github.com/jrsteele09/go-passwordless/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	deliveryConsole = "console"
	deliveryEmail   = "email"
)

// newDeliveries registers the console delivery and, when an SMTP account is
// configured, the email delivery. Both resolve addresses through repo.
func newDeliveries(cfg config.Config, repo users.UserRepo) (*delivery.Registry, error) {
	var verifierOptions []users.VerifierOption
	if cfg.GetAutoRegister() {
		verifierOptions = append(verifierOptions, users.WithAutoRegister())
	}
	verify := users.EmailVerifier(repo, verifierOptions...)
	acceptURL := cfg.GetBaseURL() + server.RouteAcceptToken

	registry, err := delivery.NewRegistry(delivery.Adapter{
		Name:   deliveryConsole,
		Verify: verify,
		Send:   console.New(console.WithAcceptURL(acceptURL)).Send,
	})
	if err != nil {
		return nil, err
	}

	if cfg.GetSmtpAccount() != "" {
		smtp := email.NewSMTP(cfg.GetSmtpHost(), cfg.GetSmtpPort(), cfg.GetSmtpAccount(), cfg.GetSmtpPassword(), cfg.GetSmtpFrom())
		sender, err := email.New(email.Config{
			SiteName:   cfg.GetAppName(),
			SenderName: cfg.GetAppName(),
			AcceptURL:  acceptURL,
			Expiration: cfg.GetTokenTTL(),
		}, smtp.SendEmail)
		if err != nil {
			return nil, err
		}
		if err := registry.Add(delivery.Adapter{Name: deliveryEmail, Verify: verify, Send: sender.Send}); err != nil {
			return nil, err
		}
	}

	if err := registry.SetDefault(cfg.GetDelivery()); err != nil {
		return nil, errors.Wrapf(err, "delivery %q (email needs SMTP_ACCOUNT)", cfg.GetDelivery())
	}
	if cfg.GetDelivery() == deliveryConsole {
		log.Warn().Msg("tokens are written to the log; set DELIVERY=email for real use")
	}
	return registry, nil
}
