package server

import (
	"context"
	"time"

	"github.com/jrsteele09/go-passwordless/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// InitialiseUsers registers the SEED_USERS addresses that are not known yet,
// so a fresh deployment has someone who can request a token.
func (s *Server) InitialiseUsers(ctx context.Context) error {
	seeds := s.config.GetSeedUsers()
	if s.users == nil || len(seeds) == 0 {
		return nil
	}

	for _, seed := range seeds {
		email := users.NormaliseEmail(seed)
		if !users.ValidateEmail(email) {
			return errors.Errorf("[Server InitialiseUsers] invalid seed address %q", seed)
		}

		_, err := s.users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			continue
		case !errors.Is(err, users.ErrUserNotFound):
			return errors.Wrapf(err, "[Server InitialiseUsers] GetByEmail %s", email)
		}

		user := &users.User{Email: email, DateJoined: time.Now()}
		if err := s.users.Upsert(ctx, user); err != nil {
			return errors.Wrapf(err, "[Server InitialiseUsers] Upsert %s", email)
		}
		log.Info().Str("userID", user.ID).Str("email", email).Msg("seeded user")
	}
	return nil
}
