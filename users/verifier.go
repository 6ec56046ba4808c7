package users

import (
	"context"
	"time"

	"github.com/jrsteele09/go-passwordless/delivery"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type verifier struct {
	repo         UserRepo
	autoRegister bool
	nowFunc      func() time.Time
}

type VerifierOption func(*verifier)

// WithAutoRegister creates a user for any well-formed address that is not yet known.
func WithAutoRegister() VerifierOption {
	return func(v *verifier) {
		v.autoRegister = true
	}
}

// WithNowFunc sets the clock used for DateJoined (primarily for testing)
func WithNowFunc(now func() time.Time) VerifierOption {
	return func(v *verifier) {
		v.nowFunc = now
	}
}

// EmailVerifier resolves an email address to a user ID through repo.
// Unknown, malformed and blocked addresses resolve to an empty uid.
func EmailVerifier(repo UserRepo, options ...VerifierOption) delivery.VerifyFunc {
	v := &verifier{
		repo:    repo,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(v)
	}
	return v.verify
}

func (v *verifier) verify(ctx context.Context, contact string) (string, error) {
	email := NormaliseEmail(contact)
	if !ValidateEmail(email) {
		return "", nil
	}

	user, err := v.repo.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrUserNotFound):
		if !v.autoRegister {
			return "", nil
		}
		return v.register(ctx, email)
	case err != nil:
		return "", errors.Wrap(err, "[verifier.verify] GetByEmail")
	}

	if user.Blocked {
		log.Info().Str("userID", user.ID).Msg("token requested for blocked user")
		return "", nil
	}
	return user.ID, nil
}

func (v *verifier) register(ctx context.Context, email string) (string, error) {
	user := &User{
		Email:      email,
		DateJoined: v.nowFunc(),
	}
	if err := v.repo.Upsert(ctx, user); err != nil {
		return "", errors.Wrap(err, "[verifier.register] Upsert")
	}
	log.Info().Str("userID", user.ID).Msg("registered user")
	return user.ID, nil
}

// LoginRecorder marks the owner of an accepted token as verified and stamps LastLogin.
func LoginRecorder(repo UserRepo, now func() time.Time) func(ctx context.Context, uid string) error {
	return func(ctx context.Context, uid string) error {
		user, err := repo.GetByID(ctx, uid)
		if err != nil {
			return errors.Wrap(err, "[LoginRecorder] GetByID")
		}
		if !user.Verified {
			if err := repo.SetVerified(ctx, user.Email, true); err != nil {
				return errors.Wrap(err, "[LoginRecorder] SetVerified")
			}
		}
		return repo.SetLastLogin(ctx, uid, now())
	}
}
