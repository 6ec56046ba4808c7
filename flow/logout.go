package flow

import (
	"net/http"

	"github.com/jrsteele09/go-passwordless/internal/errors"
	"github.com/rs/zerolog/log"
)

// Logout clears the authenticated user from the session and invalidates every
// outstanding token of that user.
func (f *Flow) Logout(options ...Option) Middleware {
	o := f.options(options)

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			session := SessionFromContext(r.Context())
			if f.Stateful() && session == nil {
				log.Err(errors.ErrSessionUnavailable).Msg("Logout requires SessionSupport to run first")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			uid, authenticated := f.authenticatedUser(r)
			if session != nil {
				f.bridge.Clear(session)
			}

			if authenticated {
				if err := f.engine.InvalidateUser(r.Context(), uid); err != nil {
					log.Err(err).Str("uid", uid).Msg("logout failed")
					f.fail(w, r, o, http.StatusInternalServerError, "logout failed")
					return
				}
				log.Info().Str("uid", uid).Msg("logged out")
			}

			if o.successRedirect != "" {
				redirectSuccess(w, r, o.successRedirect)
				return
			}
			next(w, r.WithContext(withUser(r.Context(), "")))
		}
	}
}
