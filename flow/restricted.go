package flow

import (
	"net/http"

	"github.com/jrsteele09/go-passwordless/internal/errors"
	"github.com/rs/zerolog/log"
)

// Restricted lets authenticated requests through and denies the rest with a
// 401, or a redirect to the failure URL when one is set. It never changes
// who is logged in.
func (f *Flow) Restricted(options ...Option) Middleware {
	o := f.options(options)

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			session := SessionFromContext(r.Context())
			if f.Stateful() && session == nil {
				log.Err(errors.ErrSessionUnavailable).Msg("Restricted requires SessionSupport to run first")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			if uid, ok := f.authenticatedUser(r); ok {
				next(w, r.WithContext(withUser(r.Context(), uid)))
				return
			}

			if o.failureRedirect == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="passwordless"`)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			// A fresh session would be saved just to hold the URL, so cookieless
			// clients only get the origin query parameter.
			original := r.URL.RequestURI()
			if session != nil && r.Method == http.MethodGet && sessionPersisted(r.Context()) {
				f.bridge.StashOriginalURL(session, original)
			}
			target := o.failureRedirect
			if o.originField != "" {
				target = appendQuery(target, o.originField, original)
			}
			redirectSuccess(w, r, target)
		}
	}
}

// authenticatedUser returns the uid set by AcceptToken earlier in this request
// or, failing that, the one stored in the session.
func (f *Flow) authenticatedUser(r *http.Request) (string, bool) {
	if uid, ok := UserFromContext(r.Context()); ok {
		return uid, true
	}
	return f.bridge.Read(SessionFromContext(r.Context()))
}

// CurrentUser reports who is logged in without restricting the request.
func (f *Flow) CurrentUser(r *http.Request) (string, bool) {
	return f.authenticatedUser(r)
}
