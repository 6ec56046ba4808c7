package flow

import (
	"net/http"

	"github.com/jrsteele09/go-passwordless/internal/errors"
	"github.com/rs/zerolog/log"
)

// AcceptToken looks for a token in the request and, if the engine accepts it,
// authenticates the session (or, when stateless, the current request).
// Requests without a token pass straight through. A rejected token leaves the
// session untouched; whether access is denied is up to Restricted.
// It should run before any Restricted step.
func (f *Flow) AcceptToken(options ...Option) Middleware {
	o := f.options(options)

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			tok, uid, err := presentedToken(r, o)
			if err != nil {
				f.fail(w, r, o, http.StatusBadRequest, "invalid request body")
				return
			}
			if tok == "" {
				next(w, r)
				return
			}

			session := SessionFromContext(r.Context())
			if f.Stateful() && session == nil {
				log.Err(errors.ErrSessionUnavailable).Msg("AcceptToken requires SessionSupport to run first")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			record, err := f.engine.AcceptToken(r.Context(), tok, uid)
			switch {
			case errors.Is(err, errors.ErrTokenInvalid):
				if o.failureRedirect != "" {
					redirectWithError(w, r, o.failureRedirect, "the token is invalid or has expired")
					return
				}
				next(w, r)
				return
			case err != nil:
				log.Err(err).Msg("token acceptance failed")
				f.fail(w, r, o, http.StatusInternalServerError, "the token could not be verified")
				return
			}

			var stashed string
			if session != nil {
				f.bridge.Establish(session, record.UID)
				stashed = f.bridge.PopOriginalURL(session)
			}
			r = r.WithContext(withUser(r.Context(), record.UID))

			if o.enableOriginRedirect {
				if isLocalPath(record.Origin) {
					redirectSuccess(w, r, record.Origin)
					return
				}
				if isLocalPath(stashed) {
					redirectSuccess(w, r, stashed)
					return
				}
			}
			if o.successRedirect != "" {
				redirectSuccess(w, r, o.successRedirect)
				return
			}
			next(w, r)
		}
	}
}

// presentedToken returns the token and optional uid carried by the request.
// An Authorization bearer header wins over query and body parameters.
func presentedToken(r *http.Request, o *stepOptions) (string, string, error) {
	var query map[string]string
	if o.allowTokenInQuery {
		query = queryFields(r)
	}

	if tok := bearerToken(r); tok != "" {
		return tok, query["uid"], nil
	}
	if tok := query["token"]; tok != "" {
		return tok, query["uid"], nil
	}
	if o.allowPost && r.Method == http.MethodPost {
		fields, err := bodyFields(r)
		if err != nil {
			return "", "", err
		}
		return fields["token"], fields["uid"], nil
	}
	return "", "", nil
}
