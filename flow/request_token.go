package flow

import (
	"net/http"

	"github.com/jrsteele09/go-passwordless/auth"
	"github.com/jrsteele09/go-passwordless/internal/errors"
	"github.com/rs/zerolog/log"
)

// RequestToken reads the contact and delivery from the request and asks the
// engine to issue a token. Unknown contacts get the same response as known
// ones so the endpoint cannot be used to enumerate users.
func (f *Flow) RequestToken(options ...Option) Middleware {
	o := f.options(options)

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			var fields map[string]string
			switch {
			case r.Method == http.MethodPost:
				var err error
				if fields, err = bodyFields(r); err != nil {
					f.fail(w, r, o, http.StatusBadRequest, "invalid request body")
					return
				}
			case r.Method == http.MethodGet && o.allowGet:
				fields = queryFields(r)
			default:
				allow := http.MethodPost
				if o.allowGet {
					allow += ", " + http.MethodGet
				}
				w.Header().Set("Allow", allow)
				http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
				return
			}

			contact := fields[o.contactField]
			if contact == "" {
				f.fail(w, r, o, http.StatusBadRequest, o.contactField+" is required")
				return
			}

			origin := f.requestOrigin(r, o, fields)
			_, err := f.engine.RequestToken(r.Context(), contact, fields[o.deliveryField], origin, auth.WithRequestTTL(o.tokenTTL))
			switch {
			case err == nil, errors.Is(err, errors.ErrUnknownContact):
			case errors.Is(err, errors.ErrUnknownTransport), errors.Is(err, errors.ErrInvalidInput):
				f.fail(w, r, o, http.StatusBadRequest, "unknown delivery")
				return
			default:
				log.Err(err).Msg("token request failed")
				f.fail(w, r, o, http.StatusInternalServerError, "the token could not be sent")
				return
			}

			if o.successRedirect != "" {
				redirectSuccess(w, r, o.successRedirect)
				return
			}
			next(w, r)
		}
	}
}

// requestOrigin prefers the origin field of the request and falls back to the
// URL stashed in the session by Restricted.
func (f *Flow) requestOrigin(r *http.Request, o *stepOptions, fields map[string]string) string {
	if o.originField != "" {
		if origin := fields[o.originField]; isLocalPath(origin) {
			return origin
		}
		if origin := r.URL.Query().Get(o.originField); isLocalPath(origin) {
			return origin
		}
	}
	if session := SessionFromContext(r.Context()); session != nil {
		if origin := f.bridge.PeekOriginalURL(session); isLocalPath(origin) {
			return origin
		}
	}
	return ""
}

// fail answers with status, or redirects to the failure URL when one is set.
func (f *Flow) fail(w http.ResponseWriter, r *http.Request, o *stepOptions, status int, msg string) {
	if o.failureRedirect != "" {
		redirectWithError(w, r, o.failureRedirect, msg)
		return
	}
	http.Error(w, msg, status)
}
