package flow

import (
	"net/http"

	"github.com/jrsteele09/go-passwordless/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SessionSupport loads the session named by the request cookie, or starts a new
// one, and makes it available to later steps. Changed sessions are saved and
// the cookie is set before the first byte of the response is written.
// Without a session store it is a pass-through.
func (f *Flow) SessionSupport() Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if f.sessionStore == nil {
				next(w, r)
				return
			}

			session, persisted, err := f.loadSession(r)
			if err != nil {
				log.Err(err).Msg("loading session failed")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			sw := &sessionWriter{ResponseWriter: w, flow: f, request: r, session: session, persisted: persisted}
			next(sw, r.WithContext(withSession(r.Context(), session, persisted)))
			sw.commit()
		}
	}
}

func (f *Flow) loadSession(r *http.Request) (*sessions.Session, bool, error) {
	if cookie, err := r.Cookie(f.cookieName); err == nil && cookie.Value != "" {
		session, err := f.sessionStore.Load(r.Context(), cookie.Value)
		switch {
		case err == nil:
			return session, true, nil
		case !errors.Is(err, sessions.ErrSessionNotFound):
			return nil, false, err
		}
	}
	return sessions.New(f.nowFunc(), f.sessionMaxAge), false, nil
}

// sessionWriter saves the session the first time the handler writes the response.
type sessionWriter struct {
	http.ResponseWriter
	flow      *Flow
	request   *http.Request
	session   *sessions.Session
	persisted bool
	committed bool
}

func (w *sessionWriter) WriteHeader(code int) {
	w.commit()
	w.ResponseWriter.WriteHeader(code)
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *sessionWriter) commit() {
	if w.committed {
		return
	}
	w.committed = true

	if !w.session.Modified() {
		return
	}

	ctx := w.request.Context()
	if w.session.RenewRequested() {
		previous := w.session.ID
		w.session.ID = sessions.NewID()
		if w.persisted {
			if err := w.flow.sessionStore.Delete(ctx, previous); err != nil {
				log.Err(err).Msg("deleting replaced session failed")
			}
		}
	}

	if err := w.flow.sessionStore.Save(ctx, w.session); err != nil {
		log.Err(err).Msg("saving session failed")
		return
	}
	w.flow.setSessionCookie(w.ResponseWriter, w.request, w.session)
}

func (f *Flow) setSessionCookie(w http.ResponseWriter, r *http.Request, session *sessions.Session) {
	maxAge := int(session.ExpiresAt.Sub(f.nowFunc()).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     f.cookieName,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}
