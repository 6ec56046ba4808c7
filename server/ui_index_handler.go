package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-passwordless/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// IndexHandler renders the home page: the login form, or who is signed in.
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := map[string]interface{}{
			"Error":  r.URL.Query().Get(FieldError),
			"Origin": r.URL.Query().Get(FieldOrigin),
		}
		if uid, ok := s.flow.CurrentUser(r); ok {
			data["User"] = s.displayUser(r.Context(), uid)
		}
		s.renderPage(w, r, http.StatusOK, "index.html", data)
	}
}

// displayUser names uid by its email address when the user is known.
func (s *Server) displayUser(ctx context.Context, uid string) string {
	user := s.lookupUser(ctx, uid)
	if user == nil || user.Email == "" {
		return uid
	}
	if user.DisplayName != "" {
		return user.DisplayName
	}
	return user.Email
}

func (s *Server) lookupUser(ctx context.Context, uid string) *users.User {
	if s.users == nil {
		return nil
	}
	user, err := s.users.GetByID(ctx, uid)
	if err != nil {
		if !errors.Is(err, users.ErrUserNotFound) {
			zerolog.Ctx(ctx).Err(err).Str("userID", uid).Msg("user lookup failed")
		}
		return nil
	}
	return user
}
