package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-passwordless/flow"
	"github.com/rs/zerolog"
)

// TokenSentHandler answers a successful token request. The response is the
// same whether or not the address belongs to a user.
func (s *Server) TokenSentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if wantsJSON(r) {
			writeJSON(w, r, http.StatusOK, map[string]string{"status": "sent"})
			return
		}
		s.renderPage(w, r, http.StatusOK, "sent.html", map[string]interface{}{
			"TTL": s.config.GetTokenTTL().String(),
		})
	}
}

// AcceptedHandler is the target of the links sent to users. AcceptToken has
// already run by the time it is reached.
func (s *Server) AcceptedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.flow.CurrentUser(r); !ok {
			s.renderPage(w, r, http.StatusUnauthorized, "invalid.html", map[string]interface{}{})
			return
		}
		target := s.config.GetSuccessRedirectURL()
		if target == "" {
			target = RouteIndex
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	}
}

func (s *Server) RestrictedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, _ := flow.UserFromContext(r.Context())
		s.renderPage(w, r, http.StatusOK, "restricted.html", map[string]interface{}{
			"User": s.displayUser(r.Context(), uid),
		})
	}
}

type meResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// MeHandler describes the authenticated user.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, _ := flow.UserFromContext(r.Context())
		resp := meResponse{ID: uid}
		if user := s.lookupUser(r.Context(), uid); user != nil {
			resp.Email = user.Email
			resp.DisplayName = user.DisplayName
		}
		writeJSON(w, r, http.StatusOK, resp)
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Err(err).Msg("writing response failed")
	}
}
