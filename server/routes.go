package server

import (
	"io"
	"net/http"

	"github.com/jrsteele09/go-passwordless/flow"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteIndex+"{$}", ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare()...))

	// TOKENS
	s.RegisterRouteHandler("POST "+RouteRequestToken, ChainMiddleware(s.TokenSentHandler(), s.APIMiddleware(
		s.flow.RequestToken(flow.WithContactField(FieldEmail), flow.WithOriginField(FieldOrigin)),
	)...))
	s.RegisterRouteHandler("OPTIONS "+RouteRequestToken, ChainMiddleware(noContent, s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAcceptToken, ChainMiddleware(s.AcceptedHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteLogout, ChainMiddleware(noContent, s.HTMLMiddleWare(
		s.flow.Logout(flow.WithSuccessRedirect(RouteIndex)),
	)...))

	// Restricted pages send anonymous visitors to the login form, which carries
	// the page they asked for through to the token.
	s.RegisterRouteHandler("GET "+RouteRestricted, ChainMiddleware(s.RestrictedHandler(), s.HTMLMiddleWare(
		s.flow.Restricted(flow.WithFailureRedirect(RouteIndex), flow.WithOriginField(FieldOrigin)),
	)...))

	// API routes answer 401 instead of redirecting
	s.RegisterRouteHandler("GET "+RouteAPIMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.flow.Restricted())...))
	s.RegisterRouteHandler("OPTIONS "+RouteAPIMe, ChainMiddleware(noContent, s.APIMiddleware()...))

	s.RegisterRouteFunc("GET "+RouteHealth, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	if s.metrics != nil {
		s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics.Handler())
	}
}

// acceptOptions configure the AcceptToken step that runs on every request.
func (s *Server) acceptOptions() []flow.Option {
	options := []flow.Option{
		flow.WithTokenInQuery(s.config.GetAllowTokenInQuery()),
		flow.WithOriginRedirect(),
	}
	if url := s.config.GetFailureRedirectURL(); url != "" {
		options = append(options, flow.WithFailureRedirect(url))
	}
	return options
}

func noContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
