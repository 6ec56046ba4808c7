package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-passwordless/flow"
	"github.com/jrsteele09/go-passwordless/internal/config"
	"github.com/jrsteele09/go-passwordless/internal/metrics"
	"github.com/jrsteele09/go-passwordless/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	handler http.HandlerFunc
	routes  []string
	pages   *template.Template
	config  config.Config
	flow    *flow.Flow
	metrics *metrics.Metrics
	users   users.UserRepo
}

type ServerOption func(*Server)

// WithMetrics records HTTP metrics and serves them on /metrics.
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithUserRepo resolves user IDs to profiles and seeds SEED_USERS.
func WithUserRepo(repo users.UserRepo) ServerOption {
	return func(s *Server) {
		s.users = repo
	}
}

func New(config config.Config, f *flow.Flow, options ...ServerOption) (*Server, error) {
	if f == nil {
		return nil, errors.New("[Server New] flow is required")
	}

	pages, err := ParseTemplates()
	if err != nil {
		return nil, errors.Wrap(err, "[Server New] failed to parse templates")
	}

	s := &Server{
		env:    config.GetEnv(),
		mux:    http.NewServeMux(),
		pages:  pages,
		config: config,
		flow:   f,
	}
	for _, opt := range options {
		opt(s)
	}

	if err := s.InitialiseUsers(context.Background()); err != nil {
		return nil, errors.Wrap(err, "[Server New] failed to initialise users")
	}

	s.initRoutes()
	s.logRoutes()

	s.handler = ChainMiddleware(s.mux.ServeHTTP, s.GlobalMiddleware()...)
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}
