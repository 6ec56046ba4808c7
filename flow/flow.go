// Package flow wires the token engine and the session bridge into net/http middleware.
package flow

import (
	"context"
	"net/http"
	"time"

	"github.com/jrsteele09/go-passwordless/auth"
	"github.com/jrsteele09/go-passwordless/sessions"
	"github.com/jrsteele09/go-passwordless/token"
	"github.com/pkg/errors"
)

const (
	DefaultCookieName    = "passwordless_session"
	DefaultSessionMaxAge = 24 * time.Hour
)

// Middleware matches the server's middleware chain.
type Middleware = func(http.HandlerFunc) http.HandlerFunc

// TokenEngine is the part of auth.Engine the flow depends on.
type TokenEngine interface {
	RequestToken(ctx context.Context, contact, deliveryName, origin string, options ...auth.RequestOption) (*auth.Issued, error)
	AcceptToken(ctx context.Context, tok, uid string) (*token.Record, error)
	InvalidateUser(ctx context.Context, uid string) error
}

var _ TokenEngine = (*auth.Engine)(nil)

// Flow builds the middleware for one engine. Without a session store the flow
// is stateless: an accepted token authenticates the current request only.
type Flow struct {
	engine        TokenEngine
	bridge        *sessions.Bridge
	sessionStore  sessions.Store
	sessionMaxAge time.Duration
	cookieName    string
	defaults      []Option
	nowFunc       func() time.Time
}

type FlowOption func(*Flow)

// WithSessionStore enables SessionSupport backed by store.
func WithSessionStore(store sessions.Store) FlowOption {
	return func(f *Flow) {
		f.sessionStore = store
	}
}

func WithSessionMaxAge(maxAge time.Duration) FlowOption {
	return func(f *Flow) {
		f.sessionMaxAge = maxAge
	}
}

func WithCookieName(name string) FlowOption {
	return func(f *Flow) {
		f.cookieName = name
	}
}

func WithBridge(bridge *sessions.Bridge) FlowOption {
	return func(f *Flow) {
		f.bridge = bridge
	}
}

// WithDefaults applies options to every step before the step's own options.
func WithDefaults(options ...Option) FlowOption {
	return func(f *Flow) {
		f.defaults = append(f.defaults, options...)
	}
}

// WithNowFunc sets the clock used for new sessions (primarily for testing)
func WithNowFunc(now func() time.Time) FlowOption {
	return func(f *Flow) {
		f.nowFunc = now
	}
}

func New(engine TokenEngine, options ...FlowOption) (*Flow, error) {
	if engine == nil {
		return nil, errors.New("[flow.New] engine is required")
	}

	f := &Flow{
		engine:        engine,
		bridge:        sessions.NewBridge(),
		sessionMaxAge: DefaultSessionMaxAge,
		cookieName:    DefaultCookieName,
		nowFunc:       time.Now,
	}
	for _, opt := range options {
		opt(f)
	}

	if f.sessionMaxAge <= 0 {
		return nil, errors.Errorf("[flow.New] session max age must be positive, got %s", f.sessionMaxAge)
	}
	return f, nil
}

// Stateful reports whether the flow keeps logins in sessions.
func (f *Flow) Stateful() bool {
	return f.sessionStore != nil
}

func (f *Flow) options(options []Option) *stepOptions {
	o := defaultStepOptions()
	for _, opt := range f.defaults {
		opt(o)
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

type contextKey int

const (
	sessionContextKey contextKey = iota
	persistedContextKey
	userContextKey
)

// SessionFromContext returns the session loaded by SessionSupport.
func SessionFromContext(ctx context.Context) *sessions.Session {
	s, _ := ctx.Value(sessionContextKey).(*sessions.Session)
	return s
}

func withSession(ctx context.Context, s *sessions.Session, persisted bool) context.Context {
	ctx = context.WithValue(ctx, persistedContextKey, persisted)
	return context.WithValue(ctx, sessionContextKey, s)
}

// sessionPersisted reports whether the request's session was loaded from the
// store rather than created for this request.
func sessionPersisted(ctx context.Context) bool {
	persisted, _ := ctx.Value(persistedContextKey).(bool)
	return persisted
}

// UserFromContext returns the uid authenticated for this request by
// AcceptToken or Restricted.
func UserFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(userContextKey).(string)
	return uid, ok && uid != ""
}

func withUser(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, userContextKey, uid)
}
