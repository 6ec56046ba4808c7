package auth

import (
	"context"
	"time"

	"github.com/jrsteele09/go-passwordless/delivery"
	"github.com/jrsteele09/go-passwordless/internal/errors"
	"github.com/jrsteele09/go-passwordless/internal/metrics"
	"github.com/jrsteele09/go-passwordless/token"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultTTL is the token lifetime when neither the engine nor the delivery sets one.
const DefaultTTL = 60 * time.Minute

// Issued describes a token that was stored and handed to its delivery.
type Issued struct {
	Token     string
	UID       string
	Delivery  string
	ExpiresAt time.Time
}

// Engine issues one-time tokens and exchanges them for the identity of their owner.
// It holds no per-request state and is safe for concurrent use.
type Engine struct {
	store      token.Store
	deliveries *delivery.Registry
	generator  token.Generator
	ttl        time.Duration
	nowTime    func() time.Time
	metrics    *metrics.Metrics
	onAccept   func(ctx context.Context, uid string) error
}

// EngineOption defines a function type to modify the Engine instance.
type EngineOption func(*Engine)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) EngineOption {
	return func(e *Engine) {
		e.nowTime = nowFunc
	}
}

// WithTTL sets the default token lifetime.
func WithTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) {
		e.ttl = ttl
	}
}

// WithGenerator sets the default token generator.
func WithGenerator(generator token.Generator) EngineOption {
	return func(e *Engine) {
		e.generator = generator
	}
}

func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithAcceptHook runs hook after a token has been accepted.
// Hook failures are logged and do not reject the token.
func WithAcceptHook(hook func(ctx context.Context, uid string) error) EngineOption {
	return func(e *Engine) {
		e.onAccept = hook
	}
}

// NewEngine creates an Engine backed by store, delivering through deliveries.
func NewEngine(store token.Store, deliveries *delivery.Registry, options ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, pkgerrors.New("[NewEngine] token store is required")
	}
	if deliveries == nil || deliveries.Len() == 0 {
		return nil, pkgerrors.New("[NewEngine] at least one delivery is required")
	}

	e := &Engine{
		store:      store,
		deliveries: deliveries,
		generator:  token.Generate,
		ttl:        DefaultTTL,
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(e)
	}

	if e.ttl <= 0 {
		return nil, pkgerrors.Errorf("[NewEngine] ttl must be positive, got %s", e.ttl)
	}
	return e, nil
}

func (e *Engine) Deliveries() *delivery.Registry {
	return e.deliveries
}

// RequestOption adjusts a single RequestToken call.
type RequestOption func(*requestOptions)

type requestOptions struct {
	ttl time.Duration
}

// WithRequestTTL sets the lifetime of this token, overriding the delivery's
// and the engine's TTL.
func WithRequestTTL(ttl time.Duration) RequestOption {
	return func(o *requestOptions) {
		o.ttl = ttl
	}
}

// RequestToken verifies contact through the named delivery (the default one
// when deliveryName is empty), stores a fresh token and sends it.
// If sending fails the stored token is invalidated again.
func (e *Engine) RequestToken(ctx context.Context, contact, deliveryName, origin string, options ...RequestOption) (*Issued, error) {
	if contact == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "[Engine.RequestToken] contact is required")
	}

	var o requestOptions
	for _, opt := range options {
		opt(&o)
	}
	if o.ttl < 0 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "[Engine.RequestToken] ttl must be positive, got %s", o.ttl)
	}

	adapter, err := e.deliveries.Get(deliveryName)
	if err != nil {
		return nil, err
	}

	uid, err := adapter.Verify(ctx, contact)
	if err != nil {
		log.Err(err).Str("delivery", adapter.Name).Msg("contact verification failed")
		e.metrics.TokenRequested(adapter.Name, metrics.OutcomeVerifyFailure)
		return nil, errors.WithCause(errors.ErrVerifyFailure, err)
	}
	if uid == "" {
		log.Debug().Str("delivery", adapter.Name).Msg("token requested for unknown contact")
		e.metrics.TokenRequested(adapter.Name, metrics.OutcomeUnknownContact)
		return nil, errors.ErrUnknownContact
	}

	generate := e.generator
	if adapter.Generator != nil {
		generate = adapter.Generator
	}
	tok, err := generate()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[Engine.RequestToken] generate")
	}

	ttl := e.ttl
	if adapter.TTL > 0 {
		ttl = adapter.TTL
	}
	if o.ttl > 0 {
		ttl = o.ttl
	}

	if err := e.store.Store(ctx, tok, uid, ttl, origin); err != nil {
		log.Err(err).Str("uid", uid).Msg("storing token failed")
		e.metrics.TokenRequested(adapter.Name, metrics.OutcomeStoreFailure)
		return nil, errors.WithCause(errors.ErrStoreFailure, err)
	}

	if err := adapter.Send(ctx, tok, uid, contact); err != nil {
		log.Err(err).Str("uid", uid).Str("delivery", adapter.Name).Msg("token delivery failed")
		if rbErr := e.store.Invalidate(context.WithoutCancel(ctx), tok); rbErr != nil {
			log.Err(rbErr).Str("uid", uid).Msg("rolling back undelivered token failed")
		}
		e.metrics.TokenRequested(adapter.Name, metrics.OutcomeDeliveryFailed)
		return nil, errors.WithCause(errors.ErrDeliveryFailure, err)
	}

	log.Info().Str("uid", uid).Str("delivery", adapter.Name).Dur("ttl", ttl).Msg("token issued")
	e.metrics.TokenRequested(adapter.Name, metrics.OutcomeIssued)

	return &Issued{
		Token:     tok,
		UID:       uid,
		Delivery:  adapter.Name,
		ExpiresAt: e.nowTime().Add(ttl),
	}, nil
}

// AcceptToken consumes tok. A non-empty uid must match the token's owner.
// Unknown, expired, mismatched and already used tokens all yield ErrTokenInvalid.
func (e *Engine) AcceptToken(ctx context.Context, tok, uid string) (*token.Record, error) {
	if tok == "" {
		e.metrics.TokenRejected("missing")
		return nil, errors.ErrTokenInvalid
	}

	record, err := e.store.Authenticate(ctx, tok, uid)
	switch {
	case errors.Is(err, token.ErrTokenNotFound):
		e.metrics.TokenRejected("not_found")
		return nil, errors.ErrTokenInvalid
	case errors.Is(err, token.ErrTokenExpired):
		e.metrics.TokenRejected("expired")
		return nil, errors.ErrTokenInvalid
	case err != nil:
		log.Err(err).Msg("token lookup failed")
		return nil, errors.WithCause(errors.ErrStoreFailure, err)
	}

	log.Info().Str("uid", record.UID).Msg("token accepted")
	e.metrics.TokenAccepted()

	if e.onAccept != nil {
		if err := e.onAccept(ctx, record.UID); err != nil {
			log.Err(err).Str("uid", record.UID).Msg("accept hook failed")
		}
	}
	return record, nil
}

// InvalidateUser drops every outstanding token of uid.
func (e *Engine) InvalidateUser(ctx context.Context, uid string) error {
	if uid == "" {
		return nil
	}
	if err := e.store.InvalidateUser(ctx, uid); err != nil {
		log.Err(err).Str("uid", uid).Msg("invalidating user tokens failed")
		return errors.WithCause(errors.ErrStoreFailure, err)
	}
	e.metrics.Logout()
	return nil
}
