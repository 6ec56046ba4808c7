package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-passwordless/internal/errors"
	"github.com/jrsteele09/go-passwordless/token"
)

// VerifyFunc resolves a contact (email address, phone number, ...) to a user ID.
// An empty uid with a nil error means the contact is unknown.
type VerifyFunc func(ctx context.Context, contact string) (uid string, err error)

// SendFunc delivers a token to recipient out of band.
type SendFunc func(ctx context.Context, tok, uid, recipient string) error

// Adapter is a named out-of-band channel: how a contact is verified and how
// a token reaches its owner.
type Adapter struct {
	Name   string
	Verify VerifyFunc
	Send   SendFunc

	// TTL overrides the engine's token lifetime when non-zero.
	TTL time.Duration

	// Generator overrides the engine's token generator when set.
	Generator token.Generator
}

func (a Adapter) validate() error {
	if a.Verify == nil {
		return errors.Wrapf(errors.ErrInvalidInput, "delivery %q has no verify function", a.Name)
	}
	if a.Send == nil {
		return errors.Wrapf(errors.ErrInvalidInput, "delivery %q has no send function", a.Name)
	}
	if a.TTL < 0 {
		return errors.Wrapf(errors.ErrInvalidInput, "delivery %q has a negative ttl", a.Name)
	}
	return nil
}

// Registry holds the adapters known to one engine.
// The first adapter added becomes the default unless SetDefault says otherwise.
type Registry struct {
	mu          sync.RWMutex
	adapters    map[string]Adapter
	defaultName string
}

func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{
		adapters: make(map[string]Adapter),
	}
	for _, a := range adapters {
		if err := r.Add(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers a, replacing any adapter with the same name.
func (r *Registry) Add(a Adapter) error {
	if err := a.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.adapters) == 0 {
		r.defaultName = a.Name
	}
	r.adapters[a.Name] = a
	return nil
}

// SetDefault picks the adapter used when a request names no delivery.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.adapters[name]; !ok {
		return errors.Wrapf(errors.ErrUnknownTransport, "delivery %q", name)
	}
	r.defaultName = name
	return nil
}

// Get returns the adapter called name, or the default adapter for an empty name.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaultName
	}
	a, ok := r.adapters[name]
	if !ok {
		return Adapter{}, errors.Wrapf(errors.ErrUnknownTransport, "delivery %q", name)
	}
	return a, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}
