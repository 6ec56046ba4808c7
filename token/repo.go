package token

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTokenNotFound is returned when no record matches the presented token and uid.
	ErrTokenNotFound = errors.New("token not found")

	// ErrTokenExpired is returned when the record exists but its TTL has elapsed.
	// The record is removed as part of the lookup.
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidRecord is returned by Store when token, uid or ttl are missing.
	ErrInvalidRecord = errors.New("invalid token record")
)

// Store is the persistence boundary for one-time tokens.
// Implementations must be safe for concurrent use.
type Store interface {
	// Store persists a record for token owned by uid, valid for ttl.
	// Storing the same token twice replaces the earlier record.
	Store(ctx context.Context, token, uid string, ttl time.Duration, origin string) error

	// Authenticate looks up token and, on a match, removes it in the same atomic step.
	// An empty uid matches any owner, otherwise the record's uid must equal uid.
	// A uid mismatch returns ErrTokenNotFound and leaves the record intact.
	Authenticate(ctx context.Context, token, uid string) (*Record, error)

	// Invalidate removes the record for a single token. Missing tokens are not an error.
	Invalidate(ctx context.Context, token string) error

	// InvalidateUser removes every record owned by uid.
	InvalidateUser(ctx context.Context, uid string) error

	// Clear removes all records.
	Clear(ctx context.Context) error

	// Length returns the number of stored records, expired ones included
	// until they are swept or looked up.
	Length(ctx context.Context) (int, error)
}

// Validate checks the arguments common to every Store.Store implementation.
func Validate(token, uid string, ttl time.Duration) error {
	if token == "" || uid == "" || ttl <= 0 {
		return ErrInvalidRecord
	}
	return nil
}
