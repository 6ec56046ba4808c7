package users

import (
	"context"
	"errors"
	"time"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepo interface {
	Upsert(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	SetVerified(ctx context.Context, email string, verified bool) error
	SetLastLogin(ctx context.Context, id string, at time.Time) error
}
