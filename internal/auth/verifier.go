package auth

import (
	"context"
	"errors"

	"github.com/marketchat/backend/internal/model"
)

var (
	ErrMissingToken    = errors.New("missing token")
	ErrInvalidToken    = errors.New("invalid token")
	ErrUnknownIdentity = errors.New("unknown identity")
)

// UserFinder resolves an authenticated uid to a full user record. The
// repository layer satisfies this.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// Verifier validates a bearer credential and resolves the identity behind
// it. It runs once per connection, before the socket joins the hub; a
// failure here refuses the connection outright.
type Verifier interface {
	Verify(ctx context.Context, token string) (*model.User, error)
}
