package api

import (
	"context"
	"time"

	"github.com/linesmerrill/swachhsnap-api/models"
)

// QueryTimeout is the default timeout for database queries
const QueryTimeout = 10 * time.Second

// WithQueryTimeout creates a context with query timeout
func WithQueryTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, QueryTimeout)
}

// Identity is the authenticated caller of a request
type Identity struct {
	ID    string
	Email string
	Name  string
	Role  models.Role
	Token string
}

// Is reports whether the caller holds role
func (i Identity) Is(role models.Role) bool {
	return i.Role == role
}

type identityKey struct{}

// WithIdentity stores the caller on ctx
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller stored by the auth middleware
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
