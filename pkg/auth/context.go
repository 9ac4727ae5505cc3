// Package auth carries the authenticated caller through request handling.
// The auth context is attached to the request's context.Context by the
// identity middleware and read back by the RBAC engine; it never outlives
// the request and never leaks between concurrently handled requests.
package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/mlfoundry/metastore/pkg/apimodels"
)

// ctxKey is an unexported type used as the context key for Context.
type ctxKey struct{}

// Context is the authentication context of one request. It is created once
// when the request is authenticated and not mutated afterwards.
type Context struct {
	User         apimodels.UserRef
	WorkspaceIDs []uuid.UUID
	Permissions  []string
}

// HasPermission reports whether the caller was granted the named
// permission at authentication time.
func (c Context) HasPermission(name string) bool {
	for _, p := range c.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

// WithContext returns a new context with the given auth Context attached.
func WithContext(ctx context.Context, ac Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, ac)
}

// FromContext retrieves the auth Context from the request context.
// Returns the zero value and false if none is set.
func FromContext(ctx context.Context) (Context, bool) {
	ac, ok := ctx.Value(ctxKey{}).(Context)
	return ac, ok
}

// MustFromContext retrieves the auth Context and panics if none is set.
// A missing auth context here means the request-handling wiring skipped
// authentication, which is a bug, not a user-facing condition.
func MustFromContext(ctx context.Context) Context {
	ac, ok := FromContext(ctx)
	if !ok {
		panic("auth: no authentication context in request scope")
	}
	return ac
}
