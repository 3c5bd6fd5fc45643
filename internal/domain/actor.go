package domain

import (
	"context"
	"errors"
)

// Actor is whoever performs a ledger operation. It is passed explicitly
// into every operation; the context helpers below exist only for the
// HTTP edge that resolves it.
type Actor struct {
	ID   string
	Role Role
}

// Role represents an actor's access level
type Role string

const (
	// RoleAdmin may also delete and cancel records
	RoleAdmin Role = "admin"

	// RoleOperator records sales, purchases and payments
	RoleOperator Role = "operator"

	// RoleViewer can only read
	RoleViewer Role = "viewer"
)

var validRoles = map[Role]bool{
	RoleAdmin:    true,
	RoleOperator: true,
	RoleViewer:   true,
}

// IsValid checks if the role is a valid role
func (r Role) IsValid() bool {
	return validRoles[r]
}

// CanWrite checks if the role can record ledger activity
func (r Role) CanWrite() bool {
	return r == RoleAdmin || r == RoleOperator
}

// CanDelete checks if the role can delete, cancel or deactivate
func (r Role) CanDelete() bool {
	return r == RoleAdmin
}

// Authentication errors
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInsufficientRole = errors.New("insufficient role for this operation")
)

type actorContextKey struct{}

// ContextWithActor stores the resolved actor on ctx.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the actor resolved at the edge, if any.
func ActorFromContext(ctx context.Context) (*Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(*Actor)
	return actor, ok && actor != nil
}
