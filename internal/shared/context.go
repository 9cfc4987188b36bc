package shared

import "context"

// Principal identifies the acting user.
type Principal struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// IsZero reports whether no user is attached.
func (p Principal) IsZero() bool {
	return p.ID == 0
}

// DisplayName falls back to "System" for anonymous actors.
func (p Principal) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return "System"
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(principalContextKey{}).(Principal)
	return p
}

// Authorizer answers whether a principal may manage the inventory.
type Authorizer interface {
	CanManage(ctx context.Context, p Principal) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, p Principal) bool

// CanManage implements Authorizer.
func (f AuthorizerFunc) CanManage(ctx context.Context, p Principal) bool {
	return f(ctx, p)
}

// ErrNotAllowed is returned when the authorization predicate rejects a caller.
var ErrNotAllowed = NewError(ErrForbidden, "You are not allowed to perform this action.")

// Authorize short-circuits with ErrNotAllowed when the caller lacks permission.
func Authorize(ctx context.Context, authz Authorizer, p Principal) error {
	if authz == nil || !authz.CanManage(ctx, p) {
		return ErrNotAllowed
	}
	return nil
}
