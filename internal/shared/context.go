package shared

import (
	"context"
	"strings"
)

// Principal is the authenticated caller attached to a request.
type Principal struct {
	ID   string
	Role string
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	p.ID = strings.TrimSpace(p.ID)
	p.Role = strings.ToLower(strings.TrimSpace(p.Role))
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	if !ok || p.ID == "" {
		return Principal{}, false
	}
	return p, true
}
