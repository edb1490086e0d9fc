package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

// LocalsActorKey is the router locals key the identity middleware uses
const LocalsActorKey = "actor"

var resolvedCtxKey = &contextKey{"resolved_actor"}

type contextKey struct {
	name string
}

// WithResolvedActor stores the resolution result in the given context
func WithResolvedActor(ctx context.Context, resolved ResolvedActor) context.Context {
	return context.WithValue(ctx, resolvedCtxKey, resolved)
}

// ResolvedFromContext returns the resolution result, or Anonymous when
// the request never went through the identity middleware.
func ResolvedFromContext(ctx context.Context) ResolvedActor {
	if ctx == nil {
		return Anonymous
	}
	raw, ok := ctx.Value(resolvedCtxKey).(ResolvedActor)
	if !ok {
		return Anonymous
	}
	return raw
}

// ActorFromContext finds the authenticated actor in the context
func ActorFromContext(ctx context.Context) (Actor, bool) {
	resolved := ResolvedFromContext(ctx)
	if resolved.IsAnonymous() {
		return nil, false
	}
	return resolved.Actor, true
}

// GetClaims extracts the token claims from the context. Federated
// resolutions carry no claims.
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	resolved := ResolvedFromContext(ctx)
	if resolved.Claims == nil {
		return nil, false
	}
	return resolved.Claims, true
}

// GetRouterActor extracts the resolution result from the router context
func GetRouterActor(c router.Context) ResolvedActor {
	raw := c.Locals(LocalsActorKey)
	if raw == nil {
		return Anonymous
	}
	resolved, ok := raw.(ResolvedActor)
	if !ok {
		return Anonymous
	}
	return resolved
}

// supplierFromRouter returns the resolved supplier, if any
func supplierFromRouter(c router.Context) (*Supplier, bool) {
	resolved := GetRouterActor(c)
	if !resolved.Is(RoleSupplier) {
		return nil, false
	}
	s, ok := resolved.Actor.(*Supplier)
	return s, ok
}
