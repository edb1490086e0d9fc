package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-marketplace-auth"
)

func TestResolvedFromContext(t *testing.T) {
	assert.True(t, auth.ResolvedFromContext(context.Background()).IsAnonymous())

	assert.True(t, auth.ResolvedFromContext(nil).IsAnonymous())

	buyer := &auth.Buyer{}
	ctx := auth.WithResolvedActor(context.Background(), auth.ResolvedActor{Actor: buyer, Role: auth.RoleBuyer})

	actor, ok := auth.ActorFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, buyer, actor)

	_, ok = auth.GetClaims(ctx)
	assert.False(t, ok)

	_, ok = auth.ActorFromContext(context.Background())
	assert.False(t, ok)
}

func TestGetRouterActor(t *testing.T) {
	assert.True(t, auth.GetRouterActor(NewMockContext()).IsAnonymous())

	ctx := NewMockContext()
	ctx.Locals(auth.LocalsActorKey, "not a resolution")
	assert.True(t, auth.GetRouterActor(ctx).IsAnonymous())

	admin := &auth.Admin{}
	ctx = NewMockContext().WithResolved(auth.ResolvedActor{Actor: admin, Role: auth.RoleAdmin})
	resolved := auth.GetRouterActor(ctx)
	assert.True(t, resolved.Is(auth.RoleAdmin))
	assert.False(t, resolved.Is(auth.RoleBuyer))
}
