package auth_test

import (
	"context"
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-marketplace-auth"
)

func issue(t *testing.T, f *fixture, actor auth.Actor) string {
	t.Helper()
	token, _, err := f.tokens.Issue(actor.ActorID(), actor.Role())
	require.NoError(t, err)
	return token
}

func TestResolve_NoCredentialsIsAnonymous(t *testing.T) {
	f := newFixture(t)
	resolver := auth.NewIdentityResolver(f.tokens, f.repo, auth.WithResolverLogger(nopLogger{}))

	resolved, err := resolver.Resolve(context.Background(), auth.Credentials{})
	require.NoError(t, err)
	assert.True(t, resolved.IsAnonymous())
	assert.False(t, resolved.Is(auth.RoleBuyer))
}

func TestResolve_EachRole(t *testing.T) {
	f := newFixture(t)
	resolver := auth.NewIdentityResolver(f.tokens, f.repo, auth.WithResolverLogger(nopLogger{}))

	buyer := f.createBuyer(t, "buyer@example.com", "")
	supplier := f.createSupplier(t, "supplier@example.com", "", withStatus(auth.SupplierStatusApproved))
	admin := f.createAdmin(t, "admin@example.com", "")

	cases := []struct {
		actor auth.Actor
		slot  auth.CredentialName
	}{
		{buyer, auth.CredentialBuyerToken},
		{supplier, auth.CredentialSupplierToken},
		{admin, auth.CredentialAdminToken},
	}

	for _, tc := range cases {
		t.Run(string(tc.actor.Role()), func(t *testing.T) {
			creds := auth.NewCredentials(map[auth.CredentialName]string{tc.slot: issue(t, f, tc.actor)})

			resolved, err := resolver.Resolve(context.Background(), creds)
			require.NoError(t, err)
			require.False(t, resolved.IsAnonymous())
			assert.Equal(t, tc.actor.Role(), resolved.Role)
			assert.Equal(t, tc.slot, resolved.Source)
			assert.Equal(t, tc.actor.ActorID(), resolved.Actor.ActorID())
			require.NotNil(t, resolved.Claims)
			assert.Equal(t, tc.actor.ActorID(), resolved.Claims.ActorID())
		})
	}
}

func TestResolve_Precedence(t *testing.T) {
	f := newFixture(t)
	resolver := auth.NewIdentityResolver(f.tokens, f.repo, auth.WithResolverLogger(nopLogger{}))

	buyer := f.createBuyer(t, "buyer@example.com", "")
	supplier := f.createSupplier(t, "supplier@example.com", "")
	admin := f.createAdmin(t, "admin@example.com", "")

	all := map[auth.CredentialName]string{
		auth.CredentialAdminToken:    issue(t, f, admin),
		auth.CredentialSupplierToken: issue(t, f, supplier),
		auth.CredentialBuyerToken:    issue(t, f, buyer),
	}

	resolved, err := resolver.Resolve(context.Background(), auth.NewCredentials(all))
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, resolved.Role)

	delete(all, auth.CredentialAdminToken)
	resolved, err = resolver.Resolve(context.Background(), auth.NewCredentials(all))
	require.NoError(t, err)
	assert.Equal(t, auth.RoleSupplier, resolved.Role)

	delete(all, auth.CredentialSupplierToken)
	resolved, err = resolver.Resolve(context.Background(), auth.NewCredentials(all))
	require.NoError(t, err)
	assert.Equal(t, auth.RoleBuyer, resolved.Role)
}

func TestResolve_InvalidTokenFallsThrough(t *testing.T) {
	f := newFixture(t)
	resolver := auth.NewIdentityResolver(f.tokens, f.repo, auth.WithResolverLogger(nopLogger{}))

	buyer := f.createBuyer(t, "buyer@example.com", "")

	creds := auth.NewCredentials(map[auth.CredentialName]string{
		auth.CredentialAdminToken: "garbage",
		// a buyer token in the supplier slot is rejected by audience
		auth.CredentialSupplierToken: issue(t, f, buyer),
		auth.CredentialBuyerToken:    issue(t, f, buyer),
	})

	resolved, err := resolver.Resolve(context.Background(), creds)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleBuyer, resolved.Role)
	assert.Equal(t, buyer.ActorID(), resolved.Actor.ActorID())
}

func TestResolve_OrphanedToken(t *testing.T) {
	f := newFixture(t)
	resolver := auth.NewIdentityResolver(f.tokens, f.repo, auth.WithResolverLogger(nopLogger{}))

	missing := uuid.NewString()
	token, _, err := f.tokens.Issue(missing, auth.RoleSupplier)
	require.NoError(t, err)

	buyer := f.createBuyer(t, "buyer@example.com", "")
	creds := auth.NewCredentials(map[auth.CredentialName]string{
		auth.CredentialSupplierToken: token,
		auth.CredentialBuyerToken:    issue(t, f, buyer),
	})

	resolved, err := resolver.Resolve(context.Background(), creds)
	require.Error(t, err)
	assert.True(t, resolved.IsAnonymous())
	assert.True(t, auth.HasTextCode(err, auth.TextCodeOrphanedToken))

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, auth.RoleSupplier, richErr.Metadata["role"])
	assert.Equal(t, missing, richErr.Metadata["actor_id"])
}

func TestResolve_FinderErrorIsInternal(t *testing.T) {
	f := newFixture(t)
	finder := &MockActorFinder{}
	finder.On("FindActorByID", mock.Anything, auth.RoleBuyer, "b1").Return(nil, errors.New("db down"))

	resolver := auth.NewIdentityResolver(f.tokens, finder, auth.WithResolverLogger(nopLogger{}))
	token, _, err := f.tokens.Issue("b1", auth.RoleBuyer)
	require.NoError(t, err)

	resolved, err := resolver.Resolve(context.Background(),
		auth.NewCredentials(map[auth.CredentialName]string{auth.CredentialBuyerToken: token}))
	require.Error(t, err)
	assert.True(t, resolved.IsAnonymous())
	assert.False(t, auth.HasTextCode(err, auth.TextCodeOrphanedToken))

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryInternal, richErr.Category)
	finder.AssertExpectations(t)
}

func TestResolve_FederatedSession(t *testing.T) {
	f := newFixture(t)
	sessions := &MockFederatedSessions{}
	resolver := auth.NewIdentityResolver(f.tokens, f.repo,
		auth.WithResolverLogger(nopLogger{}),
		auth.WithFederatedSessions(sessions),
	)

	buyer := f.createBuyer(t, "both@example.com", "")
	f.createSupplier(t, "both@example.com", "")
	supplier := f.createSupplier(t, "only-supplier@example.com", "")

	sessions.On("Email", mock.Anything, "ref-both").Return("both@example.com", true, nil)
	sessions.On("Email", mock.Anything, "ref-supplier").Return("only-supplier@example.com", true, nil)
	sessions.On("Email", mock.Anything, "ref-unknown").Return("nobody@example.com", true, nil)
	sessions.On("Email", mock.Anything, "ref-expired").Return("", false, nil)

	resolve := func(ref string) auth.ResolvedActor {
		resolved, err := resolver.Resolve(context.Background(),
			auth.NewCredentials(map[auth.CredentialName]string{auth.CredentialFederatedSession: ref}))
		require.NoError(t, err)
		return resolved
	}

	// buyers win when the federated email matches both kinds
	resolved := resolve("ref-both")
	assert.Equal(t, auth.RoleBuyer, resolved.Role)
	assert.Equal(t, buyer.ActorID(), resolved.Actor.ActorID())
	assert.Equal(t, auth.CredentialFederatedSession, resolved.Source)
	assert.Nil(t, resolved.Claims)

	resolved = resolve("ref-supplier")
	assert.Equal(t, auth.RoleSupplier, resolved.Role)
	assert.Equal(t, supplier.ActorID(), resolved.Actor.ActorID())

	assert.True(t, resolve("ref-unknown").IsAnonymous())
	assert.True(t, resolve("ref-expired").IsAnonymous())
	sessions.AssertExpectations(t)
}

func TestResolve_FederatedStoreErrorIsAnonymous(t *testing.T) {
	f := newFixture(t)
	sessions := auth.FederatedSessionsFunc(func(context.Context, string) (string, bool, error) {
		return "", false, errors.New("redis unavailable")
	})
	resolver := auth.NewIdentityResolver(f.tokens, f.repo,
		auth.WithResolverLogger(nopLogger{}),
		auth.WithFederatedSessions(sessions),
	)

	resolved, err := resolver.Resolve(context.Background(),
		auth.NewCredentials(map[auth.CredentialName]string{auth.CredentialFederatedSession: "ref"}))
	require.NoError(t, err)
	assert.True(t, resolved.IsAnonymous())
}

func TestResolve_TokenBeatsFederatedSession(t *testing.T) {
	f := newFixture(t)
	sessions := &MockFederatedSessions{}
	resolver := auth.NewIdentityResolver(f.tokens, f.repo,
		auth.WithResolverLogger(nopLogger{}),
		auth.WithFederatedSessions(sessions),
	)
	supplier := f.createSupplier(t, "supplier@example.com", "")

	resolved, err := resolver.Resolve(context.Background(), auth.NewCredentials(map[auth.CredentialName]string{
		auth.CredentialSupplierToken:    issue(t, f, supplier),
		auth.CredentialFederatedSession: "ref",
	}))
	require.NoError(t, err)
	assert.Equal(t, auth.RoleSupplier, resolved.Role)
	sessions.AssertNotCalled(t, "Email", mock.Anything, "ref")
}

func TestResolve_CancelledContext(t *testing.T) {
	f := newFixture(t)
	resolver := auth.NewIdentityResolver(f.tokens, f.repo, auth.WithResolverLogger(nopLogger{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resolved, err := resolver.Resolve(ctx, auth.Credentials{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, resolved.IsAnonymous())
}

func TestResolve_SameTokenTwice(t *testing.T) {
	f := newFixture(t)
	resolver := auth.NewIdentityResolver(f.tokens, f.repo, auth.WithResolverLogger(nopLogger{}))

	supplier := f.createSupplier(t, "supplier@example.com", "", withStatus(auth.SupplierStatusApproved))
	creds := auth.NewCredentials(map[auth.CredentialName]string{
		auth.CredentialSupplierToken: issue(t, f, supplier),
	})

	first, err := resolver.Resolve(context.Background(), creds)
	require.NoError(t, err)
	second, err := resolver.Resolve(context.Background(), creds)
	require.NoError(t, err)

	require.False(t, first.IsAnonymous())
	assert.Equal(t, first.Role, second.Role)
	assert.Equal(t, first.Source, second.Source)
	assert.Equal(t, first.Actor.ActorID(), second.Actor.ActorID())
	assert.Equal(t, first.Actor.ActorEmail(), second.Actor.ActorEmail())
}
