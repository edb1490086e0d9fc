package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	auth "github.com/goliatone/go-marketplace-auth"
)

func TestCredentials(t *testing.T) {
	creds := auth.NewCredentials(map[auth.CredentialName]string{
		auth.CredentialBuyerToken:    " tok ",
		auth.CredentialSupplierToken: "   ",
	})

	assert.Equal(t, 1, creds.Len())
	v, ok := creds.Get(auth.CredentialBuyerToken)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)
	assert.False(t, creds.Has(auth.CredentialSupplierToken))

	creds.Set(auth.CredentialBuyerToken, "")
	assert.Equal(t, 0, creds.Len())

	var zero auth.Credentials
	_, ok = zero.Get(auth.CredentialAdminToken)
	assert.False(t, ok)
	zero.Set(auth.CredentialAdminToken, "a")
	assert.True(t, zero.Has(auth.CredentialAdminToken))
}

func TestOtherRoleCredentials(t *testing.T) {
	assert.Equal(t, []auth.CredentialName{
		auth.CredentialSupplierToken,
		auth.CredentialBuyerToken,
		auth.CredentialFederatedSession,
	}, auth.OtherRoleCredentials(auth.RoleAdmin))

	assert.Equal(t, []auth.CredentialName{
		auth.CredentialAdminToken,
		auth.CredentialSupplierToken,
		auth.CredentialFederatedSession,
	}, auth.OtherRoleCredentials(auth.RoleBuyer))
}

func TestParseRole(t *testing.T) {
	for _, raw := range []string{"buyer", "supplier", "admin"} {
		role, ok := auth.ParseRole(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, raw, role.String())
	}

	for _, raw := range []string{"", "Buyer", "guest"} {
		_, ok := auth.ParseRole(raw)
		assert.False(t, ok, raw)
	}
}

func TestRoleCredential(t *testing.T) {
	assert.Equal(t, auth.CredentialAdminToken, auth.RoleAdmin.Credential())
	assert.Equal(t, auth.CredentialSupplierToken, auth.RoleSupplier.Credential())
	assert.Equal(t, auth.CredentialBuyerToken, auth.RoleBuyer.Credential())
	assert.Empty(t, auth.ActorRole("guest").Credential())

	assert.True(t, auth.RoleBuyer.RequiresEmailVerification())
	assert.True(t, auth.RoleSupplier.RequiresEmailVerification())
	assert.False(t, auth.RoleAdmin.RequiresEmailVerification())
}

func TestGetAllRolesPrecedence(t *testing.T) {
	assert.Equal(t, []auth.ActorRole{auth.RoleAdmin, auth.RoleSupplier, auth.RoleBuyer}, auth.GetAllRoles())
}
