package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-marketplace-auth"
)

func TestScenario_BuyerVerifiesOnce(t *testing.T) {
	f := newFixture(t)

	resp := f.register(t, auth.RegisterActorMessage{
		Role:   auth.RoleBuyer,
		Email:  "b@x.com",
		Secret: "pw123456",
	})
	require.NotEmpty(t, resp.VerificationCode)

	verify := auth.NewVerifyEmailHandler(f.repo, f.handlerOpts()...)
	msg := auth.VerifyEmailMessage{Role: auth.RoleBuyer, Email: "b@x.com", Code: resp.VerificationCode}

	require.NoError(t, verify.Execute(context.Background(), msg))

	err := verify.Execute(context.Background(), msg)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidOrExpiredCode))
}

func TestScenario_SupplierLoginNeedsApproval(t *testing.T) {
	f := newFixture(t)
	s := f.createSupplier(t, "s@x.com", "pw123456")

	_, err := f.auther.Login(context.Background(), auth.RoleSupplier, "s@x.com", "pw123456")
	assert.True(t, auth.HasTextCode(err, auth.TextCodeNotApproved))

	_, err = f.engine.Approve(context.Background(), adminRef, s.ID)
	require.NoError(t, err)

	result, err := f.auther.Login(context.Background(), auth.RoleSupplier, "s@x.com", "pw123456")
	require.NoError(t, err)

	claims, err := f.tokens.Validate(result.Token, auth.RoleSupplier)
	require.NoError(t, err)
	assert.Equal(t, s.ActorID(), claims.ActorID())
	assert.Equal(t, auth.RoleSupplier, claims.Role())

	_, err = f.tokens.Validate(result.Token, auth.RoleBuyer)
	assert.Error(t, err)
}

func TestScenario_SuspensionIsNotLiftedAutomatically(t *testing.T) {
	f := newFixture(t)
	s := f.createSupplier(t, "s@x.com", "pw123456", withStatus(auth.SupplierStatusApproved))

	suspended, err := f.engine.Suspend(context.Background(), adminRef, s.ID, 7)
	require.NoError(t, err)
	assert.True(t, f.clock.Now().Add(7*24*time.Hour).Equal(*suspended.SuspendedUntil))

	f.clock.Advance(8 * 24 * time.Hour)

	stored := f.reloadSupplier(t, s.ID)
	assert.Equal(t, auth.SupplierStatusSuspended, stored.Status)
	assert.False(t, f.engine.Access(stored).CanTransact)

	_, err = f.auther.Login(context.Background(), auth.RoleSupplier, "s@x.com", "pw123456")
	assert.True(t, auth.HasTextCode(err, auth.TextCodeNotApproved))

	_, err = f.engine.Restore(context.Background(), adminRef, s.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.SupplierStatusApproved, f.reloadSupplier(t, s.ID).Status)
}

func TestScenario_TrialWarningAndDirectExtend(t *testing.T) {
	f := newFixture(t)
	end := f.clock.Now().Add(5 * 24 * time.Hour)
	s := f.createSupplier(t, "s@x.com", "", withStatus(auth.SupplierStatusApproved), withTrialEnd(end))

	access := f.engine.Access(s)
	assert.True(t, access.IsTrialWarning)
	assert.Equal(t, 5, access.DaysRemaining)
	assert.Equal(t, auth.SubStateTrialExpiring, access.SubState)

	extended, err := f.engine.DirectExtend(context.Background(), adminRef, s.ID, 2, "goodwill")
	require.NoError(t, err)
	assert.True(t, end.AddDate(0, 2, 0).Equal(*extended.TrialEndDate))

	access = f.engine.Access(extended)
	assert.False(t, access.IsTrialWarning)
	assert.Equal(t, auth.SubStateTrialing, access.SubState)
}
