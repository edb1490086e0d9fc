package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-marketplace-auth"
)

func TestMultiActivitySink(t *testing.T) {
	first := &capturingSink{}
	second := &capturingSink{}
	failing := auth.ActivitySinkFunc(func(context.Context, auth.ActivityEvent) error {
		return errors.New("broker offline")
	})

	sink := auth.MultiActivitySink{first, nil, failing, second}
	err := sink.Record(context.Background(), auth.ActivityEvent{Action: auth.ActivityLoginSuccess})

	assert.EqualError(t, err, "broker offline")
	assert.Equal(t, []auth.ActivityAction{auth.ActivityLoginSuccess}, first.Actions())
	assert.Equal(t, []auth.ActivityAction{auth.ActivityLoginSuccess}, second.Actions())

	var nilFunc auth.ActivitySinkFunc
	assert.NoError(t, nilFunc.Record(context.Background(), auth.ActivityEvent{}))
}

func TestActivityEventEntry(t *testing.T) {
	entry := auth.ActivityEvent{
		Action:     auth.ActivitySupplierApproved,
		Actor:      adminRef,
		EntityType: auth.EntitySupplier,
		EntityID:   "s-1",
		Metadata:   map[string]any{"reason": "ok"},
		OccurredAt: testNow,
	}.Entry()

	assert.Equal(t, adminRef.ID, entry.ActorID)
	assert.Equal(t, adminRef.Type, entry.ActorType)
	assert.True(t, testNow.Equal(entry.OccurredAt))
	assert.Equal(t, "ok", entry.Metadata["reason"])

	assert.False(t, auth.ActivityEvent{}.Entry().OccurredAt.IsZero())
}

func TestActivityLogRecordsHandlerEvents(t *testing.T) {
	f := newFixture(t)
	opts := append(f.handlerOpts(), auth.WithHandlerActivitySink(auth.MultiActivitySink{f.repo.Activity(), f.sink}))

	var resp *auth.RegisterActorResponse
	require.NoError(t, auth.NewRegisterActorHandler(f.repo, f.tokens, opts...).Execute(context.Background(), auth.RegisterActorMessage{
		Role:       auth.RoleBuyer,
		Email:      "buyer@example.com",
		Secret:     "long-enough-secret",
		OnResponse: func(r *auth.RegisterActorResponse) { resp = r },
	}))

	entries, err := f.repo.Activity().ListForEntity(context.Background(), auth.EntityAccount, resp.Actor.ActorID())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, auth.ActivityActorRegistered, entries[0].Action)
	assert.Equal(t, []auth.ActivityAction{auth.ActivityActorRegistered}, f.sink.Actions())
}

func TestFailingCollaboratorsDoNotFailOperations(t *testing.T) {
	brokenSink := auth.ActivitySinkFunc(func(context.Context, auth.ActivityEvent) error {
		return errors.New("sink down")
	})
	brokenGateway := auth.NotificationGatewayFunc(func(context.Context, string, auth.NotificationKind, map[string]any) error {
		return errors.New("smtp down")
	})

	f := newFixture(t,
		auth.WithLifecycleActivitySink(brokenSink),
		auth.WithLifecycleNotifications(brokenGateway),
	)
	s := f.createSupplier(t, "supplier@example.com", "")

	_, err := f.engine.Approve(context.Background(), adminRef, s.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.SupplierStatusApproved, f.reloadSupplier(t, s.ID).Status)

	opts := append(f.handlerOpts(),
		auth.WithHandlerActivitySink(brokenSink),
		auth.WithHandlerNotifications(brokenGateway),
	)
	assert.NoError(t, auth.NewRegisterActorHandler(f.repo, f.tokens, opts...).Execute(context.Background(), auth.RegisterActorMessage{
		Role:   auth.RoleBuyer,
		Email:  "buyer@example.com",
		Secret: "long-enough-secret",
	}))
}
