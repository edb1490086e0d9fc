package amqpnotify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-marketplace-auth"
	"github.com/goliatone/go-marketplace-auth/activitymap"
	"github.com/goliatone/go-marketplace-auth/adapters/amqpnotify"
)

func TestActivityPublisherRoutesByAction(t *testing.T) {
	pub := new(MockPublisher)

	var published amqp.Publishing
	pub.On("Publish", "market.activity", "activity.supplier.banned", false, false, mock.Anything).
		Run(func(args mock.Arguments) {
			published = args.Get(4).(amqp.Publishing)
		}).
		Return(nil)

	sink := amqpnotify.NewActivityPublisher(pub, "market.activity", activitymap.WithDefaultChannel("audit"))
	err := sink.Record(context.Background(), auth.ActivityEvent{
		Action:     auth.ActivitySupplierBanned,
		Actor:      auth.ActorRef{ID: "admin-1", Type: "admin"},
		EntityType: auth.EntitySupplier,
		EntityID:   "sup-9",
		Metadata:   map[string]any{"from": "approved", "to": "banned"},
		OccurredAt: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	pub.AssertExpectations(t)

	assert.Equal(t, amqp.Persistent, published.DeliveryMode)

	var out activitymap.Normalized
	require.NoError(t, json.Unmarshal(published.Body, &out))
	assert.Equal(t, "admin-1", out.ActorID)
	assert.Equal(t, "sup-9", out.ObjectID)
	assert.Equal(t, "audit", out.Channel)
	assert.Equal(t, "banned", out.Metadata[activitymap.MetadataKeyToStatus])
}

func TestActivityPublisherHonorsCancelledContext(t *testing.T) {
	pub := new(MockPublisher)
	sink := amqpnotify.NewActivityPublisher(pub, "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sink.Record(ctx, auth.ActivityEvent{Action: auth.ActivityLoginSuccess})
	assert.ErrorIs(t, err, context.Canceled)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
