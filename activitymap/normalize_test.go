package activitymap_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	auth "github.com/goliatone/go-marketplace-auth"
	"github.com/goliatone/go-marketplace-auth/activitymap"
)

func TestNormalizeSupplierTransition(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		Action:     auth.ActivitySupplierSuspended,
		Actor:      auth.ActorRef{ID: "admin-42", Type: "admin"},
		EntityType: auth.EntitySupplier,
		EntityID:   "supplier-100",
		Message:    "supplier status changed",
		Metadata: map[string]any{
			"ticket": "SEC-204",
			"from":   auth.SupplierStatusApproved,
			"to":     auth.SupplierStatusSuspended,
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	assert.Equal(t, "admin-42", out.ActorID)
	assert.Equal(t, string(auth.ActivitySupplierSuspended), out.Verb)
	assert.Equal(t, auth.EntitySupplier, out.ObjectType)
	assert.Equal(t, "supplier-100", out.ObjectID)
	assert.Equal(t, "marketplace", out.Channel)
	assert.True(t, out.OccurredAt.Equal(ts))

	assert.Equal(t, "SEC-204", out.Metadata["ticket"])
	assert.Equal(t, "admin", out.Metadata[activitymap.MetadataKeyActorType])
	assert.Equal(t, "approved", out.Metadata[activitymap.MetadataKeyFromStatus])
	assert.Equal(t, "suspended", out.Metadata[activitymap.MetadataKeyToStatus])
	assert.NotContains(t, out.Metadata, "from")

	// the source map is not mutated
	assert.Contains(t, event.Metadata, "from")
}

func TestNormalizeFallbacks(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	out := activitymap.Normalize(auth.ActivityEvent{
		Action: auth.ActivityLoginFailure,
	},
		activitymap.WithDefaultChannel("audit"),
		activitymap.WithActorFallback("anonymous"),
		activitymap.WithClock(func() time.Time { return fixed }),
	)

	assert.Equal(t, "anonymous", out.ActorID)
	assert.Equal(t, auth.EntityAccount, out.ObjectType)
	assert.Equal(t, "audit", out.Channel)
	assert.True(t, out.OccurredAt.Equal(fixed))
	assert.Nil(t, out.Metadata)
}

func TestNormalizeKeepsExplicitActorType(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(auth.ActivityEvent{
		Action:   auth.ActivityLoginSuccess,
		Actor:    auth.ActorRef{ID: "b1", Type: "buyer"},
		Metadata: map[string]any{activitymap.MetadataKeyActorType: "custom", "from": "x"},
	})

	assert.Equal(t, "custom", out.Metadata[activitymap.MetadataKeyActorType])
	// from/to are only renamed for supplier events
	assert.Equal(t, "x", out.Metadata["from"])
}
