package auth

import (
	"context"
	"time"
)

// ActivityAction enumerates audited actions.
type ActivityAction string

const (
	ActivitySupplierApproved    ActivityAction = "supplier.approved"
	ActivitySupplierRejected    ActivityAction = "supplier.rejected"
	ActivitySupplierSuspended   ActivityAction = "supplier.suspended"
	ActivitySupplierBanned      ActivityAction = "supplier.banned"
	ActivitySupplierRestored    ActivityAction = "supplier.restored"
	ActivityBadgesUpdated       ActivityAction = "supplier.badges.updated"
	ActivityExtensionRequested  ActivityAction = "trial.extension.requested"
	ActivityExtensionApproved   ActivityAction = "trial.extension.approved"
	ActivityExtensionRejected   ActivityAction = "trial.extension.rejected"
	ActivityTrialExtended       ActivityAction = "trial.extended"
	ActivitySubscriptionOrdered ActivityAction = "subscription.ordered"
	ActivitySubscriptionActive  ActivityAction = "subscription.activated"
	ActivityLoginSuccess        ActivityAction = "auth.login.success"
	ActivityLoginFailure        ActivityAction = "auth.login.failure"
	ActivitySecretReset         ActivityAction = "auth.secret.reset"
	ActivityEmailVerified       ActivityAction = "auth.email.verified"
	ActivityActorRegistered     ActivityAction = "auth.actor.registered"
)

// Entity types recorded in the activity log
const (
	EntitySupplier  = "supplier"
	EntityExtension = "trial_extension_request"
	EntityOrder     = "subscription_order"
	EntityAccount   = "account"
)

// ActorRef identifies who performed an action
type ActorRef struct {
	ID   string
	Type string
}

// SystemActor is used for actions with no human initiator, such as
// payment confirmations.
var SystemActor = ActorRef{ID: "system", Type: "system"}

// ActorRefFrom builds a reference from a resolved actor
func ActorRefFrom(a Actor) ActorRef {
	if a == nil {
		return ActorRef{}
	}
	return ActorRef{ID: a.ActorID(), Type: string(a.Role())}
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	Action     ActivityAction
	Actor      ActorRef
	EntityType string
	EntityID   string
	Message    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// Entry converts the event into an activity log row
func (e ActivityEvent) Entry() *ActivityLogEntry {
	occurred := e.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	return &ActivityLogEntry{
		OccurredAt: occurred.UTC(),
		Message:    e.Message,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		ActorID:    e.Actor.ID,
		ActorType:  e.Actor.Type,
		Metadata:   e.Metadata,
	}
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// recordActivity never fails the caller
func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		normalizeLogger(logger).Warn("activity sink error", "action", event.Action, "error", err)
	}
}

// MultiActivitySink fans an event out to every sink in order. All sinks
// are called; the first error is returned.
type MultiActivitySink []ActivitySink

// Record implements ActivitySink.
func (m MultiActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
