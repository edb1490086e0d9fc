package amqpnotify

import (
	"context"
	"encoding/json"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-marketplace-auth"
	"github.com/goliatone/go-marketplace-auth/activitymap"
	"github.com/streadway/amqp"
)

// ActivityRoutingKeyPrefix prefixes the activity action in the routing key
const ActivityRoutingKeyPrefix = "activity."

// ActivityPublisher implements auth.ActivitySink by publishing the
// normalized event to the exchange.
type ActivityPublisher struct {
	ch       Publisher
	exchange string
	opts     []activitymap.Option
}

var _ auth.ActivitySink = (*ActivityPublisher)(nil)

// NewActivityPublisher builds a sink publishing to exchange
func NewActivityPublisher(ch Publisher, exchange string, opts ...activitymap.Option) *ActivityPublisher {
	return &ActivityPublisher{
		ch:       ch,
		exchange: exchange,
		opts:     opts,
	}
}

// Record publishes one persistent JSON message per event
func (p *ActivityPublisher) Record(ctx context.Context, event auth.ActivityEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	normalized := activitymap.Normalize(event, p.opts...)
	body, err := json.Marshal(normalized)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode activity")
	}

	err = p.ch.Publish(
		p.exchange,
		ActivityRoutingKeyPrefix+normalized.Verb,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    normalized.OccurredAt,
		},
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to publish activity").
			WithMetadata(map[string]any{"action": event.Action, "exchange": p.exchange})
	}
	return nil
}
