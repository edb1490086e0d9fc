// Package amqpnotify delivers account and lifecycle notifications to an
// AMQP exchange. A mail worker consumes the queue and renders templates.
package amqpnotify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-marketplace-auth"
	"github.com/streadway/amqp"
)

// RoutingKeyPrefix prefixes the notification kind in the routing key
const RoutingKeyPrefix = "notification."

// Publisher is the subset of *amqp.Channel the gateway uses
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Message is the JSON body published for each notification
type Message struct {
	Kind      auth.NotificationKind `json:"kind"`
	Recipient string                `json:"recipient"`
	Data      map[string]any        `json:"data,omitempty"`
	SentAt    time.Time             `json:"sent_at"`
}

// Gateway implements auth.NotificationGateway over AMQP
type Gateway struct {
	ch       Publisher
	exchange string
	now      func() time.Time
}

var _ auth.NotificationGateway = (*Gateway)(nil)

// Option customizes the gateway
type Option func(*Gateway)

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// New builds a gateway publishing to exchange
func New(ch Publisher, exchange string, opts ...Option) *Gateway {
	g := &Gateway{
		ch:       ch,
		exchange: exchange,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Notify publishes one persistent JSON message
func (g *Gateway) Notify(ctx context.Context, recipientEmail string, kind auth.NotificationKind, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(Message{
		Kind:      kind,
		Recipient: recipientEmail,
		Data:      data,
		SentAt:    g.now().UTC(),
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode notification")
	}

	err = g.ch.Publish(
		g.exchange,
		RoutingKeyPrefix+string(kind),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    g.now().UTC(),
		},
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to publish notification").
			WithMetadata(map[string]any{"kind": kind, "exchange": g.exchange})
	}
	return nil
}

// Dial connects to the broker, retrying with exponential backoff
func Dial(ctx context.Context, url string, retries uint64) (*amqp.Connection, error) {
	var conn *amqp.Connection
	op := func() error {
		c, err := amqp.Dial(url)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to connect to amqp broker")
	}
	return conn, nil
}

// SetupChannel opens a channel and declares the durable topic exchange
func SetupChannel(conn *amqp.Connection, exchange string) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to open amqp channel")
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to declare exchange").
			WithMetadata(map[string]any{"exchange": exchange})
	}
	return ch, nil
}
