// Package paymentclient creates subscription orders on the payment
// provider's REST API.
package paymentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-marketplace-auth"
)

const (
	ordersPath     = "/v1/orders"
	defaultTimeout = 10 * time.Second
	maxRetries     = 3
)

// Client implements auth.PaymentGateway
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	retries uint64
}

var _ auth.PaymentGateway = (*Client)(nil)

// Option customizes the client
type Option func(*Client)

// WithHTTPClient overrides the underlying http client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithRetries sets how many times a failed call is retried
func WithRetries(n uint64) Option {
	return func(cl *Client) {
		cl.retries = n
	}
}

// New returns a client for the API at baseURL
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultTimeout},
		retries: maxRetries,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type orderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type orderResponse struct {
	ID string `json:"id"`
}

// CreateOrder posts an order and returns the provider order id. Server
// errors are retried, client errors are not.
func (c *Client) CreateOrder(ctx context.Context, amount int64, currency string, metadata map[string]string) (string, error) {
	body, err := json.Marshal(orderRequest{
		Amount:   amount,
		Currency: currency,
		Metadata: metadata,
	})
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode order")
	}

	var orderID string
	op := func() error {
		id, err := c.post(ctx, body)
		if err != nil {
			return err
		}
		orderID = id
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.retries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return "", err
	}
	return orderID, nil
}

func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ordersPath, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build order request"))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.apiKey, "")

	res, err := c.http.Do(req)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryOperation, "payment provider unreachable")
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read payment provider response")
	}

	if res.StatusCode >= http.StatusInternalServerError {
		return "", statusError(res.StatusCode, payload)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return "", backoff.Permanent(statusError(res.StatusCode, payload))
	}

	var out orderResponse
	if err := json.Unmarshal(payload, &out); err != nil || out.ID == "" {
		return "", backoff.Permanent(goerrors.New("payment provider returned no order id", goerrors.CategoryOperation).
			WithMetadata(map[string]any{"status": res.StatusCode}))
	}
	return out.ID, nil
}

func statusError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return goerrors.New("payment provider rejected the order", goerrors.CategoryOperation).
		WithMetadata(map[string]any{
			"status": status,
			"body":   msg,
		})
}
