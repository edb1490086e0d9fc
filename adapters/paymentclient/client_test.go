package paymentclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-marketplace-auth/adapters/paymentclient"
)

func TestCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)

		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key_123", user)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 4900, body["amount"])
		assert.Equal(t, "USD", body["currency"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_abc"}`))
	}))
	defer srv.Close()

	client := paymentclient.New(srv.URL+"/", "key_123")
	id, err := client.CreateOrder(context.Background(), 4900, "USD", map[string]string{"supplier_id": "s1"})
	require.NoError(t, err)
	assert.Equal(t, "order_abc", id)
}

func TestCreateOrderClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"currency not supported"}`))
	}))
	defer srv.Close()

	client := paymentclient.New(srv.URL, "key", paymentclient.WithRetries(3))
	_, err := client.CreateOrder(context.Background(), 100, "XXX", nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, http.StatusUnprocessableEntity, richErr.Metadata["status"])
}

func TestCreateOrderServerErrorIsRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":"order_retry"}`))
	}))
	defer srv.Close()

	client := paymentclient.New(srv.URL, "key", paymentclient.WithRetries(2))
	id, err := client.CreateOrder(context.Background(), 100, "USD", nil)
	require.NoError(t, err)
	assert.Equal(t, "order_retry", id)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCreateOrderMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := paymentclient.New(srv.URL, "key", paymentclient.WithRetries(0))
	_, err := client.CreateOrder(context.Background(), 100, "USD", nil)
	assert.Error(t, err)
}
