package network

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-agent/src/helpers"
	"trade-agent/src/logger"
	"trade-agent/src/models"
)

// -----------------------------------------------------------------------------

func testManager(retries int) *Manager {
	m := NewManager(&models.MNetworkConfig{RequestTimeout: 5, MaxRetries: retries},
		logger.NewLogger("CRITICAL", "test"))
	m.backoff = time.Millisecond
	return m
}

// -----------------------------------------------------------------------------

func TestGetReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbols"))
		w.Write([]byte(`[{"symbol":"AAPL"}]`))
	}))
	defer srv.Close()

	body, err := testManager(2).Get(context.Background(), srv.URL, map[string]string{"symbols": "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, `[{"symbol":"AAPL"}]`, string(body))
}

// -----------------------------------------------------------------------------

func TestGetRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := testManager(3).Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

// -----------------------------------------------------------------------------

func TestGetStopsRetryingOnAuthStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testManager(3).Get(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.True(t, helpers.IsAuthError(err))
	assert.Equal(t, int32(1), calls.Load(), "auth failures must not be retried")
}

// -----------------------------------------------------------------------------

func TestGetHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(10 * time.Second):
		}
	}))
	defer srv.Close()

	m := testManager(3)
	m.backoff = 10 * time.Second // a retry sleep would blow the deadline below

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := m.Get(ctx, srv.URL, nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second, "cancellation must cut request and backoff short")
}

// -----------------------------------------------------------------------------

func TestGetExhaustsRetriesWithError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testManager(1).Get(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
}
