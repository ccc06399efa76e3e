package mailclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		Timeout:    2 * time.Second,
		RetryCount: 2,
		RetryDelay: 5 * time.Millisecond,
		RateLimit:  6000,
		RateBurst:  100,
	}
}

func TestSend_PostsMessageWithHeaders(t *testing.T) {
	var gotAuth, gotIdem string
	var gotMsg Message

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/messages", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotIdem = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotMsg))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := New(testConfig(srv.URL))
	err := client.Send(context.Background(), "12345", Message{
		TemplateKind: "reminder",
		Recipient:    "client@example.com",
		Payload:      map[string]any{"phase_key": "PAY"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "12345", gotIdem)
	assert.Equal(t, "reminder", gotMsg.TemplateKind)
	assert.Equal(t, "client@example.com", gotMsg.Recipient)
}

func TestSend_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := New(testConfig(srv.URL))
	err := client.Send(context.Background(), "1", Message{TemplateKind: "stuck", Recipient: "a@b.c"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSend_ExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(testConfig(srv.URL))
	err := client.Send(context.Background(), "1", Message{TemplateKind: "stuck", Recipient: "a@b.c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay error")
}

func TestSend_MissingBaseURL(t *testing.T) {
	client := New(Config{Timeout: time.Second, RateLimit: 60, RateBurst: 1})
	err := client.Send(context.Background(), "1", Message{TemplateKind: "advanced", Recipient: "a@b.c"})
	assert.Error(t, err)
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.RetryCount = 0
	cfg.CircuitBreakerEnabled = true
	cfg.CBFailureThreshold = 2
	cfg.CBMinRequests = 2
	cfg.CBSamplingDuration = time.Minute
	cfg.CBRecoveryTime = time.Minute

	client := New(cfg)
	ctx := context.Background()
	msg := Message{TemplateKind: "reminder", Recipient: "a@b.c"}

	for i := 0; i < 3; i++ {
		_ = client.Send(ctx, "1", msg)
	}

	err := client.Send(ctx, "1", msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open")
}
