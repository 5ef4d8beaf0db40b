package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClient spins up a local server around handler and returns a client
// pointed at it.
func stubClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return newTestClient(server.URL, "test-token", 1)
}

func TestNewClientFields(t *testing.T) {
	client := newTestClient("https://example.com", "test-token", 42)

	assert.Equal(t, "https://example.com", client.BaseURL)
	assert.Equal(t, "test-token", client.APIToken)
	assert.Equal(t, 42, client.AgentID)
	assert.NotNil(t, client.HTTP)
}

func TestAPIPath(t *testing.T) {
	client := newTestClient("https://example.com", "token", 1)

	for path, want := range map[string]string{
		"/conversations":   "https://example.com/api/conversations",
		"/conversations/1": "https://example.com/api/conversations/1",
		"conversations/1":  "https://example.com/api/conversations/1",
		"":                 "https://example.com/api",
	} {
		assert.Equal(t, want, client.apiPath(path), "path %q", path)
	}
}

func TestGetStatusHandling(t *testing.T) {
	cases := map[string]struct {
		status  int
		body    string
		wantErr bool
	}{
		"ok":           {status: http.StatusOK, body: `{"id": 1, "subject": "test"}`},
		"not found":    {status: http.StatusNotFound, body: `{"detail": "Conversation not found"}`, wantErr: true},
		"server error": {status: http.StatusInternalServerError, body: `{"detail": "internal error"}`, wantErr: true},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			client := stubClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			client.RetryConfig.Max5xxRetries = 0

			var result map[string]any
			err := client.Get(context.Background(), "/test", &result)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAPIErrorCarriesRequestID(t *testing.T) {
	client := stubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "req-123")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail": "bad request"}`))
	})

	err := client.Get(context.Background(), "/test", nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "req-123", apiErr.RequestID)
}

func TestPostSendsJSONBody(t *testing.T) {
	client := stubClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 1}`))
	})

	var result map[string]int
	require.NoError(t, client.Post(context.Background(), "/test", map[string]string{"key": "value"}, &result))
	assert.Equal(t, 1, result["id"])
}

func TestGetRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	client := stubClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"ok": true}`))
	})
	client.RetryConfig.MaxRateLimitRetries = 1
	client.RetryConfig.RateLimitBaseDelay = 0

	var result map[string]any
	require.NoError(t, client.Get(context.Background(), "/test", &result))
	assert.EqualValues(t, 2, calls.Load())
}

func TestPostNeverRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	client := stubClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	err := client.Post(context.Background(), "/test", map[string]string{"key": "value"}, nil)

	var rlErr *RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, 7*time.Second, rlErr.RetryAfter, "Retry-After header honored")
	assert.EqualValues(t, 1, calls.Load(), "POST is not idempotent, must not retry")
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := stubClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok": true}`))
	})
	client.RetryConfig.ServerErrorRetryDelay = 0

	var result map[string]any
	require.NoError(t, client.Get(context.Background(), "/test", &result))
	assert.EqualValues(t, 2, calls.Load())
}

func TestCircuitBreakerTripsAndResets(t *testing.T) {
	client := stubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail": "boom"}`))
	})
	client.SetRetryConfig(RetryConfig{
		Max5xxRetries:           0,
		CircuitBreakerThreshold: 3,
		CircuitBreakerResetTime: time.Hour,
	})

	for range 3 {
		_ = client.Get(context.Background(), "/test", nil)
	}

	err := client.Get(context.Background(), "/test", nil)
	assert.True(t, IsCircuitBreakerError(err), "breaker should be open after threshold failures, got %v", err)

	client.ResetCircuitBreaker()
	err = client.Get(context.Background(), "/test", nil)
	assert.False(t, IsCircuitBreakerError(err), "breaker should be closed after reset, got %v", err)
}

func TestExtractErrorDetail(t *testing.T) {
	const redacted = "API request failed (response body redacted for security)"

	cases := map[string]struct {
		body string
		want string
	}{
		"string detail":    {body: `{"detail": "Conversation not found"}`, want: "Conversation not found"},
		"validation array": {body: `{"detail": [{"loc": ["body", "content"], "msg": "field required"}]}`, want: "Validation errors:\n  content: field required"},
		"empty detail":     {body: `{"detail": ""}`, want: redacted},
		"non-JSON body":    {body: `<html>Internal Server Error</html>`, want: redacted},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractErrorDetail([]byte(tc.body)))
		})
	}
}

func TestHealthCheck(t *testing.T) {
	client := stubClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
	})

	ok, err := client.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}
