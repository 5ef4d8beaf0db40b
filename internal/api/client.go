package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/branchlabs/branch-cli/internal/debug"
	"github.com/branchlabs/branch-cli/internal/validation"
)

const DefaultTimeout = 30 * time.Second

// redactedErrorDetail replaces error bodies we cannot safely surface.
const redactedErrorDetail = "API request failed (response body redacted for security)"

// Client is the Branch Messaging API client.
//
// The circuit breaker inside tracks server failures for the lifetime of the
// client; call ResetCircuitBreaker when reusing one across logical sessions.
type Client struct {
	BaseURL           string
	APIToken          string
	AgentID           int
	HTTP              *http.Client
	UserAgent         string
	RetryConfig       RetryConfig
	skipURLValidation bool // testing only
	circuitBreaker    *circuitBreaker
	validatedBaseURL  bool
	validateMu        sync.Mutex
}

var (
	_ Requester    = (*Client)(nil)
	_ PathResolver = (*Client)(nil)
	_ HTTPExecutor = (*Client)(nil)
)

var validateServerURL = validation.ValidateServerURL

// New creates a Branch API client with TLS 1.2+ enforced on the transport.
func New(baseURL, token string, agentID int) *Client {
	retryCfg := DefaultRetryConfig()
	return &Client{
		BaseURL:  strings.TrimSuffix(baseURL, "/"),
		APIToken: token,
		AgentID:  agentID,
		// BRANCH_TESTING=1 permits localhost URLs for integration tests.
		skipURLValidation: os.Getenv("BRANCH_TESTING") == "1",
		RetryConfig:       retryCfg,
		HTTP: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: secureTransport(),
		},
		circuitBreaker: &circuitBreaker{
			threshold: retryCfg.CircuitBreakerThreshold,
			resetTime: retryCfg.CircuitBreakerResetTime,
		},
	}
}

func secureTransport() *http.Transport {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		base = &http.Transport{}
	}
	transport := base.Clone()
	tlsCfg := transport.TLSClientConfig
	if tlsCfg == nil {
		tlsCfg = &tls.Config{}
	} else {
		tlsCfg = tlsCfg.Clone()
	}
	tlsCfg.MinVersion = tls.VersionTLS12
	tlsCfg.InsecureSkipVerify = false
	transport.TLSClientConfig = tlsCfg
	return transport
}

// newTestClient creates a client with URL validation disabled for testing.
func newTestClient(baseURL, token string, agentID int) *Client {
	c := New(baseURL, token, agentID)
	c.skipURLValidation = true
	return c
}

// ResetCircuitBreaker clears failure counts and closes the circuit.
func (c *Client) ResetCircuitBreaker() {
	if c.circuitBreaker != nil {
		c.circuitBreaker.reset()
	}
}

// SetRetryConfig updates the retry configuration and keeps the circuit
// breaker settings in step with it.
func (c *Client) SetRetryConfig(cfg RetryConfig) {
	c.RetryConfig = cfg
	if c.circuitBreaker != nil {
		c.circuitBreaker.threshold = cfg.CircuitBreakerThreshold
		c.circuitBreaker.resetTime = cfg.CircuitBreakerResetTime
	}
}

// ensureBaseURLValidated runs SSRF validation once, lazily, at request time
// so DNS answers are checked close to when they are used.
func (c *Client) ensureBaseURLValidated() error {
	if c.skipURLValidation {
		return nil
	}

	c.validateMu.Lock()
	defer c.validateMu.Unlock()

	if c.validatedBaseURL {
		return nil
	}
	if err := validateServerURL(c.BaseURL); err != nil {
		return fmt.Errorf("URL validation failed: %w", err)
	}
	c.validatedBaseURL = true
	return nil
}

// apiPath returns the full URL for API calls.
func (c *Client) apiPath(path string) string {
	if path != "" && path[0] != '/' {
		path = "/" + path
	}
	return fmt.Sprintf("%s/api%s", c.BaseURL, path)
}

// do performs a request and decodes the JSON response into result.
func (c *Client) do(ctx context.Context, method, url string, body any, result any) error {
	respBody, _, _, err := c.executeRequest(ctx, method, url, body)
	if err != nil {
		return err
	}
	if result == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unexpected API response format (JSON decode failed): %w", err)
	}
	return nil
}

// executeRequest is the request loop shared by every call: it marshals the
// body once, honors the circuit breaker, retries 429s and 5xxs on idempotent
// methods, and converts error responses into *APIError.
func (c *Client) executeRequest(ctx context.Context, method, url string, body any) ([]byte, http.Header, int, error) {
	var jsonBody []byte
	if body != nil {
		var err error
		if jsonBody, err = json.Marshal(body); err != nil {
			return nil, nil, 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	if c.circuitBreaker != nil && c.circuitBreaker.isOpen() {
		return nil, nil, 0, &CircuitBreakerError{}
	}
	if err := c.ensureBaseURLValidated(); err != nil {
		return nil, nil, 0, err
	}

	idempotent := method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions

	var retries429, retries5xx, attempt int
	for {
		attempt++
		start := time.Now()

		req, err := c.buildRequest(ctx, method, url, jsonBody)
		if err != nil {
			return nil, nil, 0, err
		}

		resp, err := c.HTTP.Do(req)
		if err != nil {
			if debug.IsEnabled(ctx) {
				slog.Debug("request failed", "method", method, "url", url, "attempt", attempt, "error", err)
			}
			return nil, nil, 0, fmt.Errorf("request failed: %w", err)
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, nil, 0, fmt.Errorf("failed to read response: %w", err)
		}
		if debug.IsEnabled(ctx) {
			slog.Debug("request complete", "method", method, "url", url, "status", resp.StatusCode, "attempt", attempt, "duration", time.Since(start))
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			delay, retry := c.rateLimitDelay(resp.Header, idempotent, retries429)
			if !retry {
				return nil, nil, resp.StatusCode, &RateLimitError{RetryAfter: delay}
			}
			slog.Info("rate limited, retrying", "delay", delay, "attempt", retries429+1)
			if err := sleepWithContext(ctx, delay); err != nil {
				return nil, nil, 0, err
			}
			retries429++
			continue

		case resp.StatusCode >= 500:
			if c.circuitBreaker != nil {
				c.circuitBreaker.recordFailure()
			}
			if idempotent && retries5xx < c.RetryConfig.Max5xxRetries {
				slog.Info("server error, retrying", "status", resp.StatusCode)
				if err := sleepWithContext(ctx, c.RetryConfig.ServerErrorRetryDelay); err != nil {
					return nil, nil, 0, err
				}
				retries5xx++
				continue
			}
		}

		if resp.StatusCode >= 400 {
			return respBody, resp.Header, resp.StatusCode, &APIError{
				StatusCode: resp.StatusCode,
				Detail:     extractErrorDetail(respBody),
				RequestID:  requestIDFromHeader(resp.Header),
			}
		}

		if c.circuitBreaker != nil {
			c.circuitBreaker.recordSuccess()
		}
		return respBody, resp.Header, resp.StatusCode, nil
	}
}

func (c *Client) buildRequest(ctx context.Context, method, url string, jsonBody []byte) (*http.Request, error) {
	var bodyReader io.Reader
	if jsonBody != nil {
		bodyReader = bytes.NewReader(jsonBody)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIToken)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if jsonBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// rateLimitDelay decides how long to wait for a 429 and whether another
// retry is allowed. Retry-After wins over exponential backoff when present.
func (c *Client) rateLimitDelay(h http.Header, idempotent bool, retries429 int) (time.Duration, bool) {
	retryAfter, hasRetryAfter := retryAfterDuration(h)
	baseDelay := c.RetryConfig.RateLimitBaseDelay

	if !idempotent || retries429 >= c.RetryConfig.MaxRateLimitRetries {
		if hasRetryAfter {
			return retryAfter, false
		}
		return baseDelay, false
	}
	if hasRetryAfter {
		return retryAfter, true
	}
	return baseDelay * time.Duration(1<<retries429), true
}

// doRaw performs a request and returns the raw response body.
func (c *Client) doRaw(ctx context.Context, method, url string, body any) ([]byte, error) {
	respBody, _, _, err := c.executeRequest(ctx, method, url, body)
	return respBody, err
}

// Get performs a GET request against an API path.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, c.apiPath(path), nil, result)
}

// GetRaw performs a GET request and returns the raw response body.
func (c *Client) GetRaw(ctx context.Context, path string) ([]byte, error) {
	return c.doRaw(ctx, http.MethodGet, c.apiPath(path), nil)
}

// Post performs a POST request against an API path.
func (c *Client) Post(ctx context.Context, path string, body any, result any) error {
	return c.do(ctx, http.MethodPost, c.apiPath(path), body, result)
}

// Patch performs a PATCH request against an API path.
func (c *Client) Patch(ctx context.Context, path string, body any, result any) error {
	return c.do(ctx, http.MethodPatch, c.apiPath(path), body, result)
}

// Put performs a PUT request against an API path.
func (c *Client) Put(ctx context.Context, path string, body any, result any) error {
	return c.do(ctx, http.MethodPut, c.apiPath(path), body, result)
}

// Delete performs a DELETE request against an API path.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, c.apiPath(path), nil, nil)
}

// DoRaw performs a request against an API-relative path and returns the raw
// body, headers, and status. The raw api command uses this.
func (c *Client) DoRaw(ctx context.Context, method, path string, body any) ([]byte, http.Header, int, error) {
	return c.executeRequest(ctx, method, c.apiPath(path), body)
}

func requestIDFromHeader(header http.Header) string {
	if header == nil {
		return ""
	}
	for _, key := range []string{"X-Request-Id", "X-Request-ID"} {
		if id := header.Get(key); id != "" {
			return id
		}
	}
	return ""
}

// extractErrorDetail pulls the human-readable detail out of an error
// response without exposing anything else the body might carry. The server
// reports errors as {"detail": "..."} or, for validation failures,
// {"detail": [{"loc": ..., "msg": ...}]}.
func extractErrorDetail(body []byte) string {
	var errResp struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil || len(errResp.Detail) == 0 {
		return redactedErrorDetail
	}

	var msg string
	if err := json.Unmarshal(errResp.Detail, &msg); err == nil {
		if strings.TrimSpace(msg) == "" {
			return redactedErrorDetail
		}
		return msg
	}

	var fieldErrors []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(errResp.Detail, &fieldErrors); err != nil || len(fieldErrors) == 0 {
		return redactedErrorDetail
	}
	lines := make([]string, 0, len(fieldErrors)+1)
	lines = append(lines, "Validation errors:")
	for _, fe := range fieldErrors {
		line := "  " + fe.Msg
		if len(fe.Loc) > 0 {
			line = fmt.Sprintf("  %v: %s", fe.Loc[len(fe.Loc)-1], fe.Msg)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Detail     string
	RequestID  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Detail)
}

// HealthCheck reports whether GET /health on the server returns 200.
func (c *Client) HealthCheck(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return false, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK, nil
}
