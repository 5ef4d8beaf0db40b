package api

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DefaultMaxRateLimitRetries     = 3
	DefaultMax5xxRetries           = 1
	DefaultRateLimitBaseDelay      = 1 * time.Second
	DefaultServerErrorRetryDelay   = 1 * time.Second
	DefaultCircuitBreakerThreshold = 5
	DefaultCircuitBreakerResetTime = 30 * time.Second
)

// RetryConfig controls retry behavior and the circuit breaker.
type RetryConfig struct {
	MaxRateLimitRetries     int
	Max5xxRetries           int
	RateLimitBaseDelay      time.Duration
	ServerErrorRetryDelay   time.Duration
	CircuitBreakerThreshold int
	CircuitBreakerResetTime time.Duration
}

// DefaultRetryConfig builds a RetryConfig from BRANCH_* environment
// variables, falling back to the defaults above:
//
//	BRANCH_MAX_RATE_LIMIT_RETRIES    retries for 429 responses
//	BRANCH_MAX_5XX_RETRIES           retries for 5xx responses
//	BRANCH_RATE_LIMIT_DELAY          base 429 backoff ("1s")
//	BRANCH_SERVER_ERROR_DELAY        5xx retry delay ("1s")
//	BRANCH_CIRCUIT_BREAKER_THRESHOLD failures before the circuit opens
//	BRANCH_CIRCUIT_BREAKER_RESET_TIME cool-down before a probe ("30s")
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRateLimitRetries:     envInt("BRANCH_MAX_RATE_LIMIT_RETRIES", DefaultMaxRateLimitRetries),
		Max5xxRetries:           envInt("BRANCH_MAX_5XX_RETRIES", DefaultMax5xxRetries),
		RateLimitBaseDelay:      envDuration("BRANCH_RATE_LIMIT_DELAY", DefaultRateLimitBaseDelay),
		ServerErrorRetryDelay:   envDuration("BRANCH_SERVER_ERROR_DELAY", DefaultServerErrorRetryDelay),
		CircuitBreakerThreshold: envInt("BRANCH_CIRCUIT_BREAKER_THRESHOLD", DefaultCircuitBreakerThreshold),
		CircuitBreakerResetTime: envDuration("BRANCH_CIRCUIT_BREAKER_RESET_TIME", DefaultCircuitBreakerResetTime),
	}
}

func envInt(key string, fallback int) int {
	parsed, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	parsed, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return parsed
}

// sleepWithContext waits for d or until the context is done.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryAfterDuration parses a Retry-After header, which may be either a
// delay in seconds or an HTTP date.
func retryAfterDuration(h http.Header) (time.Duration, bool) {
	value := strings.TrimSpace(h.Get("Retry-After"))
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return max(time.Duration(secs)*time.Second, 0), true
	}
	if t, err := http.ParseTime(value); err == nil {
		return max(time.Until(t), 0), true
	}
	return 0, false
}

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// circuitBreaker trips after threshold consecutive server failures and
// rejects requests until resetTime has passed, then lets one probe through.
// Concurrent isOpen calls during half-open may all admit probes; fine for a
// CLI where concurrent requests are rare.
type circuitBreaker struct {
	mu          sync.Mutex
	state       breakerState
	failures    int
	lastFailure time.Time
	threshold   int
	resetTime   time.Duration
}

// recordSuccess closes the circuit. A successful half-open probe completes
// recovery.
func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = breakerClosed
	cb.failures = 0
}

// recordFailure counts a server failure and reports whether the circuit
// (re)opened as a result. A failed half-open probe re-opens immediately and
// restarts the cool-down.
func (cb *circuitBreaker) recordFailure() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()

	switch cb.state {
	case breakerHalfOpen:
		cb.state = breakerOpen
		return true
	case breakerClosed:
		threshold := cb.threshold
		if threshold <= 0 {
			threshold = DefaultCircuitBreakerThreshold
		}
		if cb.failures >= threshold {
			cb.state = breakerOpen
			return true
		}
	}
	return false
}

// isOpen reports whether the next request should be rejected. Once the
// cool-down elapses the circuit moves to half-open and admits a probe.
func (cb *circuitBreaker) isOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != breakerOpen {
		return false
	}

	resetTime := cb.resetTime
	if resetTime <= 0 {
		resetTime = DefaultCircuitBreakerResetTime
	}
	if time.Since(cb.lastFailure) >= resetTime {
		cb.state = breakerHalfOpen
		return false
	}
	return true
}

// reset clears all breaker state, for reuse across logical sessions.
func (cb *circuitBreaker) reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = breakerClosed
	cb.failures = 0
	cb.lastFailure = time.Time{}
}
