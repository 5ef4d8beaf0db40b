package api

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is a machine-readable error class for scripted error handling.
type ErrorCode string

const (
	ErrBadRequest   ErrorCode = "bad_request"       // HTTP 400
	ErrUnauthorized ErrorCode = "unauthorized"      // HTTP 401
	ErrForbidden    ErrorCode = "forbidden"         // HTTP 403
	ErrNotFound     ErrorCode = "not_found"         // HTTP 404
	ErrConflict     ErrorCode = "conflict"          // HTTP 409
	ErrValidation   ErrorCode = "validation_failed" // HTTP 422
	ErrRateLimited  ErrorCode = "rate_limited"      // HTTP 429
	ErrServerError  ErrorCode = "server_error"      // HTTP 5xx
	ErrTimeout      ErrorCode = "timeout"
	ErrCircuitOpen  ErrorCode = "circuit_open"
	ErrUnknown      ErrorCode = "unknown"
)

// IsRetryable reports whether errors with this code may succeed on retry.
func (c ErrorCode) IsRetryable() bool {
	switch c {
	case ErrRateLimited, ErrServerError, ErrTimeout, ErrCircuitOpen:
		return true
	}
	return false
}

var codeSuggestions = map[ErrorCode]string{
	ErrUnauthorized: "Run 'branch auth login' to authenticate",
	ErrForbidden:    "Check your account permissions",
	ErrNotFound:     "Verify the resource ID exists",
	ErrRateLimited:  "Wait a moment and retry",
	ErrValidation:   "Check the input values",
	ErrBadRequest:   "Check the request format and parameters",
	ErrConflict:     "The resource state may have changed; refresh and retry",
	ErrServerError:  "The server encountered an error; try again later",
	ErrTimeout:      "The request timed out; check network connectivity and retry",
	ErrCircuitOpen:  "Too many recent failures; wait before retrying",
}

// Suggestion returns a human-readable hint for resolving this error class.
func (c ErrorCode) Suggestion() string {
	return codeSuggestions[c]
}

var statusCodes = map[int]ErrorCode{
	400: ErrBadRequest,
	401: ErrUnauthorized,
	403: ErrForbidden,
	404: ErrNotFound,
	409: ErrConflict,
	422: ErrValidation,
	429: ErrRateLimited,
}

// ErrorCodeFromStatus maps an HTTP status code to an ErrorCode.
func ErrorCodeFromStatus(statusCode int) ErrorCode {
	if code, ok := statusCodes[statusCode]; ok {
		return code
	}
	if statusCode >= 500 && statusCode < 600 {
		return ErrServerError
	}
	return ErrUnknown
}

// StructuredError is the machine-readable error shape printed in JSON mode.
type StructuredError struct {
	Code          ErrorCode      `json:"code"`
	Message       string         `json:"message"`
	Retryable     bool           `json:"retryable"`
	Suggestion    string         `json:"suggestion,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
	AllowedValues []string       `json:"allowed_values,omitempty"`
}

func (e *StructuredError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// NewStructuredError builds a StructuredError with the code's standard
// retryability and suggestion filled in.
func NewStructuredError(code ErrorCode, message string) *StructuredError {
	return &StructuredError{
		Code:       code,
		Message:    message,
		Retryable:  code.IsRetryable(),
		Suggestion: code.Suggestion(),
	}
}

// NewValidationError describes an input validation failure, including the
// allowed values so callers can self-correct.
func NewValidationError(field string, got string, allowed []string) *StructuredError {
	values := strings.Join(allowed, ", ")
	return &StructuredError{
		Code:          ErrValidation,
		Message:       fmt.Sprintf("invalid %s %q: must be one of %s", field, got, values),
		Suggestion:    fmt.Sprintf("Use one of: %s", values),
		AllowedValues: allowed,
		Context:       map[string]any{"field": field, "got": got},
	}
}

// StructuredErrorFromAPIError classifies an APIError by its status code.
func StructuredErrorFromAPIError(apiErr *APIError) *StructuredError {
	se := NewStructuredError(ErrorCodeFromStatus(apiErr.StatusCode), apiErr.Detail)
	se.Context = map[string]any{"status_code": apiErr.StatusCode}
	if apiErr.RequestID != "" {
		se.Context["request_id"] = apiErr.RequestID
	}
	return se
}

// StructuredErrorFromError converts any error in the chain to a
// StructuredError, recognizing the client's typed errors; anything else is
// classified as unknown.
func StructuredErrorFromError(err error) *StructuredError {
	if err == nil {
		return nil
	}

	var (
		se           *StructuredError
		apiErr       *APIError
		rateLimitErr *RateLimitError
		authErr      *AuthError
		cbErr        *CircuitBreakerError
	)
	switch {
	case errors.As(err, &se):
		return se
	case errors.As(err, &apiErr):
		return StructuredErrorFromAPIError(apiErr)
	case errors.As(err, &rateLimitErr):
		out := NewStructuredError(ErrRateLimited, rateLimitErr.Error())
		out.Context = map[string]any{"retry_after": rateLimitErr.RetryAfter.String()}
		return out
	case errors.As(err, &authErr):
		return NewStructuredError(ErrUnauthorized, authErr.Error())
	case errors.As(err, &cbErr):
		return NewStructuredError(ErrCircuitOpen, cbErr.Error())
	}
	return NewStructuredError(ErrUnknown, err.Error())
}
