package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/branchlabs/branch-cli/internal/api"
	"github.com/branchlabs/branch-cli/internal/config"
)

// HandleError turns an error into the message printed to stderr: a one-line
// summary followed by concrete suggestions.
func HandleError(err error) string {
	if err == nil {
		return ""
	}

	var (
		apiErr            *api.APIError
		rateLimitErr      *api.RateLimitError
		circuitBreakerErr *api.CircuitBreakerError
		authErr           *api.AuthError
	)

	switch {
	case errors.Is(err, config.ErrNotConfigured):
		return advise("Not configured.",
			"Run: branch auth login",
			"Or set BRANCH_BASE_URL, BRANCH_API_TOKEN, and BRANCH_AGENT_ID")

	case errors.As(err, &rateLimitErr):
		return advise("Rate limit exceeded.",
			"Wait a few seconds and retry",
			"Reduce request frequency")

	case errors.As(err, &circuitBreakerErr):
		return advise("Service temporarily unavailable (circuit breaker open).",
			"The API has had multiple failures recently",
			"Wait 30 seconds and retry",
			"Check if the Branch server is healthy")

	case errors.As(err, &authErr):
		return advise(fmt.Sprintf("Authentication failed: %s", authErr.Reason),
			"Run: branch auth login",
			"Verify your API token is valid",
			"Check that your agent account is active")

	case errors.As(err, &apiErr):
		msg := advise(fmt.Sprintf("API error (HTTP %d): %s", apiErr.StatusCode, apiErr.Detail),
			statusSuggestions(apiErr.StatusCode, apiErr.Detail)...)
		if apiErr.RequestID != "" {
			msg += fmt.Sprintf("\nRequest ID: %s\n", apiErr.RequestID)
		}
		return msg

	case strings.Contains(err.Error(), "connection refused"):
		return advise("Connection refused.",
			"Check if the Branch server is running",
			"Verify the URL: branch auth status",
			"Check your network connection")

	case strings.Contains(err.Error(), "no such host"):
		return advise("DNS resolution failed.",
			"Check the Branch server URL spelling",
			"Verify your DNS settings",
			"Try using the IP address directly")

	case strings.Contains(err.Error(), "certificate"):
		return advise("TLS certificate error.",
			"Verify the server's SSL certificate",
			"Check if the certificate is expired",
			"Ensure you're using https:// correctly")
	}

	return fmt.Sprintf("Error: %s\n", err.Error())
}

func advise(summary string, suggestions ...string) string {
	var b strings.Builder
	b.WriteString(summary)
	b.WriteString("\n\nSuggestions:\n")
	for _, s := range suggestions {
		b.WriteString("  - ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	return b.String()
}

func statusSuggestions(code int, detail string) []string {
	switch code {
	case 400:
		tips := []string{
			"Check your request parameters",
			"Use --debug to see the full request",
		}
		if strings.Contains(detail, "required") {
			tips = append(tips, "A required field may be missing")
		}
		return tips
	case 401:
		return []string{
			"Your API token may be invalid or expired",
			"Run: branch auth login",
		}
	case 403:
		return []string{
			"You don't have permission for this action",
			"The conversation may be claimed by another agent",
		}
	case 404:
		return []string{
			"The resource doesn't exist",
			"Check the ID is correct",
			"The conversation may have been closed",
		}
	case 409:
		return []string{
			"Another agent may have claimed this conversation first",
			"Refresh with: branch conversations list",
		}
	case 422:
		return []string{
			"Validation failed",
			"Check your input values",
			"Some fields may have invalid formats",
		}
	case 429:
		return []string{
			"Too many requests",
			"Wait and retry in a few seconds",
		}
	case 500, 502, 503, 504:
		return []string{
			"Server error - not your fault",
			"Wait and retry",
			"Check Branch server status",
		}
	}
	return []string{"Use --debug for more details"}
}
