package cmd

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"

	"github.com/spf13/pflag"

	"github.com/branchlabs/branch-cli/internal/api"
)

// Exit codes are part of the CLI contract; scripts branch on them.
const (
	exitOK          = 0
	exitGeneric     = 1
	exitUsage       = 2
	exitAuth        = 3
	exitNotFound    = 4
	exitForbidden   = 5
	exitRateLimited = 6
	exitServer      = 7
	exitNetwork     = 8
)

var structuredExitCodes = map[api.ErrorCode]int{
	api.ErrUnauthorized: exitAuth,
	api.ErrForbidden:    exitForbidden,
	api.ErrNotFound:     exitNotFound,
	api.ErrRateLimited:  exitRateLimited,
	api.ErrServerError:  exitServer,
	api.ErrCircuitOpen:  exitServer,
	api.ErrTimeout:      exitNetwork,
	api.ErrBadRequest:   exitUsage,
	api.ErrValidation:   exitUsage,
	api.ErrConflict:     exitUsage,
}

// ExitCode maps an error to the process exit code. Help requests count as
// success. A handledError carries the code chosen when it was printed;
// anything else is classified from the error chain.
func ExitCode(err error) int {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	if handled, ok := err.(*handledError); ok {
		if handled.exitCode != 0 {
			return handled.exitCode
		}
		err = handled.err
	}

	if structured := api.StructuredErrorFromError(err); structured != nil {
		if code, ok := structuredExitCodes[structured.Code]; ok {
			return code
		}
	}
	switch {
	case isUsageError(err):
		return exitUsage
	case isNetworkError(err):
		return exitNetwork
	}
	return exitGeneric
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var (
		netErr net.Error
		opErr  *net.OpError
		urlErr *url.Error
	)
	if errors.As(err, &netErr) || errors.As(err, &opErr) || errors.As(err, &urlErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range []string{
		"connection refused", "no such host", "tls", "certificate",
		"i/o timeout", "timeout",
	} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// isUsageError detects cobra/pflag parse failures and our own argument
// validation by message, since neither exposes a typed error.
func isUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range []string{
		"unknown command",
		"unknown flag",
		"unknown shorthand flag",
		"flag needs an argument",
		"flag provided but not defined",
		"requires at least",
		"requires exactly",
		"invalid argument",
		"invalid value",
		"must be",
		"is required",
		"missing",
	} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
