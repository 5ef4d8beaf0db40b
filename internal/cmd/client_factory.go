package cmd

import (
	"fmt"
	"time"

	"github.com/branchlabs/branch-cli/internal/api"
	"github.com/branchlabs/branch-cli/internal/config"
)

// clientFactory snapshots the global flags relevant to client construction
// so commands build clients without reaching into flag state themselves.
type clientFactory struct {
	timeout   time.Duration
	userAgent string
}

func newClientFactory() *clientFactory {
	return &clientFactory{
		timeout:   flags.Timeout,
		userAgent: fmt.Sprintf("branch-cli/%s", version),
	}
}

// account builds a client for the resolved account (keyring profile or env).
func (f *clientFactory) account() (*api.Client, error) {
	account, err := config.LoadAccount()
	if err != nil {
		return nil, err
	}
	return f.newClient(account), nil
}

func (f *clientFactory) newClient(account config.Account) *api.Client {
	client := api.New(account.BaseURL, account.APIToken, account.AgentID)
	if f.timeout > 0 {
		client.HTTP.Timeout = f.timeout
	}
	if f.userAgent != "" {
		client.UserAgent = f.userAgent
	}
	applyRetryOverrides(client)
	return client
}

// applyRetryOverrides copies any retry flags the user set onto the client,
// leaving the client defaults alone otherwise.
func applyRetryOverrides(client *api.Client) {
	cfg := client.RetryConfig

	overrides := []struct {
		set   bool
		apply func()
	}{
		{flags.MaxRateLimitRetriesSet, func() { cfg.MaxRateLimitRetries = flags.MaxRateLimitRetries }},
		{flags.Max5xxRetriesSet, func() { cfg.Max5xxRetries = flags.Max5xxRetries }},
		{flags.RateLimitDelaySet, func() { cfg.RateLimitBaseDelay = flags.RateLimitDelay }},
		{flags.ServerErrorDelaySet, func() { cfg.ServerErrorRetryDelay = flags.ServerErrorDelay }},
		{flags.CircuitBreakerThresholdSet, func() { cfg.CircuitBreakerThreshold = flags.CircuitBreakerThreshold }},
		{flags.CircuitBreakerResetTimeSet, func() { cfg.CircuitBreakerResetTime = flags.CircuitBreakerResetTime }},
	}
	for _, o := range overrides {
		if o.set {
			o.apply()
		}
	}

	client.SetRetryConfig(cfg)
}
