package cmd

import (
	"context"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/branchlabs/branch-cli/internal/config"
)

// withMemoryKeyring swaps the keyring for an in-memory one and clears the
// credential env vars so commands exercise the keychain path.
func withMemoryKeyring(t *testing.T) keyring.Keyring {
	t.Helper()
	ring := keyring.NewArrayKeyring(nil)
	restore := config.SetOpenKeyring(func(keyring.Config) (keyring.Keyring, error) {
		return ring, nil
	})
	t.Cleanup(restore)

	t.Setenv("BRANCH_BASE_URL", "")
	t.Setenv("BRANCH_API_TOKEN", "")
	t.Setenv("BRANCH_AGENT_ID", "")
	t.Setenv("BRANCH_PROFILE", "")
	return ring
}

func TestAuthLoginSavesCredentials(t *testing.T) {
	withMemoryKeyring(t)

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{
			"auth", "login",
			"--url", "https://8.8.8.8",
			"--token", "secret-token",
			"--agent-id", "7",
		})
		require.NoError(t, err)
	})

	assert.Contains(t, output, "saved successfully")

	account, err := config.LoadAccount()
	require.NoError(t, err)
	assert.Equal(t, "https://8.8.8.8", account.BaseURL)
	assert.Equal(t, "secret-token", account.APIToken)
	assert.Equal(t, 7, account.AgentID)
}

func TestAuthLoginTrimsTrailingSlash(t *testing.T) {
	withMemoryKeyring(t)

	_ = captureStdout(t, func() {
		err := Execute(context.Background(), []string{
			"auth", "login",
			"--url", "https://8.8.8.8/",
			"--token", "tok",
			"--agent-id", "1",
		})
		require.NoError(t, err)
	})

	account, err := config.LoadAccount()
	require.NoError(t, err)
	assert.Equal(t, "https://8.8.8.8", account.BaseURL)
}

func TestAuthLoginRequiresAllFlags(t *testing.T) {
	withMemoryKeyring(t)

	var err error
	_ = captureStderr(t, func() {
		_ = captureStdout(t, func() {
			err = Execute(context.Background(), []string{"auth", "login", "--url", "https://8.8.8.8"})
		})
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "--token is required")
}

func TestAuthStatusWithoutCredentials(t *testing.T) {
	withMemoryKeyring(t)

	var err error
	stderr := captureStderr(t, func() {
		_ = captureStdout(t, func() {
			err = Execute(context.Background(), []string{"auth", "status", "--no-check"})
		})
	})

	require.Error(t, err)
	assert.Contains(t, stderr, "branch auth login")
}

func TestAuthStatusShowsAccount(t *testing.T) {
	withMemoryKeyring(t)
	require.NoError(t, config.SaveAccount(config.Account{
		BaseURL:  "https://8.8.8.8",
		APIToken: "tok",
		AgentID:  7,
	}))

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{"auth", "status", "--no-check"})
		require.NoError(t, err)
	})

	assert.Contains(t, output, "https://8.8.8.8")
	assert.Contains(t, output, "7")
}

func TestAuthLogoutRemovesCredentials(t *testing.T) {
	withMemoryKeyring(t)
	require.NoError(t, config.SaveAccount(config.Account{
		BaseURL:  "https://8.8.8.8",
		APIToken: "tok",
		AgentID:  7,
	}))

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{"auth", "logout"})
		require.NoError(t, err)
	})

	assert.Contains(t, output, "Credentials removed")

	_, err := config.LoadAccount()
	assert.ErrorIs(t, err, config.ErrNotConfigured)
}

func TestAuthProfilesListAndUse(t *testing.T) {
	withMemoryKeyring(t)
	require.NoError(t, config.SaveProfile("default", config.Account{
		BaseURL: "https://8.8.8.8", APIToken: "a", AgentID: 1,
	}))
	require.NoError(t, config.SaveProfile("staging", config.Account{
		BaseURL: "https://8.8.4.4", APIToken: "b", AgentID: 2,
	}))

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{"auth", "profiles", "list"})
		require.NoError(t, err)
	})
	assert.Contains(t, output, "default")
	assert.Contains(t, output, "* staging") // last saved profile becomes current

	output = captureStdout(t, func() {
		err := Execute(context.Background(), []string{"auth", "profiles", "use", "default"})
		require.NoError(t, err)
	})
	assert.Contains(t, output, `Switched to profile "default"`)

	current, err := config.CurrentProfile()
	require.NoError(t, err)
	assert.Equal(t, "default", current)
}
