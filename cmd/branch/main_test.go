package main

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubEntrypoints(t *testing.T) {
	t.Helper()
	origExec := executeCmd
	origMap := mapExitCode
	origTerminate := terminate
	t.Cleanup(func() {
		executeCmd = origExec
		mapExitCode = origMap
		terminate = origTerminate
	})
}

func TestRunSuccess(t *testing.T) {
	stubEntrypoints(t)

	var gotArgs []string
	executeCmd = func(_ context.Context, args []string) error {
		gotArgs = append([]string(nil), args...)
		return nil
	}
	mapExitCode = func(_ error) int {
		t.Fatal("mapExitCode should not be called on success")
		return 99
	}

	code := run([]string{"version", "--output", "json"})
	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"version", "--output", "json"}, gotArgs)
}

func TestRunMapsErrors(t *testing.T) {
	stubEntrypoints(t)

	execErr := errors.New("boom")
	executeCmd = func(_ context.Context, _ []string) error { return execErr }

	called := false
	mapExitCode = func(err error) int {
		called = true
		require.ErrorIs(t, err, execErr)
		return 23
	}

	assert.Equal(t, 23, run([]string{"conversations", "list"}))
	assert.True(t, called)
}

func TestRunPassesThroughExitError(t *testing.T) {
	stubEntrypoints(t)

	executeCmd = func(_ context.Context, _ []string) error {
		return exitErrorWithCode(t, 7)
	}
	mapExitCode = func(_ error) int {
		t.Fatal("mapExitCode should not be called for ExitError")
		return 99
	}

	assert.Equal(t, 7, run([]string{"api", "/health"}))
}

func TestMainTerminatesWithRunCode(t *testing.T) {
	stubEntrypoints(t)
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	executeCmd = func(_ context.Context, _ []string) error { return errors.New("boom") }
	mapExitCode = func(_ error) int { return 13 }

	gotCode := -1
	terminate = func(code int) { gotCode = code }

	os.Args = []string{"branch", "conversations", "list"}
	main()

	assert.Equal(t, 13, gotCode)
}

func exitErrorWithCode(t *testing.T, code int) *exec.ExitError {
	t.Helper()
	err := exec.Command("sh", "-c", "exit "+strconv.Itoa(code)).Run()
	require.Error(t, err)

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, code, exitErr.ExitCode())
	return exitErr
}
