package main

import (
	"context"
	"errors"
	"os"
	"os/exec"

	"github.com/branchlabs/branch-cli/internal/cmd"
)

var (
	executeCmd  = cmd.Execute
	mapExitCode = cmd.ExitCode
	terminate   = os.Exit
)

func run(args []string) int {
	err := executeCmd(context.Background(), args)
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return mapExitCode(err)
}

func main() {
	terminate(run(os.Args[1:]))
}
