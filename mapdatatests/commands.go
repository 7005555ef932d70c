package mapdatatests

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/mapdata/gateway-contract-tests/framework"
)

// CommandRunner runs a service control command, such as one that restarts the backend.
type CommandRunner interface {
	Run(ctx context.Context, command string, logger framework.Logger) error
}

// ShellCommandRunner runs commands with "sh -c".
type ShellCommandRunner struct{}

func (ShellCommandRunner) Run(ctx context.Context, command string, logger framework.Logger) error {
	logger.Printf("Running: sh -c %s", shellescape.Quote(command))
	out, err := exec.CommandContext(ctx, "sh", "-c", command).CombinedOutput()
	if len(out) > 0 {
		logger.Printf("Command output: %s", strings.TrimSpace(string(out)))
	}
	if err != nil {
		return fmt.Errorf("command %s failed: %w", shellescape.Quote(command), err)
	}
	return nil
}
