package action

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// maxLoggedOutput caps how much command output is logged on failure.
const maxLoggedOutput = 512

// Command runs an external program per action. Exit status 0 is success.
//
// Each command is an argv slice; no shell is involved. Commands run in their
// own process group so a timeout kills any children too.
type Command struct {
	On      []string
	Off     []string
	Timeout time.Duration
	Env     []string

	Logger Logger
}

// TurnOn runs the On command.
func (c *Command) TurnOn() bool { return c.run(c.On) }

// TurnOff runs the Off command.
func (c *Command) TurnOff() bool { return c.run(c.Off) }

func (c *Command) run(argv []string) bool {
	logger := orNoop(c.Logger)
	if len(argv) == 0 {
		logger.Warn("command action has no command configured")
		return false
	}

	out, err := c.exec(argv)
	if err != nil {
		logger.Warn("command action failed",
			"command", argv[0],
			"error", err,
			"output", truncate(out, maxLoggedOutput),
		)
		return false
	}
	logger.Debug("command action succeeded", "command", argv[0])
	return true
}

func (c *Command) exec(argv []string) (string, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // Commands come from the operator's config file
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Negative PID signals the whole process group.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second
	if len(c.Env) > 0 {
		cmd.Env = append(cmd.Environ(), c.Env...)
	}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	if ctx.Err() != nil {
		return output.String(), fmt.Errorf("timed out after %v: %w", timeout, ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return output.String(), fmt.Errorf("exit status %d", exitErr.ExitCode())
		}
		return output.String(), fmt.Errorf("running command: %w", err)
	}
	return output.String(), nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
