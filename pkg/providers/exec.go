package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// RealExecutor runs commands via os/exec. A spawn failure (binary not
// found, permission denied) is returned as an error wrapping
// ErrSpawnFailed; a process that started but exited non-zero is not an
// error, only a non-zero ExitCode in the result.
type RealExecutor struct{}

// ErrSpawnFailed marks failures that happened before the process ran.
var ErrSpawnFailed = errors.New("spawn failed")

// Execute runs a command with the given arguments, capturing stdout and
// stderr separately along with exit code and wall-clock duration.
func (r *RealExecutor) Execute(ctx context.Context, command string, args []string, dir string) (*CommandResult, error) {
	started := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	duration := time.Since(started)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("%w: %q: %v", ErrSpawnFailed, command, err)
		}
	}

	return &CommandResult{
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		ExitCode:  exitCode,
		StartedAt: started.UTC(),
		Duration:  duration,
	}, nil
}

// IsSpawnError reports whether the executor failed before the process
// ran, as opposed to the process exiting non-zero.
func IsSpawnError(err error) bool {
	return errors.Is(err, ErrSpawnFailed)
}
