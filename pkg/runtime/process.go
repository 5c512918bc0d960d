package runtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/axionsec/axion/pkg/providers"
)

// maxCapturedOutput bounds how much stdout/stderr a persisted invocation
// record carries. The raw streams stay intact in memory for parsing.
const maxCapturedOutput = 512

// invocation is a finished process run with its captured streams.
type invocation struct {
	command   string
	args      []string
	stdout    []byte
	stderr    []byte
	exitCode  *int
	startedAt time.Time
	duration  time.Duration
}

// argv renders the full command line for display and records.
func (inv *invocation) argv() string {
	if len(inv.args) == 0 {
		return inv.command
	}
	return inv.command + " " + strings.Join(inv.args, " ")
}

// tokenize splits a parameter string into POSIX shell words. An empty
// string yields no words.
func tokenize(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	words, err := shlex.Split(raw)
	if err != nil {
		return nil, fmt.Errorf("tokenize %q: %w", raw, err)
	}
	return words, nil
}

// runProcess executes a command through the executor and captures its
// result. A nonzero exit is not an error here; callers decide how an
// exit code maps to step status.
func runProcess(ctx context.Context, exec providers.CommandExecutor, command string, args []string, dir string) (*invocation, error) {
	result, err := exec.Execute(ctx, command, args, dir)
	if err != nil {
		return nil, err
	}
	return &invocation{
		command:   command,
		args:      args,
		stdout:    result.Stdout,
		stderr:    result.Stderr,
		exitCode:  &result.ExitCode,
		startedAt: result.StartedAt,
		duration:  result.Duration,
	}, nil
}

// truncateOutput limits captured stream text for artifact records,
// marking the cut when it happens.
func truncateOutput(data []byte) string {
	text := string(data)
	if len(text) <= maxCapturedOutput {
		return text
	}
	return text[:maxCapturedOutput] + "... (truncated)"
}
