// Package providers defines the CommandExecutor and SecretProvider
// interfaces and their real implementations. The runtime engine only
// sees the interfaces, so tests substitute fakes freely.
package providers

import (
	"context"
	"time"
)

// CommandResult holds the captured output of a single process run.
type CommandResult struct {
	Stdout    []byte        `json:"stdout"`
	Stderr    []byte        `json:"stderr"`
	ExitCode  int           `json:"exit_code"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// CommandExecutor abstracts real vs stubbed process execution. The
// engine blocks until the process completes; no timeout is imposed here.
// Callers that want one wrap the context.
type CommandExecutor interface {
	Execute(ctx context.Context, command string, args []string, dir string) (*CommandResult, error)
}

// SecretProvider resolves one field of a registered secret descriptor.
// Implementations never log or persist the resolved material.
type SecretProvider interface {
	Resolve(field string) (string, error)
	// Fields lists the aliases this provider can resolve. An empty slice
	// means the provider resolves only the bare (empty) field.
	Fields() []string
}
