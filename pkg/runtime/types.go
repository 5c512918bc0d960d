// Package runtime executes a flattened scenario: it threads the variable,
// secret and artifact stores through the directive sequence, launches
// external tools, and renders reports. Execution is single-threaded and
// synchronous; nested bodies run via ordinary recursion.
package runtime

import (
	"fmt"
	"strings"

	"github.com/axionsec/axion/pkg/artifact"
	"github.com/axionsec/axion/pkg/schema"
)

// Status is the terminal state of one step execution.
type Status string

const (
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
	StatusSkipped        Status = "skipped"
	StatusNotImplemented Status = "not_implemented"
)

// StepExecution records the outcome of one directive. Appended in
// document order, including recursive flattening of branch and loop
// bodies, and immutable once appended.
type StepExecution struct {
	Name    string          `json:"name"`
	Kind    schema.StepKind `json:"kind"`
	Status  Status          `json:"status"`
	Message string          `json:"message,omitempty"`
}

func completed(name string, kind schema.StepKind, message string) StepExecution {
	return StepExecution{Name: name, Kind: kind, Status: StatusCompleted, Message: message}
}

func failed(name string, kind schema.StepKind, message string) StepExecution {
	return StepExecution{Name: name, Kind: kind, Status: StatusFailed, Message: message}
}

func skipped(name string, kind schema.StepKind, message string) StepExecution {
	return StepExecution{Name: name, Kind: kind, Status: StatusSkipped, Message: message}
}

func notImplemented(name string, kind schema.StepKind, message string) StepExecution {
	return StepExecution{Name: name, Kind: kind, Status: StatusNotImplemented, Message: message}
}

// Report is the ordered execution report for one run.
type Report struct {
	Steps []StepExecution `json:"steps"`
}

// HasFailures reports whether any step failed.
func (r Report) HasFailures() bool {
	for _, step := range r.Steps {
		if step.Status == StatusFailed {
			return true
		}
	}
	return false
}

// String renders the report for terminal output.
func (r Report) String() string {
	if len(r.Steps) == 0 {
		return "No steps to execute."
	}
	var b strings.Builder
	b.WriteString("Execution results:\n")
	for _, step := range r.Steps {
		status := string(step.Status)
		if step.Status == StatusNotImplemented {
			status = "not implemented"
		}
		fmt.Fprintf(&b, "  - [%s] %s (%s)\n", status, step.Name, step.Kind)
		if step.Message != "" {
			for _, line := range strings.Split(step.Message, "\n") {
				fmt.Fprintf(&b, "      %s\n", line)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Outcome is the pair returned to the caller: the ordered execution
// report plus the name-keyed artifact set. Both are JSON-serializable;
// this pair is the sole contract consumed by the CLI layer.
type Outcome struct {
	Report    Report                     `json:"report"`
	Artifacts map[string]artifact.Stored `json:"artifacts"`
}

// stepOutcome couples one execution record with an optional artifact.
type stepOutcome struct {
	execution StepExecution
	artifact  *artifact.Stored
	persist   bool
}

func fromExecution(exec StepExecution) stepOutcome {
	return stepOutcome{execution: exec}
}

func withArtifact(exec StepExecution, a artifact.Stored, persist bool) stepOutcome {
	return stepOutcome{execution: exec, artifact: &a, persist: persist}
}
