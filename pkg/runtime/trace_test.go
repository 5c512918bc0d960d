package runtime

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/axionsec/axion/pkg/schema"
)

func readTraceEvents(t *testing.T, path string) []TraceEvent {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open trace: %v", err)
	}
	defer f.Close()

	var events []TraceEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev TraceEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("decode trace line: %v", err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan trace: %v", err)
	}
	return events
}

func TestTraceWriterAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.trace")

	tw, err := NewTraceWriter(path)
	if err != nil {
		t.Fatalf("NewTraceWriter: %v", err)
	}
	steps := []StepExecution{
		completed("target", schema.StepVariable, "target = 10.0.0.5"),
		failed("recon", schema.StepScan, "missing required parameter: target"),
	}
	for i := range steps {
		if err := tw.Write(&steps[i]); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	events := readTraceEvents(t, path)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for _, ev := range events {
		if ev.Type != "step_execution" {
			t.Fatalf("unexpected event type %q", ev.Type)
		}
		if ev.Timestamp.IsZero() {
			t.Fatal("event timestamp not set")
		}
	}
	if events[0].Step.Name != "target" || events[0].Step.Status != StatusCompleted {
		t.Fatalf("unexpected first event %+v", events[0].Step)
	}
	if events[1].Step.Status != StatusFailed {
		t.Fatalf("unexpected second event %+v", events[1].Step)
	}
}

func TestTraceWriterAppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.trace")

	for i := 0; i < 2; i++ {
		tw, err := NewTraceWriter(path)
		if err != nil {
			t.Fatalf("NewTraceWriter: %v", err)
		}
		step := completed("target", schema.StepVariable, "target = 10.0.0.5")
		if err := tw.Write(&step); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := tw.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	if got := len(readTraceEvents(t, path)); got != 2 {
		t.Fatalf("expected events from both sessions, got %d", got)
	}
}
