package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadParsesSteps(t *testing.T) {
	doc := `
steps:
  - let:
      name: target
      value: 10.0.0.5
  - scan:
      name: recon
      tool: nmap
      params:
        target: ${target}
  - report:
      name: out
      format: stdout
      include: [findings_recon]
`
	sc, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(sc.Steps) != 3 {
		t.Fatalf("steps = %d", len(sc.Steps))
	}
	if sc.Steps[0].Kind() != StepVariable {
		t.Errorf("step 0 kind = %q", sc.Steps[0].Kind())
	}
	if sc.Steps[1].Scan.Tool != "nmap" {
		t.Errorf("tool = %q", sc.Steps[1].Scan.Tool)
	}
	if sc.Steps[2].Report.Format != FormatStdout {
		t.Errorf("format = %q", sc.Steps[2].Report.Format)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	doc := `
steps:
  - let:
      name: target
      value: x
      bogus: field
`
	if _, err := Load(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadEmptyDocument(t *testing.T) {
	sc, err := Load(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(sc.Steps) != 0 {
		t.Errorf("steps = %d", len(sc.Steps))
	}
}

func TestStepKindRequiresExactlyOneDirective(t *testing.T) {
	empty := Step{}
	if empty.Kind() != StepUnknown {
		t.Errorf("empty step kind = %q", empty.Kind())
	}
	double := Step{
		Let:    &VariableDecl{Name: "x"},
		Report: &ReportStep{Name: "r"},
	}
	if double.Kind() != StepUnknown {
		t.Errorf("ambiguous step kind = %q", double.Kind())
	}
}

func TestLoadAndFlattenInlinesImports(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "common.yaml", `
steps:
  - let:
      name: wordlist
      value: common.txt
`)
	main := writeScenario(t, dir, "main.yaml", `
steps:
  - import:
      path: common.yaml
  - let:
      name: target
      value: 10.0.0.5
`)

	sc, err := LoadAndFlatten(main)
	if err != nil {
		t.Fatalf("LoadAndFlatten error: %v", err)
	}
	if len(sc.Steps) != 2 {
		t.Fatalf("steps = %d", len(sc.Steps))
	}
	for _, step := range sc.Steps {
		if step.Kind() == StepImport {
			t.Error("import node survived flattening")
		}
	}
	if sc.Steps[0].Let.Name != "wordlist" {
		t.Errorf("imported step not first: %q", sc.Steps[0].Let.Name)
	}
	if len(sc.Imports) != 1 || !strings.HasSuffix(sc.Imports[0], "common.yaml") {
		t.Errorf("imports = %v", sc.Imports)
	}
}

func TestLoadAndFlattenImportCycle(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "a.yaml", `
steps:
  - import:
      path: b.yaml
  - let:
      name: from_a
      value: 1
`)
	writeScenario(t, dir, "b.yaml", `
steps:
  - import:
      path: a.yaml
  - let:
      name: from_b
      value: 2
`)

	sc, err := LoadAndFlatten(filepath.Join(dir, "a.yaml"))
	if err != nil {
		t.Fatalf("cycle should not error: %v", err)
	}
	// Each file contributes its steps exactly once.
	if len(sc.Steps) != 2 {
		t.Fatalf("steps = %d", len(sc.Steps))
	}
	if sc.Steps[0].Let.Name != "from_b" || sc.Steps[1].Let.Name != "from_a" {
		t.Errorf("unexpected order: %q, %q", sc.Steps[0].Let.Name, sc.Steps[1].Let.Name)
	}
}

func TestLoadAndFlattenDiamondImport(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "base.yaml", `
steps:
  - let:
      name: shared
      value: 1
`)
	writeScenario(t, dir, "left.yaml", `
steps:
  - import:
      path: base.yaml
`)
	writeScenario(t, dir, "right.yaml", `
steps:
  - import:
      path: base.yaml
`)
	main := writeScenario(t, dir, "main.yaml", `
steps:
  - import:
      path: left.yaml
  - import:
      path: right.yaml
`)

	sc, err := LoadAndFlatten(main)
	if err != nil {
		t.Fatalf("LoadAndFlatten error: %v", err)
	}
	if len(sc.Steps) != 1 {
		t.Errorf("shared import contributed %d times", len(sc.Steps))
	}
}

func TestLoadAndFlattenMissingImport(t *testing.T) {
	dir := t.TempDir()
	main := writeScenario(t, dir, "main.yaml", `
steps:
  - import:
      path: nope.yaml
`)
	if _, err := LoadAndFlatten(main); err == nil {
		t.Fatal("expected error for missing import")
	}
}
