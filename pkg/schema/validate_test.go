package schema

import (
	"strings"
	"testing"
)

func findDiag(diags []Diagnostic, level DiagnosticLevel, substr string) *Diagnostic {
	for i := range diags {
		if diags[i].Level == level && strings.Contains(diags[i].Message, substr) {
			return &diags[i]
		}
	}
	return nil
}

func requireDiag(t *testing.T, diags []Diagnostic, level DiagnosticLevel, substr string) Diagnostic {
	t.Helper()
	d := findDiag(diags, level, substr)
	if d == nil {
		t.Fatalf("expected %s diagnostic containing %q, got %v", level, substr, diags)
	}
	return *d
}

func TestValidateCleanScenario(t *testing.T) {
	sc := &Scenario{Steps: []Step{
		{Let: &VariableDecl{Name: "target", Value: StringValue("10.0.0.5")}},
		{Scan: &ScanStep{Name: "recon", Tool: "nmap", Params: map[string]string{
			"target": "${target}",
			"flags":  "-sV",
		}}},
		{Report: &ReportStep{Name: "summary", Format: FormatStdout, Include: []string{"findings_recon"}}},
	}}

	if diags := Validate(sc); len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %v", diags)
	}
}

func TestValidateVaultSecretWarns(t *testing.T) {
	sc := &Scenario{Steps: []Step{
		{Secret: &SecretStep{Name: "creds", From: "vault", Path: "kv/pentest/creds"}},
	}}

	diags := Validate(sc)
	d := requireDiag(t, diags, LevelWarn, "vault provider is not implemented yet")
	if d.Location != "secret creds" {
		t.Fatalf("unexpected location %q", d.Location)
	}
	if HasErrors(diags) {
		t.Fatalf("vault warning must not block execution: %v", diags)
	}
}

func TestValidateSecretDescriptors(t *testing.T) {
	t.Run("env without mappings", func(t *testing.T) {
		sc := &Scenario{Steps: []Step{
			{Secret: &SecretStep{Name: "api", From: "env"}},
		}}
		requireDiag(t, Validate(sc), LevelError, "env secret requires at least one mapping")
	})

	t.Run("env mapping with empty variable", func(t *testing.T) {
		sc := &Scenario{Steps: []Step{
			{Secret: &SecretStep{Name: "api", From: "env", Mappings: map[string]string{"token": "  "}}},
		}}
		requireDiag(t, Validate(sc), LevelError, `mapping "token" references an empty variable name`)
	})

	t.Run("file without path", func(t *testing.T) {
		sc := &Scenario{Steps: []Step{
			{Secret: &SecretStep{Name: "ssh_key", From: "file"}},
		}}
		requireDiag(t, Validate(sc), LevelError, "file secret path cannot be empty")
	})

	t.Run("unknown provider", func(t *testing.T) {
		sc := &Scenario{Steps: []Step{
			{Secret: &SecretStep{Name: "creds", From: "keyring"}},
		}}
		requireDiag(t, Validate(sc), LevelError, `unknown secret provider "keyring"`)
	})
}

func TestValidateScanAgainstToolSchema(t *testing.T) {
	t.Run("missing required parameter", func(t *testing.T) {
		sc := &Scenario{Steps: []Step{
			{Scan: &ScanStep{Name: "recon", Tool: "nmap", Params: map[string]string{"flags": "-sV"}}},
		}}
		d := requireDiag(t, Validate(sc), LevelError, `missing required parameter "target" for tool "nmap"`)
		if d.Location != "scan recon" {
			t.Fatalf("unexpected location %q", d.Location)
		}
	})

	t.Run("blank required parameter", func(t *testing.T) {
		sc := &Scenario{Steps: []Step{
			{Scan: &ScanStep{Name: "recon", Tool: "nmap", Params: map[string]string{"target": "  "}}},
		}}
		requireDiag(t, Validate(sc), LevelError, `parameter "target" for tool "nmap" cannot be empty`)
	})

	t.Run("unknown parameter warns", func(t *testing.T) {
		sc := &Scenario{Steps: []Step{
			{Scan: &ScanStep{Name: "recon", Tool: "nmap", Params: map[string]string{
				"target": "10.0.0.5",
				"ports":  "1-1024",
			}}},
		}}
		diags := Validate(sc)
		requireDiag(t, diags, LevelWarn, `unknown parameter "ports" for tool "nmap"`)
		if HasErrors(diags) {
			t.Fatalf("unknown parameters are advisory only: %v", diags)
		}
	})
}

func TestValidateGenericScan(t *testing.T) {
	t.Run("missing target is advisory", func(t *testing.T) {
		sc := &Scenario{Steps: []Step{
			{Scan: &ScanStep{Name: "sweep", Tool: "masscan", Params: map[string]string{"flags": "--rate 100"}}},
		}}
		diags := Validate(sc)
		requireDiag(t, diags, LevelWarn, "parameter 'target' is not set")
		if HasErrors(diags) {
			t.Fatalf("generic scans without a target remain runnable: %v", diags)
		}
	})

	t.Run("blank target is an error", func(t *testing.T) {
		sc := &Scenario{Steps: []Step{
			{Scan: &ScanStep{Name: "sweep", Tool: "masscan", Params: map[string]string{"target": ""}}},
		}}
		requireDiag(t, Validate(sc), LevelError, "parameter 'target' cannot be empty")
	})

	t.Run("unrecognized parameter warns", func(t *testing.T) {
		sc := &Scenario{Steps: []Step{
			{Scan: &ScanStep{Name: "sweep", Tool: "masscan", Params: map[string]string{
				"target": "10.0.0.0/24",
				"rate":   "100",
			}}},
		}}
		requireDiag(t, Validate(sc), LevelWarn, `unknown parameter "rate" for tool "masscan"`)
	})
}

func TestValidateScriptParams(t *testing.T) {
	sc := &Scenario{Steps: []Step{
		{Script: &ScriptStep{Name: "enum", Params: map[string]string{"args": "-v"}}},
	}}
	d := requireDiag(t, Validate(sc), LevelError, `missing required parameter "run" for tool "script"`)
	if d.Location != "script enum" {
		t.Fatalf("unexpected location %q", d.Location)
	}
}

func TestValidateRejectsUnflattenedImport(t *testing.T) {
	sc := &Scenario{Steps: []Step{
		{Import: &ImportStep{Path: "common.yml"}},
	}}
	d := requireDiag(t, Validate(sc), LevelError, "import was not resolved before validation")
	if d.Location != "import common.yml" {
		t.Fatalf("unexpected location %q", d.Location)
	}
}

func TestValidateConditionDiagnostics(t *testing.T) {
	t.Run("empty condition", func(t *testing.T) {
		sc := &Scenario{Steps: []Step{
			{If: &ConditionalStep{Condition: Condition{}, Then: []Step{
				{Let: &VariableDecl{Name: "x", Value: NumberValue(1)}},
			}}},
		}}
		requireDiag(t, Validate(sc), LevelError, "condition must have exactly one of")
	})

	t.Run("eq with one operand", func(t *testing.T) {
		sc := &Scenario{Steps: []Step{
			{If: &ConditionalStep{Condition: Condition{Eq: []Value{StringValue("a")}}}},
		}}
		requireDiag(t, Validate(sc), LevelError, "eq requires exactly two operands, got 1")
	})
}

func TestValidateNestedLocationPath(t *testing.T) {
	sc := &Scenario{Steps: []Step{
		{For: &LoopStep{Var: "host", In: ArrayValue([]Value{StringValue("10.0.0.5")}), Body: []Step{
			{If: &ConditionalStep{Condition: Condition{Var: "deep"}, Then: []Step{
				{Scan: &ScanStep{Name: "probe", Tool: "nmap"}},
			}}},
		}}},
	}}

	d := requireDiag(t, Validate(sc), LevelError, `missing required parameter "target"`)
	if d.Location != "for host > if deep > scan probe" {
		t.Fatalf("unexpected location %q", d.Location)
	}
}

func TestValidateConditionalElseBranch(t *testing.T) {
	lit := true
	sc := &Scenario{Steps: []Step{
		{If: &ConditionalStep{
			Condition: Condition{Literal: &lit},
			Then:      []Step{{Let: &VariableDecl{Name: "x", Value: NumberValue(1)}}},
			Else:      []Step{{Scan: &ScanStep{Name: "fallback", Tool: "nmap"}}},
		}},
	}}

	d := requireDiag(t, Validate(sc), LevelError, `missing required parameter "target"`)
	if d.Location != "if true > else > scan fallback" {
		t.Fatalf("unexpected location %q", d.Location)
	}
}

func TestValidateLoopShape(t *testing.T) {
	sc := &Scenario{Steps: []Step{
		{For: &LoopStep{Var: "", In: StringValue("10.0.0.5")}},
	}}
	requireDiag(t, Validate(sc), LevelError, "loop variable name cannot be empty")

	sc = &Scenario{Steps: []Step{
		{For: &LoopStep{Var: "host"}},
	}}
	requireDiag(t, Validate(sc), LevelError, "loop iterable cannot be empty")
}

func TestValidateReportStep(t *testing.T) {
	t.Run("unknown format", func(t *testing.T) {
		sc := &Scenario{Steps: []Step{
			{Report: &ReportStep{Name: "out", Format: "pdf", Include: []string{"findings"}}},
		}}
		requireDiag(t, Validate(sc), LevelError, `unknown report format "pdf"`)
	})

	t.Run("empty include list", func(t *testing.T) {
		sc := &Scenario{Steps: []Step{
			{Report: &ReportStep{Name: "out", Format: FormatMarkdown}},
		}}
		diags := Validate(sc)
		requireDiag(t, diags, LevelWarn, "report does not include any artifacts")
		if HasErrors(diags) {
			t.Fatalf("empty include is advisory only: %v", diags)
		}
	})
}

func TestHasErrors(t *testing.T) {
	warnOnly := []Diagnostic{{Level: LevelWarn, Message: "heads up"}}
	if HasErrors(warnOnly) {
		t.Fatal("warnings alone must not count as errors")
	}
	mixed := append(warnOnly, Diagnostic{Level: LevelError, Message: "broken"})
	if !HasErrors(mixed) {
		t.Fatal("expected error-level diagnostic to be detected")
	}
}

func TestDiagnosticString(t *testing.T) {
	bare := Diagnostic{Level: LevelWarn, Message: "something"}
	if got := bare.String(); got != "[warning] something" {
		t.Fatalf("unexpected rendering %q", got)
	}
	located := Diagnostic{Level: LevelError, Location: "scan recon", Message: "broken"}
	if got := located.String(); got != "[error] scan recon: broken" {
		t.Fatalf("unexpected rendering %q", got)
	}
}
