package schema

import (
	"strings"
	"testing"
)

func TestSummarizeCountsNestedSteps(t *testing.T) {
	lit := true
	sc := &Scenario{
		Imports: []string{"common.yml", "recon.yml", "common.yml"},
		Steps: []Step{
			{Let: &VariableDecl{Name: "target", Value: StringValue("10.0.0.5")}},
			{If: &ConditionalStep{
				Condition: Condition{Literal: &lit},
				Then: []Step{
					{Scan: &ScanStep{Name: "recon", Tool: "nmap", Params: map[string]string{"target": "${target}"}}},
				},
				Else: []Step{
					{Script: &ScriptStep{Name: "fallback", Params: map[string]string{"run": "echo skipped"}}},
				},
			}},
			{For: &LoopStep{Var: "host", In: StringValue("${target}"), Body: []Step{
				{AssetGroup: &AssetGroupStep{Name: "scope", Properties: map[string]string{"cidr": "10.0.0.0/24"}}},
			}}},
			{Report: &ReportStep{Name: "summary", Format: FormatStdout, Include: []string{"findings_recon"}}},
		},
	}

	s := sc.Summarize()

	// var + if + scan + script + for + asset group + report
	if s.TotalSteps != 7 {
		t.Fatalf("expected 7 steps, got %d", s.TotalSteps)
	}
	if len(s.Imports) != 2 || s.Imports[0] != "common.yml" || s.Imports[1] != "recon.yml" {
		t.Fatalf("unexpected imports %v", s.Imports)
	}
	if len(s.Variables) != 1 || s.Variables[0].Name != "target" {
		t.Fatalf("unexpected variables %v", s.Variables)
	}
	if len(s.Scans) != 1 || s.Scans[0].Tool != "nmap" {
		t.Fatalf("unexpected scans %v", s.Scans)
	}
	if len(s.Scripts) != 1 || s.Scripts[0].Run != "echo skipped" {
		t.Fatalf("unexpected scripts %v", s.Scripts)
	}
	if len(s.AssetGroups) != 1 || s.AssetGroups[0].Name != "scope" {
		t.Fatalf("unexpected asset groups %v", s.AssetGroups)
	}
	if len(s.Reports) != 1 || s.Reports[0].Includes[0] != "findings_recon" {
		t.Fatalf("unexpected reports %v", s.Reports)
	}
}

func TestSummaryString(t *testing.T) {
	sc := &Scenario{Steps: []Step{
		{Let: &VariableDecl{Name: "ports", Value: ArrayValue([]Value{NumberValue(22), NumberValue(80)})}},
		{Scan: &ScanStep{Name: "recon", Tool: "nmap", Params: map[string]string{"target": "10.0.0.5"}}},
	}}

	out := sc.Summarize().String()
	for _, want := range []string{
		"Scenario: 2 step(s)",
		"  - ports = [22,80]",
		"  - recon (tool: nmap)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}
