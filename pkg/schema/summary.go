package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Summary is a flat inventory of a scenario used by the plan and run
// front ends. Nested conditional and loop bodies are included.
type Summary struct {
	TotalSteps  int                 `json:"total_steps"`
	Imports     []string            `json:"imports"`
	Variables   []VariableSummary   `json:"variables"`
	AssetGroups []AssetGroupSummary `json:"asset_groups"`
	Scans       []ScanSummary       `json:"scans"`
	Scripts     []ScriptSummary     `json:"scripts"`
	Reports     []ReportSummary     `json:"reports"`
}

type VariableSummary struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

type AssetGroupSummary struct {
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties"`
}

type ScanSummary struct {
	Name   string `json:"name"`
	Tool   string `json:"tool"`
	Output string `json:"output,omitempty"`
}

type ScriptSummary struct {
	Name   string `json:"name"`
	Run    string `json:"run"`
	Output string `json:"output,omitempty"`
}

type ReportSummary struct {
	Name     string   `json:"name"`
	Includes []string `json:"includes"`
}

// Summarize builds the inventory for a flattened scenario.
func (sc *Scenario) Summarize() Summary {
	imports := append([]string(nil), sc.Imports...)
	sort.Strings(imports)

	s := Summary{Imports: dedupe(imports)}
	collectSummary(sc.Steps, &s)
	return s
}

func collectSummary(steps []Step, s *Summary) {
	for _, step := range steps {
		switch step.Kind() {
		case StepVariable:
			s.TotalSteps++
			s.Variables = append(s.Variables, VariableSummary{Name: step.Let.Name, Value: step.Let.Value})
		case StepAssetGroup:
			s.TotalSteps++
			s.AssetGroups = append(s.AssetGroups, AssetGroupSummary{Name: step.AssetGroup.Name, Properties: step.AssetGroup.Properties})
		case StepScan:
			s.TotalSteps++
			s.Scans = append(s.Scans, ScanSummary{Name: step.Scan.Name, Tool: step.Scan.Tool, Output: step.Scan.Output})
		case StepScript:
			s.TotalSteps++
			s.Scripts = append(s.Scripts, ScriptSummary{Name: step.Script.Name, Run: step.Script.Params["run"], Output: step.Script.Output})
		case StepReport:
			s.TotalSteps++
			s.Reports = append(s.Reports, ReportSummary{Name: step.Report.Name, Includes: step.Report.Include})
		case StepConditional:
			s.TotalSteps++
			collectSummary(step.If.Then, s)
			collectSummary(step.If.Else, s)
		case StepLoop:
			s.TotalSteps++
			collectSummary(step.For.Body, s)
		default:
			s.TotalSteps++
		}
	}
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	var prev string
	for i, s := range sorted {
		if i == 0 || s != prev {
			out = append(out, s)
		}
		prev = s
	}
	return out
}

// String renders a human-readable plan summary.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario: %d step(s)\n", s.TotalSteps)
	if len(s.Imports) > 0 {
		fmt.Fprintf(&b, "Imports:\n")
		for _, imp := range s.Imports {
			fmt.Fprintf(&b, "  - %s\n", imp)
		}
	}
	if len(s.Variables) > 0 {
		fmt.Fprintf(&b, "Variables:\n")
		for _, v := range s.Variables {
			fmt.Fprintf(&b, "  - %s = %s\n", v.Name, v.Value.Render())
		}
	}
	if len(s.AssetGroups) > 0 {
		fmt.Fprintf(&b, "Asset groups:\n")
		for _, g := range s.AssetGroups {
			fmt.Fprintf(&b, "  - %s (%d properties)\n", g.Name, len(g.Properties))
		}
	}
	if len(s.Scans) > 0 {
		fmt.Fprintf(&b, "Scans:\n")
		for _, sc := range s.Scans {
			fmt.Fprintf(&b, "  - %s (tool: %s)\n", sc.Name, sc.Tool)
		}
	}
	if len(s.Scripts) > 0 {
		fmt.Fprintf(&b, "Scripts:\n")
		for _, sc := range s.Scripts {
			fmt.Fprintf(&b, "  - %s (run: %s)\n", sc.Name, sc.Run)
		}
	}
	if len(s.Reports) > 0 {
		fmt.Fprintf(&b, "Reports:\n")
		for _, r := range s.Reports {
			fmt.Fprintf(&b, "  - %s (includes: %s)\n", r.Name, strings.Join(r.Includes, ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
