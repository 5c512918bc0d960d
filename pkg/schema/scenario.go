// Package schema defines the Go struct types for the scenario YAML schema,
// strict parsing with import flattening, and pre-execution validation.
package schema

// Scenario is a flattened directive sequence ready for execution. Imports
// are already resolved by the loader; the runtime never sees one.
type Scenario struct {
	Steps   []Step   `yaml:"steps,omitempty" json:"steps,omitempty"`
	Imports []string `yaml:"-" json:"imports,omitempty"`
}

// StepKind names one directive variant.
type StepKind string

const (
	StepImport      StepKind = "import"
	StepVariable    StepKind = "variable"
	StepSecret      StepKind = "secret"
	StepAssetGroup  StepKind = "asset_group"
	StepScan        StepKind = "scan"
	StepScript      StepKind = "script"
	StepConditional StepKind = "conditional"
	StepLoop        StepKind = "loop"
	StepReport      StepKind = "report"
	StepUnknown     StepKind = ""
)

// Step is the tagged directive variant. Exactly one field is set; the
// loader rejects steps with zero or multiple directives.
type Step struct {
	Import     *ImportStep     `yaml:"import,omitempty" json:"import,omitempty"`
	Let        *VariableDecl   `yaml:"let,omitempty" json:"let,omitempty"`
	Secret     *SecretStep     `yaml:"secret,omitempty" json:"secret,omitempty"`
	AssetGroup *AssetGroupStep `yaml:"asset_group,omitempty" json:"asset_group,omitempty"`
	Scan       *ScanStep       `yaml:"scan,omitempty" json:"scan,omitempty"`
	Script     *ScriptStep     `yaml:"script,omitempty" json:"script,omitempty"`
	If         *ConditionalStep `yaml:"if,omitempty" json:"if,omitempty"`
	For        *LoopStep       `yaml:"for,omitempty" json:"for,omitempty"`
	Report     *ReportStep     `yaml:"report,omitempty" json:"report,omitempty"`
}

// Kind returns the directive variant, or StepUnknown when the step is
// empty or ambiguous.
func (s Step) Kind() StepKind {
	var kind StepKind
	count := 0
	mark := func(k StepKind, set bool) {
		if set {
			kind = k
			count++
		}
	}
	mark(StepImport, s.Import != nil)
	mark(StepVariable, s.Let != nil)
	mark(StepSecret, s.Secret != nil)
	mark(StepAssetGroup, s.AssetGroup != nil)
	mark(StepScan, s.Scan != nil)
	mark(StepScript, s.Script != nil)
	mark(StepConditional, s.If != nil)
	mark(StepLoop, s.For != nil)
	mark(StepReport, s.Report != nil)
	if count != 1 {
		return StepUnknown
	}
	return kind
}

// ImportStep pulls another scenario file into the sequence. Resolved by
// the loader; never executed.
type ImportStep struct {
	Path string `yaml:"path" json:"path" jsonschema:"required"`
}

// VariableDecl binds a name to a literal value. External overrides for the
// same name win for the run's duration.
type VariableDecl struct {
	Name  string `yaml:"name" json:"name" jsonschema:"required"`
	Value Value  `yaml:"value" json:"value" jsonschema:"required"`
}

// SecretStep registers a secret descriptor. The descriptor carries no
// secret material; resolution happens on first use.
type SecretStep struct {
	Name     string            `yaml:"name" json:"name" jsonschema:"required"`
	From     string            `yaml:"from" json:"from" jsonschema:"required,enum=env,enum=file,enum=vault"`
	Mappings map[string]string `yaml:"mappings,omitempty" json:"mappings,omitempty"`
	Path     string            `yaml:"path,omitempty" json:"path,omitempty"`
}

// AssetGroupStep declares a named group of scoped assets. Duplicate
// property keys are overwritten by the last definition.
type AssetGroupStep struct {
	Name       string            `yaml:"name" json:"name" jsonschema:"required"`
	Properties map[string]string `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// ScanStep invokes a reconnaissance tool. The builtin scanner ("nmap")
// gets specialized handling; any other tool runs through the generic
// process adapter.
type ScanStep struct {
	Name   string            `yaml:"name" json:"name" jsonschema:"required"`
	Tool   string            `yaml:"tool" json:"tool" jsonschema:"required"`
	Params map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
	Output string            `yaml:"output,omitempty" json:"output,omitempty"`
}

// ScriptStep runs an arbitrary local command. Params follow the "script"
// tool schema: run (required), args, cwd.
type ScriptStep struct {
	Name   string            `yaml:"name" json:"name" jsonschema:"required"`
	Params map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
	Output string            `yaml:"output,omitempty" json:"output,omitempty"`
}

// ConditionalStep evaluates a condition and executes exactly one branch.
type ConditionalStep struct {
	Condition Condition `yaml:"condition" json:"condition" jsonschema:"required"`
	Then      []Step    `yaml:"then,omitempty" json:"then,omitempty"`
	Else      []Step    `yaml:"else,omitempty" json:"else,omitempty"`
}

// LoopStep iterates a body once per element of the iterable. A bare
// non-array value iterates exactly once. The loop variable shadows any
// existing binding and is restored when the loop ends.
type LoopStep struct {
	Var  string `yaml:"var" json:"var" jsonschema:"required"`
	In   Value  `yaml:"in" json:"in" jsonschema:"required"`
	Body []Step `yaml:"body,omitempty" json:"body,omitempty"`
}

// ReportFormat selects a reporting backend.
type ReportFormat string

const (
	FormatStdout   ReportFormat = "stdout"
	FormatHTML     ReportFormat = "html"
	FormatMarkdown ReportFormat = "markdown"
	FormatSarif    ReportFormat = "sarif"
)

// Extension returns the file extension for file-based formats.
func (f ReportFormat) Extension() string {
	switch f {
	case FormatHTML:
		return "html"
	case FormatMarkdown:
		return "md"
	case FormatSarif:
		return "sarif"
	}
	return ""
}

// ReportStep renders included artifacts into one output format.
// Unrecognized options pass through verbatim into the emitted artifact.
type ReportStep struct {
	Name    string            `yaml:"name" json:"name" jsonschema:"required"`
	Format  ReportFormat      `yaml:"format" json:"format" jsonschema:"required,enum=stdout,enum=html,enum=markdown,enum=sarif"`
	Include []string          `yaml:"include,omitempty" json:"include,omitempty"`
	Options map[string]string `yaml:"options,omitempty" json:"options,omitempty"`
	Output  string            `yaml:"output,omitempty" json:"output,omitempty"`
}
