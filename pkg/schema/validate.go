package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// DiagnosticLevel tags a diagnostic as blocking or advisory.
type DiagnosticLevel string

const (
	LevelError DiagnosticLevel = "error"
	LevelWarn  DiagnosticLevel = "warning"
)

// Diagnostic is one pre-execution finding about a scenario. Diagnostics
// are pure inspection: producing them never spawns a process or touches
// the stores.
type Diagnostic struct {
	Level    DiagnosticLevel `json:"level"`
	Location string          `json:"location,omitempty"`
	Message  string          `json:"message"`
}

func (d Diagnostic) IsError() bool { return d.Level == LevelError }

func (d Diagnostic) String() string {
	if d.Location == "" {
		return fmt.Sprintf("[%s] %s", d.Level, d.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", d.Level, d.Location, d.Message)
}

// Validate runs the full plan pass over a flattened scenario: a semantic
// JSON Schema check of the document shape followed by the per-step rules
// (tool schemas, secret descriptors, loop iterables). It returns zero or
// more diagnostics and has no side effects.
func Validate(sc *Scenario) []Diagnostic {
	ctx := &validationContext{}
	ctx.diags = append(ctx.diags, validateSemantic(sc)...)
	validateSteps(sc.Steps, ctx)
	return ctx.diags
}

// HasErrors reports whether any diagnostic is error-level.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.IsError() {
			return true
		}
	}
	return false
}

// validateSemantic validates the scenario against the generated JSON
// Schema. The scenario is marshalled to JSON and checked with
// santhosh-tekuri/jsonschema.
func validateSemantic(sc *Scenario) []Diagnostic {
	fail := func(msg string, err error) []Diagnostic {
		return []Diagnostic{{Level: LevelError, Message: fmt.Sprintf("%s: %v", msg, err)}}
	}

	data, err := json.Marshal(sc)
	if err != nil {
		return fail("marshal for schema validation", err)
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return fail("generate schema", err)
	}

	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return fail("unmarshal schema", err)
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("scenario-v0.json", schemaDoc); err != nil {
		return fail("add schema resource", err)
	}
	sch, err := c.Compile("scenario-v0.json")
	if err != nil {
		return fail("compile schema", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fail("unmarshal document", err)
	}

	if err := sch.Validate(doc); err != nil {
		var diags []Diagnostic
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, cause := range flattenValidationErrors(ve) {
				diags = append(diags, Diagnostic{
					Level:    LevelError,
					Location: strings.Join(cause.InstanceLocation, "/"),
					Message:  fmt.Sprintf("%v", cause.ErrorKind),
				})
			}
		} else {
			diags = append(diags, Diagnostic{Level: LevelError, Message: err.Error()})
		}
		return diags
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// validationContext tracks the location stack while walking nested steps.
type validationContext struct {
	stack []string
	diags []Diagnostic
}

func (ctx *validationContext) push(label string) { ctx.stack = append(ctx.stack, label) }
func (ctx *validationContext) pop()              { ctx.stack = ctx.stack[:len(ctx.stack)-1] }

func (ctx *validationContext) location() string {
	return strings.Join(ctx.stack, " > ")
}

func (ctx *validationContext) error(format string, args ...any) {
	ctx.diags = append(ctx.diags, Diagnostic{
		Level:    LevelError,
		Location: ctx.location(),
		Message:  fmt.Sprintf(format, args...),
	})
}

func (ctx *validationContext) warning(format string, args ...any) {
	ctx.diags = append(ctx.diags, Diagnostic{
		Level:    LevelWarn,
		Location: ctx.location(),
		Message:  fmt.Sprintf(format, args...),
	})
}

func validateSteps(steps []Step, ctx *validationContext) {
	for i, step := range steps {
		switch step.Kind() {
		case StepImport:
			ctx.push(fmt.Sprintf("import %s", step.Import.Path))
			ctx.error("import was not resolved before validation; run the flattening loader first")
			ctx.pop()
		case StepVariable:
			// Variable declarations are free-form.
		case StepSecret:
			ctx.push(fmt.Sprintf("secret %s", step.Secret.Name))
			validateSecret(step.Secret, ctx)
			ctx.pop()
		case StepAssetGroup:
			// Asset group properties are free-form.
		case StepScan:
			ctx.push(fmt.Sprintf("scan %s", step.Scan.Name))
			validateScan(step.Scan, ctx)
			ctx.pop()
		case StepScript:
			ctx.push(fmt.Sprintf("script %s", step.Script.Name))
			validateParams("script", step.Script.Params, ctx)
			ctx.pop()
		case StepConditional:
			ctx.push(fmt.Sprintf("if %s", step.If.Condition))
			if err := step.If.Condition.Validate(); err != nil {
				ctx.error("%v", err)
			}
			validateSteps(step.If.Then, ctx)
			ctx.pop()
			if len(step.If.Else) > 0 {
				ctx.push("else")
				validateSteps(step.If.Else, ctx)
				ctx.pop()
			}
		case StepLoop:
			ctx.push(fmt.Sprintf("for %s", step.For.Var))
			if step.For.Var == "" {
				ctx.error("loop variable name cannot be empty")
			}
			if step.For.In.IsZero() {
				ctx.error("loop iterable cannot be empty")
			}
			validateSteps(step.For.Body, ctx)
			ctx.pop()
		case StepReport:
			ctx.push(fmt.Sprintf("report %s", step.Report.Name))
			validateReport(step.Report, ctx)
			ctx.pop()
		default:
			ctx.push(fmt.Sprintf("step %d", i))
			ctx.error("step must contain exactly one directive")
			ctx.pop()
		}
	}
}

func validateSecret(secret *SecretStep, ctx *validationContext) {
	if strings.TrimSpace(secret.Name) == "" {
		ctx.error("secret name cannot be empty")
	}

	switch secret.From {
	case "env":
		if len(secret.Mappings) == 0 {
			ctx.error("env secret requires at least one mapping")
		}
		for alias, envKey := range secret.Mappings {
			if strings.TrimSpace(alias) == "" {
				ctx.error("env secret mapping name cannot be empty")
			}
			if strings.TrimSpace(envKey) == "" {
				ctx.error("env secret mapping %q references an empty variable name", alias)
			}
		}
	case "file":
		if strings.TrimSpace(secret.Path) == "" {
			ctx.error("file secret path cannot be empty")
		}
	case "vault":
		if strings.TrimSpace(secret.Path) == "" {
			ctx.error("vault secret requires a path")
		}
		ctx.warning("vault provider is not implemented yet; this step will be reported as not implemented at runtime")
	default:
		ctx.error("unknown secret provider %q (expected env, file or vault)", secret.From)
	}
}

func validateScan(scan *ScanStep, ctx *validationContext) {
	if schema := lookupToolSchema(scan.Tool); schema != nil {
		validateWithSchema(scan.Tool, scan.Params, schema, ctx)
		return
	}
	if value, ok := scan.Params["target"]; ok {
		if strings.TrimSpace(value) == "" {
			ctx.error("parameter 'target' cannot be empty")
		}
	} else {
		ctx.warning("parameter 'target' is not set; scans may rely on tool defaults")
	}
	enforceKnown(scan.Params, []string{"target", "flags", "args", "cwd"}, ctx, scan.Tool)
}

func validateParams(tool string, params map[string]string, ctx *validationContext) {
	if schema := lookupToolSchema(tool); schema != nil {
		validateWithSchema(tool, params, schema, ctx)
	}
}

func validateReport(report *ReportStep, ctx *validationContext) {
	switch report.Format {
	case FormatStdout, FormatHTML, FormatMarkdown, FormatSarif:
	default:
		ctx.error("unknown report format %q", report.Format)
	}
	if len(report.Include) == 0 {
		ctx.warning("report does not include any artifacts")
	}
}
