package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/axionsec/axion/pkg/artifact"
	"github.com/axionsec/axion/pkg/providers"
	"github.com/axionsec/axion/pkg/scanner"
	"github.com/axionsec/axion/pkg/schema"
)

// Executor runs flattened scenarios. The zero value is not usable; use
// NewExecutor so the process executor and output writer get defaults.
type Executor struct {
	// ArtifactsDir is where artifacts and reports are persisted. Empty
	// disables persistence; everything stays in memory.
	ArtifactsDir string

	// Exec launches external tools. Tests substitute a fake.
	Exec providers.CommandExecutor

	// Stdout receives stdout-format report output.
	Stdout io.Writer

	// Trace, when set, receives one JSONL event per executed step.
	Trace *TraceWriter
}

// NewExecutor returns an executor wired to the real process launcher.
func NewExecutor(artifactsDir string) *Executor {
	return &Executor{
		ArtifactsDir: artifactsDir,
		Exec:         &providers.RealExecutor{},
		Stdout:       os.Stdout,
	}
}

// Execute runs the scenario with no external overrides.
func (e *Executor) Execute(ctx context.Context, sc *schema.Scenario) *Outcome {
	return e.ExecuteWithVars(ctx, sc, nil, nil)
}

// ExecuteWithVars runs the scenario with external variable and secret
// overrides. An override wins over any in-scenario declaration of the
// same name for the whole run. Step failures never abort the run; each
// step records its own outcome and execution continues.
func (e *Executor) ExecuteWithVars(ctx context.Context, sc *schema.Scenario, varOverrides map[string]schema.Value, secretOverrides map[string]string) *Outcome {
	vars := NewVarStore(varOverrides)
	secrets := NewSecretStore(secretOverrides)
	r := &run{
		exec:    e,
		vars:    vars,
		secrets: secrets,
		res:     &resolver{vars: vars, secrets: secrets},
		store:   NewArtifactStore(),
	}

	r.executeSteps(ctx, sc.Steps)

	return &Outcome{
		Report:    Report{Steps: r.steps},
		Artifacts: r.store.All(),
	}
}

// run is the mutable state of one execution.
type run struct {
	exec    *Executor
	vars    *VarStore
	secrets *SecretStore
	res     *resolver
	store   *ArtifactStore
	steps   []StepExecution
}

func (r *run) executeSteps(ctx context.Context, steps []schema.Step) {
	for _, step := range steps {
		switch step.Kind() {
		case schema.StepImport:
			// Flattened by the loader; nothing to do at execution time.
			continue
		case schema.StepVariable:
			r.record(r.handleVariable(step.Let))
		case schema.StepSecret:
			r.record(r.handleSecret(step.Secret))
		case schema.StepAssetGroup:
			r.record(r.handleAssetGroup(step.AssetGroup))
		case schema.StepScan:
			r.record(r.handleScan(ctx, step.Scan))
		case schema.StepScript:
			r.record(r.handleScript(ctx, step.Script))
		case schema.StepConditional:
			r.handleConditional(ctx, step.If)
		case schema.StepLoop:
			r.handleLoop(ctx, step.For)
		case schema.StepReport:
			r.record(r.handleReport(step.Report))
		}
	}
}

// record finalizes one step outcome: the artifact payload and the
// message pass through the secret mask before anything observable
// retains them, then the artifact is stored (and optionally persisted)
// and the execution is appended and traced.
func (r *run) record(outcome stepOutcome) {
	if outcome.artifact != nil {
		a := *outcome.artifact
		a.Data = r.maskData(a.Data)
		if outcome.persist {
			if path := r.store.persist(r.exec.ArtifactsDir, a, r.secrets.Mask); path != "" {
				a.Path = path
			}
		}
		r.store.Put(a)
		if outcome.execution.Message != "" {
			outcome.execution.Message = expandArtifactPath(outcome.execution.Message, a.Path)
		}
	}
	outcome.execution.Message = r.secrets.Mask(outcome.execution.Message)
	r.steps = append(r.steps, outcome.execution)
	if r.exec.Trace != nil {
		if err := r.exec.Trace.Write(&r.steps[len(r.steps)-1]); err != nil {
			logrus.WithError(err).Warn("could not write trace event")
		}
	}
}

// maskData round-trips an artifact payload through JSON and masks every
// string in it. Artifacts only ever hold JSON-serializable payloads.
func (r *run) maskData(data any) any {
	raw, err := json.Marshal(data)
	if err != nil {
		logrus.WithError(err).Warn("could not encode artifact payload for masking")
		return data
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return data
	}
	return r.secrets.MaskValue(decoded)
}

// artifactPathToken stands in for the persisted artifact path inside a
// step message until record learns the real path.
const artifactPathToken = "\x00artifact-path\x00"

func expandArtifactPath(message, path string) string {
	if path == "" {
		path = "<memory>"
	}
	return strings.ReplaceAll(message, artifactPathToken, path)
}

func (r *run) handleVariable(decl *schema.VariableDecl) stepOutcome {
	raw := decl.Value
	note := ""
	if override, ok := r.vars.Override(decl.Name); ok {
		raw = override
		note = " (override)"
	}
	resolved, err := r.res.resolveValue(raw)
	if err != nil {
		return fromExecution(failed(decl.Name, schema.StepVariable, fmt.Sprintf("failed to resolve variables: %v", err)))
	}
	r.vars.Declare(decl.Name, resolved)
	message := fmt.Sprintf("%s = %s%s", decl.Name, resolved.Render(), note)
	return fromExecution(completed(decl.Name, schema.StepVariable, message))
}

func (r *run) handleSecret(step *schema.SecretStep) stepOutcome {
	switch step.From {
	case "env":
		if len(step.Mappings) == 0 {
			return fromExecution(failed(step.Name, schema.StepSecret, "env secret requires at least one mapping"))
		}
		r.secrets.Register(step.Name, &providers.EnvSecretProvider{Mappings: step.Mappings})
		noun := "mappings"
		if len(step.Mappings) == 1 {
			noun = "mapping"
		}
		message := fmt.Sprintf("secret %q registered from env (%d %s)", step.Name, len(step.Mappings), noun)
		return fromExecution(completed(step.Name, schema.StepSecret, message))
	case "file":
		if step.Path == "" {
			return fromExecution(failed(step.Name, schema.StepSecret, "file secret requires a path"))
		}
		r.secrets.Register(step.Name, &providers.FileSecretProvider{Path: step.Path})
		return fromExecution(completed(step.Name, schema.StepSecret, fmt.Sprintf("secret %q registered from file", step.Name)))
	case "vault":
		r.secrets.Register(step.Name, &providers.VaultSecretProvider{Path: step.Path})
		return fromExecution(notImplemented(step.Name, schema.StepSecret, "vault provider is not implemented yet"))
	default:
		return fromExecution(failed(step.Name, schema.StepSecret, fmt.Sprintf("unknown secret source %q", step.From)))
	}
}

func (r *run) handleAssetGroup(step *schema.AssetGroupStep) stepOutcome {
	resolved, err := r.res.resolveMap(step.Properties)
	if err != nil {
		return fromExecution(failed(step.Name, schema.StepAssetGroup, fmt.Sprintf("failed to resolve variables: %v", err)))
	}
	a := artifact.Stored{
		Name: fmt.Sprintf("asset_group:%s", step.Name),
		Kind: artifact.KindAssetGroup,
		Data: artifact.AssetGroup{Name: step.Name, Properties: resolved},
	}
	return withArtifact(skipped(step.Name, schema.StepAssetGroup, "stored asset group definition"), a, false)
}

func (r *run) handleScan(ctx context.Context, step *schema.ScanStep) stepOutcome {
	params, err := r.res.resolveMap(step.Params)
	if err != nil {
		return fromExecution(failed(step.Name, schema.StepScan, fmt.Sprintf("failed to resolve variables: %v", err)))
	}
	if step.Tool == scanner.ToolName {
		return r.runNmapScan(ctx, step, params)
	}
	return r.runGenericScan(ctx, step, params)
}

func (r *run) runGenericScan(ctx context.Context, step *schema.ScanStep, params map[string]string) stepOutcome {
	var args []string
	flags, err := tokenize(params["flags"])
	if err != nil {
		return fromExecution(failed(step.Name, schema.StepScan, fmt.Sprintf("failed to parse flags: %v", err)))
	}
	args = append(args, flags...)

	extra, err := tokenize(params["args"])
	if err != nil {
		return fromExecution(failed(step.Name, schema.StepScan, fmt.Sprintf("failed to parse args: %v", err)))
	}
	args = append(args, extra...)

	if target := params["target"]; target != "" {
		args = append(args, target)
	}

	inv, err := runProcess(ctx, r.exec.Exec, step.Tool, args, params["cwd"])
	if err != nil {
		return fromExecution(failed(step.Name, schema.StepScan, fmt.Sprintf("failed to execute tool %q: %v", step.Tool, err)))
	}

	label := step.Output
	if label == "" {
		label = fmt.Sprintf("scan_%s", step.Name)
	}
	a := artifact.Stored{
		Name: label,
		Kind: artifact.KindScan,
		Data: artifact.Invocation{
			Tool:       step.Tool,
			Params:     params,
			Invocation: append([]string{step.Tool}, args...),
			Stdout:     string(inv.stdout),
			Stderr:     string(inv.stderr),
			ExitCode:   inv.exitCode,
			StartedAt:  inv.startedAt.UTC().Format(time.RFC3339),
			DurationMS: inv.duration.Milliseconds(),
		},
	}

	message := fmt.Sprintf("%s executed. exit: %d. artifact: %s", step.Tool, *inv.exitCode, artifactPathToken)
	execution := completed(step.Name, schema.StepScan, message)
	if *inv.exitCode != 0 {
		execution = failed(step.Name, schema.StepScan, message)
	}
	return withArtifact(execution, a, true)
}

func (r *run) runNmapScan(ctx context.Context, step *schema.ScanStep, params map[string]string) stepOutcome {
	target := params["target"]
	if target == "" {
		return fromExecution(failed(step.Name, schema.StepScan, "missing required parameter: target"))
	}
	flags, err := tokenize(params["flags"])
	if err != nil {
		return fromExecution(failed(step.Name, schema.StepScan, fmt.Sprintf("failed to parse flags: %v", err)))
	}

	// XML on stdout is forced so results are always parseable; a user
	// supplied output flag cannot override it because it comes later on
	// the command line.
	args := append(flags, scanner.XMLOutputArgs...)
	args = append(args, target)

	inv, err := runProcess(ctx, r.exec.Exec, step.Tool, args, "")
	if err != nil {
		return fromExecution(failed(step.Name, schema.StepScan, fmt.Sprintf("failed to spawn %q: %v", step.Tool, err)))
	}

	label := step.Output
	if label == "" {
		label = fmt.Sprintf("findings_%s", step.Name)
	}

	if *inv.exitCode != 0 {
		message := fmt.Sprintf("%s exited with code %d\nstdout:\n%s\nstderr:\n%s",
			step.Tool, *inv.exitCode, truncateOutput(inv.stdout), truncateOutput(inv.stderr))
		return fromExecution(failed(step.Name, schema.StepScan, message))
	}

	results, err := scanner.ParseXML(inv.stdout, target)
	if err != nil {
		// The raw capture is still worth keeping when the XML is broken.
		a := artifact.Stored{
			Name: label,
			Kind: artifact.KindScan,
			Data: artifact.Invocation{
				Tool:       step.Tool,
				Params:     params,
				Invocation: append([]string{step.Tool}, args...),
				Stdout:     string(inv.stdout),
				Stderr:     string(inv.stderr),
				ExitCode:   inv.exitCode,
				StartedAt:  inv.startedAt.UTC().Format(time.RFC3339),
				DurationMS: inv.duration.Milliseconds(),
			},
		}
		execution := failed(step.Name, schema.StepScan, fmt.Sprintf("failed to parse nmap output: %v", err))
		return withArtifact(execution, a, true)
	}

	a := artifact.Stored{
		Name: label,
		Kind: artifact.KindScan,
		Data: *results,
	}
	message := fmt.Sprintf("%s completed for target %s.\nartifact: %s", step.Tool, target, artifactPathToken)
	return withArtifact(completed(step.Name, schema.StepScan, message), a, true)
}

func (r *run) handleScript(ctx context.Context, step *schema.ScriptStep) stepOutcome {
	params, err := r.res.resolveMap(step.Params)
	if err != nil {
		return fromExecution(failed(step.Name, schema.StepScript, fmt.Sprintf("failed to resolve variables: %v", err)))
	}

	runValue := params["run"]
	if runValue == "" {
		return fromExecution(failed(step.Name, schema.StepScript, "missing required parameter: run"))
	}
	words, err := tokenize(runValue)
	if err != nil {
		return fromExecution(failed(step.Name, schema.StepScript, fmt.Sprintf("failed to parse 'run' command: %v", err)))
	}
	if len(words) == 0 {
		return fromExecution(failed(step.Name, schema.StepScript, "run command produced no executable"))
	}
	command, args := words[0], words[1:]

	extra, err := tokenize(params["args"])
	if err != nil {
		return fromExecution(failed(step.Name, schema.StepScript, fmt.Sprintf("failed to parse 'args' value: %v", err)))
	}
	args = append(args, extra...)

	inv, err := runProcess(ctx, r.exec.Exec, command, args, params["cwd"])
	if err != nil {
		return fromExecution(failed(step.Name, schema.StepScript, fmt.Sprintf("failed to execute script %q: %v", step.Name, err)))
	}

	label := step.Output
	if label == "" {
		label = fmt.Sprintf("script_%s", step.Name)
	}
	a := artifact.Stored{
		Name: label,
		Kind: artifact.KindScript,
		Data: artifact.Script{
			Name:       step.Name,
			Command:    append([]string{command}, args...),
			Stdout:     string(inv.stdout),
			Stderr:     string(inv.stderr),
			ExitCode:   inv.exitCode,
			StartedAt:  inv.startedAt.UTC().Format(time.RFC3339),
			DurationMS: inv.duration.Milliseconds(),
		},
	}

	message := fmt.Sprintf("script %q executed with code %d. artifact: %s", label, *inv.exitCode, artifactPathToken)
	execution := completed(step.Name, schema.StepScript, message)
	if *inv.exitCode != 0 {
		execution = failed(step.Name, schema.StepScript, message)
	}
	return withArtifact(execution, a, true)
}

func (r *run) handleConditional(ctx context.Context, step *schema.ConditionalStep) {
	name := fmt.Sprintf("if %s", step.Condition)
	result, err := r.res.evalCondition(step.Condition)
	if err != nil {
		r.record(fromExecution(failed(name, schema.StepConditional, err.Error())))
		return
	}
	r.record(fromExecution(completed(name, schema.StepConditional, fmt.Sprintf("condition evaluated to %t", result))))

	branch := step.Then
	if !result {
		branch = step.Else
	}
	if len(branch) > 0 {
		r.executeSteps(ctx, branch)
	}
}

func (r *run) handleLoop(ctx context.Context, step *schema.LoopStep) {
	name := fmt.Sprintf("for %s in %s", step.Var, step.In.Render())
	items, err := r.resolveIterable(step.In)
	if err != nil {
		r.record(fromExecution(failed(name, schema.StepLoop, err.Error())))
		return
	}

	iterations := 0
	var guard ShadowGuard
	for i, item := range items {
		if i == 0 {
			guard = r.vars.Shadow(step.Var, item)
		} else {
			r.vars.Declare(step.Var, item)
		}
		iterations++
		r.executeSteps(ctx, step.Body)
	}
	if iterations > 0 {
		guard.Release()
	}
	r.record(fromExecution(completed(name, schema.StepLoop, fmt.Sprintf("executed %d iteration(s)", iterations))))
}

// resolveIterable produces the loop's item sequence. Arrays iterate per
// element; any other resolved value iterates exactly once.
func (r *run) resolveIterable(in schema.Value) ([]schema.Value, error) {
	resolved, err := r.res.resolveValue(in)
	if err != nil {
		return nil, err
	}
	if resolved.Kind() == schema.KindArray {
		return resolved.Items(), nil
	}
	return []schema.Value{resolved}, nil
}
