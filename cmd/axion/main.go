package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/axionsec/axion/pkg/runtime"
	"github.com/axionsec/axion/pkg/schema"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	loadDotEnv() // load .env file if present (gitignored)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadDotEnv reads a .env file from the working directory and sets
// any variables that aren't already set in the environment.
// Lines are KEY=VALUE (or KEY="VALUE"). Comments (#) and blanks are skipped.
// The .env file is gitignored so secrets never end up in source control.
func loadDotEnv() {
	f, err := os.Open(".env")
	if err != nil {
		return // no .env file, that's fine
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		val = strings.Trim(val, `"'`)
		// Don't overwrite existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "axion",
	Short: "Scenario execution engine for security assessments",
	Long:  "axion — parse, validate and execute declarative pentest scenarios with artifact capture and multi-format reporting.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logrus.SetOutput(os.Stderr)
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
}

var verbose bool

// --- plan ---

var (
	planJSON    bool
	planVars    []string
	planSecrets []string
)

var planCmd = &cobra.Command{
	Use:   "plan [scenario.yaml]",
	Short: "Parse a scenario file and print the execution summary",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	sc, err := schema.LoadAndFlatten(args[0])
	if err != nil {
		return err
	}
	overrides, err := parseVarOverrides(planVars)
	if err != nil {
		return err
	}
	secretOverrides, err := parseSecretOverrides(planSecrets)
	if err != nil {
		return err
	}

	diagnostics := schema.Validate(sc)
	summary := sc.Summarize()

	if planJSON {
		payload := map[string]any{
			"summary":     summary,
			"diagnostics": diagnostics,
			"overrides":   overrides,
			"secrets":     maskedSecretKeys(secretOverrides),
		}
		pretty, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(pretty))
	} else {
		printDiagnostics(diagnostics)
		fmt.Println(summary)
		printOverrides(overrides, secretOverrides)
	}

	if schema.HasErrors(diagnostics) {
		return fmt.Errorf("validation failed")
	}
	return nil
}

// --- run ---

var (
	runJSON         bool
	runVars         []string
	runSecrets      []string
	runArtifactsDir string
	runTracePath    string
)

var runCmd = &cobra.Command{
	Use:   "run [scenario.yaml]",
	Short: "Execute a scenario file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	sc, err := schema.LoadAndFlatten(args[0])
	if err != nil {
		return err
	}
	overrides, err := parseVarOverrides(runVars)
	if err != nil {
		return err
	}
	secretOverrides, err := parseSecretOverrides(runSecrets)
	if err != nil {
		return err
	}

	summary := sc.Summarize()
	executor := runtime.NewExecutor(runArtifactsDir)
	if runTracePath != "" {
		trace, err := runtime.NewTraceWriter(runTracePath)
		if err != nil {
			return err
		}
		defer trace.Close()
		executor.Trace = trace
	}

	outcome := executor.ExecuteWithVars(context.Background(), sc, overrides, secretOverrides)

	if runJSON {
		payload := map[string]any{
			"summary":   summary,
			"execution": outcome.Report,
			"artifacts": outcome.Artifacts,
			"overrides": overrides,
			"secrets":   maskedSecretKeys(secretOverrides),
		}
		pretty, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(pretty))
		return nil
	}

	fmt.Println(summary)
	fmt.Println()
	printOverrides(overrides, secretOverrides)
	fmt.Println(outcome.Report)
	if outcome.Report.HasFailures() {
		fmt.Println("\n[warn] some steps failed")
	}
	if len(outcome.Artifacts) > 0 {
		fmt.Println("\nArtifacts:")
		names := make([]string, 0, len(outcome.Artifacts))
		for name := range outcome.Artifacts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			a := outcome.Artifacts[name]
			if a.Path != "" {
				fmt.Printf("  - %s (%s) -> %s\n", a.Name, a.Kind, a.Path)
			} else {
				fmt.Printf("  - %s (%s)\n", a.Name, a.Kind)
			}
		}
	}
	return nil
}

// --- schema ---

var (
	schemaTool     string
	schemaFormat   string
	schemaScenario bool
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Export builtin tool schemas or the scenario JSON Schema",
	RunE:  runSchema,
}

func runSchema(cmd *cobra.Command, args []string) error {
	if schemaScenario {
		data, err := schema.GenerateJSONSchema()
		if err != nil {
			return fmt.Errorf("generate schema: %w", err)
		}
		var out json.RawMessage = data
		formatted, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			fmt.Println(string(data))
			return nil
		}
		fmt.Println(string(formatted))
		return nil
	}

	bundle := schema.BuiltinToolSchemaBundle()
	if schemaTool != "" {
		var filtered []schema.ToolSchema
		for _, tool := range bundle.Tools {
			if tool.Name == schemaTool {
				filtered = append(filtered, tool)
			}
		}
		if len(filtered) == 0 {
			return fmt.Errorf("unknown tool %q", schemaTool)
		}
		bundle.Tools = filtered
	}

	switch schemaFormat {
	case "json":
		pretty, err := json.MarshalIndent(bundle, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(pretty))
	case "yaml":
		out, err := yaml.Marshal(bundle)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
	default:
		return fmt.Errorf("unknown format %q (expected json or yaml)", schemaFormat)
	}
	return nil
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [scenario.yaml]",
	Short: "Validate a scenario file without executing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	sc, err := schema.LoadAndFlatten(args[0])
	if err != nil {
		return err
	}
	diagnostics := schema.Validate(sc)
	printDiagnostics(diagnostics)
	if schema.HasErrors(diagnostics) {
		return fmt.Errorf("validation failed")
	}
	fmt.Printf("✓ %s is valid (%d steps)\n", filepath.Base(args[0]), len(sc.Steps))
	return nil
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("axion %s (%s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	planCmd.Flags().BoolVar(&planJSON, "json", false, "Output JSON instead of a human-readable summary")
	planCmd.Flags().StringArrayVar(&planVars, "var", nil, "Override a variable (KEY=VALUE, repeatable)")
	planCmd.Flags().StringArrayVar(&planSecrets, "secret", nil, "Override a secret (KEY=VALUE, repeatable)")

	runCmd.Flags().BoolVar(&runJSON, "json", false, "Output JSON instead of a human-readable report")
	runCmd.Flags().StringArrayVar(&runVars, "var", nil, "Override a variable (KEY=VALUE, repeatable)")
	runCmd.Flags().StringArrayVar(&runSecrets, "secret", nil, "Override a secret (KEY=VALUE, repeatable)")
	runCmd.Flags().StringVar(&runArtifactsDir, "artifacts-dir", "artifacts", "Directory for persisted artifacts and reports")
	runCmd.Flags().StringVar(&runTracePath, "trace", "", "Write a JSONL execution trace to this file")

	schemaCmd.Flags().StringVar(&schemaTool, "tool", "", "Filter by tool name")
	schemaCmd.Flags().StringVar(&schemaFormat, "format", "json", "Output format (json or yaml)")
	schemaCmd.Flags().BoolVar(&schemaScenario, "scenario", false, "Export the scenario JSON Schema instead of tool schemas")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}

func parseKeyVal(s string) (string, string, error) {
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
		return "", "", fmt.Errorf("expected KEY=VALUE, got %q", s)
	}
	return strings.TrimSpace(parts[0]), parts[1], nil
}

func parseVarOverrides(pairs []string) (map[string]schema.Value, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]schema.Value, len(pairs))
	for _, pair := range pairs {
		key, raw, err := parseKeyVal(pair)
		if err != nil {
			return nil, err
		}
		value, err := schema.ParseLiteral(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid override %s: %w", key, err)
		}
		out[key] = value
	}
	return out, nil
}

func parseSecretOverrides(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, err := parseKeyVal(pair)
		if err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, nil
}

func maskedSecretKeys(secrets map[string]string) map[string]string {
	masked := make(map[string]string, len(secrets))
	for key := range secrets {
		masked[key] = runtime.RedactionToken
	}
	return masked
}

func printDiagnostics(diagnostics []schema.Diagnostic) {
	if len(diagnostics) == 0 {
		return
	}
	fmt.Println("Diagnostics:")
	for _, d := range diagnostics {
		fmt.Printf("  - %s\n", d)
	}
	fmt.Println()
}

func printOverrides(overrides map[string]schema.Value, secretOverrides map[string]string) {
	if len(overrides) > 0 {
		fmt.Println("Overrides (--var):")
		keys := make([]string, 0, len(overrides))
		for key := range overrides {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Printf("  - %s = %s\n", key, overrides[key].Render())
		}
		fmt.Println()
	}
	if len(secretOverrides) > 0 {
		fmt.Println("Secrets (--secret):")
		keys := make([]string, 0, len(secretOverrides))
		for key := range secretOverrides {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Printf("  - %s = %s\n", key, runtime.RedactionToken)
		}
		fmt.Println()
	}
}
