package schema

import (
	"sort"
	"strings"
	"time"
)

// ToolSchema describes the parameter contract of one builtin tool.
type ToolSchema struct {
	Name            string   `json:"name" yaml:"name"`
	Kind            string   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Description     string   `json:"description,omitempty" yaml:"description,omitempty"`
	Required        []string `json:"required" yaml:"required"`
	Optional        []string `json:"optional" yaml:"optional"`
	AllowAdditional bool     `json:"allow_additional" yaml:"allow_additional"`
}

func (s ToolSchema) allows(key string) bool {
	for _, candidate := range s.Required {
		if candidate == key {
			return true
		}
	}
	for _, candidate := range s.Optional {
		if candidate == key {
			return true
		}
	}
	return false
}

// ToolSchemaBundle is the versioned export of all builtin tool schemas.
type ToolSchemaBundle struct {
	Version     string       `json:"version" yaml:"version"`
	GeneratedAt string       `json:"generated_at" yaml:"generated_at"`
	Tools       []ToolSchema `json:"tools" yaml:"tools"`
}

const toolSchemaVersion = "1.0.0"

var builtinToolSchemas = []ToolSchema{
	{
		Name:        "nmap",
		Kind:        "scan",
		Description: "Nmap TCP/UDP scanner",
		Required:    []string{"target"},
		Optional:    []string{"flags"},
	},
	{
		Name:        "gobuster",
		Kind:        "scan",
		Description: "Gobuster content discovery",
		Required:    []string{"target", "args"},
		Optional:    []string{"flags", "wordlist", "mode"},
	},
	{
		Name:        "script",
		Kind:        "script",
		Description: "Generic script execution",
		Required:    []string{"run"},
		Optional:    []string{"args", "cwd"},
	},
}

// BuiltinToolSchemas returns a copy of the builtin schema table.
func BuiltinToolSchemas() []ToolSchema {
	out := make([]ToolSchema, len(builtinToolSchemas))
	copy(out, builtinToolSchemas)
	return out
}

// BuiltinToolSchemaBundle wraps the builtin schemas with version metadata
// for export.
func BuiltinToolSchemaBundle() ToolSchemaBundle {
	return ToolSchemaBundle{
		Version:     toolSchemaVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Tools:       BuiltinToolSchemas(),
	}
}

func lookupToolSchema(tool string) *ToolSchema {
	for i := range builtinToolSchemas {
		if builtinToolSchemas[i].Name == tool {
			return &builtinToolSchemas[i]
		}
	}
	return nil
}

func validateWithSchema(tool string, params map[string]string, schema *ToolSchema, ctx *validationContext) {
	for _, key := range schema.Required {
		value, ok := params[key]
		switch {
		case !ok:
			ctx.error("missing required parameter %q for tool %q", key, tool)
		case strings.TrimSpace(value) == "":
			ctx.error("parameter %q for tool %q cannot be empty", key, tool)
		}
	}

	if !schema.AllowAdditional {
		for _, key := range sortedKeys(params) {
			if !schema.allows(key) {
				ctx.warning("unknown parameter %q for tool %q; it will be ignored", key, tool)
			}
		}
	}
}

func enforceKnown(params map[string]string, allowed []string, ctx *validationContext, tool string) {
	allowedSet := make(map[string]bool, len(allowed))
	for _, key := range allowed {
		allowedSet[key] = true
	}
	for _, key := range sortedKeys(params) {
		if !allowedSet[key] {
			ctx.warning("unknown parameter %q for tool %q; it will be ignored", key, tool)
		}
	}
}

// sortedKeys keeps diagnostic order deterministic across runs.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
