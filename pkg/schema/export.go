package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document from
// the Go Scenario struct using invopop/jsonschema.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&Scenario{})
	s.ID = "https://github.com/axionsec/axion/schemas/scenario-v0.json"
	s.Title = "Axion Scenario v0"
	s.Description = "Schema for axion scenario YAML documents (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}

// GenerateToolJSONSchema produces a JSON Schema Draft 2020-12 document
// from the ToolSchemaBundle struct.
func GenerateToolJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&ToolSchemaBundle{})
	s.ID = "https://github.com/axionsec/axion/schemas/tool-schema-v0.json"
	s.Title = "Axion Tool Schema Bundle v0"
	s.Description = "Schema for axion builtin tool parameter contracts"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tool schema: %w", err)
	}
	return data, nil
}
