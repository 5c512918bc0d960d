//go:build ignore

package main

import (
	"fmt"
	"os"

	"github.com/axionsec/axion/pkg/schema"
)

func main() {
	data, err := schema.GenerateJSONSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile("schemas/scenario-v0.json", data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("wrote schemas/scenario-v0.json")

	toolData, err := schema.GenerateToolJSONSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error generating tool schema: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile("schemas/tool-schema-v0.json", toolData, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("wrote schemas/tool-schema-v0.json")
}
