package schema

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load parses a scenario document with strict unknown-field rejection
// (yaml.v3 KnownFields).
func Load(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		if err == io.EOF {
			return &Scenario{}, nil
		}
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	return &sc, nil
}

// LoadFile reads and parses one scenario file without resolving imports.
func LoadFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()

	sc, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// LoadAndFlatten loads a scenario file and recursively inlines every
// import, relative to the importing file. A file visited twice (an import
// cycle, or a diamond) contributes steps only once; the second visit is a
// no-op rather than an error. The returned sequence carries no Import
// nodes.
func LoadAndFlatten(path string) (*Scenario, error) {
	visited := make(map[string]bool)
	return loadRecursive(path, visited)
}

func loadRecursive(path string, visited map[string]bool) (*Scenario, error) {
	canonical, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve scenario path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(canonical); err == nil {
		canonical = resolved
	}
	if visited[canonical] {
		return &Scenario{}, nil
	}
	visited[canonical] = true

	parsed, err := LoadFile(canonical)
	if err != nil {
		return nil, err
	}
	baseDir := filepath.Dir(canonical)

	out := &Scenario{}
	for _, step := range parsed.Steps {
		if step.Import == nil {
			out.Steps = append(out.Steps, step)
			continue
		}
		importPath := step.Import.Path
		if !filepath.IsAbs(importPath) {
			importPath = filepath.Join(baseDir, importPath)
		}
		imported, err := loadRecursive(importPath, visited)
		if err != nil {
			return nil, fmt.Errorf("import %s: %w", step.Import.Path, err)
		}
		out.Imports = append(out.Imports, importPath)
		out.Steps = append(out.Steps, imported.Steps...)
		out.Imports = append(out.Imports, imported.Imports...)
	}
	return out, nil
}
