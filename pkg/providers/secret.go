package providers

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// ErrNotImplemented marks descriptor kinds the engine accepts but cannot
// resolve yet.
var ErrNotImplemented = errors.New("not implemented")

// EnvSecretProvider resolves secret fields from environment variables.
// Mappings associate the field alias with the environment variable name;
// the descriptor itself carries no secret material.
type EnvSecretProvider struct {
	Mappings map[string]string
}

func (p *EnvSecretProvider) Resolve(field string) (string, error) {
	envKey, ok := p.Mappings[field]
	if !ok {
		return "", fmt.Errorf("no mapping for field %q", field)
	}
	value, ok := os.LookupEnv(envKey)
	if !ok {
		return "", fmt.Errorf("environment variable %s is not set", envKey)
	}
	return value, nil
}

func (p *EnvSecretProvider) Fields() []string {
	fields := make([]string, 0, len(p.Mappings))
	for alias := range p.Mappings {
		fields = append(fields, alias)
	}
	sort.Strings(fields)
	return fields
}

// FileSecretProvider resolves the whole content of a file as one secret.
// Only the bare field is supported.
type FileSecretProvider struct {
	Path string
}

func (p *FileSecretProvider) Resolve(field string) (string, error) {
	if field != "" {
		return "", fmt.Errorf("file secrets have no field %q", field)
	}
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return "", fmt.Errorf("read secret file %s: %w", p.Path, err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func (p *FileSecretProvider) Fields() []string { return nil }

// VaultSecretProvider is the accepted-but-unimplemented external secret
// manager descriptor. Every resolution fails with ErrNotImplemented so
// the owning step surfaces as not implemented instead of silently
// succeeding.
type VaultSecretProvider struct {
	Path string
}

func (p *VaultSecretProvider) Resolve(field string) (string, error) {
	return "", fmt.Errorf("vault provider: %w", ErrNotImplemented)
}

func (p *VaultSecretProvider) Fields() []string { return nil }
