package providers

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvSecretProviderResolvesMappedField(t *testing.T) {
	t.Setenv("AXION_TEST_TOKEN", "s3cret")
	p := &EnvSecretProvider{Mappings: map[string]string{"token": "AXION_TEST_TOKEN"}}

	value, err := p.Resolve("token")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if value != "s3cret" {
		t.Errorf("value = %q", value)
	}
}

func TestEnvSecretProviderUnsetVariable(t *testing.T) {
	os.Unsetenv("AXION_TEST_MISSING")
	p := &EnvSecretProvider{Mappings: map[string]string{"token": "AXION_TEST_MISSING"}}

	if _, err := p.Resolve("token"); err == nil {
		t.Fatal("expected error for unset environment variable")
	}
}

func TestEnvSecretProviderUnknownField(t *testing.T) {
	p := &EnvSecretProvider{Mappings: map[string]string{"token": "AXION_TEST_TOKEN"}}
	if _, err := p.Resolve("nope"); err == nil {
		t.Fatal("expected error for unmapped field")
	}
}

func TestFileSecretProviderTrimsTrailingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(path, []byte("hunter2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	p := &FileSecretProvider{Path: path}

	value, err := p.Resolve("")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if value != "hunter2" {
		t.Errorf("value = %q", value)
	}
}

func TestFileSecretProviderRejectsFields(t *testing.T) {
	p := &FileSecretProvider{Path: "/dev/null"}
	if _, err := p.Resolve("field"); err == nil {
		t.Fatal("expected error for field access on file secret")
	}
}

func TestVaultSecretProviderNotImplemented(t *testing.T) {
	p := &VaultSecretProvider{Path: "kv/data/pentest"}
	_, err := p.Resolve("token")
	if !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
}

func TestRealExecutorCapturesExitCode(t *testing.T) {
	exec := &RealExecutor{}
	result, err := exec.Execute(t.Context(), "sh", []string{"-c", "echo out; echo err >&2; exit 3"}, "")
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", result.ExitCode)
	}
	if string(result.Stdout) != "out\n" {
		t.Errorf("stdout = %q", result.Stdout)
	}
	if string(result.Stderr) != "err\n" {
		t.Errorf("stderr = %q", result.Stderr)
	}
}

func TestRealExecutorSpawnFailure(t *testing.T) {
	exec := &RealExecutor{}
	_, err := exec.Execute(t.Context(), "/nonexistent/definitely-not-a-binary", nil, "")
	if !IsSpawnError(err) {
		t.Fatalf("expected spawn error, got %v", err)
	}
}
