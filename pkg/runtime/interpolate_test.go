package runtime

import (
	"errors"
	"testing"

	"github.com/axionsec/axion/pkg/schema"
)

func newTestResolver(vars map[string]schema.Value, secrets map[string]string) *resolver {
	return &resolver{
		vars:    NewVarStore(vars),
		secrets: NewSecretStore(secrets),
	}
}

func TestInterpolateMixedPlaceholders(t *testing.T) {
	r := newTestResolver(
		map[string]schema.Value{"host": schema.StringValue("10.0.0.5"), "port": schema.NumberValue(443)},
		map[string]string{"creds.token": "tok"},
	)

	out, err := r.interpolate("https://${host}:${port}/?t=${secret:creds.token}")
	if err != nil {
		t.Fatalf("interpolate error: %v", err)
	}
	if out != "https://10.0.0.5:443/?t=tok" {
		t.Errorf("out = %q", out)
	}
}

func TestInterpolateSinglePass(t *testing.T) {
	// A substituted value containing placeholder syntax is not re-scanned.
	r := newTestResolver(map[string]schema.Value{
		"tricky": schema.StringValue("${other}"),
		"other":  schema.StringValue("boom"),
	}, nil)

	out, err := r.interpolate("value: ${tricky}")
	if err != nil {
		t.Fatalf("interpolate error: %v", err)
	}
	if out != "value: ${other}" {
		t.Errorf("out = %q", out)
	}
}

func TestInterpolateUndefinedVariable(t *testing.T) {
	r := newTestResolver(nil, nil)
	_, err := r.interpolate("hello ${missing}")
	var undefErr *UndefinedVariableError
	if !errors.As(err, &undefErr) {
		t.Fatalf("expected UndefinedVariableError, got %v", err)
	}
	if undefErr.Name != "missing" {
		t.Errorf("name = %q", undefErr.Name)
	}
}

func TestResolveValuePreservesTypeForSinglePlaceholder(t *testing.T) {
	ports := schema.ArrayValue([]schema.Value{schema.NumberValue(22), schema.NumberValue(80)})
	r := newTestResolver(map[string]schema.Value{"ports": ports}, nil)

	out, err := r.resolveValue(schema.StringValue("${ports}"))
	if err != nil {
		t.Fatalf("resolveValue error: %v", err)
	}
	if out.Kind() != schema.KindArray {
		t.Fatalf("kind = %q, want array", out.Kind())
	}
	if len(out.Items()) != 2 {
		t.Errorf("items = %d", len(out.Items()))
	}
}

func TestResolveValueEmbeddedPlaceholderRendersText(t *testing.T) {
	ports := schema.ArrayValue([]schema.Value{schema.NumberValue(22)})
	r := newTestResolver(map[string]schema.Value{"ports": ports}, nil)

	out, err := r.resolveValue(schema.StringValue("ports: ${ports}"))
	if err != nil {
		t.Fatalf("resolveValue error: %v", err)
	}
	if out.Kind() != schema.KindString {
		t.Fatalf("kind = %q, want string", out.Kind())
	}
	if out.Str() != "ports: [22]" {
		t.Errorf("rendered = %q", out.Str())
	}
}

func TestResolveValueWalksArraysAndObjects(t *testing.T) {
	r := newTestResolver(map[string]schema.Value{"host": schema.StringValue("10.0.0.5")}, nil)

	in := schema.ObjectValue(
		[2]any{"targets", schema.ArrayValue([]schema.Value{schema.StringValue("${host}")})},
		[2]any{"label", schema.StringValue("scan of ${host}")},
	)
	out, err := r.resolveValue(in)
	if err != nil {
		t.Fatalf("resolveValue error: %v", err)
	}

	targets, _ := out.Fields().Get("targets")
	if targets.Items()[0].Str() != "10.0.0.5" {
		t.Errorf("targets = %v", targets.Items())
	}
	label, _ := out.Fields().Get("label")
	if label.Str() != "scan of 10.0.0.5" {
		t.Errorf("label = %q", label.Str())
	}
}

func TestSinglePlaceholder(t *testing.T) {
	cases := []struct {
		text string
		name string
		ok   bool
	}{
		{"${x}", "x", true},
		{"${secret:a.b}", "secret:a.b", true},
		{" ${x}", "", false},
		{"${x} ", "", false},
		{"${x}${y}", "", false},
		{"plain", "", false},
	}
	for _, tc := range cases {
		name, ok := singlePlaceholder(tc.text)
		if ok != tc.ok || name != tc.name {
			t.Errorf("singlePlaceholder(%q) = (%q, %t), want (%q, %t)", tc.text, name, ok, tc.name, tc.ok)
		}
	}
}

func TestShadowGuardRestoresPreviousBinding(t *testing.T) {
	vars := NewVarStore(nil)
	vars.Declare("x", schema.StringValue("outer"))

	guard := vars.Shadow("x", schema.StringValue("inner"))
	if v, _ := vars.Resolve("x"); v.Str() != "inner" {
		t.Errorf("shadowed value = %q", v.Str())
	}
	guard.Release()
	if v, _ := vars.Resolve("x"); v.Str() != "outer" {
		t.Errorf("restored value = %q", v.Str())
	}
}

func TestShadowGuardRemovesFreshBinding(t *testing.T) {
	vars := NewVarStore(nil)
	guard := vars.Shadow("fresh", schema.StringValue("v"))
	guard.Release()
	if _, ok := vars.Resolve("fresh"); ok {
		t.Error("fresh binding should be removed on release")
	}
}
