package runtime

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/axionsec/axion/pkg/schema"
)

var placeholderPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

const secretRefPrefix = "secret:"

// UndefinedVariableError reports a placeholder that names no binding at
// resolution time.
type UndefinedVariableError struct {
	Name string
}

func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("undefined variable %q", e.Name)
}

// resolver substitutes ${name} and ${secret:alias} placeholders against
// the run's variable and secret stores.
type resolver struct {
	vars    *VarStore
	secrets *SecretStore
}

// interpolate performs a single left-to-right substitution pass. Values
// produced by a substitution are never re-scanned, so secret material
// containing placeholder syntax stays inert.
func (r *resolver) interpolate(text string) (string, error) {
	matches := placeholderPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	var out strings.Builder
	last := 0
	for _, m := range matches {
		out.WriteString(text[last:m[0]])
		rendered, err := r.lookup(text[m[2]:m[3]])
		if err != nil {
			return "", err
		}
		out.WriteString(rendered)
		last = m[1]
	}
	out.WriteString(text[last:])
	return out.String(), nil
}

// lookup resolves one placeholder body to its rendered form.
func (r *resolver) lookup(name string) (string, error) {
	if ref, ok := strings.CutPrefix(name, secretRefPrefix); ok {
		return r.secrets.Resolve(ref)
	}
	value, ok := r.vars.Resolve(name)
	if !ok {
		return "", &UndefinedVariableError{Name: name}
	}
	return value.Render(), nil
}

// resolveValue interpolates every string leaf of a value. A string that
// is exactly one variable placeholder resolves to the referenced value
// itself, preserving its type; any other string resolves textually.
func (r *resolver) resolveValue(v schema.Value) (schema.Value, error) {
	switch v.Kind() {
	case schema.KindString:
		text := v.Str()
		if name, ok := singlePlaceholder(text); ok && !strings.HasPrefix(name, secretRefPrefix) {
			if bound, found := r.vars.Resolve(name); found {
				return bound, nil
			}
			return schema.Value{}, &UndefinedVariableError{Name: name}
		}
		resolved, err := r.interpolate(text)
		if err != nil {
			return schema.Value{}, err
		}
		return schema.StringValue(resolved), nil
	case schema.KindArray:
		items := v.Items()
		out := make([]schema.Value, len(items))
		for i, item := range items {
			resolved, err := r.resolveValue(item)
			if err != nil {
				return schema.Value{}, err
			}
			out[i] = resolved
		}
		return schema.ArrayValue(out), nil
	case schema.KindObject:
		pairs := make([][2]any, 0, v.Fields().Len())
		for pair := v.Fields().Oldest(); pair != nil; pair = pair.Next() {
			resolved, err := r.resolveValue(pair.Value)
			if err != nil {
				return schema.Value{}, err
			}
			pairs = append(pairs, [2]any{pair.Key, resolved})
		}
		return schema.ObjectValue(pairs...), nil
	default:
		return v, nil
	}
}

// resolveMap interpolates every value of a string map, leaving keys
// untouched.
func (r *resolver) resolveMap(params map[string]string) (map[string]string, error) {
	if len(params) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(params))
	for key, raw := range params {
		resolved, err := r.interpolate(raw)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", key, err)
		}
		out[key] = resolved
	}
	return out, nil
}

// resolveList interpolates every element of a string list.
func (r *resolver) resolveList(items []string) ([]string, error) {
	out := make([]string, len(items))
	for i, raw := range items {
		resolved, err := r.interpolate(raw)
		if err != nil {
			return nil, err
		}
		out[i] = resolved
	}
	return out, nil
}

// singlePlaceholder reports whether text is exactly one placeholder and
// returns its body.
func singlePlaceholder(text string) (string, bool) {
	m := placeholderPattern.FindStringSubmatchIndex(text)
	if m == nil || m[0] != 0 || m[1] != len(text) {
		return "", false
	}
	return text[m[2]:m[3]], true
}
