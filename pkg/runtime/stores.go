package runtime

import (
	"github.com/axionsec/axion/pkg/schema"
)

// VarStore maps variable names to literal values for one run. External
// overrides are recorded before execution and win over declarations of
// the same name for the run's duration. The store is owned exclusively
// by the executing engine and passed by reference into nested bodies.
type VarStore struct {
	values    map[string]schema.Value
	overrides map[string]schema.Value
}

// NewVarStore seeds a store with external overrides. Overrides become
// visible immediately so interpolation before the declaration site still
// resolves them.
func NewVarStore(overrides map[string]schema.Value) *VarStore {
	values := make(map[string]schema.Value, len(overrides))
	ovr := make(map[string]schema.Value, len(overrides))
	for name, value := range overrides {
		values[name] = value
		ovr[name] = value
	}
	return &VarStore{values: values, overrides: ovr}
}

// Override returns the external override for a name, if any.
func (s *VarStore) Override(name string) (schema.Value, bool) {
	v, ok := s.overrides[name]
	return v, ok
}

// Declare binds a name. Called by the dispatcher after it has chosen
// between the declared value and an external override.
func (s *VarStore) Declare(name string, value schema.Value) {
	s.values[name] = value
}

// Resolve looks up a binding.
func (s *VarStore) Resolve(name string) (schema.Value, bool) {
	v, ok := s.values[name]
	return v, ok
}

// ShadowGuard restores the binding that existed before a Shadow call.
// Loop handlers release it after each body has run, before the next
// iteration binds the following element.
type ShadowGuard struct {
	store *VarStore
	name  string
	prev  schema.Value
	had   bool
}

// Shadow temporarily rebinds name and returns a guard that restores the
// prior value, or removes the name entirely if it was previously absent.
// Shadows are strictly stack-disciplined: release before shadowing the
// same name again.
func (s *VarStore) Shadow(name string, value schema.Value) ShadowGuard {
	prev, had := s.values[name]
	s.values[name] = value
	return ShadowGuard{store: s, name: name, prev: prev, had: had}
}

// Release restores the shadowed binding.
func (g ShadowGuard) Release() {
	if g.had {
		g.store.values[g.name] = g.prev
	} else {
		delete(g.store.values, g.name)
	}
}

// Env materializes the store as an expression environment. Arrays and
// objects convert to their plain Go shapes so expressions can index
// into them.
func (s *VarStore) Env() map[string]any {
	env := make(map[string]any, len(s.values))
	for name, value := range s.values {
		env[name] = valueAsAny(value)
	}
	return env
}

func valueAsAny(v schema.Value) any {
	switch v.Kind() {
	case schema.KindString:
		return v.Str()
	case schema.KindNumber:
		return v.Num()
	case schema.KindBool:
		return v.Bool()
	case schema.KindArray:
		items := v.Items()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = valueAsAny(item)
		}
		return out
	case schema.KindObject:
		out := make(map[string]any, v.Fields().Len())
		for pair := v.Fields().Oldest(); pair != nil; pair = pair.Next() {
			out[pair.Key] = valueAsAny(pair.Value)
		}
		return out
	}
	return nil
}
