package runtime

import (
	"fmt"
	"strings"

	"github.com/axionsec/axion/pkg/providers"
)

// RedactionToken replaces every resolved secret value in observable
// output. The replacement is irreversible.
const RedactionToken = "***"

// SecretResolutionError scopes a provider failure to the reference that
// needed the value.
type SecretResolutionError struct {
	Ref string
	Err error
}

func (e *SecretResolutionError) Error() string {
	return fmt.Sprintf("resolve secret %q: %v", e.Ref, e.Err)
}

func (e *SecretResolutionError) Unwrap() error { return e.Err }

// SecretStore maps registered descriptor names to providers and caches
// values resolved during the run. Descriptors carry no secret material;
// values exist only in the cache and never leave the store unmasked.
type SecretStore struct {
	providers map[string]providers.SecretProvider
	cache     map[string]string
}

// NewSecretStore seeds the resolution cache with external overrides.
// An override wins over a provider for the same reference because the
// cache is consulted first.
func NewSecretStore(overrides map[string]string) *SecretStore {
	cache := make(map[string]string, len(overrides))
	for ref, value := range overrides {
		cache[ref] = value
	}
	return &SecretStore{
		providers: make(map[string]providers.SecretProvider),
		cache:     cache,
	}
}

// Register binds a descriptor name to its provider. Resolution is
// deferred until the first reference.
func (s *SecretStore) Register(name string, p providers.SecretProvider) {
	s.providers[name] = p
}

// Resolve returns the secret value for a reference of the form "name" or
// "name.field", resolving through the registered provider on first use
// and caching for the rest of the run.
func (s *SecretStore) Resolve(ref string) (string, error) {
	if value, ok := s.cache[ref]; ok {
		return value, nil
	}

	name, field := ref, ""
	if idx := strings.Index(ref, "."); idx >= 0 {
		name, field = ref[:idx], ref[idx+1:]
	}

	provider, ok := s.providers[name]
	if !ok {
		return "", &SecretResolutionError{Ref: ref, Err: fmt.Errorf("undefined secret %q", name)}
	}

	// A bare reference to a single-field descriptor resolves that field.
	if field == "" {
		if fields := provider.Fields(); len(fields) == 1 {
			field = fields[0]
		}
	}

	value, err := provider.Resolve(field)
	if err != nil {
		return "", &SecretResolutionError{Ref: ref, Err: err}
	}
	s.cache[ref] = value
	return value, nil
}

// Mask replaces every resolved secret value in text with the redaction
// token. Every string must pass through here before it is logged or
// written into any artifact.
func (s *SecretStore) Mask(text string) string {
	for _, value := range s.cache {
		if value != "" {
			text = strings.ReplaceAll(text, value, RedactionToken)
		}
	}
	return text
}

// MaskValue walks a decoded JSON value and masks every string in it.
func (s *SecretStore) MaskValue(v any) any {
	switch val := v.(type) {
	case string:
		return s.Mask(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = s.MaskValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = s.MaskValue(item)
		}
		return out
	default:
		return v
	}
}
