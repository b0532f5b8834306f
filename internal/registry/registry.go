// Package registry defines the immutable mapping from configuration variable
// names to value-resolution rules. The registry is built once at process
// start, iterated in definition order, and never mutated afterward. Acyclic
// dependencies among derived rules are guaranteed by construction: a derived
// rule may only reference names defined before it, validated at Define time
// so bad wiring fails fast instead of at resolution time.
package registry

import (
	"fmt"

	proverrors "github.com/systmms/provops/internal/errors"
)

// Kind tags how a variable's value is obtained.
type Kind string

const (
	// KindStatic yields a constant default.
	KindStatic Kind = "static"

	// KindDerived evaluates a pure function over previously resolved values.
	KindDerived Kind = "derived"

	// KindInteractive prompts the operator. Always required: blank input is
	// an EmptyRequiredValue error, never a silent skip.
	KindInteractive Kind = "interactive"

	// KindGenerated invokes a generator (e.g. a crypto-secure key generator)
	// when no override supplies the value.
	KindGenerated Kind = "generated"
)

// ResourceKind marks variables whose value names a remote resource, so
// protected-name collisions are caught at configuration-validation time.
type ResourceKind string

const (
	ResourceNone     ResourceKind = ""
	ResourceDatabase ResourceKind = "database"
	ResourceUser     ResourceKind = "user"
	ResourceService  ResourceKind = "service"
)

// DeriveFunc computes a derived value from already-resolved values. It must
// be pure: same inputs, same output, no side effects.
type DeriveFunc func(resolved map[string]string) string

// GenerateFunc produces a fresh value for a generated variable.
type GenerateFunc func() (string, error)

// Rule describes how one variable resolves.
type Rule struct {
	Kind Kind

	// Static is the constant for KindStatic.
	Static string

	// Derive and DependsOn apply to KindDerived. Every name in DependsOn
	// must already be defined when the rule is added.
	Derive    DeriveFunc
	DependsOn []string

	// Prompt is the human-readable label for KindInteractive.
	Prompt string

	// Generate applies to KindGenerated.
	Generate GenerateFunc

	// Optional variables may resolve empty; they are dropped with a warning
	// instead of provisioned as empty secrets. Only meaningful for static
	// and derived rules — interactive variables are always required.
	Optional bool

	// Resource marks the remote resource kind this variable's value names.
	Resource ResourceKind
}

// Registry is the ordered, immutable variable set.
type Registry struct {
	names []string
	rules map[string]Rule
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

// Define adds a variable. Names must be unique; derived rules may reference
// only previously defined names.
func (r *Registry) Define(name string, rule Rule) error {
	if name == "" {
		return proverrors.ConfigError{
			Field:   "variable",
			Message: "variable name must not be empty",
		}
	}
	if _, exists := r.rules[name]; exists {
		return proverrors.ConfigError{
			Field:      "variable",
			Value:      name,
			Message:    "variable defined twice",
			Suggestion: "Variable names must be unique within the registry",
		}
	}

	switch rule.Kind {
	case KindStatic:
	case KindDerived:
		if rule.Derive == nil {
			return proverrors.ConfigError{
				Field:   name,
				Message: "derived variable has no derivation function",
			}
		}
		for _, dep := range rule.DependsOn {
			if _, ok := r.rules[dep]; !ok {
				return proverrors.ConfigError{
					Field:      name,
					Value:      dep,
					Message:    "derived variable references a name not yet defined",
					Suggestion: "Define dependencies before the variables derived from them",
				}
			}
		}
	case KindInteractive:
		if rule.Prompt == "" {
			return proverrors.ConfigError{
				Field:   name,
				Message: "interactive variable has no prompt label",
			}
		}
		if rule.Optional {
			return proverrors.ConfigError{
				Field:      name,
				Message:    "interactive variables are always required",
				Suggestion: "Use a static variable if an empty value is acceptable",
			}
		}
	case KindGenerated:
		if rule.Generate == nil {
			return proverrors.ConfigError{
				Field:   name,
				Message: "generated variable has no generator",
			}
		}
	default:
		return proverrors.ConfigError{
			Field:   name,
			Value:   string(rule.Kind),
			Message: "unknown resolution kind",
		}
	}

	r.names = append(r.names, name)
	r.rules[name] = rule
	return nil
}

// MustDefine is Define for statically known registry construction, where a
// failure is a programming error.
func (r *Registry) MustDefine(name string, rule Rule) {
	if err := r.Define(name, rule); err != nil {
		panic(fmt.Sprintf("registry: %v", err))
	}
}

// Names returns the variable names in definition order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Rule returns the resolution rule for name.
func (r *Registry) Rule(name string) (Rule, error) {
	rule, ok := r.rules[name]
	if !ok {
		return Rule{}, proverrors.UnknownVariableError{Name: name}
	}
	return rule, nil
}

// Len returns the number of defined variables.
func (r *Registry) Len() int {
	return len(r.names)
}

// ValidateOverrides rejects override values that would point a
// resource-naming variable at a protected resource. Runs before resolution,
// which is itself before any remote call, so a protected collision is caught
// at configuration-validation time rather than at reconciliation time.
func (r *Registry) ValidateOverrides(overrides map[string]string, isProtected func(string) bool) error {
	for _, name := range r.names {
		rule := r.rules[name]
		if rule.Resource == ResourceNone {
			continue
		}

		value, ok := overrides[name]
		if !ok {
			value = rule.Static
		}
		if value == "" {
			continue
		}

		if isProtected(value) {
			return proverrors.ProtectedResourceError{
				Resource:  value,
				Operation: fmt.Sprintf("set %s via %s", string(rule.Resource), name),
			}
		}
	}
	return nil
}
