// Package resolve turns the registry into a concrete name→value mapping for
// one provisioning run. Values are resolved in definition order; environment
// overrides win over every other source so operators can script fully
// non-interactive runs. Resolved values live only for the duration of the
// run and are never persisted locally.
package resolve

import (
	"os"
	"sort"

	proverrors "github.com/systmms/provops/internal/errors"
	"github.com/systmms/provops/internal/logging"
	"github.com/systmms/provops/internal/registry"
)

// Origin records how a value was obtained.
type Origin string

const (
	OriginDefault   Origin = "default"
	OriginOverride  Origin = "override"
	OriginPrompted  Origin = "prompted"
	OriginGenerated Origin = "generated"
)

// ResolvedValue pairs a variable name with its concrete value and origin.
type ResolvedValue struct {
	Name   string
	Value  string
	Origin Origin
}

// Resolver resolves a registry against overrides and providers.
type Resolver struct {
	prompter Prompter
	logger   *logging.Logger
}

// New creates a resolver. The prompter satisfies interactive rules; pass a
// NonInteractivePrompter to make prompts fail deterministically in scripted
// runs.
func New(prompter Prompter, logger *logging.Logger) *Resolver {
	return &Resolver{prompter: prompter, logger: logger}
}

// Resolve produces one ResolvedValue per registry variable, in definition
// order. Variables that legitimately resolve empty (optional static/derived)
// are dropped from the mapping with a warning — an empty secret in the
// remote store is a worse failure mode than a visible gap. A blank value for
// an interactive variable is a hard EmptyRequiredValueError.
//
// Interactive and generated results are cached in the returned mapping, so a
// name referenced repeatedly within one pass never re-prompts.
func (r *Resolver) Resolve(reg *registry.Registry, overrides map[string]string) (map[string]ResolvedValue, error) {
	resolved := make(map[string]ResolvedValue, reg.Len())
	plain := make(map[string]string, reg.Len())

	for _, name := range reg.Names() {
		rule, err := reg.Rule(name)
		if err != nil {
			return nil, err
		}

		value, origin, err := r.resolveOne(name, rule, overrides, plain)
		if err != nil {
			return nil, err
		}

		if value == "" {
			if rule.Kind == registry.KindInteractive {
				return nil, proverrors.EmptyRequiredValueError{Variable: name}
			}
			if !rule.Optional {
				return nil, proverrors.EmptyRequiredValueError{Variable: name}
			}
			r.logger.Warn("Variable %s resolved empty; skipping (no secret will be provisioned)", name)
			continue
		}

		resolved[name] = ResolvedValue{Name: name, Value: value, Origin: origin}
		plain[name] = value
	}

	return resolved, nil
}

func (r *Resolver) resolveOne(name string, rule registry.Rule, overrides, plain map[string]string) (string, Origin, error) {
	// Environment takes precedence over everything, including generators.
	if value, ok := overrides[name]; ok && value != "" {
		return value, OriginOverride, nil
	}

	switch rule.Kind {
	case registry.KindStatic:
		return rule.Static, OriginDefault, nil

	case registry.KindDerived:
		// Definition order guarantees every dependency is already in plain.
		return rule.Derive(plain), OriginDefault, nil

	case registry.KindInteractive:
		value, err := r.prompter.Prompt(rule.Prompt)
		if err != nil {
			return "", "", err
		}
		if value == "" {
			return "", "", proverrors.EmptyRequiredValueError{Variable: name}
		}
		return value, OriginPrompted, nil

	case registry.KindGenerated:
		value, err := rule.Generate()
		if err != nil {
			return "", "", proverrors.UserError{
				Message: "Failed to generate value for " + name,
				Details: err.Error(),
				Err:     err,
			}
		}
		r.logger.Info("Generated value for %s", name)
		return value, OriginGenerated, nil
	}

	return "", "", proverrors.ConfigError{
		Field:   name,
		Message: "unknown resolution kind",
	}
}

// OverridesFromEnvironment collects environment variables named identically
// to registry entries. Empty environment values are ignored rather than
// treated as explicit blanks.
func OverridesFromEnvironment(reg *registry.Registry) map[string]string {
	overrides := make(map[string]string)
	for _, name := range reg.Names() {
		if value, ok := os.LookupEnv(name); ok && value != "" {
			overrides[name] = value
		}
	}
	return overrides
}

// SortedNames returns the names of a resolved mapping sorted alphabetically,
// for stable report output.
func SortedNames(values map[string]ResolvedValue) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
