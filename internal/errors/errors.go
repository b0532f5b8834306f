// Package errors defines the error taxonomy for the provisioning workflow.
//
// Fatal conditions (missing preconditions, protected-resource collisions,
// missing dependencies) abort the current command immediately. Per-item
// remote failures are aggregated by the reconciler and only affect the final
// exit status. A declined confirmation is a clean abort, not an error.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAborted is returned when the operator declines a confirmation gate.
// Commands translate it into a clean exit 0.
var ErrAborted = errors.New("aborted by operator")

// IsAborted reports whether err is (or wraps) a declined confirmation.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}

// UserError is an error shown to the operator with helpful context.
type UserError struct {
	Message    string
	Details    string
	Suggestion string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError is a configuration problem caught before any remote call.
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// PreconditionError means a required external tool or credential is absent.
// Fatal, never retried.
type PreconditionError struct {
	Requirement string
	Message     string
	Suggestion  string
}

func (e PreconditionError) Error() string {
	msg := fmt.Sprintf("Precondition missing: %s", e.Requirement)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}
	return msg
}

// UnknownVariableError reports a lookup of a name the registry never defined.
// Raised at definition/validation time, never during reconciliation.
type UnknownVariableError struct {
	Name string
}

func (e UnknownVariableError) Error() string {
	return fmt.Sprintf("unknown configuration variable '%s'", e.Name)
}

// EmptyRequiredValueError means resolution produced a blank value for a
// variable that has no fallback. Fatal, surfaced with the variable name.
type EmptyRequiredValueError struct {
	Variable string
}

func (e EmptyRequiredValueError) Error() string {
	return fmt.Sprintf("required variable '%s' resolved to an empty value", e.Variable)
}

// ProtectedResourceError means the workflow was asked to mutate a resource
// classified as protected. Always fatal, never downgraded to a warning, and
// always raised before any mutating call is issued.
type ProtectedResourceError struct {
	Resource  string
	Operation string
}

func (e ProtectedResourceError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("protected resource '%s' cannot be modified (attempted: %s)", e.Resource, e.Operation)
	}
	return fmt.Sprintf("protected resource '%s' cannot be modified", e.Resource)
}

// MissingDependencyError means a prerequisite resource is absent entirely.
// Fatal for the dependent step; unrelated checks continue.
type MissingDependencyError struct {
	Dependency string
	Detail     string
	Suggestion string
}

func (e MissingDependencyError) Error() string {
	msg := fmt.Sprintf("missing dependency: %s", e.Dependency)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}
	return msg
}

// RemoteOperationError records a single failed create/update/grant call.
// Recorded per item by the reconciler; does not abort the batch.
type RemoteOperationError struct {
	Resource  string
	Operation string
	Err       error
}

func (e RemoteOperationError) Error() string {
	return fmt.Sprintf("remote %s failed for '%s': %v", e.Operation, e.Resource, e.Err)
}

func (e RemoteOperationError) Unwrap() error {
	return e.Err
}
