// Package reconcile converges remote secret state onto resolved values.
//
// Reconciliation is idempotent: running it twice with the same inputs
// performs the same remote writes the second time (one new version per
// variable) and never errors on state it already converged. A failure on
// one variable is recorded and reconciliation continues with the rest.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	provopserrors "github.com/systmms/provops/internal/errors"
	"github.com/systmms/provops/internal/logging"
	"github.com/systmms/provops/internal/resolve"
	"github.com/systmms/provops/pkg/store"
)

// Outcome describes what happened to a single variable.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeFailed  Outcome = "failed"
)

// Result is the per-variable record in a Report.
type Result struct {
	Variable string
	Secret   string
	Outcome  Outcome
	Version  string
	Granted  bool
	Err      error
}

// Report summarizes a reconciliation run.
type Report struct {
	Results []Result
}

// Created returns how many secrets were newly created.
func (r *Report) Created() int { return r.count(OutcomeCreated) }

// Updated returns how many existing secrets received a new version.
func (r *Report) Updated() int { return r.count(OutcomeUpdated) }

// Failed returns how many variables failed to reconcile.
func (r *Report) Failed() int { return r.count(OutcomeFailed) }

func (r *Report) count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// OK reports whether every variable reconciled successfully.
func (r *Report) OK() bool { return r.Failed() == 0 }

// Options configures a Reconciler.
type Options struct {
	// Prefix is prepended to variable names to form secret names.
	Prefix string
	// Principal, if set, is granted Role on every reconciled secret.
	Principal string
	Role      string
	// Order fixes the processing sequence, normally the registry's
	// definition order. Names without a resolved value are skipped.
	// When empty, variables are processed in sorted name order.
	Order  []string
	Logger *logging.Logger
}

// Reconciler writes resolved values into a secret store.
type Reconciler struct {
	store store.SecretStore
	opts  Options
}

// New returns a Reconciler writing to st.
func New(st store.SecretStore, opts Options) *Reconciler {
	if opts.Logger == nil {
		opts.Logger = logging.New(false, true)
	}
	return &Reconciler{store: st, opts: opts}
}

// Reconcile converges the store onto values. Variables are processed in
// Options.Order (falling back to sorted name order) so output and remote
// calls are deterministic; the report lists results in that same order.
func (r *Reconciler) Reconcile(ctx context.Context, values map[string]resolve.ResolvedValue) (*Report, error) {
	report := &Report{}
	for _, name := range r.order(values) {
		res := r.reconcileOne(ctx, name, values[name].Value)
		report.Results = append(report.Results, res)
		switch res.Outcome {
		case OutcomeCreated:
			r.opts.Logger.Info("Created secret %s (version %s)", res.Secret, res.Version)
			metrics().creates.Inc()
		case OutcomeUpdated:
			r.opts.Logger.Info("Added version %s to secret %s", res.Version, res.Secret)
			metrics().updates.Inc()
		case OutcomeFailed:
			r.opts.Logger.Error("Failed to reconcile %s: %v", res.Secret, res.Err)
			metrics().failures.Inc()
		}
	}
	return report, nil
}

func (r *Reconciler) order(values map[string]resolve.ResolvedValue) []string {
	if len(r.opts.Order) == 0 {
		return resolve.SortedNames(values)
	}
	names := make([]string, 0, len(values))
	for _, name := range r.opts.Order {
		if _, ok := values[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

func (r *Reconciler) reconcileOne(ctx context.Context, variable, value string) Result {
	secretName := r.opts.Prefix + variable
	res := Result{Variable: variable, Secret: secretName}

	exists, err := r.store.Exists(ctx, secretName)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = &provopserrors.RemoteOperationError{
			Resource:  secretName,
			Operation: "exists",
			Err:       err,
		}
		return res
	}

	if exists {
		version, err := r.store.AddVersion(ctx, secretName, value)
		if err != nil {
			res.Outcome = OutcomeFailed
			res.Err = &provopserrors.RemoteOperationError{
				Resource:  secretName,
				Operation: "addVersion",
				Err:       err,
			}
			return res
		}
		res.Outcome = OutcomeUpdated
		res.Version = version
	} else {
		version, err := r.create(ctx, secretName, value)
		if err != nil {
			res.Outcome = OutcomeFailed
			res.Err = err
			return res
		}
		res.Outcome = OutcomeCreated
		res.Version = version
	}

	if r.opts.Principal != "" {
		if err := r.store.GrantAccess(ctx, secretName, r.opts.Principal, r.opts.Role); err != nil {
			res.Outcome = OutcomeFailed
			res.Err = &provopserrors.RemoteOperationError{
				Resource:  secretName,
				Operation: "grant",
				Err:       err,
			}
			return res
		}
		res.Granted = true
		metrics().grants.Inc()
	}
	return res
}

// create makes the secret with value as its initial version. When a
// concurrent writer created the secret between our existence check and the
// create call, fall back to adding a version to the secret they made.
func (r *Reconciler) create(ctx context.Context, secretName, value string) (string, error) {
	err := r.store.Create(ctx, secretName, value)
	if err == nil {
		return "1", nil
	}
	var already store.AlreadyExistsError
	if !errors.As(err, &already) {
		return "", &provopserrors.RemoteOperationError{
			Resource:  secretName,
			Operation: "create",
			Err:       err,
		}
	}
	version, err := r.store.AddVersion(ctx, secretName, value)
	if err != nil {
		return "", &provopserrors.RemoteOperationError{
			Resource:  secretName,
			Operation: "addVersion",
			Err:       fmt.Errorf("after concurrent create: %w", err),
		}
	}
	return version, nil
}
