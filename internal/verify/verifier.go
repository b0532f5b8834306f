// Package verify implements the read-only convergence check.
//
// The verifier re-derives the expected remote state from the variable
// registry and the deployment definition, then diffs it against actual
// remote state. It never mutates anything and never remediates: a gap in
// its report is fixed by an explicit, operator-invoked reconciliation run.
package verify

import (
	"context"
	"fmt"

	"github.com/systmms/provops/internal/config"
	"github.com/systmms/provops/internal/logging"
	"github.com/systmms/provops/internal/registry"
	"github.com/systmms/provops/pkg/store"
)

// State is the verification verdict for one expected resource.
type State string

const (
	StateSatisfied State = "satisfied"
	StateMissing   State = "missing"
	// StateDegraded marks a resource that exists but is not in a usable
	// state (e.g. a cache instance that is still provisioning), or whose
	// state could not be determined.
	StateDegraded State = "degraded"
)

// CheckResult is one line of a verification report.
type CheckResult struct {
	Kind   string // "secret", "database", "user", "cache", "bucket", "service"
	Name   string
	State  State
	Detail string
}

// Report aggregates check results for one verification pass.
type Report struct {
	Results []CheckResult
}

func (r *Report) count(s State) int {
	n := 0
	for _, res := range r.Results {
		if res.State == s {
			n++
		}
	}
	return n
}

func (r *Report) Satisfied() int { return r.count(StateSatisfied) }
func (r *Report) Missing() int   { return r.count(StateMissing) }
func (r *Report) Degraded() int  { return r.count(StateDegraded) }

// OK reports whether the environment is ready to proceed to deployment.
func (r *Report) OK() bool { return r.Missing() == 0 && r.Degraded() == 0 }

// Expectation is the remote state the registry and definition imply.
type Expectation struct {
	Secrets  []string // fully qualified secret names
	Instance string
	Database string
	User     string
	CacheID  string
	Bucket   string
	Service  string
}

// Expected derives the expectation from the deployment definition and its
// registry. Optional variables are excluded: they are legitimately absent
// when their resolved value was empty, so their absence is not a gap.
func Expected(def *config.Definition, reg *registry.Registry) (Expectation, error) {
	exp := Expectation{
		Instance: def.Database.Instance,
		Database: def.Database.Name,
		User:     def.Database.User,
		CacheID:  def.Cache.ID,
		Bucket:   def.Bucket,
		Service:  def.Service.Name,
	}
	for _, name := range reg.Names() {
		rule, err := reg.Rule(name)
		if err != nil {
			return Expectation{}, err
		}
		if rule.Optional {
			continue
		}
		exp.Secrets = append(exp.Secrets, def.QualifiedSecretName(name))
	}
	return exp, nil
}

// A ConnectivityProbe reports whether the provisioned database actually
// accepts connections, beyond the admin API saying its resources exist.
type ConnectivityProbe func(ctx context.Context) error

// Verifier diffs expected remote state against actual remote state. All
// collaborators are optional; nil collaborators skip their resource kind.
type Verifier struct {
	secrets  store.SecretStore
	database store.DatabaseAdmin
	cache    store.CacheInspector
	bucket   store.BucketInspector
	compute  store.ComputePlatform
	probe    ConnectivityProbe
	logger   *logging.Logger
}

func New(secrets store.SecretStore, database store.DatabaseAdmin, cache store.CacheInspector, bucket store.BucketInspector, compute store.ComputePlatform, logger *logging.Logger) *Verifier {
	if logger == nil {
		logger = logging.New(false, true)
	}
	return &Verifier{
		secrets:  secrets,
		database: database,
		cache:    cache,
		bucket:   bucket,
		compute:  compute,
		logger:   logger,
	}
}

// WithConnectivityProbe adds a database connection check, run only when
// the instance itself reports present. A failing probe marks the database
// degraded: it exists but does not accept connections.
func (v *Verifier) WithConnectivityProbe(probe ConnectivityProbe) *Verifier {
	v.probe = probe
	return v
}

// Verify checks every expected resource. Checks are independent: a failure
// or gap in one resource never stops verification of the rest, so a single
// missing prerequisite still yields a complete picture of everything else.
func (v *Verifier) Verify(ctx context.Context, exp Expectation) (*Report, error) {
	report := &Report{}
	add := func(res CheckResult) {
		report.Results = append(report.Results, res)
		switch res.State {
		case StateSatisfied:
			v.logger.Debug("%s %q satisfied", res.Kind, res.Name)
		case StateMissing:
			v.logger.Warn("%s %q is missing", res.Kind, res.Name)
		case StateDegraded:
			v.logger.Warn("%s %q is degraded: %s", res.Kind, res.Name, res.Detail)
		}
	}

	if v.secrets != nil {
		for _, name := range exp.Secrets {
			add(v.checkSecret(ctx, name))
		}
	}
	if v.database != nil && exp.Instance != "" {
		instanceRes := v.checkInstance(ctx, exp.Instance)
		add(instanceRes)
		instanceUp := instanceRes.State == StateSatisfied
		if exp.Database != "" {
			add(v.checkDatabase(ctx, exp, instanceUp))
		}
		if exp.User != "" {
			add(v.checkUser(ctx, exp, instanceUp))
		}
		if v.probe != nil && instanceUp {
			add(v.checkConnectivity(ctx, exp))
		}
	}
	if v.cache != nil && exp.CacheID != "" {
		add(v.checkCache(ctx, exp.CacheID))
	}
	if v.bucket != nil && exp.Bucket != "" {
		add(v.checkBucket(ctx, exp.Bucket))
	}
	if v.compute != nil && exp.Service != "" {
		add(v.checkService(ctx, exp.Service))
	}
	return report, nil
}

func existence(kind, name string, exists bool, err error) CheckResult {
	res := CheckResult{Kind: kind, Name: name}
	switch {
	case err != nil:
		res.State = StateDegraded
		res.Detail = err.Error()
	case exists:
		res.State = StateSatisfied
	default:
		res.State = StateMissing
	}
	return res
}

func (v *Verifier) checkSecret(ctx context.Context, name string) CheckResult {
	exists, err := v.secrets.Exists(ctx, name)
	return existence("secret", name, exists, err)
}

func (v *Verifier) checkInstance(ctx context.Context, instance string) CheckResult {
	exists, err := v.database.InstanceExists(ctx, instance)
	return existence("instance", instance, exists, err)
}

func (v *Verifier) checkDatabase(ctx context.Context, exp Expectation, instanceUp bool) CheckResult {
	if !instanceUp {
		return CheckResult{
			Kind:   "database",
			Name:   exp.Database,
			State:  StateDegraded,
			Detail: fmt.Sprintf("instance %q unavailable, existence unknown", exp.Instance),
		}
	}
	exists, err := v.database.DatabaseExists(ctx, exp.Instance, exp.Database)
	return existence("database", exp.Database, exists, err)
}

func (v *Verifier) checkUser(ctx context.Context, exp Expectation, instanceUp bool) CheckResult {
	if !instanceUp {
		return CheckResult{
			Kind:   "user",
			Name:   exp.User,
			State:  StateDegraded,
			Detail: fmt.Sprintf("instance %q unavailable, existence unknown", exp.Instance),
		}
	}
	exists, err := v.database.UserExists(ctx, exp.Instance, exp.User)
	return existence("user", exp.User, exists, err)
}

func (v *Verifier) checkConnectivity(ctx context.Context, exp Expectation) CheckResult {
	res := CheckResult{Kind: "connectivity", Name: exp.Database}
	if err := v.probe(ctx); err != nil {
		res.State = StateDegraded
		res.Detail = err.Error()
		return res
	}
	res.State = StateSatisfied
	return res
}

func (v *Verifier) checkCache(ctx context.Context, id string) CheckResult {
	res := CheckResult{Kind: "cache", Name: id}
	status, err := v.cache.Describe(ctx, id)
	switch {
	case err != nil:
		res.State = StateMissing
		res.Detail = err.Error()
	case status.Ready():
		res.State = StateSatisfied
	default:
		res.State = StateDegraded
		res.Detail = fmt.Sprintf("state %s", status.State)
	}
	return res
}

func (v *Verifier) checkBucket(ctx context.Context, name string) CheckResult {
	exists, err := v.bucket.BucketExists(ctx, name)
	return existence("bucket", name, exists, err)
}

func (v *Verifier) checkService(ctx context.Context, service string) CheckResult {
	res := CheckResult{Kind: "service", Name: service}
	status, err := v.compute.Describe(ctx, service)
	switch {
	case err != nil:
		res.State = StateDegraded
		res.Detail = err.Error()
	case !status.Exists:
		res.State = StateMissing
	case !status.Ready:
		res.State = StateDegraded
		res.Detail = status.Detail
	default:
		res.State = StateSatisfied
	}
	return res
}
