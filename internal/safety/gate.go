// Package safety implements the pre-mutation classification pass.
//
// The gate inspects live remote state and classifies every resource the
// workflow intends to touch before any mutating call is issued. It is
// strictly read-only and its report is rebuilt from scratch on every run:
// remote state can change between runs, so cached classifications would
// reintroduce the accidental-overwrite bug the gate exists to prevent.
package safety

import (
	"context"

	"github.com/systmms/provops/internal/logging"
	"github.com/systmms/provops/pkg/store"
)

// Classification is the safety verdict for a single remote resource.
type Classification string

const (
	// ClassNew marks a resource that does not exist remotely and is safe
	// to create.
	ClassNew Classification = "new"
	// ClassExistingReusable marks a resource that exists and can be reused
	// without destructive effect (e.g. a secret, which only ever gains
	// versions).
	ClassExistingReusable Classification = "existing-reusable"
	// ClassExistingNeedsConfirmation marks a resource the workflow intends
	// to create that already exists; proceeding requires an explicit
	// operator confirmation.
	ClassExistingNeedsConfirmation Classification = "existing-needs-confirmation"
	// ClassProtected marks a resource that must never be mutated. Any
	// attempt to proceed against it is a hard error.
	ClassProtected Classification = "protected"
	// ClassMissingDependency marks a prerequisite that is absent entirely.
	// Always a hard error for the dependent step.
	ClassMissingDependency Classification = "missing-dependency"
)

// ResourceType identifies what kind of remote resource a finding is about.
type ResourceType string

const (
	ResourceInstance ResourceType = "instance"
	ResourceDatabase ResourceType = "database"
	ResourceUser     ResourceType = "user"
	ResourceSecret   ResourceType = "secret"
	ResourceService  ResourceType = "service"
)

// Finding is one classified resource in a Report.
type Finding struct {
	Type   ResourceType
	Name   string
	Class  Classification
	Detail string
}

// Report aggregates the gate's per-resource classifications for one run.
type Report struct {
	Findings []Finding
}

// Protected returns every finding classified protected.
func (r *Report) Protected() []Finding { return r.filter(ClassProtected) }

// MissingDependencies returns every missing-dependency finding.
func (r *Report) MissingDependencies() []Finding { return r.filter(ClassMissingDependency) }

// NeedsConfirmation returns every finding that requires operator sign-off.
func (r *Report) NeedsConfirmation() []Finding { return r.filter(ClassExistingNeedsConfirmation) }

// Errors counts hard-error findings (protected collisions and missing
// dependencies).
func (r *Report) Errors() int {
	return len(r.Protected()) + len(r.MissingDependencies())
}

// Warnings counts findings that need confirmation but are not hard errors.
func (r *Report) Warnings() int { return len(r.NeedsConfirmation()) }

// Blocked reports whether mutation must not proceed regardless of operator
// input.
func (r *Report) Blocked() bool { return r.Errors() > 0 }

func (r *Report) filter(c Classification) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Class == c {
			out = append(out, f)
		}
	}
	return out
}

// Intent describes the remote resources a provisioning run wants to create
// or reuse, plus the names that are off-limits.
type Intent struct {
	// Instance is the managed database instance the workflow depends on.
	// It is a prerequisite, never a creation target.
	Instance string
	// Database and User are the provisioning targets on the instance.
	Database string
	User     string
	// Service is the compute service to deploy.
	Service string
	// Secrets are the fully qualified secret names to reconcile.
	Secrets []string
	// Protected are resource names that must never be mutated.
	Protected []string
}

// Gate classifies remote state ahead of mutation. All collaborator calls it
// makes are read-only.
type Gate struct {
	secrets  store.SecretStore
	database store.DatabaseAdmin
	compute  store.ComputePlatform
	logger   *logging.Logger
}

// New returns a Gate. Any collaborator may be nil, in which case resources
// of that kind are skipped (e.g. a secrets-only check needs no database
// admin).
func New(secrets store.SecretStore, database store.DatabaseAdmin, compute store.ComputePlatform, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.New(false, true)
	}
	return &Gate{secrets: secrets, database: database, compute: compute, logger: logger}
}

// Check classifies every resource named by the intent against live remote
// state. Classification priority per resource: protected, then existing,
// then new; an absent prerequisite is missing-dependency.
func (g *Gate) Check(ctx context.Context, intent Intent) (*Report, error) {
	report := &Report{}
	protected := make(map[string]bool, len(intent.Protected))
	for _, name := range intent.Protected {
		protected[name] = true
	}

	instanceOK := true
	if g.database != nil && intent.Instance != "" {
		exists, err := g.database.InstanceExists(ctx, intent.Instance)
		if err != nil {
			return nil, err
		}
		if !exists {
			instanceOK = false
			report.Findings = append(report.Findings, Finding{
				Type:   ResourceInstance,
				Name:   intent.Instance,
				Class:  ClassMissingDependency,
				Detail: "database instance not found",
			})
		}
	}

	if g.database != nil && intent.Database != "" {
		f, err := g.classifyDatabase(ctx, intent, protected, instanceOK)
		if err != nil {
			return nil, err
		}
		report.Findings = append(report.Findings, f)
	}
	if g.database != nil && intent.User != "" {
		f, err := g.classifyUser(ctx, intent, protected, instanceOK)
		if err != nil {
			return nil, err
		}
		report.Findings = append(report.Findings, f)
	}
	if g.compute != nil && intent.Service != "" {
		f, err := g.classifyService(ctx, intent.Service, protected)
		if err != nil {
			return nil, err
		}
		report.Findings = append(report.Findings, f)
	}
	if g.secrets != nil {
		for _, name := range intent.Secrets {
			f, err := g.classifySecret(ctx, name, protected)
			if err != nil {
				return nil, err
			}
			report.Findings = append(report.Findings, f)
		}
	}

	for _, f := range report.Findings {
		switch f.Class {
		case ClassProtected:
			g.logger.Error("%s %q is protected and must not be touched", f.Type, f.Name)
		case ClassMissingDependency:
			g.logger.Error("%s %q: %s", f.Type, f.Name, f.Detail)
		case ClassExistingNeedsConfirmation:
			g.logger.Warn("%s %q already exists; confirmation required before overwrite", f.Type, f.Name)
		default:
			g.logger.Debug("%s %q classified %s", f.Type, f.Name, f.Class)
		}
	}
	return report, nil
}

func (g *Gate) classifyDatabase(ctx context.Context, intent Intent, protected map[string]bool, instanceOK bool) (Finding, error) {
	f := Finding{Type: ResourceDatabase, Name: intent.Database}
	if protected[intent.Database] {
		f.Class = ClassProtected
		return f, nil
	}
	if !instanceOK {
		// Existence cannot be determined without the instance; the
		// missing-dependency finding already blocks the run.
		f.Class = ClassMissingDependency
		f.Detail = "instance absent, existence unknown"
		return f, nil
	}
	exists, err := g.database.DatabaseExists(ctx, intent.Instance, intent.Database)
	if err != nil {
		return Finding{}, err
	}
	if exists {
		f.Class = ClassExistingNeedsConfirmation
	} else {
		f.Class = ClassNew
	}
	return f, nil
}

func (g *Gate) classifyUser(ctx context.Context, intent Intent, protected map[string]bool, instanceOK bool) (Finding, error) {
	f := Finding{Type: ResourceUser, Name: intent.User}
	if protected[intent.User] {
		f.Class = ClassProtected
		return f, nil
	}
	if !instanceOK {
		f.Class = ClassMissingDependency
		f.Detail = "instance absent, existence unknown"
		return f, nil
	}
	exists, err := g.database.UserExists(ctx, intent.Instance, intent.User)
	if err != nil {
		return Finding{}, err
	}
	if exists {
		f.Class = ClassExistingNeedsConfirmation
	} else {
		f.Class = ClassNew
	}
	return f, nil
}

func (g *Gate) classifyService(ctx context.Context, service string, protected map[string]bool) (Finding, error) {
	f := Finding{Type: ResourceService, Name: service}
	if protected[service] {
		f.Class = ClassProtected
		return f, nil
	}
	status, err := g.compute.Describe(ctx, service)
	if err != nil {
		return Finding{}, err
	}
	if status.Exists {
		// Redeploying an existing service is the normal upgrade path.
		f.Class = ClassExistingReusable
	} else {
		f.Class = ClassNew
	}
	return f, nil
}

func (g *Gate) classifySecret(ctx context.Context, name string, protected map[string]bool) (Finding, error) {
	f := Finding{Type: ResourceSecret, Name: name}
	if protected[name] {
		f.Class = ClassProtected
		return f, nil
	}
	exists, err := g.secrets.Exists(ctx, name)
	if err != nil {
		return Finding{}, err
	}
	if exists {
		// Reconciliation appends a version, never rewrites history.
		f.Class = ClassExistingReusable
	} else {
		f.Class = ClassNew
	}
	return f, nil
}
