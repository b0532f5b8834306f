// Package commands wires the CLI surface. Each command constructor takes
// the shared *config.Config populated by the root command's flags; remote
// collaborators are built on demand, or injected for tests.
package commands

import (
	"context"
	"fmt"

	"github.com/systmms/provops/internal/config"
	provopserrors "github.com/systmms/provops/internal/errors"
	"github.com/systmms/provops/internal/registry"
	"github.com/systmms/provops/internal/resolve"
	"github.com/systmms/provops/internal/safety"
	"github.com/systmms/provops/internal/stores"
	"github.com/systmms/provops/pkg/exec"
	"github.com/systmms/provops/pkg/store"
)

// collaborators bundles the remote backends a command talks to. A nil
// field is constructed from configuration on first use; tests pre-populate
// the fields with fakes.
type collaborators struct {
	secrets  store.SecretStore
	database store.DatabaseAdmin
	cache    store.CacheInspector
	bucket   store.BucketInspector
	compute  store.ComputePlatform
	auth     store.Authenticator
	executor exec.CommandExecutor
	prompter resolve.Prompter
}

func (c *collaborators) secretStore(ctx context.Context, cfg *config.Config) (store.SecretStore, error) {
	if c.secrets != nil {
		return c.secrets, nil
	}
	s, err := stores.NewSecretStore(ctx, cfg.Definition.SecretStore, cfg.Logger)
	if err != nil {
		return nil, err
	}
	c.secrets = s
	return s, nil
}

func (c *collaborators) databaseAdmin(ctx context.Context, cfg *config.Config) (store.DatabaseAdmin, error) {
	if c.database != nil {
		return c.database, nil
	}
	db := cfg.Definition.Database
	admin, err := stores.NewCloudSQLAdmin(ctx, cfg.Definition.Project, db.Engine, db.AdminDSN, cfg.Logger)
	if err != nil {
		return nil, err
	}
	c.database = admin
	return admin, nil
}

func (c *collaborators) cacheInspector(ctx context.Context, cfg *config.Config) (store.CacheInspector, error) {
	if c.cache != nil {
		return c.cache, nil
	}
	inspector, err := stores.NewMemorystoreInspector(ctx, cfg.Definition.Project, cfg.Definition.Region)
	if err != nil {
		return nil, err
	}
	c.cache = inspector
	return inspector, nil
}

func (c *collaborators) bucketInspector(ctx context.Context, cfg *config.Config) (store.BucketInspector, error) {
	if c.bucket != nil {
		return c.bucket, nil
	}
	inspector, err := stores.NewCloudStorageInspector(ctx)
	if err != nil {
		return nil, err
	}
	c.bucket = inspector
	return inspector, nil
}

func (c *collaborators) computePlatform(ctx context.Context, cfg *config.Config) (store.ComputePlatform, error) {
	if c.compute != nil {
		return c.compute, nil
	}
	platform, err := stores.NewCloudRunPlatform(ctx, cfg.Definition.Project, cfg.Definition.Region, cfg.Logger)
	if err != nil {
		return nil, err
	}
	c.compute = platform
	return platform, nil
}

func (c *collaborators) authenticator(cfg *config.Config) store.Authenticator {
	if c.auth == nil {
		c.auth = stores.NewAuthenticator(cfg.Definition.SecretStore)
	}
	return c.auth
}

func (c *collaborators) commandExecutor() exec.CommandExecutor {
	if c.executor == nil {
		c.executor = exec.DefaultExecutor()
	}
	return c.executor
}

func (c *collaborators) interactivePrompter(cfg *config.Config) resolve.Prompter {
	if c.prompter != nil {
		return c.prompter
	}
	if cfg.NonInteractive {
		c.prompter = resolve.NonInteractivePrompter{}
	} else {
		c.prompter = resolve.DefaultPrompter()
	}
	return c.prompter
}

// loadConfig loads provops.yaml and builds the variable registry from it.
func loadConfig(cfg *config.Config) (*registry.Registry, error) {
	if err := cfg.Load(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	reg, err := registry.ForDeployment(cfg.Definition)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// resolveValues applies environment overrides (validated against protected
// names first) and resolves every variable in the registry.
func resolveValues(cfg *config.Config, reg *registry.Registry, prompter resolve.Prompter) (map[string]resolve.ResolvedValue, error) {
	overrides := resolve.OverridesFromEnvironment(reg)
	if err := reg.ValidateOverrides(overrides, cfg.Definition.IsProtected); err != nil {
		return nil, err
	}
	resolver := resolve.New(prompter, cfg.Logger)
	return resolver.Resolve(reg, overrides)
}

// qualifiedSecretNames maps every registry variable to its remote secret
// name.
func qualifiedSecretNames(cfg *config.Config, reg *registry.Registry) []string {
	names := reg.Names()
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, cfg.Definition.QualifiedSecretName(name))
	}
	return out
}

// checkAuthenticated fails with a precondition error when the backend's
// credentials do not resolve.
func checkAuthenticated(ctx context.Context, cfg *config.Config, auth store.Authenticator) error {
	ok, err := auth.IsAuthenticated(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return &provopserrors.PreconditionError{
			Requirement: "authentication",
			Message:     "no usable credentials for the configured secret store backend",
			Suggestion:  "Authenticate first (e.g. `gcloud auth application-default login` or `aws sso login`)",
		}
	}
	return nil
}

// confirmOrAbort asks the operator to confirm every finding that requires
// it. Declining any one aborts cleanly.
func confirmOrAbort(cfg *config.Config, prompter resolve.Prompter, report *safety.Report) error {
	for _, finding := range report.NeedsConfirmation() {
		question := fmt.Sprintf("%s %q already exists. Reuse it and overwrite its settings?", finding.Type, finding.Name)
		ok, err := prompter.Confirm(question)
		if err != nil {
			return err
		}
		if !ok {
			cfg.Logger.Info("Aborted at operator request; nothing was changed")
			return provopserrors.ErrAborted
		}
	}
	return nil
}

// failOnBlocked converts hard-error findings into the corresponding typed
// errors.
func failOnBlocked(report *safety.Report) error {
	if protected := report.Protected(); len(protected) > 0 {
		f := protected[0]
		return provopserrors.ProtectedResourceError{
			Resource:  f.Name,
			Operation: "provision",
		}
	}
	if missing := report.MissingDependencies(); len(missing) > 0 {
		f := missing[0]
		return provopserrors.MissingDependencyError{
			Dependency: f.Name,
			Detail:     f.Detail,
			Suggestion: "Create the prerequisite resource before provisioning on top of it",
		}
	}
	return nil
}
