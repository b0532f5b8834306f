package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/provops/internal/build"
	"github.com/systmms/provops/internal/config"
	provopserrors "github.com/systmms/provops/internal/errors"
	"github.com/systmms/provops/internal/registry"
	"github.com/systmms/provops/pkg/store"
)

// Readiness polling uses a fixed delay: deploys are operator-invoked and
// infrequent, so backoff buys nothing.
var (
	deployPollInterval = 5 * time.Second
	deployPollAttempts = 60
)

// NewDeployCommand pushes the built image and deploys it to the compute
// platform.
func NewDeployCommand(cfg *config.Config) *cobra.Command {
	return newDeployCommand(cfg, &collaborators{})
}

func newDeployCommand(cfg *config.Config, collab *collaborators) *cobra.Command {
	var skipPush bool

	cmd := &cobra.Command{
		Use:   "push-and-deploy",
		Short: "Push the image and deploy the service",
		Long: `Push-and-deploy pushes the built image to the registry, deploys the
service wired to the reconciled secrets, and waits for it to report ready.
Run setup-secrets first so every secret reference the service mounts
already exists.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadConfig(cfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			def := cfg.Definition

			if err := checkAuthenticated(ctx, cfg, collab.authenticator(cfg)); err != nil {
				return err
			}

			if !skipPush {
				builder := build.New(collab.commandExecutor(), cfg.Logger)
				if err := builder.Push(ctx, def.Service.Image); err != nil {
					return err
				}
			}

			compute, err := collab.computePlatform(ctx, cfg)
			if err != nil {
				return err
			}
			imageOK, err := compute.ImageExists(ctx, def.Service.Image)
			if err != nil {
				return err
			}
			if !imageOK {
				return provopserrors.MissingDependencyError{
					Dependency: def.Service.Image,
					Detail:     "image not found in the registry",
					Suggestion: "Run `provops build` and push the image first",
				}
			}

			secrets, err := collab.secretStore(ctx, cfg)
			if err != nil {
				return err
			}
			spec, err := serviceSpec(ctx, cfg, reg, secrets)
			if err != nil {
				return err
			}
			deployment, err := compute.Deploy(ctx, spec)
			if err != nil {
				return err
			}
			cfg.Logger.Info("Deployed %s, waiting for readiness", def.Service.Name)

			status, err := waitForReady(ctx, compute, def.Service.Name)
			if err != nil {
				return err
			}
			url := status.URL
			if url == "" {
				url = deployment.URL
			}
			cfg.Logger.Info("Service %s is ready at %s", def.Service.Name, url)
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipPush, "skip-push", false, "Deploy without pushing the image first")
	return cmd
}

// serviceSpec wires registry variables into the service as secret
// references. Values never pass through this process at deploy time; the
// platform mounts the latest secret version directly. Optional variables
// that resolved empty were dropped at reconcile time, so their references
// are only mounted when the secret actually exists — a reference to an
// absent secret fails the revision at startup.
func serviceSpec(ctx context.Context, cfg *config.Config, reg *registry.Registry, secrets store.SecretStore) (store.ServiceSpec, error) {
	def := cfg.Definition
	secretEnv := make(map[string]string)
	for _, name := range reg.Names() {
		rule, err := reg.Rule(name)
		if err != nil {
			return store.ServiceSpec{}, err
		}
		qualified := def.QualifiedSecretName(name)
		if rule.Optional {
			exists, err := secrets.Exists(ctx, qualified)
			if err != nil {
				return store.ServiceSpec{}, err
			}
			if !exists {
				cfg.Logger.Debug("Optional variable %s has no secret; not mounting it", name)
				continue
			}
		}
		secretEnv[name] = qualified
	}
	return store.ServiceSpec{
		Name:           def.Service.Name,
		Image:          def.Service.Image,
		Region:         def.Region,
		ServiceAccount: def.Service.ServiceAccount,
		SecretEnv:      secretEnv,
		Port:           def.Service.Port,
	}, nil
}

func waitForReady(ctx context.Context, compute store.ComputePlatform, service string) (store.ServiceStatus, error) {
	var status store.ServiceStatus
	for attempt := 0; attempt < deployPollAttempts; attempt++ {
		var err error
		status, err = compute.Describe(ctx, service)
		if err != nil {
			return store.ServiceStatus{}, err
		}
		if status.Ready {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return store.ServiceStatus{}, ctx.Err()
		case <-time.After(deployPollInterval):
		}
	}
	return status, fmt.Errorf("service %s did not become ready (last state: %s)", service, status.Detail)
}
