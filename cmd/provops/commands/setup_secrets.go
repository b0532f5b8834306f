package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/provops/internal/config"
	"github.com/systmms/provops/internal/reconcile"
	"github.com/systmms/provops/internal/safety"
)

// NewSetupSecretsCommand resolves the configuration and reconciles it into
// the secret store.
func NewSetupSecretsCommand(cfg *config.Config) *cobra.Command {
	return newSetupSecretsCommand(cfg, &collaborators{})
}

func newSetupSecretsCommand(cfg *config.Config, collab *collaborators) *cobra.Command {
	return &cobra.Command{
		Use:   "setup-secrets",
		Short: "Resolve the configuration and write it to the secret store",
		Long: `Setup-secrets resolves every variable (environment overrides win,
then static, derived, prompted, and generated values), then converges the
secret store: absent secrets are created, existing ones gain a new version,
and the service identity is granted read access. One variable failing does
not stop the rest; any failure yields a non-zero exit at the end.`,
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
			secrets, err := collab.secretStore(ctx, cfg)
			if err != nil {
				return err
			}

			// Read-only classification first; secret names colliding with
			// the protected list block before resolution prompts anything.
			gate := safety.New(secrets, nil, nil, cfg.Logger)
			report, err := gate.Check(ctx, safety.Intent{
				Secrets:   qualifiedSecretNames(cfg, reg),
				Protected: def.ProtectedResources,
			})
			if err != nil {
				return err
			}
			if err := failOnBlocked(report); err != nil {
				return err
			}

			values, err := resolveValues(cfg, reg, collab.interactivePrompter(cfg))
			if err != nil {
				return err
			}

			rec := reconcile.New(secrets, reconcile.Options{
				Prefix:    def.SecretStore.Prefix,
				Principal: def.SecretStore.Principal,
				Role:      def.SecretStore.Role,
				Order:     reg.Names(),
				Logger:    cfg.Logger,
			})
			result, err := rec.Reconcile(ctx, values)
			if err != nil {
				return err
			}

			cfg.Logger.Info("Reconciled %d variable(s): %d created, %d updated, %d failed",
				len(result.Results), result.Created(), result.Updated(), result.Failed())
			if !result.OK() {
				return fmt.Errorf("%d of %d secrets failed to reconcile", result.Failed(), len(result.Results))
			}
			return nil
		},
	}
}
