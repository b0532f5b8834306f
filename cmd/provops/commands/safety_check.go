package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/provops/internal/config"
	"github.com/systmms/provops/internal/registry"
	"github.com/systmms/provops/internal/safety"
)

// NewSafetyCheckCommand reports how every provisioning target classifies
// against live remote state, without mutating anything.
func NewSafetyCheckCommand(cfg *config.Config) *cobra.Command {
	return newSafetyCheckCommand(cfg, &collaborators{})
}

func newSafetyCheckCommand(cfg *config.Config, collab *collaborators) *cobra.Command {
	return &cobra.Command{
		Use:   "safety-check",
		Short: "Classify provisioning targets against live remote state (read-only)",
		Long: `Safety-check inspects the remote environment and classifies every
resource the workflow would touch: new, existing, protected, or a missing
prerequisite. It issues no mutating calls. Protected collisions and missing
dependencies are hard errors; everything else is informational.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadConfig(cfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			report, err := runSafetyCheck(ctx, cfg, reg, collab)
			if err != nil {
				return err
			}
			printSafetyReport(report)
			return failOnBlocked(report)
		},
	}
}

func runSafetyCheck(ctx context.Context, cfg *config.Config, reg *registry.Registry, collab *collaborators) (*safety.Report, error) {
	def := cfg.Definition

	secrets, err := collab.secretStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	database, err := collab.databaseAdmin(ctx, cfg)
	if err != nil {
		return nil, err
	}
	compute, err := collab.computePlatform(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var secretNames []string
	for _, name := range reg.Names() {
		secretNames = append(secretNames, def.QualifiedSecretName(name))
	}

	gate := safety.New(secrets, database, compute, cfg.Logger)
	return gate.Check(ctx, safety.Intent{
		Instance:  def.Database.Instance,
		Database:  def.Database.Name,
		User:      def.Database.User,
		Service:   def.Service.Name,
		Secrets:   secretNames,
		Protected: def.ProtectedResources,
	})
}

func printSafetyReport(report *safety.Report) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tNAME\tCLASSIFICATION\tDETAIL")
	for _, f := range report.Findings {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Type, f.Name, f.Class, f.Detail)
	}
	w.Flush()
	fmt.Printf("\n%d error(s), %d warning(s)\n", report.Errors(), report.Warnings())
}
