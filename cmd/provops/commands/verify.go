package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/provops/internal/config"
	"github.com/systmms/provops/internal/verify"
)

// NewVerifyCommand diffs expected remote state against actual remote state
// without mutating anything.
func NewVerifyCommand(cfg *config.Config) *cobra.Command {
	return newVerifyCommand(cfg, &collaborators{})
}

func newVerifyCommand(cfg *config.Config, collab *collaborators) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that remote state matches the configuration (read-only)",
		Long: `Verify re-derives the expected remote state from the configuration
and checks each expected resource remotely. It is safe to run repeatedly
and never remediates: fix gaps with setup-database or setup-secrets. A
missing resource yields a non-zero exit; degraded-only results exit zero.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadConfig(cfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			def := cfg.Definition

			secrets, err := collab.secretStore(ctx, cfg)
			if err != nil {
				return err
			}
			database, err := collab.databaseAdmin(ctx, cfg)
			if err != nil {
				return err
			}
			var cache = collab.cache
			if def.Cache.ID != "" && cache == nil {
				cache, err = collab.cacheInspector(ctx, cfg)
				if err != nil {
					return err
				}
			}
			var bucket = collab.bucket
			if def.Bucket != "" && bucket == nil {
				bucket, err = collab.bucketInspector(ctx, cfg)
				if err != nil {
					return err
				}
			}
			compute, err := collab.computePlatform(ctx, cfg)
			if err != nil {
				return err
			}

			expectation, err := verify.Expected(def, reg)
			if err != nil {
				return err
			}
			verifier := verify.New(secrets, database, cache, bucket, compute, cfg.Logger)
			if def.Database.AdminDSN != "" {
				engine := def.Database.Engine
				if engine == "" {
					engine = "postgres"
				}
				verifier = verifier.WithConnectivityProbe(verify.DSNProbe(engine, def.Database.AdminDSN))
			}
			report, err := verifier.Verify(ctx, expectation)
			if err != nil {
				return err
			}

			printVerifyReport(report)
			if report.Missing() > 0 {
				return fmt.Errorf("%d expected resource(s) missing", report.Missing())
			}
			return nil
		},
	}
}

func printVerifyReport(report *verify.Report) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tNAME\tSTATE\tDETAIL")
	for _, res := range report.Results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", res.Kind, res.Name, res.State, res.Detail)
	}
	w.Flush()
	fmt.Printf("\n%d satisfied, %d missing, %d degraded\n",
		report.Satisfied(), report.Missing(), report.Degraded())
}
