package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/provops/internal/config"
	"github.com/systmms/provops/internal/registry"
)

// planEntry is one row of the plan output. Values are never shown.
type planEntry struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Source   string `json:"source"`
	Optional bool   `json:"optional,omitempty"`
	Secret   string `json:"secret"`
}

// NewPlanCommand shows how each variable will resolve and which secret it
// maps to, without resolving values or touching remote state.
func NewPlanCommand(cfg *config.Config) *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show how each variable will resolve (no values shown)",
		Long: `Plan lists every variable in definition order with its resolution
kind, its source, and the remote secret it maps to. Nothing is resolved and
no remote call is made, so plan is safe to run anywhere.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadConfig(cfg)
			if err != nil {
				return err
			}

			entries, err := planEntries(cfg, reg)
			if err != nil {
				return err
			}
			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			printPlanTable(entries)
			return nil
		},
	}
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output as JSON")
	return cmd
}

func planEntries(cfg *config.Config, reg *registry.Registry) ([]planEntry, error) {
	var entries []planEntry
	for _, name := range reg.Names() {
		rule, err := reg.Rule(name)
		if err != nil {
			return nil, err
		}
		entry := planEntry{
			Name:     name,
			Optional: rule.Optional,
			Secret:   cfg.Definition.QualifiedSecretName(name),
		}
		switch rule.Kind {
		case registry.KindStatic:
			entry.Kind = "static"
			entry.Source = "configuration"
		case registry.KindDerived:
			entry.Kind = "derived"
			entry.Source = fmt.Sprintf("derived from %v", rule.DependsOn)
		case registry.KindInteractive:
			entry.Kind = "interactive"
			entry.Source = "operator prompt (or env override)"
		case registry.KindGenerated:
			entry.Kind = "generated"
			entry.Source = "generator (or env override)"
		}
		if _, ok := os.LookupEnv(name); ok {
			entry.Source = "environment override"
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func printPlanTable(entries []planEntry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VARIABLE\tKIND\tSOURCE\tSECRET")
	for _, e := range entries {
		name := e.Name
		if e.Optional {
			name += " (optional)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, e.Kind, e.Source, e.Secret)
	}
	w.Flush()
}
