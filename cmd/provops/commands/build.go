package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/provops/internal/build"
	"github.com/systmms/provops/internal/config"
)

// NewBuildCommand builds the service container image locally.
func NewBuildCommand(cfg *config.Config) *cobra.Command {
	return newBuildCommand(cfg, &collaborators{})
}

func newBuildCommand(cfg *config.Config, collab *collaborators) *cobra.Command {
	var contextDir string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the service container image",
		Long: `Build runs a docker build of the configured image from the build
output directory. The directory contents are treated as an opaque input.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cfg); err != nil {
				return err
			}
			builder := build.New(collab.commandExecutor(), cfg.Logger)
			return builder.Build(cmd.Context(), cfg.Definition.Service.Image, contextDir)
		},
	}
	cmd.Flags().StringVar(&contextDir, "context", "./build", "Build context directory")
	return cmd
}
