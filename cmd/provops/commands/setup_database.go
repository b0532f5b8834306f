package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/provops/internal/config"
	"github.com/systmms/provops/internal/safety"
)

// NewSetupDatabaseCommand provisions the application database and user on
// the managed instance.
func NewSetupDatabaseCommand(cfg *config.Config) *cobra.Command {
	return newSetupDatabaseCommand(cfg, &collaborators{})
}

func newSetupDatabaseCommand(cfg *config.Config, collab *collaborators) *cobra.Command {
	return &cobra.Command{
		Use:   "setup-database",
		Short: "Create the application database and user on the managed instance",
		Long: `Setup-database classifies the instance, database, and user against
live remote state first. A missing instance or a protected name aborts
before any mutation. An existing database or user is reused only after
explicit confirmation; declining stops cleanly without changes.`,
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
			database, err := collab.databaseAdmin(ctx, cfg)
			if err != nil {
				return err
			}

			gate := safety.New(nil, database, nil, cfg.Logger)
			report, err := gate.Check(ctx, safety.Intent{
				Instance:  def.Database.Instance,
				Database:  def.Database.Name,
				User:      def.Database.User,
				Protected: def.ProtectedResources,
			})
			if err != nil {
				return err
			}
			if err := failOnBlocked(report); err != nil {
				return err
			}

			prompter := collab.interactivePrompter(cfg)
			if err := confirmOrAbort(cfg, prompter, report); err != nil {
				return err
			}

			// The user's password is part of the resolved configuration, so
			// DB_PASSWORD must resolve (prompted or from the environment)
			// before any database mutation happens.
			values, err := resolveValues(cfg, reg, prompter)
			if err != nil {
				return err
			}
			password := values["DB_PASSWORD"].Value

			instance := def.Database.Instance
			databaseExists, err := database.DatabaseExists(ctx, instance, def.Database.Name)
			if err != nil {
				return err
			}
			if !databaseExists {
				if err := database.CreateDatabase(ctx, instance, def.Database.Name); err != nil {
					return err
				}
				cfg.Logger.Info("Created database %s on %s", def.Database.Name, instance)
			} else {
				cfg.Logger.Info("Reusing existing database %s", def.Database.Name)
			}

			userExists, err := database.UserExists(ctx, instance, def.Database.User)
			if err != nil {
				return err
			}
			if !userExists {
				if err := database.CreateUser(ctx, instance, def.Database.User, password); err != nil {
					return err
				}
				cfg.Logger.Info("Created user %s on %s", def.Database.User, instance)
			} else {
				if err := database.SetPassword(ctx, instance, def.Database.User, password); err != nil {
					return err
				}
				cfg.Logger.Info("Updated password for existing user %s", def.Database.User)
			}

			if err := database.GrantPrivileges(ctx, instance, def.Database.Name, def.Database.User); err != nil {
				return err
			}
			cfg.Logger.Info("Granted privileges on %s to %s", def.Database.Name, def.Database.User)
			return nil
		},
	}
}
