package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/config"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/db"
)

func newMigrateCmd() *cobra.Command {
	var (
		down  bool
		steps int
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or revert the database schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("migrate: DATABASE_URL is not set")
			}

			dir := db.Up
			if down {
				dir = db.Down
			}
			version, err := db.Migrate(cfg.DatabaseURL, cfg.MigrationsPath, dir, steps)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}

	config.AddFlags(cmd.Flags())
	cmd.Flags().BoolVar(&down, "down", false, "Revert migrations instead of applying them")
	cmd.Flags().IntVar(&steps, "steps", 0, "Number of migrations to run; 0 runs all")
	return cmd
}
