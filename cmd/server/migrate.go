package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/practice-booking/internal/database"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long:  `Apply the embedded schema for the configured driver (DB_DRIVER). Statements are idempotent.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := bootstrap(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()
		if err := database.Migrate(cmd.Context(), a.db, a.cfg.DBDriver); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema applied (%s)\n", a.cfg.DBDriver)
		return nil
	},
}
