package main

import (
	"github.com/spf13/cobra"

	"github.com/iliyamo/student-records/internal/database"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the default admin and teacher accounts",
	Long:  "Creates admin@example.com and teacher@example.com unless they already exist. Safe to run repeatedly.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		db, err := database.Open(cmd.Context(), cfg.DatabaseURL, log)
		if err != nil {
			return err
		}
		defer db.Close()
		return database.Seed(cmd.Context(), db, database.DefaultAccounts(), cfg.BcryptCost, log)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
