package cmd

import (
	"github.com/spf13/cobra"

	"clinica-medicos/models"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the medicos table and identity index if missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := models.NewRepository(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(); err != nil {
			return err
		}
		logger.Println("Migrations applied successfully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
