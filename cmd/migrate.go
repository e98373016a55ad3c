package cmd

import (
	"context"

	"example.com/backstage/services/analytics/internal/database"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the analytics tables",
	Long:  `Create the events, system_metrics and financial_events tables if they do not exist`,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Bootstrap(context.Background()); err != nil {
		return err
	}

	log.Info().Str("driver", cfg.DB.Driver).Msg("Schema bootstrap complete")
	return nil
}
