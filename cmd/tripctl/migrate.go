package main

import (
	"github.com/spf13/cobra"

	"summitpass.id/app/internal/config"
	"summitpass.id/app/internal/db"
	"summitpass.id/app/internal/schema"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or extend the database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			gdb, err := db.Open(cfg.DB)
			if err != nil {
				return err
			}
			defer db.Close(gdb)

			if err := schema.Migrate(cmd.Context(), gdb); err != nil {
				return err
			}
			cmd.Printf("migrated %d tables\n", len(schema.Models()))
			return nil
		},
	}
}
