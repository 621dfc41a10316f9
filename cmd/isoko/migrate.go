package main

import (
	"fmt"

	"github.com/isoko-app/isoko/internal/db"
	"github.com/isoko-app/isoko/internal/directory"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables and seed configured vendors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			conn, err := openDB(cfg)
			if err != nil {
				return err
			}
			if err := db.AutoMigrate(conn); err != nil {
				return err
			}
			if err := directory.Seed(conn, cfg.Vendors); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migration complete (%d vendors seeded)\n", len(cfg.Vendors))
			return nil
		},
	}
}
