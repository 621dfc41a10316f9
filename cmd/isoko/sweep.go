package main

import (
	"time"

	"github.com/isoko-app/isoko/internal/sweeper"
	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the timeout, expiring-soon, and quote-expiry sweeps once",
		Long:  "Run one pass of all background sweeps and exit. Intended for external schedulers (cron, systemd timers).",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			conn, err := openDB(cfg)
			if err != nil {
				return err
			}
			orch, err := buildOrchestrator(conn, cfg)
			if err != nil {
				return err
			}
			sweeper.RunOnce(cmd.Context(), orch, time.Now(), cmd.OutOrStdout())
			return nil
		},
	}
}
