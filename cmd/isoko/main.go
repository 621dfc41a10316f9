package main

import (
	"fmt"
	"os"

	"github.com/isoko-app/isoko/internal/config"
	"github.com/isoko-app/isoko/internal/db"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "isoko",
		Short: "Isoko — time-boxed multi-vendor quote negotiation",
		Long:  "Isoko runs quote-collection negotiations: open a session, contact vendors, rank offers, accept one.",
	}

	cmd.PersistentFlags().String("config", "isoko.yaml", "path to the YAML config file")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSweepCmd())
	cmd.AddCommand(newVendorCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "isoko %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// loadConfig reads the config file named by the --config flag, falling back
// to defaults when the file does not exist.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		return config.Default(), nil
	}
	return config.Load(path)
}

// openDB connects to the configured store.
func openDB(cfg *config.Config) (*gorm.DB, error) {
	return db.Connect(cfg.Database)
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
