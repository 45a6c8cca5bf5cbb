// Package main provides the uuidshift CLI, a staged migration tool that
// converts hex-encoded CHAR(32) key columns to native UUID columns on a live
// database.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/studioops/uuidshift/internal/db"
	"github.com/studioops/uuidshift/pkg/state"
	"github.com/studioops/uuidshift/pkg/transition"
)

var version = "dev"

// tool carries the shared wiring every subcommand needs: the database
// connection, the field descriptors, the stage tracker, and the per-table
// operation lock.
type tool struct {
	db      *gorm.DB
	cfg     *transition.Config
	tracker *state.Tracker
	locker  state.OperationLocker
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	var (
		dbType     string
		dbDSN      string
		configPath string
	)

	app := &tool{}

	rootCmd := &cobra.Command{
		Use:   "uuidshift",
		Short: "Staged hex-to-UUID key column migration",
		Long: `uuidshift converts CHAR(32) hex key columns to native UUID columns
through five explicit stages: shadow, backfill, validate, cutover, cleanup.

Each stage is a separate invocation so the operation can pause between
stages while the application keeps writing. Tables and columns are declared
in a YAML config file; progress is tracked per table in the database itself.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}))
			slog.SetDefault(logger)
			app.logger = logger

			cfg, err := transition.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("loading field config: %w", err)
			}
			app.cfg = cfg

			gormDB, err := db.Connect(db.Config{Type: dbType, DSN: dbDSN})
			if err != nil {
				glog.Fatalf("Failed to connect to database: %v", err)
			}
			app.db = gormDB

			app.tracker = state.NewTracker(gormDB)
			if err := app.tracker.AutoMigrate(); err != nil {
				return fmt.Errorf("preparing stage table: %w", err)
			}
			app.locker = state.NewOperationLocker(gormDB)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dbType, "db-type", "", "Database type (postgres, mysql, or sqlite); defaults to UUIDSHIFT_DB_TYPE")
	rootCmd.PersistentFlags().StringVar(&dbDSN, "db-dsn", "", "Database connection string; defaults to UUIDSHIFT_DB_DSN")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "fields.yaml", "Path to the field descriptor config")

	rootCmd.AddCommand(newShadowCmd(app))
	rootCmd.AddCommand(newBackfillCmd(app))
	rootCmd.AddCommand(newValidateCmd(app))
	rootCmd.AddCommand(newCutoverCmd(app))
	rootCmd.AddCommand(newRevertCmd(app))
	rootCmd.AddCommand(newCleanupCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))

	return rootCmd
}

func main() {
	// Initialize glog for backwards compatibility
	_ = flag.Set("logtostderr", "true")

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
