package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleetwise/truck-tco/internal/config"
	"github.com/fleetwise/truck-tco/internal/db"
	"github.com/fleetwise/truck-tco/internal/logging"
	"github.com/fleetwise/truck-tco/internal/migrations"
)

// app carries what every subcommand needs once the root command has run.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	dbPath  string
	verbose bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "tco",
		Short: "Compare the total cost of ownership of diesel, BEV, FCEV and H2ICE trucks",
		Long: `tco compares the lifetime cost of a truck across four powertrains.

Examples:
  tco calc --price 120000 --km 50000
  tco calc --price 120000 --km 50000 --presets presets.yaml --year 2025 --format json
  tco calc --price 120000 --km 50000 --format xlsx --out comparison.xlsx
  tco presets list
  tco presets activate 2026`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			level := cfg.LogLevel
			if a.verbose {
				level = "debug"
			}
			logger, err := logging.New(level, "console")
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger
			if a.dbPath == "" {
				a.dbPath = cfg.DBPath
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path (default DB_PATH)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newCalcCmd(a))
	root.AddCommand(newPresetsCmd(a))
	root.AddCommand(newMigrateCmd(a))
	root.AddCommand(newSeedCmd(a))
	return root
}

// openDB opens the database and brings the schema up to date.
func (a *app) openDB(ctx context.Context) (*sql.DB, error) {
	database, err := db.Open(ctx, a.dbPath)
	if err != nil {
		return nil, err
	}
	applied, err := migrations.Up(ctx, database)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("run database migrations: %w", err)
	}
	if applied > 0 {
		a.logger.Debug("migrations applied", zap.Int("count", applied))
	}
	return database, nil
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := db.Open(ctx, a.dbPath)
			if err != nil {
				return err
			}
			defer database.Close()

			applied, err := migrations.Up(ctx, database)
			if err != nil {
				return err
			}
			version, err := migrations.Version(ctx, database)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migrations, schema version %d\n", applied, version)
			return nil
		},
	}
}
