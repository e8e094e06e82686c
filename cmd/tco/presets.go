package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleetwise/truck-tco/internal/seed"
	"github.com/fleetwise/truck-tco/internal/store"
)

func newPresetsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List and activate rate presets",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored presets, newest year first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			presets, err := store.NewPresetStore(database).List(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "YEAR\tNAME\tACTIVE\tDIESEL €/L\tELECTRICITY €/kWh\tHYDROGEN €/kg")
			for _, p := range presets {
				active := ""
				if p.IsActive {
					active = "*"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%.2f\t%.2f\n", p.Year, p.Name, active, p.DieselPricePerLiter, p.ElectricityPricePerKwh, p.HydrogenPricePerKg)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "activate <year>",
		Short: "Make the preset of a year the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid year %q", args[0])
			}

			database, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			presets := store.NewPresetStore(database)
			p, err := presets.ByYear(cmd.Context(), year)
			if err != nil {
				return err
			}
			if err := presets.Activate(cmd.Context(), p.ID); err != nil {
				return err
			}

			a.logger.Info("preset activated", zap.Int("year", year))
			fmt.Fprintf(cmd.OutOrStdout(), "preset %d (%s) is now active\n", p.Year, p.Name)
			return nil
		},
	})

	return cmd
}

func newSeedCmd(a *app) *cobra.Command {
	var presetsFile string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the admin user and missing presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if presetsFile == "" {
				presetsFile = a.cfg.PresetsFile
			}
			presets, err := seed.LoadPresets(presetsFile)
			if err != nil {
				return err
			}

			database, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			stats, err := seed.Run(cmd.Context(), database, seed.Config{
				AdminEmail:    a.cfg.AdminEmail,
				AdminPassword: a.cfg.AdminPassword,
				Presets:       presets,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seed: %d inserted, %d already present\n", stats.Inserts, stats.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&presetsFile, "presets", "", "YAML presets file (default PRESETS_FILE or built-in presets)")
	return cmd
}
