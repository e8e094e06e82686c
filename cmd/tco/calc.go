package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetwise/truck-tco/internal/calculator"
	"github.com/fleetwise/truck-tco/internal/export"
	"github.com/fleetwise/truck-tco/internal/model"
	"github.com/fleetwise/truck-tco/internal/seed"
	"github.com/fleetwise/truck-tco/internal/store"
	"github.com/fleetwise/truck-tco/internal/tco"
)

type calcOptions struct {
	vehicle     string
	area        string
	price       float64
	km          float64
	fuel        string
	presetsFile string
	year        int
	format      string
	out         string
	save        bool

	// Overrides are kept as raw strings so blank means "use the preset".
	motorTax          string
	subsidy           string
	interestRate      string
	depreciationYears string
	maintenance       string
	insurance         string
}

func newCalcCmd(a *app) *cobra.Command {
	o := &calcOptions{}

	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Compute the four-way TCO comparison",
		Long: `Compute the cost breakdown of diesel, BEV, FCEV and H2ICE for one truck.

Rates come from the active preset in the database, or from a YAML presets
file with --presets. --year selects a preset other than the active one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCalc(cmd.Context(), cmd.OutOrStdout(), o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.vehicle, "vehicle", "Truck", "vehicle name shown in exports")
	f.StringVar(&o.area, "area", "", "operating area shown in exports")
	f.Float64Var(&o.price, "price", 0, "purchase price in EUR [REQUIRED]")
	f.Float64Var(&o.km, "km", 0, "kilometres per year [REQUIRED]")
	f.StringVar(&o.fuel, "fuel", "", "selected fuel type (diesel, bev, fcev, h2ice)")
	f.StringVar(&o.presetsFile, "presets", "", "YAML presets file instead of the database")
	f.IntVar(&o.year, "year", 0, "preset year (default the active preset)")
	f.StringVarP(&o.format, "format", "f", "table", "output format: table, json or xlsx")
	f.StringVarP(&o.out, "out", "o", "", "output file (required for xlsx)")
	f.BoolVar(&o.save, "save", false, "store the calculation in the database")
	f.StringVar(&o.motorTax, "motor-tax", "", "motor tax per year override")
	f.StringVar(&o.subsidy, "subsidy", "", "subsidy override")
	f.StringVar(&o.interestRate, "interest-rate", "", "interest rate override in percent")
	f.StringVar(&o.depreciationYears, "depreciation-years", "", "depreciation years override")
	f.StringVar(&o.maintenance, "maintenance", "", "maintenance cost per km override")
	f.StringVar(&o.insurance, "insurance", "", "insurance percentage override")
	_ = cmd.MarkFlagRequired("price")
	_ = cmd.MarkFlagRequired("km")

	return cmd
}

func (o *calcOptions) input() (tco.CalculationInput, error) {
	in := tco.CalculationInput{PurchasePrice: o.price, KmPerYear: o.km}
	if o.fuel != "" {
		f, err := tco.ParseFuelType(o.fuel)
		if err != nil {
			return tco.CalculationInput{}, err
		}
		in.FuelType = f
	}

	overrides := []struct {
		raw string
		dst **float64
	}{
		{o.motorTax, &in.MotorTax},
		{o.subsidy, &in.Subsidy},
		{o.interestRate, &in.InterestRate},
		{o.depreciationYears, &in.DepreciationYears},
		{o.maintenance, &in.MaintenanceCostPerKm},
		{o.insurance, &in.InsurancePercentage},
	}
	for _, ov := range overrides {
		v, err := tco.ParseOverride(ov.raw)
		if err != nil {
			return tco.CalculationInput{}, err
		}
		*ov.dst = v
	}
	return in, nil
}

func (a *app) runCalc(ctx context.Context, out io.Writer, o *calcOptions) error {
	switch o.format {
	case "table", "json", "xlsx":
	default:
		return fmt.Errorf("unknown format %q", o.format)
	}
	if o.format == "xlsx" && o.out == "" {
		return fmt.Errorf("--out is required for xlsx output")
	}
	if o.save && o.presetsFile != "" {
		return fmt.Errorf("--save needs the database presets, drop --presets")
	}

	input, err := o.input()
	if err != nil {
		return err
	}

	var calc model.Calculation
	if o.save {
		calc, err = a.calculateAndSave(ctx, o, input)
	} else {
		calc, err = a.calculate(ctx, o, input)
	}
	if err != nil {
		return err
	}

	return writeCalculation(out, o, calc)
}

// calculate computes without storing anything.
func (a *app) calculate(ctx context.Context, o *calcOptions, input tco.CalculationInput) (model.Calculation, error) {
	preset, err := a.resolvePreset(ctx, o)
	if err != nil {
		return model.Calculation{}, err
	}
	results, err := tco.Compute(input, preset)
	if err != nil {
		return model.Calculation{}, err
	}
	return model.Calculation{
		VehicleName: o.vehicle,
		AreaName:    o.area,
		PresetID:    preset.ID,
		PresetYear:  preset.Year,
		Input:       input,
		Results:     results,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (a *app) resolvePreset(ctx context.Context, o *calcOptions) (tco.RatePreset, error) {
	if o.presetsFile != "" {
		presets, err := seed.LoadPresets(o.presetsFile)
		if err != nil {
			return tco.RatePreset{}, err
		}
		return tco.ResolvePreset(presets, o.year)
	}

	database, err := a.openDB(ctx)
	if err != nil {
		return tco.RatePreset{}, err
	}
	defer database.Close()

	presets := store.NewPresetStore(database)
	if o.year != 0 {
		return presets.ByYear(ctx, o.year)
	}
	return presets.Active(ctx)
}

func (a *app) calculateAndSave(ctx context.Context, o *calcOptions, input tco.CalculationInput) (model.Calculation, error) {
	if o.year != 0 {
		return model.Calculation{}, fmt.Errorf("--save always uses the active preset, drop --year")
	}

	database, err := a.openDB(ctx)
	if err != nil {
		return model.Calculation{}, err
	}
	defer database.Close()

	svc := calculator.New(store.NewPresetStore(database), store.NewCalculationStore(database), a.logger)
	return svc.Calculate(ctx, calculator.Request{VehicleName: o.vehicle, AreaName: o.area, Input: input})
}

func writeCalculation(out io.Writer, o *calcOptions, calc model.Calculation) error {
	switch o.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(calc)
	case "xlsx":
		f, err := os.Create(o.out)
		if err != nil {
			return fmt.Errorf("create %s: %w", o.out, err)
		}
		if err := export.WriteExcel(f, calc); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", o.out)
		return nil
	default:
		return export.WriteText(out, calc)
	}
}
