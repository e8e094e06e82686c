package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/fleetwise/truck-tco/internal/model"
	"github.com/fleetwise/truck-tco/internal/tco"
)

const (
	summarySheet = "Comparison"
	inputSheet   = "Input"
)

// breakdownRows are the row labels of the comparison sheet and the value
// each one reads from a CostBreakdown.
var breakdownRows = []struct {
	label string
	value func(tco.CostBreakdown) float64
}{
	{"Purchase cost", func(c tco.CostBreakdown) float64 { return c.Breakdown.PurchaseCost }},
	{"Fuel cost", func(c tco.CostBreakdown) float64 { return c.Breakdown.FuelCost }},
	{"Maintenance cost", func(c tco.CostBreakdown) float64 { return c.Breakdown.MaintenanceCost }},
	{"Taxes and tolls", func(c tco.CostBreakdown) float64 { return c.Breakdown.TaxesCost }},
	{"Insurance cost", func(c tco.CostBreakdown) float64 { return c.Breakdown.InsuranceCost }},
	{"Total operating cost", func(c tco.CostBreakdown) float64 { return c.Breakdown.TotalOperatingCost }},
	{"Interest cost", func(c tco.CostBreakdown) float64 { return c.Breakdown.InterestCost }},
	{"Subsidy credit", func(c tco.CostBreakdown) float64 { return c.Breakdown.SubsidyCredit }},
	{"Total cost of ownership", func(c tco.CostBreakdown) float64 { return c.TotalCost }},
	{"Cost per km", func(c tco.CostBreakdown) float64 { return c.CostPerKm }},
	{"CO2 emissions (kg)", func(c tco.CostBreakdown) float64 { return c.CO2Emissions }},
}

// Filename returns the download name of a calculation export.
func Filename(calc model.Calculation, ext string) string {
	return fmt.Sprintf("tco_%s_%s.%s", calc.CreatedAt.Format("20060102_1504"), calc.ID, ext)
}

// WriteExcel writes calc as an xlsx workbook with a comparison sheet (one
// column per fuel type) and an input sheet.
func WriteExcel(w io.Writer, calc model.Calculation) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(inputSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	set := func(sheet string, col, row int, value any) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(sheet, cell, value)
	}

	results := calc.Results.Ordered()
	if err := set(summarySheet, 1, 1, calc.VehicleName); err != nil {
		return err
	}
	for i, cb := range results {
		if err := set(summarySheet, i+2, 1, cb.FuelType.Label()); err != nil {
			return err
		}
	}
	for r, row := range breakdownRows {
		if err := set(summarySheet, 1, r+2, row.label); err != nil {
			return err
		}
		for i, cb := range results {
			if err := set(summarySheet, i+2, r+2, row.value(cb)); err != nil {
				return err
			}
		}
	}

	cheapestRow := len(breakdownRows) + 3
	if cheapest, ok := calc.Results.Cheapest(); ok {
		if err := set(summarySheet, 1, cheapestRow, "Cheapest"); err != nil {
			return err
		}
		if err := set(summarySheet, 2, cheapestRow, cheapest.FuelType.Label()); err != nil {
			return err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(results)+1, 1)
	if err := f.SetCellStyle(summarySheet, "A1", lastHeader, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 26); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	for i, line := range inputLines(calc) {
		if err := set(inputSheet, 1, i+1, line.label); err != nil {
			return err
		}
		if err := set(inputSheet, 2, i+1, line.value); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(inputSheet, "A", "A", 26); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

type inputLine struct {
	label string
	value any
}

func inputLines(calc model.Calculation) []inputLine {
	in := calc.Input
	lines := []inputLine{
		{"Calculation", calc.ID},
		{"Vehicle", calc.VehicleName},
		{"Area", calc.AreaName},
		{"Preset year", calc.PresetYear},
		{"Created at", calc.CreatedAt.Format("2006-01-02 15:04")},
		{"Purchase price", in.PurchasePrice},
		{"Km per year", in.KmPerYear},
		{"Selected fuel type", string(in.FuelType)},
	}
	optional := []struct {
		label string
		value *float64
	}{
		{"Gross vehicle weight", in.GVW},
		{"Payload", in.Payload},
		{"Motor tax override", in.MotorTax},
		{"Subsidy override", in.Subsidy},
		{"Interest rate override", in.InterestRate},
		{"Depreciation years override", in.DepreciationYears},
		{"Maintenance per km override", in.MaintenanceCostPerKm},
		{"Insurance percentage override", in.InsurancePercentage},
	}
	for _, o := range optional {
		if o.value != nil {
			lines = append(lines, inputLine{o.label, *o.value})
		}
	}
	return lines
}

// WriteText writes a plain-text summary of calc, cheapest fuel type first.
func WriteText(w io.Writer, calc model.Calculation) error {
	title := calc.VehicleName
	if calc.AreaName != "" {
		title += " (" + calc.AreaName + ")"
	}
	if _, err := fmt.Fprintf(w, "TCO comparison: %s\nPreset %d, calculated %s\n\n",
		title, calc.PresetYear, calc.CreatedAt.Format("2006-01-02 15:04")); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	if _, err := fmt.Fprintln(tw, "Fuel type\tTotal cost\tCost/km\tCO2 kg\t"); err != nil {
		return err
	}
	ranked := calc.Results.Ranked()
	for _, cb := range ranked {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n",
			cb.FuelType.Label(), money(cb.TotalCost), money(cb.CostPerKm), decimal.NewFromFloat(cb.CO2Emissions).StringFixed(0)); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(ranked) > 1 {
		best, next := ranked[0], ranked[1]
		saving := decimal.NewFromFloat(next.TotalCost).Sub(decimal.NewFromFloat(best.TotalCost))
		if _, err := fmt.Fprintf(w, "\nCheapest: %s, %s less than %s\n",
			best.FuelType.Label(), saving.StringFixed(2), next.FuelType.Label()); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV writes one line per stored calculation.
func WriteCSV(w io.Writer, items []model.CalculationSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "created_at", "vehicle", "area", "preset_year", "cheapest", "cheapest_total_cost"}); err != nil {
		return err
	}
	for _, it := range items {
		if err := cw.Write([]string{
			it.ID,
			it.CreatedAt.Format("2006-01-02 15:04:05"),
			it.VehicleName,
			it.AreaName,
			fmt.Sprint(it.PresetYear),
			string(it.Cheapest),
			money(it.CheapestTCO),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
