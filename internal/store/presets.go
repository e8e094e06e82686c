package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fleetwise/truck-tco/internal/tco"
)

const presetColumns = `
	id, name, year, is_active,
	motor_tax_per_year, truck_toll_diesel, truck_toll_bev,
	diesel_price_per_liter, electricity_price_per_kwh, hydrogen_price_per_kg,
	diesel_consumption, bev_consumption, fcev_consumption, h2ice_consumption,
	interest_rate, depreciation_years, default_values_json, CAST(updated_at AS TEXT)`

// PresetStore persists rate presets in SQLite. At most one preset is active;
// Activate is the only way to change which one.
type PresetStore struct {
	db *sql.DB
}

// NewPresetStore creates a PresetStore.
func NewPresetStore(db *sql.DB) *PresetStore {
	return &PresetStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPreset(row rowScanner) (tco.RatePreset, error) {
	var (
		p           tco.RatePreset
		defaultJSON string
		updatedAt   string
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Year, &p.IsActive,
		&p.MotorTaxPerYear, &p.TruckTollDiesel, &p.TruckTollBev,
		&p.DieselPricePerLiter, &p.ElectricityPricePerKwh, &p.HydrogenPricePerKg,
		&p.DieselConsumption, &p.BevConsumption, &p.FcevConsumption, &p.H2iceConsumption,
		&p.InterestRate, &p.DepreciationYears, &defaultJSON, &updatedAt,
	)
	if err != nil {
		return tco.RatePreset{}, err
	}
	if err := json.Unmarshal([]byte(defaultJSON), &p.DefaultValues); err != nil {
		return tco.RatePreset{}, fmt.Errorf("decode default values of preset %d: %w", p.ID, err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return tco.RatePreset{}, err
	}
	return p, nil
}

func (s *PresetStore) query(ctx context.Context, where string, args ...any) ([]tco.RatePreset, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+presetColumns+` FROM rate_presets `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query rate presets: %w", err)
	}
	defer rows.Close()

	presets := make([]tco.RatePreset, 0)
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rate preset: %w", err)
		}
		presets = append(presets, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rate presets: %w", err)
	}
	return presets, nil
}

// List returns every preset, newest year first.
func (s *PresetStore) List(ctx context.Context) ([]tco.RatePreset, error) {
	return s.query(ctx, `ORDER BY year DESC, id DESC`)
}

// Get returns the preset with the given id.
func (s *PresetStore) Get(ctx context.Context, id int64) (tco.RatePreset, error) {
	p, err := scanPreset(s.db.QueryRowContext(ctx, `SELECT `+presetColumns+` FROM rate_presets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return tco.RatePreset{}, ErrNotFound
	}
	if err != nil {
		return tco.RatePreset{}, fmt.Errorf("query rate preset %d: %w", id, err)
	}
	return p, nil
}

// Active returns the single active preset or tco.ErrNoActivePreset.
func (s *PresetStore) Active(ctx context.Context) (tco.RatePreset, error) {
	presets, err := s.query(ctx, `WHERE is_active = 1`)
	if err != nil {
		return tco.RatePreset{}, err
	}
	return tco.ResolvePreset(presets, 0)
}

// ByYear returns the preset for year or tco.ErrPresetNotFound.
func (s *PresetStore) ByYear(ctx context.Context, year int) (tco.RatePreset, error) {
	presets, err := s.query(ctx, `WHERE year = ?`, year)
	if err != nil {
		return tco.RatePreset{}, err
	}
	return tco.ResolvePreset(presets, year)
}

// Create inserts p and fills in its id. An active preset replaces the
// currently active one.
func (s *PresetStore) Create(ctx context.Context, p *tco.RatePreset) error {
	if err := p.Validate(); err != nil {
		return err
	}
	defaultJSON, err := json.Marshal(p.DefaultValues)
	if err != nil {
		return fmt.Errorf("encode default values: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create preset transaction: %w", err)
	}
	defer tx.Rollback()

	if p.IsActive {
		if _, err := tx.ExecContext(ctx, `UPDATE rate_presets SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP WHERE is_active = 1`); err != nil {
			return fmt.Errorf("deactivate presets: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO rate_presets (
			name, year, is_active,
			motor_tax_per_year, truck_toll_diesel, truck_toll_bev,
			diesel_price_per_liter, electricity_price_per_kwh, hydrogen_price_per_kg,
			diesel_consumption, bev_consumption, fcev_consumption, h2ice_consumption,
			interest_rate, depreciation_years, default_values_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.Name, p.Year, p.IsActive,
		p.MotorTaxPerYear, p.TruckTollDiesel, p.TruckTollBev,
		p.DieselPricePerLiter, p.ElectricityPricePerKwh, p.HydrogenPricePerKg,
		p.DieselConsumption, p.BevConsumption, p.FcevConsumption, p.H2iceConsumption,
		p.InterestRate, p.DepreciationYears, string(defaultJSON),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: preset for year %d already exists", ErrConflict, p.Year)
		}
		return fmt.Errorf("insert rate preset: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read preset id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create preset transaction: %w", err)
	}
	p.ID = id
	return nil
}

// Update overwrites the rates of an existing preset. The active flag is
// left untouched; use Activate to switch presets.
func (s *PresetStore) Update(ctx context.Context, p tco.RatePreset) error {
	if err := p.Validate(); err != nil {
		return err
	}
	defaultJSON, err := json.Marshal(p.DefaultValues)
	if err != nil {
		return fmt.Errorf("encode default values: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE rate_presets
		SET
			name = ?,
			year = ?,
			motor_tax_per_year = ?,
			truck_toll_diesel = ?,
			truck_toll_bev = ?,
			diesel_price_per_liter = ?,
			electricity_price_per_kwh = ?,
			hydrogen_price_per_kg = ?,
			diesel_consumption = ?,
			bev_consumption = ?,
			fcev_consumption = ?,
			h2ice_consumption = ?,
			interest_rate = ?,
			depreciation_years = ?,
			default_values_json = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`,
		p.Name, p.Year,
		p.MotorTaxPerYear, p.TruckTollDiesel, p.TruckTollBev,
		p.DieselPricePerLiter, p.ElectricityPricePerKwh, p.HydrogenPricePerKg,
		p.DieselConsumption, p.BevConsumption, p.FcevConsumption, p.H2iceConsumption,
		p.InterestRate, p.DepreciationYears, string(defaultJSON),
		p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: preset for year %d already exists", ErrConflict, p.Year)
		}
		return fmt.Errorf("update rate preset %d: %w", p.ID, err)
	}
	return requireAffected(result)
}

// Activate makes the preset with id the only active one.
func (s *PresetStore) Activate(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activate preset transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM rate_presets WHERE id = ?)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check preset existence: %w", err)
	}
	if !exists {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `UPDATE rate_presets SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP WHERE is_active = 1 AND id <> ?`, id); err != nil {
		return fmt.Errorf("deactivate presets: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE rate_presets SET is_active = TRUE, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id); err != nil {
		return fmt.Errorf("activate preset %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit activate preset transaction: %w", err)
	}
	return nil
}

// Delete removes an inactive preset.
func (s *PresetStore) Delete(ctx context.Context, id int64) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.IsActive {
		return fmt.Errorf("%w: activate another preset before deleting %d", ErrActivePreset, id)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM rate_presets WHERE id = ? AND is_active = 0`, id)
	if err != nil {
		return fmt.Errorf("delete rate preset %d: %w", id, err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
