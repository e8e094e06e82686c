package seed

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fleetwise/truck-tco/internal/store"
	"github.com/fleetwise/truck-tco/internal/tco"
)

// Config contains the values required by startup seed.
type Config struct {
	AdminEmail    string
	AdminPassword string
	Presets       []tco.RatePreset
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Skipped int
}

// Run executes the startup seed in an idempotent way.
func Run(ctx context.Context, db *sql.DB, cfg Config) (Stats, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := seedAdmin(ctx, tx, cfg.AdminEmail, cfg.AdminPassword, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	for _, p := range cfg.Presets {
		if err := ensurePreset(ctx, tx, p, &stats); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func seedAdmin(ctx context.Context, tx *sql.Tx, email, password string, stats *Stats) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ? LIMIT 1)`, email).Scan(&exists); err != nil {
		return fmt.Errorf("check admin user existence: %w", err)
	}
	if exists {
		stats.Skipped++
		return nil
	}

	hash, err := store.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO users (email, password_hash, is_admin) VALUES (?, ?, TRUE)`, email, hash); err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	stats.Inserts++
	return nil
}

// ensurePreset inserts p unless its year exists. A preset marked active is
// only inserted as active while no other preset is active.
func ensurePreset(ctx context.Context, tx *sql.Tx, p tco.RatePreset, stats *Stats) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM rate_presets WHERE year = ? LIMIT 1)`, p.Year).Scan(&exists); err != nil {
		return fmt.Errorf("check preset %d existence: %w", p.Year, err)
	}
	if exists {
		stats.Skipped++
		return nil
	}

	active := false
	if p.IsActive {
		var hasActive bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM rate_presets WHERE is_active = 1)`).Scan(&hasActive); err != nil {
			return fmt.Errorf("check active preset: %w", err)
		}
		active = !hasActive
	}

	defaultJSON, err := json.Marshal(p.DefaultValues)
	if err != nil {
		return fmt.Errorf("encode preset %d default values: %w", p.Year, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rate_presets (
			name, year, is_active,
			motor_tax_per_year, truck_toll_diesel, truck_toll_bev,
			diesel_price_per_liter, electricity_price_per_kwh, hydrogen_price_per_kg,
			diesel_consumption, bev_consumption, fcev_consumption, h2ice_consumption,
			interest_rate, depreciation_years, default_values_json
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.Name, p.Year, active,
		p.MotorTaxPerYear, p.TruckTollDiesel, p.TruckTollBev,
		p.DieselPricePerLiter, p.ElectricityPricePerKwh, p.HydrogenPricePerKg,
		p.DieselConsumption, p.BevConsumption, p.FcevConsumption, p.H2iceConsumption,
		p.InterestRate, p.DepreciationYears, string(defaultJSON),
	); err != nil {
		return fmt.Errorf("insert preset %d: %w", p.Year, err)
	}
	stats.Inserts++
	return nil
}
