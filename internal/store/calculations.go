package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fleetwise/truck-tco/internal/model"
	"github.com/fleetwise/truck-tco/internal/tco"
)

// CalculationStore persists calculation snapshots. Results are stored
// verbatim and never recalculated on read.
type CalculationStore struct {
	db *sql.DB
}

// NewCalculationStore creates a CalculationStore.
func NewCalculationStore(db *sql.DB) *CalculationStore {
	return &CalculationStore{db: db}
}

// Save inserts a snapshot.
func (s *CalculationStore) Save(ctx context.Context, c model.Calculation) error {
	inputJSON, err := json.Marshal(c.Input)
	if err != nil {
		return fmt.Errorf("encode calculation input: %w", err)
	}
	resultsJSON, err := json.Marshal(c.Results)
	if err != nil {
		return fmt.Errorf("encode calculation results: %w", err)
	}

	var presetID any
	if c.PresetID > 0 {
		presetID = c.PresetID
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calculations (id, vehicle_name, area_name, preset_id, preset_year, fuel_type, input_json, results_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.VehicleName, c.AreaName, presetID, c.PresetYear, string(c.Input.FuelType), string(inputJSON), string(resultsJSON), formatTime(c.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: calculation %s already exists", ErrConflict, c.ID)
		}
		return fmt.Errorf("insert calculation: %w", err)
	}
	return nil
}

// Get reads a snapshot by id.
func (s *CalculationStore) Get(ctx context.Context, id string) (model.Calculation, error) {
	var (
		c           model.Calculation
		presetID    sql.NullInt64
		inputJSON   string
		resultsJSON string
		createdAt   string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, vehicle_name, area_name, preset_id, preset_year, input_json, results_json, CAST(created_at AS TEXT)
		FROM calculations
		WHERE id = ?
	`, id).Scan(&c.ID, &c.VehicleName, &c.AreaName, &presetID, &c.PresetYear, &inputJSON, &resultsJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Calculation{}, ErrNotFound
	}
	if err != nil {
		return model.Calculation{}, fmt.Errorf("query calculation %s: %w", id, err)
	}

	c.PresetID = presetID.Int64
	if err := json.Unmarshal([]byte(inputJSON), &c.Input); err != nil {
		return model.Calculation{}, fmt.Errorf("decode calculation input: %w", err)
	}
	if err := json.Unmarshal([]byte(resultsJSON), &c.Results); err != nil {
		return model.Calculation{}, fmt.Errorf("decode calculation results: %w", err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Calculation{}, err
	}
	return c, nil
}

// List returns snapshots newest first, optionally filtered by a search term
// matched against the vehicle and area names.
func (s *CalculationStore) List(ctx context.Context, query string) ([]model.CalculationSummary, error) {
	search := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vehicle_name, area_name, preset_year, results_json, CAST(created_at AS TEXT)
		FROM calculations
		WHERE (? = '' OR vehicle_name LIKE ? OR area_name LIKE ?)
		ORDER BY created_at DESC, id DESC
	`, query, search, search)
	if err != nil {
		return nil, fmt.Errorf("query calculations: %w", err)
	}
	defer rows.Close()

	items := make([]model.CalculationSummary, 0)
	for rows.Next() {
		var (
			item        model.CalculationSummary
			resultsJSON string
			createdAt   string
		)
		if err := rows.Scan(&item.ID, &item.VehicleName, &item.AreaName, &item.PresetYear, &resultsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan calculation: %w", err)
		}
		if item.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}

		var results tco.Result
		if err := json.Unmarshal([]byte(resultsJSON), &results); err != nil {
			return nil, fmt.Errorf("decode results of calculation %s: %w", item.ID, err)
		}
		if cheapest, ok := results.Cheapest(); ok {
			item.Cheapest = cheapest.FuelType
			item.CheapestTCO = cheapest.TotalCost
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calculations: %w", err)
	}
	return items, nil
}

// Delete removes a snapshot.
func (s *CalculationStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM calculations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete calculation %s: %w", id, err)
	}
	return requireAffected(result)
}

const timeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q", s)
}
