package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetwise/truck-tco/internal/db"
)

func TestUpIsIdempotent(t *testing.T) {
	ctx := context.Background()
	database, err := db.Open(ctx, filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	defer database.Close()

	applied, err := Up(ctx, database)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	applied, err = Up(ctx, database)
	require.NoError(t, err)
	assert.Zero(t, applied)

	version, err := Version(ctx, database)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
}

func TestSingleActivePresetIndex(t *testing.T) {
	ctx := context.Background()
	database, err := db.Open(ctx, filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer database.Close()

	_, err = Up(ctx, database)
	require.NoError(t, err)

	insert := `
		INSERT INTO rate_presets (
			name, year, is_active, motor_tax_per_year, truck_toll_diesel, truck_toll_bev,
			diesel_price_per_liter, electricity_price_per_kwh, hydrogen_price_per_kg,
			diesel_consumption, bev_consumption, fcev_consumption, h2ice_consumption,
			interest_rate, depreciation_years
		) VALUES (?, ?, ?, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 5)`

	_, err = database.ExecContext(ctx, insert, "a", 2025, true)
	require.NoError(t, err)
	_, err = database.ExecContext(ctx, insert, "b", 2026, false)
	require.NoError(t, err)
	_, err = database.ExecContext(ctx, insert, "c", 2027, true)
	require.Error(t, err, "second active preset must violate the unique index")
}
