package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetwise/truck-tco/internal/tco"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func filledWizard(t *testing.T) *Wizard {
	t.Helper()

	w := NewWizard("w1", t0)
	require.NoError(t, w.Advance(StepVehicle, map[string]string{
		"vehicleName":   "eActros 600",
		"purchasePrice": "120000",
		"gvw":           "40000",
	}, t0))
	require.NoError(t, w.Advance(StepUsage, map[string]string{
		"kmPerYear": "50000",
		"fuelType":  "BEV",
		"areaName":  " Hamburg ",
	}, t0))
	return w
}

func TestAdvance_WalksThroughSteps(t *testing.T) {
	w := NewWizard("w1", t0)
	assert.Equal(t, StepVehicle, w.Step)

	require.NoError(t, w.Advance(StepVehicle, map[string]string{
		"vehicleName":   "eActros 600",
		"purchasePrice": "120000",
	}, t0))
	assert.Equal(t, StepUsage, w.Step)

	require.NoError(t, w.Advance(StepUsage, map[string]string{"kmPerYear": "50000", "fuelType": "bev", "areaName": " Hamburg "}, t0))
	assert.Equal(t, StepOverrides, w.Step)
	assert.Equal(t, "Hamburg", w.AreaName)
	assert.Equal(t, tco.BEV, w.Input.FuelType)

	later := t0.Add(time.Minute)
	require.NoError(t, w.Advance(StepOverrides, map[string]string{"interestRate": "4,5", "subsidy": ""}, later))
	assert.Equal(t, StepReview, w.Step)
	require.NotNil(t, w.Input.InterestRate)
	assert.Equal(t, 4.5, *w.Input.InterestRate)
	assert.Nil(t, w.Input.Subsidy)
	assert.Equal(t, later, w.UpdatedAt)

	require.NoError(t, w.Advance(StepReview, nil, later))
	assert.Equal(t, StepReview, w.Step)
	require.NoError(t, w.Ready())
}

func TestAdvance_CannotSkipAhead(t *testing.T) {
	w := NewWizard("w1", t0)

	err := w.Advance(StepOverrides, map[string]string{}, t0)
	require.ErrorIs(t, err, ErrStepOrder)
	assert.Equal(t, StepVehicle, w.Step)

	require.ErrorIs(t, w.Advance(Step("payment"), nil, t0), ErrUnknownStep)
	require.ErrorIs(t, w.Ready(), tco.ErrInvalidInput)
}

func TestAdvance_ResubmittingEarlierStepKeepsProgress(t *testing.T) {
	w := filledWizard(t)
	require.Equal(t, StepOverrides, w.Step)

	require.NoError(t, w.Advance(StepVehicle, map[string]string{
		"vehicleName":   "eActros 300",
		"purchasePrice": "99000",
	}, t0))
	assert.Equal(t, StepOverrides, w.Step)
	assert.Equal(t, "eActros 300", w.VehicleName)
	assert.Equal(t, 99000.0, w.Input.PurchasePrice)
	assert.Nil(t, w.Input.GVW)
}

func TestAdvance_InvalidValuesLeaveWizardUnchanged(t *testing.T) {
	tests := []struct {
		name   string
		step   Step
		values map[string]string
		want   error
	}{
		{"missing name", StepVehicle, map[string]string{"purchasePrice": "1"}, tco.ErrInvalidInput},
		{"zero price", StepVehicle, map[string]string{"vehicleName": "x", "purchasePrice": "0"}, tco.ErrInvalidInput},
		{"text price", StepVehicle, map[string]string{"vehicleName": "x", "purchasePrice": "abc"}, tco.ErrResolution},
		{"unknown fuel", StepUsage, map[string]string{"kmPerYear": "1", "fuelType": "lpg"}, tco.ErrUnknownFuelType},
		{"missing km", StepUsage, map[string]string{"fuelType": "diesel"}, tco.ErrInvalidInput},
		{"non-finite override", StepOverrides, map[string]string{"truckToll": "Inf"}, tco.ErrResolution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := filledWizard(t)
			before := *w

			err := w.Advance(tt.step, tt.values, t0.Add(time.Hour))
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, before, *w)
		})
	}
}

func TestApplyPresetDefaults_FillsOnlyUnsetFields(t *testing.T) {
	w := filledWizard(t)
	w.Input.InterestRate = ptr(6)

	insurance := 3.1
	ApplyPresetDefaults(w, tco.RatePreset{
		Year:              2026,
		MotorTaxPerYear:   345,
		InterestRate:      3.5,
		DepreciationYears: 5,
		DefaultValues:     tco.DefaultValues{InsurancePercentage: &insurance},
	})

	assert.Equal(t, 2026, w.PresetYear)
	assert.Equal(t, 6.0, *w.Input.InterestRate)
	assert.Equal(t, 5.0, *w.Input.DepreciationYears)
	assert.Equal(t, 345.0, *w.Input.MotorTax)
	assert.Equal(t, 3.1, *w.Input.InsurancePercentage)

	insurance = 9
	assert.Equal(t, 3.1, *w.Input.InsurancePercentage, "prefill must not alias the preset")
}

func TestApplyPresetDefaults_NoInsuranceInPreset(t *testing.T) {
	w := filledWizard(t)
	ApplyPresetDefaults(w, tco.RatePreset{Year: 2026, DepreciationYears: 5})
	assert.Nil(t, w.Input.InsurancePercentage)
}

func TestParseStep(t *testing.T) {
	s, err := ParseStep(" Usage ")
	require.NoError(t, err)
	assert.Equal(t, StepUsage, s)

	_, err = ParseStep("checkout")
	require.ErrorIs(t, err, ErrUnknownStep)
}

func TestMemoryStore_RoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)
	now := t0
	store.now = func() time.Time { return now }

	w := filledWizard(t)
	require.NoError(t, store.Save(ctx, w))

	got, err := store.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, w.VehicleName, got.VehicleName)
	assert.Equal(t, w.Input.PurchasePrice, got.Input.PurchasePrice)

	// Mutating the loaded copy does not touch the stored one.
	got.VehicleName = "changed"
	again, err := store.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "eActros 600", again.VehicleName)

	now = t0.Add(time.Hour)
	_, err = store.Get(ctx, "w1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, w))
	require.NoError(t, store.Delete(ctx, "w1"))
	_, err = store.Get(ctx, "w1")
	require.ErrorIs(t, err, ErrNotFound)
}

// TestRedisStore_RoundTrip runs against a real server when TEST_REDIS_ADDR is set.
func TestRedisStore_RoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	require.NoError(t, client.Ping(ctx).Err())

	store := NewRedisStore(client, time.Minute)
	w := filledWizard(t)
	w.ID = "test-" + t.Name()
	require.NoError(t, store.Save(ctx, w))
	t.Cleanup(func() { _ = store.Delete(ctx, w.ID) })

	got, err := store.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.Input.FuelType, got.Input.FuelType)

	ttl, err := client.TTL(ctx, wizardKey(w.ID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, store.Delete(ctx, w.ID))
	_, err = store.Get(ctx, w.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
