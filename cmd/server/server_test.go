package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleetwise/truck-tco/internal/config"
	"github.com/fleetwise/truck-tco/internal/db"
	"github.com/fleetwise/truck-tco/internal/migrations"
	"github.com/fleetwise/truck-tco/internal/model"
	"github.com/fleetwise/truck-tco/internal/ratelimit"
	"github.com/fleetwise/truck-tco/internal/seed"
	"github.com/fleetwise/truck-tco/internal/session"
	"github.com/fleetwise/truck-tco/internal/store"
	"github.com/fleetwise/truck-tco/internal/tco"
)

const (
	adminEmail    = "admin@fleet.example"
	adminPassword = "correct-horse"
)

type testEnv struct {
	handler http.Handler
	srv     *server
}

type testOptions struct {
	skipPresets bool
	rateLimit   int
}

func newTestEnv(t *testing.T, opts testOptions) *testEnv {
	t.Helper()
	ctx := context.Background()

	database, err := db.Open(ctx, filepath.Join(t.TempDir(), "server-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	_, err = migrations.Up(ctx, database)
	require.NoError(t, err)

	seedCfg := seed.Config{AdminEmail: adminEmail, AdminPassword: adminPassword}
	if !opts.skipPresets {
		seedCfg.Presets, err = seed.LoadPresets("")
		require.NoError(t, err)
	}
	_, err = seed.Run(ctx, database, seedCfg)
	require.NoError(t, err)

	if opts.rateLimit == 0 {
		opts.rateLimit = 1000
	}
	cfg := config.Config{SessionSecret: "test-secret", RateLimit: opts.rateLimit, RateWindow: time.Minute}

	ids := 0
	srv := newServer(cfg, zap.NewNop(),
		store.NewPresetStore(database),
		store.NewCalculationStore(database),
		store.NewUserStore(database),
		session.NewMemoryStore(time.Hour),
		ratelimit.NewMemoryCounter(),
	)
	srv.newID = func() string {
		ids++
		return fmt.Sprintf("wiz-%d", ids)
	}

	return &testEnv{handler: srv.routes(), srv: srv}
}

func (e *testEnv) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		if strings.HasPrefix(body, "{") || strings.HasPrefix(body, "[") {
			req.Header.Set("Content-Type", "application/json")
		} else {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()

	form := url.Values{"email": {adminEmail}, "password": {adminPassword}}
	rec := e.do(t, http.MethodPost, "/login", form.Encode())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const calcBody = `{"vehicleName":"Actros 1845","areaName":"Rotterdam","input":{"purchasePrice":120000,"kmPerYear":50000,"fuelType":"diesel"}}`

func TestCalculationLifecycle(t *testing.T) {
	env := newTestEnv(t, testOptions{})

	rec := env.do(t, http.MethodPost, "/api/calculations", calcBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	calc := decode[model.Calculation](t, rec)

	assert.NotEmpty(t, calc.ID)
	assert.Equal(t, 2026, calc.PresetYear)
	require.Len(t, calc.Results, 4)
	assert.Equal(t, 324954.0, calc.Results[tco.Diesel].TotalCost)
	assert.Equal(t, 1.12, calc.Results[tco.BEV].CostPerKm)

	rec = env.do(t, http.MethodGet, "/api/calculations/"+calc.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, calc.Results, decode[model.Calculation](t, rec).Results)

	rec = env.do(t, http.MethodGet, "/api/calculations?q=rotter", "")
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[[]model.CalculationSummary](t, rec)
	require.Len(t, items, 1)
	assert.Equal(t, tco.BEV, items[0].Cheapest)

	rec = env.do(t, http.MethodGet, "/api/calculations?q=nowhere", "")
	assert.Empty(t, decode[[]model.CalculationSummary](t, rec))

	rec = env.do(t, http.MethodGet, "/api/calculations?format=csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Actros 1845,Rotterdam,2026,bev,280413.00")

	rec = env.do(t, http.MethodGet, "/api/calculations/"+calc.ID+"/xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), calc.ID+".xlsx")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"), "xlsx is a zip archive")

	rec = env.do(t, http.MethodGet, "/api/calculations/"+calc.ID+"/text", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Cheapest: Battery electric (BEV)")

	rec = env.do(t, http.MethodGet, "/api/calculations/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/admin/calculations/"+calc.ID, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cookie := env.login(t)
	rec = env.do(t, http.MethodDelete, "/api/admin/calculations/"+calc.ID, "", cookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/calculations/"+calc.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/admin/calculations/"+calc.ID, "", cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCalculationCreate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		opts   testOptions
		body   string
		status int
	}{
		{"zero purchase price", testOptions{}, `{"vehicleName":"T","input":{"purchasePrice":0,"kmPerYear":50000}}`, http.StatusBadRequest},
		{"unknown field", testOptions{}, `{"vehicleName":"T","input":{"purchasePrice":1,"kmPerYear":1,"colour":"red"}}`, http.StatusBadRequest},
		{"malformed json", testOptions{}, `{"vehicleName":`, http.StatusBadRequest},
		{"overflowing totals", testOptions{}, `{"vehicleName":"T","input":{"purchasePrice":1e308,"kmPerYear":1e308}}`, http.StatusBadRequest},
		{"no active preset", testOptions{skipPresets: true}, calcBody, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.opts)

			rec := env.do(t, http.MethodPost, "/api/calculations", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			rec = env.do(t, http.MethodGet, "/api/calculations", "")
			assert.Empty(t, decode[[]model.CalculationSummary](t, rec), "nothing may be stored")
		})
	}
}

func TestPreview(t *testing.T) {
	env := newTestEnv(t, testOptions{})

	rec := env.do(t, http.MethodPost, "/api/preview", `{"purchasePrice":120000,"kmPerYear":50000,"fuelType":"bev","truckToll":0}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cb := decode[tco.CostBreakdown](t, rec)
	assert.Equal(t, tco.BEV, cb.FuelType)
	assert.Equal(t, 1725.0, cb.Breakdown.TaxesCost)

	rec = env.do(t, http.MethodPost, "/api/preview", `{"purchasePrice":120000,"kmPerYear":50000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActivePreset(t *testing.T) {
	rec := newTestEnv(t, testOptions{}).do(t, http.MethodGet, "/api/presets/active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2026, decode[tco.RatePreset](t, rec).Year)

	rec = newTestEnv(t, testOptions{skipPresets: true}).do(t, http.MethodGet, "/api/presets/active", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWizardFlow(t *testing.T) {
	env := newTestEnv(t, testOptions{})

	rec := env.do(t, http.MethodPost, "/api/wizard", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	wiz := decode[session.Wizard](t, rec)
	assert.Equal(t, session.StepVehicle, wiz.Step)
	require.NotNil(t, wiz.Input.InterestRate)
	assert.Equal(t, 3.5, *wiz.Input.InterestRate)
	base := "/api/wizard/" + wiz.ID

	rec = env.do(t, http.MethodPost, base+"/steps/overrides", "subsidy=1")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/calculate", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/steps/vehicle", url.Values{"vehicleName": {"eActros"}, "purchasePrice": {"120000"}}.Encode())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.do(t, http.MethodPost, base+"/steps/usage", url.Values{"kmPerYear": {"50000"}, "fuelType": {"bev"}, "areaName": {"Hamburg"}}.Encode())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Submitting the overrides step with the prefilled values unchanged.
	rec = env.do(t, http.MethodPost, base+"/steps/overrides", url.Values{"interestRate": {"3,5"}, "depreciationYears": {"5"}, "motorTax": {"345"}, "insurancePercentage": {"2.5"}}.Encode())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, session.StepReview, decode[session.Wizard](t, rec).Step)

	rec = env.do(t, http.MethodPost, base+"/steps/payment", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/calculate", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	calc := decode[model.Calculation](t, rec)
	assert.Equal(t, "eActros", calc.VehicleName)
	assert.Equal(t, 280413.0, calc.Results[tco.BEV].TotalCost)

	rec = env.do(t, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "wizard is discarded after calculating")
}

func TestAdminRequiresLogin(t *testing.T) {
	env := newTestEnv(t, testOptions{})

	rec := env.do(t, http.MethodGet, "/api/admin/presets", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	forged := &http.Cookie{Name: sessionCookieName, Value: "MQ.deadbeef"}
	rec = env.do(t, http.MethodGet, "/api/admin/presets", "", forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/login", url.Values{"email": {adminEmail}, "password": {"wrong"}}.Encode())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminPresets(t *testing.T) {
	env := newTestEnv(t, testOptions{})
	cookie := env.login(t)

	rec := env.do(t, http.MethodGet, "/api/admin/presets", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	presets := decode[[]tco.RatePreset](t, rec)
	require.Len(t, presets, 2)

	next := presets[0]
	next.Name, next.Year, next.IsActive = "2027 draft", 2027, false
	next.TruckTollBev = 0
	body, err := json.Marshal(next)
	require.NoError(t, err)

	rec = env.do(t, http.MethodPost, "/api/admin/presets", string(body), cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[tco.RatePreset](t, rec)
	assert.False(t, created.IsActive)

	rec = env.do(t, http.MethodPost, "/api/admin/presets", string(body), cookie)
	assert.Equal(t, http.StatusConflict, rec.Code, "duplicate year")

	idPath := "/api/admin/presets/" + jsonNumber(created.ID)
	rec = env.do(t, http.MethodPost, idPath+"/activate", "", cookie)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/presets/active", "")
	assert.Equal(t, 2027, decode[tco.RatePreset](t, rec).Year)

	rec = env.do(t, http.MethodDelete, idPath, "", cookie)
	assert.Equal(t, http.StatusConflict, rec.Code, "active preset cannot be deleted")

	created.MotorTaxPerYear = 400
	body, err = json.Marshal(created)
	require.NoError(t, err)
	rec = env.do(t, http.MethodPut, idPath, string(body), cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 400.0, decode[tco.RatePreset](t, rec).MotorTaxPerYear)

	rec = env.do(t, http.MethodPut, "/api/admin/presets/9999", string(body), cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/admin/presets/abc/activate", "", cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminUsers(t *testing.T) {
	env := newTestEnv(t, testOptions{})
	cookie := env.login(t)

	rec := env.do(t, http.MethodPost, "/api/admin/users", `{"email":"planner@fleet.example","password":"short"}`, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/admin/users", `{"email":"planner@fleet.example","password":"long-enough"}`, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	planner := decode[model.User](t, rec)
	assert.False(t, planner.IsAdmin)

	// A non-admin can log in but not reach admin routes.
	rec = env.do(t, http.MethodPost, "/login", url.Values{"email": {"planner@fleet.example"}, "password": {"long-enough"}}.Encode())
	require.Equal(t, http.StatusOK, rec.Code)
	plannerCookie := rec.Result().Cookies()[0]
	rec = env.do(t, http.MethodGet, "/api/admin/users", "", plannerCookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/admin/users", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[[]model.User](t, rec)
	require.Len(t, users, 2)

	rec = env.do(t, http.MethodDelete, "/api/admin/users/"+jsonNumber(users[0].ID), "", cookie)
	assert.Equal(t, http.StatusConflict, rec.Code, "cannot delete yourself")

	rec = env.do(t, http.MethodDelete, "/api/admin/users/"+jsonNumber(planner.ID), "", cookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/admin/users", "", plannerCookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "deleted user loses the session")
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, testOptions{rateLimit: 2})

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodGet, "/api/presets/active", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := env.do(t, http.MethodGet, "/api/presets/active", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Login is outside /api and not limited.
	rec = env.do(t, http.MethodPost, "/login", url.Values{"email": {adminEmail}, "password": {adminPassword}}.Encode())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutClearsCookie(t *testing.T) {
	env := newTestEnv(t, testOptions{})

	rec := env.do(t, http.MethodPost, "/logout", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookieName, cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestSessionValueRoundTrip(t *testing.T) {
	a := newAuthService(nil, "secret")

	id, ok := a.verifySessionValue(a.createSessionValue(42))
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	other := newAuthService(nil, "another-secret")
	_, ok = other.verifySessionValue(a.createSessionValue(42))
	assert.False(t, ok)

	for _, v := range []string{"", "abc", "a.b.c", "MA.zz"} {
		_, ok := a.verifySessionValue(v)
		assert.False(t, ok, v)
	}
}

func jsonNumber(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
