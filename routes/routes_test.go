package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"slipsync/database"
	"slipsync/repository"
	"slipsync/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, connect bool) *fiber.App {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slips.db")
	if !connect {
		path = filepath.Join(t.TempDir(), "missing", "slips.db")
	}
	gw := database.NewGateway(
		database.SQLite(path),
		database.WithPool(database.PoolConfig{MaxOpenConns: 1}),
		database.WithReconnectBackoff(time.Hour),
	)
	t.Cleanup(func() { _ = gw.Close() })
	if connect {
		require.NoError(t, gw.Connect(context.Background()))
		require.NoError(t, gw.Provision(context.Background()))
	}

	store := repository.New(gw)
	ids := services.IDGenerator{Prefix: "slip"}
	return NewApp(Deps{
		Gateway:        gw,
		Placement:      services.NewPlacementService(store, services.NewMatchResolver(store, nil, nil), services.Normalizer{EngineVersion: "1.0.0"}),
		Sync:           services.NewSyncProcessor(store, nil, ids, nil),
		Slips:          services.NewSlipService(store, ids, nil),
		EngineVersion:  "1.0.0",
		CORSOrigins:    "*",
		RequestTimeout: 5 * time.Second,
	}, false)
}

func do(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func TestPlacement_UnknownMasterSlip(t *testing.T) {
	app := newTestApp(t, true)

	resp, body := do(t, app, http.MethodGet, "/api/placement-slips/999", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Master slip not found", body["error"])
	assert.Contains(t, body["message"], "999")
}

func TestSyncThenPlacement(t *testing.T) {
	app := newTestApp(t, true)

	payload := `{
	  "master_slip": {"id": 12, "stake": 5},
	  "generated_slips": [{"id": "g1", "total_odds": 2.5, "confidence_score": 70,
	    "legs": [{"match_id": 3, "market": "1X2", "selection": "X", "odds": 2.5}]}],
	  "matches": [{"match_id": 3, "match_data": {"home_team": "Porto", "away_team": "Benfica"}}]
	}`
	resp, body := do(t, app, http.MethodPost, "/api/sync-slips", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, true, body["success"])
	synced := body["synced"].(map[string]any)
	assert.EqualValues(t, 1, synced["generated_slips"])
	details := body["details"].(map[string]any)
	assert.Equal(t, []any{"g1"}, details["slip_ids"])

	resp, body = do(t, app, http.MethodGet, "/api/placement-slips/12", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 12, body["master_slip_id"])
	assert.Equal(t, "1.0.0", body["engine_version"])
	slips := body["slips"].([]any)
	require.Len(t, slips, 1)
	leg := slips[0].(map[string]any)["legs"].([]any)[0].(map[string]any)
	assert.Equal(t, "Porto", leg["home_team"])
	assert.Equal(t, "Benfica", leg["away_team"])
	assert.Equal(t, "70", slips[0].(map[string]any)["confidence_score"])
}

func TestSync_MissingMasterSlip(t *testing.T) {
	app := newTestApp(t, true)

	resp, body := do(t, app, http.MethodPost, "/api/sync-slips", `{"generated_slips": []}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Validation error", body["error"])
}

func TestStorageUnavailable(t *testing.T) {
	app := newTestApp(t, false)

	for _, target := range []string{"/api/placement-slips/1", "/api/master-slips"} {
		resp, body := do(t, app, http.MethodGet, target, "")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, target)
		assert.Equal(t, "Storage unavailable", body["error"], target)
	}

	resp, body := do(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "unhealthy", body["status"])

	resp, _ = do(t, app, http.MethodPost, "/reconnect", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, body = do(t, app, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "degraded", body["database"])
}

func TestHealthAndReconnect(t *testing.T) {
	app := newTestApp(t, true)

	resp, body := do(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	resp, body = do(t, app, http.MethodPost, "/reconnect", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body["database"])
}

func TestPreflight(t *testing.T) {
	app := newTestApp(t, true)

	req := httptest.NewRequest(http.MethodOptions, "/api/sync-slips", nil)
	req.Header.Set("Origin", "https://placement.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	raw, _ := io.ReadAll(resp.Body)
	assert.Empty(t, raw)
}

func TestBareOptions(t *testing.T) {
	// storage is down, OPTIONS must still be answered before the guard
	app := newTestApp(t, false)

	for _, target := range []string{"/api/sync-slips", "/anything"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodOptions, target, nil), -1)
		require.NoError(t, err)

		assert.Equal(t, http.StatusNoContent, resp.StatusCode, target)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"), target)
		raw, _ := io.ReadAll(resp.Body)
		assert.Empty(t, raw, target)
	}
}

func TestMasterSlipCRUD(t *testing.T) {
	app := newTestApp(t, true)

	resp, body := do(t, app, http.MethodPost, "/api/master-slips", `{"master_slip_id": "m-1", "user_id": "u", "stake": 10}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	resp, _ = do(t, app, http.MethodPost, "/api/master-slips", `{"master_slip_id": "m-1"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = do(t, app, http.MethodPost, "/api/master-slips/m-1/generated-slips", `{"slips": [{"slip_id": "a", "total_odds": 2}, {"slip_id": "b", "total_odds": 3}]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	resp, body = do(t, app, http.MethodGet, "/api/master-slips/m-1/generated-slips?limit=1&sort_by=total_odds&sort_order=desc", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	pagination := body["pagination"].(map[string]any)
	assert.EqualValues(t, 2, pagination["total"])
	assert.EqualValues(t, 2, pagination["pages"])
	items := body["data"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].(map[string]any)["slip_id"])

	resp, _ = do(t, app, http.MethodGet, "/api/master-slips?sort_by=secret", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, app, http.MethodPatch, "/api/generated-slips/a/status", `{"status": "lost"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "lost", body["data"].(map[string]any)["status"])

	resp, body = do(t, app, http.MethodGet, "/api/master-slips/m-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["data"].(map[string]any)["slip_count"])

	resp, body = do(t, app, http.MethodDelete, "/api/master-slips/m-1/slips", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["data"].(map[string]any)["slips_deleted"])
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApp(t, true)

	resp, body := do(t, app, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}
