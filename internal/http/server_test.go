package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/maintrack/internal/analytics"
	"github.com/example/maintrack/internal/lifecycle"
	"github.com/example/maintrack/internal/metrics"
	"github.com/example/maintrack/internal/models"
	"github.com/example/maintrack/internal/service"
	"github.com/example/maintrack/internal/store"
)

type syncerFunc func(ctx context.Context, id string, stage models.Stage) error

func (f syncerFunc) PersistStageChange(ctx context.Context, id string, stage models.Stage) error {
	return f(ctx, id, stage)
}

type loaderFunc func(ctx context.Context) ([]models.MaintenanceRequest, error)

func (f loaderFunc) LoadRequests(ctx context.Context) ([]models.MaintenanceRequest, error) {
	return f(ctx)
}

func newTestServer(t *testing.T, syncErr error) (*Server, *store.RequestStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	seed := []models.MaintenanceRequest{
		{ID: "r1", Subject: "Pump noise", EquipmentID: "eq1", EquipmentCategory: "Pumps",
			RequestType: models.RequestTypeCorrective, Stage: models.StageNew},
		{ID: "r2", Subject: "Filter swap", EquipmentID: "eq2", RequestType: models.RequestTypePreventive,
			Stage: models.StageScrap},
	}
	s := store.NewRequestStore()
	require.NoError(t, s.ReplaceAll(seed))

	engine := lifecycle.NewEngine(lifecycle.Params{
		Store:  s,
		Syncer: syncerFunc(func(context.Context, string, models.Stage) error { return syncErr }),
		Loader: loaderFunc(func(context.Context) ([]models.MaintenanceRequest, error) {
			return nil, errors.New("source offline")
		}),
		Logger: zap.NewNop(),
	})
	board := service.NewBoardService(service.Deps{
		Store:      s,
		Engine:     engine,
		Aggregator: analytics.NewAggregator(s, nil),
	})
	return NewServer(board, metrics.New(), zap.NewNop()), s
}

func do(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestChangeStageStatusMapping(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	cases := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"applied", "/api/requests/r1/stage", `{"stage":"in_progress"}`, http.StatusOK, ""},
		{"unknown request", "/api/requests/nope/stage", `{"stage":"repaired"}`, http.StatusNotFound, "NOT_FOUND"},
		{"terminal request", "/api/requests/r2/stage", `{"stage":"new"}`, http.StatusConflict, "INVALID_TRANSITION"},
		{"unknown stage", "/api/requests/r1/stage", `{"stage":"closed"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing stage", "/api/requests/r1/stage", `{}`, http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(srv, http.MethodPatch, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code)
			if tc.code != "" {
				assert.Equal(t, tc.code, errorBody(t, rec)["code"])
			}
		})
	}
}

func TestChangeStageSyncFailureIsBadGateway(t *testing.T) {
	srv, s := newTestServer(t, errors.New("connection refused"))

	rec := do(srv, http.MethodPatch, "/api/requests/r1/stage", `{"stage":"repaired"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "SYNC_FAILED", errorBody(t, rec)["code"])

	r, err := s.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, models.StageNew, r.Stage)
}

func TestListRequestsWithFilter(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := do(srv, http.MethodGet, "/api/requests?stage=scrap", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var views []analytics.RequestView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "r2", views[0].ID)
	assert.False(t, views[0].Overdue)

	rec = do(srv, http.MethodGet, "/api/requests?stage=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRequest(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := do(srv, http.MethodGet, "/api/requests/r1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"subject":"Pump noise"`)

	rec = do(srv, http.MethodGet, "/api/requests/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWritesRejectedWhenReadOnly(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := do(srv, http.MethodPost, "/api/requests", `{"subject":"x","equipment_id":"eq1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(srv, http.MethodDelete, "/api/requests/r1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyticsRoutes(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := do(srv, http.MethodGet, "/api/analytics/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap analytics.AggregateSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 2, snap.TotalRequests)
	assert.Equal(t, 1, snap.StageCounts[models.StageScrap])

	rec = do(srv, http.MethodGet, "/api/analytics/requests-by-category", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"key":"Pumps","count":1}]`, rec.Body.String())

	for _, path := range []string{"/api/analytics/requests-by-team", "/api/analytics/team-counts", "/api/requests/calendar", "/api/equipment", "/api/teams"} {
		assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, path, "").Code, path)
	}
}

func TestRefreshFailureAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := do(srv, http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/healthz", "").Code)

	rec = do(srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="POST",path="/api/refresh",status="502"}`)
}
