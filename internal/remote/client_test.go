package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/maintrack/internal/models"
)

func TestPersistStageChange(t *testing.T) {
	var gotPath, gotMethod string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	require.NoError(t, c.PersistStageChange(context.Background(), "r1", models.StageRepaired))
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/api/requests/r1/stage", gotPath)
	assert.Equal(t, "repaired", gotBody["stage"])
}

func TestPersistStageChangeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"request r1 is scrap and cannot move to new"}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second).PersistStageChange(context.Background(), "r1", models.StageNew)
	var syncErr *SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, KindRejected, syncErr.Kind)
	assert.Equal(t, http.StatusConflict, syncErr.StatusCode)
	assert.Contains(t, syncErr.Error(), "cannot move to new")
}

func TestPersistStageChangeServerErrorIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second).PersistStageChange(context.Background(), "r1", models.StageNew)
	var syncErr *SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, KindNetwork, syncErr.Kind)
}

func TestPersistStageChangeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewClient(url, time.Second).PersistStageChange(context.Background(), "r1", models.StageNew)
	var syncErr *SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, KindNetwork, syncErr.Kind)
	assert.NotNil(t, syncErr.Err)
}

func TestLoadRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/requests", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":"r1","subject":"Pump","stage":"new","overdue":true,"team_name":"Mechanics"}]`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, time.Second).LoadRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ID)
	assert.Equal(t, models.StageNew, got[0].Stage)
	assert.Equal(t, "Mechanics", got[0].TeamName)
}

func TestLoadRequestsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).LoadRequests(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode "+srv.URL+"/api/requests response")

	var syncErr *SyncError
	assert.False(t, errors.As(err, &syncErr))
	var syntaxErr *json.SyntaxError
	assert.True(t, errors.As(err, &syntaxErr))
}
