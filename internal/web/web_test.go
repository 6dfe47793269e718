package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timesheet/internal/aggregate"
	"timesheet/internal/config"
	"timesheet/internal/history"
)

func seededStore(t *testing.T, days ...int) *history.Store {
	t.Helper()
	s, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	for _, day := range days {
		start := time.Date(2018, 1, day, 0, 0, 0, 0, time.UTC)
		var acc aggregate.Accumulator
		acc = acc.Add(aggregate.ProjectWork, 30*time.Hour).Add(aggregate.OtherMeetings, 90*time.Minute)
		rec := aggregate.NewWeeklyRecord(aggregate.Window{Start: start, End: start.AddDate(0, 0, 7)}, acc)
		require.NoError(t, s.Save(context.Background(), rec))
	}
	return s
}

func do(t *testing.T, h http.Handler, path string, auth ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if len(auth) == 2 {
		req.SetBasicAuth(auth[0], auth[1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, NewServer(config.DefaultConfig(), nil).Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestWeeksWithoutHistory(t *testing.T) {
	h := NewServer(config.DefaultConfig(), nil).Handler()
	for _, p := range []string{"/api/weeks", "/api/weeks/latest", "/api/weeks/2018-01-08"} {
		assert.Equal(t, http.StatusServiceUnavailable, do(t, h, p).Code, p)
	}
}

func TestWeeksList(t *testing.T) {
	h := NewServer(config.DefaultConfig(), seededStore(t, 1, 8)).Handler()

	rec := do(t, h, "/api/weeks")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var resp weeksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Weeks, 2)
	assert.Equal(t, "2018-01-08", resp.Weeks[0].WeekStart)
	assert.Equal(t, "2018-01-01", resp.Weeks[1].WeekStart)
	assert.Equal(t, 31.5, resp.Weeks[0].WeeklyHours)
	assert.Equal(t, "1 days 07:30:00", resp.Weeks[0].WeeklyDaysHours)
	assert.Len(t, resp.Weeks[0].Categories, len(aggregate.Categories()))
}

func TestWeeksLatest(t *testing.T) {
	empty := NewServer(config.DefaultConfig(), seededStore(t)).Handler()
	assert.Equal(t, http.StatusNotFound, do(t, empty, "/api/weeks/latest").Code)

	h := NewServer(config.DefaultConfig(), seededStore(t, 1, 15, 8)).Handler()
	rec := do(t, h, "/api/weeks/latest")
	require.Equal(t, http.StatusOK, rec.Code)

	var week weekDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &week))
	assert.Equal(t, "2018-01-15", week.WeekStart)
}

func TestWeekByDate(t *testing.T) {
	h := NewServer(config.DefaultConfig(), seededStore(t, 8)).Handler()

	rec := do(t, h, "/api/weeks/2018-01-08")
	require.Equal(t, http.StatusOK, rec.Code)
	var week weekDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &week))
	assert.Equal(t, "2018-01-08", week.WeekStart)

	assert.Equal(t, http.StatusNotFound, do(t, h, "/api/weeks/2017-01-02").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "/api/weeks/yesterday").Code)
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "s3cret"}
	h := NewServer(cfg, seededStore(t, 8)).Handler()

	assert.Equal(t, http.StatusOK, do(t, h, "/health").Code, "health never needs auth")

	rec := do(t, h, "/api/weeks")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	assert.Equal(t, http.StatusUnauthorized, do(t, h, "/api/weeks", "admin", "wrong").Code)
	assert.Equal(t, http.StatusOK, do(t, h, "/api/weeks", "admin", "s3cret").Code)
}

func TestSecureCompare(t *testing.T) {
	assert.True(t, secureCompare("abc", "abc"))
	assert.False(t, secureCompare("abc", "abd"))
	assert.False(t, secureCompare("abc", "abcd"))
}
