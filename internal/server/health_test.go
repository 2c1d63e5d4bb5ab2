package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker_Readiness(t *testing.T) {
	sc, err := NewServerContext(context.Background(), Options{Config: testConfig(t)})
	require.NoError(t, err)
	h := NewHealthChecker(sc)

	tests := []struct {
		name       string
		setup      func()
		wantCode   int
		wantChecks map[string]string
	}{
		{
			name:     "ready",
			setup:    func() {},
			wantCode: http.StatusOK,
			wantChecks: map[string]string{
				"ready":    healthStatusOK,
				"shutdown": healthStatusOK,
				"caldav":   healthStatusDisabled,
				"mail":     healthStatusNoToken,
			},
		},
		{
			name:     "not ready",
			setup:    func() { h.SetReady(false) },
			wantCode: http.StatusServiceUnavailable,
			wantChecks: map[string]string{
				"ready": healthStatusNotReady,
			},
		},
		{
			name: "shutting down",
			setup: func() {
				h.SetReady(true)
				require.NoError(t, sc.Shutdown())
			},
			wantCode: http.StatusServiceUnavailable,
			wantChecks: map[string]string{
				"shutdown": healthStatusShuttingDown,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			rec := httptest.NewRecorder()
			h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			assert.Equal(t, tt.wantCode, rec.Code)

			var resp HealthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			for k, v := range tt.wantChecks {
				assert.Equal(t, v, resp.Checks[k], k)
			}
		})
	}
}

func TestHealthChecker_Detailed(t *testing.T) {
	cfg := testConfig(t)
	cfg.CalDAV.URL = "https://caldav.example.com"
	cfg.CalDAV.Username = "me@example.com"
	cfg.CalDAV.Password = "secret"

	sc, err := NewServerContext(context.Background(), Options{Config: cfg, Yolo: true})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	NewHealthChecker(sc).DetailedHealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/detailed", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DetailedHealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "uninitialized", resp.CalDAV)
	assert.Zero(t, resp.Calendars)
	assert.Equal(t, healthStatusNoToken, resp.Mail)
	assert.False(t, resp.ReadOnly)
}

func TestHealthChecker_NilServerContext(t *testing.T) {
	h := NewHealthChecker(nil)
	rec := httptest.NewRecorder()
	h.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, healthStatusDisabled, h.calendarStatus())
	assert.Equal(t, healthStatusDisabled, h.mailStatus())
	assert.Zero(t, h.calendarCount())
}
