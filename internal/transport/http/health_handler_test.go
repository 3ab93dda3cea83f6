package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pupilflow/internal/services"
	"pupilflow/internal/shared/testutil"
)

func healthRouter(svc *services.HealthService, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	NewHealthHandler(svc, logger).Register(r)
	return r
}

func TestHealthHandler(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	dataDir := t.TempDir()
	coords := testutil.WriteCoordinates(t, t.TempDir(), "postcode_coords.csv", map[string][2]string{
		"3701": {"52,08", "5,23"},
	})

	tests := []struct {
		name           string
		cfg            services.DatasetConfig
		target         string
		expectedStatus int
		expectedState  string
	}{
		{"health", services.DatasetConfig{DataDir: dataDir, CoordinatesFile: coords}, "/health", http.StatusOK, "ok"},
		{"live", services.DatasetConfig{DataDir: dataDir, CoordinatesFile: coords}, "/health/live", http.StatusOK, "alive"},
		{"ready", services.DatasetConfig{DataDir: dataDir, CoordinatesFile: coords}, "/health/ready", http.StatusOK, "ready"},
		{
			name:           "degraded without coordinates",
			cfg:            services.DatasetConfig{DataDir: dataDir, CoordinatesFile: filepath.Join(dataDir, "missing.csv")},
			target:         "/health/ready",
			expectedStatus: http.StatusOK,
			expectedState:  "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := services.NewHealthService("1.2.3", tt.cfg, nil, logger)
			h := healthRouter(svc, logger)

			rec := serve(h, http.MethodGet, tt.target, "")

			require.Equal(t, tt.expectedStatus, rec.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.expectedState, body["status"])
			assert.Equal(t, "1.2.3", body["version"])
		})
	}
}

func TestHealthHandler_NotReady(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	file := testutil.WriteRawFile(t, t.TempDir(), "not_a_dir", "x")
	svc := services.NewHealthService("dev", services.DatasetConfig{DataDir: file, CoordinatesFile: file}, nil, logger)

	rec := serve(healthRouter(svc, logger), http.MethodGet, "/health/ready", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"not_ready"`)
}

func TestHealthHandler_Version(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	svc := services.NewHealthService("1.2.3", services.DatasetConfig{}, nil, logger)

	rec := serve(healthRouter(svc, logger), http.MethodGet, "/version", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"1.2.3"`)
}
