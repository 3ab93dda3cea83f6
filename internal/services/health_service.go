package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"pupilflow/pkg/contracts"
	"pupilflow/pkg/contracts/domain"
)

// DatasetState reports the last resolved dataset without loading one.
type DatasetState interface {
	Current() (*domain.Dataset, bool)
}

// HealthService provides health check functionality
type HealthService struct {
	version         string
	dataDir         string
	coordinatesFile string
	datasets        DatasetState
	startTime       time.Time
	logger          *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a new health service. datasets may be nil.
func NewHealthService(version string, cfg DatasetConfig, datasets DatasetState, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("HealthService initialized", slog.String("version", version))

	return &HealthService{
		version:         version,
		dataDir:         cfg.DataDir,
		coordinatesFile: cfg.CoordinatesFile,
		datasets:        datasets,
		startTime:       time.Now(),
		logger:          logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "HealthCheck: performing health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck reports whether the inputs of the dataset are reachable.
// A data directory without usable files is ready but degraded.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]interface{}{
			"data":        hs.checkDataHealth(),
			"coordinates": hs.checkCoordinatesHealth(),
			"dataset":     hs.checkDatasetHealth(),
		},
	}

	for _, service := range status.Services {
		sh, ok := service.(ServiceHealth)
		if !ok {
			continue
		}
		switch sh.Status {
		case "not_ready":
			status.Status = "not_ready"
		case "degraded":
			if status.Status == "ready" {
				status.Status = "degraded"
			}
		}
	}

	if status.Status != "ready" {
		hs.logger.WarnContext(ctx, "ReadinessCheck: not fully ready", slog.String("status", status.Status))
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	info := contracts.GetVersionInfo()
	return map[string]interface{}{
		"version":      hs.version,
		"build_time":   info.BuildTime,
		"git_commit":   info.GitCommit,
		"data_format":  info.DataFormat,
		"go_version":   info.GoVersion,
		"os":           info.OS,
		"arch":         info.Architecture,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
}

// checkDataHealth checks that the data directory exists
func (hs *HealthService) checkDataHealth() ServiceHealth {
	info, err := os.Stat(hs.dataDir)
	switch {
	case os.IsNotExist(err):
		return ServiceHealth{
			Status:  "degraded",
			Message: fmt.Sprintf("Data directory not found: %s", hs.dataDir),
		}
	case err != nil:
		return ServiceHealth{Status: "not_ready", Message: err.Error()}
	case !info.IsDir():
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Data path is not a directory: %s", hs.dataDir),
		}
	}
	return ServiceHealth{Status: "ready", Message: "Data directory is readable"}
}

// checkCoordinatesHealth checks that the coordinate table exists
func (hs *HealthService) checkCoordinatesHealth() ServiceHealth {
	if _, err := os.Stat(hs.coordinatesFile); err != nil {
		return ServiceHealth{
			Status:  "degraded",
			Message: fmt.Sprintf("%v: %s", ErrNoCoordinates, hs.coordinatesFile),
		}
	}
	return ServiceHealth{Status: "ready", Message: "Coordinate table present"}
}

// checkDatasetHealth reports the outcome of the last load
func (hs *HealthService) checkDatasetHealth() ServiceHealth {
	if hs.datasets == nil {
		return ServiceHealth{Status: "ready", Message: "No dataset loaded yet"}
	}
	ds, ok := hs.datasets.Current()
	if !ok {
		return ServiceHealth{Status: "ready", Message: "No dataset loaded yet"}
	}

	switch st := ds.Status(); st {
	case domain.LoadStatusNoFiles, domain.LoadStatusAllSkipped:
		return ServiceHealth{Status: "degraded", Message: fmt.Sprintf("Last load: %s", st)}
	default:
		return ServiceHealth{
			Status:  "ready",
			Message: fmt.Sprintf("Last load: %s, %d rows from %d files", st, ds.Len(), len(ds.ProcessedFiles)),
		}
	}
}
