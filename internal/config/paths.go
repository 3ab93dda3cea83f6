package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Application constants
const (
	AppName = "pupilflow"

	// CoordinatesFileName is the default name of the postcode coordinate table
	CoordinatesFileName = "postcode_coords.csv"
)

// Paths contains the resolved filesystem locations used by the pipeline.
// Relative configuration values are resolved against BaseDir.
type Paths struct {
	BaseDir         string
	DataDir         string
	CoordinatesFile string
	ExportDir       string
	LogsDir         string
}

// ResolvePaths resolves the configured locations against baseDir.
// An empty baseDir means the current working directory.
func (c *Config) ResolvePaths(baseDir string) (*Paths, error) {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		baseDir = wd
	}

	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory %s: %w", baseDir, err)
	}

	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(abs, p)
	}

	return &Paths{
		BaseDir:         abs,
		DataDir:         resolve(c.Data.Dir),
		CoordinatesFile: resolve(c.Data.CoordinatesFile),
		ExportDir:       resolve(c.Data.ExportDir),
		LogsDir:         filepath.Dir(resolve(c.Logging.FilePath)),
	}, nil
}

// CoordinatesInDataDir reports whether the coordinate table sits directly in
// the data directory, in which case discovery has to skip it.
func (p *Paths) CoordinatesInDataDir() bool {
	if p.CoordinatesFile == "" {
		return false
	}
	return filepath.Clean(filepath.Dir(p.CoordinatesFile)) == filepath.Clean(p.DataDir)
}

// EnsureDirectories creates the output directories if they don't exist.
// The data directory is never created: a missing one means an empty dataset.
func (p *Paths) EnsureDirectories() error {
	logger := slog.Default()

	for _, dir := range []string{p.ExportDir, p.LogsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		logger.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
