package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"pupilflow/internal/config"
	"pupilflow/internal/dataprocessing"
	"pupilflow/internal/files"
	"pupilflow/internal/geo"
	"pupilflow/internal/infrastructure"
	"pupilflow/internal/services"
	"pupilflow/internal/validation"
	"pupilflow/pkg/contracts/domain"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", slog.String("error", err.Error()))
		logger = slog.Default()
	}

	if err := run(infrastructure.EnsureTraceID(context.Background()), cfg, logger, os.Args[1:], os.Stdout); err != nil {
		logger.Error("Load failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// options are the command line flags of one run.
type options struct {
	dataDir     string
	coordinates string
	outDir      string
	xlsx        bool
	municipal   string
	workers     int
	maxRows     int
}

func parseFlags(cfg *config.Config, paths *config.Paths, args []string) (options, error) {
	fs := flag.NewFlagSet("loadcsv", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var o options
	fs.StringVar(&o.dataDir, "dir", paths.DataDir, "directory holding the pupil transport CSV files")
	fs.StringVar(&o.coordinates, "coords", paths.CoordinatesFile, "PC4 coordinate table")
	fs.StringVar(&o.outDir, "out", paths.ExportDir, "directory for the exported files")
	fs.BoolVar(&o.xlsx, "xlsx", true, "also write the aggregate workbook")
	fs.StringVar(&o.municipal, "municipality", "", "restrict the exports to one school municipality")
	fs.IntVar(&o.workers, "workers", cfg.Pipeline.Workers, "files normalized in parallel")
	fs.IntVar(&o.maxRows, "max-rows", cfg.Pipeline.MaxRows, "row budget of the assembled dataset, 0 for none")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	return o, nil
}

// run loads the data directory once, prints the summary to stdout and writes
// the long dataset and the aggregate workbook to the output directory.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string, stdout io.Writer) error {
	paths, err := cfg.ResolvePaths("")
	if err != nil {
		return err
	}
	opts, err := parseFlags(cfg, paths, args)
	if err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}

	validator := validation.NewFileValidator(logger)
	if err := validator.ValidateDataDirectory(opts.dataDir); err != nil && !errors.Is(err, validation.ErrNoDataDirectory) {
		return err
	}
	if err := validator.ValidateOutputDirectory(opts.outDir); err != nil {
		return err
	}
	// Without coordinates the map summary reports every postcode as a miss
	_ = validator.ValidateCoordinatesFile(opts.coordinates)

	discovery := files.NewDiscovery("")
	if filepath.Clean(filepath.Dir(opts.coordinates)) == filepath.Clean(opts.dataDir) {
		discovery.Exclude(opts.coordinates)
	}
	loader := dataprocessing.NewLoader(logger, discovery, dataprocessing.LoaderConfig{
		Workers: opts.workers,
		MaxRows: opts.maxRows,
	}, dataprocessing.NewLogObserver(logger, nil))

	svc := services.NewDatasetService(services.DatasetConfig{
		DataDir:         opts.dataDir,
		CoordinatesFile: opts.coordinates,
	}, loader, nil, nil, logger)

	summary, err := svc.Summary(ctx)
	if err != nil {
		return err
	}
	printSummary(stdout, summary)
	if summary.RowCount == 0 {
		return nil
	}

	filter := dataprocessing.Filter{Municipality: opts.municipal}
	manager := files.NewManager(opts.outDir, logger)

	var buf bytes.Buffer
	if err := svc.ExportDatasetCSV(ctx, &buf, filter); err != nil {
		return err
	}
	path, err := manager.WriteFile("dataset.csv", buf.Bytes())
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\n", path)

	if opts.xlsx {
		buf.Reset()
		if err := svc.ExportAggregateXLSX(ctx, &buf, filter); err != nil {
			return err
		}
		path, err := manager.WriteFile("aggregate.xlsx", buf.Bytes())
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %s\n", path)
	}

	view, err := svc.Markers(ctx, services.ViewQuery{Filter: filter, Spec: geo.PostcodeTotals()})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "markers: %d, postcodes without coordinates: %d\n", len(view.Markers), len(view.Misses))
	return nil
}

func printSummary(w io.Writer, s domain.Summary) {
	fmt.Fprintf(w, "status: %s\n", s.Status)
	fmt.Fprintf(w, "files: %d discovered, %d processed, %d skipped\n",
		s.DiscoveredFiles, len(s.ProcessedFiles), len(s.SkippedFiles))
	for _, issue := range s.SkippedFiles {
		fmt.Fprintf(w, "  skipped %s (%s): %s\n", issue.File, issue.Kind, issue.Message)
	}
	fmt.Fprintf(w, "age bands: %s\n", strings.Join(s.AgeBands, ", "))
	fmt.Fprintf(w, "rows: %d\n", s.RowCount)
}
