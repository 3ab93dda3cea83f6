package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"pupilflow/internal/cache"
	"pupilflow/internal/dataprocessing"
	apperrors "pupilflow/internal/errors"
	"pupilflow/internal/exporter"
	"pupilflow/internal/files"
	"pupilflow/internal/geo"
	"pupilflow/internal/infrastructure"
	"pupilflow/pkg/contracts/domain"
)

// DatasetConfig locates the inputs of the dataset service.
type DatasetConfig struct {
	DataDir         string
	CoordinatesFile string
}

// DatasetService loads the pupil transport dataset on demand and answers the
// dashboard queries against it. Loads are keyed by the fingerprint of the
// data directory, so an unchanged directory is never parsed twice.
type DatasetService struct {
	cfg     DatasetConfig
	loader  *dataprocessing.Loader
	cache   *cache.DatasetCache
	metrics *infrastructure.PipelineMetrics
	csv     *exporter.CSVWriter
	xlsx    *exporter.XLSXWriter
	logger  *slog.Logger

	loads singleflight.Group

	mu      sync.RWMutex
	current *domain.Dataset
	coords  *geo.CoordinateTable
}

// NewDatasetService creates the service. datasetCache and metrics may be nil.
func NewDatasetService(cfg DatasetConfig, loader *dataprocessing.Loader, datasetCache *cache.DatasetCache, metrics *infrastructure.PipelineMetrics, logger *slog.Logger) *DatasetService {
	if logger == nil {
		logger = slog.Default()
	}
	if loader == nil {
		loader = dataprocessing.NewLoader(logger, nil, dataprocessing.LoaderConfig{}, nil)
	}

	logger.Info("DatasetService initialized",
		slog.String("data_dir", cfg.DataDir),
		slog.String("coordinates_file", cfg.CoordinatesFile),
		slog.Bool("cache_enabled", datasetCache != nil))

	return &DatasetService{
		cfg:     cfg,
		loader:  loader,
		cache:   datasetCache,
		metrics: metrics,
		csv:     exporter.NewCSVWriter(logger),
		xlsx:    exporter.NewXLSXWriter(logger),
		logger:  logger.With(slog.String("component", "dataset_service")),
	}
}

// Dataset returns the dataset of the current directory contents, loading it
// when the directory changed since the last load.
func (s *DatasetService) Dataset(ctx context.Context) (*domain.Dataset, error) {
	found, err := s.loader.Discover(s.cfg.DataDir)
	if err != nil {
		return nil, err
	}
	fingerprint := files.Fingerprint(found)

	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()
	if current != nil && current.Fingerprint == fingerprint {
		return current, nil
	}

	key := cache.Key(s.cfg.DataDir, fingerprint)
	if s.cache != nil {
		if ds, ok := s.cache.Get(ctx, key); ok {
			s.setCurrent(ds)
			return ds, nil
		}
	}

	// Concurrent requests for the same directory state share one load. The
	// shared load outlives a cancelled caller so the others still get it.
	v, err, shared := s.loads.Do(key, func() (interface{}, error) {
		ds, err := s.loader.LoadFiles(context.WithoutCancel(ctx), found)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.cache.Add(key, ds)
		}
		return ds, nil
	})
	if err != nil {
		return nil, err
	}

	ds := v.(*domain.Dataset)
	s.setCurrent(ds)
	s.logger.DebugContext(ctx, "Dataset resolved",
		slog.String("fingerprint", fingerprint),
		slog.Bool("shared", shared),
		slog.Int("rows", ds.Len()))
	return ds, nil
}

func (s *DatasetService) setCurrent(ds *domain.Dataset) {
	s.mu.Lock()
	s.current = ds
	s.mu.Unlock()
}

// Current returns the last resolved dataset without touching the directory.
func (s *DatasetService) Current() (*domain.Dataset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current != nil
}

// Invalidate forgets every loaded dataset and the coordinate table. The next
// query reloads from disk.
func (s *DatasetService) Invalidate() {
	s.mu.Lock()
	s.current = nil
	s.coords = nil
	s.mu.Unlock()
	if s.cache != nil {
		s.cache.Purge()
	}
}

// Reload invalidates and loads the dataset again.
func (s *DatasetService) Reload(ctx context.Context) (*domain.Dataset, error) {
	s.logger.InfoContext(ctx, "Reloading dataset")
	s.Invalidate()
	return s.Dataset(ctx)
}

// Summary returns the overview of the current dataset.
func (s *DatasetService) Summary(ctx context.Context) (domain.Summary, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return domain.Summary{}, err
	}
	return ds.Summarize(), nil
}

// Records returns one page of the filtered long records.
func (s *DatasetService) Records(ctx context.Context, q RecordsQuery) (*RecordPage, error) {
	if err := q.check(); err != nil {
		return nil, err
	}
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}

	matched := q.Filter.Apply(ds.Records)
	page := &RecordPage{
		Total:   len(matched),
		Offset:  q.Offset,
		Limit:   q.Limit,
		Records: []domain.LongRecord{},
	}
	if q.Offset < len(matched) {
		end := q.Offset + q.Limit
		if end > len(matched) {
			end = len(matched)
		}
		page.Records = matched[q.Offset:end]
	}
	return page, nil
}

// Options lists the filter choices. Schools are narrowed to the municipality
// and school types of q, school types to the municipality.
func (s *DatasetService) Options(ctx context.Context, q OptionsQuery) (*Options, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return &Options{
		Municipalities: dataprocessing.Municipalities(ds.Records),
		Schools:        dataprocessing.SchoolOptions(ds.Records, q.Municipality, q.SchoolTypes),
		SchoolTypes:    dataprocessing.SchoolTypes(ds.Records, q.Municipality),
		AgeBands:       ds.AgeBands,
		AgeMin:         dataprocessing.AgeLowerBound,
		AgeMax:         dataprocessing.AgeUpperBound,
		DefaultAgeMin:  dataprocessing.DefaultMinAge,
		DefaultAgeMax:  dataprocessing.DefaultMaxAge,
	}, nil
}

// Aggregate groups the filtered records by q.Spec.
func (s *DatasetService) Aggregate(ctx context.Context, q ViewQuery) ([]domain.AggregateRow, error) {
	if err := checkFilter(q.Filter); err != nil {
		return nil, err
	}
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return geo.Aggregate(q.Filter.Apply(ds.Records), q.Spec)
}

// Markers joins the filtered records with the coordinate table. A missing
// coordinate table is not an error: every group then becomes a join miss.
func (s *DatasetService) Markers(ctx context.Context, q ViewQuery) (*MapView, error) {
	if err := checkFilter(q.Filter); err != nil {
		return nil, err
	}
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}

	res, err := geo.Join(q.Filter.Apply(ds.Records), q.Spec, s.coordinates(ctx))
	if err != nil {
		return nil, err
	}

	if len(res.Misses) > 0 {
		s.metrics.RecordJoinMisses(ctx, len(res.Misses))
		s.logger.WarnContext(ctx, "Postcode prefixes without coordinates",
			slog.Int("prefixes", len(res.Misses)),
			slog.Any("first", apperrors.NewJoinMissError(res.Misses[0].Prefix)))
	}

	view := &MapView{Result: res}
	if lat, lon, err := geo.Center(res.Markers); err == nil {
		view.Center = &LatLon{Lat: lat, Lon: lon}
	}
	if bounds, err := geo.MarkerBounds(res.Markers); err == nil {
		view.Bounds = &bounds
	}
	return view, nil
}

// MarkersGeoJSON renders the markers of q as a GeoJSON feature collection.
func (s *DatasetService) MarkersGeoJSON(ctx context.Context, q ViewQuery) ([]byte, error) {
	view, err := s.Markers(ctx, q)
	if err != nil {
		return nil, err
	}
	return geo.MarshalFeatureCollection(view.Markers)
}

// coordinates returns the coordinate table, reading it on first use.
func (s *DatasetService) coordinates(ctx context.Context) *geo.CoordinateTable {
	s.mu.RLock()
	coords := s.coords
	s.mu.RUnlock()
	if coords != nil {
		return coords
	}

	coords, err := geo.LoadCoordinates(s.cfg.CoordinatesFile)
	if err != nil {
		s.logger.WarnContext(ctx, "Coordinate table unavailable, map views will be empty",
			slog.String("path", s.cfg.CoordinatesFile),
			slog.String("error", fmt.Errorf("%w: %w", ErrNoCoordinates, err).Error()))
		coords = geo.NewCoordinateTable()
	} else {
		s.logger.InfoContext(ctx, "Coordinate table loaded",
			slog.String("path", s.cfg.CoordinatesFile),
			slog.Int("prefixes", coords.Len()),
			slog.Int("skipped_rows", coords.Skipped))
	}

	s.mu.Lock()
	s.coords = coords
	s.mu.Unlock()
	return coords
}

// ExportDatasetCSV writes the filtered long records as CSV.
func (s *DatasetService) ExportDatasetCSV(ctx context.Context, out io.Writer, f dataprocessing.Filter) error {
	if err := checkFilter(f); err != nil {
		return err
	}
	ds, err := s.Dataset(ctx)
	if err != nil {
		return err
	}
	return s.csv.WriteRecords(out, f.Apply(ds.Records), exporter.DefaultWriteOptions())
}

// ExportAggregateCSV writes one grouping of the filtered records as CSV.
func (s *DatasetService) ExportAggregateCSV(ctx context.Context, out io.Writer, q ViewQuery) error {
	rows, err := s.Aggregate(ctx, q)
	if err != nil {
		return err
	}
	return s.csv.WriteAggregate(out, q.Spec.Keys, rows, exporter.DefaultWriteOptions())
}

// ExportAggregateXLSX writes one worksheet per grouping of the filtered
// records. No sheets means DefaultExportSheets.
func (s *DatasetService) ExportAggregateXLSX(ctx context.Context, out io.Writer, f dataprocessing.Filter, sheets ...NamedSpec) error {
	if err := checkFilter(f); err != nil {
		return err
	}
	if len(sheets) == 0 {
		sheets = DefaultExportSheets()
	}
	ds, err := s.Dataset(ctx)
	if err != nil {
		return err
	}

	records := f.Apply(ds.Records)
	rendered := make([]exporter.Sheet, 0, len(sheets))
	for _, sh := range sheets {
		rows, err := geo.Aggregate(records, sh.Spec)
		if err != nil {
			return fmt.Errorf("sheet %s: %w", sh.Name, err)
		}
		rendered = append(rendered, exporter.Sheet{Name: sh.Name, Keys: sh.Spec.Keys, Rows: rows})
	}
	return s.xlsx.Write(out, rendered...)
}

// WarmUp loads the dataset in the background and logs the outcome.
func (s *DatasetService) WarmUp(ctx context.Context) {
	ctx = infrastructure.EnsureTraceID(ctx)
	go func() {
		if _, err := s.Dataset(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.ErrorContext(ctx, "Dataset warm-up failed", slog.String("error", err.Error()))
		}
	}()
}
