package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	apperrors "pupilflow/internal/errors"
	"pupilflow/internal/files"
	"pupilflow/internal/infrastructure"
	"pupilflow/pkg/contracts/domain"
)

const tracerName = "pupilflow/dataprocessing"

// Assemble concatenates frames in discovery order. frames is aligned with
// discovered; a nil entry is a skipped file. The result always carries the
// full long-format schema.
func Assemble(discovered []files.FileInfo, frames []*FileFrame, issues []domain.FileIssue, ageBands []string) *domain.Dataset {
	total := 0
	for _, f := range frames {
		total += f.Len()
	}

	ds := &domain.Dataset{
		Records:         make([]domain.LongRecord, 0, total),
		AgeBands:        append([]string{}, ageBands...),
		ProcessedFiles:  []string{},
		SkippedFiles:    append([]domain.FileIssue{}, issues...),
		DiscoveredFiles: len(discovered),
		Fingerprint:     files.Fingerprint(discovered),
		LoadedAt:        time.Now().UTC(),
	}

	for _, f := range frames {
		if f == nil {
			continue
		}
		ds.Records = append(ds.Records, f.Records...)
		ds.ProcessedFiles = append(ds.ProcessedFiles, f.File)
	}

	return ds
}

// IssueFromError classifies a normalisation failure.
func IssueFromError(file string, err error) domain.FileIssue {
	kind := domain.IssueFileRead
	if t, ok := apperrors.TypeOf(err); ok {
		switch t {
		case apperrors.ErrTypeSchema:
			kind = domain.IssueSchema
		case apperrors.ErrTypeValueCoercion:
			kind = domain.IssueValueCoercion
		case apperrors.ErrTypeRowBudget:
			kind = domain.IssueRowBudget
		}
	}
	return domain.FileIssue{File: file, Kind: kind, Message: err.Error()}
}

// Observer receives the per-file outcomes of a load.
type Observer interface {
	FileProcessed(ctx context.Context, frame *FileFrame)
	FileSkipped(ctx context.Context, issue domain.FileIssue)
	LoadCompleted(ctx context.Context, ds *domain.Dataset, elapsed time.Duration)
}

// LogObserver writes slog records and pipeline metrics.
type LogObserver struct {
	logger  *slog.Logger
	metrics *infrastructure.PipelineMetrics
}

// NewLogObserver creates the default observer. metrics may be nil.
func NewLogObserver(logger *slog.Logger, metrics *infrastructure.PipelineMetrics) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger.With(slog.String("component", "loader")), metrics: metrics}
}

// FileProcessed implements Observer.
func (o *LogObserver) FileProcessed(ctx context.Context, frame *FileFrame) {
	attrs := []any{
		slog.String("file", frame.File),
		slog.Int("source_rows", frame.SourceRows),
		slog.Int("long_rows", frame.Len()),
	}
	if frame.MalformedRows > 0 {
		attrs = append(attrs, slog.Int("malformed_rows_skipped", frame.MalformedRows))
	}
	if frame.UnderFive > 0 {
		attrs = append(attrs, slog.Int("under_five_cells", frame.UnderFive))
	}
	o.logger.InfoContext(ctx, "File processed", attrs...)
}

// FileSkipped implements Observer.
func (o *LogObserver) FileSkipped(ctx context.Context, issue domain.FileIssue) {
	o.logger.ErrorContext(ctx, "File skipped",
		slog.String("file", issue.File),
		slog.String("reason", string(issue.Kind)),
		slog.String("error", issue.Message))
	o.metrics.RecordFileSkipped(ctx, string(issue.Kind))
}

// LoadCompleted implements Observer.
func (o *LogObserver) LoadCompleted(ctx context.Context, ds *domain.Dataset, elapsed time.Duration) {
	level := slog.LevelInfo
	if ds.Status() == domain.LoadStatusAllSkipped {
		level = slog.LevelWarn
	}
	o.logger.Log(ctx, level, "Dataset loaded",
		slog.String("status", string(ds.Status())),
		slog.Int("discovered_files", ds.DiscoveredFiles),
		slog.Int("processed_files", len(ds.ProcessedFiles)),
		slog.Int("skipped_files", len(ds.SkippedFiles)),
		slog.Int("age_bands", len(ds.AgeBands)),
		slog.Int("rows", ds.Len()),
		slog.Duration("elapsed", elapsed))
	o.metrics.RecordLoad(ctx, ds.DiscoveredFiles, len(ds.ProcessedFiles), ds.Len(), elapsed)
}

// LoaderConfig bounds a load.
type LoaderConfig struct {
	// Workers is the number of files normalised concurrently.
	Workers int
	// MaxRows caps the assembled row count. Zero means unbounded.
	MaxRows int
}

// Loader runs discovery, the schema pass, normalisation and assembly.
type Loader struct {
	discovery *files.Discovery
	scanner   *SchemaScanner
	observer  Observer
	cfg       LoaderConfig
	logger    *slog.Logger
}

// NewLoader creates a loader. A nil observer logs through logger.
func NewLoader(logger *slog.Logger, discovery *files.Discovery, cfg LoaderConfig, observer Observer) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if discovery == nil {
		discovery = files.NewDiscovery("")
	}
	if observer == nil {
		observer = NewLogObserver(logger, nil)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Loader{
		discovery: discovery,
		scanner:   NewSchemaScanner(logger),
		observer:  observer,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "loader")),
	}
}

// Discover lists the input files of dir.
func (l *Loader) Discover(dir string) ([]files.FileInfo, error) {
	found, err := l.discovery.FindCSVFiles(dir)
	if err != nil {
		return nil, apperrors.NewFileReadError(dir, err)
	}
	return found, nil
}

// Load builds the dataset of dir. Per-file failures never fail the load;
// only an unreadable directory or cancellation does.
func (l *Loader) Load(ctx context.Context, dir string) (*domain.Dataset, error) {
	found, err := l.Discover(dir)
	if err != nil {
		return nil, err
	}
	return l.LoadFiles(ctx, found)
}

type fileOutcome struct {
	frame *FileFrame
	issue *domain.FileIssue
}

// LoadFiles builds the dataset of an already discovered file list.
func (l *Loader) LoadFiles(ctx context.Context, found []files.FileInfo) (*domain.Dataset, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "dataset.load",
		trace.WithAttributes(attribute.Int("files.discovered", len(found))))
	defer span.End()

	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("load cancelled: %w", err)
	}

	// Files the scan could not read are still normalised; their outcome
	// comes from that second read.
	scan := l.scanner.Scan(ctx, found)

	outcomes := make([]fileOutcome, len(found))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Workers)
	for i, f := range found {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			frame, err := NormalizeFile(f, scan.AgeBands)
			if err != nil {
				issue := IssueFromError(f.Name, err)
				outcomes[i] = fileOutcome{issue: &issue}
				return nil
			}
			outcomes[i] = fileOutcome{frame: frame}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, fmt.Errorf("load cancelled: %w", err)
	}

	frames := make([]*FileFrame, len(found))
	var issues []domain.FileIssue
	rows := 0
	for i, out := range outcomes {
		if out.issue != nil {
			issues = append(issues, *out.issue)
			l.observer.FileSkipped(ctx, *out.issue)
			continue
		}
		if l.cfg.MaxRows > 0 && rows+out.frame.Len() > l.cfg.MaxRows {
			issue := IssueFromError(found[i].Name,
				apperrors.NewRowBudgetError(found[i].Name, out.frame.Len(), l.cfg.MaxRows))
			issues = append(issues, issue)
			l.observer.FileSkipped(ctx, issue)
			continue
		}
		rows += out.frame.Len()
		frames[i] = out.frame
		l.observer.FileProcessed(ctx, out.frame)
	}

	ds := Assemble(found, frames, issues, scan.AgeBands)
	span.SetAttributes(
		attribute.Int("files.processed", len(ds.ProcessedFiles)),
		attribute.Int("rows", ds.Len()),
	)
	l.observer.LoadCompleted(ctx, ds, time.Since(start))

	return ds, nil
}
