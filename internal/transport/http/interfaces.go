package http

import (
	"context"
	"io"

	"pupilflow/internal/dataprocessing"
	"pupilflow/internal/services"
	"pupilflow/pkg/contracts/domain"
)

// DatasetServiceInterface defines the dataset operations used by the handlers
type DatasetServiceInterface interface {
	Summary(ctx context.Context) (domain.Summary, error)
	Reload(ctx context.Context) (*domain.Dataset, error)
	Records(ctx context.Context, q services.RecordsQuery) (*services.RecordPage, error)
	Options(ctx context.Context, q services.OptionsQuery) (*services.Options, error)
	Aggregate(ctx context.Context, q services.ViewQuery) ([]domain.AggregateRow, error)
	Markers(ctx context.Context, q services.ViewQuery) (*services.MapView, error)
	MarkersGeoJSON(ctx context.Context, q services.ViewQuery) ([]byte, error)
	ExportDatasetCSV(ctx context.Context, out io.Writer, f dataprocessing.Filter) error
	ExportAggregateCSV(ctx context.Context, out io.Writer, q services.ViewQuery) error
	ExportAggregateXLSX(ctx context.Context, out io.Writer, f dataprocessing.Filter, sheets ...services.NamedSpec) error
}
