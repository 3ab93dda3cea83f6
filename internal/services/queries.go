package services

import (
	"fmt"

	"pupilflow/internal/dataprocessing"
	apperrors "pupilflow/internal/errors"
	"pupilflow/internal/geo"
	"pupilflow/pkg/contracts/domain"
)

// Paging bounds of record listings.
const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// RecordsQuery selects one page of filtered long records.
type RecordsQuery struct {
	Filter dataprocessing.Filter `json:"filter"`
	Offset int                   `json:"offset" validate:"gte=0"`
	Limit  int                   `json:"limit" validate:"gte=1,lte=1000"`
}

// RecordPage is one page of long records.
type RecordPage struct {
	Total   int                 `json:"total"`
	Offset  int                 `json:"offset"`
	Limit   int                 `json:"limit"`
	Records []domain.LongRecord `json:"records"`
}

// ViewQuery is a filtered grouping behind a table or map.
type ViewQuery struct {
	Filter dataprocessing.Filter `json:"filter"`
	Spec   geo.AggregateSpec     `json:"spec"`
}

// NamedSpec is a grouping exported as one worksheet.
type NamedSpec struct {
	Name string            `json:"name" validate:"required,max=31"`
	Spec geo.AggregateSpec `json:"spec"`
}

// DefaultExportSheets returns the groupings of the aggregate workbook. Export
// sheets are never display capped.
func DefaultExportSheets() []NamedSpec {
	origins := geo.SchoolOrigins()
	origins.Display = false
	return []NamedSpec{
		{Name: "Bestemming", Spec: geo.DestinationFlows()},
		{Name: "School en herkomst", Spec: origins},
		{Name: "Postcodes", Spec: geo.PostcodeTotals()},
	}
}

// OptionsQuery narrows the option lists. Schools are limited to Municipality
// and SchoolTypes; school types to Municipality only.
type OptionsQuery struct {
	Municipality string   `json:"municipality,omitempty"`
	SchoolTypes  []string `json:"school_types,omitempty"`
}

// Options are the selectable values of the dashboard filters.
type Options struct {
	Municipalities []string `json:"municipalities"`
	Schools        []string `json:"schools"`
	SchoolTypes    []string `json:"school_types"`
	AgeBands       []string `json:"age_bands"`
	AgeMin         int      `json:"age_min"`
	AgeMax         int      `json:"age_max"`
	DefaultAgeMin  int      `json:"default_age_min"`
	DefaultAgeMax  int      `json:"default_age_max"`
}

// LatLon is a map position in degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// MapView is a joined view with the map framing of its markers.
type MapView struct {
	*geo.Result
	Center *LatLon        `json:"center,omitempty"`
	Bounds *domain.Bounds `json:"bounds,omitempty"`
}

func checkFilter(f dataprocessing.Filter) error {
	if f.MinAge != nil && f.MaxAge != nil && *f.MinAge > *f.MaxAge {
		return apperrors.NewAppValidationError(
			fmt.Sprintf("min_age %g exceeds max_age %g", *f.MinAge, *f.MaxAge))
	}
	return nil
}

func (q RecordsQuery) check() error {
	if err := checkFilter(q.Filter); err != nil {
		return err
	}
	if q.Offset < 0 {
		return apperrors.NewAppValidationError("offset must not be negative")
	}
	if q.Limit < 1 || q.Limit > MaxPageSize {
		return apperrors.NewAppValidationError(fmt.Sprintf("limit must be between 1 and %d", MaxPageSize))
	}
	return nil
}
