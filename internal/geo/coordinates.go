package geo

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"pupilflow/internal/dataprocessing"
	apperrors "pupilflow/internal/errors"
	"pupilflow/pkg/contracts/domain"
)

// Column names of the coordinate table, after header normalisation.
const (
	ColumnPostcode = "POSTCODE"
	ColumnLat      = "LAT"
	ColumnLon      = "LON"
)

// CoordinateTable maps postcode prefixes to coordinates.
type CoordinateTable struct {
	byPrefix map[string]domain.PostalCoordinate
	// Skipped counts rows whose postcode or coordinates did not parse.
	Skipped int
	// Duplicates counts rows whose prefix was already present.
	Duplicates int
}

// NewCoordinateTable builds a table from coordinates. The first coordinate
// of each prefix wins.
func NewCoordinateTable(coords ...domain.PostalCoordinate) *CoordinateTable {
	t := &CoordinateTable{byPrefix: make(map[string]domain.PostalCoordinate, len(coords))}
	for _, c := range coords {
		t.add(c)
	}
	return t
}

func (t *CoordinateTable) add(c domain.PostalCoordinate) {
	c.Prefix = domain.PostcodePrefix(c.Prefix)
	if _, ok := t.byPrefix[c.Prefix]; ok {
		t.Duplicates++
		return
	}
	t.byPrefix[c.Prefix] = c
}

// Lookup returns the coordinate of a postcode prefix.
func (t *CoordinateTable) Lookup(prefix string) (domain.PostalCoordinate, bool) {
	if t == nil {
		return domain.PostalCoordinate{}, false
	}
	c, ok := t.byPrefix[prefix]
	return c, ok
}

// Len returns the number of distinct prefixes.
func (t *CoordinateTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byPrefix)
}

// LoadCoordinates reads a semicolon-delimited POSTCODE;LAT;LON table.
func LoadCoordinates(path string) (*CoordinateTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewFileReadError(path, err)
	}
	defer f.Close()

	t, err := ParseCoordinates(f)
	if err != nil {
		if _, typed := apperrors.TypeOf(err); typed {
			return nil, err
		}
		return nil, apperrors.NewFileReadError(path, err)
	}
	return t, nil
}

// ParseCoordinates reads a coordinate table from r. Decimal commas are accepted.
func ParseCoordinates(r io.Reader) (*CoordinateTable, error) {
	table, err := dataprocessing.ReadTable(r)
	if err != nil {
		return nil, err
	}

	idx := table.Index()
	var missing []string
	for _, col := range []string{ColumnPostcode, ColumnLat, ColumnLon} {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewSchemaError("coordinate table", missing)
	}

	t := NewCoordinateTable()
	t.Skipped = table.Malformed
	for _, rec := range table.Rows {
		postcode := strings.TrimSpace(rec[idx[ColumnPostcode]])
		lat, latErr := parseDegrees(rec[idx[ColumnLat]])
		lon, lonErr := parseDegrees(rec[idx[ColumnLon]])
		if postcode == "" || latErr != nil || lonErr != nil {
			t.Skipped++
			continue
		}
		t.add(domain.PostalCoordinate{Prefix: postcode, Lat: lat, Lon: lon})
	}
	return t, nil
}

func parseDegrees(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid coordinate %q: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid coordinate %q", s)
	}
	return v, nil
}
