package dataprocessing

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	apperrors "pupilflow/internal/errors"
	"pupilflow/internal/files"
	"pupilflow/pkg/contracts/domain"
)

// ScanResult is the outcome of the schema pass.
type ScanResult struct {
	// AgeBands is the sorted union of age band columns over all readable
	// files, taken from the header names as written.
	AgeBands []string
	// Unreadable lists files whose header could not be parsed. They stay in
	// the file list and normalisation reads them again.
	Unreadable []domain.FileIssue
}

// SchemaScanner computes the global age band schema.
type SchemaScanner struct {
	logger *slog.Logger
}

// NewSchemaScanner creates a scanner.
func NewSchemaScanner(logger *slog.Logger) *SchemaScanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &SchemaScanner{logger: logger.With(slog.String("component", "schema_scanner"))}
}

// Scan reads the header of every file and collects the age band columns.
// The union holds raw names, so a band is only recognised when a file spells
// it with the exact upper case prefix and no surrounding spaces.
func (s *SchemaScanner) Scan(ctx context.Context, found []files.FileInfo) ScanResult {
	union := make(map[string]struct{})
	var result ScanResult

	for _, f := range found {
		header, err := ReadRawHeader(f.Path)
		if err != nil {
			appErr := apperrors.NewFileReadError(f.Name, err)
			s.logger.WarnContext(ctx, "Header unreadable, file excluded from schema",
				slog.String("file", f.Name),
				slog.String("error", err.Error()))
			result.Unreadable = append(result.Unreadable, domain.FileIssue{
				File:    f.Name,
				Kind:    domain.IssueFileRead,
				Message: appErr.Error(),
			})
			continue
		}
		for _, col := range header {
			union[col] = struct{}{}
		}
	}

	cols := make([]string, 0, len(union))
	for col := range union {
		cols = append(cols, col)
	}
	result.AgeBands = SortAgeBands(FilterAgeBands(cols))

	s.logger.DebugContext(ctx, "Schema scan complete",
		slog.Int("files", len(found)),
		slog.Int("age_bands", len(result.AgeBands)),
		slog.Int("unreadable", len(result.Unreadable)))

	return result
}

// IsAgeBand reports whether a column name is an age band.
func IsAgeBand(name string) bool {
	return strings.HasPrefix(name, domain.AgeBandPrefix)
}

// FilterAgeBands keeps the age band columns of cols, preserving order.
func FilterAgeBands(cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if IsAgeBand(c) {
			out = append(out, c)
		}
	}
	return out
}

// SortAgeBands orders bands by the number formed by all digits in the name,
// ascending. Names without digits sort first. Equal keys order by name.
// The input slice is not modified.
func SortAgeBands(bands []string) []string {
	sorted := make([]string, len(bands))
	copy(sorted, bands)

	sort.SliceStable(sorted, func(i, j int) bool {
		return lessAgeBand(sorted[i], sorted[j])
	})
	return sorted
}

func lessAgeBand(a, b string) bool {
	if c := compareDigitKeys(ageKeyOf(a), ageKeyOf(b)); c != 0 {
		return c < 0
	}
	return a < b
}

// ageKey is the sort key of an age band: every decimal digit of the name,
// concatenated without leading zeros. Absent is true when the name holds no
// digit, which ranks the band as -1.
type ageKey struct {
	digits string
	absent bool
}

func ageKeyOf(name string) ageKey {
	var b strings.Builder
	for _, r := range name {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ageKey{absent: true}
	}
	return ageKey{digits: strings.TrimLeft(b.String(), "0")}
}

// compareDigitKeys compares two keys numerically without parsing them,
// so arbitrarily long digit runs do not overflow.
func compareDigitKeys(a, b ageKey) int {
	switch {
	case a.absent && b.absent:
		return 0
	case a.absent:
		return -1
	case b.absent:
		return 1
	case len(a.digits) != len(b.digits):
		if len(a.digits) < len(b.digits) {
			return -1
		}
		return 1
	default:
		return strings.Compare(a.digits, b.digits)
	}
}
