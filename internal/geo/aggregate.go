package geo

import (
	"fmt"
	"sort"
	"strings"

	apperrors "pupilflow/internal/errors"
	"pupilflow/pkg/contracts/domain"
)

// GroupableFields are the columns records can be grouped by.
var GroupableFields = []string{
	domain.FieldMunicipality,
	domain.FieldPupilMunicipality,
	domain.FieldSchool,
	domain.FieldSchoolType,
	domain.FieldPupilPostcode,
	domain.FieldPostcodePrefix,
}

// AggregateSpec describes one grouping.
type AggregateSpec struct {
	Keys []string `json:"keys" validate:"required,min=1,dive,oneof=GEMEENTENAAM GEMEENTENAAM_LEERLING INSTELLINGSNAAM_VESTIGING SOORT_PO POSTCODE_LEERLING PC4"`
	// Mode selects summing counts or counting rows. Empty means sum.
	Mode domain.AggregateMode `json:"mode,omitempty" validate:"omitempty,oneof=sum occurrence"`
	// SortByCount orders groups by count descending instead of by key.
	SortByCount bool `json:"sort_by_count,omitempty"`
	// Display caps the result at domain.DisplayLimit rows.
	Display bool `json:"display,omitempty"`
}

// DestinationFlows groups pupils by origin municipality, largest first.
func DestinationFlows() AggregateSpec {
	return AggregateSpec{
		Keys:        []string{domain.FieldPupilMunicipality},
		Mode:        domain.ModeSum,
		SortByCount: true,
	}
}

// SchoolOrigins groups pupils by school and origin municipality for display.
func SchoolOrigins() AggregateSpec {
	return AggregateSpec{
		Keys:    []string{domain.FieldSchool, domain.FieldPupilMunicipality},
		Mode:    domain.ModeSum,
		Display: true,
	}
}

// PostcodeTotals groups pupils by postcode prefix.
func PostcodeTotals() AggregateSpec {
	return AggregateSpec{
		Keys: []string{domain.FieldPostcodePrefix},
		Mode: domain.ModeSum,
	}
}

// withKey returns a copy of s grouped additionally by key.
func (s AggregateSpec) withKey(key string) AggregateSpec {
	for _, k := range s.Keys {
		if k == key {
			return s
		}
	}
	out := s
	out.Keys = append(append([]string{}, s.Keys...), key)
	return out
}

func (s AggregateSpec) check() error {
	if len(s.Keys) == 0 {
		return apperrors.NewAppValidationError("aggregate needs at least one key")
	}
	for _, k := range s.Keys {
		if !isGroupable(k) {
			return apperrors.NewAppValidationError(fmt.Sprintf("cannot group by %q", k))
		}
	}
	switch s.Mode {
	case "", domain.ModeSum, domain.ModeOccurrence:
	default:
		return apperrors.NewAppValidationError(fmt.Sprintf("unknown aggregate mode %q", s.Mode))
	}
	return nil
}

func isGroupable(field string) bool {
	for _, f := range GroupableFields {
		if f == field {
			return true
		}
	}
	return false
}

type group struct {
	values []string
	count  int
}

// groupRecords sums or counts records per key tuple, ordered by key.
func groupRecords(records []domain.LongRecord, spec AggregateSpec) []group {
	index := make(map[string]int)
	var groups []group

	values := make([]string, len(spec.Keys))
	for _, r := range records {
		for i, k := range spec.Keys {
			values[i], _ = r.Field(k)
		}
		id := strings.Join(values, "\x00")

		i, ok := index[id]
		if !ok {
			i = len(groups)
			index[id] = i
			groups = append(groups, group{values: append([]string{}, values...)})
		}
		if spec.Mode == domain.ModeOccurrence {
			groups[i].count++
		} else {
			groups[i].count += r.Count
		}
	}

	sort.Slice(groups, func(a, b int) bool {
		return lessValues(groups[a].values, groups[b].values)
	})
	return groups
}

func lessValues(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Aggregate groups records by spec. Groups are ordered by key ascending, or
// by count descending with ties by key when SortByCount is set.
func Aggregate(records []domain.LongRecord, spec AggregateSpec) ([]domain.AggregateRow, error) {
	if err := spec.check(); err != nil {
		return nil, err
	}

	groups := groupRecords(records, spec)
	if spec.SortByCount {
		sort.SliceStable(groups, func(a, b int) bool {
			return groups[a].count > groups[b].count
		})
	}

	n := len(groups)
	if spec.Display && n > domain.DisplayLimit {
		n = domain.DisplayLimit
	}

	rows := make([]domain.AggregateRow, n)
	for i := 0; i < n; i++ {
		rows[i] = toRow(spec.Keys, groups[i])
	}
	return rows, nil
}

func toRow(keys []string, g group) domain.AggregateRow {
	m := make(map[string]string, len(keys))
	for i, k := range keys {
		m[k] = g.values[i]
	}
	return domain.AggregateRow{Keys: m, Count: g.count}
}
