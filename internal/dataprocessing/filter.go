package dataprocessing

import (
	"sort"

	"pupilflow/pkg/contracts/domain"
)

// School selections that disable the school filter.
const (
	AllSchools      = "Alle"
	AllSchoolsLabel = "Alle scholen"
)

// Age slider bounds and default selection.
const (
	AgeLowerBound = 4
	AgeUpperBound = 24
	DefaultMinAge = 4
	DefaultMaxAge = 12
)

// Filter selects the slice of the dataset behind one dashboard view.
// Zero values select everything.
type Filter struct {
	Municipality string   `json:"municipality,omitempty"`
	School       string   `json:"school,omitempty"`
	SchoolTypes  []string `json:"school_types,omitempty"`
	MinAge       *float64 `json:"min_age,omitempty" validate:"omitempty,gte=0,lte=120"`
	MaxAge       *float64 `json:"max_age,omitempty" validate:"omitempty,gte=0,lte=120"`
}

// schoolSelected reports whether the filter names one school.
func (f Filter) schoolSelected() bool {
	return f.School != "" && f.School != AllSchools && f.School != AllSchoolsLabel
}

// Match reports whether r passes every set criterion. An age bound excludes
// records whose numeric age is undefined.
func (f Filter) Match(r domain.LongRecord) bool {
	if f.Municipality != "" && r.Municipality != f.Municipality {
		return false
	}
	if f.schoolSelected() && r.School != f.School {
		return false
	}
	if len(f.SchoolTypes) > 0 && !contains(f.SchoolTypes, r.SchoolType) {
		return false
	}
	if f.MinAge != nil && (!r.HasAge() || *r.Age < *f.MinAge) {
		return false
	}
	if f.MaxAge != nil && (!r.HasAge() || *r.Age > *f.MaxAge) {
		return false
	}
	return true
}

// Apply returns the matching records in dataset order.
func (f Filter) Apply(records []domain.LongRecord) []domain.LongRecord {
	out := make([]domain.LongRecord, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Municipalities lists distinct destination municipalities, sorted.
func Municipalities(records []domain.LongRecord) []string {
	return distinct(records, func(r domain.LongRecord) (string, bool) {
		return r.Municipality, true
	})
}

// Schools lists the schools of a municipality that have one of schoolTypes,
// sorted. An empty municipality or type list does not narrow.
func Schools(records []domain.LongRecord, municipality string, schoolTypes []string) []string {
	return distinct(records, func(r domain.LongRecord) (string, bool) {
		if municipality != "" && r.Municipality != municipality {
			return "", false
		}
		return r.School, len(schoolTypes) == 0 || contains(schoolTypes, r.SchoolType)
	})
}

// SchoolTypes lists the school types of a municipality, sorted.
func SchoolTypes(records []domain.LongRecord, municipality string) []string {
	return distinct(records, func(r domain.LongRecord) (string, bool) {
		return r.SchoolType, municipality == "" || r.Municipality == municipality
	})
}

// SchoolOptions prefixes Schools with the all-schools choice.
func SchoolOptions(records []domain.LongRecord, municipality string, schoolTypes []string) []string {
	return append([]string{AllSchools}, Schools(records, municipality, schoolTypes)...)
}

func distinct(records []domain.LongRecord, pick func(domain.LongRecord) (string, bool)) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		v, ok := pick(r)
		if !ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
