package geo

import (
	"fmt"
	"sort"

	"pupilflow/pkg/contracts/domain"
)

// Result is the tabular aggregate of a view with its map layer.
type Result struct {
	Table   []domain.AggregateRow `json:"table"`
	Markers []domain.Marker       `json:"markers"`
	Misses  []domain.JoinMiss     `json:"join_misses"`
}

// Join aggregates records by spec for the table, and by spec plus postcode
// prefix for the markers. Groups whose prefix has no coordinates become
// misses. The display cap of spec applies to the table only.
func Join(records []domain.LongRecord, spec AggregateSpec, coords *CoordinateTable) (*Result, error) {
	table, err := Aggregate(records, spec)
	if err != nil {
		return nil, err
	}

	mapSpec := spec.withKey(domain.FieldPostcodePrefix)
	mapSpec.Display = false
	mapSpec.SortByCount = false
	groups := groupRecords(records, mapSpec)

	prefixAt := len(mapSpec.Keys) - 1
	for i, k := range mapSpec.Keys {
		if k == domain.FieldPostcodePrefix {
			prefixAt = i
		}
	}

	res := &Result{
		Table:   table,
		Markers: []domain.Marker{},
		Misses:  []domain.JoinMiss{},
	}
	missed := make(map[string]int)
	for _, g := range groups {
		prefix := g.values[prefixAt]
		c, ok := coords.Lookup(prefix)
		if !ok {
			missed[prefix] += g.count
			continue
		}
		res.Markers = append(res.Markers, domain.Marker{
			Lat:   c.Lat,
			Lon:   c.Lon,
			Label: markerLabel(mapSpec.Keys, g),
			Count: g.count,
		})
	}

	for prefix, n := range missed {
		res.Misses = append(res.Misses, domain.JoinMiss{Prefix: prefix, Count: n})
	}
	sort.Slice(res.Misses, func(i, j int) bool {
		return res.Misses[i].Prefix < res.Misses[j].Prefix
	})

	return res, nil
}

// markerLabel names a marker after its school when grouped by school,
// otherwise after its first key.
func markerLabel(keys []string, g group) string {
	name := g.values[0]
	for i, k := range keys {
		if k == domain.FieldSchool {
			name = g.values[i]
			break
		}
	}
	return fmt.Sprintf("%s (%d)", name, g.count)
}
