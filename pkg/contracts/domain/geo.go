package domain

// PostalCoordinate maps a four character postcode prefix to WGS 84 degrees.
type PostalCoordinate struct {
	Prefix string  `json:"postcode"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
}

// AggregateMode selects how groups are counted.
type AggregateMode string

const (
	// ModeSum sums the count field of every row in a group.
	ModeSum AggregateMode = "sum"
	// ModeOccurrence counts rows per group.
	ModeOccurrence AggregateMode = "occurrence"
)

// DisplayLimit caps tabular aggregates shown in interactive views.
const DisplayLimit = 100

// AggregateRow is one group of a tabular aggregate.
type AggregateRow struct {
	Keys  map[string]string `json:"keys"`
	Count int               `json:"aantal_leerlingen"`
}

// Key returns the value of one grouping column.
func (r AggregateRow) Key(name string) string {
	return r.Keys[name]
}

// Marker is a map point with its aggregated count.
type Marker struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Label string  `json:"label"`
	Count int     `json:"count"`
}

// JoinMiss records a postcode prefix absent from the coordinate table.
type JoinMiss struct {
	Prefix string `json:"postcode"`
	Count  int    `json:"count"`
}

// Bounds is a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}
