package geo

import (
	"encoding/json"
	"errors"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"

	"pupilflow/pkg/contracts/domain"
)

// ErrNoMarkers is returned when a map view has nothing to centre on.
var ErrNoMarkers = errors.New("no markers")

func point(m domain.Marker) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{m.Lon, m.Lat})
}

// FeatureCollection renders markers as GeoJSON points with label and count
// properties.
func FeatureCollection(markers []domain.Marker) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(markers))}
	for _, m := range markers {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: point(m),
			Properties: map[string]interface{}{
				"label": m.Label,
				"count": m.Count,
			},
		})
	}
	if b, err := MarkerBounds(markers); err == nil {
		fc.BBox = geom.NewBounds(geom.XY).Set(b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
	}
	return fc
}

// MarshalFeatureCollection encodes markers as a GeoJSON document.
func MarshalFeatureCollection(markers []domain.Marker) ([]byte, error) {
	return json.Marshal(FeatureCollection(markers))
}

func multiPoint(markers []domain.Marker) *geom.MultiPoint {
	flat := make([]float64, 0, 2*len(markers))
	for _, m := range markers {
		flat = append(flat, m.Lon, m.Lat)
	}
	return geom.NewMultiPointFlat(geom.XY, flat)
}

// Center returns the mean latitude and longitude of the markers.
func Center(markers []domain.Marker) (lat, lon float64, err error) {
	if len(markers) == 0 {
		return 0, 0, ErrNoMarkers
	}
	c, err := xy.Centroid(multiPoint(markers))
	if err != nil {
		return 0, 0, err
	}
	return c.Y(), c.X(), nil
}

// MarkerBounds returns the bounding box of the markers.
func MarkerBounds(markers []domain.Marker) (domain.Bounds, error) {
	if len(markers) == 0 {
		return domain.Bounds{}, ErrNoMarkers
	}
	b := multiPoint(markers).Bounds()
	return domain.Bounds{
		MinLat: b.Min(1),
		MinLon: b.Min(0),
		MaxLat: b.Max(1),
		MaxLon: b.Max(0),
	}, nil
}
