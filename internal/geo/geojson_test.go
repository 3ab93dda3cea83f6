package geo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pupilflow/pkg/contracts/domain"
)

var markers = []domain.Marker{
	{Lat: 52.0, Lon: 4.0, Label: "A (1)", Count: 1},
	{Lat: 53.0, Lon: 6.0, Label: "B (3)", Count: 3},
}

func TestCenter(t *testing.T) {
	lat, lon, err := Center(markers)
	require.NoError(t, err)
	assert.InDelta(t, 52.5, lat, 1e-9)
	assert.InDelta(t, 5.0, lon, 1e-9)

	_, _, err = Center(nil)
	assert.ErrorIs(t, err, ErrNoMarkers)
}

func TestMarkerBounds(t *testing.T) {
	b, err := MarkerBounds(markers)
	require.NoError(t, err)
	assert.Equal(t, domain.Bounds{MinLat: 52, MinLon: 4, MaxLat: 53, MaxLon: 6}, b)

	_, err = MarkerBounds(nil)
	assert.ErrorIs(t, err, ErrNoMarkers)
}

func TestMarshalFeatureCollection(t *testing.T) {
	data, err := MarshalFeatureCollection(markers)
	require.NoError(t, err)

	var doc struct {
		Type     string    `json:"type"`
		BBox     []float64 `json:"bbox"`
		Features []struct {
			Type     string `json:"type"`
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, "FeatureCollection", doc.Type)
	assert.Equal(t, []float64{4, 52, 6, 53}, doc.BBox)
	require.Len(t, doc.Features, 2)
	assert.Equal(t, "Point", doc.Features[0].Geometry.Type)
	assert.Equal(t, []float64{4, 52}, doc.Features[0].Geometry.Coordinates, "lon, lat order")
	assert.Equal(t, "B (3)", doc.Features[1].Properties["label"])
	assert.Equal(t, float64(3), doc.Features[1].Properties["count"])
}

func TestFeatureCollectionEmpty(t *testing.T) {
	fc := FeatureCollection(nil)
	assert.Empty(t, fc.Features)
	assert.Nil(t, fc.BBox)
}
