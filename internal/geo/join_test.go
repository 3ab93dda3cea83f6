package geo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pupilflow/pkg/contracts/domain"
)

func TestJoin(t *testing.T) {
	coords := NewCoordinateTable(domain.PostalCoordinate{Prefix: "1234", Lat: 52.1, Lon: 4.3})
	records := []domain.LongRecord{
		rec("De Regenboog", "Zeist", "1234AB", 3),
		rec("De Regenboog", "Zeist", "1234CD", 2),
		rec("De Regenboog", "Houten", "9999ZZ", 4),
	}

	res, err := Join(records, PostcodeTotals(), coords)
	require.NoError(t, err)

	require.Len(t, res.Table, 2)
	assert.Equal(t, "1234", res.Table[0].Key(domain.FieldPostcodePrefix))
	assert.Equal(t, 5, res.Table[0].Count)
	assert.Equal(t, "9999", res.Table[1].Key(domain.FieldPostcodePrefix))
	assert.Equal(t, 4, res.Table[1].Count)

	require.Len(t, res.Markers, 1)
	assert.Equal(t, domain.Marker{Lat: 52.1, Lon: 4.3, Label: "1234 (5)", Count: 5}, res.Markers[0])

	assert.Equal(t, []domain.JoinMiss{{Prefix: "9999", Count: 4}}, res.Misses)
}

func TestJoinSchoolMarkers(t *testing.T) {
	coords := NewCoordinateTable(
		domain.PostalCoordinate{Prefix: "3701", Lat: 52.08, Lon: 5.24},
		domain.PostalCoordinate{Prefix: "3992", Lat: 52.03, Lon: 5.17},
	)
	records := []domain.LongRecord{
		rec("De Regenboog", "Zeist", "3701AB", 3),
		rec("De Regenboog", "Houten", "3992AA", 1),
		rec("Het Kompas", "Zeist", "3701AB", 6),
	}

	res, err := Join(records, SchoolOrigins(), coords)
	require.NoError(t, err)

	assert.Len(t, res.Table, 3)
	require.Len(t, res.Markers, 3)
	assert.Equal(t, "De Regenboog (1)", res.Markers[0].Label)
	assert.Equal(t, "De Regenboog (3)", res.Markers[1].Label)
	assert.Equal(t, "Het Kompas (6)", res.Markers[2].Label)
	assert.Empty(t, res.Misses)
}

func TestJoinWithoutCoordinates(t *testing.T) {
	res, err := Join([]domain.LongRecord{rec("S", "Zeist", "3701AB", 1)}, PostcodeTotals(), nil)
	require.NoError(t, err)

	assert.Len(t, res.Table, 1)
	assert.Empty(t, res.Markers)
	assert.Equal(t, []domain.JoinMiss{{Prefix: "3701", Count: 1}}, res.Misses)

	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"markers":[]`)
}
