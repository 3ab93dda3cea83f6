package exporter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"pupilflow/pkg/contracts/domain"
)

func TestXLSXWriter(t *testing.T) {
	flows := Sheet{
		Name: "Herkomst",
		Keys: []string{domain.FieldPupilMunicipality},
		Rows: []domain.AggregateRow{
			{Keys: map[string]string{domain.FieldPupilMunicipality: "Zeist"}, Count: 40},
			{Keys: map[string]string{domain.FieldPupilMunicipality: "Bunnik"}, Count: 7},
		},
	}
	postcodes := Sheet{
		Name: "Postcodes",
		Keys: []string{domain.FieldPostcodePrefix},
		Rows: []domain.AggregateRow{
			{Keys: map[string]string{domain.FieldPostcodePrefix: "3701"}, Count: 47},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewXLSXWriter(nil).Write(&buf, flows, postcodes))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Herkomst", "Postcodes"}, f.GetSheetList())

	rows, err := f.GetRows("Herkomst")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{domain.FieldPupilMunicipality, CountColumn},
		{"Zeist", "40"},
		{"Bunnik", "7"},
	}, rows)

	rows, err = f.GetRows("Postcodes")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{domain.FieldPostcodePrefix, CountColumn}, {"3701", "47"}}, rows)
}

func TestXLSXWriterNoSheets(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, NewXLSXWriter(nil).Write(&buf), ErrNoSheets)
}

func TestUniqueSheetName(t *testing.T) {
	used := map[string]bool{}
	assert.Equal(t, "a_b", uniqueSheetName("a/b", 0, used))
	assert.Equal(t, "a_b (2)", uniqueSheetName("a/b", 1, used))
	assert.Equal(t, "Sheet3", uniqueSheetName("  ", 2, used))

	long := uniqueSheetName("INSTELLINGSNAAM_VESTIGING x GEMEENTENAAM_LEERLING", 3, used)
	assert.Len(t, []rune(long), maxSheetName)
}
