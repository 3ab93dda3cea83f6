package dataprocessing

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pupilflow/internal/files"
	"pupilflow/internal/shared/testutil"
	"pupilflow/pkg/contracts/domain"
)

func TestSortAgeBands(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "numeric not lexical",
			input: []string{"LEEFTIJD_10", "LEEFTIJD_2", "LEEFTIJD_ABC"},
			want:  []string{"LEEFTIJD_ABC", "LEEFTIJD_2", "LEEFTIJD_10"},
		},
		{
			name:  "all digits concatenated",
			input: []string{"LEEFTIJD_4_5", "LEEFTIJD_6", "LEEFTIJD_12"},
			want:  []string{"LEEFTIJD_6", "LEEFTIJD_12", "LEEFTIJD_4_5"},
		},
		{
			name:  "equal keys order by name",
			input: []string{"LEEFTIJD_07", "LEEFTIJD_7", "LEEFTIJD_B", "LEEFTIJD_A"},
			want:  []string{"LEEFTIJD_A", "LEEFTIJD_B", "LEEFTIJD_07", "LEEFTIJD_7"},
		},
		{
			name:  "zero sorts after missing digits",
			input: []string{"LEEFTIJD_0", "LEEFTIJD_"},
			want:  []string{"LEEFTIJD_", "LEEFTIJD_0"},
		},
		{
			name:  "long digit runs do not overflow",
			input: []string{"LEEFTIJD_99999999999999999999999", "LEEFTIJD_5"},
			want:  []string{"LEEFTIJD_5", "LEEFTIJD_99999999999999999999999"},
		},
		{
			name:  "empty",
			input: []string{},
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := append([]string{}, tt.input...)
			assert.Equal(t, tt.want, SortAgeBands(tt.input))
			assert.Equal(t, input, tt.input, "input untouched")
		})
	}
}

func TestProperty_AgeBandOrderIsTotal(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	band := gen.OneGenOf(
		gen.IntRange(0, 30).Map(func(n int) string { return fmt.Sprintf("LEEFTIJD_%d", n) }),
		gen.AlphaString().Map(func(s string) string { return domain.AgeBandPrefix + s }),
	)

	properties.Property("sorting is independent of input order", prop.ForAll(
		func(bands []string) bool {
			reversed := make([]string, len(bands))
			for i, b := range bands {
				reversed[len(bands)-1-i] = b
			}
			a, b := SortAgeBands(bands), SortAgeBands(reversed)
			return fmt.Sprint(a) == fmt.Sprint(b)
		},
		gen.SliceOf(band),
	))

	properties.Property("output is an ordered permutation", prop.ForAll(
		func(bands []string) bool {
			sorted := SortAgeBands(bands)
			if len(sorted) != len(bands) {
				return false
			}
			for i := 1; i < len(sorted); i++ {
				if lessAgeBand(sorted[i], sorted[i-1]) {
					return false
				}
			}
			x, y := append([]string{}, bands...), append([]string{}, sorted...)
			sort.Strings(x)
			sort.Strings(y)
			return fmt.Sprint(x) == fmt.Sprint(y)
		},
		gen.SliceOf(band),
	))

	properties.TestingRun(t)
}

func TestFilterAgeBands(t *testing.T) {
	cols := []string{"GEMEENTENAAM", "LEEFTIJD_5", "leeftijd_6", "AANTAL_LEEFTIJD_7", "LEEFTIJD_"}
	assert.Equal(t, []string{"LEEFTIJD_5", "LEEFTIJD_"}, FilterAgeBands(cols))
}

func TestSchemaScannerScan(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTransportCSV(t, dir, "a.csv",
		testutil.MandatoryHeader("LEEFTIJD_5", "LEEFTIJD_4"), nil)
	// Rejected later for missing SOORT_PO, but its bands still count.
	// Names are taken as written: only the exact upper case band joins.
	testutil.WriteTransportCSV(t, dir, "b.csv",
		[]string{"GEMEENTENAAM", "LEEFTIJD_12", "leeftijd_13", "Leeftijd_14"}, nil)
	testutil.WriteRawFile(t, dir, "c.csv", "")

	found, err := files.NewDiscovery("").FindCSVFiles(dir)
	require.NoError(t, err)
	require.Len(t, found, 3)

	logger, handler := testutil.NewTestLogger(t)
	result := NewSchemaScanner(logger).Scan(context.Background(), found)

	assert.Equal(t, []string{"LEEFTIJD_4", "LEEFTIJD_5", "LEEFTIJD_12"}, result.AgeBands)
	require.Len(t, result.Unreadable, 1)
	assert.Equal(t, "c.csv", result.Unreadable[0].File)
	assert.Equal(t, domain.IssueFileRead, result.Unreadable[0].Kind)
	assert.True(t, handler.ContainsAttr("file", "c.csv"))
}

func TestSchemaScannerMissingFile(t *testing.T) {
	found := []files.FileInfo{{Name: "gone.csv", Path: filepath.Join(t.TempDir(), "gone.csv")}}

	result := NewSchemaScanner(nil).Scan(context.Background(), found)
	assert.Empty(t, result.AgeBands)
	assert.Len(t, result.Unreadable, 1)
}
