package dataprocessing

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pupilflow/pkg/contracts/domain"
)

func TestNumericAge(t *testing.T) {
	tests := []struct {
		label string
		want  *float64
	}{
		{"LEEFTIJD_7", ptr(7)},
		{"LEEFTIJD_12", ptr(12)},
		{"LEEFTIJD_4_5", ptr(4)},
		{"LEEFTIJD_007", ptr(7)},
		{"LEEFTIJD_ABC", nil},
		{"LEEFTIJD_", nil},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got := NumericAge(tt.label)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestMeltRowMajor(t *testing.T) {
	rows := []wideRow{
		{identity: domain.Identity{School: "De Regenboog"}, counts: []int{1, 2}},
		{identity: domain.Identity{School: "Het Kompas"}, counts: []int{3, 4}},
	}
	bands := []string{"LEEFTIJD_4", "LEEFTIJD_5"}

	out := melt("a.csv", rows, bands)

	require.Len(t, out, 4)
	got := make([]string, len(out))
	for i, r := range out {
		got[i] = fmt.Sprintf("%s/%s/%d", r.School, r.AgeLabel, r.Count)
		assert.Equal(t, "a.csv", r.SourceFile)
	}
	assert.Equal(t, []string{
		"De Regenboog/LEEFTIJD_4/1",
		"De Regenboog/LEEFTIJD_5/2",
		"Het Kompas/LEEFTIJD_4/3",
		"Het Kompas/LEEFTIJD_5/4",
	}, got)
	assert.Equal(t, 5.0, *out[3].Age)
}

func TestProperty_MeltYieldsNTimesK(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("N rows over K bands give N*K records", prop.ForAll(
		func(n, k int) bool {
			bands := make([]string, k)
			for i := range bands {
				bands[i] = fmt.Sprintf("LEEFTIJD_%d", i+4)
			}
			rows := make([]wideRow, n)
			for i := range rows {
				rows[i] = wideRow{counts: make([]int, k)}
			}
			return len(melt("x.csv", rows, bands)) == n*k
		},
		gen.IntRange(0, 50),
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}

func ptr(v float64) *float64 { return &v }
