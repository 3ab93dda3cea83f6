package dataprocessing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTable(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantHeader    []string
		wantRows      [][]string
		wantMalformed int
	}{
		{
			name:       "normalises header",
			input:      " gemeentenaam ;Leeftijd_5\nUtrecht;3\n",
			wantHeader: []string{"GEMEENTENAAM", "LEEFTIJD_5"},
			wantRows:   [][]string{{"Utrecht", "3"}},
		},
		{
			name:       "strips byte order mark",
			input:      "\ufeffGEMEENTENAAM;LEEFTIJD_5\nUtrecht;3\n",
			wantHeader: []string{"GEMEENTENAAM", "LEEFTIJD_5"},
			wantRows:   [][]string{{"Utrecht", "3"}},
		},
		{
			name:       "pads short rows",
			input:      "A;B;C\n1;2\n",
			wantHeader: []string{"A", "B", "C"},
			wantRows:   [][]string{{"1", "2", ""}},
		},
		{
			name:          "skips rows longer than header",
			input:         "A;B\n1;2\n1;2;3\n4;5\n",
			wantHeader:    []string{"A", "B"},
			wantRows:      [][]string{{"1", "2"}, {"4", "5"}},
			wantMalformed: 1,
		},
		{
			name:       "tolerates stray quotes",
			input:      "A;B\nDe \"Kleine\" Prins;2\n",
			wantHeader: []string{"A", "B"},
			wantRows:   [][]string{{`De "Kleine" Prins`, "2"}},
		},
		{
			name:       "skips blank lines",
			input:      "A;B\n\n1;2\n\n",
			wantHeader: []string{"A", "B"},
			wantRows:   [][]string{{"1", "2"}},
		},
		{
			name:       "header only",
			input:      "A;B\n",
			wantHeader: []string{"A", "B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ReadTable(strings.NewReader(tt.input))
			require.NoError(t, err)

			assert.Equal(t, tt.wantHeader, table.Header)
			assert.Equal(t, tt.wantRows, table.Rows)
			assert.Equal(t, tt.wantMalformed, table.Malformed)
			assert.Len(t, table.Lines, len(table.Rows))
		})
	}
}

func TestReadTableEmpty(t *testing.T) {
	_, err := ReadTable(strings.NewReader(""))
	require.ErrorIs(t, err, ErrEmptyFile)
}

func TestReadTableLineNumbers(t *testing.T) {
	table, err := ReadTable(strings.NewReader("A\n1\n\n2\n"))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, table.Lines)
}

func TestTableIndexFirstOccurrenceWins(t *testing.T) {
	table, err := ReadTable(strings.NewReader("A;b;B\n1;2;3\n"))
	require.NoError(t, err)

	idx := table.Index()
	assert.Equal(t, 0, idx["A"])
	assert.Equal(t, 1, idx["B"])
	assert.Len(t, idx, 2)
}
