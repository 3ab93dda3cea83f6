package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// MandatoryHeader returns the five mandatory columns followed by extra columns.
func MandatoryHeader(extra ...string) []string {
	header := []string{
		"GEMEENTENAAM",
		"GEMEENTENAAM_LEERLING",
		"INSTELLINGSNAAM_VESTIGING",
		"SOORT_PO",
		"POSTCODE_LEERLING",
	}
	return append(header, extra...)
}

// WriteTransportCSV writes a semicolon-delimited file with a header row and
// returns its path.
func WriteTransportCSV(t *testing.T, dir, name string, header []string, rows [][]string) string {
	t.Helper()

	var b strings.Builder
	b.WriteString(strings.Join(header, ";"))
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(strings.Join(row, ";"))
		b.WriteString("\n")
	}
	return WriteRawFile(t, dir, name, b.String())
}

// WriteRawFile writes content verbatim and returns the file path.
func WriteRawFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("create fixture dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}

// WriteCoordinates writes a postcode coordinate table using decimal commas.
func WriteCoordinates(t *testing.T, dir, name string, rows map[string][2]string) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("POSTCODE;LAT;LON\n")
	for postcode, latLon := range rows {
		b.WriteString(postcode + ";" + latLon[0] + ";" + latLon[1] + "\n")
	}
	return WriteRawFile(t, dir, name, b.String())
}
