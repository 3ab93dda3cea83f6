package exporter

import (
	"strconv"
)

// formatAge formats a numeric age without trailing zeros. Undefined ages
// are written as an empty cell.
func formatAge(age *float64) string {
	if age == nil {
		return ""
	}
	return strconv.FormatFloat(*age, 'f', -1, 64)
}

// formatInt formats a count for CSV output
func formatInt(i int) string {
	return strconv.Itoa(i)
}
