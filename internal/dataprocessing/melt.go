package dataprocessing

import (
	"regexp"
	"strconv"

	"pupilflow/pkg/contracts/domain"
)

var digitRun = regexp.MustCompile(`\d+`)

// NumericAge extracts the first run of digits of an age band label.
// It returns nil when the label holds no digit.
func NumericAge(label string) *float64 {
	m := digitRun.FindString(label)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &v
}

// wideRow is one validated source row: its identity and one count per
// global age band, in band order.
type wideRow struct {
	identity domain.Identity
	counts   []int
}

// melt reshapes wide rows to long format, row by row and band by band.
// N rows over K bands yield exactly N*K records.
func melt(source string, rows []wideRow, bands []string) []domain.LongRecord {
	ages := make([]*float64, len(bands))
	for k, band := range bands {
		ages[k] = NumericAge(band)
	}

	out := make([]domain.LongRecord, 0, len(rows)*len(bands))
	for _, row := range rows {
		for k, band := range bands {
			out = append(out, domain.LongRecord{
				Identity:   row.identity,
				SourceFile: source,
				AgeLabel:   band,
				Count:      row.counts[k],
				Age:        ages[k],
			})
		}
	}
	return out
}
