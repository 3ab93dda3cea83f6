package dataprocessing

import (
	"strconv"
	"strings"

	"pupilflow/pkg/contracts/domain"
)

// CountOutcome tags how an age band cell was interpreted.
type CountOutcome int

const (
	// CountValid is a non-negative integer.
	CountValid CountOutcome = iota
	// CountUnderFive is the suppressed small-count token, read as 4.
	CountUnderFive
	// CountInvalid is anything else. It invalidates the whole file.
	CountInvalid
)

// String returns the outcome name used in logs.
func (o CountOutcome) String() string {
	switch o {
	case CountValid:
		return "valid"
	case CountUnderFive:
		return "under_five"
	default:
		return "invalid"
	}
}

// CountResult is the result of ParseCount. Value is meaningful unless the
// outcome is CountInvalid.
type CountResult struct {
	Value   int
	Outcome CountOutcome
}

// OK reports whether the cell produced a count.
func (r CountResult) OK() bool {
	return r.Outcome != CountInvalid
}

// ParseCount interprets one age band cell. Surrounding whitespace is ignored.
func ParseCount(token string) CountResult {
	t := strings.TrimSpace(token)
	if t == domain.UnderFiveToken {
		return CountResult{Value: domain.UnderFiveValue, Outcome: CountUnderFive}
	}

	n, err := strconv.Atoi(t)
	if err != nil || n < 0 {
		return CountResult{Outcome: CountInvalid}
	}
	return CountResult{Value: n, Outcome: CountValid}
}
