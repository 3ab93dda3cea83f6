package dataprocessing

import (
	"fmt"
	"io"

	apperrors "pupilflow/internal/errors"
	"pupilflow/internal/files"
	"pupilflow/pkg/contracts/domain"
)

// FileFrame is the long-format output of one source file.
type FileFrame struct {
	File          string
	Records       []domain.LongRecord
	SourceRows    int
	MalformedRows int
	UnderFive     int
}

// Len returns the number of long rows.
func (f *FileFrame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Records)
}

// NormalizeFile validates one file against the global age bands and reshapes
// it to long format. It has no side effects; every failure is returned as an
// *errors.AppError and means the file contributes no rows.
func NormalizeFile(file files.FileInfo, ageBands []string) (*FileFrame, error) {
	table, err := ReadTableFile(file.Path)
	if err != nil {
		return nil, apperrors.NewFileReadError(file.Name, err)
	}
	return NormalizeTable(file.Name, table, ageBands)
}

// NormalizeReader is NormalizeFile for an already opened source.
func NormalizeReader(name string, r io.Reader, ageBands []string) (*FileFrame, error) {
	table, err := ReadTable(r)
	if err != nil {
		return nil, apperrors.NewFileReadError(name, err)
	}
	return NormalizeTable(name, table, ageBands)
}

// NormalizeTable applies validation, coercion and the melt to a parsed table.
func NormalizeTable(name string, table *Table, ageBands []string) (*FileFrame, error) {
	idx := table.Index()

	var missing []string
	for _, field := range domain.MandatoryFields {
		if _, ok := idx[field]; ok || field == domain.FieldPupilPostcode {
			continue
		}
		missing = append(missing, field)
	}
	if len(missing) > 0 {
		return nil, apperrors.NewSchemaError(name, missing)
	}

	bandCols := make([]int, len(ageBands))
	for k, band := range ageBands {
		if i, ok := idx[band]; ok {
			bandCols[k] = i
		} else {
			bandCols[k] = -1
		}
	}

	frame := &FileFrame{
		File:          name,
		SourceRows:    len(table.Rows),
		MalformedRows: table.Malformed,
	}

	rows := make([]wideRow, 0, len(table.Rows))
	for r, rec := range table.Rows {
		row := wideRow{
			identity: domain.Identity{
				Municipality:      cell(rec, idx, domain.FieldMunicipality),
				PupilMunicipality: cell(rec, idx, domain.FieldPupilMunicipality),
				School:            cell(rec, idx, domain.FieldSchool),
				SchoolType:        cell(rec, idx, domain.FieldSchoolType),
				PupilPostcode:     postcode(rec, idx),
			},
			counts: make([]int, len(ageBands)),
		}

		for k, col := range bandCols {
			if col < 0 {
				continue
			}
			token := fill(rec[col])
			res := ParseCount(token)
			if !res.OK() {
				return nil, apperrors.NewValueCoercionError(name, ageBands[k], lineOf(table, r), token)
			}
			if res.Outcome == CountUnderFive {
				frame.UnderFive++
			}
			row.counts[k] = res.Value
		}
		rows = append(rows, row)
	}

	frame.Records = melt(name, rows, ageBands)
	return frame, nil
}

// missingTokens are cell values read as absent. The match is exact, so
// " NA" or "na" stay ordinary text.
var missingTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// isMissingCell reports whether v marks an absent value.
func isMissingCell(v string) bool {
	_, ok := missingTokens[v]
	return ok
}

// fill maps an absent cell to the missing-cell placeholder.
func fill(v string) string {
	if isMissingCell(v) {
		return domain.MissingCellPlaceholder
	}
	return v
}

func cell(rec []string, idx map[string]int, field string) string {
	i, ok := idx[field]
	if !ok {
		return domain.MissingCellPlaceholder
	}
	return fill(rec[i])
}

// postcode returns the pupil postcode, synthesised when the column is absent.
func postcode(rec []string, idx map[string]int) string {
	if _, ok := idx[domain.FieldPupilPostcode]; !ok {
		return domain.DefaultPostcode
	}
	return cell(rec, idx, domain.FieldPupilPostcode)
}

func lineOf(t *Table, r int) int {
	if r < len(t.Lines) && t.Lines[r] > 0 {
		return t.Lines[r]
	}
	return r + 2
}

// String describes the frame for logs.
func (f *FileFrame) String() string {
	return fmt.Sprintf("%s: %d source rows, %d long rows", f.File, f.SourceRows, f.Len())
}
