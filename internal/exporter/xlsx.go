package exporter

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"pupilflow/pkg/contracts/domain"
)

// maxSheetName is the longest worksheet name Excel accepts.
const maxSheetName = 31

// ErrNoSheets is returned when a workbook would have no worksheets.
var ErrNoSheets = errors.New("workbook needs at least one sheet")

// Sheet is one worksheet of an aggregate workbook.
type Sheet struct {
	Name string
	Keys []string
	Rows []domain.AggregateRow
}

// XLSXWriter exports aggregates as Excel workbooks.
type XLSXWriter struct {
	logger *slog.Logger
}

// NewXLSXWriter creates a new workbook writer
func NewXLSXWriter(logger *slog.Logger) *XLSXWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXWriter{logger: logger.With(slog.String("component", "xlsx_exporter"))}
}

// Write renders sheets into one workbook and writes it to out. Each sheet has
// a bold header row with the key columns followed by the count column.
func (w *XLSXWriter) Write(out io.Writer, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return ErrNoSheets
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	used := make(map[string]bool, len(sheets))
	for i, s := range sheets {
		name := uniqueSheetName(s.Name, i, used)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}

		if err := writeSheet(f, name, s); err != nil {
			return err
		}
		if err := f.SetRowStyle(name, 1, 1, headerStyle); err != nil {
			return fmt.Errorf("style header of %s: %w", name, err)
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	w.logger.Info("Wrote aggregate workbook", slog.Int("sheets", len(sheets)))
	return nil
}

func writeSheet(f *excelize.File, name string, s Sheet) error {
	header := AggregateHeader(s.Keys)
	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &headerRow); err != nil {
		return fmt.Errorf("write header of %s: %w", name, err)
	}

	for r, row := range s.Rows {
		values := make([]interface{}, 0, len(s.Keys)+1)
		for _, k := range s.Keys {
			values = append(values, row.Key(k))
		}
		values = append(values, row.Count)

		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &values); err != nil {
			return fmt.Errorf("write row %d of %s: %w", r+2, name, err)
		}
	}
	return nil
}

// uniqueSheetName strips characters Excel rejects, truncates to the length
// limit and disambiguates repeated names.
func uniqueSheetName(name string, index int, used map[string]bool) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		name = fmt.Sprintf("Sheet%d", index+1)
	}
	name = truncateRunes(name, maxSheetName)

	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncateRunes(name, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
