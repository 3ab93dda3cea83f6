// Package exporter writes pupil transport data for download.
//
// CSVWriter renders the long-format dataset and tabular aggregates as
// semicolon separated files with a UTF-8 BOM, so spreadsheet programs pick
// the right encoding. XLSXWriter renders aggregates as an Excel workbook with
// one worksheet per grouping.
//
// Example usage:
//
//	w := exporter.NewCSVWriter(logger)
//	err := w.WriteRecords(out, ds.Records, exporter.DefaultWriteOptions())
//
//	x := exporter.NewXLSXWriter(logger)
//	err = x.Write(out, exporter.Sheet{Name: "Herkomst", Keys: keys, Rows: rows})
package exporter
