package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"

	"pupilflow/pkg/contracts/domain"
)

const (
	// Delimiter separates fields in exported CSV files, matching the input files.
	Delimiter = ';'
	// CountColumn heads the count column of aggregate exports.
	CountColumn = "aantal_leerlingen"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
	Delimiter rune
}

// DefaultWriteOptions writes semicolon separated files with a BOM.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{BOMPrefix: true, Delimiter: Delimiter}
}

// CSVWriter exports datasets and aggregates as CSV.
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{logger: logger.With(slog.String("component", "csv_exporter"))}
}

// StreamWriter writes CSV records one at a time.
type StreamWriter struct {
	writer *csv.Writer
	rows   int
}

// NewStreamWriter writes the optional BOM and the header to out.
func NewStreamWriter(out io.Writer, headers []string, opts WriteOptions) (*StreamWriter, error) {
	if opts.BOMPrefix {
		if _, err := out.Write(utf8BOM); err != nil {
			return nil, fmt.Errorf("failed to write BOM: %w", err)
		}
	}
	writer := csv.NewWriter(out)
	if opts.Delimiter != 0 {
		writer.Comma = opts.Delimiter
	}
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
	}
	return &StreamWriter{writer: writer}, nil
}

// WriteRecord writes a single record to the stream
func (s *StreamWriter) WriteRecord(record []string) error {
	if err := s.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record %d: %w", s.rows, err)
	}
	s.rows++
	return nil
}

// Close flushes buffered records.
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	return s.writer.Error()
}

// Rows returns the number of records written after the header.
func (s *StreamWriter) Rows() int {
	return s.rows
}

// DatasetRecord renders one long record in domain.LongColumns order.
func DatasetRecord(r domain.LongRecord) []string {
	return []string{
		r.Municipality,
		r.PupilMunicipality,
		r.School,
		r.SchoolType,
		r.PupilPostcode,
		r.SourceFile,
		r.AgeLabel,
		formatInt(r.Count),
		formatAge(r.Age),
	}
}

// WriteRecords writes long records with the dataset header. The header is
// written even when records is empty.
func (w *CSVWriter) WriteRecords(out io.Writer, records []domain.LongRecord, opts WriteOptions) error {
	sw, err := NewStreamWriter(out, domain.LongColumns, opts)
	if err != nil {
		return err
	}
	for _, r := range records {
		if err := sw.WriteRecord(DatasetRecord(r)); err != nil {
			return err
		}
	}
	if err := sw.Close(); err != nil {
		return err
	}
	w.logger.Info("Wrote dataset CSV", slog.Int("record_count", sw.Rows()))
	return nil
}

// AggregateHeader returns the columns of an aggregate export.
func AggregateHeader(keys []string) []string {
	header := make([]string, 0, len(keys)+1)
	header = append(header, keys...)
	return append(header, CountColumn)
}

// WriteAggregate writes aggregate rows with one column per key and the count.
func (w *CSVWriter) WriteAggregate(out io.Writer, keys []string, rows []domain.AggregateRow, opts WriteOptions) error {
	sw, err := NewStreamWriter(out, AggregateHeader(keys), opts)
	if err != nil {
		return err
	}
	for _, row := range rows {
		record := make([]string, 0, len(keys)+1)
		for _, k := range keys {
			record = append(record, row.Key(k))
		}
		record = append(record, formatInt(row.Count))
		if err := sw.WriteRecord(record); err != nil {
			return err
		}
	}
	if err := sw.Close(); err != nil {
		return err
	}
	w.logger.Info("Wrote aggregate CSV",
		slog.Any("keys", keys),
		slog.Int("record_count", sw.Rows()))
	return nil
}
