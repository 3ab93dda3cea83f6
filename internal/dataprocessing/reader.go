package dataprocessing

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Delimiter separates fields in every input file.
const Delimiter = ';'

// ErrEmptyFile is returned for a file without a header line.
var ErrEmptyFile = errors.New("no columns to parse from file")

// Table is a tolerantly parsed CSV file. Header names are trimmed and
// upper-cased. Every row has exactly len(Header) cells; short rows are padded
// with empty cells and rows with more cells than the header are dropped.
type Table struct {
	Header    []string
	Rows      [][]string
	Lines     []int
	Malformed int
}

// NormalizeHeader trims and upper-cases a column name.
func NormalizeHeader(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// newReader decodes UTF-8 with an optional byte order mark.
func newReader(r io.Reader) *csv.Reader {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(decoded)
	cr.Comma = Delimiter
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false
	return cr
}

// readHeaderRecord returns the first parseable record, normalised.
func readHeaderRecord(cr *csv.Reader) ([]string, error) {
	raw, err := readRawHeaderRecord(cr)
	if err != nil {
		return nil, err
	}
	header := make([]string, len(raw))
	for i, h := range raw {
		header[i] = NormalizeHeader(h)
	}
	return header, nil
}

// readRawHeaderRecord returns the first parseable record as written.
func readRawHeaderRecord(cr *csv.Reader) ([]string, error) {
	for {
		rec, err := cr.Read()
		if err == nil {
			return rec, nil
		}
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyFile
		}
		var perr *csv.ParseError
		if !errors.As(err, &perr) {
			return nil, err
		}
	}
}

// ReadRawHeader returns the header of the file at path without trimming or
// case folding. Only the byte order mark is removed.
func ReadRawHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readRawHeaderRecord(newReader(f))
}

// ReadTable parses r into a Table, skipping lines it cannot parse.
func ReadTable(r io.Reader) (*Table, error) {
	cr := newReader(r)

	header, err := readHeaderRecord(cr)
	if err != nil {
		return nil, err
	}

	t := &Table{Header: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				t.Malformed++
				continue
			}
			return nil, fmt.Errorf("read csv: %w", err)
		}

		if len(rec) > len(header) {
			t.Malformed++
			continue
		}
		if len(rec) < len(header) {
			padded := make([]string, len(header))
			copy(padded, rec)
			rec = padded
		}

		line, _ := cr.FieldPos(0)
		t.Rows = append(t.Rows, rec)
		t.Lines = append(t.Lines, line)
	}

	return t, nil
}

// ReadTableFile parses the file at path.
func ReadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadTable(f)
}

// Index maps each column name to its first position in the header.
func (t *Table) Index() map[string]int {
	idx := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		if _, seen := idx[h]; !seen {
			idx[h] = i
		}
	}
	return idx
}
