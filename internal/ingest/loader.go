// Package ingest loads registration datasets from CSV and Excel exports and
// coerces them into clean core records. Loading is all-or-nothing: a single
// malformed cell fails the file so a dashboard never shows a partial load.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"vahan/internal/core"
)

// FormatError reports a required column missing from the header row.
type FormatError struct {
	Column string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("missing required column %q", e.Column)
}

// ParseError reports a malformed cell. Row is 1-based and counts the header.
type ParseError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d: malformed %s value %q", e.Row, e.Column, e.Value)
}

func (e *ParseError) Unwrap() error { return e.Err }

// countAliases are the accepted names for the count column, in preference
// order. Exact portal exports are inconsistent about this header.
var countAliases = []string{"registrations", "count", "registration_count"}

// dateLayouts are tried in order when coercing date cells.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02-01-2006",
	"02/01/2006",
	"Jan 2006",
	"2006-01",
}

// LoadFile reads a dataset file, dispatching on extension (.csv, .xlsx).
func LoadFile(path string) ([]core.Registration, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		recs, err := LoadCSV(f)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		return recs, nil
	case ".xlsx", ".xlsm":
		recs, err := LoadExcel(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		return recs, nil
	default:
		return nil, fmt.Errorf("unsupported dataset format %q", filepath.Ext(path))
	}
}

// LoadCSV reads registrations from CSV data.
func LoadCSV(r io.Reader) ([]core.Registration, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return FromRows(rows)
}

// LoadExcel reads registrations from the first sheet of an xlsx workbook.
func LoadExcel(path string) ([]core.Registration, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return FromRows(rows)
}

// FromRows converts a header row plus data rows into clean registrations.
// It is the shared entry point for every tabular input the loaders accept.
func FromRows(rows [][]string) ([]core.Registration, error) {
	if len(rows) == 0 {
		return nil, &FormatError{Column: "date"}
	}

	cols, err := mapColumns(rows[0])
	if err != nil {
		return nil, err
	}

	recs := make([]core.Registration, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rowNum := i + 2
		if isBlankRow(row) {
			continue
		}

		date, err := parseDate(cell(row, cols.date))
		if err != nil {
			return nil, &ParseError{Row: rowNum, Column: "date", Value: cell(row, cols.date), Err: err}
		}
		count, err := parseCount(cell(row, cols.count))
		if err != nil {
			return nil, &ParseError{Row: rowNum, Column: "count", Value: cell(row, cols.count), Err: err}
		}

		rec := core.Registration{
			Date:         date,
			Category:     NormalizeCategory(cell(row, cols.category)),
			Manufacturer: NormalizeManufacturer(cell(row, cols.manufacturer)),
			Count:        count,
		}
		if err := rec.Validate(); err != nil {
			return nil, &ParseError{Row: rowNum, Column: "record", Value: "", Err: err}
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

type columnIndexes struct {
	date         int
	category     int
	manufacturer int
	count        int
}

func mapColumns(header []string) (columnIndexes, error) {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		byName[NormalizeHeader(h)] = i
	}

	cols := columnIndexes{date: -1, category: -1, manufacturer: -1, count: -1}
	var ok bool
	if cols.date, ok = byName["date"]; !ok {
		return cols, &FormatError{Column: "date"}
	}
	if cols.category, ok = byName["category"]; !ok {
		return cols, &FormatError{Column: "category"}
	}
	if cols.manufacturer, ok = byName["manufacturer"]; !ok {
		return cols, &FormatError{Column: "manufacturer"}
	}
	for _, alias := range countAliases {
		if idx, found := byName[alias]; found {
			cols.count = idx
			break
		}
	}
	if cols.count < 0 {
		return cols, &FormatError{Column: "registrations"}
	}
	return cols, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format")
}

func parseCount(s string) (int64, error) {
	scrubbed := scrubNumeric(s)
	if scrubbed == "" {
		return 0, fmt.Errorf("no numeric content")
	}
	f, err := strconv.ParseFloat(scrubbed, 64)
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	if f < 0 || f > math.MaxInt64 {
		return 0, fmt.Errorf("count out of range")
	}
	return int64(math.Round(f)), nil
}
