package ingest

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const sampleCSV = `Date,Category,Manufacturer,Registrations
2024-01-15,TWO WHEELER,Hero,1200
2024-02-15,2 WHEELER,Bajaj,"1,050"
2024-03-15,FOUR WHEELER,Tata,430
`

func TestLoadCSV(t *testing.T) {
	recs, err := LoadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}

	first := recs[0]
	if first.Category != "2W" {
		t.Errorf("category = %q, want 2W", first.Category)
	}
	if first.Manufacturer != "Hero MotoCorp" {
		t.Errorf("manufacturer = %q, want Hero MotoCorp", first.Manufacturer)
	}
	if first.Count != 1200 {
		t.Errorf("count = %d, want 1200", first.Count)
	}
	if first.Date != time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC) {
		t.Errorf("date = %v", first.Date)
	}

	// Thousands separator must be scrubbed, not rejected.
	if recs[1].Count != 1050 {
		t.Errorf("scrubbed count = %d, want 1050", recs[1].Count)
	}
	if recs[2].Category != "4W" || recs[2].Manufacturer != "Tata Motors" {
		t.Errorf("third record = %+v", recs[2])
	}
}

func TestLoadCSVHeaderAliases(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"count alias", "date,category,manufacturer,count\n2024-01-01,2W,Hero,5\n"},
		{"registration_count alias", "date,category,manufacturer,registration_count\n2024-01-01,2W,Hero,5\n"},
		{"spaced headers", " Date , Category , Manufacturer , Registrations \n2024-01-01,2W,Hero,5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := LoadCSV(strings.NewReader(tt.csv))
			if err != nil {
				t.Fatalf("LoadCSV: %v", err)
			}
			if len(recs) != 1 || recs[0].Count != 5 {
				t.Errorf("records = %+v", recs)
			}
		})
	}
}

func TestLoadCSVMissingColumn(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		missing string
	}{
		{"no manufacturer", "date,category,registrations\n2024-01-01,2W,5\n", "manufacturer"},
		{"no date", "category,manufacturer,registrations\n2W,Hero,5\n", "date"},
		{"no count", "date,category,manufacturer\n2024-01-01,2W,Hero\n", "registrations"},
		{"empty input", "", "date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCSV(strings.NewReader(tt.csv))
			var formatErr *FormatError
			if !errors.As(err, &formatErr) {
				t.Fatalf("expected FormatError, got %v", err)
			}
			if formatErr.Column != tt.missing {
				t.Errorf("column = %q, want %q", formatErr.Column, tt.missing)
			}
		})
	}
}

func TestLoadCSVMalformedCells(t *testing.T) {
	tests := []struct {
		name   string
		csv    string
		column string
		row    int
	}{
		{"bad date", "date,category,manufacturer,registrations\nnot-a-date,2W,Hero,5\n", "date", 2},
		{"bad count", "date,category,manufacturer,registrations\n2024-01-01,2W,Hero,n/a\n", "count", 2},
		{"second row", "date,category,manufacturer,registrations\n2024-01-01,2W,Hero,5\n2024-13-45,2W,Hero,5\n", "date", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCSV(strings.NewReader(tt.csv))
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if parseErr.Column != tt.column || parseErr.Row != tt.row {
				t.Errorf("error = %+v, want column %q row %d", parseErr, tt.column, tt.row)
			}
		})
	}
}

func TestLoadCSVSkipsBlankRows(t *testing.T) {
	csv := "date,category,manufacturer,registrations\n2024-01-01,2W,Hero,5\n,,,\n\n2024-02-01,2W,Hero,6\n"
	recs, err := LoadCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("got %d records, want 2", len(recs))
	}
}

func TestLoadCSVDateFormats(t *testing.T) {
	tests := []struct {
		value string
		want  time.Time
	}{
		{"2024-03-15", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"15-03-2024", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"15/03/2024", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"Mar 2024", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-03", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			csv := "date,category,manufacturer,registrations\n" + tt.value + ",2W,Hero,5\n"
			recs, err := LoadCSV(strings.NewReader(csv))
			if err != nil {
				t.Fatalf("LoadCSV: %v", err)
			}
			if !recs[0].Date.Equal(tt.want) {
				t.Errorf("date = %v, want %v", recs[0].Date, tt.want)
			}
		})
	}
}

func TestLoadFileUnsupportedExtension(t *testing.T) {
	if _, err := LoadFile("dataset.parquet"); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestNormalizeCategory(t *testing.T) {
	tests := []struct{ in, want string }{
		{"TWO WHEELER", "2W"},
		{"two wheeler", "2W"},
		{"3 Wheeler", "3W"},
		{"4 WHEELER", "4W"},
		{"2W", "2W"},
		{"E-RICKSHAW", "E-RICKSHAW"},
	}
	for _, tt := range tests {
		if got := NormalizeCategory(tt.in); got != tt.want {
			t.Errorf("NormalizeCategory(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeManufacturer(t *testing.T) {
	tests := []struct{ in, want string }{
		{"hero", "Hero MotoCorp"},
		{"BAJAJ", "Bajaj Auto"},
		{"tata", "Tata Motors"},
		{"mahindra and mahindra", "Mahindra & Mahindra"},
		{"Ola Electric", "Ola Electric"},
	}
	for _, tt := range tests {
		if got := NormalizeManufacturer(tt.in); got != tt.want {
			t.Errorf("NormalizeManufacturer(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
