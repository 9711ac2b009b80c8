package http

import (
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"vahan/internal/core"
)

func TestParseFilter(t *testing.T) {
	t.Run("empty query yields open filter", func(t *testing.T) {
		f, err := ParseFilter(url.Values{})
		if err != nil {
			t.Fatalf("ParseFilter() error = %v", err)
		}
		if !f.IsZero() {
			t.Errorf("expected zero filter, got %+v", f)
		}
	})

	t.Run("date range and lists", func(t *testing.T) {
		q := url.Values{
			"from":         {"2024-01-01"},
			"to":           {"2024-06-30"},
			"category":     {"2W", "3W", ""},
			"manufacturer": {"Hero MotoCorp"},
		}
		f, err := ParseFilter(q)
		if err != nil {
			t.Fatalf("ParseFilter() error = %v", err)
		}
		if got := f.From.Format(dateParamLayout); got != "2024-01-01" {
			t.Errorf("From = %s, want 2024-01-01", got)
		}
		if got := f.To.Format(dateParamLayout); got != "2024-06-30" {
			t.Errorf("To = %s, want 2024-06-30", got)
		}
		if len(f.Categories) != 2 {
			t.Errorf("Categories = %v, want 2 entries", f.Categories)
		}
		if len(f.Manufacturers) != 1 || f.Manufacturers[0] != "Hero MotoCorp" {
			t.Errorf("Manufacturers = %v", f.Manufacturers)
		}
	})

	tests := []struct {
		name  string
		query url.Values
		param string
	}{
		{"malformed from", url.Values{"from": {"01/02/2024"}}, "from"},
		{"malformed to", url.Values{"to": {"yesterday"}}, "to"},
		{"inverted range", url.Values{"from": {"2024-06-01"}, "to": {"2024-01-01"}}, "to"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFilter(tt.query)
			if err == nil {
				t.Fatal("expected error")
			}
			var perr *ParamError
			if !errors.As(err, &perr) {
				t.Fatalf("expected ParamError, got %T", err)
			}
			if perr.Param != tt.param {
				t.Errorf("Param = %s, want %s", perr.Param, tt.param)
			}
		})
	}
}

func TestParseDimension(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		def     core.Dimension
		want    core.Dimension
		wantErr bool
	}{
		{"absent uses default", "", core.DimensionCategory, core.DimensionCategory, false},
		{"explicit category", "category", core.DimensionManufacturer, core.DimensionCategory, false},
		{"explicit manufacturer", "manufacturer", core.DimensionCategory, core.DimensionManufacturer, false},
		{"case insensitive", "Manufacturer", core.DimensionCategory, core.DimensionManufacturer, false},
		{"unknown rejected", "color", core.DimensionCategory, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := url.Values{}
			if tt.value != "" {
				q.Set("dimension", tt.value)
			}
			got, err := ParseDimension(q, tt.def)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDimension() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseDimension() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseGranularity(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		def     core.Granularity
		want    core.Granularity
		wantErr bool
	}{
		{"absent uses default", "", core.GranularityQuarter, core.GranularityQuarter, false},
		{"month", "month", core.GranularityQuarter, core.GranularityMonth, false},
		{"year", "year", core.GranularityMonth, core.GranularityYear, false},
		{"weekly rejected", "week", core.GranularityMonth, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := url.Values{}
			if tt.value != "" {
				q.Set("granularity", tt.value)
			}
			got, err := ParseGranularity(q, tt.def)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseGranularity() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseGranularity() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseTop(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    int
		wantErr bool
	}{
		{"absent uses default", "", 10, false},
		{"explicit", "5", 5, false},
		{"zero means no cut", "0", 0, false},
		{"negative rejected", "-1", 0, true},
		{"non numeric rejected", "ten", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := url.Values{}
			if tt.value != "" {
				q.Set("top", tt.value)
			}
			got, err := ParseTop(q, 10)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTop() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseTop() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParamError_Error(t *testing.T) {
	err := &ParamError{Param: "from", Value: "nope", Hint: "expected YYYY-MM-DD"}
	msg := err.Error()
	for _, want := range []string{"from", "nope", "expected YYYY-MM-DD"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestFilterKey(t *testing.T) {
	day := func(s string) time.Time {
		d, err := time.Parse(dateParamLayout, s)
		if err != nil {
			t.Fatalf("parse %s: %v", s, err)
		}
		return d
	}

	a := filterKey(core.Filter{From: day("2024-01-01"), Categories: []string{"2W"}})
	b := filterKey(core.Filter{From: day("2024-01-01"), Categories: []string{"2W"}})
	c := filterKey(core.Filter{From: day("2024-01-01"), Categories: []string{"3W"}})
	if a != b {
		t.Errorf("identical filters got different keys: %q vs %q", a, b)
	}
	if a == c {
		t.Errorf("different filters share key %q", a)
	}
}
