package core

import (
	"math"
	"testing"
	"time"
)

func reg(date string, category, manufacturer string, count int64) Registration {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return Registration{Date: t, Category: category, Manufacturer: manufacturer, Count: count}
}

func TestPeriodOf(t *testing.T) {
	day := time.Date(2024, time.August, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		g    Granularity
		want Period
	}{
		{"month", GranularityMonth, Period{Year: 2024, Month: 8}},
		{"quarter", GranularityQuarter, Period{Year: 2024, Quarter: 3}},
		{"year", GranularityYear, Period{Year: 2024}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PeriodOf(day, tt.g); got != tt.want {
				t.Errorf("PeriodOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPeriodPrev(t *testing.T) {
	tests := []struct {
		name string
		p    Period
		want Period
	}{
		{"mid-year quarter", Period{Year: 2024, Quarter: 3}, Period{Year: 2024, Quarter: 2}},
		{"first quarter crosses year", Period{Year: 2024, Quarter: 1}, Period{Year: 2023, Quarter: 4}},
		{"january crosses year", Period{Year: 2024, Month: 1}, Period{Year: 2023, Month: 12}},
		{"plain month", Period{Year: 2024, Month: 7}, Period{Year: 2024, Month: 6}},
		{"year", Period{Year: 2024}, Period{Year: 2023}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Prev(); got != tt.want {
				t.Errorf("Prev() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPeriodString(t *testing.T) {
	tests := []struct {
		p    Period
		want string
	}{
		{Period{Year: 2024}, "2024"},
		{Period{Year: 2024, Quarter: 1}, "2024-Q1"},
		{Period{Year: 2024, Month: 3}, "2024-03"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
		back, err := ParsePeriod(tt.want)
		if err != nil {
			t.Fatalf("ParsePeriod(%q): %v", tt.want, err)
		}
		if back != tt.p {
			t.Errorf("ParsePeriod(%q) = %v, want %v", tt.want, back, tt.p)
		}
	}
}

func TestComputeGrowthQuarterOverQuarter(t *testing.T) {
	// The canonical example: 100 in Q1 and 150 in Q2 is 50% QoQ growth.
	recs := []Registration{
		reg("2024-02-10", "2W", "A", 100),
		reg("2024-05-20", "2W", "A", 150),
	}

	metrics := ComputeGrowth(recs, DimensionManufacturer, GranularityQuarter)
	if len(metrics) != 1 {
		t.Fatalf("expected 1 metric, got %d", len(metrics))
	}
	m := metrics[0]
	if m.Group != "A" {
		t.Errorf("group = %q, want %q", m.Group, "A")
	}
	if m.Period != (Period{Year: 2024, Quarter: 2}) {
		t.Errorf("period = %v", m.Period)
	}
	if m.Baseline != (Period{Year: 2024, Quarter: 1}) {
		t.Errorf("baseline = %v", m.Baseline)
	}
	if math.Abs(m.Value-50.0) > 1e-9 {
		t.Errorf("value = %v, want 50.0", m.Value)
	}
}

func TestComputeGrowthSkipsZeroBaseline(t *testing.T) {
	recs := []Registration{
		reg("2024-01-15", "2W", "A", 0),
		reg("2024-04-15", "2W", "A", 80),
	}

	metrics := ComputeGrowth(recs, DimensionManufacturer, GranularityQuarter)
	if len(metrics) != 0 {
		t.Fatalf("zero baseline must be omitted, got %v", metrics)
	}
}

func TestComputeGrowthSkipsGaps(t *testing.T) {
	// Q1 and Q3 present, Q2 missing: Q3 has no immediate baseline.
	recs := []Registration{
		reg("2024-01-15", "2W", "A", 100),
		reg("2024-08-15", "2W", "A", 120),
	}

	metrics := ComputeGrowth(recs, DimensionManufacturer, GranularityQuarter)
	if len(metrics) != 0 {
		t.Fatalf("gap must break the chain, got %v", metrics)
	}
}

func TestComputeGrowthCrossesYearBoundary(t *testing.T) {
	recs := []Registration{
		reg("2023-11-05", "2W", "A", 200),
		reg("2024-02-05", "2W", "A", 300),
	}

	metrics := ComputeGrowth(recs, DimensionManufacturer, GranularityQuarter)
	if len(metrics) != 1 {
		t.Fatalf("expected 1 metric, got %d", len(metrics))
	}
	if metrics[0].Baseline != (Period{Year: 2023, Quarter: 4}) {
		t.Errorf("baseline = %v, want 2023-Q4", metrics[0].Baseline)
	}
	if math.Abs(metrics[0].Value-50.0) > 1e-9 {
		t.Errorf("value = %v, want 50.0", metrics[0].Value)
	}
}

func TestComputeGrowthYearly(t *testing.T) {
	recs := []Registration{
		reg("2022-03-01", "2W", "Hero MotoCorp", 1000),
		reg("2022-09-01", "2W", "Hero MotoCorp", 1000),
		reg("2023-06-01", "2W", "Hero MotoCorp", 1500),
		reg("2022-06-01", "4W", "Tata Motors", 400),
		reg("2023-06-01", "4W", "Tata Motors", 300),
	}

	metrics := ComputeGrowth(recs, DimensionManufacturer, GranularityYear)
	if len(metrics) != 2 {
		t.Fatalf("expected 2 metrics, got %d", len(metrics))
	}
	// Output is ordered by group then period.
	if metrics[0].Group != "Hero MotoCorp" || math.Abs(metrics[0].Value-(-25.0)) > 1e-9 {
		t.Errorf("hero metric = %+v, want -25%%", metrics[0])
	}
	if metrics[1].Group != "Tata Motors" || math.Abs(metrics[1].Value-(-25.0)) > 1e-9 {
		t.Errorf("tata metric = %+v, want -25%%", metrics[1])
	}
}

func TestComputeGrowthGroupsAreIndependent(t *testing.T) {
	// B only appears in Q2; it must not borrow A's Q1 baseline.
	recs := []Registration{
		reg("2024-01-15", "2W", "A", 100),
		reg("2024-04-15", "2W", "A", 110),
		reg("2024-04-15", "2W", "B", 500),
	}

	metrics := ComputeGrowth(recs, DimensionManufacturer, GranularityQuarter)
	if len(metrics) != 1 {
		t.Fatalf("expected 1 metric, got %d", len(metrics))
	}
	if metrics[0].Group != "A" {
		t.Errorf("group = %q, want A", metrics[0].Group)
	}
}

func TestAggregateSumsAndOrders(t *testing.T) {
	recs := []Registration{
		reg("2024-02-01", "2W", "A", 10),
		reg("2024-03-01", "2W", "A", 15),
		reg("2024-05-01", "4W", "B", 7),
	}

	totals := Aggregate(recs, DimensionCategory, GranularityQuarter)
	want := []PeriodTotal{
		{Group: "2W", Period: Period{Year: 2024, Quarter: 1}, Total: 25},
		{Group: "4W", Period: Period{Year: 2024, Quarter: 2}, Total: 7},
	}
	if len(totals) != len(want) {
		t.Fatalf("got %d totals, want %d", len(totals), len(want))
	}
	for i := range want {
		if totals[i] != want[i] {
			t.Errorf("totals[%d] = %+v, want %+v", i, totals[i], want[i])
		}
	}
}

func TestGrowthFromExternalTotals(t *testing.T) {
	// Pre-aggregated input, as produced by the sqlite backend.
	totals := []PeriodTotal{
		{Group: "2W", Period: Period{Year: 2024, Quarter: 1}, Total: 100},
		{Group: "2W", Period: Period{Year: 2024, Quarter: 2}, Total: 150},
	}
	metrics := Growth(totals)
	if len(metrics) != 1 || math.Abs(metrics[0].Value-50.0) > 1e-9 {
		t.Fatalf("metrics = %+v, want single 50%% entry", metrics)
	}
}

func TestParseDimensionAndGranularity(t *testing.T) {
	if _, err := ParseDimension("fuel"); err == nil {
		t.Error("expected error for unknown dimension")
	}
	if d, err := ParseDimension(" Manufacturer "); err != nil || d != DimensionManufacturer {
		t.Errorf("ParseDimension = %v, %v", d, err)
	}
	if _, err := ParseGranularity("week"); err == nil {
		t.Error("expected error for unknown granularity")
	}
	if g, err := ParseGranularity("QUARTER"); err != nil || g != GranularityQuarter {
		t.Errorf("ParseGranularity = %v, %v", g, err)
	}
}
