package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Granularity is the period size growth rates are computed over.
type Granularity string

const (
	GranularityMonth   Granularity = "month"
	GranularityQuarter Granularity = "quarter"
	GranularityYear    Granularity = "year"
)

var ErrInvalidGranularity = errors.New("invalid granularity")

func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(strings.ToLower(strings.TrimSpace(s))) {
	case GranularityMonth:
		return GranularityMonth, nil
	case GranularityQuarter:
		return GranularityQuarter, nil
	case GranularityYear:
		return GranularityYear, nil
	}
	return "", ErrInvalidGranularity
}

// Period identifies one bucket of a granularity. Quarter is 1-4 and only set
// for quarterly periods; Month is 1-12 and only set for monthly periods.
type Period struct {
	Year    int
	Quarter int
	Month   int
}

// PeriodOf buckets a date into the period containing it.
func PeriodOf(t time.Time, g Granularity) Period {
	switch g {
	case GranularityMonth:
		return Period{Year: t.Year(), Month: int(t.Month())}
	case GranularityQuarter:
		return Period{Year: t.Year(), Quarter: (int(t.Month())-1)/3 + 1}
	default:
		return Period{Year: t.Year()}
	}
}

// Prev returns the immediately preceding period, crossing year boundaries.
func (p Period) Prev() Period {
	switch {
	case p.Month > 0:
		if p.Month == 1 {
			return Period{Year: p.Year - 1, Month: 12}
		}
		return Period{Year: p.Year, Month: p.Month - 1}
	case p.Quarter > 0:
		if p.Quarter == 1 {
			return Period{Year: p.Year - 1, Quarter: 4}
		}
		return Period{Year: p.Year, Quarter: p.Quarter - 1}
	default:
		return Period{Year: p.Year - 1}
	}
}

// ordinal gives periods of the same granularity a total order.
func (p Period) ordinal() int {
	switch {
	case p.Month > 0:
		return p.Year*12 + p.Month - 1
	case p.Quarter > 0:
		return p.Year*4 + p.Quarter - 1
	default:
		return p.Year
	}
}

func (p Period) Before(q Period) bool { return p.ordinal() < q.ordinal() }

func (p Period) IsZero() bool { return p == Period{} }

// String renders "2024", "2024-Q3" or "2024-07".
func (p Period) String() string {
	switch {
	case p.Month > 0:
		return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
	case p.Quarter > 0:
		return fmt.Sprintf("%04d-Q%d", p.Year, p.Quarter)
	default:
		return fmt.Sprintf("%04d", p.Year)
	}
}

// ParsePeriod is the inverse of Period.String.
func ParsePeriod(s string) (Period, error) {
	var p Period
	switch {
	case strings.Contains(s, "-Q"):
		if _, err := fmt.Sscanf(s, "%d-Q%d", &p.Year, &p.Quarter); err != nil {
			return Period{}, fmt.Errorf("parse period %q: %w", s, err)
		}
	case strings.Contains(s, "-"):
		if _, err := fmt.Sscanf(s, "%d-%d", &p.Year, &p.Month); err != nil {
			return Period{}, fmt.Errorf("parse period %q: %w", s, err)
		}
	default:
		if _, err := fmt.Sscanf(s, "%d", &p.Year); err != nil {
			return Period{}, fmt.Errorf("parse period %q: %w", s, err)
		}
	}
	return p, nil
}

// PeriodTotal is the summed registration count for one (group, period) pair.
type PeriodTotal struct {
	Group  string
	Period Period
	Total  int64
}

// GrowthMetric is the percentage change of a group's total against the
// immediately preceding period. Only defined pairs are ever materialized:
// a metric exists iff Baseline had a nonzero total for the same group.
type GrowthMetric struct {
	Group    string
	Period   Period
	Baseline Period
	Value    float64
}

// Aggregate sums registration counts per (group, period), ordered by group
// then period ascending.
func Aggregate(recs []Registration, dim Dimension, g Granularity) []PeriodTotal {
	type key struct {
		group  string
		period Period
	}
	sums := make(map[key]int64)
	for _, r := range recs {
		sums[key{r.Group(dim), PeriodOf(r.Date, g)}] += r.Count
	}

	totals := make([]PeriodTotal, 0, len(sums))
	for k, total := range sums {
		totals = append(totals, PeriodTotal{Group: k.group, Period: k.period, Total: total})
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Group != totals[j].Group {
			return totals[i].Group < totals[j].Group
		}
		return totals[i].Period.Before(totals[j].Period)
	})
	return totals
}

// Growth derives percentage-change metrics from period totals. Pairs whose
// immediately preceding period is absent or has a zero total are omitted,
// so a divide by zero can never surface to the caller.
func Growth(totals []PeriodTotal) []GrowthMetric {
	byGroup := make(map[string]map[Period]int64)
	for _, t := range totals {
		periods, ok := byGroup[t.Group]
		if !ok {
			periods = make(map[Period]int64)
			byGroup[t.Group] = periods
		}
		periods[t.Period] += t.Total
	}

	var metrics []GrowthMetric
	for _, t := range totals {
		prev := t.Period.Prev()
		baseline, ok := byGroup[t.Group][prev]
		if !ok || baseline == 0 {
			continue
		}
		current := byGroup[t.Group][t.Period]
		metrics = append(metrics, GrowthMetric{
			Group:    t.Group,
			Period:   t.Period,
			Baseline: prev,
			Value:    float64(current-baseline) / float64(baseline) * 100,
		})
	}
	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].Group != metrics[j].Group {
			return metrics[i].Group < metrics[j].Group
		}
		return metrics[i].Period.Before(metrics[j].Period)
	})
	return metrics
}

// ComputeGrowth is the one-shot form: aggregate then derive.
func ComputeGrowth(recs []Registration, dim Dimension, g Granularity) []GrowthMetric {
	return Growth(Aggregate(recs, dim, g))
}
