package core

import (
	"sort"
	"time"
)

// Filter narrows a dataset to a date range and/or group selections.
// Zero times mean unbounded; empty slices mean "all".
type Filter struct {
	From          time.Time
	To            time.Time
	Categories    []string
	Manufacturers []string
}

func (f Filter) IsZero() bool {
	return f.From.IsZero() && f.To.IsZero() &&
		len(f.Categories) == 0 && len(f.Manufacturers) == 0
}

// Match reports whether a registration passes the filter. Date bounds are
// inclusive on both ends, matching the original dashboard's range picker.
func (f Filter) Match(r Registration) bool {
	if !f.From.IsZero() && r.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.Date.After(f.To) {
		return false
	}
	if len(f.Categories) > 0 && !contains(f.Categories, r.Category) {
		return false
	}
	if len(f.Manufacturers) > 0 && !contains(f.Manufacturers, r.Manufacturer) {
		return false
	}
	return true
}

// Apply returns the registrations passing the filter, preserving order.
func (f Filter) Apply(recs []Registration) []Registration {
	if f.IsZero() {
		return recs
	}
	out := make([]Registration, 0, len(recs))
	for _, r := range recs {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

func contains(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// ShareSlice is one group's slice of the filtered total.
type ShareSlice struct {
	Group   string
	Total   int64
	Percent float64
}

// MarketShare computes each group's percentage of the overall total,
// descending, cut to the top n groups when n > 0. An empty dataset yields
// no slices rather than NaN percentages.
func MarketShare(recs []Registration, dim Dimension, top int) []ShareSlice {
	sums := make(map[string]int64)
	var total int64
	for _, r := range recs {
		sums[r.Group(dim)] += r.Count
		total += r.Count
	}
	if total == 0 {
		return nil
	}

	slices := make([]ShareSlice, 0, len(sums))
	for group, sum := range sums {
		slices = append(slices, ShareSlice{
			Group:   group,
			Total:   sum,
			Percent: float64(sum) / float64(total) * 100,
		})
	}
	sort.Slice(slices, func(i, j int) bool {
		if slices[i].Total != slices[j].Total {
			return slices[i].Total > slices[j].Total
		}
		return slices[i].Group < slices[j].Group
	})
	if top > 0 && len(slices) > top {
		slices = slices[:top]
	}
	return slices
}

// Overview is the headline summary for the active filter.
type Overview struct {
	TotalRegistrations int64
	Categories         int
	Manufacturers      int
	From               time.Time
	To                 time.Time
}

// Summarize computes the overview of a (already filtered) dataset.
func Summarize(recs []Registration) Overview {
	var o Overview
	cats := make(map[string]struct{})
	mans := make(map[string]struct{})
	for _, r := range recs {
		o.TotalRegistrations += r.Count
		cats[r.Category] = struct{}{}
		mans[r.Manufacturer] = struct{}{}
		if o.From.IsZero() || r.Date.Before(o.From) {
			o.From = r.Date
		}
		if o.To.IsZero() || r.Date.After(o.To) {
			o.To = r.Date
		}
	}
	o.Categories = len(cats)
	o.Manufacturers = len(mans)
	return o
}

// Catalog lists the filter options a dataset offers.
type Catalog struct {
	Categories    []string
	Manufacturers []string
	From          time.Time
	To            time.Time
}

// BuildCatalog extracts sorted distinct categories and manufacturers plus
// the covered date span.
func BuildCatalog(recs []Registration) Catalog {
	cats := make(map[string]struct{})
	mans := make(map[string]struct{})
	var c Catalog
	for _, r := range recs {
		cats[r.Category] = struct{}{}
		mans[r.Manufacturer] = struct{}{}
		if c.From.IsZero() || r.Date.Before(c.From) {
			c.From = r.Date
		}
		if c.To.IsZero() || r.Date.After(c.To) {
			c.To = r.Date
		}
	}
	c.Categories = sortedKeys(cats)
	c.Manufacturers = sortedKeys(mans)
	return c
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
