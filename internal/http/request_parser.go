// Package http provides the dashboard HTTP server and handlers.
//
// This file implements parsing and validation of dashboard query
// parameters: date ranges, filter lists and grouping enums. Invalid
// values are reported, not silently defaulted, so a bad dimension or
// date yields a 400 instead of a misleading chart.

package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vahan/internal/core"
)

const dateParamLayout = "2006-01-02"

// ParamError describes a rejected query parameter.
type ParamError struct {
	Param string
	Value string
	Hint  string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Param, e.Value, e.Hint)
}

// ParseFilter extracts the date range and category/manufacturer filters
// from query parameters. Absent parameters leave the filter open.
func ParseFilter(query url.Values) (core.Filter, error) {
	var f core.Filter

	if v := strings.TrimSpace(query.Get("from")); v != "" {
		t, err := time.Parse(dateParamLayout, v)
		if err != nil {
			return core.Filter{}, &ParamError{Param: "from", Value: v, Hint: "expected YYYY-MM-DD"}
		}
		f.From = t
	}
	if v := strings.TrimSpace(query.Get("to")); v != "" {
		t, err := time.Parse(dateParamLayout, v)
		if err != nil {
			return core.Filter{}, &ParamError{Param: "to", Value: v, Hint: "expected YYYY-MM-DD"}
		}
		f.To = t
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return core.Filter{}, &ParamError{Param: "to", Value: query.Get("to"), Hint: "must not precede from"}
	}

	f.Categories = cleanList(query["category"])
	f.Manufacturers = cleanList(query["manufacturer"])
	return f, nil
}

// ParseDimension reads the grouping dimension, falling back to def when
// the parameter is absent.
func ParseDimension(query url.Values, def core.Dimension) (core.Dimension, error) {
	v := strings.TrimSpace(query.Get("dimension"))
	if v == "" {
		return def, nil
	}
	dim, err := core.ParseDimension(v)
	if err != nil {
		return "", &ParamError{Param: "dimension", Value: v, Hint: "expected category or manufacturer"}
	}
	return dim, nil
}

// ParseGranularity reads the period granularity, falling back to def
// when the parameter is absent.
func ParseGranularity(query url.Values, def core.Granularity) (core.Granularity, error) {
	v := strings.TrimSpace(query.Get("granularity"))
	if v == "" {
		return def, nil
	}
	g, err := core.ParseGranularity(v)
	if err != nil {
		return "", &ParamError{Param: "granularity", Value: v, Hint: "expected month, quarter or year"}
	}
	return g, nil
}

// ParseTop reads the top-N cut for share breakdowns. Zero means no cut.
func ParseTop(query url.Values, def int) (int, error) {
	v := strings.TrimSpace(query.Get("top"))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, &ParamError{Param: "top", Value: v, Hint: "expected a non-negative integer"}
	}
	return n, nil
}

// RequireMethod checks if the request method matches one of the
// expected methods, returning an error response builder otherwise.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

func cleanList(values []string) []string {
	var out []string
	for _, v := range values {
		v = sanitizeInput(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
