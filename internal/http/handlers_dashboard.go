package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"vahan/internal/core"
)

// Cached getters. Keys combine every parameter that shapes the result;
// the caches are purged wholesale on dataset refresh.

func filterKey(f core.Filter) string {
	parts := []string{"", ""}
	if !f.From.IsZero() {
		parts[0] = f.From.Format(dateParamLayout)
	}
	if !f.To.IsZero() {
		parts[1] = f.To.Format(dateParamLayout)
	}
	parts = append(parts, strings.Join(f.Categories, ";"), strings.Join(f.Manufacturers, ";"))
	return strings.Join(parts, "|")
}

func (s *Server) getCatalog(r *http.Request) (core.Catalog, error) {
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()
	return s.catalog.Catalog(ctx)
}

func (s *Server) getOverview(ctx context.Context, f core.Filter) (core.Overview, error) {
	key := filterKey(f)
	if ov, found := s.overviewCache.Get(key); found {
		return ov, nil
	}

	cctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()
	recs, err := s.dataset.ListRegistrations(cctx, f)
	if err != nil {
		return core.Overview{}, err
	}
	ov := core.Summarize(recs)
	s.overviewCache.Set(key, ov)
	return ov, nil
}

func (s *Server) getTrend(ctx context.Context, dim core.Dimension, g core.Granularity, f core.Filter) ([]core.PeriodTotal, error) {
	key := string(dim) + "|" + string(g) + "|" + filterKey(f)
	if totals, found := s.trendCache.Get(key); found {
		return totals, nil
	}

	cctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()
	totals, err := s.trend.Trend(cctx, dim, g, f)
	if err != nil {
		return nil, err
	}
	s.trendCache.Set(key, totals)
	return totals, nil
}

func (s *Server) getGrowth(ctx context.Context, dim core.Dimension, g core.Granularity) ([]core.GrowthMetric, error) {
	key := string(dim) + "|" + string(g)
	if metrics, found := s.growthCache.Get(key); found {
		return metrics, nil
	}

	cctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()
	metrics, err := s.growth.GrowthSeries(cctx, dim, g)
	if err != nil {
		return nil, err
	}
	s.growthCache.Set(key, metrics)
	return metrics, nil
}

func (s *Server) getShare(ctx context.Context, dim core.Dimension, f core.Filter, top int) ([]core.ShareSlice, error) {
	key := string(dim) + "|" + filterKey(f) + "|" + strconv.Itoa(top)
	if shares, found := s.shareCache.Get(key); found {
		return shares, nil
	}

	cctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()
	shares, err := s.share.MarketShare(cctx, dim, f, top)
	if err != nil {
		return nil, err
	}
	s.shareCache.Set(key, shares)
	return shares, nil
}

// ---- HTMX partials ----

// handleOverviewPartial renders the headline totals for the current
// filter selection.
func (s *Server) handleOverviewPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	ov, err := s.getOverview(r.Context(), f)
	if err != nil {
		slog.ErrorContext(r.Context(), "Overview read failed", "error", err)
		InternalServerError("could not load overview").Write(w)
		return
	}

	data := struct {
		Total         string
		Categories    int
		Manufacturers int
		From          string
		To            string
		HasData       bool
	}{
		Total:         formatCount(ov.TotalRegistrations),
		Categories:    ov.Categories,
		Manufacturers: ov.Manufacturers,
		HasData:       ov.TotalRegistrations > 0,
	}
	if !ov.From.IsZero() {
		data.From = ov.From.Format(dateParamLayout)
		data.To = ov.To.Format(dateParamLayout)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "overview", data); err != nil {
		slog.ErrorContext(r.Context(), "Overview template failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// growthRow is the template view of one growth metric.
type growthRow struct {
	Group    string
	Period   string
	Baseline string
	Value    string
	Class    string
}

// handleGrowthPartial renders the growth list for a dimension and
// granularity. Periods without a defined baseline are simply absent.
func (s *Server) handleGrowthPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	query := r.URL.Query()
	dim, err := ParseDimension(query, core.DimensionCategory)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	g, err := ParseGranularity(query, core.GranularityQuarter)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	metrics, err := s.getGrowth(r.Context(), dim, g)
	if err != nil {
		slog.ErrorContext(r.Context(), "Growth read failed", "error", err, "dimension", dim, "granularity", g)
		InternalServerError("could not load growth metrics").Write(w)
		return
	}

	rows := make([]growthRow, 0, len(metrics))
	for _, m := range metrics {
		class := "growth--up"
		if m.Value < 0 {
			class = "growth--down"
		}
		rows = append(rows, growthRow{
			Group:    m.Group,
			Period:   m.Period.String(),
			Baseline: m.Baseline.String(),
			Value:    formatPercent(m.Value),
			Class:    class,
		})
	}

	data := struct {
		Dimension   string
		Granularity string
		Rows        []growthRow
	}{string(dim), string(g), rows}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "growth_list", data); err != nil {
		slog.ErrorContext(r.Context(), "Growth template failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleSharePartial renders the market-share breakdown.
func (s *Server) handleSharePartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	query := r.URL.Query()
	dim, err := ParseDimension(query, core.DimensionManufacturer)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	f, err := ParseFilter(query)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	top, err := ParseTop(query, 10)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	shares, err := s.getShare(r.Context(), dim, f, top)
	if err != nil {
		slog.ErrorContext(r.Context(), "Share read failed", "error", err, "dimension", dim)
		InternalServerError("could not load market share").Write(w)
		return
	}

	type shareRow struct {
		Group   string
		Total   string
		Percent string
		Width   int
	}
	rows := make([]shareRow, 0, len(shares))
	for _, sl := range shares {
		width := int(sl.Percent + 0.5)
		if width > 100 {
			width = 100
		}
		if width < 2 && sl.Percent > 0 {
			width = 2
		}
		rows = append(rows, shareRow{
			Group:   sl.Group,
			Total:   formatCount(sl.Total),
			Percent: formatPercent(sl.Percent),
			Width:   width,
		})
	}

	data := struct {
		Dimension string
		Rows      []shareRow
	}{string(dim), rows}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "share_list", data); err != nil {
		slog.ErrorContext(r.Context(), "Share template failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleTablePartial renders the raw registrations table, capped so one
// panel cannot render the whole dataset.
func (s *Server) handleTablePartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	query := r.URL.Query()
	f, err := ParseFilter(query)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	limit, err := ParseTop(query, 200)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()
	recs, err := s.dataset.ListRegistrations(ctx, f)
	if err != nil {
		slog.ErrorContext(r.Context(), "Dataset read failed", "error", err)
		InternalServerError("could not load registrations").Write(w)
		return
	}

	truncated := false
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
		truncated = true
	}

	type tableRow struct {
		Date         string
		Category     string
		Manufacturer string
		Count        string
	}
	rows := make([]tableRow, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, tableRow{
			Date:         rec.Date.Format(dateParamLayout),
			Category:     rec.Category,
			Manufacturer: rec.Manufacturer,
			Count:        formatCount(rec.Count),
		})
	}

	data := struct {
		Rows      []tableRow
		Truncated bool
	}{rows, truncated}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "data_table", data); err != nil {
		slog.ErrorContext(r.Context(), "Table template failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// ---- JSON API ----

// handleAPITrend returns per-period totals for charting.
func (s *Server) handleAPITrend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeJSONError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	dim, err := ParseDimension(query, core.DimensionCategory)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	g, err := ParseGranularity(query, core.GranularityMonth)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	f, err := ParseFilter(query)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	totals, err := s.getTrend(r.Context(), dim, g, f)
	if err != nil {
		slog.ErrorContext(r.Context(), "Trend read failed", "error", err, "dimension", dim, "granularity", g)
		writeJSONError(w, r, http.StatusInternalServerError, "could not load trend")
		return
	}

	type point struct {
		Group  string `json:"group"`
		Period string `json:"period"`
		Total  int64  `json:"total"`
	}
	points := make([]point, 0, len(totals))
	for _, t := range totals {
		points = append(points, point{Group: t.Group, Period: t.Period.String(), Total: t.Total})
	}
	writeJSON(w, r, http.StatusOK, points)
}

// handleAPIGrowth returns the percentage-change series.
func (s *Server) handleAPIGrowth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeJSONError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	dim, err := ParseDimension(query, core.DimensionCategory)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	g, err := ParseGranularity(query, core.GranularityQuarter)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	metrics, err := s.getGrowth(r.Context(), dim, g)
	if err != nil {
		slog.ErrorContext(r.Context(), "Growth read failed", "error", err, "dimension", dim, "granularity", g)
		writeJSONError(w, r, http.StatusInternalServerError, "could not load growth metrics")
		return
	}

	type metric struct {
		Group    string  `json:"group"`
		Period   string  `json:"period"`
		Baseline string  `json:"baseline"`
		Value    float64 `json:"value"`
	}
	out := make([]metric, 0, len(metrics))
	for _, m := range metrics {
		out = append(out, metric{
			Group:    m.Group,
			Period:   m.Period.String(),
			Baseline: m.Baseline.String(),
			Value:    m.Value,
		})
	}
	writeJSON(w, r, http.StatusOK, out)
}

// handleAPIShare returns the market-share breakdown.
func (s *Server) handleAPIShare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeJSONError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	dim, err := ParseDimension(query, core.DimensionManufacturer)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	f, err := ParseFilter(query)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	top, err := ParseTop(query, 10)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	shares, err := s.getShare(r.Context(), dim, f, top)
	if err != nil {
		slog.ErrorContext(r.Context(), "Share read failed", "error", err, "dimension", dim)
		writeJSONError(w, r, http.StatusInternalServerError, "could not load market share")
		return
	}

	type slice struct {
		Group   string  `json:"group"`
		Total   int64   `json:"total"`
		Percent float64 `json:"percent"`
	}
	out := make([]slice, 0, len(shares))
	for _, sl := range shares {
		out = append(out, slice{Group: sl.Group, Total: sl.Total, Percent: sl.Percent})
	}
	writeJSON(w, r, http.StatusOK, out)
}

// handleAPICatalog returns the filter options and dataset span.
func (s *Server) handleAPICatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeJSONError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	catalog, err := s.getCatalog(r)
	if err != nil {
		slog.ErrorContext(r.Context(), "Catalog read failed", "error", err)
		writeJSONError(w, r, http.StatusInternalServerError, "could not load catalog")
		return
	}

	out := struct {
		Categories    []string `json:"categories"`
		Manufacturers []string `json:"manufacturers"`
		From          string   `json:"from,omitempty"`
		To            string   `json:"to,omitempty"`
	}{
		Categories:    catalog.Categories,
		Manufacturers: catalog.Manufacturers,
	}
	if !catalog.From.IsZero() {
		out.From = catalog.From.Format(dateParamLayout)
		out.To = catalog.To.Format(dateParamLayout)
	}
	writeJSON(w, r, http.StatusOK, out)
}
