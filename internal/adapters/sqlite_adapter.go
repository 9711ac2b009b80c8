package adapters

import (
	"context"

	"vahan/internal/core"
	"vahan/internal/source"
	"vahan/internal/storage"
)

// SQLiteAdapter exposes SQLiteRepository through the source.* ports so the
// HTTP handlers work unchanged whether data comes from the database, an
// in-memory store or a spreadsheet.
type SQLiteAdapter struct {
	storage *storage.SQLiteRepository
}

// Ensure interface conformance
var (
	_ source.DatasetReader = (*SQLiteAdapter)(nil)
	_ source.CatalogReader = (*SQLiteAdapter)(nil)
	_ source.TrendReader   = (*SQLiteAdapter)(nil)
	_ source.GrowthReader  = (*SQLiteAdapter)(nil)
	_ source.ShareReader   = (*SQLiteAdapter)(nil)
)

func NewSQLiteAdapter(storage *storage.SQLiteRepository) *SQLiteAdapter {
	return &SQLiteAdapter{storage: storage}
}

// ListRegistrations implements source.DatasetReader.
func (a *SQLiteAdapter) ListRegistrations(ctx context.Context, f core.Filter) ([]core.Registration, error) {
	return a.storage.ListRegistrations(ctx, f)
}

// Catalog implements source.CatalogReader.
func (a *SQLiteAdapter) Catalog(ctx context.Context) (core.Catalog, error) {
	return a.storage.Catalog(ctx)
}

// Trend implements source.TrendReader via SQL aggregation.
func (a *SQLiteAdapter) Trend(ctx context.Context, dim core.Dimension, g core.Granularity, f core.Filter) ([]core.PeriodTotal, error) {
	return a.storage.PeriodTotals(ctx, dim, g, f)
}

// GrowthSeries implements source.GrowthReader from the precomputed table.
func (a *SQLiteAdapter) GrowthSeries(ctx context.Context, dim core.Dimension, g core.Granularity) ([]core.GrowthMetric, error) {
	return a.storage.GrowthSeries(ctx, dim, g)
}

// MarketShare implements source.ShareReader. Shares are derived in memory
// from the filtered records since the top-N cut needs the full total anyway.
func (a *SQLiteAdapter) MarketShare(ctx context.Context, dim core.Dimension, f core.Filter, top int) ([]core.ShareSlice, error) {
	recs, err := a.storage.ListRegistrations(ctx, f)
	if err != nil {
		return nil, err
	}
	return core.MarketShare(recs, dim, top), nil
}
