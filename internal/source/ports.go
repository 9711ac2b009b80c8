package source

import (
	"context"

	"vahan/internal/core"
)

// Ports for dataset backends.
type (
	// DatasetReader returns raw registration records, optionally filtered.
	DatasetReader interface {
		ListRegistrations(ctx context.Context, f core.Filter) ([]core.Registration, error)
	}

	// CatalogReader exposes the distinct categories, manufacturers and date
	// span of the loaded dataset, used to populate dashboard filters.
	CatalogReader interface {
		Catalog(ctx context.Context) (core.Catalog, error)
	}

	// TrendReader returns per-period totals for one grouping dimension.
	TrendReader interface {
		Trend(ctx context.Context, dim core.Dimension, g core.Granularity, f core.Filter) ([]core.PeriodTotal, error)
	}

	// GrowthReader returns the precomputed percentage-change series.
	GrowthReader interface {
		GrowthSeries(ctx context.Context, dim core.Dimension, g core.Granularity) ([]core.GrowthMetric, error)
	}

	// ShareReader returns the market-share breakdown for a dimension,
	// limited to the top N groups (0 means no limit).
	ShareReader interface {
		MarketShare(ctx context.Context, dim core.Dimension, f core.Filter, top int) ([]core.ShareSlice, error)
	}
)
