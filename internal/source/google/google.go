package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"vahan/internal/cache"
	"vahan/internal/core"
	"vahan/internal/ingest"
	"vahan/internal/source"
)

// Client reads the registration dataset from a Google Sheets spreadsheet.
// The sheet is expected to carry the same tabular layout as the CSV inputs:
// a header row with date, category, manufacturer and count columns.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	snapshots     *cache.LRUCache[[]core.Registration]
}

// Ensure interface conformance
var (
	_ source.DatasetReader = (*Client)(nil)
	_ source.CatalogReader = (*Client)(nil)
	_ source.TrendReader   = (*Client)(nil)
	_ source.GrowthReader  = (*Client)(nil)
	_ source.ShareReader   = (*Client)(nil)
)

const snapshotKey = "dataset"

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Optional: GOOGLE_SHEET_NAME (default "Registrations"),
// GOOGLE_SHEET_CACHE_TTL (Go duration, default "5m").
// Credentials come from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Registrations"
	}

	ttl := 5 * time.Minute
	if raw := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_CACHE_TTL")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid GOOGLE_SHEET_CACHE_TTL: %w", err)
		}
		ttl = parsed
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		snapshots:     cache.NewLRUCache[[]core.Registration](1, ttl),
	}, nil
}

// newSheetsService builds the API client from service account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// dataset returns the parsed sheet contents, refreshing the cached
// snapshot when its TTL has elapsed.
func (c *Client) dataset(ctx context.Context) ([]core.Registration, error) {
	if recs, ok := c.snapshots.Get(snapshotKey); ok {
		return recs, nil
	}

	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.sheetName).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", c.sheetName, err)
	}

	recs, err := ingest.FromRows(toRows(resp.Values))
	if err != nil {
		return nil, fmt.Errorf("parse sheet %q: %w", c.sheetName, err)
	}

	slog.InfoContext(ctx, "Sheet snapshot refreshed", "sheet", c.sheetName, "records", len(recs))
	c.snapshots.Set(snapshotKey, recs)
	return recs, nil
}

func toRows(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		rows[i] = cells
	}
	return rows
}

func (c *Client) ListRegistrations(ctx context.Context, f core.Filter) ([]core.Registration, error) {
	recs, err := c.dataset(ctx)
	if err != nil {
		return nil, err
	}
	return f.Apply(recs), nil
}

func (c *Client) Catalog(ctx context.Context) (core.Catalog, error) {
	recs, err := c.dataset(ctx)
	if err != nil {
		return core.Catalog{}, err
	}
	return core.BuildCatalog(recs), nil
}

func (c *Client) Trend(ctx context.Context, dim core.Dimension, g core.Granularity, f core.Filter) ([]core.PeriodTotal, error) {
	recs, err := c.dataset(ctx)
	if err != nil {
		return nil, err
	}
	return core.Aggregate(f.Apply(recs), dim, g), nil
}

func (c *Client) GrowthSeries(ctx context.Context, dim core.Dimension, g core.Granularity) ([]core.GrowthMetric, error) {
	recs, err := c.dataset(ctx)
	if err != nil {
		return nil, err
	}
	return core.ComputeGrowth(recs, dim, g), nil
}

func (c *Client) MarketShare(ctx context.Context, dim core.Dimension, f core.Filter, top int) ([]core.ShareSlice, error) {
	recs, err := c.dataset(ctx)
	if err != nil {
		return nil, err
	}
	return core.MarketShare(f.Apply(recs), dim, top), nil
}
