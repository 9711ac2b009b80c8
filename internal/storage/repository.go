package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vahan/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists the registration dataset and precomputed growth
// tables, mirroring the processing pipeline's sqlite output.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ReplaceDataset swaps the whole registrations table in one transaction so
// readers never observe a partial load.
func (r *SQLiteRepository) ReplaceDataset(ctx context.Context, recs []core.Registration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM registrations`); err != nil {
		return fmt.Errorf("clear registrations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO registrations (date, category, manufacturer, count) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx,
			rec.Date.Format("2006-01-02"), rec.Category, rec.Manufacturer, rec.Count); err != nil {
			return fmt.Errorf("insert registration: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dataset: %w", err)
	}

	slog.InfoContext(ctx, "Dataset replaced", "records", len(recs))
	return nil
}

// ListRegistrations returns registrations matching the filter, ordered by
// date then group columns.
func (r *SQLiteRepository) ListRegistrations(ctx context.Context, f core.Filter) ([]core.Registration, error) {
	where, args := filterClause(f)
	query := `SELECT date, category, manufacturer, count FROM registrations` +
		where + ` ORDER BY date, category, manufacturer`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query registrations: %w", err)
	}
	defer rows.Close()

	var recs []core.Registration
	for rows.Next() {
		var dateStr string
		var rec core.Registration
		if err := rows.Scan(&dateStr, &rec.Category, &rec.Manufacturer, &rec.Count); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		rec.Date, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("stored date %q: %w", dateStr, err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Catalog returns distinct filter options and the covered date span.
func (r *SQLiteRepository) Catalog(ctx context.Context) (core.Catalog, error) {
	var c core.Catalog

	cats, err := r.distinct(ctx, "category")
	if err != nil {
		return c, fmt.Errorf("distinct categories: %w", err)
	}
	mans, err := r.distinct(ctx, "manufacturer")
	if err != nil {
		return c, fmt.Errorf("distinct manufacturers: %w", err)
	}
	c.Categories, c.Manufacturers = cats, mans

	var minDate, maxDate sql.NullString
	err = r.db.QueryRowContext(ctx,
		`SELECT MIN(date), MAX(date) FROM registrations`).Scan(&minDate, &maxDate)
	if err != nil {
		return c, fmt.Errorf("date span: %w", err)
	}
	if minDate.Valid {
		if c.From, err = time.Parse("2006-01-02", minDate.String); err != nil {
			return c, fmt.Errorf("stored min date: %w", err)
		}
	}
	if maxDate.Valid {
		if c.To, err = time.Parse("2006-01-02", maxDate.String); err != nil {
			return c, fmt.Errorf("stored max date: %w", err)
		}
	}
	return c, nil
}

func (r *SQLiteRepository) distinct(ctx context.Context, column string) ([]string, error) {
	// column is always one of two compile-time constants, never user input.
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT `+column+` FROM registrations ORDER BY `+column)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// PeriodTotals aggregates counts per (group, period) in SQL. The result
// feeds core.Growth and the trend endpoints.
func (r *SQLiteRepository) PeriodTotals(ctx context.Context, dim core.Dimension, g core.Granularity, f core.Filter) ([]core.PeriodTotal, error) {
	groupCol := "category"
	if dim == core.DimensionManufacturer {
		groupCol = "manufacturer"
	}

	var periodExpr string
	switch g {
	case core.GranularityMonth:
		periodExpr = `substr(date, 1, 7)`
	case core.GranularityQuarter:
		periodExpr = `substr(date, 1, 4) || '-Q' || ((CAST(substr(date, 6, 2) AS INTEGER) + 2) / 3)`
	default:
		periodExpr = `substr(date, 1, 4)`
	}

	where, args := filterClause(f)
	query := `SELECT ` + groupCol + `, ` + periodExpr + ` AS period, SUM(count)
		FROM registrations` + where + `
		GROUP BY ` + groupCol + `, period
		ORDER BY ` + groupCol + `, period`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query period totals: %w", err)
	}
	defer rows.Close()

	var totals []core.PeriodTotal
	for rows.Next() {
		var t core.PeriodTotal
		var periodStr string
		if err := rows.Scan(&t.Group, &periodStr, &t.Total); err != nil {
			return nil, fmt.Errorf("scan period total: %w", err)
		}
		if t.Period, err = core.ParsePeriod(periodStr); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// SaveGrowth replaces the stored growth table for one (dimension,
// granularity) pair. Every (group, period) present in the aggregation gets a
// row; pairs without a defined metric are stored with a NULL value, mirroring
// the original pipeline's NaN growth columns.
func (r *SQLiteRepository) SaveGrowth(ctx context.Context, dim core.Dimension, g core.Granularity, totals []core.PeriodTotal, metrics []core.GrowthMetric) error {
	type key struct {
		group  string
		period core.Period
	}
	defined := make(map[key]core.GrowthMetric, len(metrics))
	for _, m := range metrics {
		defined[key{m.Group, m.Period}] = m
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM growth_metrics WHERE dimension = ? AND granularity = ?`,
		string(dim), string(g)); err != nil {
		return fmt.Errorf("clear growth metrics: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO growth_metrics
		(dimension, granularity, period, group_key, value, baseline_period)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare growth insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range totals {
		var value sql.NullFloat64
		var baseline sql.NullString
		if m, ok := defined[key{t.Group, t.Period}]; ok {
			value = sql.NullFloat64{Float64: m.Value, Valid: true}
			baseline = sql.NullString{String: m.Baseline.String(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			string(dim), string(g), t.Period.String(), t.Group, value, baseline); err != nil {
			return fmt.Errorf("insert growth metric: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit growth metrics: %w", err)
	}
	return nil
}

// GrowthSeries reads the defined growth metrics for one (dimension,
// granularity) pair. NULL-valued rows are filtered out here, so callers only
// ever see metrics with a valid baseline.
func (r *SQLiteRepository) GrowthSeries(ctx context.Context, dim core.Dimension, g core.Granularity) ([]core.GrowthMetric, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT group_key, period, value, baseline_period
		FROM growth_metrics
		WHERE dimension = ? AND granularity = ? AND value IS NOT NULL
		ORDER BY group_key, period`,
		string(dim), string(g))
	if err != nil {
		return nil, fmt.Errorf("query growth metrics: %w", err)
	}
	defer rows.Close()

	var metrics []core.GrowthMetric
	for rows.Next() {
		var m core.GrowthMetric
		var periodStr, baselineStr string
		if err := rows.Scan(&m.Group, &periodStr, &m.Value, &baselineStr); err != nil {
			return nil, fmt.Errorf("scan growth metric: %w", err)
		}
		if m.Period, err = core.ParsePeriod(periodStr); err != nil {
			return nil, err
		}
		if m.Baseline, err = core.ParsePeriod(baselineStr); err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// SeenFile reports whether a file with this name and checksum was already
// ingested, so the worker's directory rescan stays idempotent.
func (r *SQLiteRepository) SeenFile(ctx context.Context, filename, checksum string) (bool, error) {
	var stored string
	err := r.db.QueryRowContext(ctx,
		`SELECT checksum FROM ingest_log WHERE filename = ?`, filename).Scan(&stored)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query ingest log: %w", err)
	}
	return stored == checksum, nil
}

// RecordIngest upserts the ingest-log entry for a processed file.
func (r *SQLiteRepository) RecordIngest(ctx context.Context, filename, checksum string, records int) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO ingest_log (filename, checksum, records)
		VALUES (?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET checksum = excluded.checksum,
			records = excluded.records, ingested_at = CURRENT_TIMESTAMP`,
		filename, checksum, records)
	if err != nil {
		return fmt.Errorf("record ingest: %w", err)
	}
	return nil
}

// filterClause renders a core.Filter as a WHERE clause plus args.
func filterClause(f core.Filter) (string, []any) {
	var conds []string
	var args []any

	if !f.From.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, f.From.Format("2006-01-02"))
	}
	if !f.To.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, f.To.Format("2006-01-02"))
	}
	if len(f.Categories) > 0 {
		conds = append(conds, "category IN ("+placeholders(len(f.Categories))+")")
		for _, c := range f.Categories {
			args = append(args, c)
		}
	}
	if len(f.Manufacturers) > 0 {
		conds = append(conds, "manufacturer IN ("+placeholders(len(f.Manufacturers))+")")
		for _, m := range f.Manufacturers {
			args = append(args, m)
		}
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
