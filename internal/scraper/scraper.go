// Package scraper fetches registration reports from the public portal and
// drops them as timestamped CSV files into the data directory, announcing
// each new file over AMQP so the worker picks it up.
package scraper

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// Report names one remote page carrying a registration table.
type Report struct {
	Name string
	URL  string
}

// IngestPublisher announces freshly written dataset files. Satisfied by
// *amqp.Client; nil disables announcements.
type IngestPublisher interface {
	PublishDatasetIngest(ctx context.Context, path, source string) error
}

type Scraper struct {
	client    *http.Client
	publisher IngestPublisher
	dataDir   string
	reports   []Report
}

func New(reports []Report, dataDir string, publisher IngestPublisher) *Scraper {
	return &Scraper{
		client:    &http.Client{Timeout: 30 * time.Second},
		publisher: publisher,
		dataDir:   dataDir,
		reports:   reports,
	}
}

// Run fetches every configured report concurrently. A single failing
// report is logged and skipped; Run fails only when no report could be
// fetched at all.
func (s *Scraper) Run(ctx context.Context) error {
	if len(s.reports) == 0 {
		return fmt.Errorf("no reports configured")
	}
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	var succeeded atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	for _, report := range s.reports {
		g.Go(func() error {
			if err := s.scrapeReport(ctx, report); err != nil {
				slog.ErrorContext(ctx, "Report scrape failed",
					"report", report.Name,
					"url", report.URL,
					"error", err)
				return nil
			}
			succeeded.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if succeeded.Load() == 0 {
		return fmt.Errorf("all %d reports failed", len(s.reports))
	}

	slog.InfoContext(ctx, "Scrape run completed",
		"succeeded", succeeded.Load(),
		"total", len(s.reports))
	return nil
}

func (s *Scraper) scrapeReport(ctx context.Context, report Report) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, report.URL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	header, rows, err := extractTable(resp.Body)
	if err != nil {
		return fmt.Errorf("extract table: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("table has no data rows")
	}

	path, err := s.writeCSV(report.Name, header, rows)
	if err != nil {
		return fmt.Errorf("write csv: %w", err)
	}

	slog.InfoContext(ctx, "Report scraped",
		"report", report.Name,
		"rows", len(rows),
		"file", path)

	if s.publisher != nil {
		if err := s.publisher.PublishDatasetIngest(ctx, path, report.Name); err != nil {
			// The file is on disk; the worker's rescan will find it.
			slog.ErrorContext(ctx, "Failed to announce scraped file", "file", path, "error", err)
		}
	}
	return nil
}

func (s *Scraper) writeCSV(name string, header []string, rows [][]string) (string, error) {
	filename := fmt.Sprintf("vahan_%s_%s.csv", name, time.Now().Format("20060102_150405"))
	path := filepath.Join(s.dataDir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if len(header) > 0 {
		if err := w.Write(header); err != nil {
			return "", err
		}
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return path, nil
}
