package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"vahan/internal/amqp"
	"vahan/internal/core"
	"vahan/internal/ingest"
	"vahan/internal/storage"
)

// RefreshedPublisher announces completed dataset refreshes. Satisfied by
// *amqp.Client; nil disables notifications.
type RefreshedPublisher interface {
	PublishDatasetRefreshed(ctx context.Context, files []string, records int) error
}

// IngestService rebuilds the stored dataset from the files in the data
// directory and keeps the growth tables in sync with it.
type IngestService struct {
	storage   *storage.SQLiteRepository
	publisher RefreshedPublisher
	dataDir   string
}

func NewIngestService(storage *storage.SQLiteRepository, publisher RefreshedPublisher, dataDir string) *IngestService {
	return &IngestService{
		storage:   storage,
		publisher: publisher,
		dataDir:   dataDir,
	}
}

// RefreshResult reports what a refresh changed.
type RefreshResult struct {
	Files   []string // files that were new or modified
	Records int      // records stored after the refresh
}

// HandleIngestMessage processes one ingest request from AMQP. The message
// names the file that triggered it, but the refresh always rebuilds from
// the whole data directory so the stored dataset stays the union of its
// files.
func (s *IngestService) HandleIngestMessage(ctx context.Context, msg *amqp.DatasetIngestMessage) error {
	slog.InfoContext(ctx, "Processing ingest message",
		"path", msg.Path,
		"source", msg.Source)

	if _, err := os.Stat(msg.Path); err != nil {
		return fmt.Errorf("stat dataset file: %w", err)
	}

	_, err := s.Refresh(ctx, false)
	return err
}

// Refresh scans the data directory and, when any file is new or changed
// (or force is set), replaces the stored dataset and recomputes every
// growth series. It returns nil when nothing needed to be done.
func (s *IngestService) Refresh(ctx context.Context, force bool) (*RefreshResult, error) {
	files, err := s.listDataFiles()
	if err != nil {
		return nil, fmt.Errorf("scan data directory: %w", err)
	}
	if len(files) == 0 {
		slog.WarnContext(ctx, "No dataset files found", "data_dir", s.dataDir)
		return nil, nil
	}

	changed, checksums, err := s.changedFiles(ctx, files)
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 && !force {
		slog.InfoContext(ctx, "Dataset unchanged, skipping refresh", "files", len(files))
		return nil, nil
	}

	var records []core.Registration
	for _, path := range files {
		recs, err := ingest.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load dataset: %w", err)
		}
		records = append(records, recs...)
	}

	if err := s.storage.ReplaceDataset(ctx, records); err != nil {
		return nil, fmt.Errorf("replace dataset: %w", err)
	}

	if err := s.recomputeGrowth(ctx); err != nil {
		return nil, err
	}

	for _, path := range changed {
		name := filepath.Base(path)
		if err := s.storage.RecordIngest(ctx, name, checksums[path], len(records)); err != nil {
			return nil, fmt.Errorf("record ingest of %s: %w", name, err)
		}
	}

	changedNames := make([]string, len(changed))
	for i, path := range changed {
		changedNames[i] = filepath.Base(path)
	}

	slog.InfoContext(ctx, "Dataset refreshed",
		"files", len(files),
		"changed", changedNames,
		"records", len(records))

	s.notifyRefreshed(ctx, changedNames, len(records))

	return &RefreshResult{Files: changedNames, Records: len(records)}, nil
}

// recomputeGrowth rebuilds the growth series for every dimension and
// granularity pair from the freshly stored records.
func (s *IngestService) recomputeGrowth(ctx context.Context) error {
	dims := []core.Dimension{core.DimensionCategory, core.DimensionManufacturer}
	grans := []core.Granularity{core.GranularityMonth, core.GranularityQuarter, core.GranularityYear}

	for _, dim := range dims {
		for _, g := range grans {
			totals, err := s.storage.PeriodTotals(ctx, dim, g, core.Filter{})
			if err != nil {
				return fmt.Errorf("aggregate %s/%s: %w", dim, g, err)
			}
			metrics := core.Growth(totals)
			if err := s.storage.SaveGrowth(ctx, dim, g, totals, metrics); err != nil {
				return fmt.Errorf("save growth %s/%s: %w", dim, g, err)
			}
		}
	}
	return nil
}

func (s *IngestService) listDataFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".csv", ".xlsx", ".xlsm":
			files = append(files, filepath.Join(s.dataDir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func (s *IngestService) changedFiles(ctx context.Context, files []string) (changed []string, checksums map[string]string, err error) {
	checksums = make(map[string]string, len(files))
	for _, path := range files {
		sum, err := fileChecksum(path)
		if err != nil {
			return nil, nil, fmt.Errorf("checksum %s: %w", path, err)
		}
		checksums[path] = sum

		seen, err := s.storage.SeenFile(ctx, filepath.Base(path), sum)
		if err != nil {
			return nil, nil, fmt.Errorf("check ingest log for %s: %w", path, err)
		}
		if !seen {
			changed = append(changed, path)
		}
	}
	return changed, checksums, nil
}

func fileChecksum(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (s *IngestService) notifyRefreshed(ctx context.Context, files []string, records int) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping refresh notification")
		return
	}
	if err := s.publisher.PublishDatasetRefreshed(ctx, files, records); err != nil {
		// The refresh itself succeeded; the notification is best effort.
		slog.ErrorContext(ctx, "Failed to publish refresh notification", "error", err)
	}
}

// Close releases the underlying storage.
func (s *IngestService) Close() error {
	if s.storage != nil {
		return s.storage.Close()
	}
	return nil
}
