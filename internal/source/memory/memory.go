package memory

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"vahan/internal/core"
	"vahan/internal/ingest"
	"vahan/internal/source"
)

// Store keeps the whole dataset in memory and computes every view on the
// fly. It backs local development and tests where no database is wanted.
type Store struct {
	mu   sync.RWMutex
	recs []core.Registration
}

// Ensure interface conformance
var (
	_ source.DatasetReader = (*Store)(nil)
	_ source.CatalogReader = (*Store)(nil)
	_ source.TrendReader   = (*Store)(nil)
	_ source.GrowthReader  = (*Store)(nil)
	_ source.ShareReader   = (*Store)(nil)
)

func New(recs []core.Registration) *Store {
	return &Store{recs: append([]core.Registration(nil), recs...)}
}

// NewFromDir loads every supported dataset file found directly under base.
// Files are parsed concurrently; a directory with no loadable files yields
// an empty store rather than an error.
func NewFromDir(base string) (*Store, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, err
	}

	s := &Store{}
	var g errgroup.Group
	for _, e := range entries {
		if e.IsDir() || !loadable(e.Name()) {
			continue
		}
		path := filepath.Join(base, e.Name())
		g.Go(func() error {
			recs, err := ingest.LoadFile(path)
			if err != nil {
				return err
			}
			s.mu.Lock()
			s.recs = append(s.recs, recs...)
			s.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	sort.Slice(s.recs, func(i, j int) bool { return s.recs[i].Date.Before(s.recs[j].Date) })
	s.mu.Unlock()
	return s, nil
}

func loadable(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx", ".xlsm":
		return true
	}
	return false
}

// Replace swaps the dataset atomically.
func (s *Store) Replace(recs []core.Registration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append([]core.Registration(nil), recs...)
}

func (s *Store) snapshot() []core.Registration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Registration(nil), s.recs...)
}

func (s *Store) ListRegistrations(_ context.Context, f core.Filter) ([]core.Registration, error) {
	return f.Apply(s.snapshot()), nil
}

func (s *Store) Catalog(_ context.Context) (core.Catalog, error) {
	return core.BuildCatalog(s.snapshot()), nil
}

func (s *Store) Trend(_ context.Context, dim core.Dimension, g core.Granularity, f core.Filter) ([]core.PeriodTotal, error) {
	return core.Aggregate(f.Apply(s.snapshot()), dim, g), nil
}

func (s *Store) GrowthSeries(_ context.Context, dim core.Dimension, g core.Granularity) ([]core.GrowthMetric, error) {
	return core.ComputeGrowth(s.snapshot(), dim, g), nil
}

func (s *Store) MarketShare(_ context.Context, dim core.Dimension, f core.Filter, top int) ([]core.ShareSlice, error) {
	return core.MarketShare(f.Apply(s.snapshot()), dim, top), nil
}
