package optimizer

import (
	"context"
	"log/slog"
	"maps"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Registry maps table names to their statistics. Readers always see a
// complete map: every update swaps in a new copy.
type Registry struct {
	m atomic.Pointer[map[string]*TableStats]
}

func NewRegistry() *Registry {
	r := &Registry{}
	empty := make(map[string]*TableStats)
	r.m.Store(&empty)
	return r
}

func (r *Registry) Get(name string) (*TableStats, bool) {
	s, ok := (*r.m.Load())[name]
	return s, ok
}

func (r *Registry) Set(name string, s *TableStats) {
	for {
		old := r.m.Load()
		next := maps.Clone(*old)
		next[name] = s
		if r.m.CompareAndSwap(old, &next) {
			return
		}
	}
}

// ReplaceAll swaps the whole mapping for a copy of m.
func (r *Registry) ReplaceAll(m map[string]*TableStats) {
	next := make(map[string]*TableStats, len(m))
	maps.Copy(next, m)
	r.m.Store(&next)
}

// Snapshot returns a copy of the current mapping.
func (r *Registry) Snapshot() map[string]*TableStats {
	return maps.Clone(*r.m.Load())
}

// Compute builds statistics for every table of cat, a bounded number of
// tables at a time, and replaces the registry contents only if all of them
// succeed.
func (r *Registry) Compute(ctx context.Context, cat Catalog, ioCostPerPage int, opts ...Option) error {
	o := buildOptions(opts)
	ids := cat.TableIDs()
	slog.Info("optimizer: computing table stats", "tables", len(ids), "parallelism", o.parallelism)

	names := make([]string, len(ids))
	built := make([]*TableStats, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)
	for i, id := range ids {
		g.Go(func() error {
			name, err := cat.TableName(id)
			if err != nil {
				return err
			}
			s, err := NewTableStats(gctx, cat, id, ioCostPerPage, opts...)
			if err != nil {
				return err
			}
			names[i], built[i] = name, s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	next := make(map[string]*TableStats, len(ids))
	for i := range ids {
		next[names[i]] = built[i]
	}
	r.ReplaceAll(next)
	slog.Info("optimizer: table stats done", "tables", len(next))
	return nil
}

var defaultRegistry = NewRegistry()

// DefaultRegistry is the process-wide registry behind the package functions.
func DefaultRegistry() *Registry { return defaultRegistry }

// GetTableStats returns the process-wide statistics of table name, or nil.
func GetTableStats(name string) *TableStats {
	s, _ := defaultRegistry.Get(name)
	return s
}

func SetTableStats(name string, s *TableStats) { defaultRegistry.Set(name, s) }

func SetStatsMap(m map[string]*TableStats) { defaultRegistry.ReplaceAll(m) }

func StatsMap() map[string]*TableStats { return defaultRegistry.Snapshot() }

// ComputeStatistics rebuilds the process-wide registry from every table of
// cat.
func ComputeStatistics(ctx context.Context, cat Catalog, ioCostPerPage int, opts ...Option) error {
	return defaultRegistry.Compute(ctx, cat, ioCostPerPage, opts...)
}
