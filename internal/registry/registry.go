// Package registry holds the route registry: the declared, ordered circuit chain of
// every route, loaded lazily from the newest route chart table and served from memory
// until cleared.
package registry

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/chrissnell/circuitgrid/internal/tables"
	"github.com/chrissnell/circuitgrid/internal/types"
)

// snapshot is never modified after it is published.
type snapshot struct {
	loaded bool
	routes map[string]types.RouteSequence
	order  []string
}

func emptySnapshot() *snapshot {
	return &snapshot{routes: map[string]types.RouteSequence{}}
}

// Registry maps route ids to their declared circuit sequences. Reads are lock-free;
// loads, puts and clears are serialized and publish a whole new snapshot.
type Registry struct {
	catalog *tables.Catalog
	logger  *zap.SugaredLogger

	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

// New creates a registry backed by catalog. A nil catalog yields a registry that only
// holds what is Put into it.
func New(catalog *tables.Catalog, logger *zap.SugaredLogger) *Registry {
	r := &Registry{catalog: catalog, logger: logger}
	r.snap.Store(emptySnapshot())
	return r
}

// Get returns the declared sequence of routeID, matched exactly.
func (r *Registry) Get(ctx context.Context, routeID string) (types.RouteSequence, bool) {
	seq, ok := r.current(ctx).routes[routeID]
	return seq, ok
}

// Routes returns every known route id in the order the route chart lists them.
func (r *Registry) Routes(ctx context.Context) []string {
	s := r.current(ctx)
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Sequences returns every declared sequence in route chart order.
func (r *Registry) Sequences(ctx context.Context) []types.RouteSequence {
	s := r.current(ctx)
	out := make([]types.RouteSequence, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.routes[id])
	}
	return out
}

// Names returns the route name of every route that declares one.
func (r *Registry) Names(ctx context.Context) map[string]string {
	s := r.current(ctx)
	names := make(map[string]string)
	for id, seq := range s.routes {
		if seq.RouteName != "" {
			names[id] = seq.RouteName
		}
	}
	return names
}

// Put adds or replaces one sequence. A registry whose route chart has not loaded yet
// keeps looking for one, and the sequence is kept over the chart's entry once it does.
func (r *Registry) Put(ctx context.Context, seq types.RouteSequence) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.loadLocked(ctx)
	next := &snapshot{
		loaded: cur.loaded,
		routes: make(map[string]types.RouteSequence, len(cur.routes)+1),
		order:  make([]string, 0, len(cur.order)+1),
	}
	for id, s := range cur.routes {
		next.routes[id] = s
	}
	next.order = append(next.order, cur.order...)
	if _, exists := next.routes[seq.RouteID]; !exists {
		next.order = append(next.order, seq.RouteID)
	}
	next.routes[seq.RouteID] = seq
	r.snap.Store(next)
}

// Clear drops every memoized sequence and table classification. The next read
// reloads from the source.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snap.Store(emptySnapshot())
	if r.catalog != nil {
		r.catalog.Purge()
	}
	r.logger.Info("route registry cleared")
}

func (r *Registry) current(ctx context.Context) *snapshot {
	if s := r.snap.Load(); s.loaded {
		return s
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(ctx)
}

// loadLocked returns the published snapshot, loading it first if needed. An empty
// result is published but not marked loaded so the source is consulted again.
// Sequences added with Put before the chart loaded replace the chart's entries.
func (r *Registry) loadLocked(ctx context.Context) *snapshot {
	prev := r.snap.Load()
	if prev.loaded || r.catalog == nil {
		return prev
	}

	chart, ok := r.catalog.Best(ctx, tables.KindRouteChart)
	if !ok {
		r.logger.Warn("no route chart table found")
		return r.snap.Load()
	}

	table, err := r.catalog.Load(ctx, chart)
	if err != nil {
		r.logger.Errorf("error loading route circuits: %v", err)
		return r.snap.Load()
	}

	next := emptySnapshot()
	for _, row := range chart.Schema.RouteChartRows(table) {
		if row.RouteID == "" {
			continue
		}
		if _, dup := next.routes[row.RouteID]; dup {
			continue
		}
		next.routes[row.RouteID] = types.RouteSequence{
			RouteID:   row.RouteID,
			RouteName: row.RouteName,
			Circuits:  ParseChain(row.Chain),
		}
		next.order = append(next.order, row.RouteID)
	}
	next.loaded = len(next.order) > 0
	for _, id := range prev.order {
		if _, exists := next.routes[id]; !exists {
			next.order = append(next.order, id)
		}
		next.routes[id] = prev.routes[id]
	}
	r.snap.Store(next)

	r.logger.Infof("loaded %d route circuit sequences from %s", len(next.order), chart.Ref.Name)
	return next
}

// ParseChain splits a dash-delimited circuit chain, trimming entries and dropping
// empty ones.
func ParseChain(chain string) []string {
	parts := strings.Split(chain, "-")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
