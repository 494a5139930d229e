// Package correlator locates the occupancy events that belong to a route's movements.
// It reads either a unified table that carries route ids itself, or a circuit data
// table joined to the route registry's declared chains.
package correlator

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/chrissnell/circuitgrid/internal/registry"
	"github.com/chrissnell/circuitgrid/internal/tables"
	"github.com/chrissnell/circuitgrid/internal/types"
)

// SyntheticMovementID is assigned to events read from a table without movement ids.
const SyntheticMovementID = "M1"

// Layout is the table combination a result was read from.
type Layout string

const (
	LayoutNone    Layout = ""
	LayoutUnified Layout = "unified"
	LayoutSplit   Layout = "split"
)

// Reason explains an empty result. Empty results are never errors.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonConfigurationAbsent Reason = "configuration_absent"
	ReasonIdentifierNotFound  Reason = "identifier_not_found"
	ReasonEmptyAfterFilter    Reason = "empty_after_filter"
)

// Drops counts records discarded while normalizing.
type Drops struct {
	InvalidTimestamp    int `json:"invalid_timestamp"`
	NonPositiveDuration int `json:"non_positive_duration"`
	OutsideWindow       int `json:"outside_window"`
}

func (d *Drops) add(o Drops) {
	d.InvalidTimestamp += o.InvalidTimestamp
	d.NonPositiveDuration += o.NonPositiveDuration
	d.OutsideWindow += o.OutsideWindow
}

func (d Drops) total() int {
	return d.InvalidTimestamp + d.NonPositiveDuration + d.OutsideWindow
}

// Result is the outcome of one correlation.
type Result struct {
	RouteID       string               `json:"route_id"`
	MatchedRoutes []string             `json:"matched_routes,omitempty"`
	Tier          Tier                 `json:"tier,omitempty"`
	Layout        Layout               `json:"layout,omitempty"`
	Events        []types.CircuitEvent `json:"events"`
	Reason        Reason               `json:"reason,omitempty"`
	Message       string               `json:"message,omitempty"`
	KnownRoutes   []string             `json:"known_routes,omitempty"`
	Dropped       Drops                `json:"dropped"`

	// Sequence is the declared chain of a split layout route expressed as circuit ids.
	// Chains of interval ids are translated through the matching data rows; ids with
	// no data row are kept as declared.
	Sequence []string `json:"sequence,omitempty"`
}

// Empty reports whether the result carries no events.
func (r Result) Empty() bool {
	return len(r.Events) == 0
}

// Correlator resolves route ids to their occupancy events.
type Correlator struct {
	catalog  *tables.Catalog
	registry *registry.Registry
	policy   Policy
	logger   *zap.SugaredLogger
}

// New creates a correlator using the default matching policy.
func New(catalog *tables.Catalog, reg *registry.Registry, logger *zap.SugaredLogger) *Correlator {
	return &Correlator{
		catalog:  catalog,
		registry: reg,
		policy:   DefaultPolicy(),
		logger:   logger,
	}
}

// WithPolicy returns a copy of c that matches route ids with p.
func (c *Correlator) WithPolicy(p Policy) *Correlator {
	cc := *c
	cc.policy = p
	return &cc
}

// Correlate returns the events of routeID inside w, ordered by movement and down time.
// A unified table is preferred over the route chart and circuit data pair.
func (c *Correlator) Correlate(ctx context.Context, routeID string, w types.Window) Result {
	requested := strings.TrimSpace(routeID)
	res := Result{RouteID: requested}

	if unified, ok := c.catalog.Best(ctx, tables.KindUnified); ok {
		res.Layout = LayoutUnified
		c.correlateUnified(ctx, unified, w, &res)
	} else {
		chart, hasChart := c.catalog.Best(ctx, tables.KindRouteChart)
		data, hasData := c.catalog.Best(ctx, tables.KindCircuitData)
		if !hasChart || !hasData {
			_, msg := c.catalog.Requirements(ctx)
			return c.absent(res, msg)
		}
		c.logger.Debugf("using route chart %s with circuit data %s", chart.Ref.Name, data.Ref.Name)
		res.Layout = LayoutSplit
		c.correlateSplit(ctx, data, w, &res)
	}

	if res.Dropped.total() > 0 {
		c.logger.Infow("dropped malformed or out-of-window records",
			"route", requested,
			"invalid_timestamp", res.Dropped.InvalidTimestamp,
			"non_positive_duration", res.Dropped.NonPositiveDuration,
			"outside_window", res.Dropped.OutsideWindow,
		)
	}
	if res.Reason == ReasonNone && res.Empty() {
		res.Reason = ReasonEmptyAfterFilter
		res.Message = fmt.Sprintf("no circuit data for route %q in the selected time range", requested)
	}
	if res.Reason != ReasonNone {
		c.logger.Warnf("no events for route %q: %s", requested, res.Message)
	} else {
		c.logger.Infof("found %d records for route %q (%s match)", len(res.Events), requested, res.Tier)
	}
	return res
}

func (c *Correlator) absent(res Result, msg string) Result {
	res.Reason = ReasonConfigurationAbsent
	res.Message = msg
	c.logger.Errorf("cannot get circuit data: %s", msg)
	return res
}

func (c *Correlator) notFound(res *Result, candidates []string) {
	known := append([]string(nil), candidates...)
	sort.Strings(known)
	res.Reason = ReasonIdentifierNotFound
	res.Message = fmt.Sprintf("route %q not found", res.RouteID)
	res.KnownRoutes = known
}

func (c *Correlator) correlateUnified(ctx context.Context, t tables.Classified, w types.Window, res *Result) {
	table, err := c.catalog.Load(ctx, t)
	if err != nil {
		*res = c.absent(*res, err.Error())
		return
	}
	rows := t.Schema.EventRows(table)

	var candidates []string
	seen := make(map[string]bool)
	for _, r := range rows {
		if r.RouteID != "" && !seen[r.RouteID] {
			seen[r.RouteID] = true
			candidates = append(candidates, r.RouteID)
		}
	}

	matched, tier := c.policy.Resolve(res.RouteID, candidates)
	if len(matched) == 0 {
		c.notFound(res, candidates)
		return
	}
	res.MatchedRoutes, res.Tier = matched, tier

	want := make(map[string]bool, len(matched))
	for _, m := range matched {
		want[m] = true
	}
	selected := rows[:0:0]
	for _, r := range rows {
		if want[r.RouteID] {
			selected = append(selected, r)
		}
	}

	res.Events, res.Dropped = normalize(selected, nil, t.Schema, w)
}

func (c *Correlator) correlateSplit(ctx context.Context, data tables.Classified, w types.Window, res *Result) {
	candidates := c.registry.Routes(ctx)
	matched, tier := c.policy.Resolve(res.RouteID, candidates)
	if len(matched) == 0 {
		c.notFound(res, candidates)
		return
	}
	route := matched[0]
	res.MatchedRoutes, res.Tier = []string{route}, tier

	seq, _ := c.registry.Get(ctx, route)
	chain := make(map[string]int, len(seq.Circuits))
	for i, key := range seq.Circuits {
		if _, dup := chain[key]; !dup {
			chain[key] = i
		}
	}

	table, err := c.catalog.Load(ctx, data)
	if err != nil {
		*res = c.absent(*res, err.Error())
		return
	}

	var selected []tables.EventRow
	circuitOf := make(map[string]string)
	for _, r := range data.Schema.EventRows(table) {
		if _, ok := chain[r.JoinKey]; ok {
			r.RouteID = route
			if r.CircuitID == "" {
				r.CircuitID = r.JoinKey
			}
			selected = append(selected, r)
			if _, seen := circuitOf[r.JoinKey]; !seen {
				circuitOf[r.JoinKey] = r.CircuitID
			}
		}
	}
	res.Sequence = make([]string, 0, len(seq.Circuits))
	for _, key := range seq.Circuits {
		if circuit, ok := circuitOf[key]; ok {
			res.Sequence = append(res.Sequence, circuit)
		} else {
			res.Sequence = append(res.Sequence, key)
		}
	}

	if len(selected) == 0 {
		res.Reason = ReasonEmptyAfterFilter
		res.Message = fmt.Sprintf("no circuit data matches the %d circuits of route %q", len(seq.Circuits), route)
		return
	}
	if data.Schema.JoinsOnInterval() {
		c.logger.Debugf("joined route %q on circuit interval ids", route)
	}

	res.Events, res.Dropped = normalize(selected, chain, data.Schema, w)
}

// normalize parses, validates and orders selected rows. chain, when set, maps join
// keys to their position in the route's declared chain.
func normalize(rows []tables.EventRow, chain map[string]int, schema tables.Schema, w types.Window) ([]types.CircuitEvent, Drops) {
	var drops Drops
	events := make([]types.CircuitEvent, 0, len(rows))

	for _, r := range rows {
		down, err := ParseTimestamp(r.Down)
		if err != nil {
			drops.InvalidTimestamp++
			continue
		}
		up, err := ParseTimestamp(r.Up)
		if err != nil {
			drops.InvalidTimestamp++
			continue
		}

		duration := up.Sub(down).Seconds()
		if duration <= 0 {
			drops.NonPositiveDuration++
			continue
		}
		if !w.Contains(down, up) {
			drops.OutsideWindow++
			continue
		}

		distance := types.DefaultDistance
		if schema.HasDistance() {
			if d, err := strconv.ParseFloat(r.Distance, 64); err == nil {
				distance = d
			}
		}

		movement := r.MovementID
		if !schema.HasMovementIDs() || movement == "" {
			movement = SyntheticMovementID
		}

		chainIndex := -1
		if chain != nil {
			chainIndex = chain[r.JoinKey]
		}

		events = append(events, types.CircuitEvent{
			CircuitID:       r.CircuitID,
			DownTime:        down,
			UpTime:          up,
			MovementID:      movement,
			RouteID:         r.RouteID,
			IntervalID:      r.IntervalID,
			SwitchID:        r.SwitchID,
			SwitchState:     r.SwitchState,
			DurationSeconds: duration,
			Distance:        distance,
			AvgSpeed:        distance / duration * types.SpeedScale,
			ChainIndex:      chainIndex,
		})
	}

	SortEvents(events)
	assignOrder(events)
	return events, drops
}

// SortEvents orders events by movement id, down time, chain position and circuit id.
func SortEvents(events []types.CircuitEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if cmp := types.CompareIDs(a.MovementID, b.MovementID); cmp != 0 {
			return cmp < 0
		}
		if !a.DownTime.Equal(b.DownTime) {
			return a.DownTime.Before(b.DownTime)
		}
		if a.ChainIndex != b.ChainIndex {
			return a.ChainIndex < b.ChainIndex
		}
		return a.CircuitID < b.CircuitID
	})
}

// assignOrder numbers events within each movement. Events must already be sorted.
func assignOrder(events []types.CircuitEvent) {
	for i := range events {
		if i > 0 && events[i].MovementID == events[i-1].MovementID {
			events[i].Order = events[i-1].Order + 1
		} else {
			events[i].Order = 0
		}
	}
}
