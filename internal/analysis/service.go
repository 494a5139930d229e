// Package analysis runs the request-scoped movement pipeline: correlation followed by
// either movement aggregation or sampling, lane layout and timeline rendering.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chrissnell/circuitgrid/internal/correlator"
	"github.com/chrissnell/circuitgrid/internal/layout"
	"github.com/chrissnell/circuitgrid/internal/movement"
	"github.com/chrissnell/circuitgrid/internal/registry"
	"github.com/chrissnell/circuitgrid/internal/render"
	"github.com/chrissnell/circuitgrid/internal/sampling"
	"github.com/chrissnell/circuitgrid/internal/tables"
	"github.com/chrissnell/circuitgrid/internal/types"
)

var (
	ErrNoRoutes  = errors.New("no routes selected")
	ErrBadWindow = errors.New("time window ends before it starts")
	ErrBadDetail = errors.New("unknown detail mode")
)

const correlationWorkers = 4

// NoDataMessage accompanies a timeline with no correlated events.
const NoDataMessage = "No data found for the selected routes and time range."

// Config holds the pipeline thresholds.
type Config struct {
	// SamplingMinRows is the combined row count above which sampling is applied.
	SamplingMinRows int
	ChunkThreshold  time.Duration
	ChunkSize       time.Duration
	SamplerSeed     uint64
	Detail          render.Policy
	Render          render.Options
}

// DefaultConfig returns the standard pipeline thresholds.
func DefaultConfig() Config {
	return Config{
		SamplingMinRows: 5000,
		ChunkThreshold:  correlator.DefaultChunkThreshold,
		ChunkSize:       correlator.DefaultChunkSize,
		Detail:          render.DefaultPolicy(),
		Render:          render.DefaultOptions(),
	}
}

// Service wires the pipeline stages over one table catalog.
type Service struct {
	cfg        Config
	catalog    *tables.Catalog
	registry   *registry.Registry
	correlator *correlator.Correlator
	sampler    *sampling.Sampler
	planner    *layout.Planner
	renderer   *render.Renderer
	logger     *zap.SugaredLogger
}

// New builds a service and its pipeline stages over catalog.
func New(catalog *tables.Catalog, cfg Config, logger *zap.SugaredLogger) *Service {
	reg := registry.New(catalog, logger)
	return &Service{
		cfg:        cfg,
		catalog:    catalog,
		registry:   reg,
		correlator: correlator.New(catalog, reg, logger),
		sampler:    sampling.New(cfg.SamplerSeed, logger),
		planner:    layout.NewPlanner(logger),
		renderer:   render.NewRenderer(cfg.Render, logger),
		logger:     logger,
	}
}

// Registry exposes the route registry backing the service.
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// RouteOutcome reports how one requested route was resolved.
type RouteOutcome struct {
	RequestedID   string            `json:"requested_id"`
	RouteID       string            `json:"route_id"`
	MatchedRoutes []string          `json:"matched_routes,omitempty"`
	Tier          correlator.Tier   `json:"tier,omitempty"`
	Layout        correlator.Layout `json:"layout,omitempty"`
	Events        int               `json:"events"`
	Reason        correlator.Reason `json:"reason,omitempty"`
	Message       string            `json:"message,omitempty"`
	Dropped       correlator.Drops  `json:"dropped"`
}

func outcome(requested string, res correlator.Result) RouteOutcome {
	return RouteOutcome{
		RequestedID:   requested,
		RouteID:       res.RouteID,
		MatchedRoutes: res.MatchedRoutes,
		Tier:          res.Tier,
		Layout:        res.Layout,
		Events:        len(res.Events),
		Reason:        res.Reason,
		Message:       res.Message,
		Dropped:       res.Dropped,
	}
}

// MovementTimesResult holds the aggregated movements of one route.
type MovementTimesResult struct {
	Route       RouteOutcome           `json:"route"`
	Records     []types.MovementRecord `json:"records"`
	KnownRoutes []string               `json:"known_routes,omitempty"`
}

// MovementTimes aggregates the movements of routeID inside w.
func (s *Service) MovementTimes(ctx context.Context, routeID string, w types.Window) (*MovementTimesResult, error) {
	routeID = strings.TrimSpace(routeID)
	if routeID == "" {
		return nil, ErrNoRoutes
	}
	if err := checkWindow(w); err != nil {
		return nil, err
	}

	res := s.correlator.CorrelateChunked(ctx, routeID, w, s.cfg.ChunkThreshold, s.cfg.ChunkSize)
	records := movement.Records(movement.Aggregate(res.Events))
	if records == nil {
		records = []types.MovementRecord{}
	}
	return &MovementTimesResult{
		Route:       outcome(routeID, res),
		Records:     records,
		KnownRoutes: res.KnownRoutes,
	}, nil
}

// TimelineRequest selects the routes and window of a timeline. An empty Detail lets
// the service pick the tier from the data volume.
type TimelineRequest struct {
	Routes []string      `json:"routes"`
	Window types.Window  `json:"window"`
	Detail render.Detail `json:"detail,omitempty"`
}

// Stats summarizes the correlated data before sampling.
type Stats struct {
	DataPoints     int            `json:"data_points"`
	RenderedPoints int            `json:"rendered_points"`
	AvgSpeed       float64        `json:"avg_speed"`
	Movements      int            `json:"movements"`
	MovementCounts map[string]int `json:"movement_counts"`
	Span           float64        `json:"span_hours"`
}

// TimelineResult is the rendered timeline with its pipeline metadata.
type TimelineResult struct {
	Routes  []RouteOutcome `json:"routes"`
	Plan    *layout.Plan   `json:"plan"`
	Scene   *render.Scene  `json:"scene"`
	Stats   Stats          `json:"stats"`
	Detail  render.Detail  `json:"detail"`
	Sampled bool           `json:"sampled"`
	Tier    string         `json:"sampling_tier,omitempty"`
	Chunked bool           `json:"chunked"`
	Message string         `json:"message,omitempty"`
}

// Timeline correlates every requested route, samples large results, lays out lanes and
// renders the scene. Routes keep the caller's order; repeated routes are drawn once.
func (s *Service) Timeline(ctx context.Context, req TimelineRequest) (*TimelineResult, error) {
	requested := cleanRoutes(req.Routes)
	if len(requested) == 0 {
		return nil, ErrNoRoutes
	}
	if err := checkWindow(req.Window); err != nil {
		return nil, err
	}
	if req.Detail != "" && req.Detail != render.DetailFull && req.Detail != render.DetailLow {
		return nil, fmt.Errorf("%w: %q", ErrBadDetail, req.Detail)
	}

	out := &TimelineResult{Chunked: req.Window.Span() > s.cfg.ChunkThreshold}

	var (
		events    []types.CircuitEvent
		laneOrder []string
		seen      = map[string]bool{}
		sequences = map[string][]string{}
	)
	results := s.correlateAll(ctx, requested, req.Window)
	for i, id := range requested {
		res := results[i]
		out.Routes = append(out.Routes, outcome(id, res))

		canonical := res.RouteID
		if len(res.MatchedRoutes) > 0 {
			canonical = res.MatchedRoutes[0]
		}
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		laneOrder = append(laneOrder, canonical)
		events = append(events, res.Events...)

		if len(res.Sequence) > 0 {
			sequences[canonical] = res.Sequence
		} else if seq, ok := s.registry.Get(ctx, canonical); ok && len(seq.Circuits) > 0 {
			sequences[canonical] = seq.Circuits
		}
	}

	span := dataSpan(events)
	out.Stats = Stats{
		DataPoints:     len(events),
		AvgSpeed:       math.Round(movement.MeanSpeed(events)*10) / 10,
		Movements:      countMovements(events),
		MovementCounts: movement.CountByRoute(events),
		Span:           span.Hours(),
	}

	out.Detail = req.Detail
	if out.Detail == "" {
		out.Detail = s.cfg.Detail.Choose(len(events), span)
	}

	drawn := events
	if len(events) > s.cfg.SamplingMinRows {
		tier := sampling.TierFor(span)
		out.Tier = tier.Name
		drawn = s.sampler.Sample(events, span)
		out.Sampled = len(drawn) < len(events)
		s.logger.Infof("sampled %d events to %d using %s tier", len(events), len(drawn), tier.Name)
	}
	out.Stats.RenderedPoints = len(drawn)

	out.Plan = s.planner.Plan(laneOrder, sequences, drawn)
	out.Scene = s.renderer.Render(drawn, out.Plan, out.Detail)

	if len(events) == 0 {
		out.Message = NoDataMessage
	}
	return out, nil
}

// correlateAll correlates routes concurrently. Results keep the order of routes.
func (s *Service) correlateAll(ctx context.Context, routes []string, w types.Window) []correlator.Result {
	results := make([]correlator.Result, len(routes))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(correlationWorkers)
	for i, id := range routes {
		g.Go(func() error {
			results[i] = s.correlator.CorrelateChunked(ctx, id, w, s.cfg.ChunkThreshold, s.cfg.ChunkSize)
			return nil
		})
	}
	g.Wait()
	return results
}

// RouteInfo describes one known route.
type RouteInfo struct {
	RouteID   string   `json:"route_id"`
	RouteName string   `json:"route_name,omitempty"`
	Circuits  []string `json:"circuits,omitempty"`
	// Derived marks a sequence reconstructed from observed movements.
	Derived   bool `json:"derived,omitempty"`
	Movements int  `json:"movements,omitempty"`
	Events    int  `json:"events,omitempty"`
}

// Routes lists the declared routes, or the route ids of the unified table when no
// route chart exists.
func (s *Service) Routes(ctx context.Context) []RouteInfo {
	var out []RouteInfo
	for _, seq := range s.registry.Sequences(ctx) {
		out = append(out, RouteInfo{RouteID: seq.RouteID, RouteName: seq.RouteName, Circuits: seq.Circuits})
	}
	if len(out) > 0 {
		return out
	}

	for _, id := range s.unifiedRouteIDs(ctx) {
		out = append(out, RouteInfo{RouteID: id})
	}
	return out
}

func (s *Service) unifiedRouteIDs(ctx context.Context) []string {
	unified, ok := s.catalog.Best(ctx, tables.KindUnified)
	if !ok {
		return nil
	}
	table, err := s.catalog.Load(ctx, unified)
	if err != nil {
		s.logger.Errorf("error listing unified routes: %v", err)
		return nil
	}
	var ids []string
	seen := map[string]bool{}
	for _, row := range unified.Schema.EventRows(table) {
		if row.RouteID == "" || seen[row.RouteID] {
			continue
		}
		seen[row.RouteID] = true
		ids = append(ids, row.RouteID)
	}
	return ids
}

// RouteDetails resolves routeID with the matching policy and describes it. Routes
// without a declared sequence get one derived from their movements.
func (s *Service) RouteDetails(ctx context.Context, routeID string) (RouteInfo, bool) {
	res := s.correlator.Correlate(ctx, routeID, types.Window{})
	canonical := res.RouteID
	if len(res.MatchedRoutes) > 0 {
		canonical = res.MatchedRoutes[0]
	}

	info := RouteInfo{
		RouteID:   canonical,
		Movements: countMovements(res.Events),
		Events:    len(res.Events),
	}
	if seq, ok := s.registry.Get(ctx, canonical); ok {
		info.RouteName = seq.RouteName
		info.Circuits = seq.Circuits
		return info, true
	}
	if res.Empty() {
		return RouteInfo{}, false
	}
	info.Circuits = layout.DeriveSequence(res.Events, canonical)
	info.Derived = true
	return info, true
}

// TableStatus is one classified source table.
type TableStatus struct {
	Name string      `json:"name"`
	Kind tables.Kind `json:"kind"`
}

// Status reports whether the source can serve requests.
type Status struct {
	Ready   bool          `json:"ready"`
	Message string        `json:"message,omitempty"`
	Routes  int           `json:"routes"`
	Tables  []TableStatus `json:"tables"`
}

// Status inspects the source tables and the registry.
func (s *Service) Status(ctx context.Context) Status {
	ready, msg := s.catalog.Requirements(ctx)
	st := Status{Ready: ready, Message: msg, Tables: []TableStatus{}}

	all, err := s.catalog.Tables(ctx)
	if err != nil {
		s.logger.Errorf("unable to list source tables: %v", err)
	}
	for _, t := range all {
		st.Tables = append(st.Tables, TableStatus{Name: t.Ref.Name, Kind: t.Schema.Kind})
	}
	if ready {
		st.Routes = len(s.Routes(ctx))
	}
	return st
}

// ClearCache drops the registry and the table classifications.
func (s *Service) ClearCache() {
	s.registry.Clear()
}

func checkWindow(w types.Window) error {
	if !w.From.IsZero() && !w.To.IsZero() && w.To.Before(w.From) {
		return ErrBadWindow
	}
	return nil
}

func cleanRoutes(routes []string) []string {
	var out []string
	for _, r := range routes {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// dataSpan runs from the earliest down time to the latest up time.
func dataSpan(events []types.CircuitEvent) time.Duration {
	if len(events) == 0 {
		return 0
	}
	first, last := events[0].DownTime, events[0].UpTime
	for _, e := range events[1:] {
		if e.DownTime.Before(first) {
			first = e.DownTime
		}
		if e.UpTime.After(last) {
			last = e.UpTime
		}
	}
	return last.Sub(first)
}

func countMovements(events []types.CircuitEvent) int {
	seen := map[[2]string]bool{}
	for _, e := range events {
		seen[[2]string{e.RouteID, e.MovementID}] = true
	}
	return len(seen)
}
