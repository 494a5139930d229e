// Package render turns correlated events and a lane plan into timeline drawing
// primitives: interval rectangles, hover markers, separator lines, lane labels and a
// route legend.
package render

import (
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/circuitgrid/internal/layout"
	"github.com/chrissnell/circuitgrid/internal/types"
)

const (
	highlightPad    = 0.1
	separatorMargin = 30 * time.Minute
	xPadFraction    = 0.05
	pixelsPerUnit   = 40
	minPlotHeight   = 400
	maxPlotHeight   = 1000
	gridLinesTarget = 40
	collapseMarkers = 10
)

// Rect kinds.
const (
	RectHighlight = "highlight"
	RectInterval  = "interval"
	RectCollapsed = "collapsed"
)

// Line kinds.
const (
	LineSeparator = "separator"
	LineGrid      = "grid"
)

type Rect struct {
	Kind        string    `json:"kind"`
	RouteID     string    `json:"route_id"`
	MovementID  string    `json:"movement_id"`
	CircuitID   string    `json:"circuit_id,omitempty"`
	X0          time.Time `json:"x0"`
	X1          time.Time `json:"x1"`
	Y0          float64   `json:"y0"`
	Y1          float64   `json:"y1"`
	Fill        string    `json:"fill"`
	Opacity     float64   `json:"opacity"`
	BorderColor string    `json:"border_color,omitempty"`
	BorderWidth float64   `json:"border_width"`
	BorderDash  string    `json:"border_dash,omitempty"`
	Layer       string    `json:"layer"`
}

// Marker is an invisible point carrying hover text.
type Marker struct {
	RouteID    string    `json:"route_id"`
	MovementID string    `json:"movement_id"`
	X          time.Time `json:"x"`
	Y          float64   `json:"y"`
	Text       string    `json:"text"`
}

type Line struct {
	Kind  string    `json:"kind"`
	X0    time.Time `json:"x0"`
	X1    time.Time `json:"x1"`
	Y     float64   `json:"y"`
	Color string    `json:"color"`
	Width float64   `json:"width"`
	Dash  string    `json:"dash"`
}

type Label struct {
	Y    float64 `json:"y"`
	Text string  `json:"text"`
}

type LegendEntry struct {
	RouteID string `json:"route_id"`
	Color   string `json:"color"`
}

type Axes struct {
	XMin          time.Time `json:"x_min"`
	XMax          time.Time `json:"x_max"`
	YMin          float64   `json:"y_min"`
	YMax          float64   `json:"y_max"`
	PlotHeight    int       `json:"plot_height"`
	TickPositions []float64 `json:"tick_positions"`
	TickLabels    []string  `json:"tick_labels"`
}

type Summary struct {
	Points    int      `json:"points"`
	Routes    int      `json:"routes"`
	Movements int      `json:"movements"`
	Batches   int      `json:"batches"`
	LowDetail bool     `json:"low_detail"`
	Unplaced  int      `json:"unplaced"`
	Missing   []string `json:"missing,omitempty"`
}

// Scene is the full set of drawing primitives for one timeline.
type Scene struct {
	Rects   []Rect        `json:"rects"`
	Markers []Marker      `json:"markers"`
	Lines   []Line        `json:"lines"`
	Labels  []Label       `json:"labels"`
	Legend  []LegendEntry `json:"legend"`
	Axes    Axes          `json:"axes"`
	Summary Summary       `json:"summary"`
}

// Options tune the renderer.
type Options struct {
	BatchSize         int
	CollapseThreshold int
	LabelTarget       int
	// GridMaxRows suppresses grid lines above this many events.
	GridMaxRows int
}

// DefaultOptions returns the standard renderer options.
func DefaultOptions() Options {
	return Options{BatchSize: 50, CollapseThreshold: 500, LabelTarget: 40, GridMaxRows: 50000}
}

// Renderer builds scenes.
type Renderer struct {
	opts   Options
	logger *zap.SugaredLogger
}

// NewRenderer creates a renderer. Zero options fall back to the defaults.
func NewRenderer(opts Options, logger *zap.SugaredLogger) *Renderer {
	d := DefaultOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = d.BatchSize
	}
	if opts.CollapseThreshold <= 0 {
		opts.CollapseThreshold = d.CollapseThreshold
	}
	if opts.LabelTarget <= 0 {
		opts.LabelTarget = d.LabelTarget
	}
	if opts.GridMaxRows <= 0 {
		opts.GridMaxRows = d.GridMaxRows
	}
	return &Renderer{opts: opts, logger: logger}
}

type movementKey struct {
	route, movement string
}

// Render draws events on plan. Events whose (route, circuit) has no lane are counted
// as unplaced and skipped. Grid lines are drawn only in full detail and up to
// GridMaxRows events.
func (r *Renderer) Render(events []types.CircuitEvent, plan *layout.Plan, detail Detail) *Scene {
	scene := &Scene{
		Summary: Summary{Points: len(events), LowDetail: detail == DetailLow, Missing: plan.Missing},
	}
	if len(events) == 0 {
		return scene
	}

	colors := r.routeColors(plan, events, scene)
	keys, groups := groupMovements(events)
	scene.Summary.Movements = len(keys)

	for start := 0; start < len(keys); start += r.opts.BatchSize {
		end := min(start+r.opts.BatchSize, len(keys))
		began := time.Now()
		before := len(scene.Rects)
		for i, key := range keys[start:end] {
			r.drawMovement(scene, plan, key, groups[key], colors[key.route], i, detail)
		}
		scene.Summary.Batches++
		r.logger.Debugf("processed movement batch %d-%d of %d in %s with %d shapes",
			start, end, len(keys), time.Since(began), len(scene.Rects)-before)
	}

	minTime, maxTime := timeRange(events)
	r.drawLines(scene, plan, minTime, maxTime, detail == DetailFull && len(events) <= r.opts.GridMaxRows)

	for _, i := range LabelIndices(len(plan.TickPositions), r.opts.LabelTarget) {
		scene.Labels = append(scene.Labels, Label{Y: plan.TickPositions[i], Text: plan.TickLabels[i]})
	}

	scene.Axes = axes(plan, minTime, maxTime)
	r.logger.Infof("rendered %d shapes for %d movements (%s detail, %d unplaced)",
		len(scene.Rects), len(keys), detail, scene.Summary.Unplaced)
	return scene
}

// routeColors assigns palette colours to routes in band order, followed by any event
// routes the plan does not contain.
func (r *Renderer) routeColors(plan *layout.Plan, events []types.CircuitEvent, scene *Scene) map[string]string {
	colors := make(map[string]string)
	add := func(route string) {
		if _, ok := colors[route]; ok {
			return
		}
		c := RouteColor(len(colors))
		colors[route] = c
		scene.Legend = append(scene.Legend, LegendEntry{RouteID: route, Color: c})
	}
	for _, b := range plan.Bands {
		add(b.RouteID)
	}
	for _, e := range events {
		add(e.RouteID)
	}
	scene.Summary.Routes = len(colors)
	return colors
}

func groupMovements(events []types.CircuitEvent) ([]movementKey, map[movementKey][]types.CircuitEvent) {
	groups := make(map[movementKey][]types.CircuitEvent)
	var keys []movementKey
	for _, e := range events {
		k := movementKey{e.RouteID, e.MovementID}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], e)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].route != keys[j].route {
			return keys[i].route < keys[j].route
		}
		return types.CompareIDs(keys[i].movement, keys[j].movement) < 0
	})
	for _, k := range keys {
		g := groups[k]
		sort.SliceStable(g, func(i, j int) bool { return g[i].DownTime.Before(g[j].DownTime) })
	}
	return keys, groups
}

// drawMovement draws one movement. pos is its index within the current batch.
func (r *Renderer) drawMovement(scene *Scene, plan *layout.Plan, key movementKey, group []types.CircuitEvent, color string, pos int, detail Detail) {
	opacityBase, borderWidth := 1.0, 3.0
	if detail == DetailLow {
		opacityBase, borderWidth = 0.95, 1.0
	}
	opacity := math.Max(0.9, opacityBase-float64(pos)*0.01)

	if detail == DetailLow && len(group) > r.opts.CollapseThreshold {
		r.collapseMovement(scene, plan, key, group, color, borderWidth)
		return
	}

	for _, e := range group {
		y, ok := plan.Y(e.RouteID, e.CircuitID)
		if !ok {
			scene.Summary.Unplaced++
			continue
		}
		if detail == DetailFull {
			scene.Rects = append(scene.Rects, Rect{
				Kind:       RectHighlight,
				RouteID:    e.RouteID,
				MovementID: e.MovementID,
				CircuitID:  e.CircuitID,
				X0:         e.DownTime,
				X1:         e.UpTime,
				Y0:         y - highlightPad,
				Y1:         y + layout.BarHeight + highlightPad,
				Fill:       highlightColor,
				Opacity:    0.9,
				Layer:      "below",
			})
		}
		scene.Rects = append(scene.Rects, Rect{
			Kind:        RectInterval,
			RouteID:     e.RouteID,
			MovementID:  e.MovementID,
			CircuitID:   e.CircuitID,
			X0:          e.DownTime,
			X1:          e.UpTime,
			Y0:          y,
			Y1:          y + layout.BarHeight,
			Fill:        color,
			Opacity:     opacity,
			BorderColor: borderColor,
			BorderWidth: borderWidth,
			BorderDash:  "solid",
			Layer:       "above",
		})
		scene.Markers = append(scene.Markers, marker(e, y))
	}
}

// collapseMovement replaces a large movement with one bounding rectangle and a handful
// of hover markers.
func (r *Renderer) collapseMovement(scene *Scene, plan *layout.Plan, key movementKey, group []types.CircuitEvent, color string, borderWidth float64) {
	r.logger.Debugf("collapsing movement %s of route %s with %d points", key.movement, key.route, len(group))

	var placed []types.CircuitEvent
	var ys []float64
	for _, e := range group {
		if y, ok := plan.Y(e.RouteID, e.CircuitID); ok {
			placed = append(placed, e)
			ys = append(ys, y)
		} else {
			scene.Summary.Unplaced++
		}
	}
	if len(placed) == 0 {
		return
	}

	start, end := timeRange(placed)
	firstY, lastY := ys[0], ys[len(ys)-1]
	scene.Rects = append(scene.Rects, Rect{
		Kind:        RectCollapsed,
		RouteID:     key.route,
		MovementID:  key.movement,
		X0:          start,
		X1:          end,
		Y0:          math.Min(firstY, lastY),
		Y1:          math.Max(firstY, lastY) + layout.BarHeight,
		Fill:        HexToRGBA(color, 0.3),
		Opacity:     0.7,
		BorderColor: borderColor,
		BorderWidth: borderWidth,
		BorderDash:  "dot",
		Layer:       "above",
	})

	stride := max(1, len(placed)/collapseMarkers)
	for i := 0; i < len(placed); i += stride {
		scene.Markers = append(scene.Markers, marker(placed[i], ys[i]))
	}
}

func marker(e types.CircuitEvent, y float64) Marker {
	return Marker{
		RouteID:    e.RouteID,
		MovementID: e.MovementID,
		X:          e.Midpoint(),
		Y:          y + layout.BarHeight/2,
		Text:       HoverText(e),
	}
}

// HoverText describes one event.
func HoverText(e types.CircuitEvent) string {
	const stamp = "2006-01-02 15:04:05"
	return fmt.Sprintf("Movement ID: %s\nRoute: %s\nCircuit: %s\nDown: %s\nUp: %s\nDuration: %.2fs",
		e.MovementID, e.RouteID, e.CircuitID, e.DownTime.Format(stamp), e.UpTime.Format(stamp), e.DurationSeconds)
}

func (r *Renderer) drawLines(scene *Scene, plan *layout.Plan, minTime, maxTime time.Time, grid bool) {
	x0, x1 := minTime.Add(-separatorMargin), maxTime.Add(separatorMargin)
	for _, y := range plan.Boundaries {
		scene.Lines = append(scene.Lines, Line{Kind: LineSeparator, X0: x0, X1: x1, Y: y, Color: separatorColor, Width: 2, Dash: "dash"})
	}
	if !grid {
		return
	}
	step := max(1, int(plan.TotalHeight/gridLinesTarget))
	for y := 0; y < int(plan.TotalHeight); y += step {
		scene.Lines = append(scene.Lines, Line{Kind: LineGrid, X0: x0, X1: x1, Y: float64(y), Color: gridColor, Width: 1, Dash: "dot"})
	}
}

func timeRange(events []types.CircuitEvent) (time.Time, time.Time) {
	lo, hi := events[0].DownTime, events[0].UpTime
	for _, e := range events[1:] {
		if e.DownTime.Before(lo) {
			lo = e.DownTime
		}
		if e.UpTime.After(hi) {
			hi = e.UpTime
		}
	}
	return lo, hi
}

func axes(plan *layout.Plan, minTime, maxTime time.Time) Axes {
	pad := time.Duration(float64(maxTime.Sub(minTime)) * xPadFraction)
	yPad := math.Max(2, plan.TotalHeight*0.05)
	height := int(math.Max(minPlotHeight, math.Min(maxPlotHeight, plan.TotalHeight*pixelsPerUnit)))
	return Axes{
		XMin:          minTime.Add(-pad),
		XMax:          maxTime.Add(pad),
		YMin:          -yPad,
		YMax:          plan.TotalHeight + yPad,
		PlotHeight:    height,
		TickPositions: plan.TickPositions,
		TickLabels:    plan.TickLabels,
	}
}
