package render

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/circuitgrid/internal/layout"
	"github.com/chrissnell/circuitgrid/internal/types"
)

var base = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

func ev(route, movement, circuit string, minute int) types.CircuitEvent {
	down := base.Add(time.Duration(minute) * time.Minute)
	return types.CircuitEvent{
		RouteID: route, MovementID: movement, CircuitID: circuit,
		DownTime: down, UpTime: down.Add(time.Minute), DurationSeconds: 60,
	}
}

func plan(seqs map[string][]string, routes ...string) *layout.Plan {
	return layout.NewPlanner(zap.NewNop().Sugar()).Plan(routes, seqs, nil)
}

func countKind(rects []Rect, kind string) int {
	n := 0
	for _, r := range rects {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

func TestRenderFullDetail(t *testing.T) {
	p := plan(map[string][]string{"R1": {"A", "B"}, "R2": {"X"}}, "R1", "R2")
	events := []types.CircuitEvent{
		ev("R1", "1", "A", 0), ev("R1", "1", "B", 1),
		ev("R2", "7", "X", 5), ev("R2", "7", "Q", 6),
	}

	scene := NewRenderer(DefaultOptions(), zap.NewNop().Sugar()).Render(events, p, DetailFull)

	if got := countKind(scene.Rects, RectHighlight); got != 3 {
		t.Errorf("highlights = %d, want 3", got)
	}
	if got := countKind(scene.Rects, RectInterval); got != 3 {
		t.Errorf("intervals = %d, want 3", got)
	}
	if scene.Summary.Unplaced != 1 {
		t.Errorf("unplaced = %d, want 1", scene.Summary.Unplaced)
	}
	if len(scene.Markers) != 3 {
		t.Fatalf("markers = %d, want 3", len(scene.Markers))
	}

	m := scene.Markers[0]
	if !m.X.Equal(base.Add(30*time.Second)) || math.Abs(m.Y-0.35) > 1e-9 {
		t.Errorf("marker at %v/%v, want interval midpoint at lane centre", m.X, m.Y)
	}
	for _, want := range []string{"Movement ID: 1", "Route: R1", "Circuit: A", "Duration: 60.00s"} {
		if !strings.Contains(m.Text, want) {
			t.Errorf("hover text %q missing %q", m.Text, want)
		}
	}

	for _, r := range scene.Rects {
		if r.Kind == RectInterval && (r.BorderWidth != 3 || r.BorderDash != "solid") {
			t.Errorf("full detail interval border = %v %s", r.BorderWidth, r.BorderDash)
		}
		if r.Kind == RectHighlight && math.Abs((r.Y1-r.Y0)-0.9) > 1e-9 {
			t.Errorf("highlight height = %v, want 0.9", r.Y1-r.Y0)
		}
	}

	wantLegend := []LegendEntry{{RouteID: "R1", Color: Palette[0]}, {RouteID: "R2", Color: Palette[1]}}
	if !reflect.DeepEqual(scene.Legend, wantLegend) {
		t.Errorf("legend = %v", scene.Legend)
	}

	var separators, grid int
	for _, l := range scene.Lines {
		switch l.Kind {
		case LineSeparator:
			separators++
			if !l.X0.Equal(base.Add(-30*time.Minute)) || !l.X1.Equal(base.Add(37*time.Minute)) {
				t.Errorf("separator spans %v to %v", l.X0, l.X1)
			}
		case LineGrid:
			grid++
		}
	}
	if separators != 1 {
		t.Errorf("separators = %d, want 1", separators)
	}
	// Total height 8 gives a grid step of 1.
	if grid != 8 {
		t.Errorf("grid lines = %d, want 8", grid)
	}

	if scene.Axes.PlotHeight != 400 {
		t.Errorf("plot height = %d, want 400", scene.Axes.PlotHeight)
	}
	if scene.Axes.YMin != -2 || scene.Axes.YMax != 10 {
		t.Errorf("y range = %v..%v, want -2..10", scene.Axes.YMin, scene.Axes.YMax)
	}
}

func TestRenderLowDetailCollapse(t *testing.T) {
	p := plan(map[string][]string{"R1": {"A", "B", "C"}}, "R1")
	var events []types.CircuitEvent
	circuits := []string{"A", "B", "C"}
	for i := 0; i < 600; i++ {
		events = append(events, ev("R1", "big", circuits[i%3], i))
	}
	events = append(events, ev("R1", "small", "A", 700), ev("R1", "small", "C", 701))

	scene := NewRenderer(DefaultOptions(), zap.NewNop().Sugar()).Render(events, p, DetailLow)

	if got := countKind(scene.Rects, RectHighlight); got != 0 {
		t.Errorf("low detail drew %d highlights", got)
	}
	if got := countKind(scene.Rects, RectCollapsed); got != 1 {
		t.Fatalf("collapsed rects = %d, want 1", got)
	}
	if got := countKind(scene.Rects, RectInterval); got != 2 {
		t.Errorf("intervals = %d, want 2", got)
	}

	var collapsed Rect
	for _, r := range scene.Rects {
		if r.Kind == RectCollapsed {
			collapsed = r
		}
		if r.Kind == RectInterval && r.BorderWidth != 1 {
			t.Errorf("low detail border width = %v, want 1", r.BorderWidth)
		}
	}
	if collapsed.BorderDash != "dot" || collapsed.Y0 != 0 || math.Abs(collapsed.Y1-2.7) > 1e-9 {
		t.Errorf("collapsed rect = %+v", collapsed)
	}
	if !collapsed.X0.Equal(base) || !collapsed.X1.Equal(base.Add(600*time.Minute)) {
		t.Errorf("collapsed rect spans %v to %v", collapsed.X0, collapsed.X1)
	}
	// 600 points at stride 60 plus two markers for the small movement.
	if len(scene.Markers) != 12 {
		t.Errorf("markers = %d, want 12", len(scene.Markers))
	}
	for _, l := range scene.Lines {
		if l.Kind == LineGrid {
			t.Fatalf("low detail drew grid lines")
		}
	}
}

func TestRenderBatches(t *testing.T) {
	p := plan(map[string][]string{"R1": {"A"}}, "R1")
	var events []types.CircuitEvent
	for i := 0; i < 120; i++ {
		events = append(events, ev("R1", fmt.Sprint(i), "A", i))
	}

	scene := NewRenderer(DefaultOptions(), zap.NewNop().Sugar()).Render(events, p, DetailFull)
	if scene.Summary.Batches != 3 || scene.Summary.Movements != 120 {
		t.Errorf("summary = %+v", scene.Summary)
	}

	// Opacity fades within a batch and resets with the next one.
	var intervals []Rect
	for _, r := range scene.Rects {
		if r.Kind == RectInterval {
			intervals = append(intervals, r)
		}
	}
	if intervals[0].Opacity != 1 || intervals[49].Opacity != 0.9 || intervals[50].Opacity != 1 {
		t.Errorf("opacities = %v %v %v", intervals[0].Opacity, intervals[49].Opacity, intervals[50].Opacity)
	}
}

func TestRenderEmpty(t *testing.T) {
	p := plan(nil, "R1")
	scene := NewRenderer(Options{}, zap.NewNop().Sugar()).Render(nil, p, DetailFull)
	if len(scene.Rects) != 0 || !reflect.DeepEqual(scene.Summary.Missing, []string{"R1"}) {
		t.Errorf("empty scene = %+v", scene)
	}
}

func TestLabelIndices(t *testing.T) {
	tests := []struct {
		total, target int
		count         int
	}{
		{total: 0, target: 40, count: 0},
		{total: 1, target: 40, count: 1},
		{total: 40, target: 40, count: 40},
		{total: 100, target: 40, count: 34},
		{total: 1000, target: 40, count: 41},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.total), func(t *testing.T) {
			got := LabelIndices(tt.total, tt.target)
			if len(got) != tt.count {
				t.Errorf("LabelIndices(%d) returned %d labels, want %d", tt.total, len(got), tt.count)
			}
			if tt.total > 0 && (got[0] != 0 || got[len(got)-1] != tt.total-1) {
				t.Errorf("first/last label missing: %v", got)
			}
		})
	}
}

func TestPolicyChoose(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		rows int
		span time.Duration
		want Detail
	}{
		{rows: 100, span: 24 * time.Hour, want: DetailFull},
		{rows: 20001, span: time.Hour, want: DetailLow},
		{rows: 100, span: 95 * time.Hour, want: DetailFull},
		{rows: 100, span: 96 * time.Hour, want: DetailLow},
	}
	for _, tt := range tests {
		if got := p.Choose(tt.rows, tt.span); got != tt.want {
			t.Errorf("Choose(%d, %s) = %s, want %s", tt.rows, tt.span, got, tt.want)
		}
	}
}

func TestHexToRGBA(t *testing.T) {
	if got := HexToRGBA("#ff9500", 0.3); got != "rgba(255, 149, 0, 0.3)" {
		t.Errorf("HexToRGBA = %s", got)
	}
	if got := HexToRGBA("bad", 1); got != "rgba(240, 240, 240, 1)" {
		t.Errorf("HexToRGBA fallback = %s", got)
	}
}
