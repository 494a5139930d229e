package layout

import (
	"math"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/circuitgrid/internal/types"
)

var base = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

func ev(route, movement, circuit string, minute int) types.CircuitEvent {
	down := base.Add(time.Duration(minute) * time.Minute)
	return types.CircuitEvent{RouteID: route, MovementID: movement, CircuitID: circuit, DownTime: down, UpTime: down.Add(time.Minute)}
}

func TestPlanDeclaredSequences(t *testing.T) {
	p := NewPlanner(zap.NewNop().Sugar())
	plan := p.Plan([]string{"R1", "R2"}, map[string][]string{
		"R1": {"A", "B", "C"},
		"R2": {"C", "D"},
	}, nil)

	wantBands := []RouteBand{
		{RouteID: "R1", StartY: 0, EndY: 2, Circuits: []string{"A", "B", "C"}},
		{RouteID: "R2", StartY: 4, EndY: 5, Circuits: []string{"C", "D"}},
	}
	if !reflect.DeepEqual(plan.Bands, wantBands) {
		t.Errorf("bands = %+v, want %+v", plan.Bands, wantBands)
	}
	if !reflect.DeepEqual(plan.Boundaries, []float64{3.5}) {
		t.Errorf("boundaries = %v, want [3.5]", plan.Boundaries)
	}
	if plan.TotalHeight != 10 {
		t.Errorf("total height = %f, want 10", plan.TotalHeight)
	}
	if !reflect.DeepEqual(plan.TickLabels, []string{"A", "B", "C", "C", "D"}) {
		t.Errorf("tick labels = %v", plan.TickLabels)
	}
	if math.Abs(plan.TickPositions[0]-0.35) > 1e-9 || math.Abs(plan.TickPositions[3]-4.35) > 1e-9 {
		t.Errorf("tick positions = %v", plan.TickPositions)
	}

	// A circuit shared by two routes gets a lane in each band.
	y1, ok1 := plan.Y("R1", "C")
	y2, ok2 := plan.Y("R2", "C")
	if !ok1 || !ok2 || y1 == y2 {
		t.Errorf("shared circuit lanes = %v/%v, %v/%v", y1, ok1, y2, ok2)
	}
	if y1 != 2 || y2 != 4 {
		t.Errorf("shared circuit lanes = %v and %v, want 2 and 4", y1, y2)
	}
}

func TestPlanCollisionFree(t *testing.T) {
	p := NewPlanner(zap.NewNop().Sugar())
	seqs := map[string][]string{
		"R1": {"A"},
		"R2": {"A", "B", "C", "D"},
		"R3": {"X", "Y"},
		"R4": {"B", "B", "E"},
	}
	plan := p.Plan([]string{"R1", "R2", "R3", "R4"}, seqs, nil)

	for i, a := range plan.Bands {
		for j, b := range plan.Bands {
			if i == j {
				continue
			}
			if a.StartY <= b.EndY && b.StartY <= a.EndY {
				t.Errorf("bands %s [%v,%v] and %s [%v,%v] overlap", a.RouteID, a.StartY, a.EndY, b.RouteID, b.StartY, b.EndY)
			}
		}
	}
	if got := plan.Bands[3].Circuits; !reflect.DeepEqual(got, []string{"B", "E"}) {
		t.Errorf("duplicate circuits not collapsed: %v", got)
	}
}

func TestPlanDerivedAndMissing(t *testing.T) {
	events := []types.CircuitEvent{
		ev("R5", "1", "Q", 5), ev("R5", "1", "P", 0),
		ev("R5", "2", "P", 10), ev("R5", "2", "Q", 11), ev("R5", "2", "S", 12),
		ev("R5", "3", "S", 20), ev("R5", "3", "Q", 21), ev("R5", "3", "P", 22),
	}
	p := NewPlanner(zap.NewNop().Sugar())
	plan := p.Plan([]string{"R5", "R6", "R7"}, map[string][]string{"R7": {"Z"}}, events)

	if !reflect.DeepEqual(plan.Missing, []string{"R6"}) {
		t.Errorf("missing = %v, want [R6]", plan.Missing)
	}
	if len(plan.Bands) != 2 {
		t.Fatalf("got %d bands, want 2", len(plan.Bands))
	}
	derived := plan.Bands[0]
	if !derived.Derived || !reflect.DeepEqual(derived.Circuits, []string{"P", "Q", "S"}) {
		t.Errorf("derived band = %+v", derived)
	}
	if plan.Bands[1].StartY != 4 {
		t.Errorf("R7 starts at %v, want 4", plan.Bands[1].StartY)
	}
}

func TestDeriveSequenceTieKeepsFirst(t *testing.T) {
	events := []types.CircuitEvent{
		ev("R1", "b", "X", 0), ev("R1", "b", "Y", 1),
		ev("R1", "a", "Y", 2), ev("R1", "a", "X", 3),
		ev("R2", "c", "Z", 0), ev("R2", "c", "Z", 1), ev("R2", "c", "Z", 2),
	}
	got := DeriveSequence(events, "R1")
	if !reflect.DeepEqual(got, []string{"X", "Y"}) {
		t.Errorf("DeriveSequence = %v, want [X Y]", got)
	}
	if got := DeriveSequence(events, "R9"); got != nil {
		t.Errorf("DeriveSequence for unknown route = %v, want nil", got)
	}
}
