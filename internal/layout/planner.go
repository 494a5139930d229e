// Package layout assigns every (route, circuit) pair a fixed lane so that each route
// renders as one contiguous band of lanes.
package layout

import (
	"sort"

	"go.uber.org/zap"

	"github.com/chrissnell/circuitgrid/internal/types"
)

const (
	// LaneHeight is the vertical distance between consecutive lanes of a route.
	LaneHeight = 1.0
	// RouteGap separates the bands of consecutive routes.
	RouteGap = 1.0
	// TopPadding is added above the last band.
	TopPadding = 3.0
	// BarHeight is the drawn height of an interval inside its lane.
	BarHeight = 0.7
)

// Lane is one (route, circuit) row.
type Lane struct {
	RouteID   string  `json:"route_id"`
	CircuitID string  `json:"circuit_id"`
	Y         float64 `json:"y"`
}

// RouteBand is the lane range of one route. EndY is the position of its last lane.
type RouteBand struct {
	RouteID  string   `json:"route_id"`
	StartY   float64  `json:"start_y"`
	EndY     float64  `json:"end_y"`
	Circuits []string `json:"circuits"`
	Derived  bool     `json:"derived"`
}

// Plan is a complete lane assignment with its axis metadata.
type Plan struct {
	Lanes         []Lane      `json:"lanes"`
	Bands         []RouteBand `json:"bands"`
	TickPositions []float64   `json:"tick_positions"`
	TickLabels    []string    `json:"tick_labels"`
	Boundaries    []float64   `json:"boundaries"`
	TotalHeight   float64     `json:"total_height"`
	Missing       []string    `json:"missing,omitempty"`

	index map[[2]string]float64
}

// Y returns the lane position of a circuit within a route.
func (p *Plan) Y(routeID, circuitID string) (float64, bool) {
	y, ok := p.index[[2]string{routeID, circuitID}]
	return y, ok
}

// Planner builds lane plans.
type Planner struct {
	logger *zap.SugaredLogger
}

// NewPlanner creates a planner.
func NewPlanner(logger *zap.SugaredLogger) *Planner {
	return &Planner{logger: logger}
}

// Plan lays out routes in the given order. Each route uses its declared sequence when
// one exists, or else the longest circuit order observed in a single movement. Routes
// with neither are reported in Missing.
func (p *Planner) Plan(routes []string, sequences map[string][]string, events []types.CircuitEvent) *Plan {
	plan := &Plan{index: make(map[[2]string]float64)}
	cursor := 0.0

	for _, route := range routes {
		circuits := dedupe(sequences[route])
		derived := false
		if len(circuits) == 0 {
			circuits = dedupe(DeriveSequence(events, route))
			if len(circuits) == 0 {
				plan.Missing = append(plan.Missing, route)
				p.logger.Warnf("no circuit data available for route %s", route)
				continue
			}
			derived = true
			p.logger.Infof("using %d circuits from data for route %s", len(circuits), route)
		}

		if cursor > 0 {
			plan.Boundaries = append(plan.Boundaries, cursor-RouteGap/2)
		}

		for i, circuit := range circuits {
			y := cursor + float64(i)*LaneHeight
			plan.index[[2]string{route, circuit}] = y
			plan.Lanes = append(plan.Lanes, Lane{RouteID: route, CircuitID: circuit, Y: y})
			plan.TickPositions = append(plan.TickPositions, y+BarHeight/2)
			plan.TickLabels = append(plan.TickLabels, circuit)
		}

		plan.Bands = append(plan.Bands, RouteBand{
			RouteID:  route,
			StartY:   cursor,
			EndY:     cursor + float64(len(circuits)-1)*LaneHeight,
			Circuits: circuits,
			Derived:  derived,
		})
		cursor += float64(len(circuits))*LaneHeight + RouteGap
	}

	plan.TotalHeight = cursor + TopPadding
	return plan
}

// DeriveSequence returns the longest circuit order, by down time, observed in any one
// movement of routeID. A later movement replaces the current one only when strictly
// longer.
func DeriveSequence(events []types.CircuitEvent, routeID string) []string {
	byMovement := make(map[string][]types.CircuitEvent)
	var order []string
	for _, e := range events {
		if e.RouteID != routeID {
			continue
		}
		if _, ok := byMovement[e.MovementID]; !ok {
			order = append(order, e.MovementID)
		}
		byMovement[e.MovementID] = append(byMovement[e.MovementID], e)
	}

	var best []string
	for _, id := range order {
		group := byMovement[id]
		if len(group) <= len(best) {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool { return group[i].DownTime.Before(group[j].DownTime) })
		seq := make([]string, len(group))
		for i, e := range group {
			seq[i] = e.CircuitID
		}
		best = seq
	}
	return best
}

func dedupe(circuits []string) []string {
	seen := make(map[string]bool, len(circuits))
	out := make([]string, 0, len(circuits))
	for _, c := range circuits {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
