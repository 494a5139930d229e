// Package types holds the data model shared by the movement analysis pipeline.
package types

import (
	"strconv"
	"time"
)

// SpeedScale converts distance-units-per-second into the display unit (m/s -> km/h).
const SpeedScale = 3.6

// DefaultDistance is used when a circuit table does not carry a distance column.
const DefaultDistance = 1.0

// CircuitEvent is one occupancy interval reported by a track circuit.
type CircuitEvent struct {
	CircuitID       string    `json:"circuit_id"`
	DownTime        time.Time `json:"down_time"`
	UpTime          time.Time `json:"up_time"`
	MovementID      string    `json:"movement_id"`
	RouteID         string    `json:"route_id"`
	IntervalID      string    `json:"interval_id,omitempty"`
	SwitchID        string    `json:"switch_id,omitempty"`
	SwitchState     string    `json:"switch_state,omitempty"`
	DurationSeconds float64   `json:"duration_seconds"`
	Distance        float64   `json:"distance"`
	AvgSpeed        float64   `json:"avg_speed"`
	// Order is the position of the event within its movement, by down time.
	Order int `json:"order"`
	// ChainIndex is the circuit's position in the declared route chain, or -1 when the
	// event came from a table that carries its own route id.
	ChainIndex int `json:"chain_index"`
}

// Midpoint returns the instant halfway through the occupancy interval.
func (e CircuitEvent) Midpoint() time.Time {
	return e.DownTime.Add(e.UpTime.Sub(e.DownTime) / 2)
}

// RouteSequence is the declared, ordered circuit path of a route.
type RouteSequence struct {
	RouteID   string   `json:"route_id"`
	RouteName string   `json:"route_name,omitempty"`
	Circuits  []string `json:"circuits"`
}

// Movement aggregates every event sharing a movement id.
type Movement struct {
	MovementID          string    `json:"movement_id"`
	RouteID             string    `json:"route_id"`
	StartTime           time.Time `json:"start_time"`
	EndTime             time.Time `json:"end_time"`
	TotalJourneySeconds float64   `json:"total_journey_seconds"`
	TotalCircuitSeconds float64   `json:"total_circuit_seconds"`
	CircuitCount        int       `json:"circuit_count"`
	AvgCircuitDuration  float64   `json:"avg_circuit_duration"`
}

// MovementRecord is the flat export form of a Movement.
type MovementRecord struct {
	RouteID             string    `json:"route_id"`
	MovementID          string    `json:"movement_id"`
	StartTime           time.Time `json:"start_time"`
	EndTime             time.Time `json:"end_time"`
	TotalJourneySeconds float64   `json:"total_journey_seconds"`
	TotalJourneyMinutes float64   `json:"total_journey_minutes"`
	TotalCircuitSeconds float64   `json:"total_circuit_seconds"`
	TotalCircuitMinutes float64   `json:"total_circuit_minutes"`
	CircuitCount        int       `json:"circuit_count"`
	AvgCircuitDuration  float64   `json:"avg_circuit_duration"`
}

// Window is an optional time range. A zero bound is open.
type Window struct {
	From time.Time `json:"from_time"`
	To   time.Time `json:"to_time"`
}

// IsOpen reports whether neither bound is set.
func (w Window) IsOpen() bool {
	return w.From.IsZero() && w.To.IsZero()
}

// Contains reports whether an interval lies fully inside the window on both endpoints.
func (w Window) Contains(down, up time.Time) bool {
	if !w.From.IsZero() && down.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && up.After(w.To) {
		return false
	}
	return true
}

// Span returns the window length, or zero when either bound is open.
func (w Window) Span() time.Duration {
	if w.From.IsZero() || w.To.IsZero() {
		return 0
	}
	return w.To.Sub(w.From)
}

// CompareIDs orders identifiers numerically when both are plain integers and
// lexically otherwise, so movement "2" sorts before movement "10".
func CompareIDs(a, b string) int {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
