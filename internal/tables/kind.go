package tables

import "strings"

// Kind is the classification of a source table, decided once from its column names.
type Kind string

const (
	KindRouteChart  Kind = "route_chart"
	KindCircuitData Kind = "circuit_data"
	KindUnified     Kind = "unified"
	KindUnknown     Kind = "unknown"
)

// Column names are matched case-insensitively. The first alias present wins.
var (
	routeIDCols     = []string{"route_id"}
	routeNameCols   = []string{"route_name"}
	routeChainCols  = []string{"route_circuit"}
	circuitCols     = []string{"circuit_name", "circuit", "circuit_id"}
	movementCols    = []string{"movement_id"}
	intervalCols    = []string{"circuit_interval_id", "interval_id"}
	joinKeyCols     = []string{"circuit_interval_id"}
	downStampCols   = []string{"down_timestamp"}
	upStampCols     = []string{"up_timestamp"}
	downDateCols    = []string{"down_date"}
	downClockCols   = []string{"down_time"}
	upDateCols      = []string{"up_date"}
	upClockCols     = []string{"up_time"}
	distanceCols    = []string{"distance"}
	switchIDCols    = []string{"switch_name", "switch_id"}
	switchStateCols = []string{"switch_status", "switch_state"}
)

// Schema is the classification of a table together with the column positions its
// normalization function reads. Missing optional columns are -1.
type Schema struct {
	Kind Kind

	routeID     int
	routeName   int
	routeChain  int
	circuit     int
	movement    int
	interval    int
	joinKey     int
	downStamp   int
	upStamp     int
	downDate    int
	downClock   int
	upDate      int
	upClock     int
	distance    int
	switchID    int
	switchState int
}

// HasMovementIDs reports whether event rows carry their own movement id.
func (s Schema) HasMovementIDs() bool { return s.movement >= 0 }

// JoinsOnInterval reports whether circuit data rows are joined to route chains by
// their circuit interval id rather than the circuit name.
func (s Schema) JoinsOnInterval() bool { return s.joinKey >= 0 && s.joinKey != s.circuit }

// HasDistance reports whether event rows carry a distance value.
func (s Schema) HasDistance() bool { return s.distance >= 0 }

// Classify inspects a header and returns the table's schema. Unknown tables have
// no usable normalization.
func Classify(header []string) Schema {
	lookup := func(aliases []string) int {
		for _, alias := range aliases {
			for i, h := range header {
				if strings.EqualFold(strings.TrimSpace(h), alias) {
					return i
				}
			}
		}
		return -1
	}

	s := Schema{
		routeID:     lookup(routeIDCols),
		routeName:   lookup(routeNameCols),
		routeChain:  lookup(routeChainCols),
		circuit:     lookup(circuitCols),
		movement:    lookup(movementCols),
		interval:    lookup(intervalCols),
		joinKey:     lookup(joinKeyCols),
		downStamp:   lookup(downStampCols),
		upStamp:     lookup(upStampCols),
		downDate:    lookup(downDateCols),
		downClock:   lookup(downClockCols),
		upDate:      lookup(upDateCols),
		upClock:     lookup(upClockCols),
		distance:    lookup(distanceCols),
		switchID:    lookup(switchIDCols),
		switchState: lookup(switchStateCols),
	}

	if s.joinKey < 0 {
		s.joinKey = s.circuit
	}

	combined := s.downStamp >= 0 && s.upStamp >= 0
	split := s.downDate >= 0 && s.downClock >= 0 && s.upDate >= 0 && s.upClock >= 0
	hasTimes := combined || split

	switch {
	case s.routeID >= 0 && s.circuit >= 0 && hasTimes:
		s.Kind = KindUnified
	case s.routeID >= 0 && s.routeChain >= 0:
		s.Kind = KindRouteChart
	case s.circuit >= 0 && hasTimes:
		s.Kind = KindCircuitData
	default:
		s.Kind = KindUnknown
	}
	return s
}

// RouteChartRow is one declared route: an id and its dash-delimited circuit chain.
type RouteChartRow struct {
	RouteID   string
	RouteName string
	Chain     string
}

// EventRow is one occupancy record with its timestamps still in text form. Down and Up
// hold either the combined timestamp field or "<date> <time>" built from the split fields.
// JoinKey is the value matched against route chains: the circuit interval id when the
// table has one, otherwise the circuit name.
type EventRow struct {
	RouteID     string
	CircuitID   string
	JoinKey     string
	MovementID  string
	IntervalID  string
	Down        string
	Up          string
	Distance    string
	SwitchID    string
	SwitchState string
}

// RouteChartRows normalizes a route chart table.
func (s Schema) RouteChartRows(t *Table) []RouteChartRow {
	if s.Kind != KindRouteChart || t == nil {
		return nil
	}
	out := make([]RouteChartRow, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, RouteChartRow{
			RouteID:   cell(row, s.routeID),
			RouteName: cell(row, s.routeName),
			Chain:     cell(row, s.routeChain),
		})
	}
	return out
}

// EventRows normalizes a circuit data or unified table. Circuit data rows have an
// empty RouteID.
func (s Schema) EventRows(t *Table) []EventRow {
	if (s.Kind != KindCircuitData && s.Kind != KindUnified) || t == nil {
		return nil
	}
	combined := s.downStamp >= 0 && s.upStamp >= 0

	out := make([]EventRow, 0, len(t.Rows))
	for _, row := range t.Rows {
		ev := EventRow{
			CircuitID:   cell(row, s.circuit),
			JoinKey:     cell(row, s.joinKey),
			MovementID:  cell(row, s.movement),
			IntervalID:  cell(row, s.interval),
			Distance:    cell(row, s.distance),
			SwitchID:    cell(row, s.switchID),
			SwitchState: cell(row, s.switchState),
		}
		if s.Kind == KindUnified {
			ev.RouteID = cell(row, s.routeID)
		}
		if combined {
			ev.Down = cell(row, s.downStamp)
			ev.Up = cell(row, s.upStamp)
		} else {
			ev.Down = joinDateClock(cell(row, s.downDate), cell(row, s.downClock))
			ev.Up = joinDateClock(cell(row, s.upDate), cell(row, s.upClock))
		}
		out = append(out, ev)
	}
	return out
}

func joinDateClock(date, clock string) string {
	if date == "" || clock == "" {
		return ""
	}
	return date + " " + clock
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
