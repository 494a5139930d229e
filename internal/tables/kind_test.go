package tables

import (
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		want   Kind
	}{
		{
			name:   "route chart",
			header: []string{"Route_id", "Route_name", "Route_circuit"},
			want:   KindRouteChart,
		},
		{
			name:   "circuit data with combined stamps",
			header: []string{"Circuit_Name", "Down_timestamp", "Up_timestamp", "Movement_id"},
			want:   KindCircuitData,
		},
		{
			name:   "circuit data with split date and time",
			header: []string{"circuit", "down_date", "down_time", "up_date", "up_time"},
			want:   KindCircuitData,
		},
		{
			name:   "unified",
			header: []string{"route_id", "circuit_id", "down_timestamp", "up_timestamp", "movement_id"},
			want:   KindUnified,
		},
		{
			name:   "split times incomplete",
			header: []string{"circuit", "down_date", "down_time", "up_date"},
			want:   KindUnknown,
		},
		{
			name:   "unrelated",
			header: []string{"station", "temperature"},
			want:   KindUnknown,
		},
		{
			name:   "empty",
			header: nil,
			want:   KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.header).Kind
			if got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.header, got, tt.want)
			}
		})
	}
}

func TestEventRowsSplitFields(t *testing.T) {
	table, err := ReadCSV(Ref{Name: "events.csv"}, strings.NewReader(
		"circuit_name,down_date,down_time,up_date,up_time,movement_id,distance,switch_name,switch_status\n"+
			"TC1, 2024-01-01 ,08:00:00,2024-01-01,08:01:00,M7,250,SW1,N\n"+
			"TC2,2024-01-01,,2024-01-01,08:02:00,M7,,,\n"))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}

	s := Classify(table.Header)
	if s.Kind != KindCircuitData {
		t.Fatalf("kind = %s, want %s", s.Kind, KindCircuitData)
	}
	if !s.HasMovementIDs() || !s.HasDistance() {
		t.Fatalf("expected movement and distance columns to be found")
	}

	rows := s.EventRows(table)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	first := rows[0]
	if first.Down != "2024-01-01 08:00:00" || first.Up != "2024-01-01 08:01:00" {
		t.Errorf("joined stamps = %q/%q", first.Down, first.Up)
	}
	if first.RouteID != "" {
		t.Errorf("circuit data rows must not carry a route id, got %q", first.RouteID)
	}
	if first.Distance != "250" || first.SwitchID != "SW1" || first.SwitchState != "N" {
		t.Errorf("optional fields not carried: %+v", first)
	}
	if rows[1].Down != "" {
		t.Errorf("missing time should produce an empty stamp, got %q", rows[1].Down)
	}
}

func TestRouteChartRowsWrongKind(t *testing.T) {
	s := Classify([]string{"circuit", "down_timestamp", "up_timestamp"})
	if rows := s.RouteChartRows(&Table{Rows: [][]string{{"a", "b", "c"}}}); rows != nil {
		t.Errorf("expected no route chart rows from a circuit data schema, got %v", rows)
	}
}

func TestEventRowsJoinKey(t *testing.T) {
	tests := []struct {
		name       string
		csv        string
		onInterval bool
		wantKey    string
		wantIntvl  string
	}{
		{
			name:       "interval id preferred",
			csv:        "Circuit_Interval_ID,Circuit_Name,down_timestamp,up_timestamp\nT1988,C01TPR,2024-01-01 08:00,2024-01-01 08:01\n",
			onInterval: true,
			wantKey:    "T1988",
			wantIntvl:  "T1988",
		},
		{
			name:      "circuit name otherwise",
			csv:       "circuit_name,interval_id,down_timestamp,up_timestamp\nC01TPR,I9,2024-01-01 08:00,2024-01-01 08:01\n",
			wantKey:   "C01TPR",
			wantIntvl: "I9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ReadCSV(Ref{Name: "events.csv"}, strings.NewReader(tt.csv))
			if err != nil {
				t.Fatalf("ReadCSV: %v", err)
			}
			s := Classify(table.Header)
			if s.JoinsOnInterval() != tt.onInterval {
				t.Errorf("JoinsOnInterval() = %v, want %v", s.JoinsOnInterval(), tt.onInterval)
			}
			rows := s.EventRows(table)
			if len(rows) != 1 {
				t.Fatalf("got %d rows, want 1", len(rows))
			}
			if rows[0].JoinKey != tt.wantKey || rows[0].IntervalID != tt.wantIntvl {
				t.Errorf("join key/interval = %q/%q, want %q/%q", rows[0].JoinKey, rows[0].IntervalID, tt.wantKey, tt.wantIntvl)
			}
			if rows[0].CircuitID != "C01TPR" {
				t.Errorf("circuit = %q, want C01TPR", rows[0].CircuitID)
			}
		})
	}
}
