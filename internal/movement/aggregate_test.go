package movement

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/chrissnell/circuitgrid/internal/types"
)

func event(movement, circuit string, down time.Time, seconds float64) types.CircuitEvent {
	return types.CircuitEvent{
		RouteID:         "R1",
		MovementID:      movement,
		CircuitID:       circuit,
		DownTime:        down,
		UpTime:          down.Add(time.Duration(seconds * float64(time.Second))),
		DurationSeconds: seconds,
		AvgSpeed:        types.DefaultDistance / seconds * types.SpeedScale,
	}
}

// threeMovements builds three passages over A, B, C lasting 60s, 45s and 30s each.
func threeMovements(base time.Time) []types.CircuitEvent {
	var events []types.CircuitEvent
	for i, id := range []string{"M3", "M1", "M2"} {
		start := base.Add(time.Duration(2-i) * time.Hour)
		events = append(events,
			event(id, "A", start, 60),
			event(id, "B", start.Add(60*time.Second), 45),
			event(id, "C", start.Add(105*time.Second), 30),
		)
	}
	return events
}

func TestAggregateScenario(t *testing.T) {
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	movements := Aggregate(threeMovements(base))

	if len(movements) != 3 {
		t.Fatalf("got %d movements, want 3", len(movements))
	}
	wantOrder := []string{"M2", "M1", "M3"}
	for i, m := range movements {
		if m.MovementID != wantOrder[i] {
			t.Errorf("movement %d = %s, want %s", i, m.MovementID, wantOrder[i])
		}
		if m.CircuitCount != 3 {
			t.Errorf("%s circuit count = %d, want 3", m.MovementID, m.CircuitCount)
		}
		if math.Abs(m.TotalCircuitSeconds-135) > 1e-9 {
			t.Errorf("%s total circuit seconds = %f, want 135", m.MovementID, m.TotalCircuitSeconds)
		}
		if math.Abs(m.TotalJourneySeconds-135) > 1e-9 {
			t.Errorf("%s total journey seconds = %f, want 135", m.MovementID, m.TotalJourneySeconds)
		}
		if math.Abs(m.AvgCircuitDuration-45) > 1e-9 {
			t.Errorf("%s avg circuit duration = %f, want 45", m.MovementID, m.AvgCircuitDuration)
		}
		if i > 0 && m.StartTime.Before(movements[i-1].StartTime) {
			t.Errorf("movements not ordered by start time")
		}
	}
}

func TestAggregatePartition(t *testing.T) {
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	events := threeMovements(base)
	events = append(events, event("M9", "A", base.Add(5*time.Hour), 12))

	total := 0
	for _, m := range Aggregate(events) {
		total += m.CircuitCount
	}
	if total != len(events) {
		t.Errorf("circuit counts sum to %d, want %d", total, len(events))
	}
}

func TestAggregateEmpty(t *testing.T) {
	if got := Aggregate(nil); len(got) != 0 {
		t.Errorf("Aggregate(nil) = %v, want empty", got)
	}
	if got := MeanSpeed(nil); got != 0 {
		t.Errorf("MeanSpeed(nil) = %f, want 0", got)
	}
}

func TestCountByRoute(t *testing.T) {
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	events := threeMovements(base)
	other := event("M1", "X", base, 10)
	other.RouteID = "R2"
	events = append(events, other)

	counts := CountByRoute(events)
	if counts["R1"] != 3 || counts["R2"] != 1 {
		t.Errorf("CountByRoute = %v", counts)
	}
}

func TestWriteCSV(t *testing.T) {
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	records := Records(Aggregate(threeMovements(base)))

	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4", len(lines))
	}
	want := "R1,M2,2024-01-01 08:00:00,2024-01-01 08:02:15,135.00,2.25,135.00,2.25,3,45.00"
	if lines[1] != want {
		t.Errorf("first record = %q, want %q", lines[1], want)
	}
}
