// Package movement groups correlated occupancy events into movements and computes
// their timing statistics.
package movement

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/chrissnell/circuitgrid/internal/types"
)

// Aggregate groups events by movement id. Movements are returned ordered by start time,
// ties by movement id.
func Aggregate(events []types.CircuitEvent) []types.Movement {
	if len(events) == 0 {
		return nil
	}

	index := make(map[string]int)
	var groups [][]types.CircuitEvent
	for _, e := range events {
		i, ok := index[e.MovementID]
		if !ok {
			i = len(groups)
			index[e.MovementID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], e)
	}

	movements := make([]types.Movement, 0, len(groups))
	for _, g := range groups {
		movements = append(movements, summarize(g))
	}

	sort.SliceStable(movements, func(i, j int) bool {
		a, b := movements[i], movements[j]
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		return types.CompareIDs(a.MovementID, b.MovementID) < 0
	})
	return movements
}

func summarize(group []types.CircuitEvent) types.Movement {
	m := types.Movement{
		MovementID:   group[0].MovementID,
		RouteID:      group[0].RouteID,
		StartTime:    group[0].DownTime,
		EndTime:      group[0].UpTime,
		CircuitCount: len(group),
	}

	durations := make([]float64, len(group))
	for i, e := range group {
		durations[i] = e.DurationSeconds
		if e.DownTime.Before(m.StartTime) {
			m.StartTime = e.DownTime
		}
		if e.UpTime.After(m.EndTime) {
			m.EndTime = e.UpTime
		}
	}

	m.TotalJourneySeconds = m.EndTime.Sub(m.StartTime).Seconds()
	m.TotalCircuitSeconds = floats.Sum(durations)
	if m.CircuitCount > 0 {
		m.AvgCircuitDuration = m.TotalCircuitSeconds / float64(m.CircuitCount)
	}
	return m
}

// Records converts movements into their flat export form.
func Records(movements []types.Movement) []types.MovementRecord {
	out := make([]types.MovementRecord, 0, len(movements))
	for _, m := range movements {
		out = append(out, types.MovementRecord{
			RouteID:             m.RouteID,
			MovementID:          m.MovementID,
			StartTime:           m.StartTime,
			EndTime:             m.EndTime,
			TotalJourneySeconds: m.TotalJourneySeconds,
			TotalJourneyMinutes: m.TotalJourneySeconds / 60,
			TotalCircuitSeconds: m.TotalCircuitSeconds,
			TotalCircuitMinutes: m.TotalCircuitSeconds / 60,
			CircuitCount:        m.CircuitCount,
			AvgCircuitDuration:  m.AvgCircuitDuration,
		})
	}
	return out
}

// MeanSpeed returns the mean avg_speed across events, or zero when there are none.
func MeanSpeed(events []types.CircuitEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	speeds := make([]float64, len(events))
	for i, e := range events {
		speeds[i] = e.AvgSpeed
	}
	return floats.Sum(speeds) / float64(len(speeds))
}

// CountByRoute returns the number of distinct movements per route.
func CountByRoute(events []types.CircuitEvent) map[string]int {
	seen := make(map[[2]string]bool)
	counts := make(map[string]int)
	for _, e := range events {
		key := [2]string{e.RouteID, e.MovementID}
		if !seen[key] {
			seen[key] = true
			counts[e.RouteID]++
		}
	}
	return counts
}
