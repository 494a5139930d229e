// Package sampling reduces large event sets before rendering while keeping the first
// and last occupancies of every circuit in every movement.
package sampling

import (
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/circuitgrid/internal/types"
)

const (
	// BypassSize is the largest group that is always kept whole.
	BypassSize = 20
	// MaxBuckets bounds the number of equal-population time buckets.
	MaxBuckets = 10
)

// Tier is a retention level selected by the time span being rendered. A zero MaxSpan
// matches any span.
type Tier struct {
	Name           string
	MaxSpan        time.Duration
	Rate           float64
	CriticalWindow int
}

// Reduces reports whether the tier drops anything.
func (t Tier) Reduces() bool {
	return t.Rate < 1
}

var Tiers = []Tier{
	{Name: "day", MaxSpan: 24 * time.Hour, Rate: 1},
	{Name: "week", MaxSpan: 168 * time.Hour, Rate: 0.3, CriticalWindow: 3},
	{Name: "month", MaxSpan: 720 * time.Hour, Rate: 0.15, CriticalWindow: 2},
	{Name: "beyond", Rate: 0.05, CriticalWindow: 1},
}

// TierFor returns the tier for a time span.
func TierFor(span time.Duration) Tier {
	for _, t := range Tiers {
		if t.MaxSpan == 0 || span <= t.MaxSpan {
			return t
		}
	}
	return Tiers[len(Tiers)-1]
}

// Sampler applies tiered, stratified sampling. Results are deterministic for a seed.
type Sampler struct {
	seed   uint64
	logger *zap.SugaredLogger
}

// New creates a sampler.
func New(seed uint64, logger *zap.SugaredLogger) *Sampler {
	return &Sampler{seed: seed, logger: logger}
}

// Sample reduces events according to the tier of span and returns a new slice sorted
// by down time. The input is not modified.
func (s *Sampler) Sample(events []types.CircuitEvent, span time.Duration) []types.CircuitEvent {
	tier := TierFor(span)
	if !tier.Reduces() || len(events) == 0 {
		return events
	}

	start := time.Now()
	rng := rand.New(rand.NewPCG(s.seed, s.seed^0x9e3779b97f4a7c15))

	out := make([]types.CircuitEvent, 0, len(events))
	for _, group := range groupIndexes(events) {
		for _, i := range s.sampleGroup(events, group, tier, rng) {
			out = append(out, events[i])
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].DownTime.Before(out[j].DownTime) })

	s.logger.Infof("sampled %d of %d points with %s tier (rate=%.2f) in %s",
		len(out), len(events), tier.Name, tier.Rate, time.Since(start))
	return out
}

// groupIndexes partitions event indexes by (route, movement) in first-seen order.
func groupIndexes(events []types.CircuitEvent) [][]int {
	index := make(map[[2]string]int)
	var groups [][]int
	for i, e := range events {
		key := [2]string{e.RouteID, e.MovementID}
		g, ok := index[key]
		if !ok {
			g = len(groups)
			index[key] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

func (s *Sampler) sampleGroup(events []types.CircuitEvent, group []int, tier Tier, rng *rand.Rand) []int {
	if len(group) <= BypassSize {
		return group
	}

	ordered := append([]int(nil), group...)
	sort.SliceStable(ordered, func(a, b int) bool {
		return events[ordered[a]].DownTime.Before(events[ordered[b]].DownTime)
	})

	critical := criticalPoints(events, ordered, tier.CriticalWindow)
	var remaining []int
	for _, i := range ordered {
		if !critical[i] {
			remaining = append(remaining, i)
		}
	}

	kept := make([]int, 0, len(critical)+int(float64(len(remaining))*tier.Rate)+1)
	for _, i := range ordered {
		if critical[i] {
			kept = append(kept, i)
		}
	}
	if len(remaining) == 0 {
		return kept
	}

	target := int(math.Max(1, math.Round(float64(len(remaining))*tier.Rate)))
	picked, ok := stratified(events, remaining, target, rng)
	if !ok {
		s.logger.Debugf("time bucketing failed for %d points, falling back to uniform sampling", len(remaining))
		picked = uniform(remaining, target, rng)
	}
	return append(kept, picked...)
}

// criticalPoints marks the first and last window events of every circuit. Circuits
// with at most 2*window events are kept entirely. ordered must be sorted by down time.
func criticalPoints(events []types.CircuitEvent, ordered []int, window int) map[int]bool {
	byCircuit := make(map[string][]int)
	var circuits []string
	for _, i := range ordered {
		c := events[i].CircuitID
		if _, ok := byCircuit[c]; !ok {
			circuits = append(circuits, c)
		}
		byCircuit[c] = append(byCircuit[c], i)
	}

	critical := make(map[int]bool)
	for _, c := range circuits {
		idx := byCircuit[c]
		if len(idx) <= 2*window {
			for _, i := range idx {
				critical[i] = true
			}
			continue
		}
		for _, i := range idx[:window] {
			critical[i] = true
		}
		for _, i := range idx[len(idx)-window:] {
			critical[i] = true
		}
	}
	return critical
}

// stratified divides points into equal-population down time buckets and samples each
// in proportion to its size. It fails when the bucket edges are not distinct.
func stratified(events []types.CircuitEvent, points []int, target int, rng *rand.Rand) ([]int, bool) {
	n := len(points)
	buckets := min(MaxBuckets, n)
	if buckets < 2 {
		return nil, false
	}

	x := make([]float64, n)
	for k, i := range points {
		x[k] = float64(events[i].DownTime.UnixNano())
	}
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)

	edges := make([]float64, buckets+1)
	edges[0] = sorted[0]
	edges[buckets] = sorted[n-1]
	for b := 1; b < buckets; b++ {
		edges[b] = stat.Quantile(float64(b)/float64(buckets), stat.Empirical, sorted, nil)
	}
	for b := 1; b <= buckets; b++ {
		if edges[b] <= edges[b-1] {
			return nil, false
		}
	}

	members := make([][]int, buckets)
	for k, i := range points {
		b := sort.SearchFloat64s(edges[1:], x[k])
		if b >= buckets {
			b = buckets - 1
		}
		members[b] = append(members[b], i)
	}

	var picked []int
	for b, quota := range quotas(members, n, target) {
		picked = append(picked, uniform(members[b], quota, rng)...)
	}
	return picked, true
}

// quotas splits target across buckets in proportion to their sizes using the largest
// remainder method, so the quotas sum to exactly target.
func quotas(members [][]int, total, target int) []int {
	out := make([]int, len(members))
	type rem struct {
		bucket int
		frac   float64
	}
	rems := make([]rem, len(members))
	assigned := 0
	for b, m := range members {
		share := float64(len(m)) * float64(target) / float64(total)
		out[b] = int(math.Floor(share))
		assigned += out[b]
		rems[b] = rem{bucket: b, frac: share - float64(out[b])}
	}
	sort.SliceStable(rems, func(i, j int) bool { return rems[i].frac > rems[j].frac })
	for k := 0; assigned < target && k < len(rems); k++ {
		b := rems[k].bucket
		if out[b] < len(members[b]) {
			out[b]++
			assigned++
		}
	}
	return out
}

func uniform(points []int, n int, rng *rand.Rand) []int {
	if n >= len(points) {
		return append([]int(nil), points...)
	}
	perm := rng.Perm(len(points))[:n]
	sort.Ints(perm)
	out := make([]int, n)
	for k, p := range perm {
		out[k] = points[p]
	}
	return out
}
