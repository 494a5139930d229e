package render

import "time"

// Detail is the rendering fidelity tier.
type Detail string

const (
	DetailFull Detail = "full"
	DetailLow  Detail = "low"
)

// Policy holds the volume thresholds callers use to pick a detail tier.
type Policy struct {
	LowDetailRows int
	LowDetailDays int
}

// DefaultPolicy returns the standard thresholds.
func DefaultPolicy() Policy {
	return Policy{LowDetailRows: 20000, LowDetailDays: 3}
}

// Choose selects low detail when there are more than LowDetailRows rows or the span
// covers more than LowDetailDays whole days.
func (p Policy) Choose(rows int, span time.Duration) Detail {
	days := int(span / (24 * time.Hour))
	if rows > p.LowDetailRows || days > p.LowDetailDays {
		return DetailLow
	}
	return DetailFull
}
