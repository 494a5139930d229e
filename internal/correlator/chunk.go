package correlator

import (
	"context"
	"time"

	"github.com/chrissnell/circuitgrid/internal/types"
)

const (
	DefaultChunkThreshold = 7 * 24 * time.Hour
	DefaultChunkSize      = 3 * 24 * time.Hour
)

// Chunks splits a closed window into consecutive sub-windows of at most size. Open
// windows and non-positive sizes yield the window unchanged.
func Chunks(w types.Window, size time.Duration) []types.Window {
	if w.Span() <= 0 || size <= 0 {
		return []types.Window{w}
	}
	var out []types.Window
	for start := w.From; start.Before(w.To); {
		end := start.Add(size)
		if end.After(w.To) {
			end = w.To
		}
		out = append(out, types.Window{From: start, To: end})
		start = end
	}
	return out
}

// CorrelateChunked correlates w one sub-window at a time when it spans more than
// threshold, concatenating the chunk results. Events that straddle a chunk boundary
// fall outside every chunk and are dropped.
func (c *Correlator) CorrelateChunked(ctx context.Context, routeID string, w types.Window, threshold, size time.Duration) Result {
	if w.Span() <= threshold {
		return c.Correlate(ctx, routeID, w)
	}

	chunks := Chunks(w, size)
	c.logger.Infof("using chunked processing for %.1f day span in %d chunks", w.Span().Hours()/24, len(chunks))

	var merged Result
	for i, chunk := range chunks {
		c.logger.Debugf("processing chunk %s to %s", chunk.From, chunk.To)
		res := c.Correlate(ctx, routeID, chunk)
		if i == 0 {
			merged = res
			merged.Events = nil
			merged.Dropped = Drops{}
		}
		if res.Reason == ReasonConfigurationAbsent || res.Reason == ReasonIdentifierNotFound {
			return res
		}
		merged.Events = append(merged.Events, res.Events...)
		merged.Dropped.add(res.Dropped)
	}

	if merged.Empty() {
		merged.Reason = ReasonEmptyAfterFilter
		merged.Message = "no circuit data for route in the selected time range"
	} else {
		merged.Reason, merged.Message = ReasonNone, ""
		SortEvents(merged.Events)
		assignOrder(merged.Events)
	}
	return merged
}
