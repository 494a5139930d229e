package correlator

import (
	"fmt"
	"strings"
	"time"
)

// Layouts accepted for occupancy timestamps, tried in order. Parsing accepts a
// fractional seconds field after the seconds even where the layout omits it.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-1-2 15:04:05Z07:00",
	"2006-1-2T15:04:05",
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"2006-1-2",
}

// ParseTimestamp parses a timestamp cell. Stamps without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
