package render

import (
	"fmt"
	"strconv"
	"strings"
)

// Palette is cycled across routes in layout order.
var Palette = []string{
	"#00ffff", "#ff9500", "#00ff66", "#ff3838", "#c56cf0",
	"#ffb142", "#ff6b81", "#7efff5", "#fbff00", "#18dcff",
}

const (
	borderColor    = "#ffffff"
	highlightColor = "rgba(255, 255, 255, 0.3)"
	separatorColor = "rgba(255, 255, 255, 0.6)"
	gridColor      = "rgba(150, 150, 150, 0.2)"
)

// RouteColor returns the palette colour of the i-th route.
func RouteColor(i int) string {
	return Palette[i%len(Palette)]
}

// HexToRGBA converts "#rrggbb" to an rgba() string. Malformed input yields a light grey.
func HexToRGBA(hex string, alpha float64) string {
	h := strings.TrimPrefix(hex, "#")
	if len(h) == 6 {
		if v, err := strconv.ParseUint(h, 16, 32); err == nil {
			return fmt.Sprintf("rgba(%d, %d, %d, %g)", v>>16&0xff, v>>8&0xff, v&0xff, alpha)
		}
	}
	return fmt.Sprintf("rgba(240, 240, 240, %g)", alpha)
}
