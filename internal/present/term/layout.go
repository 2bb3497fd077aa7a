// Package term is a terminal front end: an equirectangular map, a top-down
// globe strip and a parameter panel drawn with tcell, driven by keyboard
// and mouse input.
package term

import (
	"math"

	"github.com/signalsfoundry/impact-simulator/model"
)

const (
	panelWidth  = 42
	globeHeight = 11
	minMapWidth = 24
)

// Layout splits the screen into the map, the globe strip under it and the
// panel on the right.
type Layout struct {
	Width, Height int

	MapX, MapY, MapW, MapH int
	GlobeY, GlobeH         int
	PanelX, PanelW         int
}

// NewLayout computes the regions for a w x h screen.
func NewLayout(w, h int) Layout {
	panelW := panelWidth
	if w-panelW < minMapWidth {
		panelW = w / 3
	}
	globeH := globeHeight
	if h < 3*globeH {
		globeH = h / 3
	}
	mapW := w - panelW
	mapH := h - globeH
	if mapW < 1 {
		mapW = 1
	}
	if mapH < 1 {
		mapH = 1
	}
	return Layout{
		Width:  w,
		Height: h,
		MapW:   mapW,
		MapH:   mapH,
		GlobeY: mapH,
		GlobeH: globeH,
		PanelX: mapW,
		PanelW: w - mapW,
	}
}

// InMap reports whether the cell lies on the map.
func (l Layout) InMap(x, y int) bool {
	return x >= l.MapX && x < l.MapX+l.MapW && y >= l.MapY && y < l.MapY+l.MapH
}

// CellToGeo returns the geographic point at the centre of a map cell.
func (l Layout) CellToGeo(x, y int) (model.GeoPoint, bool) {
	if !l.InMap(x, y) {
		return model.GeoPoint{}, false
	}
	lon := -180 + (float64(x-l.MapX)+0.5)/float64(l.MapW)*360
	lat := 90 - (float64(y-l.MapY)+0.5)/float64(l.MapH)*180
	return model.GeoPoint{Lat: lat, Lon: lon}, true
}

// GeoToCell returns the map cell containing p.
func (l Layout) GeoToCell(p model.GeoPoint) (x, y int) {
	col := int(math.Floor((p.Lon + 180) / 360 * float64(l.MapW)))
	row := int(math.Floor((90 - p.Lat) / 180 * float64(l.MapH)))
	return l.MapX + clampInt(col, 0, l.MapW-1), l.MapY + clampInt(row, 0, l.MapH-1)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
