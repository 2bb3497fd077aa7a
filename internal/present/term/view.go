package term

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/signalsfoundry/impact-simulator/core"
	"github.com/signalsfoundry/impact-simulator/internal/display"
	"github.com/signalsfoundry/impact-simulator/internal/sim/bus"
	"github.com/signalsfoundry/impact-simulator/model"
)

// ringSegments is the number of bearings sampled when drawing the
// shockwave ring on the map.
const ringSegments = 96

var (
	styleGrid      = tcell.StyleDefault.Foreground(tcell.ColorNavy)
	styleEquator   = tcell.StyleDefault.Foreground(tcell.ColorTeal)
	styleMarker    = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleCursor    = tcell.StyleDefault.Reverse(true)
	styleEarth     = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleOrbit     = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleImpactor  = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleCrater    = tcell.StyleDefault.Foreground(tcell.NewRGBColor(255, 69, 0)).Bold(true)
	styleTitle     = tcell.StyleDefault.Bold(true)
	styleLabel     = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	styleSelected  = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleDim       = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleErrorLine = tcell.StyleDefault.Foreground(tcell.ColorRed)
)

// Status is the per-draw input state shown alongside the presenters' data.
type Status struct {
	Params   model.ImpactParameters
	Ranges   model.ParameterRanges
	Selected int
	Cursor   model.GeoPoint
	Phase    model.AnimationPhase
	Message  string
}

// View is the terminal scene, map and display panel. Presenter calls arrive
// on the ticking goroutine while Draw runs on the UI goroutine.
type View struct {
	mu sync.Mutex

	impactor      core.Vec3
	impactorScale float64
	crater        *bus.CraterVisual
	marker        *model.GeoPoint
	shockwave     *bus.ShockwaveVisual
	summary       display.Summary
}

// NewView returns an empty view with the impactor parked.
func NewView() *View {
	return &View{impactor: core.ParkedPosition, impactorScale: 1}
}

// SetImpactor implements present.ScenePresenter.
func (v *View) SetImpactor(pos core.Vec3, scale float64) {
	v.mu.Lock()
	v.impactor, v.impactorScale = pos, scale
	v.mu.Unlock()
}

// UpsertCrater implements present.ScenePresenter.
func (v *View) UpsertCrater(c bus.CraterVisual) {
	v.mu.Lock()
	v.crater = &c
	v.mu.Unlock()
}

// DisposeCrater implements present.ScenePresenter.
func (v *View) DisposeCrater() {
	v.mu.Lock()
	v.crater = nil
	v.mu.Unlock()
}

// PlaceMarker implements present.MapPresenter.
func (v *View) PlaceMarker(p model.GeoPoint) {
	v.mu.Lock()
	v.marker = &p
	v.mu.Unlock()
}

// UpsertShockwave implements present.MapPresenter.
func (v *View) UpsertShockwave(s bus.ShockwaveVisual) {
	v.mu.Lock()
	v.shockwave = &s
	v.mu.Unlock()
}

// RemoveShockwave implements present.MapPresenter.
func (v *View) RemoveShockwave() {
	v.mu.Lock()
	v.shockwave = nil
	v.mu.Unlock()
}

// ShowSummary implements present.DisplayPanel.
func (v *View) ShowSummary(s display.Summary) {
	v.mu.Lock()
	v.summary = s
	v.mu.Unlock()
}

// Draw paints the whole screen. It does not call Show.
func (v *View) Draw(s tcell.Screen, st Status) Layout {
	w, h := s.Size()
	l := NewLayout(w, h)

	v.mu.Lock()
	defer v.mu.Unlock()

	s.Clear()
	v.drawMap(s, l, st)
	v.drawGlobe(s, l)
	v.drawPanel(s, l, st)
	return l
}

func (v *View) drawMap(s tcell.Screen, l Layout, st Status) {
	halfRow := 90 / float64(l.MapH)
	halfCol := 180 / float64(l.MapW)
	for y := l.MapY; y < l.MapY+l.MapH; y++ {
		for x := l.MapX; x < l.MapX+l.MapW; x++ {
			p, _ := l.CellToGeo(x, y)
			switch {
			case math.Abs(p.Lat) < halfRow:
				s.SetContent(x, y, '-', nil, styleEquator)
			case onGridLine(p.Lat, halfRow) || onGridLine(p.Lon, halfCol):
				s.SetContent(x, y, '.', nil, styleGrid)
			}
		}
	}

	if sw := v.shockwave; sw != nil && sw.RadiusM > 0 {
		style := tcell.StyleDefault.Foreground(shade(sw.Opacity / 0.8))
		radiusKm := sw.RadiusM / 1000
		for i := 0; i < ringSegments; i++ {
			lat, lon := core.DestinationPoint(sw.Center.Lat, sw.Center.Lon, radiusKm, float64(i)*360/ringSegments)
			x, y := l.GeoToCell(model.GeoPoint{Lat: lat, Lon: lon})
			s.SetContent(x, y, 'o', nil, style)
		}
	}

	if v.marker != nil {
		x, y := l.GeoToCell(*v.marker)
		s.SetContent(x, y, 'X', nil, styleMarker)
	}

	cx, cy := l.GeoToCell(st.Cursor)
	r, _, _, _ := s.GetContent(cx, cy)
	if r == 0 {
		r = '+'
	}
	s.SetContent(cx, cy, r, nil, styleCursor)
}

// onGridLine reports whether a cell centred at deg (half a cell wide on
// either side) contains a multiple of 30 degrees.
func onGridLine(deg, halfCell float64) bool {
	nearest := math.Round(deg/30) * 30
	return math.Abs(deg-nearest) < halfCell
}

// shade fades the shockwave colour towards black as f goes from 1 to 0.
func shade(f float64) tcell.Color {
	f = math.Max(0.15, math.Min(f, 1))
	return tcell.NewRGBColor(int32(255*f), int32(69*f), 0)
}

// drawGlobe renders a top-down view of the scene: Earth, the orbit ring,
// the crater and the impactor, projected onto the X/Z plane.
func (v *View) drawGlobe(s tcell.Screen, l Layout) {
	if l.GlobeH < 3 {
		return
	}
	top := l.GlobeY
	drawText(s, l.MapX, top, l.MapW, styleDim, strings.Repeat("-", l.MapW))

	cx := float64(l.MapX) + float64(l.MapW)/2
	cy := float64(top+1) + float64(l.GlobeH-1)/2
	rowsPerUnit := (float64(l.GlobeH-1)/2 - 0.5) / core.OrbitRadiusScene
	colsPerUnit := rowsPerUnit * 2

	project := func(p core.Vec3) (int, int) {
		return int(math.Round(cx + p.X*colsPerUnit)), int(math.Round(cy + p.Z*rowsPerUnit))
	}
	set := func(x, y int, r rune, style tcell.Style) {
		if x >= l.MapX && x < l.MapX+l.MapW && y > top && y < top+l.GlobeH {
			s.SetContent(x, y, r, nil, style)
		}
	}

	for i := 0; i < 64; i++ {
		a := float64(i) * 2 * math.Pi / 64
		x, y := project(core.Vec3{X: math.Cos(a), Z: math.Sin(a)}.Scale(core.OrbitRadiusScene))
		set(x, y, '.', styleOrbit)
	}
	for y := top + 1; y < top+l.GlobeH; y++ {
		for x := l.MapX; x < l.MapX+l.MapW; x++ {
			dx := (float64(x) - cx) / colsPerUnit
			dz := (float64(y) - cy) / rowsPerUnit
			if dx*dx+dz*dz <= core.EarthRadiusScene*core.EarthRadiusScene {
				set(x, y, '#', styleEarth)
			}
		}
	}

	if c := v.crater; c != nil && c.RadiusKm > 0 {
		r := 'o'
		if c.RadiusKm >= c.TargetRadiusKm {
			r = 'O'
		}
		// Craters are far smaller than a cell at this zoom; the disc only
		// spreads when a cell centre falls inside it.
		radius := c.SceneRadius()
		for y := top + 1; y < top+l.GlobeH; y++ {
			for x := l.MapX; x < l.MapX+l.MapW; x++ {
				dx := (float64(x)-cx)/colsPerUnit - c.Position.X
				dz := (float64(y)-cy)/rowsPerUnit - c.Position.Z
				if dx*dx+dz*dz <= radius*radius {
					set(x, y, r, styleCrater)
				}
			}
		}
		x, y := project(c.Position)
		set(x, y, r, styleCrater)
	}

	x, y := project(v.impactor)
	r := '*'
	if v.impactorScale >= 2 {
		r = '@'
	}
	set(x, y, r, styleImpactor)
}

func (v *View) drawPanel(s tcell.Screen, l Layout, st Status) {
	x := l.PanelX + 1
	w := l.PanelW - 2
	if w <= 0 {
		return
	}
	for y := 0; y < l.Height; y++ {
		s.SetContent(l.PanelX, y, '|', nil, styleDim)
	}

	y := 0
	line := func(style tcell.Style, text string) {
		if y < l.Height {
			drawText(s, x, y, w, style, text)
		}
		y++
	}

	line(styleTitle, "ASTEROID IMPACT SIMULATOR")
	y++
	for i, sl := range sliders {
		style := styleLabel
		prefix := "  "
		if i == st.Selected {
			style = styleSelected
			prefix = "> "
		}
		r := sl.rng(st.Ranges)
		val := sl.get(st.Params)
		line(style, fmt.Sprintf("%s%-9s %7s %-6s %s", prefix, sl.label, trimFloat(val), sl.unit, bar(val, r, 10)))
	}
	y++
	line(styleLabel, "Phase:  "+st.Phase.String())
	line(styleLabel, fmt.Sprintf("Cursor: %.3f, %.3f", st.Cursor.Lat, st.Cursor.Lon))
	y++

	for _, ln := range v.summary.Lines() {
		if ln.Value == "" {
			continue
		}
		line(styleTitle, ln.Label+":")
		line(tcell.StyleDefault, "  "+ln.Value)
	}
	if v.summary.Disclaimer != "" {
		y++
		for _, wrapped := range wrap(v.summary.Disclaimer, w) {
			line(styleDim, wrapped)
		}
	}

	y++
	if st.Message != "" {
		for _, wrapped := range wrap(st.Message, w) {
			line(styleErrorLine, wrapped)
		}
	}
	for _, help := range []string{
		"up/down select  left/right adjust",
		"hjkl move cursor  enter impact",
		"click map to impact  q quit",
	} {
		line(styleDim, help)
	}
}

func bar(v float64, r model.Range, width int) string {
	filled := 0
	if r.Max > r.Min {
		filled = int(math.Round((v - r.Min) / (r.Max - r.Min) * float64(width)))
	}
	filled = clampInt(filled, 0, width)
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

func trimFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

func drawText(s tcell.Screen, x, y, maxW int, style tcell.Style, text string) {
	col := 0
	for _, r := range text {
		if col >= maxW {
			return
		}
		s.SetContent(x+col, y, r, nil, style)
		col++
	}
}

func wrap(text string, width int) []string {
	if width <= 0 {
		return nil
	}
	var lines []string
	var cur strings.Builder
	for _, word := range strings.Fields(text) {
		if cur.Len() > 0 && cur.Len()+1+len(word) > width {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}
