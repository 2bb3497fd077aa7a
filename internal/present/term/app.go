package term

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/signalsfoundry/impact-simulator/core"
	"github.com/signalsfoundry/impact-simulator/internal/logging"
	"github.com/signalsfoundry/impact-simulator/internal/present"
	"github.com/signalsfoundry/impact-simulator/internal/sim/bus"
	"github.com/signalsfoundry/impact-simulator/internal/sim/state"
	"github.com/signalsfoundry/impact-simulator/model"
)

var (
	_ present.InputSurface   = (*App)(nil)
	_ present.ScenePresenter = (*View)(nil)
	_ present.MapPresenter   = (*View)(nil)
	_ present.DisplayPanel   = (*View)(nil)
)

// cursorStepDeg is how far one hjkl press moves the map cursor.
const cursorStepDeg = 5.0

// Picker starts an impact; the animation coordinator satisfies it.
type Picker interface {
	Pick(ctx context.Context, point model.GeoPoint) (state.Impact, error)
}

type slider struct {
	label string
	unit  string
	step  float64
	get   func(model.ImpactParameters) float64
	set   func(*model.ImpactParameters, float64)
	rng   func(model.ParameterRanges) model.Range
}

var sliders = []slider{
	{
		label: "Diameter", unit: "m", step: 50,
		get: func(p model.ImpactParameters) float64 { return p.DiameterM },
		set: func(p *model.ImpactParameters, v float64) { p.DiameterM = v },
		rng: func(r model.ParameterRanges) model.Range { return r.Diameter },
	},
	{
		label: "Velocity", unit: "km/s", step: 1,
		get: func(p model.ImpactParameters) float64 { return p.VelocityKmS },
		set: func(p *model.ImpactParameters, v float64) { p.VelocityKmS = v },
		rng: func(r model.ParameterRanges) model.Range { return r.Velocity },
	},
	{
		label: "Angle", unit: "deg", step: 5,
		get: func(p model.ImpactParameters) float64 { return p.AngleDeg },
		set: func(p *model.ImpactParameters, v float64) { p.AngleDeg = v },
		rng: func(r model.ParameterRanges) model.Range { return r.Angle },
	},
	{
		label: "Density", unit: "kg/m3", step: 100,
		get: func(p model.ImpactParameters) float64 { return p.DensityKgM3 },
		set: func(p *model.ImpactParameters, v float64) { p.DensityKgM3 = v },
		rng: func(r model.ParameterRanges) model.Range { return r.Density },
	},
}

// App is the interactive terminal session: it owns the screen, turns
// keyboard and mouse input into slider changes and picks, and redraws the
// view on a fixed interval.
type App struct {
	screen  tcell.Screen
	view    *View
	session *state.SessionState
	picker  Picker
	ranges  model.ParameterRanges
	sound   Sound
	log     logging.Logger

	mu          sync.Mutex
	selected    int
	cursor      model.GeoPoint
	message     string
	layout      Layout
	prevButtons tcell.ButtonMask
}

// Config configures an App. Sound and Log are optional.
type Config struct {
	Screen  tcell.Screen
	Session *state.SessionState
	Picker  Picker
	Ranges  model.ParameterRanges
	Sound   Sound
	Log     logging.Logger
}

// NewApp builds an App around an initialised screen.
func NewApp(cfg Config) *App {
	if cfg.Sound == nil {
		cfg.Sound = NoSound{}
	}
	if cfg.Log == nil {
		cfg.Log = logging.Noop()
	}
	w, h := cfg.Screen.Size()
	return &App{
		screen:  cfg.Screen,
		view:    NewView(),
		session: cfg.Session,
		picker:  cfg.Picker,
		ranges:  cfg.Ranges,
		sound:   cfg.Sound,
		log:     cfg.Log.With(logging.String("component", "term")),
		layout:  NewLayout(w, h),
	}
}

// View returns the presenter the app draws from.
func (a *App) View() *View { return a.view }

// Parameters implements present.InputSurface.
func (a *App) Parameters() model.ImpactParameters {
	return a.session.Parameters()
}

// Attach subscribes the view to b and plays the impact sound on landing.
// The panel starts with the summary of the current session.
func (a *App) Attach(b *bus.Bus, cfg core.EstimatorConfig) (detach func()) {
	present.NewPanelAdapter(a.view, cfg).Refresh(a.session.Snapshot())
	detachView := present.Attach(b, a.view, a.view, a.view, cfg)
	unsubSound := b.Subscribe("sound", bus.SubscriberFunc(func(_ context.Context, f bus.Frame) {
		if f.Landed != nil {
			a.sound.Impact(f.Landed.Outcome.EnergyMegatons)
		}
	}))
	return func() {
		unsubSound()
		detachView()
	}
}

// Selected is the index of the highlighted slider.
func (a *App) Selected() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selected
}

// Cursor is the map cursor position.
func (a *App) Cursor() model.GeoPoint {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cursor
}

// HandleEvent applies one terminal event and reports whether the app
// should quit.
func (a *App) HandleEvent(ctx context.Context, ev tcell.Event) (quit bool) {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return a.handleKey(ctx, ev.Key(), ev.Rune())
	case *tcell.EventMouse:
		x, y := ev.Position()
		a.handleMouse(ctx, x, y, ev.Buttons())
	case *tcell.EventResize:
		a.screen.Sync()
		w, h := a.screen.Size()
		a.mu.Lock()
		a.layout = NewLayout(w, h)
		a.mu.Unlock()
	}
	return false
}

func (a *App) handleKey(ctx context.Context, key tcell.Key, r rune) (quit bool) {
	switch key {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyUp, tcell.KeyBacktab:
		a.selectSlider(-1)
	case tcell.KeyDown, tcell.KeyTab:
		a.selectSlider(1)
	case tcell.KeyLeft:
		a.adjust(ctx, -1)
	case tcell.KeyRight:
		a.adjust(ctx, 1)
	case tcell.KeyEnter:
		a.pick(ctx, a.Cursor())
	case tcell.KeyRune:
		switch r {
		case 'q':
			return true
		case '-', '_':
			a.adjust(ctx, -1)
		case '+', '=':
			a.adjust(ctx, 1)
		case 'h':
			a.moveCursor(0, -cursorStepDeg)
		case 'l':
			a.moveCursor(0, cursorStepDeg)
		case 'k':
			a.moveCursor(cursorStepDeg, 0)
		case 'j':
			a.moveCursor(-cursorStepDeg, 0)
		case ' ':
			a.pick(ctx, a.Cursor())
		}
	}
	return false
}

// handleMouse picks on the press edge of the primary button so a held
// button does not fire once per motion event.
func (a *App) handleMouse(ctx context.Context, x, y int, buttons tcell.ButtonMask) {
	a.mu.Lock()
	pressed := buttons&tcell.Button1 != 0 && a.prevButtons&tcell.Button1 == 0
	a.prevButtons = buttons
	point, onMap := a.layout.CellToGeo(x, y)
	if pressed && onMap {
		a.cursor = point
	}
	a.mu.Unlock()

	if pressed && onMap {
		a.pick(ctx, point)
	}
}

func (a *App) selectSlider(delta int) {
	a.mu.Lock()
	a.selected = (a.selected + delta + len(sliders)) % len(sliders)
	a.mu.Unlock()
}

func (a *App) adjust(ctx context.Context, dir float64) {
	sl := sliders[a.Selected()]
	params := a.session.Parameters()
	sl.set(&params, sl.rng(a.ranges).Clamp(sl.get(params)+dir*sl.step))
	a.session.SetParameters(params)
	a.log.Debug(ctx, "parameter adjusted",
		logging.String("parameter", sl.label),
		logging.Float("value", sl.get(params)),
	)
}

func (a *App) moveCursor(dLat, dLon float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	lat := a.cursor.Lat + dLat
	if lat > 90 {
		lat = 90
	}
	if lat < -90 {
		lat = -90
	}
	lon := a.cursor.Lon + dLon
	for lon >= 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	a.cursor = model.GeoPoint{Lat: lat, Lon: lon}
}

func (a *App) pick(ctx context.Context, p model.GeoPoint) {
	_, err := a.picker.Pick(ctx, p)

	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case err == nil:
		a.message = ""
	case errors.Is(err, model.ErrInvalidGeoPoint):
		a.message = err.Error()
	default:
		a.message = "pick failed: " + err.Error()
		a.log.Error(ctx, "pick failed", logging.Err(err))
	}
}

// Draw renders the current state and flushes it to the terminal.
func (a *App) Draw() {
	a.mu.Lock()
	st := Status{
		Ranges:   a.ranges,
		Selected: a.selected,
		Cursor:   a.cursor,
		Message:  a.message,
	}
	a.mu.Unlock()

	snap := a.session.Snapshot()
	st.Params = snap.Parameters
	st.Phase = snap.Phase

	l := a.view.Draw(a.screen, st)
	a.mu.Lock()
	a.layout = l
	a.mu.Unlock()
	a.screen.Show()
}

// Run polls terminal events and redraws every interval until the user quits
// or ctx is cancelled.
func (a *App) Run(ctx context.Context, interval time.Duration) {
	a.screen.EnableMouse()
	defer a.screen.DisableMouse()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := a.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	a.Draw()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if a.HandleEvent(ctx, ev) {
				return
			}
		case <-ticker.C:
			a.Draw()
		}
	}
}
