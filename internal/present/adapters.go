package present

import (
	"context"

	"github.com/signalsfoundry/impact-simulator/core"
	"github.com/signalsfoundry/impact-simulator/internal/display"
	"github.com/signalsfoundry/impact-simulator/internal/sim/bus"
	"github.com/signalsfoundry/impact-simulator/internal/sim/state"
	"github.com/signalsfoundry/impact-simulator/model"
)

// SceneAdapter forwards frames to a ScenePresenter, issuing crater commands
// only when the crater changes.
type SceneAdapter struct {
	p      ScenePresenter
	crater *bus.CraterVisual
}

// NewSceneAdapter wraps p.
func NewSceneAdapter(p ScenePresenter) *SceneAdapter {
	return &SceneAdapter{p: p}
}

// HandleFrame implements bus.Subscriber.
func (a *SceneAdapter) HandleFrame(_ context.Context, f bus.Frame) {
	a.p.SetImpactor(f.Impactor.Position, f.Impactor.Scale)

	switch {
	case f.Crater == nil:
		if a.crater != nil {
			a.p.DisposeCrater()
			a.crater = nil
		}
	case a.crater == nil || *a.crater != *f.Crater:
		// A crater from a newer impact replaces the old mesh outright.
		if a.crater != nil && a.crater.Generation != f.Crater.Generation {
			a.p.DisposeCrater()
		}
		c := *f.Crater
		a.crater = &c
		a.p.UpsertCrater(c)
	}
}

// MapAdapter forwards frames to a MapPresenter.
type MapAdapter struct {
	p         MapPresenter
	marker    *model.GeoPoint
	shockwave *bus.ShockwaveVisual
}

// NewMapAdapter wraps p.
func NewMapAdapter(p MapPresenter) *MapAdapter {
	return &MapAdapter{p: p}
}

// HandleFrame implements bus.Subscriber.
func (a *MapAdapter) HandleFrame(_ context.Context, f bus.Frame) {
	if f.Marker != nil && (a.marker == nil || *a.marker != *f.Marker) {
		m := *f.Marker
		a.marker = &m
		a.p.PlaceMarker(m)
	}

	switch {
	case f.Shockwave == nil:
		if a.shockwave != nil {
			a.p.RemoveShockwave()
			a.shockwave = nil
		}
	case a.shockwave == nil || *a.shockwave != *f.Shockwave:
		s := *f.Shockwave
		a.shockwave = &s
		a.p.UpsertShockwave(s)
	}
}

// PanelAdapter refreshes a DisplayPanel whenever an impact lands.
type PanelAdapter struct {
	p   DisplayPanel
	cfg core.EstimatorConfig
}

// NewPanelAdapter wraps p.
func NewPanelAdapter(p DisplayPanel, cfg core.EstimatorConfig) *PanelAdapter {
	return &PanelAdapter{p: p, cfg: cfg}
}

// HandleFrame implements bus.Subscriber.
func (a *PanelAdapter) HandleFrame(_ context.Context, f bus.Frame) {
	if f.Landed == nil {
		return
	}
	a.p.ShowSummary(display.Format(f.Landed.Point, f.Landed.Outcome))
}

// Refresh shows the summary for snap, used at startup before any impact.
func (a *PanelAdapter) Refresh(snap state.Snapshot) {
	a.p.ShowSummary(display.Summarize(snap, a.cfg))
}

// Attach subscribes the non-nil presenters to b and returns a function that
// unsubscribes all of them.
func Attach(b *bus.Bus, scene ScenePresenter, m MapPresenter, panel DisplayPanel, cfg core.EstimatorConfig) (detach func()) {
	var unsubs []func()
	if scene != nil {
		unsubs = append(unsubs, b.Subscribe("scene", NewSceneAdapter(scene)))
	}
	if m != nil {
		unsubs = append(unsubs, b.Subscribe("map", NewMapAdapter(m)))
	}
	if panel != nil {
		unsubs = append(unsubs, b.Subscribe("panel", NewPanelAdapter(panel, cfg)))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
