// Package present defines the rendering boundaries of the simulator and the
// adapters that turn bus frames into presenter commands.
package present

import (
	"github.com/signalsfoundry/impact-simulator/core"
	"github.com/signalsfoundry/impact-simulator/internal/display"
	"github.com/signalsfoundry/impact-simulator/internal/sim/bus"
	"github.com/signalsfoundry/impact-simulator/model"
)

// ScenePresenter renders the 3D globe, the impactor and the crater.
type ScenePresenter interface {
	SetImpactor(pos core.Vec3, scale float64)
	UpsertCrater(c bus.CraterVisual)
	DisposeCrater()
}

// MapPresenter renders the 2D map marker and shockwave overlay.
type MapPresenter interface {
	PlaceMarker(p model.GeoPoint)
	UpsertShockwave(s bus.ShockwaveVisual)
	RemoveShockwave()
}

// DisplayPanel shows the formatted impact summary.
type DisplayPanel interface {
	ShowSummary(s display.Summary)
}

// InputSurface exposes the current slider values. Picks are delivered to
// the animation coordinator directly.
type InputSurface interface {
	Parameters() model.ImpactParameters
}
