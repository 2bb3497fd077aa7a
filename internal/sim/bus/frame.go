package bus

import (
	"time"

	"github.com/signalsfoundry/impact-simulator/core"
	"github.com/signalsfoundry/impact-simulator/internal/sim/state"
	"github.com/signalsfoundry/impact-simulator/model"
)

// ImpactorVisual is the impactor transform for one frame.
type ImpactorVisual struct {
	Position core.Vec3 `json:"position"`
	Scale    float64   `json:"scale"`
}

// CraterVisual describes the crater disc on the globe.
type CraterVisual struct {
	Generation     uint64    `json:"generation"`
	Position       core.Vec3 `json:"position"`
	Normal         core.Vec3 `json:"normal"`
	RadiusKm       float64   `json:"radius_km"`
	TargetRadiusKm float64   `json:"target_radius_km"`
}

// CraterMeshRadius is the radius of the unscaled crater disc in scene units.
const CraterMeshRadius = 0.01

// MeshScale is the uniform scale applied to the unit crater mesh on the
// globe: 0.3 per kilometre of radius.
func (c CraterVisual) MeshScale() float64 {
	return c.RadiusKm * 0.3
}

// SceneRadius is the drawn crater radius in scene units.
func (c CraterVisual) SceneRadius() float64 {
	return CraterMeshRadius * c.MeshScale()
}

// ShockwaveVisual is the expanding ring drawn on the map.
type ShockwaveVisual struct {
	Generation  uint64         `json:"generation"`
	Center      model.GeoPoint `json:"center"`
	RadiusM     float64        `json:"radius_m"`
	Opacity     float64        `json:"opacity"`
	FillOpacity float64        `json:"fill_opacity"`
}

// Frame is the immutable render state produced by one tick. Nil pointers
// mean the visual does not exist in this frame.
type Frame struct {
	Seq        uint64               `json:"seq"`
	Generation uint64               `json:"generation"`
	At         time.Time            `json:"at"`
	Phase      model.AnimationPhase `json:"phase"`
	Impactor   ImpactorVisual       `json:"impactor"`
	Marker     *model.GeoPoint      `json:"marker,omitempty"`
	Crater     *CraterVisual        `json:"crater,omitempty"`
	Shockwave  *ShockwaveVisual     `json:"shockwave,omitempty"`

	// Landed is set only on the frame in which an impact completes.
	Landed *state.Impact `json:"landed,omitempty"`
}
