package core

import (
	"math"
	"time"
)

const (
	// OrbitRadiusScene is the idle orbit radius: two Earth radii.
	OrbitRadiusScene = 2 * EarthRadiusScene

	// OrbitAngularSpeed is the idle orbit rate in radians per second
	// (0.01 rad per frame at 60 fps).
	OrbitAngularSpeed = 0.6
)

// ApproachStart is the fixed unit direction every approach begins from:
// directly west of Earth in scene coordinates.
var ApproachStart = Vec3{X: -1}

// ParkedPosition is where the impactor is placed when an impact completes.
var ParkedPosition = ApproachStart.Scale(OrbitRadiusScene)

// MotionModel places the impactor from a single scalar parameter: the orbit
// phase angle for OrbitMotion, the progress in [0,1] for ApproachPath.
type MotionModel interface {
	PositionAt(param float64) Vec3
}

// OrbitMotion circles Earth in the equatorial plane at a fixed radius.
type OrbitMotion struct {
	Radius       float64
	AngularSpeed float64 // rad/s
}

// NewOrbitMotion returns the reference idle orbit.
func NewOrbitMotion() *OrbitMotion {
	return &OrbitMotion{Radius: OrbitRadiusScene, AngularSpeed: OrbitAngularSpeed}
}

// Advance moves phase forward by dt and wraps the result into [0, 2π).
func (m *OrbitMotion) Advance(phase float64, dt time.Duration) float64 {
	if dt < 0 {
		dt = 0
	}
	phase += m.AngularSpeed * dt.Seconds()
	phase = math.Mod(phase, 2*math.Pi)
	if phase < 0 {
		phase += 2 * math.Pi
	}
	return phase
}

// PositionAt returns the orbit position for a phase angle.
func (m *OrbitMotion) PositionAt(phase float64) Vec3 {
	return Vec3{
		X: m.Radius * math.Cos(phase),
		Y: 0,
		Z: m.Radius * math.Sin(phase),
	}
}

// ApproachPath carries the impactor along the surface great circle from
// From to To over Duration.
type ApproachPath struct {
	From     Vec3
	To       Vec3
	Radius   float64
	Duration time.Duration
}

// NewApproachPath builds the reference approach from ApproachStart to target.
func NewApproachPath(target Vec3, duration time.Duration) *ApproachPath {
	return &ApproachPath{
		From:     ApproachStart,
		To:       target.Unit(),
		Radius:   EarthRadiusScene,
		Duration: duration,
	}
}

// Progress returns elapsed/Duration clamped to [0,1]. A non-positive
// duration completes immediately.
func (p *ApproachPath) Progress(elapsed time.Duration) float64 {
	if p.Duration <= 0 {
		return 1
	}
	t := float64(elapsed) / float64(p.Duration)
	return math.Min(math.Max(t, 0), 1)
}

// PositionAt returns the impactor position at progress t.
func (p *ApproachPath) PositionAt(t float64) Vec3 {
	return Slerp(p.From, p.To, t).Scale(p.Radius)
}

// ImpactorScale sizes the impactor visual from its diameter, with a floor so
// small bodies stay visible.
func ImpactorScale(diameterM float64) float64 {
	return math.Max(diameterM/1000, 0.5)
}
