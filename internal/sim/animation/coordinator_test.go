package animation

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/signalsfoundry/impact-simulator/core"
	"github.com/signalsfoundry/impact-simulator/internal/sim/bus"
	"github.com/signalsfoundry/impact-simulator/internal/sim/state"
	"github.com/signalsfoundry/impact-simulator/model"
	"github.com/signalsfoundry/impact-simulator/timectrl"
)

type harness struct {
	t      *testing.T
	tc     *timectrl.TimeController
	coord  *Coordinator
	state  *state.SessionState
	frames []bus.Frame
}

func newHarness(t *testing.T, params model.ImpactParameters, opts ...Option) *harness {
	t.Helper()
	start := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	h := &harness{
		t:     t,
		tc:    timectrl.NewTimeController(start, 16*time.Millisecond, timectrl.Accelerated),
		state: state.NewSessionState(params, nil),
	}
	b := bus.New(nil)
	b.Subscribe("recorder", bus.SubscriberFunc(func(_ context.Context, f bus.Frame) {
		h.frames = append(h.frames, f)
	}))
	h.coord = NewCoordinator(h.state, h.tc, b, DefaultConfig(), nil, opts...)
	h.coord.Attach(context.Background(), h.tc)
	return h
}

func (h *harness) step(d time.Duration) bus.Frame {
	h.t.Helper()
	h.tc.Step(d)
	if len(h.frames) == 0 {
		h.t.Fatalf("no frame published")
	}
	return h.frames[len(h.frames)-1]
}

func (h *harness) pick(lat, lon float64) state.Impact {
	h.t.Helper()
	imp, err := h.coord.Pick(context.Background(), model.GeoPoint{Lat: lat, Lon: lon})
	if err != nil {
		h.t.Fatalf("Pick(%v, %v): %v", lat, lon, err)
	}
	return imp
}

func defaultParams() model.ImpactParameters {
	return model.ImpactParameters{DiameterM: 1000, VelocityKmS: 20, AngleDeg: 45, DensityKgM3: 3000}
}

type countingRecorder struct {
	ticks      int
	superseded int
}

func (r *countingRecorder) ObserveTick(time.Duration) { r.ticks++ }
func (r *countingRecorder) IncSuperseded()            { r.superseded++ }

func TestIdleOrbitBeforeAnyPick(t *testing.T) {
	h := newHarness(t, defaultParams())

	h.step(16 * time.Millisecond)
	f := h.step(time.Second)

	if f.Phase != model.PhaseIdleOrbit {
		t.Fatalf("phase = %v, want idle_orbit", f.Phase)
	}
	if f.Marker != nil || f.Crater != nil || f.Shockwave != nil || f.Landed != nil {
		t.Fatalf("idle frame carries impact visuals: %+v", f)
	}
	if !scalar.EqualWithinAbs(f.Impactor.Position.Norm(), core.OrbitRadiusScene, 1e-9) {
		t.Fatalf("impactor %+v not on orbit radius", f.Impactor.Position)
	}
	if got := h.state.Snapshot().OrbitPhase; !scalar.EqualWithinAbs(got, core.OrbitAngularSpeed, 1e-9) {
		t.Fatalf("orbit phase = %v, want %v after 1s", got, core.OrbitAngularSpeed)
	}
}

func TestImpactLifecycle(t *testing.T) {
	params := defaultParams()
	params.DiameterM = 2500
	h := newHarness(t, params)
	h.step(16 * time.Millisecond)

	imp := h.pick(10, 20)
	target := core.LatLonToUnitVector(10, 20)
	craterKm := imp.Outcome.CraterRadiusKm

	f := h.step(1500 * time.Millisecond)
	if f.Phase != model.PhaseApproaching {
		t.Fatalf("phase = %v, want approaching", f.Phase)
	}
	if f.Impactor.Scale != 2.5 {
		t.Fatalf("approach scale = %v, want 2.5", f.Impactor.Scale)
	}
	if f.Marker == nil || f.Marker.Lat != 10 || f.Marker.Lon != 20 {
		t.Fatalf("marker = %+v, want (10, 20)", f.Marker)
	}
	if got := h.state.Snapshot().ApproachProgress; got != 0.5 {
		t.Fatalf("approach progress = %v, want 0.5", got)
	}
	want := core.Slerp(core.ApproachStart, target, 0.5).Scale(core.EarthRadiusScene)
	if f.Impactor.Position.DistanceTo(want) > 1e-9 {
		t.Fatalf("mid-flight position = %+v, want %+v", f.Impactor.Position, want)
	}

	f = h.step(1500 * time.Millisecond)
	if f.Landed == nil || f.Landed.Generation != imp.Generation || !f.Landed.Finalized {
		t.Fatalf("landing frame Landed = %+v", f.Landed)
	}
	if f.Impactor.Position != core.ParkedPosition || f.Impactor.Scale != 1 {
		t.Fatalf("impactor not parked after landing: %+v", f.Impactor)
	}
	if f.Phase != model.PhaseImpactSettling {
		t.Fatalf("phase = %v, want impact_settling", f.Phase)
	}
	if f.Crater == nil || f.Crater.RadiusKm != 0 || f.Crater.Normal.DistanceTo(target) > 1e-12 {
		t.Fatalf("crater at landing = %+v", f.Crater)
	}
	if f.Crater.Position.DistanceTo(target.Scale(core.EarthRadiusScene)) > 1e-9 {
		t.Fatalf("crater position %+v not on the surface at the target", f.Crater.Position)
	}
	if f.Shockwave == nil || f.Shockwave.RadiusM != 0 || f.Shockwave.Opacity != 0.8 {
		t.Fatalf("shockwave at landing = %+v", f.Shockwave)
	}
	snap := h.state.Snapshot()
	if snap.OrbitPhase != 0 || snap.Impact == nil || !snap.Impact.Finalized {
		t.Fatalf("session after landing = %+v", snap)
	}

	f = h.step(750 * time.Millisecond)
	if f.Phase != model.PhaseImpactSettling {
		t.Fatalf("phase = %v, want impact_settling", f.Phase)
	}
	if !scalar.EqualWithinAbs(f.Crater.RadiusKm, craterKm/2, 1e-9) {
		t.Fatalf("crater radius = %v, want %v", f.Crater.RadiusKm, craterKm/2)
	}
	if !scalar.EqualWithinAbs(f.Shockwave.RadiusM, 0.25*craterKm*1000*5, 1e-6) {
		t.Fatalf("shockwave radius = %v", f.Shockwave.RadiusM)
	}
	if !scalar.EqualWithinAbs(f.Shockwave.Opacity, 0.6, 1e-9) || !scalar.EqualWithinAbs(f.Shockwave.FillOpacity, 0.225, 1e-9) {
		t.Fatalf("shockwave opacity = %v / %v", f.Shockwave.Opacity, f.Shockwave.FillOpacity)
	}
	// Idle orbit resumes while the effects are still growing.
	if !scalar.EqualWithinAbs(f.Impactor.Position.Norm(), core.OrbitRadiusScene, 1e-9) {
		t.Fatalf("impactor %+v not orbiting during settling", f.Impactor.Position)
	}

	f = h.step(750 * time.Millisecond)
	if f.Crater.RadiusKm != craterKm {
		t.Fatalf("crater radius = %v, want full %v", f.Crater.RadiusKm, craterKm)
	}
	if f.Phase != model.PhaseImpactSettling {
		t.Fatalf("phase = %v while shockwave runs", f.Phase)
	}

	f = h.step(1500 * time.Millisecond)
	if f.Shockwave != nil {
		t.Fatalf("shockwave not removed after its duration: %+v", f.Shockwave)
	}
	if f.Crater == nil || f.Crater.RadiusKm != craterKm {
		t.Fatalf("crater must persist at full size, got %+v", f.Crater)
	}
	if f.Phase != model.PhaseIdleOrbit {
		t.Fatalf("phase = %v, want idle_orbit", f.Phase)
	}
}

func TestPickSupersedesInFlightApproach(t *testing.T) {
	rec := &countingRecorder{}
	h := newHarness(t, defaultParams(), WithRecorder(rec))
	h.step(16 * time.Millisecond)

	first := h.pick(45, 45)
	h.step(time.Second)
	second := h.pick(-30, 120)

	f := h.step(time.Second)
	if f.Generation != second.Generation || second.Generation != first.Generation+1 {
		t.Fatalf("frame generation = %d, first %d second %d", f.Generation, first.Generation, second.Generation)
	}
	path := core.NewApproachPath(core.LatLonToUnitVector(-30, 120), 3*time.Second)
	if want := path.PositionAt(path.Progress(time.Second)); f.Impactor.Position.DistanceTo(want) > 1e-9 {
		t.Fatalf("impactor %+v does not follow the new approach %+v", f.Impactor.Position, want)
	}
	if !h.coord.InFlight() {
		t.Fatalf("expected one approach in flight")
	}
	if rec.superseded != 1 {
		t.Fatalf("superseded = %d, want 1", rec.superseded)
	}

	for i := 0; i < 10; i++ {
		h.step(500 * time.Millisecond)
	}

	landed := 0
	for _, fr := range h.frames {
		if fr.Landed != nil {
			landed++
			if fr.Landed.Generation != second.Generation {
				t.Fatalf("superseded impact landed: %+v", fr.Landed)
			}
		}
		if fr.Crater != nil && fr.Crater.Generation != second.Generation {
			t.Fatalf("crater from superseded generation %d", fr.Crater.Generation)
		}
	}
	if landed != 1 {
		t.Fatalf("landed frames = %d, want 1", landed)
	}
	if rec.ticks != len(h.frames) {
		t.Fatalf("observed ticks = %d, frames = %d", rec.ticks, len(h.frames))
	}
}

func TestPickDuringSettlingFinishesPreviousEffects(t *testing.T) {
	h := newHarness(t, defaultParams())
	h.step(16 * time.Millisecond)

	first := h.pick(0, 10)
	h.step(3 * time.Second)
	h.step(100 * time.Millisecond)

	h.pick(20, -40)
	f := h.step(16 * time.Millisecond)

	if f.Shockwave != nil {
		t.Fatalf("previous shockwave still animating: %+v", f.Shockwave)
	}
	if f.Crater == nil || f.Crater.Generation != first.Generation || f.Crater.RadiusKm != first.Outcome.CraterRadiusKm {
		t.Fatalf("previous crater not settled at full size: %+v", f.Crater)
	}
	if f.Marker == nil || f.Marker.Lat != 20 || f.Marker.Lon != -40 {
		t.Fatalf("marker = %+v, want the new pick", f.Marker)
	}
	if f.Phase != model.PhaseApproaching {
		t.Fatalf("phase = %v, want approaching", f.Phase)
	}
}

func TestPickRejectsInvalidPoint(t *testing.T) {
	h := newHarness(t, defaultParams())
	_, err := h.coord.Pick(context.Background(), model.GeoPoint{Lat: 91, Lon: 0})
	if !errors.Is(err, model.ErrInvalidGeoPoint) {
		t.Fatalf("err = %v, want ErrInvalidGeoPoint", err)
	}
	_, err = h.coord.Pick(context.Background(), model.GeoPoint{Lat: 0, Lon: math.NaN()})
	if !errors.Is(err, model.ErrInvalidGeoPoint) {
		t.Fatalf("err = %v, want ErrInvalidGeoPoint", err)
	}
	if h.coord.InFlight() {
		t.Fatalf("invalid pick started an approach")
	}
}

func TestPickUsesParametersAtPickTime(t *testing.T) {
	h := newHarness(t, defaultParams())
	imp := h.pick(0, 0)

	changed := defaultParams()
	changed.DiameterM = 50
	h.state.SetParameters(changed)

	h.step(3 * time.Second)
	got, err := h.state.Impact()
	if err != nil {
		t.Fatalf("Impact: %v", err)
	}
	if got.Params.DiameterM != 1000 || got.Outcome != imp.Outcome {
		t.Fatalf("landed impact used live parameters: %+v", got)
	}
}

func TestApproachFromCoincidentStart(t *testing.T) {
	h := newHarness(t, defaultParams())
	h.pick(0, 180)

	for i := 0; i < 4; i++ {
		f := h.step(500 * time.Millisecond)
		want := core.Vec3{X: -core.EarthRadiusScene}
		if f.Impactor.Position.DistanceTo(want) > 1e-6 {
			t.Fatalf("coincident approach drifted to %+v", f.Impactor.Position)
		}
	}
}

func TestApproachToAntipodeStaysOnSphere(t *testing.T) {
	h := newHarness(t, defaultParams())
	h.pick(0, 0)

	for i := 0; i < 5; i++ {
		f := h.step(500 * time.Millisecond)
		if !scalar.EqualWithinAbs(f.Impactor.Position.Norm(), core.EarthRadiusScene, 1e-9) {
			t.Fatalf("antipodal approach left the sphere: %+v", f.Impactor.Position)
		}
	}
}
