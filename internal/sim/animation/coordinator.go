// Package animation drives the impactor, crater and shockwave animations
// from frame ticks and keeps the session state in step with them.
package animation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/impact-simulator/core"
	"github.com/signalsfoundry/impact-simulator/internal/logging"
	"github.com/signalsfoundry/impact-simulator/internal/sim/bus"
	"github.com/signalsfoundry/impact-simulator/internal/sim/state"
	"github.com/signalsfoundry/impact-simulator/model"
	"github.com/signalsfoundry/impact-simulator/timectrl"
)

const tracerName = "github.com/signalsfoundry/impact-simulator/internal/sim/animation"

// Config holds the fixed animation timings.
type Config struct {
	ApproachDuration      time.Duration
	CraterGrowDuration    time.Duration
	ShockwaveDuration     time.Duration
	ShockwaveRadiusFactor float64 // shockwave reach in crater radii
	Estimator             core.EstimatorConfig
}

// DefaultConfig returns the reference timings.
func DefaultConfig() Config {
	return Config{
		ApproachDuration:      3000 * time.Millisecond,
		CraterGrowDuration:    1500 * time.Millisecond,
		ShockwaveDuration:     3000 * time.Millisecond,
		ShockwaveRadiusFactor: 5,
		Estimator:             core.DefaultEstimatorConfig(),
	}
}

// Recorder receives animation metrics.
type Recorder interface {
	ObserveTick(d time.Duration)
	IncSuperseded()
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithRecorder attaches an optional metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.metrics = r }
}

// flight is the Approaching phase: one impactor travelling to one target.
type flight struct {
	gen   uint64
	path  *core.ApproachPath
	start time.Time
	scale float64
}

// craterGrowth is the crater sub-animation; it stays in place at full size
// once grown, until the next impact replaces it.
type craterGrowth struct {
	gen      uint64
	position core.Vec3
	normal   core.Vec3
	target   float64
	start    time.Time
	duration time.Duration
	grown    bool
}

// shockwaveGrowth is the map ring sub-animation; it is dropped when done.
type shockwaveGrowth struct {
	gen        uint64
	center     model.GeoPoint
	maxRadiusM float64
	start      time.Time
	duration   time.Duration
}

// Coordinator owns the animation state machine. Picks and ticks are
// serialised, so a pick's physics is always computed before the next tick
// reads it, and at most one approach exists at any time.
type Coordinator struct {
	mu sync.Mutex

	session *state.SessionState
	clock   timectrl.SimClock
	bus     *bus.Bus
	orbit   *core.OrbitMotion
	cfg     Config
	log     logging.Logger
	metrics Recorder
	tracer  trace.Tracer

	generation uint64
	seq        uint64
	lastTick   time.Time
	orbitPhase float64

	flight    *flight
	crater    *craterGrowth
	shockwave *shockwaveGrowth
	marker    *model.GeoPoint
}

// NewCoordinator wires a coordinator to its session, clock and bus.
func NewCoordinator(session *state.SessionState, clock timectrl.SimClock, b *bus.Bus, cfg Config, log logging.Logger, opts ...Option) *Coordinator {
	if log == nil {
		log = logging.Noop()
	}
	if b == nil {
		b = bus.New(log)
	}
	c := &Coordinator{
		session: session,
		clock:   clock,
		bus:     b,
		orbit:   core.NewOrbitMotion(),
		cfg:     cfg,
		log:     log.With(logging.String("component", "animation")),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Bus returns the bus frames are published on.
func (c *Coordinator) Bus() *bus.Bus { return c.bus }

// Attach registers the coordinator as a frame listener on tc.
func (c *Coordinator) Attach(ctx context.Context, tc *timectrl.TimeController) {
	tc.AddListener(func(now time.Time) {
		c.Tick(ctx, now)
	})
}

// Pick starts an impact at point. The outcome is estimated from the input
// surface's current parameters; any approach still in flight is replaced.
func (c *Coordinator) Pick(ctx context.Context, point model.GeoPoint) (state.Impact, error) {
	ctx, span := c.tracer.Start(ctx, "animation.Pick", trace.WithAttributes(
		attribute.Float64("impact.lat", point.Lat),
		attribute.Float64("impact.lon", point.Lon),
	))
	defer span.End()

	if err := point.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid point")
		return state.Impact{}, fmt.Errorf("pick: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	params := c.session.Parameters()
	outcome := core.Estimate(params, c.cfg.Estimator)
	target := core.LatLonToUnitVector(point.Lat, point.Lon)
	now := c.clock.Now()

	c.generation++
	gen := c.generation
	impact := state.Impact{
		ID:         logging.NewImpactID(),
		Generation: gen,
		Params:     params,
		Point:      point,
		Target:     target,
		Outcome:    outcome,
		PickedAt:   now,
	}
	ctx = logging.ContextWithImpactID(ctx, impact.ID)

	if c.flight != nil {
		c.log.Info(ctx, "approach superseded", logging.Uint64("superseded_generation", c.flight.gen))
		if c.metrics != nil {
			c.metrics.IncSuperseded()
		}
	}
	c.settleEffectsLocked()

	c.flight = &flight{
		gen:   gen,
		path:  core.NewApproachPath(target, c.cfg.ApproachDuration),
		start: now,
		scale: core.ImpactorScale(params.DiameterM),
	}
	marker := point
	c.marker = &marker
	c.session.BeginImpact(ctx, impact)

	span.SetAttributes(
		attribute.Int64("impact.generation", int64(gen)),
		attribute.Float64("impact.energy_mt", outcome.EnergyMegatons),
		attribute.Float64("impact.crater_radius_km", outcome.CraterRadiusKm),
	)
	c.log.Info(ctx, "impact picked",
		logging.Uint64("generation", gen),
		logging.Float("lat", point.Lat),
		logging.Float("lon", point.Lon),
		logging.Float("energy_mt", outcome.EnergyMegatons),
		logging.Float("crater_radius_km", outcome.CraterRadiusKm),
	)
	return impact, nil
}

// settleEffectsLocked finishes the previous impact's sub-animations so the
// new impact is the only writer of the crater and shockwave visuals.
func (c *Coordinator) settleEffectsLocked() {
	if c.crater != nil {
		c.crater.grown = true
	}
	c.shockwave = nil
}

// Tick advances every animation to now, records the bookkeeping on the
// session and publishes the resulting frame.
func (c *Coordinator) Tick(ctx context.Context, now time.Time) bus.Frame {
	started := time.Now()

	c.mu.Lock()
	frame := c.advanceLocked(ctx, now)
	c.mu.Unlock()

	c.bus.Publish(ctx, frame)

	if c.metrics != nil {
		c.metrics.ObserveTick(time.Since(started))
	}
	return frame
}

func (c *Coordinator) advanceLocked(ctx context.Context, now time.Time) bus.Frame {
	var dt time.Duration
	if !c.lastTick.IsZero() {
		dt = now.Sub(c.lastTick)
	}
	c.lastTick = now
	c.seq++

	frame := bus.Frame{
		Seq:        c.seq,
		Generation: c.generation,
		At:         now,
	}

	progress := 0.0
	switch {
	case c.flight != nil:
		progress = c.flight.path.Progress(now.Sub(c.flight.start))
		if progress >= 1 {
			frame.Landed = c.landLocked(ctx, now)
			frame.Impactor = bus.ImpactorVisual{Position: core.ParkedPosition, Scale: 1}
		} else {
			frame.Impactor = impactorAt(c.flight.path, progress, c.flight.scale)
		}
	default:
		c.orbitPhase = c.orbit.Advance(c.orbitPhase, dt)
		frame.Impactor = impactorAt(c.orbit, c.orbitPhase, 1)
		if c.session.Snapshot().Impact != nil {
			progress = 1
		}
	}

	frame.Crater = c.craterFrameLocked(now)
	frame.Shockwave = c.shockwaveFrameLocked(now)
	if c.marker != nil {
		m := *c.marker
		frame.Marker = &m
	}
	frame.Phase = c.phaseLocked()

	c.session.SetAnimation(frame.Phase, c.orbitPhase, progress)
	return frame
}

func impactorAt(m core.MotionModel, param, scale float64) bus.ImpactorVisual {
	return bus.ImpactorVisual{Position: m.PositionAt(param), Scale: scale}
}

// landLocked performs the Approaching -> ImpactSettling transition.
func (c *Coordinator) landLocked(ctx context.Context, now time.Time) *state.Impact {
	f := c.flight
	c.flight = nil
	c.orbitPhase = 0

	landed, err := c.session.FinalizeImpact(f.gen, now)
	if err != nil {
		if !errors.Is(err, state.ErrStaleGeneration) {
			c.log.Warn(ctx, "finalize impact failed", logging.Err(err))
		}
		return nil
	}
	ctx = logging.ContextWithImpactID(ctx, landed.ID)

	c.crater = &craterGrowth{
		gen:      f.gen,
		position: core.LatLonToVector(landed.Point.Lat, landed.Point.Lon, core.EarthRadiusScene),
		normal:   landed.Target,
		target:   landed.Outcome.CraterRadiusKm,
		start:    now,
		duration: c.cfg.CraterGrowDuration,
	}
	c.shockwave = &shockwaveGrowth{
		gen:        f.gen,
		center:     landed.Point,
		maxRadiusM: landed.Outcome.CraterRadiusKm * 1000 * c.cfg.ShockwaveRadiusFactor,
		start:      now,
		duration:   c.cfg.ShockwaveDuration,
	}

	c.log.Info(ctx, "impact landed",
		logging.Uint64("generation", landed.Generation),
		logging.Float("crater_radius_km", landed.Outcome.CraterRadiusKm),
		logging.Int("fatalities_estimate", int(landed.Outcome.FatalitiesEstimate)),
	)
	return &landed
}

func (c *Coordinator) craterFrameLocked(now time.Time) *bus.CraterVisual {
	cg := c.crater
	if cg == nil {
		return nil
	}
	frac := 1.0
	if !cg.grown {
		frac = fraction(now.Sub(cg.start), cg.duration)
		if frac >= 1 {
			cg.grown = true
		}
	}
	return &bus.CraterVisual{
		Generation:     cg.gen,
		Position:       cg.position,
		Normal:         cg.normal,
		RadiusKm:       frac * cg.target,
		TargetRadiusKm: cg.target,
	}
}

func (c *Coordinator) shockwaveFrameLocked(now time.Time) *bus.ShockwaveVisual {
	sw := c.shockwave
	if sw == nil {
		return nil
	}
	elapsed := now.Sub(sw.start)
	if elapsed >= sw.duration {
		c.shockwave = nil
		return nil
	}
	frac := fraction(elapsed, sw.duration)
	return &bus.ShockwaveVisual{
		Generation:  sw.gen,
		Center:      sw.center,
		RadiusM:     frac * sw.maxRadiusM,
		Opacity:     0.8 * (1 - frac),
		FillOpacity: 0.3 * (1 - frac),
	}
}

func (c *Coordinator) phaseLocked() model.AnimationPhase {
	switch {
	case c.flight != nil:
		return model.PhaseApproaching
	case c.shockwave != nil || (c.crater != nil && !c.crater.grown):
		return model.PhaseImpactSettling
	default:
		return model.PhaseIdleOrbit
	}
}

// InFlight reports whether an approach is active.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flight != nil
}

// fraction returns elapsed/total clamped to [0,1].
func fraction(elapsed, total time.Duration) float64 {
	if total <= 0 {
		return 1
	}
	return math.Min(math.Max(float64(elapsed)/float64(total), 0), 1)
}
