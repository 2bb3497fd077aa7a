// internal/sim/state/state.go
package state

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/signalsfoundry/impact-simulator/core"
	"github.com/signalsfoundry/impact-simulator/internal/logging"
	"github.com/signalsfoundry/impact-simulator/model"
)

var (
	// ErrNoImpact indicates an operation that needs a selected impact point
	// was invoked before any pick.
	ErrNoImpact = errors.New("no impact selected")
	// ErrStaleGeneration indicates a write from an animation that has been
	// superseded by a newer pick.
	ErrStaleGeneration = errors.New("impact generation superseded")
)

// Impact is one pick-to-impact cycle. It is replaced wholesale on every
// pick; only one exists at a time.
type Impact struct {
	ID         string                 `json:"id"`
	Generation uint64                 `json:"generation"`
	Params     model.ImpactParameters `json:"params"`
	Point      model.GeoPoint         `json:"point"`
	Target     core.Vec3              `json:"target"`
	Outcome    model.ImpactOutcome    `json:"outcome"`
	PickedAt   time.Time              `json:"picked_at"`
	ImpactedAt time.Time              `json:"impacted_at,omitempty"`
	Finalized  bool                   `json:"finalized"`
}

// Snapshot is a read-only copy of the session. Impact is nil before the
// first pick.
type Snapshot struct {
	Parameters       model.ImpactParameters `json:"parameters"`
	Impact           *Impact                `json:"impact,omitempty"`
	Phase            model.AnimationPhase   `json:"phase"`
	OrbitPhase       float64                `json:"orbit_phase"`
	ApproachProgress float64                `json:"approach_progress"`
}

// SessionMetricsRecorder receives session-level updates for metrics export.
type SessionMetricsRecorder interface {
	RecordImpact(outcome model.ImpactOutcome)
	SetPhase(phase model.AnimationPhase)
}

// SessionStateOption customises SessionState construction.
type SessionStateOption func(*SessionState)

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m SessionMetricsRecorder) SessionStateOption {
	return func(s *SessionState) {
		s.metrics = m
	}
}

// SessionState is the single mutable record of the simulation: the live
// input parameters, the current impact and animation bookkeeping.
type SessionState struct {
	mu sync.RWMutex

	params           model.ImpactParameters
	impact           *Impact
	phase            model.AnimationPhase
	orbitPhase       float64
	approachProgress float64

	// log is an optional structured logger for state-level events.
	log logging.Logger

	// metrics is an optional recorder for Prometheus-friendly gauges.
	metrics SessionMetricsRecorder
}

// NewSessionState creates a session with no impact in the idle orbit phase.
func NewSessionState(params model.ImpactParameters, log logging.Logger, opts ...SessionStateOption) *SessionState {
	if log == nil {
		log = logging.Noop()
	}
	s := &SessionState{
		params: params,
		phase:  model.PhaseIdleOrbit,
		log:    log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.metrics != nil {
		s.metrics.SetPhase(s.phase)
	}
	return s
}

// Parameters returns the live input parameters.
func (s *SessionState) Parameters() model.ImpactParameters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// SetParameters replaces the live input parameters. An impact already in
// progress keeps the snapshot it captured at pick time.
func (s *SessionState) SetParameters(p model.ImpactParameters) {
	s.mu.Lock()
	s.params = p
	s.mu.Unlock()
}

// BeginImpact installs a new impact, discarding the previous one, and enters
// the approach phase.
func (s *SessionState) BeginImpact(ctx context.Context, impact Impact) {
	s.mu.Lock()
	prev := s.impact
	cp := impact
	cp.Finalized = false
	s.impact = &cp
	s.phase = model.PhaseApproaching
	s.approachProgress = 0
	s.mu.Unlock()

	if prev != nil && !prev.Finalized {
		s.log.Info(ctx, "impact superseded before completion",
			logging.String("superseded_id", prev.ID),
			logging.Uint64("superseded_generation", prev.Generation),
		)
	}
	s.recordPhase(model.PhaseApproaching)
}

// FinalizeImpact marks the impact of generation gen as landed. It fails
// with ErrStaleGeneration when a newer pick has replaced it.
func (s *SessionState) FinalizeImpact(gen uint64, at time.Time) (Impact, error) {
	s.mu.Lock()
	if s.impact == nil {
		s.mu.Unlock()
		return Impact{}, ErrNoImpact
	}
	if s.impact.Generation != gen {
		s.mu.Unlock()
		return Impact{}, ErrStaleGeneration
	}
	s.impact.Finalized = true
	s.impact.ImpactedAt = at
	s.approachProgress = 1
	s.orbitPhase = 0
	out := *s.impact
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordImpact(out.Outcome)
	}
	return out, nil
}

// SetAnimation records the per-frame animation bookkeeping.
func (s *SessionState) SetAnimation(phase model.AnimationPhase, orbitPhase, approachProgress float64) {
	s.mu.Lock()
	changed := s.phase != phase
	s.phase = phase
	s.orbitPhase = orbitPhase
	s.approachProgress = approachProgress
	s.mu.Unlock()

	if changed {
		s.recordPhase(phase)
	}
}

// Impact returns a copy of the current impact.
func (s *SessionState) Impact() (Impact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.impact == nil {
		return Impact{}, ErrNoImpact
	}
	return *s.impact, nil
}

// Snapshot returns a coherent copy of the session.
func (s *SessionState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Parameters:       s.params,
		Phase:            s.phase,
		OrbitPhase:       s.orbitPhase,
		ApproachProgress: s.approachProgress,
	}
	if s.impact != nil {
		cp := *s.impact
		snap.Impact = &cp
	}
	return snap
}

func (s *SessionState) recordPhase(phase model.AnimationPhase) {
	if s.metrics != nil {
		s.metrics.SetPhase(phase)
	}
}
