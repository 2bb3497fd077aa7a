package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/impact-simulator/model"
)

var allPhases = []model.AnimationPhase{
	model.PhaseIdleOrbit,
	model.PhaseApproaching,
	model.PhaseImpactSettling,
}

// ImpactCollector exposes simulation-specific Prometheus metrics. It
// satisfies both the session metrics recorder and the animation recorder.
type ImpactCollector struct {
	gatherer prometheus.Gatherer

	ImpactsTotal     prometheus.Counter
	SupersededTotal  prometheus.Counter
	EnergyMegatons   prometheus.Histogram
	CraterRadiusKm   prometheus.Histogram
	FrameTickSeconds prometheus.Histogram
	Phase            *prometheus.GaugeVec
}

// NewImpactCollector registers simulation metrics against the provided registerer.
func NewImpactCollector(reg prometheus.Registerer) (*ImpactCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	impacts, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "impacts_total",
		Help: "Cumulative number of impacts that completed their approach.",
	}), "impacts_total")
	if err != nil {
		return nil, err
	}

	superseded, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "impacts_superseded_total",
		Help: "Cumulative number of approaches replaced by a newer pick before landing.",
	}), "impacts_superseded_total")
	if err != nil {
		return nil, err
	}

	energy, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "impact_energy_megatons",
		Help:    "Kinetic energy of landed impacts in megatons of TNT.",
		Buckets: prometheus.ExponentialBuckets(0.001, 10, 12),
	}), "impact_energy_megatons")
	if err != nil {
		return nil, err
	}

	crater, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "impact_crater_radius_km",
		Help:    "Crater radius of landed impacts in kilometres.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 25, 50, 100, 250},
	}), "impact_crater_radius_km")
	if err != nil {
		return nil, err
	}

	tick, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "frame_tick_duration_seconds",
		Help:    "Time spent advancing the animation and publishing one frame.",
		Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.016, 0.033},
	}), "frame_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	phase, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "animation_phase",
		Help: "Current animation phase; the active phase is 1, the others 0.",
	}, []string{"phase"}), "animation_phase")
	if err != nil {
		return nil, err
	}

	return &ImpactCollector{
		gatherer:         gatherer,
		ImpactsTotal:     impacts,
		SupersededTotal:  superseded,
		EnergyMegatons:   energy,
		CraterRadiusKm:   crater,
		FrameTickSeconds: tick,
		Phase:            phase,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *ImpactCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *ImpactCollector) Handler() http.Handler {
	return handlerFor(c.Gatherer())
}

// RecordImpact counts a landed impact and records its outcome.
func (c *ImpactCollector) RecordImpact(o model.ImpactOutcome) {
	if c == nil {
		return
	}
	if c.ImpactsTotal != nil {
		c.ImpactsTotal.Inc()
	}
	if c.EnergyMegatons != nil {
		c.EnergyMegatons.Observe(o.EnergyMegatons)
	}
	if c.CraterRadiusKm != nil {
		c.CraterRadiusKm.Observe(o.CraterRadiusKm)
	}
}

// SetPhase marks phase as the active animation phase.
func (c *ImpactCollector) SetPhase(phase model.AnimationPhase) {
	if c == nil || c.Phase == nil {
		return
	}
	for _, p := range allPhases {
		v := 0.0
		if p == phase {
			v = 1
		}
		c.Phase.WithLabelValues(p.String()).Set(v)
	}
}

// ObserveTick records the duration of one frame tick.
func (c *ImpactCollector) ObserveTick(d time.Duration) {
	if c == nil || c.FrameTickSeconds == nil {
		return
	}
	c.FrameTickSeconds.Observe(d.Seconds())
}

// IncSuperseded increments the superseded approach counter.
func (c *ImpactCollector) IncSuperseded() {
	if c == nil || c.SupersededTotal == nil {
		return
	}
	c.SupersededTotal.Inc()
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
