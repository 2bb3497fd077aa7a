package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidGeoPoint indicates a picked location outside the valid
// latitude/longitude ranges.
var ErrInvalidGeoPoint = errors.New("invalid geographic point")

// ImpactParameters are the user-adjustable properties of the impactor.
// A value captured at pick time is treated as an immutable snapshot.
type ImpactParameters struct {
	DiameterM   float64 `json:"diameter_m"`
	VelocityKmS float64 `json:"velocity_km_s"`
	AngleDeg    float64 `json:"angle_deg"`
	DensityKgM3 float64 `json:"density_kg_m3"`
}

// GeoPoint is a location on Earth in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate reports whether the point lies in [-90,90] x [-180,180].
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return fmt.Errorf("%w: NaN coordinate", ErrInvalidGeoPoint)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: lat %.6f out of range", ErrInvalidGeoPoint, p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: lon %.6f out of range", ErrInvalidGeoPoint, p.Lon)
	}
	return nil
}

// ImpactOutcome holds the derived effects of an impact. It is always
// recomputed from ImpactParameters, never updated in place.
type ImpactOutcome struct {
	MassKg             float64 `json:"mass_kg"`
	EnergyJoules       float64 `json:"energy_joules"`
	EnergyMegatons     float64 `json:"energy_megatons"`
	CraterRadiusKm     float64 `json:"crater_radius_km"`
	FatalitiesEstimate int64   `json:"fatalities_estimate"`
	TsunamiRunupM      float64 `json:"tsunami_runup_m"`
}

// CraterDiameterKm is twice the crater radius.
func (o ImpactOutcome) CraterDiameterKm() float64 {
	return o.CraterRadiusKm * 2
}

// Range is an inclusive bound for a single parameter plus the value used
// when the input is not a number.
type Range struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
}

// Clamp limits v to the range. NaN maps to Default.
func (r Range) Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return r.Default
	case v < r.Min:
		return r.Min
	case v > r.Max:
		return r.Max
	}
	return v
}

// ParameterRanges bounds every slider of the input surface.
type ParameterRanges struct {
	Diameter Range `json:"diameter_m"`
	Velocity Range `json:"velocity_km_s"`
	Angle    Range `json:"angle_deg"`
	Density  Range `json:"density_kg_m3"`
}

// DefaultParameterRanges mirrors the sliders of the reference UI.
func DefaultParameterRanges() ParameterRanges {
	return ParameterRanges{
		Diameter: Range{Min: 10, Max: 10000, Default: 1000},
		Velocity: Range{Min: 11, Max: 72, Default: 20},
		Angle:    Range{Min: 0, Max: 90, Default: 45},
		Density:  Range{Min: 1000, Max: 8000, Default: 3000},
	}
}

// Defaults returns the parameters a fresh session starts with.
func (r ParameterRanges) Defaults() ImpactParameters {
	return ImpactParameters{
		DiameterM:   r.Diameter.Default,
		VelocityKmS: r.Velocity.Default,
		AngleDeg:    r.Angle.Default,
		DensityKgM3: r.Density.Default,
	}
}

// Clamp returns p with every field limited to its range.
func (r ParameterRanges) Clamp(p ImpactParameters) ImpactParameters {
	return ImpactParameters{
		DiameterM:   r.Diameter.Clamp(p.DiameterM),
		VelocityKmS: r.Velocity.Clamp(p.VelocityKmS),
		AngleDeg:    r.Angle.Clamp(p.AngleDeg),
		DensityKgM3: r.Density.Clamp(p.DensityKgM3),
	}
}
