package core

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/signalsfoundry/impact-simulator/model"
)

// The estimators below are order-of-magnitude heuristics for an
// educational visualisation. They are not validated impact physics.

const (
	// JoulesPerMegaton is the TNT-equivalent energy of one megaton.
	JoulesPerMegaton = 4.184e15

	// MinCraterRadiusKm keeps crater visuals non-degenerate.
	MinCraterRadiusKm = 0.01

	// WorldAvgPopDensity is people per square kilometre.
	WorldAvgPopDensity = 60.0

	// TsunamiReferenceDistanceKm is the shoreline distance used for run-up.
	TsunamiReferenceDistanceKm = 300.0
)

// EstimatorConfig holds the fixed inputs of Estimate that are not impactor
// properties.
type EstimatorConfig struct {
	PopDensityPerKm2  float64
	TsunamiDistanceKm float64
}

// DefaultEstimatorConfig returns the reference population density and
// tsunami distance.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		PopDensityPerKm2:  WorldAvgPopDensity,
		TsunamiDistanceKm: TsunamiReferenceDistanceKm,
	}
}

// KineticEnergy returns 0.5·m·v² in joules.
func KineticEnergy(velocityMS, massKg float64) float64 {
	return 0.5 * massKg * velocityMS * velocityMS
}

// ImpactorMass treats the impactor as a uniform sphere.
func ImpactorMass(diameterM, densityKgM3 float64) float64 {
	r := diameterM / 2
	volume := (4.0 / 3.0) * math.Pi * r * r * r
	return volume * densityKgM3
}

// EnergyInMegatons converts joules to megatons of TNT.
func EnergyInMegatons(joules float64) float64 {
	return joules / JoulesPerMegaton
}

// CraterDiameterMeters applies the empirical 1.8·(E/1e6)^0.294 power law.
func CraterDiameterMeters(energyJoules float64) float64 {
	if energyJoules == 0 {
		return 0
	}
	return 1.8 * math.Pow(energyJoules/1e6, 0.294)
}

// CraterRadiusKm converts a crater diameter to a radius in kilometres,
// floored at MinCraterRadiusKm.
func CraterRadiusKm(craterDiameterM float64) float64 {
	return math.Max(MinCraterRadiusKm, craterDiameterM/2000)
}

// EstimateFatalities scales the exposed population inside a destruction
// radius of 10·log10(Mt+1) km. craterRadiusKm does not enter the affected
// area.
func EstimateFatalities(energyMt, popDensityPerKm2, craterRadiusKm float64) int64 {
	destroyedRadius := math.Log10(energyMt+1) * 10
	affectedArea := math.Pi * destroyedRadius * destroyedRadius
	exposed := popDensityPerKm2 * affectedArea
	return int64(math.Round(exposed * 0.6))
}

// EstimateTsunamiRunup returns the run-up height in metres at distanceKm,
// rounded to one decimal and never negative.
func EstimateTsunamiRunup(energyMt, distanceKm float64) float64 {
	h := (energyMt / (distanceKm + 20)) * 2
	return math.Max(0, scalar.Round(h, 1))
}

// Estimate computes the full outcome for one impactor.
func Estimate(p model.ImpactParameters, cfg EstimatorConfig) model.ImpactOutcome {
	mass := ImpactorMass(p.DiameterM, p.DensityKgM3)
	joules := KineticEnergy(p.VelocityKmS*1000, mass)
	mt := EnergyInMegatons(joules)
	craterRadius := CraterRadiusKm(CraterDiameterMeters(joules))

	return model.ImpactOutcome{
		MassKg:             mass,
		EnergyJoules:       joules,
		EnergyMegatons:     mt,
		CraterRadiusKm:     craterRadius,
		FatalitiesEstimate: EstimateFatalities(mt, cfg.PopDensityPerKm2, craterRadius),
		TsunamiRunupM:      EstimateTsunamiRunup(mt, cfg.TsunamiDistanceKm),
	}
}
