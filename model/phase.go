package model

// AnimationPhase identifies which animation currently owns the impactor.
type AnimationPhase int

const (
	PhaseIdleOrbit      AnimationPhase = iota
	PhaseApproaching                   // impactor travelling to the picked point
	PhaseImpactSettling                // crater and shockwave still growing
)

func (p AnimationPhase) String() string {
	switch p {
	case PhaseIdleOrbit:
		return "idle_orbit"
	case PhaseApproaching:
		return "approaching"
	case PhaseImpactSettling:
		return "impact_settling"
	default:
		return "unknown"
	}
}

// MarshalText renders the phase by name in JSON payloads.
func (p AnimationPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
