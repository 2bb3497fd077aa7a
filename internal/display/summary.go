// Package display formats impact results for the summary panel.
package display

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/signalsfoundry/impact-simulator/core"
	"github.com/signalsfoundry/impact-simulator/internal/sim/state"
	"github.com/signalsfoundry/impact-simulator/model"
)

// Disclaimer accompanies every summary.
const Disclaimer = "Estimates are order-of-magnitude heuristics, not scientific predictions."

// LowHazard is shown when the rounded tsunami run-up is zero.
const LowHazard = "Low"

// Line is one labelled row of the panel.
type Line struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Summary is the pre-formatted content of the display panel.
type Summary struct {
	Energy         string `json:"energy"`
	CraterDiameter string `json:"crater_diameter"`
	Fatalities     string `json:"fatalities"`
	Tsunami        string `json:"tsunami"`
	Location       string `json:"location"`
	Mass           string `json:"mass"`
	Disclaimer     string `json:"disclaimer"`
}

// Format renders an outcome observed at point.
func Format(point model.GeoPoint, o model.ImpactOutcome) Summary {
	p := message.NewPrinter(language.English)

	tsunami := LowHazard
	if o.TsunamiRunupM != 0 {
		tsunami = strconv.FormatFloat(o.TsunamiRunupM, 'f', -1, 64) + " m run-up"
	}

	return Summary{
		Energy:         p.Sprintf("%v Mt TNT", number.Decimal(o.EnergyMegatons, number.MaxFractionDigits(2))),
		CraterDiameter: p.Sprintf("%v km", number.Decimal(o.CraterDiameterKm(), number.MaxFractionDigits(2))),
		Fatalities:     p.Sprintf("%d", o.FatalitiesEstimate),
		Tsunami:        tsunami,
		Location:       fmt.Sprintf("%.3f, %.3f", point.Lat, point.Lon),
		Mass:           exponential(o.MassKg) + " kg",
		Disclaimer:     Disclaimer,
	}
}

// exponential formats v with two fraction digits and an unpadded exponent,
// so 5.24e+5 rather than 5.24e+05.
func exponential(v float64) string {
	s := strconv.FormatFloat(v, 'e', 2, 64)
	i := strings.IndexByte(s, 'e')
	if i < 0 || i+2 >= len(s) {
		return s
	}
	mant, sign, exp := s[:i], s[i+1], strings.TrimLeft(s[i+2:], "0")
	if exp == "" {
		exp = "0"
	}
	return mant + "e" + string(sign) + exp
}

// Summarize renders the session. The latest impact is used when one exists;
// before the first pick the live parameters are estimated at (0, 0).
func Summarize(snap state.Snapshot, cfg core.EstimatorConfig) Summary {
	if snap.Impact != nil {
		return Format(snap.Impact.Point, snap.Impact.Outcome)
	}
	return Format(model.GeoPoint{}, core.Estimate(snap.Parameters, cfg))
}

// Lines returns the panel rows in display order.
func (s Summary) Lines() []Line {
	return []Line{
		{Label: "Impact Energy", Value: s.Energy},
		{Label: "Crater Diameter", Value: s.CraterDiameter},
		{Label: "Estimated Fatalities", Value: s.Fatalities},
		{Label: "Tsunami Hazard", Value: s.Tsunami},
		{Label: "Location", Value: s.Location},
		{Label: "Asteroid Mass", Value: s.Mass},
	}
}

// String renders the panel as plain text, one row per line, followed by the
// disclaimer.
func (s Summary) String() string {
	var b strings.Builder
	for _, l := range s.Lines() {
		b.WriteString(l.Label)
		b.WriteString(": ")
		b.WriteString(l.Value)
		b.WriteByte('\n')
	}
	b.WriteString(s.Disclaimer)
	return b.String()
}
