package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/signalsfoundry/impact-simulator/internal/config"
	"github.com/signalsfoundry/impact-simulator/internal/display"
	"github.com/signalsfoundry/impact-simulator/internal/logging"
	"github.com/signalsfoundry/impact-simulator/internal/sim/animation"
	"github.com/signalsfoundry/impact-simulator/internal/sim/bus"
	"github.com/signalsfoundry/impact-simulator/internal/sim/state"
	"github.com/signalsfoundry/impact-simulator/model"
	"github.com/signalsfoundry/impact-simulator/timectrl"
)

// options is one headless run: a single pick with fixed parameters.
type options struct {
	Point    model.GeoPoint
	Params   model.ImpactParameters
	Tick     time.Duration
	Duration time.Duration
	Verbose  bool

	Animation animation.Config
}

func main() {
	ranges := model.DefaultParameterRanges()
	defaults := ranges.Defaults()

	lat := flag.Float64("lat", 0, "impact latitude in degrees")
	lon := flag.Float64("lon", 0, "impact longitude in degrees")
	diameter := flag.Float64("diameter", defaults.DiameterM, "impactor diameter in metres")
	velocity := flag.Float64("velocity", defaults.VelocityKmS, "impact velocity in km/s")
	angle := flag.Float64("angle", defaults.AngleDeg, "entry angle in degrees")
	density := flag.Float64("density", defaults.DensityKgM3, "impactor density in kg/m3")
	tick := flag.Duration("tick", 100*time.Millisecond, "simulated frame interval")
	duration := flag.Duration("duration", 8*time.Second, "total simulated time after the pick")
	verbose := flag.Bool("v", false, "print every frame")
	envFile := flag.String("env-file", ".env", "optional dotenv file read before the process environment")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	opts := options{
		Point: model.GeoPoint{Lat: *lat, Lon: *lon},
		Params: ranges.Clamp(model.ImpactParameters{
			DiameterM:   *diameter,
			VelocityKmS: *velocity,
			AngleDeg:    *angle,
			DensityKgM3: *density,
		}),
		Tick:     *tick,
		Duration: *duration,
		Verbose:  *verbose,

		Animation: cfg.Animation(),
	}

	log := logging.New(cfg.Logging(os.Stderr))
	if err := simulate(context.Background(), opts, os.Stdout, log); err != nil {
		fmt.Fprintf(os.Stderr, "simulation failed: %v\n", err)
		os.Exit(1)
	}
}

// simulate runs one impact in accelerated time and writes the frame log and
// final summary to out.
func simulate(ctx context.Context, opts options, out io.Writer, log logging.Logger) error {
	if opts.Tick <= 0 {
		return fmt.Errorf("tick must be positive, got %s", opts.Tick)
	}
	session := state.NewSessionState(opts.Params, log)
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := timectrl.NewTimeController(start, opts.Tick, timectrl.Accelerated)

	coord := animation.NewCoordinator(session, tc, bus.New(log), opts.Animation, log)
	coord.Attach(ctx, tc)

	var landed *state.Impact
	coord.Bus().Subscribe("simulator", bus.SubscriberFunc(func(_ context.Context, f bus.Frame) {
		if f.Landed != nil {
			landed = f.Landed
			fmt.Fprintf(out, "[%s] impact at %.3f, %.3f\n", f.At.Sub(start), f.Landed.Point.Lat, f.Landed.Point.Lon)
		}
		if !opts.Verbose {
			return
		}
		line := fmt.Sprintf("[%s] %-15s impactor=(%.2f, %.2f, %.2f)", f.At.Sub(start), f.Phase, f.Impactor.Position.X, f.Impactor.Position.Y, f.Impactor.Position.Z)
		if f.Crater != nil {
			line += fmt.Sprintf(" crater=%.1fkm", f.Crater.RadiusKm)
		}
		if f.Shockwave != nil {
			line += fmt.Sprintf(" shockwave=%.0fm@%.2f", f.Shockwave.RadiusM, f.Shockwave.Opacity)
		}
		fmt.Fprintln(out, line)
	}))

	if _, err := coord.Pick(ctx, opts.Point); err != nil {
		return fmt.Errorf("pick: %w", err)
	}

	fmt.Fprintf(out, "Starting simulation: duration=%s, tick=%s, mode=%v\n", opts.Duration, opts.Tick, tc.Mode)
	done := tc.Start(ctx, opts.Duration)
	<-done

	if landed == nil {
		return fmt.Errorf("impact did not land within %s", opts.Duration)
	}
	fmt.Fprintln(out, display.Format(landed.Point, landed.Outcome).String())
	fmt.Fprintln(out, "Simulation complete.")
	return nil
}
