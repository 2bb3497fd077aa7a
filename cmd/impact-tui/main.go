package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/signalsfoundry/impact-simulator/internal/config"
	"github.com/signalsfoundry/impact-simulator/internal/logging"
	"github.com/signalsfoundry/impact-simulator/internal/observability"
	"github.com/signalsfoundry/impact-simulator/internal/present/term"
	"github.com/signalsfoundry/impact-simulator/internal/sim/animation"
	"github.com/signalsfoundry/impact-simulator/internal/sim/bus"
	"github.com/signalsfoundry/impact-simulator/internal/sim/state"
	"github.com/signalsfoundry/impact-simulator/model"
	"github.com/signalsfoundry/impact-simulator/timectrl"
)

func main() {
	envFile := flag.String("env-file", ".env", "optional dotenv file read before the process environment")
	logFile := flag.String("log-file", "", "write logs to this file; logs are discarded when empty")
	sound := flag.Bool("sound", false, "play an impact sound (overrides IMPACT_SOUND when set)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if *sound {
		cfg.Sound = true
	}

	// The terminal owns stdout and stderr while the UI runs.
	var logOut io.Writer = io.Discard
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(2)
		}
		defer f.Close()
		logOut = f
	}
	log := logging.New(cfg.Logging(logOut))
	if cfg.Tracing.Writer == nil {
		cfg.Tracing.Writer = logOut
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "impact tui exited", logging.Err(err))
		fmt.Fprintf(os.Stderr, "impact-tui: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log logging.Logger) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer screen.Fini()

	var snd term.Sound = term.NoSound{}
	if cfg.Sound {
		beepSound, err := term.NewBeepSound()
		if err != nil {
			log.Warn(ctx, "audio unavailable, continuing without sound", logging.Err(err))
		} else {
			defer beepSound.Close()
			snd = beepSound
		}
	}

	ranges := model.DefaultParameterRanges()
	session := state.NewSessionState(ranges.Defaults(), log)

	tc := timectrl.NewTimeController(time.Now().UTC(), cfg.FrameInterval, timectrl.RealTime)
	coord := animation.NewCoordinator(session, tc, bus.New(log), cfg.Animation(), log)
	coord.Attach(ctx, tc)

	app := term.NewApp(term.Config{
		Screen:  screen,
		Session: session,
		Picker:  coord,
		Ranges:  ranges,
		Sound:   snd,
		Log:     log,
	})
	detach := app.Attach(coord.Bus(), cfg.Estimator())
	defer detach()

	tickCtx, stopTicking := context.WithCancel(ctx)
	ticking := tc.Start(tickCtx, 0)
	defer func() {
		stopTicking()
		<-ticking
	}()

	log.Info(ctx, "starting impact tui")
	app.Run(ctx, cfg.FrameInterval)
	return nil
}
