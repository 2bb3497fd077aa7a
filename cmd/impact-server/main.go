package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/impact-simulator/internal/api"
	"github.com/signalsfoundry/impact-simulator/internal/config"
	"github.com/signalsfoundry/impact-simulator/internal/logging"
	"github.com/signalsfoundry/impact-simulator/internal/observability"
	"github.com/signalsfoundry/impact-simulator/internal/present"
	"github.com/signalsfoundry/impact-simulator/internal/present/ws"
	"github.com/signalsfoundry/impact-simulator/internal/sim/animation"
	"github.com/signalsfoundry/impact-simulator/internal/sim/bus"
	"github.com/signalsfoundry/impact-simulator/internal/sim/state"
	"github.com/signalsfoundry/impact-simulator/model"
	"github.com/signalsfoundry/impact-simulator/timectrl"
)

func main() {
	envFile := flag.String("env-file", ".env", "optional dotenv file read before the process environment")
	httpAddr := flag.String("http-addr", "", "override IMPACT_HTTP_ADDR")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}

	log := logging.New(cfg.Logging(os.Stderr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		log.Error(ctx, "failed to listen", logging.String("addr", cfg.HTTPAddr), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "impact server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves the simulator on lis until ctx is cancelled.
func run(ctx context.Context, cfg config.Config, log logging.Logger, lis net.Listener) error {
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := prometheus.NewRegistry()
	impactMetrics, err := observability.NewImpactCollector(reg)
	if err != nil {
		return fmt.Errorf("impact metrics: %w", err)
	}
	httpMetrics, err := observability.NewHTTPCollector(reg)
	if err != nil {
		return fmt.Errorf("http metrics: %w", err)
	}

	ranges := model.DefaultParameterRanges()
	session := state.NewSessionState(ranges.Defaults(), log, state.WithMetricsRecorder(impactMetrics))

	tc := timectrl.NewTimeController(time.Now().UTC(), cfg.FrameInterval, timectrl.RealTime)
	frames := bus.New(log)
	coord := animation.NewCoordinator(session, tc, frames, cfg.Animation(), log, animation.WithRecorder(impactMetrics))
	coord.Attach(ctx, tc)

	hub := ws.NewHub(coord, log)
	defer hub.Close()
	unsubHub := frames.Subscribe("ws", hub)
	defer unsubHub()
	present.NewPanelAdapter(hub, cfg.Estimator()).Refresh(session.Snapshot())
	detach := present.Attach(frames, nil, nil, hub, cfg.Estimator())
	defer detach()

	deps := api.Deps{
		Session:     session,
		Picker:      coord,
		Ranges:      ranges,
		Estimator:   cfg.Estimator(),
		Stream:      hub,
		HTTPMetrics: httpMetrics,
		Log:         log,
	}
	var metricsSrv *http.Server
	if cfg.MetricsAddr == "" {
		deps.Metrics = impactMetrics.Handler()
	} else {
		metricsSrv = serveMetrics(cfg.MetricsAddr, impactMetrics, log)
	}

	srv := &http.Server{
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	tickCtx, stopTicking := context.WithCancel(ctx)
	defer stopTicking()
	ticking := tc.Start(tickCtx, 0)

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting impact server", logging.String("addr", lis.Addr().String()))
		errCh <- srv.Serve(lis)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	log.Info(context.Background(), "shutting down impact server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "http shutdown failed", logging.Err(err))
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	stopTicking()
	<-ticking

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	return nil
}

func serveMetrics(addr string, collector *observability.ImpactCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
