// Package api exposes the simulator session over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/impact-simulator/core"
	"github.com/signalsfoundry/impact-simulator/internal/logging"
	"github.com/signalsfoundry/impact-simulator/internal/observability"
	"github.com/signalsfoundry/impact-simulator/internal/sim/state"
	"github.com/signalsfoundry/impact-simulator/model"
)

const tracerName = "github.com/signalsfoundry/impact-simulator/internal/api"

// Picker starts an impact; the animation coordinator satisfies it.
type Picker interface {
	Pick(ctx context.Context, point model.GeoPoint) (state.Impact, error)
}

// Deps wires the router to the running simulation. Stream, Metrics and
// HTTPMetrics are optional.
type Deps struct {
	Session     *state.SessionState
	Picker      Picker
	Ranges      model.ParameterRanges
	Estimator   core.EstimatorConfig
	Stream      http.Handler
	Metrics     http.Handler
	HTTPMetrics *observability.HTTPCollector
	Log         logging.Logger
}

type server struct {
	Deps
	started time.Time
	tracer  trace.Tracer
}

// NewRouter builds the gin engine serving the API.
func NewRouter(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = logging.Noop()
	}
	d.Log = d.Log.With(logging.String("component", "api"))
	s := &server{Deps: d, started: time.Now(), tracer: otel.Tracer(tracerName)}

	r := gin.New()
	r.Use(gin.Recovery())
	if d.HTTPMetrics != nil {
		r.Use(d.HTTPMetrics.Middleware())
	}
	r.Use(s.tracing(), s.requestLog())

	r.GET("/healthz", s.health)

	api := r.Group("/api")
	{
		api.GET("/parameters", s.getParameters)
		api.PUT("/parameters", s.putParameters)
		api.POST("/impacts", s.postImpact)
		api.GET("/summary", s.getSummary)
		api.GET("/state", s.getState)
	}

	if d.Stream != nil {
		r.GET("/ws", gin.WrapH(d.Stream))
	}
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}
	return r
}

func (s *server) tracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := s.tracer.Start(c.Request.Context(), c.Request.Method+" "+observability.RouteLabel(c.FullPath()),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("http.method", c.Request.Method)),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

func (s *server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Log.Debug(c.Request.Context(), "request handled",
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", c.Writer.Status()),
			logging.String("duration", time.Since(start).String()),
		)
	}
}

func (s *server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "impact-simulator",
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}
