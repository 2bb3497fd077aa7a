package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/signalsfoundry/impact-simulator/core"
	"github.com/signalsfoundry/impact-simulator/internal/observability"
	"github.com/signalsfoundry/impact-simulator/internal/sim/animation"
	"github.com/signalsfoundry/impact-simulator/internal/sim/bus"
	"github.com/signalsfoundry/impact-simulator/internal/sim/state"
	"github.com/signalsfoundry/impact-simulator/model"
	"github.com/signalsfoundry/impact-simulator/timectrl"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	router  *gin.Engine
	session *state.SessionState
	coord   *animation.Coordinator
	tc      *timectrl.TimeController
	metrics *observability.HTTPCollector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ranges := model.DefaultParameterRanges()
	session := state.NewSessionState(ranges.Defaults(), nil)
	tc := timectrl.NewTimeController(time.Date(2025, time.May, 4, 0, 0, 0, 0, time.UTC), 16*time.Millisecond, timectrl.Accelerated)
	coord := animation.NewCoordinator(session, tc, bus.New(nil), animation.DefaultConfig(), nil)
	coord.Attach(context.Background(), tc)

	collector, err := observability.NewHTTPCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewHTTPCollector: %v", err)
	}

	return &fixture{
		router: NewRouter(Deps{
			Session:     session,
			Picker:      coord,
			Ranges:      ranges,
			Estimator:   core.DefaultEstimatorConfig(),
			HTTPMetrics: collector,
			Metrics:     http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("metrics")) }),
		}),
		session: session,
		coord:   coord,
		tc:      tc,
		metrics: collector,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", rr.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("healthz = %d %s", rr.Code, rr.Body.String())
	}
}

func TestGetParametersReturnsDefaultsAndRanges(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/api/parameters", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var got parametersResponse
	decode(t, rr, &got)
	if got.Parameters.DiameterM != 1000 || got.Parameters.VelocityKmS != 20 || got.Ranges.Density.Max != 8000 {
		t.Fatalf("response = %+v", got)
	}
}

func TestPutParametersClampsAndKeepsOmittedFields(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodPut, "/api/parameters", `{"diameter_m": 50000, "velocity_km_s": 5}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rr.Code, rr.Body.String())
	}

	want := model.ImpactParameters{DiameterM: 10000, VelocityKmS: 11, AngleDeg: 45, DensityKgM3: 3000}
	if got := f.session.Parameters(); got != want {
		t.Fatalf("session parameters = %+v, want %+v", got, want)
	}
}

func TestPutParametersRejectsMalformedBody(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodPut, "/api/parameters", `{"diameter_m": "big"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestPostImpactStartsApproach(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodPost, "/api/impacts", `{"lat": 40.7128, "lon": -74.006}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d %s", rr.Code, rr.Body.String())
	}

	var impact state.Impact
	decode(t, rr, &impact)
	if impact.Generation != 1 || impact.ID == "" || impact.Outcome.FatalitiesEstimate != 268845 {
		t.Fatalf("impact = %+v", impact)
	}
	if !f.coord.InFlight() {
		t.Fatalf("no approach in flight after pick")
	}
}

func TestPostImpactAtOriginIsAccepted(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodPost, "/api/impacts", `{"lat": 0, "lon": 0}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d %s", rr.Code, rr.Body.String())
	}
}

func TestPostImpactValidation(t *testing.T) {
	f := newFixture(t)
	for name, body := range map[string]string{
		"missing lon":  `{"lat": 10}`,
		"out of range": `{"lat": 95, "lon": 0}`,
		"not json":     `lat=1`,
	} {
		rr := f.do(t, http.MethodPost, "/api/impacts", body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", name, rr.Code)
		}
	}
	if f.coord.InFlight() {
		t.Fatalf("rejected pick started an approach")
	}
}

func TestSummaryBeforeAndAfterImpact(t *testing.T) {
	f := newFixture(t)

	var before summaryResponse
	decode(t, f.do(t, http.MethodGet, "/api/summary", ""), &before)
	if before.Location != "0.000, 0.000" || len(before.Lines) != 6 {
		t.Fatalf("summary before pick = %+v", before)
	}

	f.do(t, http.MethodPost, "/api/impacts", `{"lat": 35.6762, "lon": 139.6503}`)
	f.tc.Step(3 * time.Second)

	var after summaryResponse
	decode(t, f.do(t, http.MethodGet, "/api/summary", ""), &after)
	if after.Location != "35.676, 139.650" || after.Fatalities != "268,845" {
		t.Fatalf("summary after impact = %+v", after)
	}
}

func TestStateReportsPhase(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/impacts", `{"lat": 1, "lon": 1}`)
	f.tc.Step(time.Second)

	rr := f.do(t, http.MethodGet, "/api/state", "")
	if !strings.Contains(rr.Body.String(), `"phase":"approaching"`) {
		t.Fatalf("state = %s", rr.Body.String())
	}
}

func TestMetricsRouteAndMiddleware(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/healthz", "")

	rr := f.do(t, http.MethodGet, "/metrics", "")
	if rr.Body.String() != "metrics" {
		t.Fatalf("/metrics body = %q", rr.Body.String())
	}
	if got := testutil.ToFloat64(f.metrics.Requests.WithLabelValues("GET", "/healthz", "200")); got != 1 {
		t.Fatalf("http_requests_total healthz = %v, want 1", got)
	}
}
