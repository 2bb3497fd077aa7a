package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/signalsfoundry/impact-simulator/internal/display"
	"github.com/signalsfoundry/impact-simulator/internal/logging"
	"github.com/signalsfoundry/impact-simulator/model"
)

// parametersRequest allows partial slider updates; omitted fields keep
// their current value.
type parametersRequest struct {
	DiameterM   *float64 `json:"diameter_m"`
	VelocityKmS *float64 `json:"velocity_km_s"`
	AngleDeg    *float64 `json:"angle_deg"`
	DensityKgM3 *float64 `json:"density_kg_m3"`
}

func (r parametersRequest) apply(p model.ImpactParameters) model.ImpactParameters {
	if r.DiameterM != nil {
		p.DiameterM = *r.DiameterM
	}
	if r.VelocityKmS != nil {
		p.VelocityKmS = *r.VelocityKmS
	}
	if r.AngleDeg != nil {
		p.AngleDeg = *r.AngleDeg
	}
	if r.DensityKgM3 != nil {
		p.DensityKgM3 = *r.DensityKgM3
	}
	return p
}

type parametersResponse struct {
	Parameters model.ImpactParameters `json:"parameters"`
	Ranges     model.ParameterRanges  `json:"ranges"`
}

type impactRequest struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lon *float64 `json:"lon" binding:"required"`
}

type summaryResponse struct {
	display.Summary
	Lines []display.Line `json:"lines"`
}

func (s *server) getParameters(c *gin.Context) {
	c.JSON(http.StatusOK, parametersResponse{
		Parameters: s.Session.Parameters(),
		Ranges:     s.Ranges,
	})
}

func (s *server) putParameters(c *gin.Context) {
	var req parametersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requested := req.apply(s.Session.Parameters())
	clamped := s.Ranges.Clamp(requested)
	if clamped != requested {
		s.Log.Info(c.Request.Context(), "parameters clamped to slider ranges",
			logging.Any("requested", requested),
			logging.Any("clamped", clamped),
		)
	}
	s.Session.SetParameters(clamped)

	c.JSON(http.StatusOK, parametersResponse{Parameters: clamped, Ranges: s.Ranges})
}

func (s *server) postImpact(c *gin.Context) {
	var req impactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lon are required"})
		return
	}

	impact, err := s.Picker.Pick(c.Request.Context(), model.GeoPoint{Lat: *req.Lat, Lon: *req.Lon})
	if err != nil {
		if errors.Is(err, model.ErrInvalidGeoPoint) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.Log.Error(c.Request.Context(), "pick failed", logging.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pick failed"})
		return
	}

	c.JSON(http.StatusAccepted, impact)
}

func (s *server) getSummary(c *gin.Context) {
	sum := display.Summarize(s.Session.Snapshot(), s.Estimator)
	c.JSON(http.StatusOK, summaryResponse{Summary: sum, Lines: sum.Lines()})
}

func (s *server) getState(c *gin.Context) {
	c.JSON(http.StatusOK, s.Session.Snapshot())
}
