package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Kilat-Mobility/service-journey/internal/application"
	"github.com/Kilat-Mobility/service-journey/internal/common/auth"
	"github.com/Kilat-Mobility/service-journey/internal/common/middleware"
	"github.com/Kilat-Mobility/service-journey/internal/common/response"
	"github.com/Kilat-Mobility/service-journey/internal/domain/geo"
	geofenceDomain "github.com/Kilat-Mobility/service-journey/internal/domain/geofence"
)

// EvaluateRequest is the body of POST /geofences/evaluate.
type EvaluateRequest struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Kind string  `json:"kind"`
}

// GeofenceHandler handles HTTP requests for geofences and operating areas.
type GeofenceHandler struct {
	service *application.GeofenceService
}

// NewGeofenceHandler creates a new GeofenceHandler.
func NewGeofenceHandler(service *application.GeofenceService) *GeofenceHandler {
	return &GeofenceHandler{service: service}
}

// RegisterRoutes registers geofence routes. Writes are restricted to operators.
func (h *GeofenceHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	operator := middleware.RequireRole(auth.RoleOperator)

	geofences := r.Group("/api/v1/geofences")
	geofences.Use(authMW)
	{
		geofences.POST("/evaluate", h.Evaluate)
		geofences.GET("", h.ListPolygons)
		geofences.POST("", operator, h.CreatePolygon)
		geofences.DELETE("/:id", operator, h.DeactivatePolygon)
		geofences.GET("/areas", h.ListAreas)
		geofences.POST("/areas", operator, h.CreateArea)
		geofences.DELETE("/areas/:id", operator, h.DeactivateArea)
	}
}

// Evaluate handles POST /api/v1/geofences/evaluate.
func (h *GeofenceHandler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	kind := geofenceDomain.Kind(req.Kind)
	if kind != "" && !kind.IsValid() {
		response.BadRequest(c, "invalid geofence kind")
		return
	}

	result, err := h.service.EvaluateGeofence(c.Request.Context(), geo.NewPoint(req.Lat, req.Lng), kind)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ListPolygons handles GET /api/v1/geofences?kind=.
func (h *GeofenceHandler) ListPolygons(c *gin.Context) {
	kind := geofenceDomain.Kind(c.Query("kind"))
	if kind != "" && !kind.IsValid() {
		response.BadRequest(c, "invalid geofence kind")
		return
	}

	result, err := h.service.ListPolygons(c.Request.Context(), kind)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CreatePolygon handles POST /api/v1/geofences.
func (h *GeofenceHandler) CreatePolygon(c *gin.Context) {
	var req application.CreatePolygonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreatePolygon(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// DeactivatePolygon handles DELETE /api/v1/geofences/:id.
func (h *GeofenceHandler) DeactivatePolygon(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid geofence ID")
		return
	}

	if err := h.service.DeactivatePolygon(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "geofence deactivated"})
}

// ListAreas handles GET /api/v1/geofences/areas.
func (h *GeofenceHandler) ListAreas(c *gin.Context) {
	result, err := h.service.ListAreas(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CreateArea handles POST /api/v1/geofences/areas.
func (h *GeofenceHandler) CreateArea(c *gin.Context) {
	var req application.CreateAreaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateArea(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// DeactivateArea handles DELETE /api/v1/geofences/areas/:id.
func (h *GeofenceHandler) DeactivateArea(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid area ID")
		return
	}

	if err := h.service.DeactivateArea(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "area deactivated"})
}
