package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Kilat-Mobility/service-journey/internal/application"
	"github.com/Kilat-Mobility/service-journey/internal/common/auth"
	"github.com/Kilat-Mobility/service-journey/internal/common/middleware"
	"github.com/Kilat-Mobility/service-journey/internal/common/response"
)

// MaintenanceRequest toggles a vehicle's maintenance state.
type MaintenanceRequest struct {
	Maintenance bool `json:"maintenance"`
}

// VehicleHandler handles HTTP requests for the carshare fleet.
type VehicleHandler struct {
	service *application.VehicleService
}

// NewVehicleHandler creates a new VehicleHandler.
func NewVehicleHandler(service *application.VehicleService) *VehicleHandler {
	return &VehicleHandler{service: service}
}

// RegisterRoutes registers all vehicle routes on the given router group.
func (h *VehicleHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	operator := middleware.RequireRole(auth.RoleOperator)

	vehicles := r.Group("/api/v1/vehicles")
	vehicles.Use(authMW)
	{
		vehicles.GET("", h.ListAvailable)
		vehicles.GET("/:id", h.GetVehicle)
		vehicles.POST("", operator, h.CreateVehicle)
		vehicles.PUT("/:id/maintenance", operator, h.SetMaintenance)
	}
}

// CreateVehicle handles POST /api/v1/vehicles.
func (h *VehicleHandler) CreateVehicle(c *gin.Context) {
	var req application.CreateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateVehicle(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListAvailable handles GET /api/v1/vehicles.
func (h *VehicleHandler) ListAvailable(c *gin.Context) {
	result, err := h.service.ListAvailable(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetVehicle handles GET /api/v1/vehicles/:id.
func (h *VehicleHandler) GetVehicle(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid vehicle ID")
		return
	}

	result, err := h.service.GetVehicle(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// SetMaintenance handles PUT /api/v1/vehicles/:id/maintenance.
func (h *VehicleHandler) SetMaintenance(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid vehicle ID")
		return
	}

	var req MaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.SetMaintenance(c.Request.Context(), id, req.Maintenance)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
