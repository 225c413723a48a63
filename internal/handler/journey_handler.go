package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Kilat-Mobility/service-journey/internal/application"
	"github.com/Kilat-Mobility/service-journey/internal/common/auth"
	"github.com/Kilat-Mobility/service-journey/internal/common/middleware"
	"github.com/Kilat-Mobility/service-journey/internal/common/response"
)

// SetSpeedRequest is the body of PUT /journeys/:id/speed.
type SetSpeedRequest struct {
	Multiplier *float64 `json:"multiplier" binding:"required"`
}

// CancelJourneyRequest is the body of POST /journeys/:id/cancel.
type CancelJourneyRequest struct {
	Reason string `json:"reason"`
}

// JourneyHandler handles HTTP requests for journey operations.
type JourneyHandler struct {
	service *application.PositionService
}

// NewJourneyHandler creates a new JourneyHandler.
func NewJourneyHandler(service *application.PositionService) *JourneyHandler {
	return &JourneyHandler{service: service}
}

// RegisterRoutes registers all journey routes on the given router group.
func (h *JourneyHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	staff := middleware.RequireRole(auth.RoleOperator, auth.RoleDriver)

	journeys := r.Group("/api/v1/journeys")
	journeys.Use(authMW)
	{
		journeys.POST("", staff, h.StartJourney)
		journeys.GET("", h.ListJourneys)
		journeys.GET("/:id", h.GetJourney)
		journeys.GET("/:id/position", h.GetPosition)
		journeys.PUT("/:id/speed", middleware.RequireRole(auth.RoleOperator), h.SetSpeed)
		journeys.POST("/:id/cancel", h.CancelJourney)
	}
}

// StartJourney handles POST /api/v1/journeys.
func (h *JourneyHandler) StartJourney(c *gin.Context) {
	var req application.StartJourneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.StartJourney(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListJourneys handles GET /api/v1/journeys and returns the caller's journeys.
func (h *JourneyHandler) ListJourneys(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	page, limit := parsePagination(c)
	result, err := h.service.GetRiderJourneys(c.Request.Context(), userID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetJourney handles GET /api/v1/journeys/:id.
func (h *JourneyHandler) GetJourney(c *gin.Context) {
	journeyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid journey ID")
		return
	}

	result, err := h.service.GetJourney(c.Request.Context(), journeyID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetPosition handles GET /api/v1/journeys/:id/position.
func (h *JourneyHandler) GetPosition(c *gin.Context) {
	journeyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid journey ID")
		return
	}

	snap, err := h.service.GetPosition(c.Request.Context(), journeyID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, snap)
}

// SetSpeed handles PUT /api/v1/journeys/:id/speed.
func (h *JourneyHandler) SetSpeed(c *gin.Context) {
	journeyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid journey ID")
		return
	}

	var req SetSpeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	snap, err := h.service.SetSpeed(c.Request.Context(), journeyID, *req.Multiplier)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, snap)
}

// CancelJourney handles POST /api/v1/journeys/:id/cancel.
func (h *JourneyHandler) CancelJourney(c *gin.Context) {
	journeyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid journey ID")
		return
	}

	var req CancelJourneyRequest
	// Reason is optional; an empty body is fine.
	_ = c.ShouldBindJSON(&req)

	result, err := h.service.CancelJourney(c.Request.Context(), journeyID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}
