package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Kilat-Mobility/service-journey/internal/application"
	"github.com/Kilat-Mobility/service-journey/internal/common/auth"
	"github.com/Kilat-Mobility/service-journey/internal/common/middleware"
	"github.com/Kilat-Mobility/service-journey/internal/common/response"
)

// AdminJourneyHandler handles admin HTTP requests for journey management.
type AdminJourneyHandler struct {
	service *application.PositionService
}

// NewAdminJourneyHandler creates a new AdminJourneyHandler.
func NewAdminJourneyHandler(service *application.PositionService) *AdminJourneyHandler {
	return &AdminJourneyHandler{service: service}
}

// RegisterRoutes registers admin journey routes.
func (h *AdminJourneyHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/journeys", h.ListJourneys)
		admin.GET("/stats/journeys", h.JourneyStats)
	}
}

// ListJourneys handles GET /api/v1/admin/journeys.
func (h *AdminJourneyHandler) ListJourneys(c *gin.Context) {
	page, limit := parsePagination(c)

	journeys, total, err := h.service.ListAllJourneys(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, journeys, total, page, limit)
}

// JourneyStats handles GET /api/v1/admin/stats/journeys.
func (h *AdminJourneyHandler) JourneyStats(c *gin.Context) {
	stats, err := h.service.GetJourneyStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}
