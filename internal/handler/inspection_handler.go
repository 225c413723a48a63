package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Kilat-Mobility/service-journey/internal/application"
	"github.com/Kilat-Mobility/service-journey/internal/common/auth"
	"github.com/Kilat-Mobility/service-journey/internal/common/middleware"
	"github.com/Kilat-Mobility/service-journey/internal/common/response"
)

// InspectionHandler handles HTTP requests for rental condition photos.
type InspectionHandler struct {
	service *application.InspectionService
}

// NewInspectionHandler creates a new InspectionHandler.
func NewInspectionHandler(service *application.InspectionService) *InspectionHandler {
	return &InspectionHandler{service: service}
}

// RegisterRoutes registers inspection routes on the given router group.
func (h *InspectionHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	photos := r.Group("/api/v1/rentals/:id/photos")
	photos.Use(authMW)
	{
		photos.POST("", h.UploadPhoto)
		photos.GET("", h.GetPhotos)
	}
}

// UploadPhoto handles POST /api/v1/rentals/:id/photos.
func (h *InspectionHandler) UploadPhoto(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	rentalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid rental ID")
		return
	}

	var req application.UploadInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.UploadPhoto(c.Request.Context(), rentalID, userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// GetPhotos handles GET /api/v1/rentals/:id/photos.
func (h *InspectionHandler) GetPhotos(c *gin.Context) {
	rentalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid rental ID")
		return
	}

	result, err := h.service.GetRentalPhotos(c.Request.Context(), rentalID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
