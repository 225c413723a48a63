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

// RentalHandler handles HTTP requests for carshare rentals.
type RentalHandler struct {
	service *application.RentalService
}

// NewRentalHandler creates a new RentalHandler.
func NewRentalHandler(service *application.RentalService) *RentalHandler {
	return &RentalHandler{service: service}
}

// RegisterRoutes registers all rental routes on the given router group.
func (h *RentalHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	rentals := r.Group("/api/v1/rentals")
	rentals.Use(authMW)
	{
		rentals.POST("", middleware.RequireRole(auth.RoleRider), h.ActivateRental)
		rentals.GET("", h.ListRentals)
		rentals.GET("/:id", h.GetRental)
		rentals.POST("/:id/quote", h.QuoteRental)
		rentals.POST("/:id/finalize", h.FinalizeRental)
	}
}

// ActivateRental handles POST /api/v1/rentals.
func (h *RentalHandler) ActivateRental(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.ActivateRentalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.ActivateRental(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListRentals handles GET /api/v1/rentals.
func (h *RentalHandler) ListRentals(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	page, limit := parsePagination(c)
	result, err := h.service.GetUserRentals(c.Request.Context(), userID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetRental handles GET /api/v1/rentals/:id.
func (h *RentalHandler) GetRental(c *gin.Context) {
	rentalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid rental ID")
		return
	}

	result, err := h.service.GetRental(c.Request.Context(), rentalID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// QuoteRental handles POST /api/v1/rentals/:id/quote.
func (h *RentalHandler) QuoteRental(c *gin.Context) {
	rentalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid rental ID")
		return
	}

	var req application.FinalizeRentalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.QuoteRental(c.Request.Context(), rentalID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// FinalizeRental handles POST /api/v1/rentals/:id/finalize. Operators may close
// any rental; riders only their own.
func (h *RentalHandler) FinalizeRental(c *gin.Context) {
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

	var req application.FinalizeRentalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if role, _ := middleware.GetUserRole(c); role == auth.RoleOperator || role == auth.RoleAdmin {
		userID = uuid.Nil
	}

	result, err := h.service.FinalizeRental(c.Request.Context(), rentalID, userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
