package handlers

import (
	"net/http"

	"escrow-marketplace/internal/services"
	"escrow-marketplace/internal/transport/dto"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// UserHandler handles user lookups.
type UserHandler struct {
	service   services.UserService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service services.UserService, validate *validator.Validate, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		service:   service,
		validator: validate,
		logger:    logger,
	}
}

// GetUserByAddress godoc
// @Summary      Get a user by wallet address
// @Tags         users
// @Produce      json
// @Param        wallet_address query     string true  "Wallet address"
// @Success      200 {object}  dto.UserResponse
// @Failure      400 {object}  map[string]interface{} "Missing wallet address"
// @Failure      404 {object}  map[string]interface{} "User Not Found"
// @Router       /users [get]
func (h *UserHandler) GetUserByAddress(c *gin.Context) {
	var req dto.GetUserByAddressRequest
	if !bindQuery(c, h.validator, &req) {
		return
	}
	user, err := h.service.GetByAddress(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err, "Failed to retrieve user")
		return
	}
	c.JSON(http.StatusOK, services.MapUserToResponse(user))
}
