package routes

import (
	"escrow-marketplace/internal/api/handlers"

	"github.com/gin-gonic/gin"
)

// RegisterUserRoutes registers the user lookup route.
func RegisterUserRoutes(rg *gin.RouterGroup, userHandler handlers.UserHandlerInterface) {
	users := rg.Group("/users")
	{
		users.GET("", userHandler.GetUserByAddress) // ?wallet_address=
	}
}
