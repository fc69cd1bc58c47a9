package routes

import (
	"escrow-marketplace/internal/api/handlers"

	"github.com/gin-gonic/gin"
)

// RegisterApplicationRoutes registers the job application routes.
func RegisterApplicationRoutes(
	rg *gin.RouterGroup,
	applicationHandler handlers.ApplicationHandlerInterface,
	authMiddleware gin.HandlerFunc,
) {
	rg.GET("/jobs/:id/applications", applicationHandler.ListApplicationsByJob)
	rg.POST("/jobs/:id/applications", authMiddleware, applicationHandler.ApplyToJob)

	applications := rg.Group("/applications")
	applications.Use(authMiddleware)
	{
		applications.POST("/:id/reject", applicationHandler.RejectApplication)
	}
}
