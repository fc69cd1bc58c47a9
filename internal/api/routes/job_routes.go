// internal/api/routes/job_routes.go
package routes

import (
	"escrow-marketplace/internal/api/handlers"

	"github.com/gin-gonic/gin"
)

// RegisterJobRoutes registers all routes related to jobs.
// The authentication middleware applies to the write routes only.
func RegisterJobRoutes(
	rg *gin.RouterGroup, // Base group (e.g., /api/v1)
	jobHandler handlers.JobHandlerInterface, // Use interface
	authMiddleware gin.HandlerFunc,
) {
	jobs := rg.Group("/jobs")
	{
		jobs.GET("", jobHandler.ListJobs)       // List jobs, filterable by status and employer
		jobs.GET("/:id", jobHandler.GetJobByID) // Get a specific job by ID
		jobs.POST("", authMiddleware, jobHandler.CreateJob)
		jobs.POST("/:id/publish", authMiddleware, jobHandler.PublishJob) // DRAFT -> OPEN
	}
}
