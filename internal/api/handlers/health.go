package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck pings a dependency.
type HealthCheck func(ctx context.Context) error

// Health returns the health endpoint. Each named check must pass for a 200.
//
//	@Summary		Health check
//	@Description	Check if the service and its dependencies are up
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}	"API is healthy"
//	@Failure		503	{object}	map[string]interface{}	"A dependency is down"
//	@Router			/health [get]
func Health(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}
		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		c.JSON(status, gin.H{"status": overall, "checks": results})
	}
}
