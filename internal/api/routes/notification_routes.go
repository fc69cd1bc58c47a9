package routes

import (
	"escrow-marketplace/internal/api/handlers"

	"github.com/gin-gonic/gin"
)

// RegisterNotificationRoutes registers the notification inbox routes.
func RegisterNotificationRoutes(
	rg *gin.RouterGroup,
	notificationHandler handlers.NotificationHandlerInterface,
	authMiddleware gin.HandlerFunc,
) {
	notifications := rg.Group("/notifications")
	notifications.Use(authMiddleware)
	{
		notifications.GET("", notificationHandler.ListNotifications)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
	}
}
