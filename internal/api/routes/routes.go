// internal/api/routes/routes.go
package routes

import (
	"escrow-marketplace/internal/api/handlers"
	"escrow-marketplace/internal/api/middleware"
	"escrow-marketplace/internal/app"
	"escrow-marketplace/internal/idempotency"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// RegisterRoutes sets up the API routes by calling resource-specific registration functions
func RegisterRoutes(router *gin.Engine, app *app.Application) {
	logger := app.Logger.Named("http")

	// --- Base API Group ---
	apiV1 := router.Group("/api/v1")

	// Create handlers
	escrowHandler := handlers.NewEscrowHandler(app.EscrowService, app.Validator, logger)
	agreementHandler := handlers.NewAgreementHandler(app.AgreementService, app.Validator, logger)
	jobHandler := handlers.NewJobHandler(app.JobService, app.Validator, logger)
	applicationHandler := handlers.NewApplicationHandler(app.ApplicationService, app.Validator, logger)
	userHandler := handlers.NewUserHandler(app.UserService, app.Validator, logger)
	notificationHandler := handlers.NewNotificationHandler(app.NotificationService, app.Validator, logger)

	// --- Middleware ---
	authMiddleware := func(c *gin.Context) { c.Next() }
	if app.Config.Auth.JWTSecret != "" {
		authMiddleware = middleware.WalletAuthMiddleware(app.Config.Auth.JWTSecret, logger)
	} else {
		logger.Warn("Wallet authentication disabled: auth.jwt_secret is empty")
	}
	idempotent := idempotency.Middleware(app.Idempotency, app.Config.Idempotency.TTL, logger)

	// --- Register Resource Routes ---
	RegisterEscrowRoutes(apiV1, escrowHandler, authMiddleware, idempotent)
	RegisterAgreementRoutes(apiV1, agreementHandler, authMiddleware, idempotent)
	RegisterJobRoutes(apiV1, jobHandler, authMiddleware)
	RegisterApplicationRoutes(apiV1, applicationHandler, authMiddleware)
	RegisterUserRoutes(apiV1, userHandler)
	RegisterNotificationRoutes(apiV1, notificationHandler, authMiddleware)

	// --- Operational endpoints ---
	router.GET("/health", handlers.Health(app.HealthChecks))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{})))

	logger.Debug("Configuring Swagger UI handler", zap.String("path", "/swagger/index.html"))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
