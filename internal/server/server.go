package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"escrow-marketplace/internal/api/middleware"
	"escrow-marketplace/internal/api/routes"
	"escrow-marketplace/internal/app"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
	app    *app.Application // Store the application container
	http   *http.Server
	logger *zap.Logger
}

func NewServer(app *app.Application) *Server {
	logger := app.Logger.Named("server")

	router := gin.New()
	router.Use(gin.Recovery(), middleware.Logger(app.Logger.Named("access")))

	// --- Configure and Apply CORS Middleware ---
	logger.Info("Configuring CORS", zap.Strings("origins", app.Config.CORS.AllowedOrigins))
	corsConfig := cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return slices.Contains(app.Config.CORS.AllowedOrigins, "*") ||
				slices.Contains(app.Config.CORS.AllowedOrigins, origin)
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders:    []string{"Content-Length", "Idempotent-Replayed"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour, // How long the result of a preflight request can be cached
	}
	router.Use(cors.New(corsConfig))
	// --- End CORS Configuration ---

	router.SetTrustedProxies(nil) // Remove the gin warning about untrusted proxies

	// Pass the container to routes
	routes.RegisterRoutes(router, app)

	return &Server{
		router: router,
		app:    app,
		logger: logger,
		http: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", app.Config.Server.Host, app.Config.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks until the server stops. A graceful Shutdown is not an error.
func (s *Server) Start() error {
	s.logger.Info("Server starting", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
