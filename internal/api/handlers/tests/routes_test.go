package routes_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"escrow-marketplace/config"
	"escrow-marketplace/internal/api/handlers"
	"escrow-marketplace/internal/api/middleware"
	"escrow-marketplace/internal/api/routes"
	"escrow-marketplace/internal/app"
	"escrow-marketplace/internal/idempotency"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegisterEscrowRoutes(t *testing.T) {
	// Arrange
	gin.SetMode(gin.TestMode)
	mockHandler := new(MockEscrowHandler)
	router := gin.New()
	testGroup := router.Group("/api")
	noop := func(c *gin.Context) { c.Next() }

	// Act
	routes.RegisterEscrowRoutes(testGroup, mockHandler, noop, noop)

	// Assert
	expectedRoutes := []string{
		"POST /api/escrow/deploy",
		"POST /api/escrow/send-deploy",
		"POST /api/escrow/fund",
		"POST /api/escrow/send-fund",
		"POST /api/escrow/finalize",
		"POST /api/escrow/approve-milestone",
		"POST /api/escrow/send-approval",
	}
	registeredMap := make(map[string]bool)
	for _, routeInfo := range router.Routes() {
		registeredMap[routeInfo.Method+" "+routeInfo.Path] = true
	}
	for _, expected := range expectedRoutes {
		assert.True(t, registeredMap[expected], "Expected route %s to be registered", expected)
	}
	assert.Len(t, router.Routes(), len(expectedRoutes))
}

func TestRegisterEscrowRoutes_AppliesMiddlewareInOrder(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockHandler := new(MockEscrowHandler)
	var order []string
	auth := func(c *gin.Context) { order = append(order, "auth"); c.Next() }
	idem := func(c *gin.Context) { order = append(order, "idempotency"); c.Next() }
	mockHandler.On("FinalizeAccept", mock.Anything).Run(func(args mock.Arguments) {
		order = append(order, "handler")
		args.Get(0).(*gin.Context).Status(http.StatusNoContent)
	})
	router := gin.New()
	routes.RegisterEscrowRoutes(router.Group(""), mockHandler, auth, idem)

	w := performRaw(router, http.MethodPost, "/escrow/finalize")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"auth", "idempotency", "handler"}, order)
	mockHandler.AssertExpectations(t)
}

func newTestApplication(cfg *config.Config, checks map[string]handlers.HealthCheck) *app.Application {
	return &app.Application{
		Config:           cfg,
		Logger:           zap.NewNop(),
		Validator:        validator.New(),
		Registry:         prometheus.NewRegistry(),
		Idempotency:      idempotency.NewMemoryStore(),
		HealthChecks:     checks,
		EscrowService:    new(MockEscrowService),
		AgreementService: new(MockAgreementService),
		JobService:       new(MockJobService),
	}
}

func TestRegisterRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	cfg := &config.Config{Idempotency: config.IdempotencyConfig{TTL: time.Hour}}

	routes.RegisterRoutes(router, newTestApplication(cfg, nil))

	registeredMap := make(map[string]bool)
	for _, routeInfo := range router.Routes() {
		registeredMap[routeInfo.Method+" "+routeInfo.Path] = true
	}
	for _, expected := range []string{
		"GET /health",
		"GET /metrics",
		"POST /api/v1/escrow/deploy",
		"GET /api/v1/agreements/:id",
		"GET /api/v1/agreements/:id/transactions",
		"POST /api/v1/agreements/:id/confirm",
		"POST /api/v1/agreements/:id/request-changes",
		"POST /api/v1/jobs",
		"POST /api/v1/jobs/:id/applications",
		"POST /api/v1/applications/:id/reject",
		"GET /api/v1/users",
		"GET /api/v1/notifications",
	} {
		assert.True(t, registeredMap[expected], "Expected route %s to be registered", expected)
	}
}

func TestRegisterRoutes_WalletAuthWhenSecretSet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	cfg := &config.Config{
		Auth:        config.AuthConfig{JWTSecret: testSecret},
		Idempotency: config.IdempotencyConfig{TTL: time.Hour},
	}
	routes.RegisterRoutes(router, newTestApplication(cfg, nil))

	w, resp := performJSON(t, router, http.MethodPost, "/api/v1/escrow/deploy", deployBody(), "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Authorization header required", resp["error"])
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	cfg := &config.Config{Idempotency: config.IdempotencyConfig{TTL: time.Hour}}
	routes.RegisterRoutes(router, newTestApplication(cfg, map[string]handlers.HealthCheck{
		"database": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	}))

	w, resp := performJSON(t, router, http.MethodGet, "/health", nil, "")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", resp["status"])
	checks := resp["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["database"])
	assert.Equal(t, "connection refused", checks["redis"])
}

func TestWalletAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/me", middleware.WalletAuthMiddleware(testSecret, zap.NewNop()), func(c *gin.Context) {
		wallet, _ := middleware.GetWalletFromContext(c)
		c.JSON(http.StatusOK, gin.H{"wallet": wallet})
	})

	valid, err := generateTestToken(employer, testSecret, time.Hour)
	require.NoError(t, err)
	expired, err := generateTestToken(employer, testSecret, -time.Minute)
	require.NoError(t, err)
	wrongKey, err := generateTestToken(employer, "other-secret", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		token      string
		wantStatus int
		wantError  string
	}{
		{"valid", valid, http.StatusOK, ""},
		{"missing", "", http.StatusUnauthorized, "Authorization header required"},
		{"expired", expired, http.StatusUnauthorized, "Token has expired"},
		{"wrong key", wrongKey, http.StatusUnauthorized, "Invalid token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := performJSON(t, router, http.MethodGet, "/me", nil, tt.token)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, resp["error"])
				return
			}
			assert.Equal(t, employer, resp["wallet"])
		})
	}
}
