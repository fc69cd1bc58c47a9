// internal/app/app.go
package app

import (
	"escrow-marketplace/config"
	"escrow-marketplace/internal/api/handlers"
	"escrow-marketplace/internal/idempotency"
	"escrow-marketplace/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Application holds core application dependencies.
type Application struct {
	Config    *config.Config
	Logger    *zap.Logger
	Validator *validator.Validate
	Registry  *prometheus.Registry

	Idempotency  idempotency.Store
	HealthChecks map[string]handlers.HealthCheck

	EscrowService       services.EscrowService
	AgreementService    services.AgreementService
	JobService          services.JobService
	ApplicationService  services.ApplicationService
	UserService         services.UserService
	NotificationService services.NotificationService
}
