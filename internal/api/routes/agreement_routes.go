package routes

import (
	"escrow-marketplace/internal/api/handlers"

	"github.com/gin-gonic/gin"
)

// RegisterAgreementRoutes registers the agreement reads and lifecycle actions.
// Reads are public; actions require the acting wallet.
func RegisterAgreementRoutes(
	rg *gin.RouterGroup,
	agreementHandler handlers.AgreementHandlerInterface,
	authMiddleware gin.HandlerFunc,
	idempotent gin.HandlerFunc,
) {
	agreements := rg.Group("/agreements")
	{
		agreements.GET("", agreementHandler.ListAgreements)
		agreements.GET("/:id", agreementHandler.GetAgreement)
		agreements.GET("/:id/transactions", agreementHandler.ListTransactions)
	}

	actions := rg.Group("/agreements")
	actions.Use(authMiddleware, idempotent)
	{
		actions.POST("/:id/deliver", agreementHandler.DeliverWork)
		actions.POST("/:id/request-changes", agreementHandler.RequestChanges)
		actions.POST("/:id/confirm", agreementHandler.ConfirmRelease)
	}
}
