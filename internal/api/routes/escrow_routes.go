package routes

import (
	"escrow-marketplace/internal/api/handlers"

	"github.com/gin-gonic/gin"
)

// RegisterEscrowRoutes registers the saga steps. Every step honours Idempotency-Key.
func RegisterEscrowRoutes(
	rg *gin.RouterGroup,
	escrowHandler handlers.EscrowHandlerInterface,
	authMiddleware gin.HandlerFunc,
	idempotent gin.HandlerFunc,
) {
	escrow := rg.Group("/escrow")
	escrow.Use(authMiddleware, idempotent)
	{
		escrow.POST("/deploy", escrowHandler.DeployEscrow)
		escrow.POST("/send-deploy", escrowHandler.SendDeploy)
		escrow.POST("/fund", escrowHandler.FundEscrow)
		escrow.POST("/send-fund", escrowHandler.SendFund)
		escrow.POST("/finalize", escrowHandler.FinalizeAccept)
		escrow.POST("/approve-milestone", escrowHandler.ApproveMilestone)
		escrow.POST("/send-approval", escrowHandler.SendApproval)
	}
}
