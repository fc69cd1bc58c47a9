package handlers

import (
	"net/http"

	"escrow-marketplace/internal/services"
	"escrow-marketplace/internal/transport/dto"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// EscrowHandler exposes the accept-and-fund saga and the milestone approval steps.
type EscrowHandler struct {
	service   services.EscrowService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEscrowHandler creates a new EscrowHandler.
func NewEscrowHandler(service services.EscrowService, validate *validator.Validate, logger *zap.Logger) *EscrowHandler {
	return &EscrowHandler{
		service:   service,
		validator: validate,
		logger:    logger,
	}
}

// DeployEscrow godoc
// @Summary      Prepare the escrow deployment
// @Description  Returns the unsigned deployment for the employer's wallet. Reports already_deployed when the job has an escrow.
// @Tags         escrow
// @Accept       json
// @Produce      json
// @Param        request body      dto.DeployEscrowRequest true  "Job and accepted application"
// @Success      200 {object}  dto.DeployEscrowResponse
// @Failure      400 {object}  map[string]interface{} "Bad Request - Invalid input"
// @Failure      403 {object}  map[string]interface{} "Not the job's employer"
// @Failure      409 {object}  map[string]interface{} "Job or application in the wrong state"
// @Failure      502 {object}  map[string]interface{} "Settlement API error"
// @Router       /escrow/deploy [post]
func (h *EscrowHandler) DeployEscrow(c *gin.Context) {
	var req dto.DeployEscrowRequest
	if !bindJSON(c, h.validator, &req) || !authorizeWallet(c, req.EmployerAddress) {
		return
	}
	resp, err := h.service.DeployEscrow(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err, "Failed to prepare escrow deployment")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SendDeploy godoc
// @Summary      Relay the signed deployment
// @Description  Relays the signed deployment and records the escrow id. Never relays twice for one job.
// @Tags         escrow
// @Accept       json
// @Produce      json
// @Param        request body      dto.SendDeployRequest true  "Signed deployment"
// @Success      200 {object}  dto.SendDeployResponse
// @Failure      400 {object}  map[string]interface{} "Bad Request - Invalid input"
// @Failure      409 {object}  map[string]interface{} "Job in the wrong state"
// @Failure      500 {object}  map[string]interface{} "Ledger could not be reconciled"
// @Failure      502 {object}  map[string]interface{} "Settlement API error"
// @Router       /escrow/send-deploy [post]
func (h *EscrowHandler) SendDeploy(c *gin.Context) {
	var req dto.SendDeployRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}
	resp, err := h.service.SendDeploy(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err, "Failed to relay escrow deployment")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// FundEscrow godoc
// @Summary      Prepare the escrow funding
// @Tags         escrow
// @Accept       json
// @Produce      json
// @Param        request body      dto.FundEscrowRequest true  "Job and employer wallet"
// @Success      200 {object}  dto.FundEscrowResponse
// @Failure      400 {object}  map[string]interface{} "Bad Request - Invalid input"
// @Failure      403 {object}  map[string]interface{} "Not the job's employer"
// @Failure      409 {object}  map[string]interface{} "Escrow not deployed"
// @Failure      422 {object}  map[string]interface{} "Wallet lacks the escrow asset trustline"
// @Failure      502 {object}  map[string]interface{} "Settlement API error"
// @Router       /escrow/fund [post]
func (h *EscrowHandler) FundEscrow(c *gin.Context) {
	var req dto.FundEscrowRequest
	if !bindJSON(c, h.validator, &req) || !authorizeWallet(c, req.Signer) {
		return
	}
	resp, err := h.service.FundEscrow(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err, "Failed to prepare escrow funding")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SendFund godoc
// @Summary      Relay the signed funding
// @Tags         escrow
// @Accept       json
// @Produce      json
// @Param        request body      dto.SendFundRequest true  "Signed funding"
// @Success      200 {object}  dto.SendFundResponse
// @Failure      400 {object}  map[string]interface{} "Bad Request - Invalid input"
// @Failure      409 {object}  map[string]interface{} "Job in the wrong state"
// @Failure      500 {object}  map[string]interface{} "Ledger could not be reconciled"
// @Failure      502 {object}  map[string]interface{} "Settlement API error"
// @Router       /escrow/send-fund [post]
func (h *EscrowHandler) SendFund(c *gin.Context) {
	var req dto.SendFundRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}
	resp, err := h.service.SendFund(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err, "Failed to relay escrow funding")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// FinalizeAccept godoc
// @Summary      Create the agreement
// @Description  Creates the agreement for a funded job, accepts the application and rejects the others.
// @Tags         escrow
// @Accept       json
// @Produce      json
// @Param        request body      dto.FinalizeAcceptRequest true  "Job and accepted application"
// @Success      200 {object}  dto.FinalizeAcceptResponse
// @Failure      400 {object}  map[string]interface{} "Bad Request - Invalid input"
// @Failure      403 {object}  map[string]interface{} "Not the job's employer"
// @Failure      409 {object}  map[string]interface{} "Job not funded or agreement conflict"
// @Router       /escrow/finalize [post]
func (h *EscrowHandler) FinalizeAccept(c *gin.Context) {
	var req dto.FinalizeAcceptRequest
	if !bindJSON(c, h.validator, &req) || !authorizeWallet(c, req.EmployerAddress) {
		return
	}
	resp, err := h.service.FinalizeAccept(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err, "Failed to finalize acceptance")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ApproveMilestone godoc
// @Summary      Prepare the milestone approval
// @Tags         escrow
// @Accept       json
// @Produce      json
// @Param        request body      dto.ApproveMilestoneRequest true  "Agreement and approver wallet"
// @Success      200 {object}  dto.ApproveMilestoneResponse
// @Failure      400 {object}  map[string]interface{} "Bad Request - Invalid input"
// @Failure      403 {object}  map[string]interface{} "Not the agreement's employer"
// @Failure      409 {object}  map[string]interface{} "Agreement in the wrong state"
// @Failure      502 {object}  map[string]interface{} "Settlement API error"
// @Router       /escrow/approve-milestone [post]
func (h *EscrowHandler) ApproveMilestone(c *gin.Context) {
	var req dto.ApproveMilestoneRequest
	if !bindJSON(c, h.validator, &req) || !authorizeWallet(c, req.Approver) {
		return
	}
	resp, err := h.service.ApproveMilestone(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err, "Failed to prepare milestone approval")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SendApproval godoc
// @Summary      Record the milestone approval
// @Description  Relays the signed approval, or re-verifies an earlier approval, and marks the agreement EMPLOYER_APPROVED.
// @Tags         escrow
// @Accept       json
// @Produce      json
// @Param        request body      dto.SendApprovalRequest true  "Signed approval"
// @Success      200 {object}  dto.SendApprovalResponse
// @Failure      400 {object}  map[string]interface{} "Bad Request - Invalid input"
// @Failure      409 {object}  map[string]interface{} "Agreement in the wrong state"
// @Failure      500 {object}  map[string]interface{} "Ledger could not be reconciled"
// @Failure      502 {object}  map[string]interface{} "Settlement API error"
// @Router       /escrow/send-approval [post]
func (h *EscrowHandler) SendApproval(c *gin.Context) {
	var req dto.SendApprovalRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}
	resp, err := h.service.SendApproval(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err, "Failed to record milestone approval")
		return
	}
	c.JSON(http.StatusOK, resp)
}
