package handlers

import (
	"net/http"

	"escrow-marketplace/internal/models"
	"escrow-marketplace/internal/services"
	"escrow-marketplace/internal/transport/dto"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// AgreementHandler holds dependencies for agreement operations.
type AgreementHandler struct {
	service   services.AgreementService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAgreementHandler creates a new AgreementHandler.
func NewAgreementHandler(service services.AgreementService, validate *validator.Validate, logger *zap.Logger) *AgreementHandler {
	return &AgreementHandler{
		service:   service,
		validator: validate,
		logger:    logger,
	}
}

// GetAgreement godoc
// @Summary      Get an agreement by ID
// @Tags         agreements
// @Produce      json
// @Param        id path      string true  "Agreement ID" Format(uuid)
// @Success      200 {object}  dto.AgreementResponse
// @Failure      400 {object}  map[string]interface{} "Invalid ID format"
// @Failure      404 {object}  map[string]interface{} "Agreement Not Found"
// @Router       /agreements/{id} [get]
func (h *AgreementHandler) GetAgreement(c *gin.Context) {
	id, ok := parseID(c, "id", "agreement")
	if !ok {
		return
	}
	agreement, err := h.service.GetAgreementByID(c.Request.Context(), &dto.GetAgreementByIDRequest{ID: id})
	if err != nil {
		respondError(c, h.logger, err, "Failed to retrieve agreement")
		return
	}
	c.JSON(http.StatusOK, services.MapAgreementToResponse(agreement))
}

// ListAgreements godoc
// @Summary      List agreements of a party
// @Tags         agreements
// @Produce      json
// @Param        freelancer_address query string false "Freelancer wallet"
// @Param        employer_address   query string false "Employer wallet"
// @Success      200 {array}   dto.AgreementResponse
// @Failure      400 {object}  map[string]interface{} "Exactly one address is required"
// @Router       /agreements [get]
func (h *AgreementHandler) ListAgreements(c *gin.Context) {
	var req dto.ListAgreementsRequest
	if !bindQuery(c, h.validator, &req) {
		return
	}
	agreements, err := h.service.ListAgreements(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err, "Failed to list agreements")
		return
	}
	resp := make([]dto.AgreementResponse, 0, len(agreements))
	for i := range agreements {
		resp = append(resp, services.MapAgreementToResponse(&agreements[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// ListTransactions godoc
// @Summary      List the ledger rows of an agreement
// @Tags         agreements
// @Produce      json
// @Param        id path      string true  "Agreement ID" Format(uuid)
// @Success      200 {array}   dto.TransactionResponse
// @Failure      404 {object}  map[string]interface{} "Agreement Not Found"
// @Router       /agreements/{id}/transactions [get]
func (h *AgreementHandler) ListTransactions(c *gin.Context) {
	id, ok := parseID(c, "id", "agreement")
	if !ok {
		return
	}
	rows, err := h.service.ListTransactions(c.Request.Context(), &dto.ListTransactionsRequest{AgreementID: id})
	if err != nil {
		respondError(c, h.logger, err, "Failed to list transactions")
		return
	}
	resp := make([]dto.TransactionResponse, 0, len(rows))
	for i := range rows {
		resp = append(resp, services.MapTransactionToResponse(&rows[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// DeliverWork godoc
// @Summary      Deliver work
// @Tags         agreements
// @Accept       json
// @Produce      json
// @Param        id      path      string                 true  "Agreement ID" Format(uuid)
// @Param        request body      dto.DeliverWorkRequest true  "Delivery"
// @Success      200 {object}  dto.AgreementActionResponse
// @Failure      403 {object}  map[string]interface{} "Not the agreement's freelancer"
// @Failure      409 {object}  map[string]interface{} "Agreement is not ACTIVE"
// @Router       /agreements/{id}/deliver [post]
func (h *AgreementHandler) DeliverWork(c *gin.Context) {
	id, ok := parseID(c, "id", "agreement")
	if !ok {
		return
	}
	var req dto.DeliverWorkRequest
	req.AgreementID = id
	if !bindJSON(c, h.validator, &req) || !authorizeWallet(c, req.FreelancerAddress) {
		return
	}
	agreement, err := h.service.DeliverWork(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err, "Failed to deliver work")
		return
	}
	c.JSON(http.StatusOK, actionResponse("Work delivered", agreement))
}

// RequestChanges godoc
// @Summary      Request changes
// @Tags         agreements
// @Accept       json
// @Produce      json
// @Param        id      path      string                    true  "Agreement ID" Format(uuid)
// @Param        request body      dto.RequestChangesRequest true  "Feedback"
// @Success      200 {object}  dto.AgreementActionResponse
// @Failure      403 {object}  map[string]interface{} "Not the agreement's employer"
// @Failure      409 {object}  map[string]interface{} "Agreement in the wrong state"
// @Router       /agreements/{id}/request-changes [post]
func (h *AgreementHandler) RequestChanges(c *gin.Context) {
	id, ok := parseID(c, "id", "agreement")
	if !ok {
		return
	}
	var req dto.RequestChangesRequest
	req.AgreementID = id
	if !bindJSON(c, h.validator, &req) || !authorizeWallet(c, req.EmployerAddress) {
		return
	}
	agreement, err := h.service.RequestChanges(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err, "Failed to request changes")
		return
	}
	c.JSON(http.StatusOK, actionResponse("Changes requested", agreement))
}

// ConfirmRelease godoc
// @Summary      Confirm and release the escrow
// @Description  Records the freelancer's confirmation and releases the funds with the platform key.
// @Tags         agreements
// @Accept       json
// @Produce      json
// @Param        id      path      string                    true  "Agreement ID" Format(uuid)
// @Param        request body      dto.ConfirmReleaseRequest true  "Freelancer wallet"
// @Success      200 {object}  dto.ConfirmReleaseResponse
// @Failure      403 {object}  map[string]interface{} "Not the agreement's freelancer"
// @Failure      409 {object}  map[string]interface{} "Employer has not approved"
// @Failure      500 {object}  map[string]interface{} "Ledger could not be reconciled"
// @Failure      502 {object}  map[string]interface{} "Settlement API error"
// @Failure      503 {object}  map[string]interface{} "Platform signer not configured"
// @Router       /agreements/{id}/confirm [post]
func (h *AgreementHandler) ConfirmRelease(c *gin.Context) {
	id, ok := parseID(c, "id", "agreement")
	if !ok {
		return
	}
	var req dto.ConfirmReleaseRequest
	req.AgreementID = id
	if !bindJSON(c, h.validator, &req) || !authorizeWallet(c, req.FreelancerAddress) {
		return
	}
	resp, err := h.service.ConfirmAndRelease(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err, "Failed to release funds")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func actionResponse(message string, agreement *models.Agreement) dto.AgreementActionResponse {
	resp := dto.AgreementActionResponse{
		Success:   true,
		Message:   message,
		Agreement: services.MapAgreementToResponse(agreement),
	}
	switch agreement.Status {
	case models.AgreementStatusActive:
		resp.NextStep = dto.NextStepDeliver
	case models.AgreementStatusWorkDelivered:
		resp.NextStep = dto.NextStepApprove
	case models.AgreementStatusEmployerApproved:
		resp.NextStep = dto.NextStepConfirm
	default:
		resp.NextStep = dto.NextStepDone
	}
	return resp
}
