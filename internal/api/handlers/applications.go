package handlers

import (
	"net/http"

	"escrow-marketplace/internal/services"
	"escrow-marketplace/internal/transport/dto"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ApplicationHandler holds dependencies for job application operations.
type ApplicationHandler struct {
	service   services.ApplicationService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewApplicationHandler creates a new ApplicationHandler.
func NewApplicationHandler(service services.ApplicationService, validate *validator.Validate, logger *zap.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		service:   service,
		validator: validate,
		logger:    logger,
	}
}

// ApplyToJob godoc
// @Summary      Apply to a job
// @Tags         applications
// @Accept       json
// @Produce      json
// @Param        id      path      string                true  "Job ID" Format(uuid)
// @Param        request body      dto.ApplyToJobRequest true  "Application"
// @Success      201 {object}  dto.ApplicationResponse
// @Failure      400 {object}  map[string]interface{} "Bad Request - Invalid input"
// @Failure      403 {object}  map[string]interface{} "Employer cannot apply"
// @Failure      409 {object}  map[string]interface{} "Job not open or already applied"
// @Router       /jobs/{id}/applications [post]
func (h *ApplicationHandler) ApplyToJob(c *gin.Context) {
	jobID, ok := parseID(c, "id", "job")
	if !ok {
		return
	}
	var req dto.ApplyToJobRequest
	req.JobID = jobID
	if !bindJSON(c, h.validator, &req) || !authorizeWallet(c, req.FreelancerAddress) {
		return
	}
	app, err := h.service.ApplyToJob(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err, "Failed to apply to job")
		return
	}
	c.JSON(http.StatusCreated, services.MapApplicationToResponse(app))
}

// ListApplicationsByJob godoc
// @Summary      List applications of a job
// @Tags         applications
// @Produce      json
// @Param        id path      string true  "Job ID" Format(uuid)
// @Success      200 {array}   dto.ApplicationResponse
// @Failure      404 {object}  map[string]interface{} "Job Not Found"
// @Router       /jobs/{id}/applications [get]
func (h *ApplicationHandler) ListApplicationsByJob(c *gin.Context) {
	jobID, ok := parseID(c, "id", "job")
	if !ok {
		return
	}
	apps, err := h.service.ListApplicationsByJob(c.Request.Context(), &dto.ListApplicationsByJobRequest{JobID: jobID})
	if err != nil {
		respondError(c, h.logger, err, "Failed to list applications")
		return
	}
	resp := make([]dto.ApplicationResponse, 0, len(apps))
	for i := range apps {
		resp = append(resp, services.MapApplicationToResponse(&apps[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// RejectApplication godoc
// @Summary      Reject an application
// @Tags         applications
// @Accept       json
// @Produce      json
// @Param        id      path      string                       true  "Application ID" Format(uuid)
// @Param        request body      dto.RejectApplicationRequest true  "Employer wallet"
// @Success      200 {object}  dto.ApplicationResponse
// @Failure      403 {object}  map[string]interface{} "Not the job's employer"
// @Failure      409 {object}  map[string]interface{} "Application is not pending"
// @Router       /applications/{id}/reject [post]
func (h *ApplicationHandler) RejectApplication(c *gin.Context) {
	appID, ok := parseID(c, "id", "application")
	if !ok {
		return
	}
	var req dto.RejectApplicationRequest
	req.ApplicationID = appID
	if !bindJSON(c, h.validator, &req) || !authorizeWallet(c, req.EmployerAddress) {
		return
	}
	app, err := h.service.RejectApplication(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err, "Failed to reject application")
		return
	}
	c.JSON(http.StatusOK, services.MapApplicationToResponse(app))
}
