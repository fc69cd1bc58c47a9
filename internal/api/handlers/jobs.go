// internal/api/handlers/jobs.go
package handlers

import (
	"net/http"

	"escrow-marketplace/internal/services"
	"escrow-marketplace/internal/transport/dto"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// JobHandler holds dependencies for job operations.
type JobHandler struct {
	service   services.JobService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(service services.JobService, validate *validator.Validate, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		service:   service,
		validator: validate,
		logger:    logger,
	}
}

// CreateJob godoc
// @Summary      Create a new job posting
// @Description  Creates a DRAFT job, or an OPEN one when publish is true.
// @Tags         jobs
// @Accept       json
// @Produce      json
// @Param        job body      dto.CreateJobRequest true  "Job details"
// @Success      201 {object}  dto.JobResponse "Job created successfully"
// @Failure      400 {object}  map[string]interface{} "Bad Request - Invalid input"
// @Failure      500 {object}  map[string]interface{} "Internal Server Error"
// @Router       /jobs [post]
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if !bindJSON(c, h.validator, &req) || !authorizeWallet(c, req.EmployerAddress) {
		return
	}

	createdJob, err := h.service.CreateJob(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err, "Failed to create job")
		return
	}
	c.JSON(http.StatusCreated, services.MapJobToResponse(createdJob))
}

// PublishJob godoc
// @Summary      Publish a draft job
// @Tags         jobs
// @Accept       json
// @Produce      json
// @Param        id      path      string                true  "Job ID" Format(uuid)
// @Param        request body      dto.PublishJobRequest true  "Employer wallet"
// @Success      200 {object}  dto.JobResponse
// @Failure      403 {object}  map[string]interface{} "Not the job's employer"
// @Failure      409 {object}  map[string]interface{} "Job is not a draft"
// @Router       /jobs/{id}/publish [post]
func (h *JobHandler) PublishJob(c *gin.Context) {
	jobID, ok := parseID(c, "id", "job")
	if !ok {
		return
	}
	var req dto.PublishJobRequest
	req.JobID = jobID
	if !bindJSON(c, h.validator, &req) || !authorizeWallet(c, req.EmployerAddress) {
		return
	}
	job, err := h.service.PublishJob(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err, "Failed to publish job")
		return
	}
	c.JSON(http.StatusOK, services.MapJobToResponse(job))
}

// GetJobByID godoc
// @Summary      Get a job by ID
// @Description  Retrieves details for a specific job by its ID.
// @Tags         jobs
// @Produce      json
// @Param        id path      string true  "Job ID" Format(uuid)
// @Success      200 {object}  dto.JobResponse "Successfully retrieved job"
// @Failure      400 {object}  map[string]interface{} "Invalid ID format"
// @Failure      404 {object}  map[string]interface{} "Job Not Found"
// @Router       /jobs/{id} [get]
func (h *JobHandler) GetJobByID(c *gin.Context) {
	jobID, ok := parseID(c, "id", "job")
	if !ok {
		return
	}
	job, err := h.service.GetJobByID(c.Request.Context(), &dto.GetJobByIDRequest{ID: jobID})
	if err != nil {
		respondError(c, h.logger, err, "Failed to retrieve job")
		return
	}
	c.JSON(http.StatusOK, services.MapJobToResponse(job))
}

// ListJobs godoc
// @Summary      List jobs
// @Tags         jobs
// @Produce      json
// @Param        status           query string false "Filter by status"
// @Param        employer_address query string false "Filter by employer wallet"
// @Param        limit            query int    false "Page size" default(20)
// @Param        offset           query int    false "Offset" default(0)
// @Success      200 {array}   dto.JobResponse
// @Failure      400 {object}  map[string]interface{} "Invalid query parameters"
// @Router       /jobs [get]
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if !bindQuery(c, h.validator, &req) {
		return
	}
	jobs, err := h.service.ListJobs(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err, "Failed to list jobs")
		return
	}
	resp := make([]dto.JobResponse, 0, len(jobs))
	for i := range jobs {
		resp = append(resp, services.MapJobToResponse(&jobs[i]))
	}
	c.JSON(http.StatusOK, resp)
}
