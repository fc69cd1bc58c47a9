package routes_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"escrow-marketplace/internal/api/handlers"
	"escrow-marketplace/internal/models"
	"escrow-marketplace/internal/services"
	"escrow-marketplace/internal/transport/dto"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func setupJobRouter() (*gin.Engine, *MockJobService) {
	gin.SetMode(gin.TestMode)
	mockService := new(MockJobService)
	handler := handlers.NewJobHandler(mockService, validator.New(), zap.NewNop())
	router := gin.New()
	router.GET("/jobs", handler.ListJobs)
	router.POST("/jobs", handler.CreateJob)
	router.POST("/jobs/:id/publish", handler.PublishJob)
	return router, mockService
}

func performRaw(router http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestJobHandler_CreateJob_AcceptsStringAmount(t *testing.T) {
	router, mockService := setupJobRouter()
	mockService.On("CreateJob", mock.Anything, mock.MatchedBy(func(req *dto.CreateJobRequest) bool {
		return req.Amount.Equal(decimal.RequireFromString("120.5")) && req.Publish
	})).Return(&models.Job{
		ID:              uuid.New(),
		EmployerAddress: employer,
		Title:           "Landing page",
		Amount:          decimal.RequireFromString("120.5"),
		Status:          models.JobStatusOpen,
	}, nil)

	w, resp := performJSON(t, router, http.MethodPost, "/jobs", map[string]any{
		"employer_address": employer,
		"title":            "Landing page",
		"description":      "A responsive landing page",
		"amount":           "120.5",
		"publish":          true,
	}, "")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "120.50", resp["amount"])
	assert.Equal(t, "OPEN", resp["status"])
	mockService.AssertExpectations(t)
}

func TestJobHandler_CreateJob_MalformedBody(t *testing.T) {
	router, mockService := setupJobRouter()
	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{"title":`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid request body")
	mockService.AssertNotCalled(t, "CreateJob", mock.Anything, mock.Anything)
}

func TestJobHandler_PublishJob_Forbidden(t *testing.T) {
	router, mockService := setupJobRouter()
	jobID := uuid.New()
	mockService.On("PublishJob", mock.Anything, &dto.PublishJobRequest{JobID: jobID, EmployerAddress: freelancer}).
		Return(nil, services.ErrForbidden)

	w, _ := performJSON(t, router, http.MethodPost, "/jobs/"+jobID.String()+"/publish", map[string]any{
		"employer_address": freelancer,
	}, "")

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestJobHandler_ListJobs_RejectsUnknownStatus(t *testing.T) {
	router, mockService := setupJobRouter()

	w := performRaw(router, http.MethodGet, "/jobs?status=ARCHIVED")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "ListJobs", mock.Anything, mock.Anything)
}

func TestJobHandler_ListJobs_Defaults(t *testing.T) {
	router, mockService := setupJobRouter()
	mockService.On("ListJobs", mock.Anything, mock.MatchedBy(func(req *dto.ListJobsRequest) bool {
		return req.Limit == 20 && req.Offset == 0 && req.Status == nil
	})).Return([]models.Job{}, nil)

	w := performRaw(router, http.MethodGet, "/jobs")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}
