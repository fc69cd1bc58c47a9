package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"escrow-marketplace/internal/models"
	"escrow-marketplace/internal/services"
	"escrow-marketplace/internal/transport/dto"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func generateTestToken(wallet string, secret string, expiration time.Duration) (string, error) {
	expirationTime := time.Now().Add(expiration)
	claims := &jwt.RegisteredClaims{
		Subject:   wallet,
		ExpiresAt: jwt.NewNumericDate(expirationTime),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// performJSON sends body as JSON and decodes the response into a map.
func performJSON(t *testing.T, router http.Handler, method, path string, body any, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 && w.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

// MockEscrowService is a mock implementation of services.EscrowService
type MockEscrowService struct {
	mock.Mock
}

func (m *MockEscrowService) DeployEscrow(ctx context.Context, req *dto.DeployEscrowRequest) (*dto.DeployEscrowResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.DeployEscrowResponse), args.Error(1)
}

func (m *MockEscrowService) SendDeploy(ctx context.Context, req *dto.SendDeployRequest) (*dto.SendDeployResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.SendDeployResponse), args.Error(1)
}

func (m *MockEscrowService) FundEscrow(ctx context.Context, req *dto.FundEscrowRequest) (*dto.FundEscrowResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.FundEscrowResponse), args.Error(1)
}

func (m *MockEscrowService) SendFund(ctx context.Context, req *dto.SendFundRequest) (*dto.SendFundResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.SendFundResponse), args.Error(1)
}

func (m *MockEscrowService) FinalizeAccept(ctx context.Context, req *dto.FinalizeAcceptRequest) (*dto.FinalizeAcceptResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.FinalizeAcceptResponse), args.Error(1)
}

func (m *MockEscrowService) ApproveMilestone(ctx context.Context, req *dto.ApproveMilestoneRequest) (*dto.ApproveMilestoneResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ApproveMilestoneResponse), args.Error(1)
}

func (m *MockEscrowService) SendApproval(ctx context.Context, req *dto.SendApprovalRequest) (*dto.SendApprovalResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.SendApprovalResponse), args.Error(1)
}

var _ services.EscrowService = (*MockEscrowService)(nil)

// MockAgreementService is a mock implementation of services.AgreementService
type MockAgreementService struct {
	mock.Mock
}

func (m *MockAgreementService) GetAgreementByID(ctx context.Context, req *dto.GetAgreementByIDRequest) (*models.Agreement, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Agreement), args.Error(1)
}

func (m *MockAgreementService) ListAgreements(ctx context.Context, req *dto.ListAgreementsRequest) ([]models.Agreement, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Agreement), args.Error(1)
}

func (m *MockAgreementService) ListTransactions(ctx context.Context, req *dto.ListTransactionsRequest) ([]models.Transaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Transaction), args.Error(1)
}

func (m *MockAgreementService) DeliverWork(ctx context.Context, req *dto.DeliverWorkRequest) (*models.Agreement, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Agreement), args.Error(1)
}

func (m *MockAgreementService) RequestChanges(ctx context.Context, req *dto.RequestChangesRequest) (*models.Agreement, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Agreement), args.Error(1)
}

func (m *MockAgreementService) ConfirmAndRelease(ctx context.Context, req *dto.ConfirmReleaseRequest) (*dto.ConfirmReleaseResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ConfirmReleaseResponse), args.Error(1)
}

var _ services.AgreementService = (*MockAgreementService)(nil)

// MockJobService is a mock implementation of services.JobService
type MockJobService struct {
	mock.Mock
}

func (m *MockJobService) CreateJob(ctx context.Context, req *dto.CreateJobRequest) (*models.Job, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *MockJobService) PublishJob(ctx context.Context, req *dto.PublishJobRequest) (*models.Job, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *MockJobService) GetJobByID(ctx context.Context, req *dto.GetJobByIDRequest) (*models.Job, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *MockJobService) ListJobs(ctx context.Context, req *dto.ListJobsRequest) ([]models.Job, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Job), args.Error(1)
}

var _ services.JobService = (*MockJobService)(nil)

// MockEscrowHandler records which escrow routes were hit.
type MockEscrowHandler struct {
	mock.Mock
}

func (m *MockEscrowHandler) DeployEscrow(c *gin.Context)     { m.Called(c) }
func (m *MockEscrowHandler) SendDeploy(c *gin.Context)       { m.Called(c) }
func (m *MockEscrowHandler) FundEscrow(c *gin.Context)       { m.Called(c) }
func (m *MockEscrowHandler) SendFund(c *gin.Context)         { m.Called(c) }
func (m *MockEscrowHandler) FinalizeAccept(c *gin.Context)   { m.Called(c) }
func (m *MockEscrowHandler) ApproveMilestone(c *gin.Context) { m.Called(c) }
func (m *MockEscrowHandler) SendApproval(c *gin.Context)     { m.Called(c) }
