package services

import (
	"context"
	"fmt"
	"time"

	"escrow-marketplace/internal/models"
	"escrow-marketplace/internal/storage"
	"escrow-marketplace/internal/transport/dto"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type jobService struct {
	store  storage.Store
	logger *zap.Logger
}

// NewJobService creates a new instance of JobService.
func NewJobService(store storage.Store, logger *zap.Logger) JobService {
	return &jobService{store: store, logger: logger.Named("jobs")}
}

func (s *jobService) CreateJob(ctx context.Context, req *dto.CreateJobRequest) (*models.Job, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if !req.Amount.Equal(req.Amount.Round(2)) {
		return nil, fmt.Errorf("%w: amount supports at most two decimals", ErrValidation)
	}

	repos := s.store.Repos()
	employer, err := repos.Users.GetOrCreateByAddress(ctx, req.EmployerAddress, models.UserRoleEmployer)
	if err != nil {
		return nil, mapRepoError(err, "resolving employer")
	}

	status := models.JobStatusDraft
	if req.Publish {
		status = models.JobStatusOpen
	}
	job, err := repos.Jobs.Create(ctx, &models.Job{
		EmployerID:      employer.ID,
		EmployerAddress: employer.WalletAddress,
		Title:           req.Title,
		Description:     req.Description,
		Amount:          req.Amount,
		Status:          status,
		EngagementID:    newEngagementID(),
	})
	if err != nil {
		s.logger.Error("Error creating job", zap.String("employer", req.EmployerAddress), zap.Error(err))
		return nil, mapRepoError(err, "creating job")
	}
	return job, nil
}

func (s *jobService) PublishJob(ctx context.Context, req *dto.PublishJobRequest) (*models.Job, error) {
	repos := s.store.Repos()
	job, err := repos.Jobs.GetByID(ctx, req.JobID)
	if err != nil {
		return nil, mapRepoError(err, "getting job for publish")
	}
	if job.EmployerAddress != req.EmployerAddress {
		return nil, fmt.Errorf("%w: only the job's employer can publish it", ErrForbidden)
	}
	if job.Status == models.JobStatusOpen {
		return job, nil
	}
	published, err := repos.Jobs.TransitionStatus(ctx, job.ID, []models.JobStatus{models.JobStatusDraft}, models.JobStatusOpen)
	if err != nil {
		return nil, mapRepoError(err, "publishing job")
	}
	return published, nil
}

func (s *jobService) GetJobByID(ctx context.Context, req *dto.GetJobByIDRequest) (*models.Job, error) {
	job, err := s.store.Repos().Jobs.GetByID(ctx, req.ID)
	if err != nil {
		return nil, mapRepoError(err, "getting job by ID")
	}
	return job, nil
}

func (s *jobService) ListJobs(ctx context.Context, req *dto.ListJobsRequest) ([]models.Job, error) {
	jobs, err := s.store.Repos().Jobs.List(ctx, storage.JobFilter{
		Status:          req.Status,
		EmployerAddress: req.EmployerAddress,
		Limit:           req.Limit,
		Offset:          req.Offset,
	})
	if err != nil {
		s.logger.Error("Error listing jobs", zap.Error(err))
		return nil, mapRepoError(err, "listing jobs")
	}
	return jobs, nil
}

// newEngagementID returns the rail-facing identifier of a job, eng_<unix>_<random>.
func newEngagementID() string {
	return fmt.Sprintf("eng_%d_%s", time.Now().Unix(), uuid.NewString()[:8])
}
