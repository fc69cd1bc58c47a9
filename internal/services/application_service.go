package services

import (
	"context"
	"errors"
	"fmt"

	"escrow-marketplace/internal/models"
	"escrow-marketplace/internal/storage"
	"escrow-marketplace/internal/transport/dto"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type applicationService struct {
	store    storage.Store
	notifier Notifier
	logger   *zap.Logger
}

// NewApplicationService creates a new instance of ApplicationService.
func NewApplicationService(store storage.Store, notifier Notifier, logger *zap.Logger) ApplicationService {
	return &applicationService{store: store, notifier: notifier, logger: logger.Named("applications")}
}

// ApplyToJob creates a PENDING application for an OPEN job.
func (s *applicationService) ApplyToJob(ctx context.Context, req *dto.ApplyToJobRequest) (*models.Application, error) {
	repos := s.store.Repos()
	job, err := repos.Jobs.GetByID(ctx, req.JobID)
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("fetching job %s for application", req.JobID))
	}
	if job.Status != models.JobStatusOpen {
		return nil, fmt.Errorf("%w: job is not accepting applications (status %s)", ErrInvalidState, job.Status)
	}
	if job.EmployerAddress == req.FreelancerAddress {
		return nil, fmt.Errorf("%w: employer cannot apply to their own job", ErrForbidden)
	}

	if _, err := repos.Applications.GetByJobAndFreelancer(ctx, job.ID, req.FreelancerAddress); err == nil {
		return nil, fmt.Errorf("%w: already applied to job", ErrConflict)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, mapRepoError(err, "checking existing application")
	}

	freelancer, err := repos.Users.GetOrCreateByAddress(ctx, req.FreelancerAddress, models.UserRoleFreelancer)
	if err != nil {
		return nil, mapRepoError(err, "resolving freelancer")
	}
	app, err := repos.Applications.Create(ctx, &models.Application{
		JobID:             job.ID,
		FreelancerID:      freelancer.ID,
		FreelancerAddress: freelancer.WalletAddress,
		CoverLetter:       req.CoverLetter,
		PortfolioURL:      req.PortfolioURL,
		Status:            models.ApplicationStatusPending,
	})
	if err != nil {
		return nil, mapRepoError(err, "creating application")
	}

	s.notify(ctx, job.EmployerID, models.NotificationNewApplication,
		"New application",
		fmt.Sprintf("%s applied to %q.", freelancer.DisplayName, job.Title),
		"/jobs/"+job.ID.String()+"/applications")
	return app, nil
}

// RejectApplication rejects a PENDING application on behalf of the job's employer.
func (s *applicationService) RejectApplication(ctx context.Context, req *dto.RejectApplicationRequest) (*models.Application, error) {
	repos := s.store.Repos()
	app, err := repos.Applications.GetByID(ctx, req.ApplicationID)
	if err != nil {
		return nil, mapRepoError(err, "fetching application")
	}
	job, err := repos.Jobs.GetByID(ctx, app.JobID)
	if err != nil {
		return nil, mapRepoError(err, "fetching job for application")
	}
	if job.EmployerAddress != req.EmployerAddress {
		return nil, fmt.Errorf("%w: only the job's employer can reject applications", ErrForbidden)
	}
	rejected, err := repos.Applications.TransitionStatus(ctx, app.ID, models.ApplicationStatusPending, models.ApplicationStatusRejected)
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("rejecting %s application", app.Status))
	}

	s.notify(ctx, app.FreelancerID, models.NotificationApplicationRejected,
		"Application not selected",
		fmt.Sprintf("Your application for %q was not selected.", job.Title),
		"/jobs/"+job.ID.String())
	return rejected, nil
}

func (s *applicationService) ListApplicationsByJob(ctx context.Context, req *dto.ListApplicationsByJobRequest) ([]models.Application, error) {
	repos := s.store.Repos()
	if _, err := repos.Jobs.GetByID(ctx, req.JobID); err != nil {
		return nil, mapRepoError(err, "fetching job for application listing")
	}
	apps, err := repos.Applications.ListByJob(ctx, req.JobID)
	if err != nil {
		return nil, mapRepoError(err, "listing applications")
	}
	return apps, nil
}

func (s *applicationService) notify(ctx context.Context, userID uuid.UUID, kind models.NotificationType, title, message, actionURL string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, models.Notification{
		UserID:    userID,
		Type:      kind,
		Title:     title,
		Message:   message,
		ActionURL: ptrStr(actionURL),
	})
}
