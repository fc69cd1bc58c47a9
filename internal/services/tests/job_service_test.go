package services_test

import (
	"context"
	"strings"
	"testing"

	"escrow-marketplace/internal/models"
	"escrow-marketplace/internal/notify"
	"escrow-marketplace/internal/services"
	"escrow-marketplace/internal/storage/memory"
	"escrow-marketplace/internal/transport/dto"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupJobServiceTest(t *testing.T) (context.Context, services.JobService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return context.Background(), services.NewJobService(store, zap.NewNop()), store
}

func TestJobService_CreateJob_Success(t *testing.T) {
	ctx, jobService, store := setupJobServiceTest(t)

	job, err := jobService.CreateJob(ctx, &dto.CreateJobRequest{
		EmployerAddress: employerAddr,
		Title:           "Logo design",
		Description:     "A new logo for the brand",
		Amount:          decimal.RequireFromString("75.5"),
	})

	require.NoError(t, err)
	assert.Equal(t, models.JobStatusDraft, job.Status)
	assert.Equal(t, "75.50", job.Amount.StringFixed(2))
	assert.True(t, strings.HasPrefix(job.EngagementID, "eng_"))

	employer, err := store.Repos().Users.GetByAddress(ctx, employerAddr)
	require.NoError(t, err)
	assert.Equal(t, employer.ID, job.EmployerID)
	assert.Equal(t, models.UserRoleEmployer, employer.Role)
}

func TestJobService_CreateJob_InvalidAmount(t *testing.T) {
	ctx, jobService, _ := setupJobServiceTest(t)

	for _, amount := range []string{"0", "-5", "10.555"} {
		_, err := jobService.CreateJob(ctx, &dto.CreateJobRequest{
			EmployerAddress: employerAddr,
			Title:           "Logo design",
			Description:     "A new logo for the brand",
			Amount:          decimal.RequireFromString(amount),
		})
		assert.ErrorIs(t, err, services.ErrValidation, "amount %s", amount)
	}
}

func TestJobService_PublishJob(t *testing.T) {
	ctx, jobService, _ := setupJobServiceTest(t)
	job, err := jobService.CreateJob(ctx, &dto.CreateJobRequest{
		EmployerAddress: employerAddr,
		Title:           "Logo design",
		Description:     "A new logo for the brand",
		Amount:          decimal.NewFromInt(50),
	})
	require.NoError(t, err)

	_, err = jobService.PublishJob(ctx, &dto.PublishJobRequest{JobID: job.ID, EmployerAddress: freelancerAddr})
	assert.ErrorIs(t, err, services.ErrForbidden)

	published, err := jobService.PublishJob(ctx, &dto.PublishJobRequest{JobID: job.ID, EmployerAddress: employerAddr})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusOpen, published.Status)

	again, err := jobService.PublishJob(ctx, &dto.PublishJobRequest{JobID: job.ID, EmployerAddress: employerAddr})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusOpen, again.Status)
}

func TestJobService_GetJobByID_NotFound(t *testing.T) {
	ctx, jobService, _ := setupJobServiceTest(t)

	_, err := jobService.GetJobByID(ctx, &dto.GetJobByIDRequest{ID: uuid.New()})

	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestJobService_ListJobs_FiltersByStatus(t *testing.T) {
	ctx, jobService, _ := setupJobServiceTest(t)
	for _, publish := range []bool{true, false, true} {
		_, err := jobService.CreateJob(ctx, &dto.CreateJobRequest{
			EmployerAddress: employerAddr,
			Title:           "Logo design",
			Description:     "A new logo for the brand",
			Amount:          decimal.NewFromInt(50),
			Publish:         publish,
		})
		require.NoError(t, err)
	}
	open := models.JobStatusOpen

	jobs, err := jobService.ListJobs(ctx, &dto.ListJobsRequest{Limit: 20, Status: &open})

	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestApplicationService_ApplyToJob(t *testing.T) {
	f := setupFixture(t)
	job, apps := f.openJob(t, "100.00", freelancerAddr)

	assert.Equal(t, models.ApplicationStatusPending, apps[0].Status)
	sent := f.notifier.ofType(models.NotificationNewApplication)
	require.Len(t, sent, 1)
	assert.Equal(t, job.EmployerID, sent[0].UserID)

	_, err := f.applications.ApplyToJob(f.ctx, &dto.ApplyToJobRequest{
		JobID: job.ID, FreelancerAddress: freelancerAddr, CoverLetter: "Applying a second time",
	})
	assert.ErrorIs(t, err, services.ErrConflict)

	_, err = f.applications.ApplyToJob(f.ctx, &dto.ApplyToJobRequest{
		JobID: job.ID, FreelancerAddress: employerAddr, CoverLetter: "Hiring myself for this",
	})
	assert.ErrorIs(t, err, services.ErrForbidden)
}

func TestApplicationService_ApplyToDraftJob(t *testing.T) {
	f := setupFixture(t)
	job, err := f.jobs.CreateJob(f.ctx, &dto.CreateJobRequest{
		EmployerAddress: employerAddr,
		Title:           "Logo design",
		Description:     "A new logo for the brand",
		Amount:          decimal.NewFromInt(50),
	})
	require.NoError(t, err)

	_, err = f.applications.ApplyToJob(f.ctx, &dto.ApplyToJobRequest{
		JobID: job.ID, FreelancerAddress: freelancerAddr, CoverLetter: "I would love to help",
	})

	assert.ErrorIs(t, err, services.ErrInvalidState)
}

func TestApplicationService_RejectApplication(t *testing.T) {
	f := setupFixture(t)
	_, apps := f.openJob(t, "100.00", freelancerAddr)

	_, err := f.applications.RejectApplication(f.ctx, &dto.RejectApplicationRequest{ApplicationID: apps[0].ID, EmployerAddress: runnerUpAddr})
	assert.ErrorIs(t, err, services.ErrForbidden)

	rejected, err := f.applications.RejectApplication(f.ctx, &dto.RejectApplicationRequest{ApplicationID: apps[0].ID, EmployerAddress: employerAddr})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusRejected, rejected.Status)
	assert.Len(t, f.notifier.ofType(models.NotificationApplicationRejected), 1)

	_, err = f.applications.RejectApplication(f.ctx, &dto.RejectApplicationRequest{ApplicationID: apps[0].ID, EmployerAddress: employerAddr})
	assert.ErrorIs(t, err, services.ErrInvalidState)
}

func TestNotificationService_ListAndMarkRead(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	notifier := notify.NewStoreNotifier(store.Repos().Notifications, zap.NewNop(), nil)
	userID := uuid.New()
	for i := 0; i < 3; i++ {
		notifier.Notify(ctx, models.Notification{UserID: userID, Type: models.NotificationWorkApproved, Title: "Work approved"})
	}
	notifier.Close()
	notificationService := services.NewNotificationService(store)

	items, unread, err := notificationService.List(ctx, &dto.ListNotificationsRequest{UserID: userID})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, 3, unread)

	require.NoError(t, notificationService.MarkRead(ctx, &dto.MarkNotificationReadRequest{NotificationID: items[0].ID, UserID: userID}))
	_, unread, err = notificationService.List(ctx, &dto.ListNotificationsRequest{UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	err = notificationService.MarkRead(ctx, &dto.MarkNotificationReadRequest{NotificationID: items[1].ID, UserID: uuid.New()})
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestUserService_GetByAddress(t *testing.T) {
	f := setupFixture(t)
	f.openJob(t, "100.00", freelancerAddr)
	userService := services.NewUserService(f.store)

	user, err := userService.GetByAddress(f.ctx, &dto.GetUserByAddressRequest{WalletAddress: freelancerAddr})
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleFreelancer, user.Role)
	assert.Equal(t, models.DefaultDisplayName(freelancerAddr), user.DisplayName)

	_, err = userService.GetByAddress(f.ctx, &dto.GetUserByAddressRequest{WalletAddress: "GUNKNOWN"})
	assert.ErrorIs(t, err, services.ErrNotFound)
}
