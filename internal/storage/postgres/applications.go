package postgres

import (
	"context"
	"errors"
	"fmt"

	"escrow-marketplace/internal/models"
	"escrow-marketplace/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const applicationColumns = `id, job_id, freelancer_id, freelancer_address, cover_letter, portfolio_url, status,
	applied_at, accepted_at, rejected_at`

// ApplicationRepo implements the storage.ApplicationRepository interface using PostgreSQL.
type ApplicationRepo struct {
	db     Querier
	logger *zap.Logger
}

// NewApplicationRepo creates a new ApplicationRepo.
func NewApplicationRepo(db Querier, logger *zap.Logger) *ApplicationRepo {
	return &ApplicationRepo{db: db, logger: logger}
}

// WithTx returns an ApplicationRepo bound to the transaction.
func (r *ApplicationRepo) WithTx(tx pgx.Tx) *ApplicationRepo {
	return &ApplicationRepo{db: tx, logger: r.logger}
}

var _ storage.ApplicationRepository = (*ApplicationRepo)(nil)

func (r *ApplicationRepo) Create(ctx context.Context, app *models.Application) (*models.Application, error) {
	id := app.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	query := `
		INSERT INTO applications (id, job_id, freelancer_id, freelancer_address, cover_letter, portfolio_url, status, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING ` + applicationColumns

	rows, err := r.db.Query(ctx, query, id, app.JobID, app.FreelancerID, app.FreelancerAddress,
		app.CoverLetter, app.PortfolioURL, string(app.Status))
	created, err := collectOne[models.Application](rows, err)
	if err != nil {
		r.logger.Warn("Create: failed to insert application",
			zap.String("job_id", app.JobID.String()), zap.String("freelancer", app.FreelancerAddress), zap.Error(err))
		return nil, mapWriteError(err, "create application")
	}
	return created, nil
}

func (r *ApplicationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	rows, err := r.db.Query(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)
	app, err := collectOne[models.Application](rows, err)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get application %s: %w", id, err)
	}
	return app, nil
}

func (r *ApplicationRepo) GetByJobAndFreelancer(ctx context.Context, jobID uuid.UUID, freelancerAddress string) (*models.Application, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE job_id = $1 AND freelancer_address = $2`,
		jobID, freelancerAddress)
	app, err := collectOne[models.Application](rows, err)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get application for job %s: %w", jobID, err)
	}
	return app, nil
}

func (r *ApplicationRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Application, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE job_id = $1 ORDER BY applied_at ASC`, jobID)
	apps, err := collectAll[models.Application](rows, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications for job %s: %w", jobID, err)
	}
	return apps, nil
}

const applicationStatusSet = `
	status = $2,
	accepted_at = CASE WHEN $2 = 'ACCEPTED' THEN NOW() ELSE accepted_at END,
	rejected_at = CASE WHEN $2 = 'REJECTED' THEN NOW() ELSE rejected_at END`

func (r *ApplicationRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from models.ApplicationStatus, to models.ApplicationStatus) (*models.Application, error) {
	query := `UPDATE applications SET ` + applicationStatusSet + `
		WHERE id = $1 AND status = $3
		RETURNING ` + applicationColumns

	rows, err := r.db.Query(ctx, query, id, string(to), string(from))
	app, err := collectOne[models.Application](rows, err)
	if err == nil {
		return app, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, staleOrMissing(ctx, r.db, "applications", id)
	}
	return nil, fmt.Errorf("failed to update application %s: %w", id, err)
}

// RejectPendingSiblings rejects the other PENDING applications of a job.
func (r *ApplicationRepo) RejectPendingSiblings(ctx context.Context, jobID uuid.UUID, keepID uuid.UUID) ([]models.Application, error) {
	query := `UPDATE applications SET ` + applicationStatusSet + `
		WHERE job_id = $1 AND status = $3 AND id <> $4
		RETURNING ` + applicationColumns

	rows, err := r.db.Query(ctx, query, jobID, string(models.ApplicationStatusRejected),
		string(models.ApplicationStatusPending), keepID)
	apps, err := collectAll[models.Application](rows, err)
	if err != nil {
		r.logger.Error("RejectPendingSiblings: update failed", zap.String("job_id", jobID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to reject applications of job %s: %w", jobID, err)
	}
	return apps, nil
}
