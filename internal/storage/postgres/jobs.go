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

const jobColumns = `id, employer_id, employer_address, title, description, amount, status, engagement_id,
	escrow_contract_id, escrow_application_id, funding_tx_hash, created_at, updated_at, completed_at`

// JobRepo implements the storage.JobRepository interface using PostgreSQL.
type JobRepo struct {
	db     Querier
	logger *zap.Logger
}

// NewJobRepo creates a new JobRepo.
func NewJobRepo(db Querier, logger *zap.Logger) *JobRepo {
	return &JobRepo{db: db, logger: logger}
}

// WithTx creates a new JobRepo with the transaction.
func (r *JobRepo) WithTx(tx pgx.Tx) *JobRepo {
	return &JobRepo{db: tx, logger: r.logger}
}

// Compile-time check to ensure JobRepo implements JobRepository
var _ storage.JobRepository = (*JobRepo)(nil)

// Create saves a new job posting.
func (r *JobRepo) Create(ctx context.Context, job *models.Job) (*models.Job, error) {
	id := job.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	query := `
		INSERT INTO jobs (id, employer_id, employer_address, title, description, amount, status, engagement_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING ` + jobColumns

	rows, err := r.db.Query(ctx, query,
		id,
		job.EmployerID,
		job.EmployerAddress,
		job.Title,
		job.Description,
		job.Amount,
		string(job.Status),
		job.EngagementID,
	)
	created, err := collectOne[models.Job](rows, err)
	if err != nil {
		r.logger.Error("Create: failed to insert job", zap.String("employer", job.EmployerAddress), zap.Error(err))
		return nil, mapWriteError(err, "create job")
	}

	r.logger.Info("Job created", zap.String("job_id", created.ID.String()), zap.String("status", string(created.Status)))
	return created, nil
}

// GetByID retrieves a specific job by its ID.
func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	rows, err := r.db.Query(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := collectOne[models.Job](rows, err)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get job by ID %s: %w", id, err)
	}
	return job, nil
}

// List retrieves jobs matching the filter, newest first.
func (r *JobRepo) List(ctx context.Context, filter storage.JobFilter) ([]models.Job, error) {
	var conditions []string
	var args []any

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.EmployerAddress != nil {
		args = append(args, *filter.EmployerAddress)
		conditions = append(conditions, fmt.Sprintf("employer_address = $%d", len(args)))
	}

	query := buildListQuery(`SELECT `+jobColumns+` FROM jobs`, conditions, &args, "created_at DESC", filter.Offset, filter.Limit)

	rows, err := r.db.Query(ctx, query, args...)
	jobs, err := collectAll[models.Job](rows, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// guarded runs an UPDATE ... RETURNING and explains an empty result.
func (r *JobRepo) guarded(ctx context.Context, id uuid.UUID, query string, args ...any) (*models.Job, error) {
	rows, err := r.db.Query(ctx, query, args...)
	job, err := collectOne[models.Job](rows, err)
	if err == nil {
		return job, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, staleOrMissing(ctx, r.db, "jobs", id)
	}
	return nil, fmt.Errorf("failed to update job %s: %w", id, err)
}

// PrepareEscrow binds the application a pending deployment pays out to.
func (r *JobRepo) PrepareEscrow(ctx context.Context, id uuid.UUID, applicationID uuid.UUID) (*models.Job, error) {
	query := `
		UPDATE jobs SET escrow_application_id = $2, updated_at = NOW()
		WHERE id = $1 AND escrow_contract_id IS NULL AND status = $3
		RETURNING ` + jobColumns
	return r.guarded(ctx, id, query, id, applicationID, string(models.JobStatusOpen))
}

// SetEscrowContract records the settlement id. It never overwrites an existing one.
func (r *JobRepo) SetEscrowContract(ctx context.Context, id uuid.UUID, contractID string) (*models.Job, error) {
	query := `
		UPDATE jobs SET escrow_contract_id = $2, updated_at = NOW()
		WHERE id = $1 AND escrow_contract_id IS NULL AND escrow_application_id IS NOT NULL AND status = $3
		RETURNING ` + jobColumns
	return r.guarded(ctx, id, query, id, contractID, string(models.JobStatusOpen))
}

// MarkFunded moves an OPEN job with an escrow to FUNDED.
func (r *JobRepo) MarkFunded(ctx context.Context, id uuid.UUID, fundingTxHash *string) (*models.Job, error) {
	query := `
		UPDATE jobs SET status = $2, funding_tx_hash = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4 AND escrow_contract_id IS NOT NULL
		RETURNING ` + jobColumns
	return r.guarded(ctx, id, query, id, string(models.JobStatusFunded), fundingTxHash, string(models.JobStatusOpen))
}

// TransitionStatus applies to only when the current status is one of from.
func (r *JobRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from []models.JobStatus, to models.JobStatus) (*models.Job, error) {
	query := `
		UPDATE jobs
		SET status = $2,
		    completed_at = CASE WHEN $2 = 'COMPLETED' THEN NOW() ELSE completed_at END,
		    updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
		RETURNING ` + jobColumns
	return r.guarded(ctx, id, query, id, string(to), statusStrings(from))
}
