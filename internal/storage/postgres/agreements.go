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

const agreementColumns = `id, job_id, application_id, employer_id, employer_address, freelancer_id, freelancer_address,
	escrow_contract_id, status, employer_approved, employer_approved_at, freelancer_confirmed, freelancer_confirmed_at,
	delivery_url, delivery_note, delivered_at, created_at, updated_at, completed_at`

// AgreementRepo implements the storage.AgreementRepository interface using PostgreSQL.
type AgreementRepo struct {
	db     Querier
	logger *zap.Logger
}

// NewAgreementRepo creates a new AgreementRepo.
func NewAgreementRepo(db Querier, logger *zap.Logger) *AgreementRepo {
	return &AgreementRepo{db: db, logger: logger}
}

// WithTx returns an AgreementRepo bound to the transaction.
func (r *AgreementRepo) WithTx(tx pgx.Tx) *AgreementRepo {
	return &AgreementRepo{db: tx, logger: r.logger}
}

var _ storage.AgreementRepository = (*AgreementRepo)(nil)

// Create inserts an agreement. The partial unique index agreements_one_open_per_job
// rejects a second non-completed agreement for the same job.
func (r *AgreementRepo) Create(ctx context.Context, a *models.Agreement) (*models.Agreement, error) {
	id := a.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	query := `
		INSERT INTO agreements (id, job_id, application_id, employer_id, employer_address, freelancer_id,
			freelancer_address, escrow_contract_id, status, employer_approved, freelancer_confirmed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, FALSE, NOW(), NOW())
		RETURNING ` + agreementColumns

	rows, err := r.db.Query(ctx, query, id, a.JobID, a.ApplicationID, a.EmployerID, a.EmployerAddress,
		a.FreelancerID, a.FreelancerAddress, a.EscrowContractID, string(a.Status))
	created, err := collectOne[models.Agreement](rows, err)
	if err != nil {
		r.logger.Warn("Create: failed to insert agreement", zap.String("job_id", a.JobID.String()), zap.Error(err))
		return nil, mapWriteError(err, "create agreement")
	}
	return created, nil
}

func (r *AgreementRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Agreement, error) {
	rows, err := r.db.Query(ctx, `SELECT `+agreementColumns+` FROM agreements WHERE id = $1`, id)
	a, err := collectOne[models.Agreement](rows, err)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get agreement %s: %w", id, err)
	}
	return a, nil
}

// GetByJob prefers the open agreement and falls back to the newest completed one.
func (r *AgreementRepo) GetByJob(ctx context.Context, jobID uuid.UUID) (*models.Agreement, error) {
	query := `SELECT ` + agreementColumns + ` FROM agreements WHERE job_id = $1
		ORDER BY (status <> 'COMPLETED') DESC, created_at DESC LIMIT 1`
	rows, err := r.db.Query(ctx, query, jobID)
	a, err := collectOne[models.Agreement](rows, err)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get agreement for job %s: %w", jobID, err)
	}
	return a, nil
}

func (r *AgreementRepo) List(ctx context.Context, filter storage.AgreementFilter) ([]models.Agreement, error) {
	var conditions []string
	var args []any
	if filter.EmployerAddress != nil {
		args = append(args, *filter.EmployerAddress)
		conditions = append(conditions, fmt.Sprintf("employer_address = $%d", len(args)))
	}
	if filter.FreelancerAddress != nil {
		args = append(args, *filter.FreelancerAddress)
		conditions = append(conditions, fmt.Sprintf("freelancer_address = $%d", len(args)))
	}
	query := buildListQuery(`SELECT `+agreementColumns+` FROM agreements`, conditions, &args, "created_at DESC", 0, 0)

	rows, err := r.db.Query(ctx, query, args...)
	out, err := collectAll[models.Agreement](rows, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list agreements: %w", err)
	}
	return out, nil
}

func (r *AgreementRepo) guarded(ctx context.Context, id uuid.UUID, query string, args ...any) (*models.Agreement, error) {
	rows, err := r.db.Query(ctx, query, args...)
	a, err := collectOne[models.Agreement](rows, err)
	if err == nil {
		return a, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, staleOrMissing(ctx, r.db, "agreements", id)
	}
	return nil, fmt.Errorf("failed to update agreement %s: %w", id, err)
}

func (r *AgreementRepo) MarkDelivered(ctx context.Context, id uuid.UUID, deliveryURL string, deliveryNote *string) (*models.Agreement, error) {
	query := `
		UPDATE agreements
		SET status = $2, delivery_url = $3, delivery_note = $4, delivered_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $5
		RETURNING ` + agreementColumns
	return r.guarded(ctx, id, query, id, string(models.AgreementStatusWorkDelivered), deliveryURL, deliveryNote,
		string(models.AgreementStatusActive))
}

// ResetToActive clears the delivery and any approval so the freelancer can redeliver.
// Once the freelancer has confirmed, a release may be in flight and the reset is refused.
func (r *AgreementRepo) ResetToActive(ctx context.Context, id uuid.UUID, from []models.AgreementStatus) (*models.Agreement, error) {
	query := `
		UPDATE agreements
		SET status = $2, delivery_url = NULL, delivery_note = NULL, delivered_at = NULL,
		    employer_approved = FALSE, employer_approved_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3) AND NOT freelancer_confirmed
		RETURNING ` + agreementColumns
	return r.guarded(ctx, id, query, id, string(models.AgreementStatusActive), statusStrings(from))
}

func (r *AgreementRepo) MarkEmployerApproved(ctx context.Context, id uuid.UUID, from []models.AgreementStatus) (*models.Agreement, error) {
	query := `
		UPDATE agreements
		SET status = $2, employer_approved = TRUE, employer_approved_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
		RETURNING ` + agreementColumns
	return r.guarded(ctx, id, query, id, string(models.AgreementStatusEmployerApproved), statusStrings(from))
}

func (r *AgreementRepo) MarkFreelancerConfirmed(ctx context.Context, id uuid.UUID) (*models.Agreement, error) {
	query := `
		UPDATE agreements
		SET freelancer_confirmed = TRUE,
		    freelancer_confirmed_at = COALESCE(freelancer_confirmed_at, NOW()),
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + agreementColumns
	return r.guarded(ctx, id, query, id, string(models.AgreementStatusEmployerApproved))
}

func (r *AgreementRepo) MarkCompleted(ctx context.Context, id uuid.UUID) (*models.Agreement, error) {
	query := `
		UPDATE agreements
		SET status = $2, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $3
		RETURNING ` + agreementColumns
	return r.guarded(ctx, id, query, id, string(models.AgreementStatusCompleted),
		string(models.AgreementStatusEmployerApproved))
}
