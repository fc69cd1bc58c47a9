package storage

import (
	"context"

	"escrow-marketplace/internal/models"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	// GetOrCreateByAddress returns the user owning the wallet, creating it on first sight.
	// LastSeenAt is refreshed on every call.
	GetOrCreateByAddress(ctx context.Context, address string, role models.UserRole) (*models.User, error)
	GetByAddress(ctx context.Context, address string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// JobFilter narrows job listings.
type JobFilter struct {
	Status          *models.JobStatus
	EmployerAddress *string
	Limit           int
	Offset          int
}

// JobRepository defines the interface for job data operations.
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) (*models.Job, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	List(ctx context.Context, filter JobFilter) ([]models.Job, error)
	// PrepareEscrow records the application an escrow deployment was built for.
	// It only applies to an OPEN job without an escrow id.
	PrepareEscrow(ctx context.Context, id uuid.UUID, applicationID uuid.UUID) (*models.Job, error)
	// SetEscrowContract stores the settlement id only while none is recorded and the
	// deployment has been prepared.
	SetEscrowContract(ctx context.Context, id uuid.UUID, contractID string) (*models.Job, error)
	// MarkFunded moves OPEN -> FUNDED for a job that already has an escrow id.
	MarkFunded(ctx context.Context, id uuid.UUID, fundingTxHash *string) (*models.Job, error)
	// TransitionStatus is a guarded update: it only applies when the current status is in from.
	TransitionStatus(ctx context.Context, id uuid.UUID, from []models.JobStatus, to models.JobStatus) (*models.Job, error)
}

// ApplicationRepository defines the interface for job application data operations.
type ApplicationRepository interface {
	Create(ctx context.Context, app *models.Application) (*models.Application, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error)
	GetByJobAndFreelancer(ctx context.Context, jobID uuid.UUID, freelancerAddress string) (*models.Application, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Application, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from models.ApplicationStatus, to models.ApplicationStatus) (*models.Application, error)
	// RejectPendingSiblings rejects every PENDING application of the job except keepID and returns the rows it changed.
	RejectPendingSiblings(ctx context.Context, jobID uuid.UUID, keepID uuid.UUID) ([]models.Application, error)
}

// AgreementFilter selects agreements by party. Exactly one field is expected.
type AgreementFilter struct {
	EmployerAddress   *string
	FreelancerAddress *string
}

// AgreementRepository defines the interface for agreement data operations.
// Every mutator is a guarded conditional update and returns ErrStaleState when the guard fails.
type AgreementRepository interface {
	// Create returns ErrConflict when the job already has a non-completed agreement.
	Create(ctx context.Context, agreement *models.Agreement) (*models.Agreement, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Agreement, error)
	// GetByJob returns the most recent agreement of the job.
	GetByJob(ctx context.Context, jobID uuid.UUID) (*models.Agreement, error)
	List(ctx context.Context, filter AgreementFilter) ([]models.Agreement, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, deliveryURL string, deliveryNote *string) (*models.Agreement, error)
	ResetToActive(ctx context.Context, id uuid.UUID, from []models.AgreementStatus) (*models.Agreement, error)
	MarkEmployerApproved(ctx context.Context, id uuid.UUID, from []models.AgreementStatus) (*models.Agreement, error)
	MarkFreelancerConfirmed(ctx context.Context, id uuid.UUID) (*models.Agreement, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) (*models.Agreement, error)
}

// TransactionRepository defines the interface for ledger row operations.
type TransactionRepository interface {
	// Append inserts the row unless one with the same tx hash, or the same agreement and
	// single-occurrence type, exists. It returns the stored row and whether it was created.
	Append(ctx context.Context, tx *models.Transaction) (*models.Transaction, bool, error)
	FindByAgreementAndType(ctx context.Context, agreementID uuid.UUID, txType models.TransactionType) (*models.Transaction, error)
	ListByAgreement(ctx context.Context, agreementID uuid.UUID) ([]models.Transaction, error)
}

// NotificationRepository defines the interface for notification data operations.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) (*models.Notification, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, id uuid.UUID, userID uuid.UUID) error
}

// SigningRecordRepository stores the platform signer audit trail.
type SigningRecordRepository interface {
	Record(ctx context.Context, rec *models.SigningRecord) error
}

// Repositories groups the repositories bound to one connection or transaction.
type Repositories struct {
	Users         UserRepository
	Jobs          JobRepository
	Applications  ApplicationRepository
	Agreements    AgreementRepository
	Transactions  TransactionRepository
	Notifications NotificationRepository
	Signing       SigningRecordRepository
}

// Store is the ledger store. InTx runs fn atomically: every write made through the
// repositories handed to fn commits together or not at all.
type Store interface {
	Repos() Repositories
	InTx(ctx context.Context, fn func(Repositories) error) error
}
