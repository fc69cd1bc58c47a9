package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// scanString unwraps the text forms a driver may hand to Scan.
func scanString(value interface{}, typeName string) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("failed to scan %s: value is not string or []byte", typeName)
	}
}

// --- Job Status Enum ---
type JobStatus string

const (
	JobStatusDraft     JobStatus = "DRAFT"
	JobStatusOpen      JobStatus = "OPEN"
	JobStatusFunded    JobStatus = "FUNDED"
	JobStatusAssigned  JobStatus = "ASSIGNED"
	JobStatusInReview  JobStatus = "IN_REVIEW"
	JobStatusCompleted JobStatus = "COMPLETED"
)

// Scan implements the sql.Scanner interface for JobStatus
func (s *JobStatus) Scan(value interface{}) error {
	str, err := scanString(value, "JobStatus")
	if err != nil {
		return err
	}
	v := JobStatus(str)
	switch v {
	case JobStatusDraft, JobStatusOpen, JobStatusFunded, JobStatusAssigned, JobStatusInReview, JobStatusCompleted:
		*s = v
		return nil
	default:
		return fmt.Errorf("invalid JobStatus value: %s", str)
	}
}

// Value implements the driver.Valuer interface for JobStatus
func (s JobStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// IsFundedOrLater reports whether escrow funding has already been recorded for the job.
func (s JobStatus) IsFundedOrLater() bool {
	switch s {
	case JobStatusFunded, JobStatusAssigned, JobStatusInReview, JobStatusCompleted:
		return true
	}
	return false
}

// --- Application Status Enum ---
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "PENDING"
	ApplicationStatusAccepted ApplicationStatus = "ACCEPTED"
	ApplicationStatusRejected ApplicationStatus = "REJECTED"
)

// Scan implements the sql.Scanner interface for ApplicationStatus
func (s *ApplicationStatus) Scan(value interface{}) error {
	str, err := scanString(value, "ApplicationStatus")
	if err != nil {
		return err
	}
	v := ApplicationStatus(str)
	switch v {
	case ApplicationStatusPending, ApplicationStatusAccepted, ApplicationStatusRejected:
		*s = v
		return nil
	default:
		return fmt.Errorf("invalid ApplicationStatus value: %s", str)
	}
}

// Value implements the driver.Valuer interface for ApplicationStatus
func (s ApplicationStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// --- Agreement Status Enum ---
type AgreementStatus string

const (
	AgreementStatusActive           AgreementStatus = "ACTIVE"
	AgreementStatusWorkDelivered    AgreementStatus = "WORK_DELIVERED"
	AgreementStatusEmployerApproved AgreementStatus = "EMPLOYER_APPROVED"
	AgreementStatusCompleted        AgreementStatus = "COMPLETED"
)

// Scan implements the sql.Scanner interface for AgreementStatus
func (s *AgreementStatus) Scan(value interface{}) error {
	str, err := scanString(value, "AgreementStatus")
	if err != nil {
		return err
	}
	v := AgreementStatus(str)
	switch v {
	case AgreementStatusActive, AgreementStatusWorkDelivered, AgreementStatusEmployerApproved, AgreementStatusCompleted:
		*s = v
		return nil
	default:
		return fmt.Errorf("invalid AgreementStatus value: %s", str)
	}
}

// Value implements the driver.Valuer interface for AgreementStatus
func (s AgreementStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// IsOpen is true for every status except COMPLETED. At most one open agreement exists per job.
func (s AgreementStatus) IsOpen() bool {
	return s != AgreementStatusCompleted
}

// IsApprovedOrLater reports whether the employer approval has been recorded.
func (s AgreementStatus) IsApprovedOrLater() bool {
	return s == AgreementStatusEmployerApproved || s == AgreementStatusCompleted
}

// --- Transaction Enums ---
type TransactionType string

const (
	TransactionTypeEscrowFunded      TransactionType = "ESCROW_FUNDED"
	TransactionTypeMilestoneApproved TransactionType = "MILESTONE_APPROVED"
	TransactionTypeRelease           TransactionType = "RELEASE"
	TransactionTypePlatformFee       TransactionType = "PLATFORM_FEE"
)

// Scan implements the sql.Scanner interface for TransactionType
func (t *TransactionType) Scan(value interface{}) error {
	str, err := scanString(value, "TransactionType")
	if err != nil {
		return err
	}
	v := TransactionType(str)
	switch v {
	case TransactionTypeEscrowFunded, TransactionTypeMilestoneApproved, TransactionTypeRelease, TransactionTypePlatformFee:
		*t = v
		return nil
	default:
		return fmt.Errorf("invalid TransactionType value: %s", str)
	}
}

// Value implements the driver.Valuer interface for TransactionType
func (t TransactionType) Value() (driver.Value, error) {
	return string(t), nil
}

type TransactionStatus string

const TransactionStatusConfirmed TransactionStatus = "CONFIRMED"

// Scan implements the sql.Scanner interface for TransactionStatus
func (s *TransactionStatus) Scan(value interface{}) error {
	str, err := scanString(value, "TransactionStatus")
	if err != nil {
		return err
	}
	if TransactionStatus(str) != TransactionStatusConfirmed {
		return fmt.Errorf("invalid TransactionStatus value: %s", str)
	}
	*s = TransactionStatusConfirmed
	return nil
}

// Value implements the driver.Valuer interface for TransactionStatus
func (s TransactionStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// --- User Role ---
type UserRole string

const (
	UserRoleEmployer   UserRole = "EMPLOYER"
	UserRoleFreelancer UserRole = "FREELANCER"
)

// Scan implements the sql.Scanner interface for UserRole
func (r *UserRole) Scan(value interface{}) error {
	str, err := scanString(value, "UserRole")
	if err != nil {
		return err
	}
	v := UserRole(str)
	switch v {
	case UserRoleEmployer, UserRoleFreelancer:
		*r = v
		return nil
	default:
		return fmt.Errorf("invalid UserRole value: %s", str)
	}
}

// Value implements the driver.Valuer interface for UserRole
func (r UserRole) Value() (driver.Value, error) {
	return string(r), nil
}

// --- Notification Type ---
type NotificationType string

const (
	NotificationNewApplication      NotificationType = "NEW_APPLICATION"
	NotificationApplicationAccepted NotificationType = "APPLICATION_ACCEPTED"
	NotificationApplicationRejected NotificationType = "APPLICATION_REJECTED"
	NotificationWorkDelivered       NotificationType = "WORK_DELIVERED"
	NotificationChangesRequested    NotificationType = "CHANGES_REQUESTED"
	NotificationWorkApproved        NotificationType = "WORK_APPROVED"
	NotificationPaymentReleased     NotificationType = "PAYMENT_RELEASED"
)

// User is a wallet-identified marketplace participant.
type User struct {
	ID            uuid.UUID `json:"id" db:"id"`
	WalletAddress string    `json:"wallet_address" db:"wallet_address"`
	DisplayName   string    `json:"display_name" db:"display_name"`
	Role          UserRole  `json:"role" db:"role"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	LastSeenAt    time.Time `json:"last_seen_at" db:"last_seen_at"`
}

// DefaultDisplayName is the name given to users created on first sight of their wallet.
func DefaultDisplayName(address string) string {
	if len(address) > 6 {
		address = address[:6]
	}
	return fmt.Sprintf("User %s...", address)
}

// Job is a fixed-price posting whose budget is custodied by one escrow.
type Job struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	EmployerID       uuid.UUID       `json:"employer_id" db:"employer_id"`
	EmployerAddress  string          `json:"employer_address" db:"employer_address"`
	Title            string          `json:"title" db:"title"`
	Description      string          `json:"description" db:"description"`
	Amount           decimal.Decimal `json:"amount" db:"amount"`
	Status           JobStatus       `json:"status" db:"status"`
	EngagementID     string          `json:"engagement_id" db:"engagement_id"`
	EscrowContractID *string         `json:"escrow_contract_id,omitempty" db:"escrow_contract_id"`
	FundingTxHash    *string         `json:"funding_tx_hash,omitempty" db:"funding_tx_hash"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty" db:"completed_at"`

	// EscrowApplicationID is the application whose freelancer the escrow pays.
	EscrowApplicationID *uuid.UUID `json:"escrow_application_id,omitempty" db:"escrow_application_id"`
}

// Application is a freelancer's bid on a job.
type Application struct {
	ID                uuid.UUID         `json:"id" db:"id"`
	JobID             uuid.UUID         `json:"job_id" db:"job_id"`
	FreelancerID      uuid.UUID         `json:"freelancer_id" db:"freelancer_id"`
	FreelancerAddress string            `json:"freelancer_address" db:"freelancer_address"`
	CoverLetter       string            `json:"cover_letter" db:"cover_letter"`
	PortfolioURL      *string           `json:"portfolio_url,omitempty" db:"portfolio_url"`
	Status            ApplicationStatus `json:"status" db:"status"`
	AppliedAt         time.Time         `json:"applied_at" db:"applied_at"`
	AcceptedAt        *time.Time        `json:"accepted_at,omitempty" db:"accepted_at"`
	RejectedAt        *time.Time        `json:"rejected_at,omitempty" db:"rejected_at"`
}

// Agreement binds one job to one accepted application and one escrow.
type Agreement struct {
	ID                    uuid.UUID       `json:"id" db:"id"`
	JobID                 uuid.UUID       `json:"job_id" db:"job_id"`
	ApplicationID         uuid.UUID       `json:"application_id" db:"application_id"`
	EmployerID            uuid.UUID       `json:"employer_id" db:"employer_id"`
	EmployerAddress       string          `json:"employer_address" db:"employer_address"`
	FreelancerID          uuid.UUID       `json:"freelancer_id" db:"freelancer_id"`
	FreelancerAddress     string          `json:"freelancer_address" db:"freelancer_address"`
	EscrowContractID      string          `json:"escrow_contract_id" db:"escrow_contract_id"`
	Status                AgreementStatus `json:"status" db:"status"`
	EmployerApproved      bool            `json:"employer_approved" db:"employer_approved"`
	EmployerApprovedAt    *time.Time      `json:"employer_approved_at,omitempty" db:"employer_approved_at"`
	FreelancerConfirmed   bool            `json:"freelancer_confirmed" db:"freelancer_confirmed"`
	FreelancerConfirmedAt *time.Time      `json:"freelancer_confirmed_at,omitempty" db:"freelancer_confirmed_at"`
	DeliveryURL           *string         `json:"delivery_url,omitempty" db:"delivery_url"`
	DeliveryNote          *string         `json:"delivery_note,omitempty" db:"delivery_note"`
	DeliveredAt           *time.Time      `json:"delivered_at,omitempty" db:"delivered_at"`
	CreatedAt             time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at" db:"updated_at"`
	CompletedAt           *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}

// Transaction is one immutable ledger row.
type Transaction struct {
	ID          uuid.UUID         `json:"id" db:"id"`
	AgreementID *uuid.UUID        `json:"agreement_id,omitempty" db:"agreement_id"`
	JobID       uuid.UUID         `json:"job_id" db:"job_id"`
	Type        TransactionType   `json:"type" db:"type"`
	Amount      decimal.Decimal   `json:"amount" db:"amount"`
	TxHash      string            `json:"tx_hash" db:"tx_hash"`
	Status      TransactionStatus `json:"status" db:"status"`
	FromAddress string            `json:"from_address" db:"from_address"`
	ToAddress   string            `json:"to_address" db:"to_address"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	ConfirmedAt *time.Time        `json:"confirmed_at,omitempty" db:"confirmed_at"`
}

// Notification is an in-app message addressed to one user.
type Notification struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	UserID    uuid.UUID        `json:"user_id" db:"user_id"`
	Type      NotificationType `json:"type" db:"type"`
	Title     string           `json:"title" db:"title"`
	Message   string           `json:"message" db:"message"`
	ActionURL *string          `json:"action_url,omitempty" db:"action_url"`
	Read      bool             `json:"read" db:"read"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

// SigningRecord audits every payload signed with the platform key.
type SigningRecord struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	AgreementID   *uuid.UUID `json:"agreement_id,omitempty" db:"agreement_id"`
	Purpose       string     `json:"purpose" db:"purpose"`
	SignerAddress string     `json:"signer_address" db:"signer_address"`
	PayloadHash   string     `json:"payload_hash" db:"payload_hash"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}
