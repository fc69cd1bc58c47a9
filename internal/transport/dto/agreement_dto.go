package dto

import (
	"time"

	"github.com/google/uuid"
)

// --- Agreement Request DTOs ---

// DeliverWorkRequest is submitted by the freelancer of an ACTIVE agreement.
type DeliverWorkRequest struct {
	AgreementID       uuid.UUID `json:"-" validate:"required"`
	FreelancerAddress string    `json:"freelancer_address" validate:"required,min=3"`
	DeliveryURL       string    `json:"delivery_url" validate:"required,url,max=2048"`
	DeliveryNote      *string   `json:"delivery_note,omitempty" validate:"omitempty,max=5000"`
}

// RequestChangesRequest sends delivered work back to the freelancer.
type RequestChangesRequest struct {
	AgreementID     uuid.UUID `json:"-" validate:"required"`
	EmployerAddress string    `json:"employer_address" validate:"required,min=3"`
	Feedback        string    `json:"feedback" validate:"required,min=1,max=5000"`
}

// ConfirmReleaseRequest is the freelancer's confirmation that triggers the release.
type ConfirmReleaseRequest struct {
	AgreementID       uuid.UUID `json:"-" validate:"required"`
	FreelancerAddress string    `json:"freelancer_address" validate:"required,min=3"`
}

type GetAgreementByIDRequest struct {
	ID uuid.UUID `json:"-" validate:"required"`
}

// ListAgreementsRequest requires exactly one party address.
type ListAgreementsRequest struct {
	FreelancerAddress *string `form:"freelancer_address" validate:"required_without=EmployerAddress,excluded_with=EmployerAddress"`
	EmployerAddress   *string `form:"employer_address" validate:"required_without=FreelancerAddress"`
}

type ListTransactionsRequest struct {
	AgreementID uuid.UUID `json:"-" validate:"required"`
}

// --- Agreement Response DTOs ---

type AgreementResponse struct {
	ID                    uuid.UUID  `json:"id"`
	JobID                 uuid.UUID  `json:"job_id"`
	ApplicationID         uuid.UUID  `json:"application_id"`
	EmployerAddress       string     `json:"employer_address"`
	FreelancerAddress     string     `json:"freelancer_address"`
	EscrowContractID      string     `json:"escrow_contract_id"`
	Status                string     `json:"status"`
	EmployerApproved      bool       `json:"employer_approved"`
	EmployerApprovedAt    *time.Time `json:"employer_approved_at,omitempty"`
	FreelancerConfirmed   bool       `json:"freelancer_confirmed"`
	FreelancerConfirmedAt *time.Time `json:"freelancer_confirmed_at,omitempty"`
	DeliveryURL           *string    `json:"delivery_url,omitempty"`
	DeliveryNote          *string    `json:"delivery_note,omitempty"`
	DeliveredAt           *time.Time `json:"delivered_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
}

type TransactionResponse struct {
	ID          uuid.UUID  `json:"id"`
	AgreementID *uuid.UUID `json:"agreement_id,omitempty"`
	JobID       uuid.UUID  `json:"job_id"`
	Type        string     `json:"type"`
	Amount      string     `json:"amount"`
	TxHash      string     `json:"tx_hash"`
	Status      string     `json:"status"`
	FromAddress string     `json:"from_address"`
	ToAddress   string     `json:"to_address"`
	CreatedAt   time.Time  `json:"created_at"`
}

type AgreementActionResponse struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message,omitempty"`
	Agreement AgreementResponse `json:"agreement"`
	NextStep  string            `json:"next_step"`
}

// ConfirmReleaseResponse reports the release reference and the fee split.
type ConfirmReleaseResponse struct {
	Success         bool              `json:"success"`
	TransactionHash string            `json:"transaction_hash"`
	AlreadyReleased bool              `json:"already_released"`
	ReleasedAmount  string            `json:"released_amount"`
	PlatformFee     string            `json:"platform_fee"`
	Agreement       AgreementResponse `json:"agreement"`
	NextStep        string            `json:"next_step"`
}
