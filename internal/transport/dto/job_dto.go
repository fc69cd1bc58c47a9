// internal/transport/dto/job_dto.go
package dto

import (
	"escrow-marketplace/internal/models"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Job Request DTOs ---

// CreateJobRequest defines the structure for creating a new job posting.
// Amount accepts a JSON number or string and must be positive with at most two decimals.
type CreateJobRequest struct {
	EmployerAddress string          `json:"employer_address" validate:"required,min=3"`
	Title           string          `json:"title" validate:"required,min=3,max=200"`
	Description     string          `json:"description" validate:"required,min=10,max=10000"`
	Amount          decimal.Decimal `json:"amount"`
	Publish         bool            `json:"publish"`
}

// PublishJobRequest moves a DRAFT job to OPEN.
type PublishJobRequest struct {
	JobID           uuid.UUID `json:"-" validate:"required"`
	EmployerAddress string    `json:"employer_address" validate:"required,min=3"`
}

// GetJobByIDRequest defines the structure for getting a job by ID.
type GetJobByIDRequest struct {
	ID uuid.UUID `json:"-" validate:"required"`
}

// ListJobsRequest defines parameters for listing jobs.
type ListJobsRequest struct {
	Limit           int               `form:"limit,default=20" validate:"gte=1,lte=100"`
	Offset          int               `form:"offset,default=0" validate:"gte=0"`
	Status          *models.JobStatus `form:"status" validate:"omitempty,oneof=DRAFT OPEN FUNDED ASSIGNED IN_REVIEW COMPLETED"`
	EmployerAddress *string           `form:"employer_address" validate:"omitempty,min=3"`
}

// --- Job Response DTOs ---

type JobResponse struct {
	ID               uuid.UUID  `json:"id"`
	EmployerAddress  string     `json:"employer_address"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Amount           string     `json:"amount"`
	Status           string     `json:"status"`
	EngagementID     string     `json:"engagement_id"`
	EscrowContractID *string    `json:"escrow_contract_id,omitempty"`
	FundingTxHash    *string    `json:"funding_tx_hash,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}
