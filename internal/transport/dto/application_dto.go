package dto

import (
	"time"

	"github.com/google/uuid"
)

// --- Application Request DTOs ---

// ApplyToJobRequest defines the structure for a freelancer applying to a job.
type ApplyToJobRequest struct {
	JobID             uuid.UUID `json:"-" validate:"required"`
	FreelancerAddress string    `json:"freelancer_address" validate:"required,min=3"`
	CoverLetter       string    `json:"cover_letter" validate:"required,min=10,max=5000"`
	PortfolioURL      *string   `json:"portfolio_url,omitempty" validate:"omitempty,url"`
}

// RejectApplicationRequest defines the structure for an employer rejecting an application.
type RejectApplicationRequest struct {
	ApplicationID   uuid.UUID `json:"-" validate:"required"`
	EmployerAddress string    `json:"employer_address" validate:"required,min=3"`
}

type ListApplicationsByJobRequest struct {
	JobID uuid.UUID `json:"-" validate:"required"`
}

// --- Application Response DTOs ---

type ApplicationResponse struct {
	ID                uuid.UUID  `json:"id"`
	JobID             uuid.UUID  `json:"job_id"`
	FreelancerAddress string     `json:"freelancer_address"`
	CoverLetter       string     `json:"cover_letter"`
	PortfolioURL      *string    `json:"portfolio_url,omitempty"`
	Status            string     `json:"status"`
	AppliedAt         time.Time  `json:"applied_at"`
	AcceptedAt        *time.Time `json:"accepted_at,omitempty"`
	RejectedAt        *time.Time `json:"rejected_at,omitempty"`
}
