package services

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"escrow-marketplace/internal/models"
	"escrow-marketplace/internal/settlement"
	"escrow-marketplace/internal/storage"
	"escrow-marketplace/internal/transport/dto"

	"github.com/google/uuid"
)

// mapRepoError maps storage errors to service errors.
func mapRepoError(err error, operation string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, operation)
	case errors.Is(err, storage.ErrConflict):
		return fmt.Errorf("%w: %s (%v)", ErrConflict, operation, err)
	case errors.Is(err, storage.ErrStaleState):
		return fmt.Errorf("%w: %s", ErrInvalidState, operation)
	}
	return fmt.Errorf("internal error during %s: %w", operation, err)
}

// serviceError passes service errors through and maps storage sentinels.
func serviceError(err error, operation string) error {
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrConflict) || errors.Is(err, storage.ErrStaleState) {
		return mapRepoError(err, operation)
	}
	return err
}

// gatewayError maps a settlement failure that is not an idempotent signal.
func gatewayError(operation string, err error) error {
	if settlement.Classify(err).Signal == settlement.SignalTrustlineMissing {
		return fmt.Errorf("%w: %s: %v", ErrTrustlineMissing, operation, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrGateway, operation, err)
}

// isDomainError reports whether err already carries a service-level meaning and must not be retried.
func isDomainError(err error) bool {
	for _, target := range []error{
		ErrNotFound, ErrForbidden, ErrConflict, ErrValidation, ErrInvalidState,
		storage.ErrNotFound, storage.ErrConflict, storage.ErrStaleState,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// syntheticRef is the deterministic reference recorded when the rail reports that an
// effect already happened and returns no hash of its own.
func syntheticRef(txType models.TransactionType, agreementID uuid.UUID) string {
	return fmt.Sprintf("synthetic:%s:%s", txType, agreementID)
}

// appendLedgerRow inserts a ledger row and rejects a hash collision with a row of another type.
func appendLedgerRow(ctx context.Context, repo storage.TransactionRepository, row *models.Transaction) (*models.Transaction, error) {
	row.Status = models.TransactionStatusConfirmed
	stored, _, err := repo.Append(ctx, row)
	if err != nil {
		return nil, err
	}
	if stored.Type != row.Type {
		return nil, fmt.Errorf("%w: tx hash %s already recorded as %s", ErrConflict, row.TxHash, stored.Type)
	}
	return stored, nil
}

func containsStatus[S comparable](allowed []S, s S) bool {
	return slices.Contains(allowed, s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func ptrStr(s string) *string { return &s }

func MapUserToResponse(user *models.User) dto.UserResponse {
	return dto.UserResponse{
		ID:            user.ID,
		WalletAddress: user.WalletAddress,
		DisplayName:   user.DisplayName,
		Role:          string(user.Role),
		CreatedAt:     user.CreatedAt,
		LastSeenAt:    user.LastSeenAt,
	}
}

func MapJobToResponse(job *models.Job) dto.JobResponse {
	return dto.JobResponse{
		ID:               job.ID,
		EmployerAddress:  job.EmployerAddress,
		Title:            job.Title,
		Description:      job.Description,
		Amount:           job.Amount.StringFixed(2),
		Status:           string(job.Status),
		EngagementID:     job.EngagementID,
		EscrowContractID: job.EscrowContractID,
		FundingTxHash:    job.FundingTxHash,
		CreatedAt:        job.CreatedAt,
		UpdatedAt:        job.UpdatedAt,
		CompletedAt:      job.CompletedAt,
	}
}

func MapApplicationToResponse(app *models.Application) dto.ApplicationResponse {
	return dto.ApplicationResponse{
		ID:                app.ID,
		JobID:             app.JobID,
		FreelancerAddress: app.FreelancerAddress,
		CoverLetter:       app.CoverLetter,
		PortfolioURL:      app.PortfolioURL,
		Status:            string(app.Status),
		AppliedAt:         app.AppliedAt,
		AcceptedAt:        app.AcceptedAt,
		RejectedAt:        app.RejectedAt,
	}
}

func MapAgreementToResponse(a *models.Agreement) dto.AgreementResponse {
	return dto.AgreementResponse{
		ID:                    a.ID,
		JobID:                 a.JobID,
		ApplicationID:         a.ApplicationID,
		EmployerAddress:       a.EmployerAddress,
		FreelancerAddress:     a.FreelancerAddress,
		EscrowContractID:      a.EscrowContractID,
		Status:                string(a.Status),
		EmployerApproved:      a.EmployerApproved,
		EmployerApprovedAt:    a.EmployerApprovedAt,
		FreelancerConfirmed:   a.FreelancerConfirmed,
		FreelancerConfirmedAt: a.FreelancerConfirmedAt,
		DeliveryURL:           a.DeliveryURL,
		DeliveryNote:          a.DeliveryNote,
		DeliveredAt:           a.DeliveredAt,
		CreatedAt:             a.CreatedAt,
		UpdatedAt:             a.UpdatedAt,
		CompletedAt:           a.CompletedAt,
	}
}

func MapTransactionToResponse(tx *models.Transaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:          tx.ID,
		AgreementID: tx.AgreementID,
		JobID:       tx.JobID,
		Type:        string(tx.Type),
		Amount:      tx.Amount.StringFixed(2),
		TxHash:      tx.TxHash,
		Status:      string(tx.Status),
		FromAddress: tx.FromAddress,
		ToAddress:   tx.ToAddress,
		CreatedAt:   tx.CreatedAt,
	}
}

func MapNotificationToResponse(n *models.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:        n.ID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		ActionURL: n.ActionURL,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

// nextStepFor tells a client where an agreement stands in the lifecycle.
func nextStepFor(status models.AgreementStatus) string {
	switch status {
	case models.AgreementStatusActive:
		return dto.NextStepDeliver
	case models.AgreementStatusWorkDelivered:
		return dto.NextStepApprove
	case models.AgreementStatusEmployerApproved:
		return dto.NextStepConfirm
	default:
		return dto.NextStepDone
	}
}
