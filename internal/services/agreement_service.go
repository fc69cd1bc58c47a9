package services

import (
	"context"
	"errors"
	"fmt"

	"escrow-marketplace/internal/models"
	"escrow-marketplace/internal/storage"
	"escrow-marketplace/internal/transport/dto"

	"go.uber.org/zap"
)

func (c *Coordinator) GetAgreementByID(ctx context.Context, req *dto.GetAgreementByIDRequest) (*models.Agreement, error) {
	agreement, err := c.store.Repos().Agreements.GetByID(ctx, req.ID)
	if err != nil {
		return nil, mapRepoError(err, "getting agreement by ID")
	}
	return agreement, nil
}

func (c *Coordinator) ListAgreements(ctx context.Context, req *dto.ListAgreementsRequest) ([]models.Agreement, error) {
	if (req.EmployerAddress == nil) == (req.FreelancerAddress == nil) {
		return nil, fmt.Errorf("%w: exactly one of employer_address or freelancer_address is required", ErrValidation)
	}
	agreements, err := c.store.Repos().Agreements.List(ctx, storage.AgreementFilter{
		EmployerAddress:   req.EmployerAddress,
		FreelancerAddress: req.FreelancerAddress,
	})
	if err != nil {
		return nil, mapRepoError(err, "listing agreements")
	}
	return agreements, nil
}

func (c *Coordinator) ListTransactions(ctx context.Context, req *dto.ListTransactionsRequest) ([]models.Transaction, error) {
	repos := c.store.Repos()
	if _, err := repos.Agreements.GetByID(ctx, req.AgreementID); err != nil {
		return nil, mapRepoError(err, "fetching agreement for ledger listing")
	}
	rows, err := repos.Transactions.ListByAgreement(ctx, req.AgreementID)
	if err != nil {
		return nil, mapRepoError(err, "listing agreement transactions")
	}
	return rows, nil
}

// DeliverWork records the freelancer's delivery and puts the job in review.
func (c *Coordinator) DeliverWork(ctx context.Context, req *dto.DeliverWorkRequest) (*models.Agreement, error) {
	var delivered *models.Agreement
	err := c.store.InTx(ctx, func(r storage.Repositories) error {
		agreement, err := r.Agreements.GetByID(ctx, req.AgreementID)
		if err != nil {
			return err
		}
		if agreement.FreelancerAddress != req.FreelancerAddress {
			return fmt.Errorf("%w: only the agreement's freelancer can deliver work", ErrForbidden)
		}
		delivered, err = r.Agreements.MarkDelivered(ctx, agreement.ID, req.DeliveryURL, req.DeliveryNote)
		if errors.Is(err, storage.ErrStaleState) {
			return fmt.Errorf("%w: work can only be delivered on an ACTIVE agreement (status %s)", ErrInvalidState, agreement.Status)
		}
		if err != nil {
			return err
		}
		return c.syncJobStatus(ctx, r, agreement, []models.JobStatus{models.JobStatusAssigned, models.JobStatusInReview}, models.JobStatusInReview)
	})
	if err != nil {
		return nil, serviceError(err, "delivering work")
	}

	c.logger.Info("Work delivered", agreementFields(delivered)...)
	c.notify(ctx, delivered.EmployerID, models.NotificationWorkDelivered,
		"Work delivered",
		"The freelancer delivered the work. Review it and approve or request changes.",
		"/agreements/"+delivered.ID.String())
	return delivered, nil
}

// RequestChanges sends the agreement back to ACTIVE, clearing delivery and approval.
func (c *Coordinator) RequestChanges(ctx context.Context, req *dto.RequestChangesRequest) (*models.Agreement, error) {
	if req.Feedback == "" {
		return nil, fmt.Errorf("%w: feedback is required", ErrValidation)
	}
	sources := c.changeRequestSources()

	var reset *models.Agreement
	var previous models.AgreementStatus
	err := c.store.InTx(ctx, func(r storage.Repositories) error {
		agreement, err := r.Agreements.GetByID(ctx, req.AgreementID)
		if err != nil {
			return err
		}
		if agreement.EmployerAddress != req.EmployerAddress {
			return fmt.Errorf("%w: only the agreement's employer can request changes", ErrForbidden)
		}
		previous = agreement.Status
		reset, err = r.Agreements.ResetToActive(ctx, agreement.ID, sources)
		if errors.Is(err, storage.ErrStaleState) {
			if agreement.FreelancerConfirmed {
				return fmt.Errorf("%w: the freelancer already confirmed and the release is under way", ErrInvalidState)
			}
			return fmt.Errorf("%w: changes cannot be requested on a %s agreement", ErrInvalidState, agreement.Status)
		}
		if err != nil {
			return err
		}
		return c.syncJobStatus(ctx, r, agreement, []models.JobStatus{models.JobStatusInReview, models.JobStatusAssigned}, models.JobStatusAssigned)
	})
	if err != nil {
		return nil, serviceError(err, "requesting changes")
	}

	if previous != models.AgreementStatusWorkDelivered {
		c.logger.Warn("Changes requested on undelivered agreement",
			append(agreementFields(reset), zap.String("previous_status", string(previous)))...)
	} else {
		c.logger.Info("Changes requested", agreementFields(reset)...)
	}
	c.notify(ctx, reset.FreelancerID, models.NotificationChangesRequested,
		"Changes requested",
		"The employer requested changes: "+truncate(req.Feedback, 100),
		"/agreements/"+reset.ID.String())
	return reset, nil
}

// syncJobStatus moves the job alongside the agreement. A job outside from is left as is.
func (c *Coordinator) syncJobStatus(ctx context.Context, r storage.Repositories, agreement *models.Agreement,
	from []models.JobStatus, to models.JobStatus) error {
	_, err := r.Jobs.TransitionStatus(ctx, agreement.JobID, from, to)
	if errors.Is(err, storage.ErrStaleState) {
		c.logger.Warn("Job status out of step with agreement",
			append(agreementFields(agreement), zap.String("target_status", string(to)))...)
		return nil
	}
	return err
}

// ConfirmAndRelease records the freelancer's confirmation and releases the escrow with
// the platform key. A completed agreement reports its recorded release.
func (c *Coordinator) ConfirmAndRelease(ctx context.Context, req *dto.ConfirmReleaseRequest) (resp *dto.ConfirmReleaseResponse, err error) {
	defer func() { c.step("release", err) }()

	repos := c.store.Repos()
	agreement, err := repos.Agreements.GetByID(ctx, req.AgreementID)
	if err != nil {
		return nil, mapRepoError(err, "fetching agreement for release")
	}
	if agreement.FreelancerAddress != req.FreelancerAddress {
		return nil, fmt.Errorf("%w: only the agreement's freelancer can confirm the release", ErrForbidden)
	}
	if agreement.Status == models.AgreementStatusCompleted {
		return c.completedRelease(ctx, agreement)
	}
	if agreement.Status != models.AgreementStatusEmployerApproved {
		return nil, fmt.Errorf("%w: the employer must approve the work before funds are released (status %s)",
			ErrInvalidState, agreement.Status)
	}
	if c.signer == nil {
		return nil, ErrSignerUnavailable
	}

	confirmed, err := repos.Agreements.MarkFreelancerConfirmed(ctx, agreement.ID)
	if errors.Is(err, storage.ErrStaleState) {
		current, gerr := repos.Agreements.GetByID(ctx, agreement.ID)
		if gerr != nil {
			return nil, mapRepoError(gerr, "re-reading agreement for release")
		}
		if current.Status == models.AgreementStatusCompleted {
			return c.completedRelease(ctx, current)
		}
		return nil, fmt.Errorf("%w: agreement is %s", ErrInvalidState, current.Status)
	}
	if err != nil {
		return nil, mapRepoError(err, "recording freelancer confirmation")
	}
	return c.release(ctx, confirmed)
}

func (c *Coordinator) completedRelease(ctx context.Context, agreement *models.Agreement) (*dto.ConfirmReleaseResponse, error) {
	repos := c.store.Repos()
	resp := &dto.ConfirmReleaseResponse{
		Success:         true,
		AlreadyReleased: true,
		Agreement:       MapAgreementToResponse(agreement),
		NextStep:        dto.NextStepDone,
	}
	row, err := repos.Transactions.FindByAgreementAndType(ctx, agreement.ID, models.TransactionTypeRelease)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, mapRepoError(err, "fetching release row")
	}
	if row != nil {
		resp.TransactionHash = row.TxHash
		resp.ReleasedAmount = row.Amount.StringFixed(2)
	}
	if fee, err := repos.Transactions.FindByAgreementAndType(ctx, agreement.ID, models.TransactionTypePlatformFee); err == nil {
		resp.PlatformFee = fee.Amount.StringFixed(2)
	}
	return resp, nil
}
