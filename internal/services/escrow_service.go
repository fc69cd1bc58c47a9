package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"escrow-marketplace/internal/models"
	"escrow-marketplace/internal/settlement"
	"escrow-marketplace/internal/storage"
	"escrow-marketplace/internal/transport/dto"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var errFinalizeRace = errors.New("agreement created concurrently")

// DeployEscrow prepares the escrow deployment for a job and the application the employer is accepting.
func (c *Coordinator) DeployEscrow(ctx context.Context, req *dto.DeployEscrowRequest) (resp *dto.DeployEscrowResponse, err error) {
	defer func() { c.step("deploy", err) }()

	repos := c.store.Repos()
	job, err := repos.Jobs.GetByID(ctx, req.JobID)
	if err != nil {
		return nil, mapRepoError(err, "fetching job for escrow deployment")
	}
	if job.EmployerAddress != req.EmployerAddress {
		return nil, fmt.Errorf("%w: only the job's employer can deploy its escrow", ErrForbidden)
	}
	if job.EscrowContractID != nil {
		next := dto.NextStepFund
		if job.Status.IsFundedOrLater() {
			next = dto.NextStepFinalize
		}
		return &dto.DeployEscrowResponse{
			Success:         true,
			EngagementID:    job.EngagementID,
			ContractID:      *job.EscrowContractID,
			AlreadyDeployed: true,
			NextStep:        next,
		}, nil
	}
	if job.Status != models.JobStatusOpen {
		return nil, fmt.Errorf("%w: escrow can only be deployed for an OPEN job (status %s)", ErrInvalidState, job.Status)
	}

	app, err := repos.Applications.GetByID(ctx, req.ApplicationID)
	if err != nil {
		return nil, mapRepoError(err, "fetching application for escrow deployment")
	}
	if app.JobID != job.ID {
		return nil, fmt.Errorf("%w: application does not belong to job", ErrValidation)
	}
	if app.Status != models.ApplicationStatusPending {
		return nil, fmt.Errorf("%w: application is %s", ErrInvalidState, app.Status)
	}
	if c.settings.PlatformAddress == "" {
		return nil, fmt.Errorf("%w: platform address is not configured", ErrSignerUnavailable)
	}

	roles := settlement.Roles{
		Approver:        job.EmployerAddress,
		ServiceProvider: app.FreelancerAddress,
		PlatformAddress: c.settings.PlatformAddress,
		ReleaseSigner:   c.settings.PlatformAddress,
		DisputeResolver: c.settings.PlatformAddress,
		Receiver:        app.FreelancerAddress,
	}

	title, description := job.Title, job.Description
	if req.Title != nil && *req.Title != "" {
		title = *req.Title
	}
	if req.Description != nil && *req.Description != "" {
		description = *req.Description
	}
	milestones := []settlement.Milestone{{Description: c.settings.MilestoneDescription}}
	if len(req.Milestones) > 0 {
		milestones = milestones[:0]
		for _, m := range req.Milestones {
			milestones = append(milestones, settlement.Milestone{Description: m})
		}
	}

	unsigned, err := c.gateway.DeployEscrow(ctx, settlement.DeployRequest{
		Signer:       job.EmployerAddress,
		EngagementID: job.EngagementID,
		Title:        title,
		Description:  description,
		Roles:        roles,
		Amount:       json.Number(job.Amount.StringFixed(2)),
		PlatformFee:  json.Number(c.settings.FeeRate.Mul(decimal.NewFromInt(100)).String()),
		Milestones:   milestones,
		Trustline: settlement.Trustline{
			Symbol:  c.settings.TrustlineSymbol,
			Address: c.settings.TrustlineAddress,
		},
	})
	if err != nil {
		return nil, gatewayError("preparing escrow deployment", err)
	}

	// The escrow pays app's freelancer, so finalize may only accept app.
	if _, err := repos.Jobs.PrepareEscrow(ctx, job.ID, app.ID); err != nil {
		if errors.Is(err, storage.ErrStaleState) {
			return nil, fmt.Errorf("%w: escrow was deployed concurrently", ErrConflict)
		}
		return nil, mapRepoError(err, "recording escrow application")
	}
	if job.EscrowApplicationID != nil && *job.EscrowApplicationID != app.ID {
		c.logger.Warn("Escrow deployment re-prepared for another application",
			append(jobFields(job), zap.String("previous_application_id", job.EscrowApplicationID.String()))...)
	}

	c.logger.Info("Escrow deployment prepared", append(jobFields(job), zap.String("application_id", app.ID.String()))...)
	return &dto.DeployEscrowResponse{
		Success:             true,
		UnsignedTransaction: unsigned.XDR,
		EngagementID:        job.EngagementID,
		NextStep:            dto.NextStepSendDeploy,
	}, nil
}

// SendDeploy relays the signed deployment and binds the returned escrow id to the job.
// Once an escrow id is recorded nothing is relayed again.
func (c *Coordinator) SendDeploy(ctx context.Context, req *dto.SendDeployRequest) (resp *dto.SendDeployResponse, err error) {
	defer func() { c.step("send_deploy", err) }()

	job, err := c.store.Repos().Jobs.GetByID(ctx, req.JobID)
	if err != nil {
		return nil, mapRepoError(err, "fetching job for deployment relay")
	}
	if job.EscrowContractID != nil {
		return &dto.SendDeployResponse{
			Success:         true,
			ContractID:      *job.EscrowContractID,
			AlreadyDeployed: true,
			NextStep:        fundingNextStep(job),
		}, nil
	}
	if job.Status != models.JobStatusOpen {
		return nil, fmt.Errorf("%w: escrow can only be deployed for an OPEN job (status %s)", ErrInvalidState, job.Status)
	}
	if job.EscrowApplicationID == nil {
		return nil, fmt.Errorf("%w: escrow deployment has not been prepared", ErrInvalidState)
	}

	res, err := c.gateway.SendTransaction(ctx, req.SignedTransaction)
	if err != nil {
		return nil, gatewayError("relaying escrow deployment", err)
	}
	if res.ContractID == "" {
		return nil, fmt.Errorf("%w: relay returned no contract id", ErrGateway)
	}

	fields := append(jobFields(job), zap.String("escrow_contract_id", res.ContractID))
	err = c.writeLedger(ctx, "send_deploy", fields, func(ctx context.Context, r storage.Repositories) error {
		_, err := r.Jobs.SetEscrowContract(ctx, job.ID, res.ContractID)
		if !errors.Is(err, storage.ErrStaleState) {
			return err
		}
		current, gerr := r.Jobs.GetByID(ctx, job.ID)
		if gerr != nil {
			return gerr
		}
		switch {
		case current.EscrowContractID == nil:
			return fmt.Errorf("%w: job is %s", ErrInvalidState, current.Status)
		case *current.EscrowContractID != res.ContractID:
			return fmt.Errorf("%w: job is already bound to escrow %s", ErrConflict, *current.EscrowContractID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Escrow deployed", fields...)
	return &dto.SendDeployResponse{
		Success:         true,
		ContractID:      res.ContractID,
		TransactionHash: res.TransactionHash,
		NextStep:        dto.NextStepFund,
	}, nil
}

// FundEscrow prepares the funding transaction for the employer's wallet.
func (c *Coordinator) FundEscrow(ctx context.Context, req *dto.FundEscrowRequest) (resp *dto.FundEscrowResponse, err error) {
	defer func() { c.step("fund", err) }()

	job, err := c.store.Repos().Jobs.GetByID(ctx, req.JobID)
	if err != nil {
		return nil, mapRepoError(err, "fetching job for escrow funding")
	}
	if job.EmployerAddress != req.Signer {
		return nil, fmt.Errorf("%w: only the job's employer can fund its escrow", ErrForbidden)
	}
	if job.EscrowContractID == nil {
		return nil, fmt.Errorf("%w: escrow has not been deployed", ErrInvalidState)
	}
	amount := job.Amount.StringFixed(2)
	if job.Status.IsFundedOrLater() {
		return &dto.FundEscrowResponse{
			Success:       true,
			ContractID:    *job.EscrowContractID,
			Amount:        amount,
			AlreadyFunded: true,
			NextStep:      fundingNextStep(job),
		}, nil
	}
	if job.Status != models.JobStatusOpen {
		return nil, fmt.Errorf("%w: job is %s", ErrInvalidState, job.Status)
	}

	unsigned, err := c.gateway.FundEscrow(ctx, settlement.FundRequest{
		ContractID: *job.EscrowContractID,
		Amount:     json.Number(amount),
		Signer:     req.Signer,
	})
	if err != nil {
		return nil, gatewayError("preparing escrow funding", err)
	}
	return &dto.FundEscrowResponse{
		Success:             true,
		UnsignedTransaction: unsigned.XDR,
		ContractID:          *job.EscrowContractID,
		Amount:              amount,
		NextStep:            dto.NextStepSendFund,
	}, nil
}

// SendFund relays the signed funding transaction and marks the job FUNDED.
func (c *Coordinator) SendFund(ctx context.Context, req *dto.SendFundRequest) (resp *dto.SendFundResponse, err error) {
	defer func() { c.step("send_fund", err) }()

	job, err := c.store.Repos().Jobs.GetByID(ctx, req.JobID)
	if err != nil {
		return nil, mapRepoError(err, "fetching job for funding relay")
	}
	if job.Status.IsFundedOrLater() {
		already := &dto.SendFundResponse{Success: true, AlreadyFunded: true, NextStep: fundingNextStep(job)}
		if job.FundingTxHash != nil {
			already.TransactionHash = *job.FundingTxHash
		}
		return already, nil
	}
	if job.EscrowContractID == nil || job.Status != models.JobStatusOpen {
		return nil, fmt.Errorf("%w: escrow must be deployed on an OPEN job before funding (status %s)", ErrInvalidState, job.Status)
	}

	res, err := c.gateway.SendTransaction(ctx, req.SignedTransaction)
	if err != nil {
		return nil, gatewayError("relaying escrow funding", err)
	}
	var fundingHash *string
	if res.TransactionHash != "" {
		fundingHash = ptrStr(res.TransactionHash)
	}

	fields := append(jobFields(job), zap.String("tx_hash", res.TransactionHash))
	err = c.writeLedger(ctx, "send_fund", fields, func(ctx context.Context, r storage.Repositories) error {
		_, err := r.Jobs.MarkFunded(ctx, job.ID, fundingHash)
		if !errors.Is(err, storage.ErrStaleState) {
			return err
		}
		current, gerr := r.Jobs.GetByID(ctx, job.ID)
		if gerr != nil {
			return gerr
		}
		if current.Status.IsFundedOrLater() {
			return nil
		}
		return fmt.Errorf("%w: job is %s", ErrInvalidState, current.Status)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Escrow funded", fields...)
	return &dto.SendFundResponse{
		Success:         true,
		TransactionHash: res.TransactionHash,
		NextStep:        dto.NextStepFinalize,
	}, nil
}

// FinalizeAccept creates the agreement for a funded job in a single ledger transaction.
// Calling it again for the same application reports the existing agreement and repairs
// any side effect a legacy partial run left behind.
func (c *Coordinator) FinalizeAccept(ctx context.Context, req *dto.FinalizeAcceptRequest) (resp *dto.FinalizeAcceptResponse, err error) {
	defer func() { c.step("finalize", err) }()

	var outcome *finalizeOutcome
	for attempt := 0; attempt < 2; attempt++ {
		outcome, err = c.finalizeOnce(ctx, req)
		if !errors.Is(err, errFinalizeRace) {
			break
		}
		c.logger.Info("Finalize lost a race, re-reading agreement", zap.String("job_id", req.JobID.String()))
	}
	if errors.Is(err, errFinalizeRace) {
		return nil, fmt.Errorf("%w: job already has an open agreement", ErrConflict)
	}
	if err != nil {
		return nil, serviceError(err, "finalizing acceptance")
	}

	job, agreement := outcome.job, outcome.agreement
	if outcome.created {
		c.logger.Info("Agreement created", agreementFields(agreement)...)
		c.notify(ctx, agreement.FreelancerID, models.NotificationApplicationAccepted,
			"Application accepted",
			fmt.Sprintf("Your application for %q was accepted and the escrow is funded.", job.Title),
			"/agreements/"+agreement.ID.String())
	}
	for _, rejected := range outcome.rejected {
		c.notify(ctx, rejected.FreelancerID, models.NotificationApplicationRejected,
			"Application not selected",
			fmt.Sprintf("Another freelancer was selected for %q.", job.Title),
			"/jobs/"+job.ID.String())
	}

	return &dto.FinalizeAcceptResponse{
		Success:          true,
		AgreementID:      agreement.ID,
		Agreement:        MapAgreementToResponse(agreement),
		AlreadyFinalized: !outcome.created,
		RejectedCount:    len(outcome.rejected),
		NextStep:         nextStepFor(agreement.Status),
	}, nil
}

type finalizeOutcome struct {
	job       *models.Job
	agreement *models.Agreement
	rejected  []models.Application
	created   bool
}

func (c *Coordinator) finalizeOnce(ctx context.Context, req *dto.FinalizeAcceptRequest) (*finalizeOutcome, error) {
	var out finalizeOutcome
	err := c.store.InTx(ctx, func(r storage.Repositories) error {
		out = finalizeOutcome{}
		job, err := r.Jobs.GetByID(ctx, req.JobID)
		if err != nil {
			return err
		}
		if req.EmployerAddress != "" && req.EmployerAddress != job.EmployerAddress {
			return fmt.Errorf("%w: only the job's employer can finalize acceptance", ErrForbidden)
		}
		out.job = job

		existing, err := r.Agreements.GetByJob(ctx, job.ID)
		switch {
		case err == nil && existing.ApplicationID != req.ApplicationID:
			return fmt.Errorf("%w: job already has an agreement with another application", ErrConflict)
		case err == nil:
			out.agreement = existing
			return c.repairFinalize(ctx, r, &out)
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}

		if job.Status != models.JobStatusFunded || job.EscrowContractID == nil {
			return fmt.Errorf("%w: escrow must be funded before the agreement is created (status %s)", ErrInvalidState, job.Status)
		}
		if job.EscrowApplicationID == nil {
			return fmt.Errorf("%w: escrow is not bound to an application", ErrInvalidState)
		}
		if *job.EscrowApplicationID != req.ApplicationID {
			return fmt.Errorf("%w: escrow was deployed for application %s", ErrConflict, job.EscrowApplicationID)
		}
		app, err := r.Applications.GetByID(ctx, req.ApplicationID)
		if err != nil {
			return err
		}
		if app.JobID != job.ID {
			return fmt.Errorf("%w: application does not belong to job", ErrValidation)
		}
		if app.Status != models.ApplicationStatusPending {
			return fmt.Errorf("%w: application is %s", ErrInvalidState, app.Status)
		}

		freelancer, err := r.Users.GetOrCreateByAddress(ctx, app.FreelancerAddress, models.UserRoleFreelancer)
		if err != nil {
			return err
		}
		agreement, err := r.Agreements.Create(ctx, &models.Agreement{
			JobID:             job.ID,
			ApplicationID:     app.ID,
			EmployerID:        job.EmployerID,
			EmployerAddress:   job.EmployerAddress,
			FreelancerID:      freelancer.ID,
			FreelancerAddress: app.FreelancerAddress,
			EscrowContractID:  *job.EscrowContractID,
			Status:            models.AgreementStatusActive,
		})
		if errors.Is(err, storage.ErrConflict) {
			return errFinalizeRace
		}
		if err != nil {
			return err
		}
		out.agreement = agreement
		out.created = true

		if _, err := r.Applications.TransitionStatus(ctx, app.ID, models.ApplicationStatusPending, models.ApplicationStatusAccepted); err != nil {
			return err
		}
		if out.rejected, err = r.Applications.RejectPendingSiblings(ctx, job.ID, app.ID); err != nil {
			return err
		}
		if out.job, err = r.Jobs.TransitionStatus(ctx, job.ID, []models.JobStatus{models.JobStatusFunded}, models.JobStatusAssigned); err != nil {
			return err
		}
		_, err = appendLedgerRow(ctx, r.Transactions, escrowFundedRow(job, agreement))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// repairFinalize converges the side effects of an existing agreement. Every step is a
// guarded or deduplicated write, so a complete agreement is left untouched.
func (c *Coordinator) repairFinalize(ctx context.Context, r storage.Repositories, out *finalizeOutcome) error {
	agreement := out.agreement
	if !agreement.Status.IsOpen() {
		return nil
	}

	if _, err := r.Applications.TransitionStatus(ctx, agreement.ApplicationID,
		models.ApplicationStatusPending, models.ApplicationStatusAccepted); err == nil {
		c.logger.Warn("Repaired accepted application", agreementFields(agreement)...)
	} else if !errors.Is(err, storage.ErrStaleState) {
		return err
	}

	rejected, err := r.Applications.RejectPendingSiblings(ctx, agreement.JobID, agreement.ApplicationID)
	if err != nil {
		return err
	}
	out.rejected = rejected

	if job, err := r.Jobs.TransitionStatus(ctx, agreement.JobID,
		[]models.JobStatus{models.JobStatusFunded}, models.JobStatusAssigned); err == nil {
		out.job = job
		c.logger.Warn("Repaired job assignment", agreementFields(agreement)...)
	} else if !errors.Is(err, storage.ErrStaleState) {
		return err
	}

	_, err = appendLedgerRow(ctx, r.Transactions, escrowFundedRow(out.job, agreement))
	return err
}

func escrowFundedRow(job *models.Job, agreement *models.Agreement) *models.Transaction {
	hash := agreement.EscrowContractID
	if job.FundingTxHash != nil && *job.FundingTxHash != "" {
		hash = *job.FundingTxHash
	}
	return &models.Transaction{
		AgreementID: &agreement.ID,
		JobID:       job.ID,
		Type:        models.TransactionTypeEscrowFunded,
		Amount:      job.Amount,
		TxHash:      hash,
		FromAddress: job.EmployerAddress,
		ToAddress:   agreement.FreelancerAddress,
	}
}

func fundingNextStep(job *models.Job) string {
	switch {
	case job.Status == models.JobStatusOpen:
		return dto.NextStepFund
	case job.Status == models.JobStatusFunded:
		return dto.NextStepFinalize
	default:
		return dto.NextStepDone
	}
}
