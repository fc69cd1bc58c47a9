package services

import (
	"context"
	"errors"
	"fmt"

	"escrow-marketplace/internal/models"
	"escrow-marketplace/internal/settlement"
	"escrow-marketplace/internal/storage"
	"escrow-marketplace/internal/transport/dto"

	"go.uber.org/zap"
)

// milestoneIndex is the only milestone of a single-release escrow.
const milestoneIndex = "0"

// ApproveMilestone prepares the employer's milestone approval. An approval that the ledger
// or the rail already knows about is reported without a new transaction.
func (c *Coordinator) ApproveMilestone(ctx context.Context, req *dto.ApproveMilestoneRequest) (resp *dto.ApproveMilestoneResponse, err error) {
	defer func() { c.step("approve_milestone", err) }()

	agreement, err := c.store.Repos().Agreements.GetByID(ctx, req.AgreementID)
	if err != nil {
		return nil, mapRepoError(err, "fetching agreement for approval")
	}
	if agreement.EmployerAddress != req.Approver {
		return nil, fmt.Errorf("%w: only the agreement's employer can approve", ErrForbidden)
	}
	if agreement.Status.IsApprovedOrLater() {
		return &dto.ApproveMilestoneResponse{
			Success:         true,
			AlreadyApproved: true,
			NextStep:        nextStepFor(agreement.Status),
		}, nil
	}
	if !containsStatus(c.approvalSources(), agreement.Status) {
		return nil, fmt.Errorf("%w: work must be delivered before approval (status %s)", ErrInvalidState, agreement.Status)
	}
	if agreement.Status == models.AgreementStatusActive {
		c.logger.Warn("Approving milestone before delivery", agreementFields(agreement)...)
	}

	unsigned, err := c.gateway.ApproveMilestone(ctx, settlement.ApproveMilestoneRequest{
		ContractID:     agreement.EscrowContractID,
		MilestoneIndex: milestoneIndex,
		Approver:       req.Approver,
	})
	if err != nil {
		if c.idempotentSignal(err, settlement.SignalAlreadyApproved) {
			return &dto.ApproveMilestoneResponse{
				Success:         true,
				AlreadyApproved: true,
				NextStep:        dto.NextStepSendApproval,
			}, nil
		}
		return nil, gatewayError("preparing milestone approval", err)
	}
	return &dto.ApproveMilestoneResponse{
		Success:             true,
		UnsignedTransaction: unsigned.XDR,
		NextStep:            dto.NextStepSendApproval,
	}, nil
}

// SendApproval relays the signed approval, or re-verifies a claimed prior approval with
// the rail, then records EMPLOYER_APPROVED and the MILESTONE_APPROVED ledger row.
func (c *Coordinator) SendApproval(ctx context.Context, req *dto.SendApprovalRequest) (resp *dto.SendApprovalResponse, err error) {
	defer func() { c.step("send_approval", err) }()

	agreement, err := c.store.Repos().Agreements.GetByID(ctx, req.AgreementID)
	if err != nil {
		return nil, mapRepoError(err, "fetching agreement for approval relay")
	}
	if agreement.Status.IsApprovedOrLater() {
		return c.approvalResponse(ctx, agreement, true), nil
	}
	sources := c.approvalSources()
	if !containsStatus(sources, agreement.Status) {
		return nil, fmt.Errorf("%w: work must be delivered before approval (status %s)", ErrInvalidState, agreement.Status)
	}

	var ref string
	switch {
	case req.SignedTransaction != "":
		res, err := c.gateway.SendTransaction(ctx, req.SignedTransaction)
		switch {
		case err == nil:
			ref = res.TransactionHash
		case c.idempotentSignal(err, settlement.SignalAlreadyApproved):
		default:
			return nil, gatewayError("relaying milestone approval", err)
		}
	case req.AlreadyApproved:
		// The client's claim is only trusted once the rail confirms it.
		_, err := c.gateway.ApproveMilestone(ctx, settlement.ApproveMilestoneRequest{
			ContractID:     agreement.EscrowContractID,
			MilestoneIndex: milestoneIndex,
			Approver:       agreement.EmployerAddress,
		})
		switch {
		case err == nil:
			return nil, fmt.Errorf("%w: milestone is not approved on the settlement rail; sign and send the approval", ErrInvalidState)
		case !c.idempotentSignal(err, settlement.SignalAlreadyApproved):
			return nil, gatewayError("verifying milestone approval", err)
		}
	default:
		return nil, fmt.Errorf("%w: signed_transaction is required", ErrValidation)
	}
	if ref == "" {
		ref = syntheticRef(models.TransactionTypeMilestoneApproved, agreement.ID)
	}

	var approved *models.Agreement
	transitioned := false
	fields := append(agreementFields(agreement), zap.String("tx_hash", ref))
	err = c.writeLedger(ctx, "send_approval", fields, func(ctx context.Context, r storage.Repositories) error {
		transitioned = false
		updated, err := r.Agreements.MarkEmployerApproved(ctx, agreement.ID, sources)
		switch {
		case err == nil:
			transitioned = true
		case errors.Is(err, storage.ErrStaleState):
			if updated, err = r.Agreements.GetByID(ctx, agreement.ID); err != nil {
				return err
			}
			if !updated.Status.IsApprovedOrLater() {
				return fmt.Errorf("%w: agreement is %s", ErrInvalidState, updated.Status)
			}
		default:
			return err
		}
		approved = updated

		job, err := r.Jobs.GetByID(ctx, agreement.JobID)
		if err != nil {
			return err
		}
		_, err = appendLedgerRow(ctx, r.Transactions, &models.Transaction{
			AgreementID: &agreement.ID,
			JobID:       agreement.JobID,
			Type:        models.TransactionTypeMilestoneApproved,
			Amount:      job.Amount,
			TxHash:      ref,
			FromAddress: agreement.EmployerAddress,
			ToAddress:   agreement.FreelancerAddress,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if transitioned {
		c.logger.Info("Milestone approved", fields...)
		c.notify(ctx, agreement.FreelancerID, models.NotificationWorkApproved,
			"Work approved",
			"The employer approved your work. Confirm to receive the payment.",
			"/agreements/"+agreement.ID.String())
	}
	return c.approvalResponse(ctx, approved, !transitioned), nil
}

func (c *Coordinator) approvalResponse(ctx context.Context, agreement *models.Agreement, already bool) *dto.SendApprovalResponse {
	resp := &dto.SendApprovalResponse{
		Success:         true,
		AlreadyApproved: already,
		Agreement:       MapAgreementToResponse(agreement),
		NextStep:        nextStepFor(agreement.Status),
	}
	if row, err := c.store.Repos().Transactions.FindByAgreementAndType(ctx, agreement.ID, models.TransactionTypeMilestoneApproved); err == nil {
		resp.TransactionHash = row.TxHash
	}
	return resp
}
