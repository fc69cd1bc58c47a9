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

const signingPurposeRelease = "release"

// release runs the platform-signed payout of an EMPLOYER_APPROVED agreement and records
// the two-line settlement: RELEASE for the full amount and PLATFORM_FEE for the fee.
func (c *Coordinator) release(ctx context.Context, agreement *models.Agreement) (*dto.ConfirmReleaseResponse, error) {
	job, err := c.store.Repos().Jobs.GetByID(ctx, agreement.JobID)
	if err != nil {
		return nil, mapRepoError(err, "fetching job for release")
	}

	ref, err := c.releaseOnRail(ctx, agreement)
	if err != nil {
		return nil, err
	}
	fee := job.Amount.Mul(c.settings.FeeRate).Round(2)

	var completed *models.Agreement
	var releaseRow, feeRow *models.Transaction
	transitioned := false
	fields := append(agreementFields(agreement), zap.String("tx_hash", ref))
	err = c.writeLedger(ctx, "release", fields, func(ctx context.Context, r storage.Repositories) error {
		transitioned = false
		updated, err := r.Agreements.MarkCompleted(ctx, agreement.ID)
		switch {
		case err == nil:
			transitioned = true
		case errors.Is(err, storage.ErrStaleState):
			if updated, err = r.Agreements.GetByID(ctx, agreement.ID); err != nil {
				return err
			}
			if updated.Status != models.AgreementStatusCompleted {
				return fmt.Errorf("%w: agreement is %s", ErrInvalidState, updated.Status)
			}
		default:
			return err
		}
		completed = updated

		_, err = r.Jobs.TransitionStatus(ctx, job.ID,
			[]models.JobStatus{models.JobStatusFunded, models.JobStatusAssigned, models.JobStatusInReview},
			models.JobStatusCompleted)
		if err != nil && !errors.Is(err, storage.ErrStaleState) {
			return err
		}

		if releaseRow, err = appendLedgerRow(ctx, r.Transactions, &models.Transaction{
			AgreementID: &agreement.ID,
			JobID:       job.ID,
			Type:        models.TransactionTypeRelease,
			Amount:      job.Amount,
			TxHash:      ref,
			FromAddress: agreement.EscrowContractID,
			ToAddress:   agreement.FreelancerAddress,
		}); err != nil {
			return err
		}
		feeRow, err = appendLedgerRow(ctx, r.Transactions, &models.Transaction{
			AgreementID: &agreement.ID,
			JobID:       job.ID,
			Type:        models.TransactionTypePlatformFee,
			Amount:      fee,
			TxHash:      releaseRow.TxHash + "_fee",
			FromAddress: agreement.EscrowContractID,
			ToAddress:   c.settings.PlatformAddress,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if transitioned {
		c.logger.Info("Funds released", append(fields,
			zap.String("amount", job.Amount.StringFixed(2)), zap.String("platform_fee", fee.StringFixed(2)))...)
		c.notify(ctx, agreement.EmployerID, models.NotificationPaymentReleased,
			"Payment released",
			fmt.Sprintf("The escrow for %q was released to the freelancer.", job.Title),
			"/agreements/"+agreement.ID.String())
	}
	return &dto.ConfirmReleaseResponse{
		Success:         true,
		TransactionHash: releaseRow.TxHash,
		AlreadyReleased: !transitioned,
		ReleasedAmount:  releaseRow.Amount.StringFixed(2),
		PlatformFee:     feeRow.Amount.StringFixed(2),
		Agreement:       MapAgreementToResponse(completed),
		NextStep:        dto.NextStepDone,
	}, nil
}

// releaseOnRail obtains, signs and relays the release transaction. It returns the
// reference to record, which is synthetic when the rail reports an earlier release.
func (c *Coordinator) releaseOnRail(ctx context.Context, agreement *models.Agreement) (string, error) {
	synthetic := syntheticRef(models.TransactionTypeRelease, agreement.ID)

	unsigned, err := c.gateway.ReleaseFunds(ctx, settlement.ReleaseRequest{
		ContractID:    agreement.EscrowContractID,
		ReleaseSigner: c.settings.PlatformAddress,
	})
	if err != nil {
		if c.idempotentSignal(err, settlement.SignalAlreadyReleased) {
			return synthetic, nil
		}
		return "", gatewayError("preparing release", err)
	}

	signed, err := c.signer.Sign(unsigned.XDR)
	if err != nil {
		return "", fmt.Errorf("signing release: %w", err)
	}
	if err := c.store.Repos().Signing.Record(ctx, &models.SigningRecord{
		AgreementID:   &agreement.ID,
		Purpose:       signingPurposeRelease,
		SignerAddress: c.signer.Address(),
		PayloadHash:   signed.Hash,
	}); err != nil {
		return "", mapRepoError(err, "recording signature audit")
	}

	res, err := c.gateway.SendTransaction(ctx, signed.XDR)
	if err != nil {
		if c.idempotentSignal(err, settlement.SignalAlreadyReleased) {
			return synthetic, nil
		}
		return "", gatewayError("relaying release", err)
	}
	if res.TransactionHash == "" {
		return synthetic, nil
	}
	return res.TransactionHash, nil
}
