package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"escrow-marketplace/internal/metrics"
	"escrow-marketplace/internal/models"
	"escrow-marketplace/internal/settlement"
	"escrow-marketplace/internal/storage"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SagaSettings carries the platform identity and the lifecycle policies.
type SagaSettings struct {
	PlatformAddress      string
	FeeRate              decimal.Decimal
	TrustlineSymbol      string
	TrustlineAddress     string
	MilestoneDescription string

	// RequireDeliveryBeforeApproval rejects approvals of ACTIVE agreements.
	RequireDeliveryBeforeApproval bool
	// StrictRequestChanges only accepts change requests on delivered work.
	StrictRequestChanges bool

	LedgerRetryMax             int
	LedgerRetryInitialInterval time.Duration
}

// Coordinator owns every multi-step settlement flow: the accept-and-fund saga,
// the agreement state machine and the approve-and-release saga.
type Coordinator struct {
	store    storage.Store
	gateway  Gateway
	signer   TrustedSigner
	notifier Notifier
	settings SagaSettings
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

var (
	_ EscrowService    = (*Coordinator)(nil)
	_ AgreementService = (*Coordinator)(nil)
)

// NewCoordinator wires the coordinator. signer may be nil, in which case releases
// fail with ErrSignerUnavailable.
func NewCoordinator(store storage.Store, gateway Gateway, trusted TrustedSigner, notifier Notifier,
	settings SagaSettings, logger *zap.Logger, m *metrics.Metrics) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.PlatformAddress == "" && trusted != nil {
		settings.PlatformAddress = trusted.Address()
	}
	if settings.LedgerRetryMax < 0 {
		settings.LedgerRetryMax = 0
	}
	return &Coordinator{
		store:    store,
		gateway:  gateway,
		signer:   trusted,
		notifier: notifier,
		settings: settings,
		logger:   logger.Named("coordinator"),
		metrics:  m,
	}
}

// approvalSources lists the agreement statuses an employer may approve from.
func (c *Coordinator) approvalSources() []models.AgreementStatus {
	if c.settings.RequireDeliveryBeforeApproval {
		return []models.AgreementStatus{models.AgreementStatusWorkDelivered}
	}
	return []models.AgreementStatus{models.AgreementStatusActive, models.AgreementStatusWorkDelivered}
}

// changeRequestSources lists the agreement statuses changes may be requested from.
func (c *Coordinator) changeRequestSources() []models.AgreementStatus {
	if c.settings.StrictRequestChanges {
		return []models.AgreementStatus{models.AgreementStatusWorkDelivered}
	}
	return []models.AgreementStatus{
		models.AgreementStatusActive,
		models.AgreementStatusWorkDelivered,
		models.AgreementStatusEmployerApproved,
	}
}

// writeLedger records the local effect of a step whose external effect already happened.
// Transient failures are retried with exponential backoff; the write is detached from the
// request context so a client disconnect cannot abandon it. Any failure left after that,
// including a state check the ledger refuses, is reported as unreconciled with enough
// identifiers for manual repair: the rail has moved and the ledger has not.
func (c *Coordinator) writeLedger(ctx context.Context, step string, fields []zap.Field,
	fn func(ctx context.Context, r storage.Repositories) error) error {
	ctx = context.WithoutCancel(ctx)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.settings.LedgerRetryInitialInterval
	policy.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.settings.LedgerRetryMax)), ctx)

	op := func() error {
		err := c.store.InTx(ctx, func(r storage.Repositories) error { return fn(ctx, r) })
		if err != nil && isDomainError(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	onRetry := func(err error, wait time.Duration) {
		c.metrics.LedgerRetry(step)
		c.logger.Warn("Ledger write failed, retrying",
			append(fields, zap.String("step", step), zap.Duration("wait", wait), zap.Error(err))...)
	}

	err := backoff.RetryNotify(op, b, onRetry)
	if err == nil {
		return nil
	}
	c.metrics.Unreconciled(step)
	c.logger.Error("Ledger unreconciled after external success",
		append(fields, zap.String("step", step), zap.Error(err))...)
	return fmt.Errorf("%w: %s: %v", ErrLedgerUnreconciled, step, err)
}

// idempotentSignal reports whether err carries want, recording how it was detected.
func (c *Coordinator) idempotentSignal(err error, want settlement.Signal) bool {
	cls := settlement.Classify(err)
	if cls.Signal != want {
		return false
	}
	source := "code"
	if cls.FromMessage {
		source = "message"
	}
	c.metrics.IdempotentSignal(want.String(), source)
	c.logger.Info("Gateway reported step already applied",
		zap.String("signal", want.String()), zap.String("source", source), zap.Error(err))
	return true
}

func (c *Coordinator) notify(ctx context.Context, userID uuid.UUID, kind models.NotificationType, title, message, actionURL string) {
	if c.notifier == nil {
		return
	}
	n := models.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
	}
	if actionURL != "" {
		n.ActionURL = ptrStr(actionURL)
	}
	c.notifier.Notify(ctx, n)
}

// step records the saga step outcome.
func (c *Coordinator) step(name string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrGateway), errors.Is(err, ErrTrustlineMissing):
		outcome = "gateway_error"
	case errors.Is(err, ErrLedgerUnreconciled):
		outcome = "unreconciled"
	default:
		outcome = "rejected"
	}
	c.metrics.SagaStep(name, outcome)
}

func agreementFields(a *models.Agreement) []zap.Field {
	return []zap.Field{
		zap.String("agreement_id", a.ID.String()),
		zap.String("job_id", a.JobID.String()),
		zap.String("escrow_contract_id", a.EscrowContractID),
	}
}

func jobFields(job *models.Job) []zap.Field {
	fields := []zap.Field{zap.String("job_id", job.ID.String()), zap.String("engagement_id", job.EngagementID)}
	if job.EscrowContractID != nil {
		fields = append(fields, zap.String("escrow_contract_id", *job.EscrowContractID))
	}
	return fields
}
