package services_test

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"escrow-marketplace/internal/models"
	"escrow-marketplace/internal/services"
	"escrow-marketplace/internal/settlement"
	"escrow-marketplace/internal/signer"
	"escrow-marketplace/internal/storage"
	"escrow-marketplace/internal/storage/memory"
	"escrow-marketplace/internal/transport/dto"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	employerAddr    = "GEMPLOYER000000000000000000000000000000000000000000000"
	freelancerAddr  = "GFREELANCER0000000000000000000000000000000000000000000"
	runnerUpAddr    = "GRUNNERUP00000000000000000000000000000000000000000000"
	contractID      = "CESCROW0001"
	deployTxHash    = "tx-deploy"
	fundTxHash      = "tx-fund"
	approvalTxHash  = "tx-approval"
	releaseTxHash   = "tx-release"
	signedDeployXDR = "signed-deploy-xdr"
	signedFundXDR   = "signed-fund-xdr"
	signedApproval  = "signed-approval-xdr"
	releaseBody     = "unsigned-release"
)

// MockGateway is a mock implementation of services.Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) DeployEscrow(ctx context.Context, req settlement.DeployRequest) (*settlement.UnsignedTransaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.UnsignedTransaction), args.Error(1)
}

func (m *MockGateway) FundEscrow(ctx context.Context, req settlement.FundRequest) (*settlement.UnsignedTransaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.UnsignedTransaction), args.Error(1)
}

func (m *MockGateway) ApproveMilestone(ctx context.Context, req settlement.ApproveMilestoneRequest) (*settlement.UnsignedTransaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.UnsignedTransaction), args.Error(1)
}

func (m *MockGateway) ReleaseFunds(ctx context.Context, req settlement.ReleaseRequest) (*settlement.UnsignedTransaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.UnsignedTransaction), args.Error(1)
}

func (m *MockGateway) SendTransaction(ctx context.Context, signedXDR string) (*settlement.SendResult, error) {
	args := m.Called(ctx, signedXDR)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.SendResult), args.Error(1)
}

// Ensure MockGateway implements the interface (compile-time check)
var _ services.Gateway = (*MockGateway)(nil)

// recordingNotifier keeps every notification in memory.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, notification models.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
}

func (n *recordingNotifier) ofType(kind models.NotificationType) []models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.Notification
	for _, sent := range n.sent {
		if sent.Type == kind {
			out = append(out, sent)
		}
	}
	return out
}

// flakyStore fails the first failures InTx calls with a transient error.
type flakyStore struct {
	storage.Store
	mu       sync.Mutex
	failures int
	calls    int
}

var errConnectionReset = errors.New("connection reset by peer")

func (s *flakyStore) InTx(ctx context.Context, fn func(storage.Repositories) error) error {
	s.mu.Lock()
	s.calls++
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()
	if fail {
		return errConnectionReset
	}
	return s.Store.InTx(ctx, fn)
}

type fixture struct {
	ctx          context.Context
	store        *memory.Store
	flaky        *flakyStore
	gateway      *MockGateway
	notifier     *recordingNotifier
	signer       *signer.PlatformSigner
	coordinator  *services.Coordinator
	jobs         services.JobService
	applications services.ApplicationService
}

type fixtureOption func(*services.SagaSettings)

func withStrictApproval() fixtureOption {
	return func(s *services.SagaSettings) { s.RequireDeliveryBeforeApproval = true }
}

func withStrictChanges() fixtureOption {
	return func(s *services.SagaSettings) { s.StrictRequestChanges = true }
}

func setupFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	_, key, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	f := &fixture{
		ctx:      context.Background(),
		store:    memory.NewStore(),
		gateway:  new(MockGateway),
		notifier: &recordingNotifier{},
		signer:   signer.New(key, signer.TestNetworkPassphrase),
	}
	f.flaky = &flakyStore{Store: f.store}

	settings := services.SagaSettings{
		FeeRate:                    decimal.RequireFromString("0.02"),
		TrustlineSymbol:            "USDC",
		MilestoneDescription:       "Deliver work",
		LedgerRetryMax:             3,
		LedgerRetryInitialInterval: time.Millisecond,
	}
	for _, opt := range opts {
		opt(&settings)
	}
	f.coordinator = services.NewCoordinator(f.flaky, f.gateway, f.signer, f.notifier, settings, zap.NewNop(), nil)
	f.jobs = services.NewJobService(f.store, zap.NewNop())
	f.applications = services.NewApplicationService(f.store, f.notifier, zap.NewNop())
	return f
}

// openJob creates an OPEN job with a pending application from each freelancer.
func (f *fixture) openJob(t *testing.T, amount string, freelancers ...string) (*models.Job, []*models.Application) {
	t.Helper()
	job, err := f.jobs.CreateJob(f.ctx, &dto.CreateJobRequest{
		EmployerAddress: employerAddr,
		Title:           "Build a landing page",
		Description:     "Responsive landing page with a contact form",
		Amount:          decimal.RequireFromString(amount),
		Publish:         true,
	})
	require.NoError(t, err)

	apps := make([]*models.Application, 0, len(freelancers))
	for _, addr := range freelancers {
		app, err := f.applications.ApplyToJob(f.ctx, &dto.ApplyToJobRequest{
			JobID:             job.ID,
			FreelancerAddress: addr,
			CoverLetter:       "I have shipped many landing pages.",
		})
		require.NoError(t, err)
		apps = append(apps, app)
	}
	return job, apps
}

// prepareDeploy builds the deploy transaction for app so the job is bound to it.
func (f *fixture) prepareDeploy(t *testing.T, job *models.Job, app *models.Application) {
	t.Helper()
	f.gateway.On("DeployEscrow", mock.Anything, mock.AnythingOfType("settlement.DeployRequest")).
		Return(&settlement.UnsignedTransaction{XDR: "unsigned-deploy"}, nil).Maybe()
	_, err := f.coordinator.DeployEscrow(f.ctx, &dto.DeployEscrowRequest{
		JobID: job.ID, ApplicationID: app.ID, EmployerAddress: employerAddr,
	})
	require.NoError(t, err)
}

// fundJob runs deploy, send-deploy, fund and send-fund.
func (f *fixture) fundJob(t *testing.T, job *models.Job, app *models.Application) {
	t.Helper()
	f.gateway.On("DeployEscrow", mock.Anything, mock.AnythingOfType("settlement.DeployRequest")).
		Return(&settlement.UnsignedTransaction{XDR: "unsigned-deploy"}, nil).Maybe()
	f.gateway.On("SendTransaction", mock.Anything, signedDeployXDR).
		Return(&settlement.SendResult{Status: "SUCCESS", ContractID: contractID, TransactionHash: deployTxHash}, nil).Maybe()
	f.gateway.On("FundEscrow", mock.Anything, mock.AnythingOfType("settlement.FundRequest")).
		Return(&settlement.UnsignedTransaction{XDR: "unsigned-fund"}, nil).Maybe()
	f.gateway.On("SendTransaction", mock.Anything, signedFundXDR).
		Return(&settlement.SendResult{Status: "SUCCESS", TransactionHash: fundTxHash}, nil).Maybe()

	_, err := f.coordinator.DeployEscrow(f.ctx, &dto.DeployEscrowRequest{
		JobID: job.ID, ApplicationID: app.ID, EmployerAddress: employerAddr,
	})
	require.NoError(t, err)
	_, err = f.coordinator.SendDeploy(f.ctx, &dto.SendDeployRequest{JobID: job.ID, SignedTransaction: signedDeployXDR})
	require.NoError(t, err)
	_, err = f.coordinator.FundEscrow(f.ctx, &dto.FundEscrowRequest{JobID: job.ID, Signer: employerAddr})
	require.NoError(t, err)
	_, err = f.coordinator.SendFund(f.ctx, &dto.SendFundRequest{JobID: job.ID, SignedTransaction: signedFundXDR})
	require.NoError(t, err)
}

// activeAgreement runs the whole accept-and-fund saga and returns the ACTIVE agreement.
func (f *fixture) activeAgreement(t *testing.T, amount string) *models.Agreement {
	t.Helper()
	job, apps := f.openJob(t, amount, freelancerAddr, runnerUpAddr)
	f.fundJob(t, job, apps[0])
	resp, err := f.coordinator.FinalizeAccept(f.ctx, &dto.FinalizeAcceptRequest{
		JobID: job.ID, ApplicationID: apps[0].ID, EmployerAddress: employerAddr,
	})
	require.NoError(t, err)
	agreement, err := f.store.Repos().Agreements.GetByID(f.ctx, resp.AgreementID)
	require.NoError(t, err)
	return agreement
}

func (f *fixture) deliver(t *testing.T, agreement *models.Agreement) {
	t.Helper()
	_, err := f.coordinator.DeliverWork(f.ctx, &dto.DeliverWorkRequest{
		AgreementID:       agreement.ID,
		FreelancerAddress: freelancerAddr,
		DeliveryURL:       "https://example.com/delivery",
	})
	require.NoError(t, err)
}

// approve relays an employer approval for the agreement.
func (f *fixture) approve(t *testing.T, agreement *models.Agreement) {
	t.Helper()
	f.gateway.On("SendTransaction", mock.Anything, signedApproval).
		Return(&settlement.SendResult{Status: "SUCCESS", TransactionHash: approvalTxHash}, nil).Maybe()
	_, err := f.coordinator.SendApproval(f.ctx, &dto.SendApprovalRequest{
		AgreementID: agreement.ID, SignedTransaction: signedApproval,
	})
	require.NoError(t, err)
}

// unsignedRelease is a v1 transaction envelope with no signatures, as the rail returns it.
func unsignedRelease() string {
	raw := binary.BigEndian.AppendUint32(nil, 2)
	raw = append(raw, releaseBody...)
	raw = binary.BigEndian.AppendUint32(raw, 0)
	return base64.StdEncoding.EncodeToString(raw)
}

// expectRelease stubs a release that is signed by the platform key.
func (f *fixture) expectRelease() {
	f.gateway.On("ReleaseFunds", mock.Anything, mock.AnythingOfType("settlement.ReleaseRequest")).
		Return(&settlement.UnsignedTransaction{XDR: unsignedRelease()}, nil)
	f.gateway.On("SendTransaction", mock.Anything, mock.MatchedBy(func(payload string) bool {
		env, err := signer.Verify(payload, f.signer.Address(), signer.TestNetworkPassphrase)
		return err == nil && string(env.Tx) == releaseBody
	})).Return(&settlement.SendResult{Status: "SUCCESS", TransactionHash: releaseTxHash}, nil)
}

func (f *fixture) ledger(t *testing.T, agreementID uuid.UUID) map[models.TransactionType]models.Transaction {
	t.Helper()
	rows, err := f.store.Repos().Transactions.ListByAgreement(f.ctx, agreementID)
	require.NoError(t, err)
	out := map[models.TransactionType]models.Transaction{}
	for _, row := range rows {
		out[row.Type] = row
	}
	return out
}

func apiError(code, message string) error {
	return &settlement.APIError{StatusCode: 400, Code: code, Message: message}
}
