package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"escrow-marketplace/internal/database"
	"escrow-marketplace/internal/models"
	"escrow-marketplace/internal/storage"
	"escrow-marketplace/internal/storage/postgres"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupStore connects to TEST_DATABASE_URL and applies the schema. Rows are keyed by fresh
// UUIDs and wallet addresses, so runs do not interfere with each other.
func setupStore(t *testing.T) (*postgres.Store, context.Context) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping postgres integration tests")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.Migrate(ctx, pool, zap.NewNop()))
	return postgres.NewStore(pool, zap.NewNop()), ctx
}

type seeded struct {
	employer *models.User
	job      *models.Job
	apps     []*models.Application
}

func seed(t *testing.T, ctx context.Context, store *postgres.Store, freelancers int) seeded {
	t.Helper()
	repos := store.Repos()
	employer, err := repos.Users.GetOrCreateByAddress(ctx, "GEMP"+uuid.NewString(), models.UserRoleEmployer)
	require.NoError(t, err)
	job, err := repos.Jobs.Create(ctx, &models.Job{
		EmployerID:      employer.ID,
		EmployerAddress: employer.WalletAddress,
		Title:           "Integration job",
		Description:     "Created by the postgres integration test",
		Amount:          decimal.RequireFromString("100.00"),
		Status:          models.JobStatusOpen,
		EngagementID:    "eng_" + uuid.NewString(),
	})
	require.NoError(t, err)

	s := seeded{employer: employer, job: job}
	for i := 0; i < freelancers; i++ {
		freelancer, err := repos.Users.GetOrCreateByAddress(ctx, "GFRE"+uuid.NewString(), models.UserRoleFreelancer)
		require.NoError(t, err)
		app, err := repos.Applications.Create(ctx, &models.Application{
			JobID:             job.ID,
			FreelancerID:      freelancer.ID,
			FreelancerAddress: freelancer.WalletAddress,
			CoverLetter:       "I can build this.",
			Status:            models.ApplicationStatusPending,
		})
		require.NoError(t, err)
		s.apps = append(s.apps, app)
	}
	return s
}

func newAgreement(s seeded) *models.Agreement {
	return &models.Agreement{
		JobID:             s.job.ID,
		ApplicationID:     s.apps[0].ID,
		EmployerID:        s.employer.ID,
		EmployerAddress:   s.employer.WalletAddress,
		FreelancerID:      s.apps[0].FreelancerID,
		FreelancerAddress: s.apps[0].FreelancerAddress,
		EscrowContractID:  "C" + uuid.NewString(),
		Status:            models.AgreementStatusActive,
	}
}

func TestPostgres_JobGuards(t *testing.T) {
	store, ctx := setupStore(t)
	s := seed(t, ctx, store, 0)
	jobs := store.Repos().Jobs

	_, err := jobs.MarkFunded(ctx, s.job.ID, nil)
	assert.ErrorIs(t, err, storage.ErrStaleState)
	_, err = jobs.SetEscrowContract(ctx, s.job.ID, "C1")
	assert.ErrorIs(t, err, storage.ErrStaleState)

	applicationID := uuid.New()
	prepared, err := jobs.PrepareEscrow(ctx, s.job.ID, applicationID)
	require.NoError(t, err)
	require.NotNil(t, prepared.EscrowApplicationID)
	assert.Equal(t, applicationID, *prepared.EscrowApplicationID)

	_, err = jobs.SetEscrowContract(ctx, s.job.ID, "C1")
	require.NoError(t, err)
	_, err = jobs.SetEscrowContract(ctx, s.job.ID, "C2")
	assert.ErrorIs(t, err, storage.ErrStaleState)

	funded, err := jobs.MarkFunded(ctx, s.job.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFunded, funded.Status)
	assert.True(t, funded.Amount.Equal(decimal.NewFromInt(100)))

	_, err = jobs.TransitionStatus(ctx, uuid.New(), []models.JobStatus{models.JobStatusOpen}, models.JobStatusFunded)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPostgres_OneOpenAgreementPerJob(t *testing.T) {
	store, ctx := setupStore(t)
	s := seed(t, ctx, store, 2)
	agreements := store.Repos().Agreements

	_, err := agreements.Create(ctx, newAgreement(s))
	require.NoError(t, err)
	second := newAgreement(s)
	second.ApplicationID = s.apps[1].ID
	_, err = agreements.Create(ctx, second)

	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestPostgres_ResetRefusedAfterFreelancerConfirmed(t *testing.T) {
	store, ctx := setupStore(t)
	s := seed(t, ctx, store, 1)
	agreements := store.Repos().Agreements
	a, err := agreements.Create(ctx, newAgreement(s))
	require.NoError(t, err)
	_, err = agreements.MarkEmployerApproved(ctx, a.ID, []models.AgreementStatus{models.AgreementStatusActive})
	require.NoError(t, err)

	_, err = agreements.MarkFreelancerConfirmed(ctx, a.ID)
	require.NoError(t, err)
	_, err = agreements.ResetToActive(ctx, a.ID, []models.AgreementStatus{models.AgreementStatusEmployerApproved})

	assert.ErrorIs(t, err, storage.ErrStaleState)
}

func TestPostgres_AppendDeduplicates(t *testing.T) {
	store, ctx := setupStore(t)
	s := seed(t, ctx, store, 1)
	agreement, err := store.Repos().Agreements.Create(ctx, newAgreement(s))
	require.NoError(t, err)
	txs := store.Repos().Transactions
	hash := "tx-" + uuid.NewString()
	row := &models.Transaction{
		AgreementID: &agreement.ID,
		JobID:       s.job.ID,
		Type:        models.TransactionTypeRelease,
		Amount:      decimal.RequireFromString("100.00"),
		TxHash:      hash,
		FromAddress: agreement.EscrowContractID,
		ToAddress:   agreement.FreelancerAddress,
	}

	first, created, err := txs.Append(ctx, row)
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := txs.Append(ctx, row)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	rows, err := txs.ListByAgreement(ctx, agreement.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestPostgres_InTxRollsBack(t *testing.T) {
	store, ctx := setupStore(t)
	s := seed(t, ctx, store, 2)
	boom := errors.New("boom")

	err := store.InTx(ctx, func(r storage.Repositories) error {
		if _, err := r.Agreements.Create(ctx, newAgreement(s)); err != nil {
			return err
		}
		if _, err := r.Applications.RejectPendingSiblings(ctx, s.job.ID, s.apps[0].ID); err != nil {
			return err
		}
		return boom
	})

	assert.ErrorIs(t, err, boom)
	_, err = store.Repos().Agreements.GetByJob(ctx, s.job.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	sibling, err := store.Repos().Applications.GetByID(ctx, s.apps[1].ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusPending, sibling.Status)
}
