package postgres

import (
	"context"
	"errors"
	"fmt"

	"escrow-marketplace/internal/models"
	"escrow-marketplace/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const transactionColumns = `id, agreement_id, job_id, type, amount, tx_hash, status, from_address, to_address,
	created_at, confirmed_at`

// TransactionRepo implements the storage.TransactionRepository interface using PostgreSQL.
type TransactionRepo struct {
	db     Querier
	logger *zap.Logger
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(db Querier, logger *zap.Logger) *TransactionRepo {
	return &TransactionRepo{db: db, logger: logger}
}

// WithTx returns a TransactionRepo bound to the transaction.
func (r *TransactionRepo) WithTx(tx pgx.Tx) *TransactionRepo {
	return &TransactionRepo{db: tx, logger: r.logger}
}

var _ storage.TransactionRepository = (*TransactionRepo)(nil)

// Append relies on the tx_hash and (agreement_id, type) unique indexes. On conflict
// the row already stored is returned with created=false.
func (r *TransactionRepo) Append(ctx context.Context, t *models.Transaction) (*models.Transaction, bool, error) {
	id := t.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	status := t.Status
	if status == "" {
		status = models.TransactionStatusConfirmed
	}

	insert := `
		INSERT INTO transactions (id, agreement_id, job_id, type, amount, tx_hash, status, from_address, to_address,
			created_at, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT DO NOTHING
		RETURNING ` + transactionColumns

	rows, err := r.db.Query(ctx, insert, id, t.AgreementID, t.JobID, string(t.Type), t.Amount, t.TxHash,
		string(status), t.FromAddress, t.ToAddress)
	created, err := collectOne[models.Transaction](rows, err)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		r.logger.Error("Append: failed to insert ledger row",
			zap.String("type", string(t.Type)), zap.String("tx_hash", t.TxHash), zap.Error(err))
		return nil, false, mapWriteError(err, "append transaction")
	}

	existingQuery := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE tx_hash = $1 OR (agreement_id = $2 AND type = $3)
		LIMIT 1`
	rows, err = r.db.Query(ctx, existingQuery, t.TxHash, t.AgreementID, string(t.Type))
	existing, err := collectOne[models.Transaction](rows, err)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load conflicting transaction %s: %w", t.TxHash, err)
	}
	r.logger.Info("Append: ledger row already recorded",
		zap.String("type", string(existing.Type)), zap.String("tx_hash", existing.TxHash))
	return existing, false, nil
}

func (r *TransactionRepo) FindByAgreementAndType(ctx context.Context, agreementID uuid.UUID, txType models.TransactionType) (*models.Transaction, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE agreement_id = $1 AND type = $2`,
		agreementID, string(txType))
	t, err := collectOne[models.Transaction](rows, err)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to find %s transaction for agreement %s: %w", txType, agreementID, err)
	}
	return t, nil
}

func (r *TransactionRepo) ListByAgreement(ctx context.Context, agreementID uuid.UUID) ([]models.Transaction, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE agreement_id = $1 ORDER BY created_at ASC`, agreementID)
	out, err := collectAll[models.Transaction](rows, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for agreement %s: %w", agreementID, err)
	}
	return out, nil
}
