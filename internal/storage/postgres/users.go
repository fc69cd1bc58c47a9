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

const userColumns = `id, wallet_address, display_name, role, created_at, last_seen_at`

// UserRepo implements the storage.UserRepository interface using PostgreSQL.
type UserRepo struct {
	db     Querier
	logger *zap.Logger
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(db Querier, logger *zap.Logger) *UserRepo {
	return &UserRepo{db: db, logger: logger}
}

// WithTx returns a UserRepo bound to the transaction.
func (r *UserRepo) WithTx(tx pgx.Tx) *UserRepo {
	return &UserRepo{db: tx, logger: r.logger}
}

var _ storage.UserRepository = (*UserRepo)(nil)

// GetOrCreateByAddress upserts on wallet_address so concurrent first sightings converge on one row.
func (r *UserRepo) GetOrCreateByAddress(ctx context.Context, address string, role models.UserRole) (*models.User, error) {
	query := `
		INSERT INTO users (id, wallet_address, display_name, role, created_at, last_seen_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (wallet_address) DO UPDATE SET last_seen_at = NOW()
		RETURNING ` + userColumns

	rows, err := r.db.Query(ctx, query, uuid.New(), address, models.DefaultDisplayName(address), string(role))
	user, err := collectOne[models.User](rows, err)
	if err != nil {
		r.logger.Error("GetOrCreateByAddress: upsert failed", zap.String("address", address), zap.Error(err))
		return nil, mapWriteError(err, "upsert user")
	}
	return user, nil
}

func (r *UserRepo) GetByAddress(ctx context.Context, address string) (*models.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE wallet_address = $1`, address)
	user, err := collectOne[models.User](rows, err)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user by address %s: %w", address, err)
	}
	return user, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := collectOne[models.User](rows, err)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user by ID %s: %w", id, err)
	}
	return user, nil
}
