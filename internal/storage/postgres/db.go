package postgres

import (
	"context"
	"errors"
	"fmt"

	"escrow-marketplace/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements storage.Store on a pgx pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewStore creates a new Store.
func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

var _ storage.Store = (*Store)(nil)

func (s *Store) Repos() storage.Repositories {
	return repositories(s.pool, s.logger)
}

// InTx runs fn inside one database transaction.
func (s *Store) InTx(ctx context.Context, fn func(storage.Repositories) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// no-op after a successful commit
		_ = tx.Rollback(ctx)
	}()

	if err := fn(repositories(tx, s.logger)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func repositories(db Querier, logger *zap.Logger) storage.Repositories {
	return storage.Repositories{
		Users:         NewUserRepo(db, logger),
		Jobs:          NewJobRepo(db, logger),
		Applications:  NewApplicationRepo(db, logger),
		Agreements:    NewAgreementRepo(db, logger),
		Transactions:  NewTransactionRepo(db, logger),
		Notifications: NewNotificationRepo(db, logger),
		Signing:       NewSigningRecordRepo(db, logger),
	}
}

// mapWriteError converts constraint violations to storage.ErrConflict.
func mapWriteError(err error, operation string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %s: %w", operation, pgErr.ConstraintName, storage.ErrConflict)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: invalid reference %s: %w", operation, pgErr.ConstraintName, storage.ErrConflict)
		}
	}
	return fmt.Errorf("failed to %s: %w", operation, err)
}

// staleOrMissing explains why a guarded update touched no rows.
func staleOrMissing(ctx context.Context, db Querier, table string, id uuid.UUID) error {
	var exists bool
	err := db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM "+table+" WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check %s %s: %w", table, id, err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrStaleState
}

// collectOne scans exactly one row into T, mapping pgx.ErrNoRows to storage.ErrNotFound.
func collectOne[T any](rows pgx.Rows, queryErr error) (*T, error) {
	if queryErr != nil {
		return nil, queryErr
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[T])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return row, err
}

// collectAll scans every row into a non-nil slice.
func collectAll[T any](rows pgx.Rows, queryErr error) ([]T, error) {
	if queryErr != nil {
		return nil, queryErr
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}
