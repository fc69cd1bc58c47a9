package database

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schemaSQL string

// Migrate applies the ledger schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply ledger schema: %w", err)
	}
	logger.Info("Ledger schema applied")
	return nil
}

// MigrateQueue installs the River job tables used by the notification queue.
func MigrateQueue(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create river migrator: %w", err)
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("failed to migrate river schema: %w", err)
	}
	logger.Info("River schema migrated", zap.Int("versions_applied", len(res.Versions)))
	return nil
}
