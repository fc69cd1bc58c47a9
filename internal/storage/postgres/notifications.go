package postgres

import (
	"context"
	"fmt"

	"escrow-marketplace/internal/models"
	"escrow-marketplace/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const notificationColumns = `id, user_id, type, title, message, action_url, read, created_at`

// NotificationRepo implements the storage.NotificationRepository interface using PostgreSQL.
type NotificationRepo struct {
	db     Querier
	logger *zap.Logger
}

// NewNotificationRepo creates a new NotificationRepo.
func NewNotificationRepo(db Querier, logger *zap.Logger) *NotificationRepo {
	return &NotificationRepo{db: db, logger: logger}
}

var _ storage.NotificationRepository = (*NotificationRepo)(nil)

func (r *NotificationRepo) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	id := n.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	query := `
		INSERT INTO notifications (id, user_id, type, title, message, action_url, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, NOW())
		RETURNING ` + notificationColumns
	rows, err := r.db.Query(ctx, query, id, n.UserID, string(n.Type), n.Title, n.Message, n.ActionURL)
	created, err := collectOne[models.Notification](rows, err)
	if err != nil {
		return nil, mapWriteError(err, "create notification")
	}
	return created, nil
}

func (r *NotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error) {
	args := []any{userID}
	query := buildListQuery(`SELECT `+notificationColumns+` FROM notifications`,
		[]string{"user_id = $1"}, &args, "created_at DESC", 0, limit)
	rows, err := r.db.Query(ctx, query, args...)
	out, err := collectAll[models.Notification](rows, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications for user %s: %w", userID, err)
	}
	return out, nil
}

func (r *NotificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications for user %s: %w", userID, err)
	}
	return count, nil
}

func (r *NotificationRepo) MarkRead(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification %s read: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SigningRecordRepo implements storage.SigningRecordRepository using PostgreSQL.
type SigningRecordRepo struct {
	db     Querier
	logger *zap.Logger
}

// NewSigningRecordRepo creates a new SigningRecordRepo.
func NewSigningRecordRepo(db Querier, logger *zap.Logger) *SigningRecordRepo {
	return &SigningRecordRepo{db: db, logger: logger}
}

var _ storage.SigningRecordRepository = (*SigningRecordRepo)(nil)

func (r *SigningRecordRepo) Record(ctx context.Context, rec *models.SigningRecord) error {
	id := rec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO signing_records (id, agreement_id, purpose, signer_address, payload_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`,
		id, rec.AgreementID, rec.Purpose, rec.SignerAddress, rec.PayloadHash)
	if err != nil {
		r.logger.Error("Record: failed to write signing audit", zap.String("purpose", rec.Purpose), zap.Error(err))
		return mapWriteError(err, "record signing")
	}
	return nil
}
