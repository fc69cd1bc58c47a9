package notify

import (
	"context"
	"time"

	"escrow-marketplace/internal/metrics"
	"escrow-marketplace/internal/models"
	"escrow-marketplace/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"go.uber.org/zap"
)

const enqueueTimeout = 2 * time.Second

// NotificationArgs is the durable job persisted by the queue.
type NotificationArgs struct {
	UserID    uuid.UUID `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	ActionURL *string   `json:"action_url,omitempty"`
}

func (NotificationArgs) Kind() string { return "notification" }

// NotificationWorker stores queued notifications. Failed jobs are retried by River.
type NotificationWorker struct {
	river.WorkerDefaults[NotificationArgs]
	repo storage.NotificationRepository
}

func NewNotificationWorker(repo storage.NotificationRepository) *NotificationWorker {
	return &NotificationWorker{repo: repo}
}

func (w *NotificationWorker) Work(ctx context.Context, job *river.Job[NotificationArgs]) error {
	args := job.Args
	_, err := w.repo.Create(ctx, &models.Notification{
		UserID:    args.UserID,
		Type:      models.NotificationType(args.Type),
		Title:     args.Title,
		Message:   args.Message,
		ActionURL: args.ActionURL,
	})
	return err
}

// InsertFunc enqueues a notification job. Provided by NewQueue as a closure over river.Client.Insert.
type InsertFunc func(ctx context.Context, args NotificationArgs) error

// QueueNotifier enqueues notifications for durable, retried delivery.
type QueueNotifier struct {
	insert  InsertFunc
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewQueueNotifier(insert InsertFunc, logger *zap.Logger, m *metrics.Metrics) *QueueNotifier {
	return &QueueNotifier{insert: insert, logger: logger.Named("notify"), metrics: m}
}

func (n *QueueNotifier) Notify(ctx context.Context, notification models.Notification) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()
	err := n.insert(ctx, NotificationArgs{
		UserID:    notification.UserID,
		Type:      string(notification.Type),
		Title:     notification.Title,
		Message:   notification.Message,
		ActionURL: notification.ActionURL,
	})
	if err != nil {
		n.metrics.NotificationFailed()
		n.logger.Warn("Failed to enqueue notification",
			zap.String("user_id", notification.UserID.String()),
			zap.String("type", string(notification.Type)),
			zap.Error(err))
	}
}

// NewQueue builds the River client that runs NotificationWorker on the default queue.
func NewQueue(pool *pgxpool.Pool, repo storage.NotificationRepository, maxWorkers int) (*river.Client[pgx.Tx], InsertFunc, error) {
	if maxWorkers <= 0 {
		maxWorkers = 2
	}
	workers := river.NewWorkers()
	river.AddWorker(workers, NewNotificationWorker(repo))

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		return nil, nil, err
	}
	insert := func(ctx context.Context, args NotificationArgs) error {
		_, err := client.Insert(ctx, args, nil)
		return err
	}
	return client, insert, nil
}
