// Package notify delivers in-app notifications without blocking the flow that raised them.
// Delivery failures are logged and counted, never returned.
package notify

import (
	"context"
	"sync"
	"time"

	"escrow-marketplace/internal/metrics"
	"escrow-marketplace/internal/models"
	"escrow-marketplace/internal/storage"

	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// StoreNotifier writes each notification in its own goroutine.
type StoreNotifier struct {
	repo    storage.NotificationRepository
	logger  *zap.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

func NewStoreNotifier(repo storage.NotificationRepository, logger *zap.Logger, m *metrics.Metrics) *StoreNotifier {
	return &StoreNotifier{repo: repo, logger: logger.Named("notify"), metrics: m}
}

func (n *StoreNotifier) Notify(ctx context.Context, notification models.Notification) {
	ctx = context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		if _, err := n.repo.Create(ctx, &notification); err != nil {
			n.metrics.NotificationFailed()
			n.logger.Warn("Failed to store notification",
				zap.String("user_id", notification.UserID.String()),
				zap.String("type", string(notification.Type)),
				zap.Error(err))
		}
	}()
}

// Close waits for in-flight writes.
func (n *StoreNotifier) Close() {
	n.wg.Wait()
}
