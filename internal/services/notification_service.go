package services

import (
	"context"

	"escrow-marketplace/internal/models"
	"escrow-marketplace/internal/storage"
	"escrow-marketplace/internal/transport/dto"
)

// notificationPageSize is the number of most recent notifications returned per listing.
const notificationPageSize = 20

type notificationService struct {
	notifications storage.NotificationRepository
}

// NewNotificationService creates a new instance of NotificationService.
func NewNotificationService(store storage.Store) NotificationService {
	return &notificationService{notifications: store.Repos().Notifications}
}

// List returns the latest notifications of a user and their unread count.
func (s *notificationService) List(ctx context.Context, req *dto.ListNotificationsRequest) ([]models.Notification, int, error) {
	items, err := s.notifications.ListByUser(ctx, req.UserID, notificationPageSize)
	if err != nil {
		return nil, 0, mapRepoError(err, "listing notifications")
	}
	unread, err := s.notifications.CountUnread(ctx, req.UserID)
	if err != nil {
		return nil, 0, mapRepoError(err, "counting unread notifications")
	}
	return items, unread, nil
}

func (s *notificationService) MarkRead(ctx context.Context, req *dto.MarkNotificationReadRequest) error {
	if err := s.notifications.MarkRead(ctx, req.NotificationID, req.UserID); err != nil {
		return mapRepoError(err, "marking notification read")
	}
	return nil
}
