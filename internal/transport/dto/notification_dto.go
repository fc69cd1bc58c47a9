package dto

import (
	"time"

	"github.com/google/uuid"
)

type ListNotificationsRequest struct {
	UserID uuid.UUID `form:"user_id" validate:"required"`
}

type MarkNotificationReadRequest struct {
	NotificationID uuid.UUID `json:"-" validate:"required"`
	UserID         uuid.UUID `json:"user_id" validate:"required"`
}

type NotificationResponse struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	ActionURL *string   `json:"action_url,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type NotificationListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	UnreadCount   int                    `json:"unread_count"`
}
