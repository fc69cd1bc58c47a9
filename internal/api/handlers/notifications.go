package handlers

import (
	"net/http"

	"escrow-marketplace/internal/services"
	"escrow-marketplace/internal/transport/dto"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// NotificationHandler serves the in-app notification inbox.
type NotificationHandler struct {
	service   services.NotificationService
	validator *validator.Validate
	logger    *zap.Logger
}

func NewNotificationHandler(service services.NotificationService, validate *validator.Validate, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		service:   service,
		validator: validate,
		logger:    logger,
	}
}

// ListNotifications godoc
// @Summary      List the latest notifications of a user
// @Tags         notifications
// @Produce      json
// @Param        user_id query     string true  "User ID" Format(uuid)
// @Success      200 {object}  dto.NotificationListResponse
// @Failure      400 {object}  map[string]interface{} "Missing user ID"
// @Router       /notifications [get]
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	var req dto.ListNotificationsRequest
	if !bindQuery(c, h.validator, &req) {
		return
	}
	items, unread, err := h.service.List(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err, "Failed to list notifications")
		return
	}
	resp := dto.NotificationListResponse{
		Notifications: make([]dto.NotificationResponse, 0, len(items)),
		UnreadCount:   unread,
	}
	for i := range items {
		resp.Notifications = append(resp.Notifications, services.MapNotificationToResponse(&items[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// MarkRead godoc
// @Summary      Mark a notification read
// @Tags         notifications
// @Accept       json
// @Produce      json
// @Param        id      path      string                          true  "Notification ID" Format(uuid)
// @Param        request body      dto.MarkNotificationReadRequest true  "Owner"
// @Success      204
// @Failure      404 {object}  map[string]interface{} "Notification Not Found"
// @Router       /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := parseID(c, "id", "notification")
	if !ok {
		return
	}
	var req dto.MarkNotificationReadRequest
	req.NotificationID = id
	if !bindJSON(c, h.validator, &req) {
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), &req); err != nil {
		respondError(c, h.logger, err, "Failed to mark notification read")
		return
	}
	c.Status(http.StatusNoContent)
}
