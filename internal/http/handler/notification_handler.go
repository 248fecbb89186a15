package handler

import (
	"net/http"

	"github.com/straye-as/salesflow-api/internal/service"
	"go.uber.org/zap"
)

// NotificationHandler handles HTTP requests for the current user's inbox
type NotificationHandler struct {
	notificationService *service.NotificationService
	logger              *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler instance
func NewNotificationHandler(notificationService *service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		logger:              logger,
	}
}

// List godoc
// @Summary List notifications
// @Description Get paginated list of notifications for the current user
// @Tags Notifications
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page" default(20)
// @Param unreadOnly query bool false "Only unread notifications" default(false)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.NotificationDTO}
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Router /notifications [get]
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := parseListOptions(r)
	unreadOnly := r.URL.Query().Get("unreadOnly") == "true"

	result, err := h.notificationService.List(r.Context(), opts.Page, opts.PageSize, unreadOnly)
	if err != nil {
		respondServiceError(w, h.logger, err, "list notifications")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// UnreadCount godoc
// @Summary Get unread notification count
// @Tags Notifications
// @Produce json
// @Success 200 {object} domain.UnreadCountDTO
// @Security BearerAuth
// @Router /notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.notificationService.UnreadCount(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "get unread count")
		return
	}
	respondJSON(w, http.StatusOK, count)
}

// MarkRead godoc
// @Summary Mark notification as read
// @Description A clicked notification stays clicked
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID" format(uuid)
// @Success 200 {object} domain.NotificationDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "notification")
	if !ok {
		return
	}

	notification, err := h.notificationService.MarkRead(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "mark notification as read")
		return
	}
	respondJSON(w, http.StatusOK, notification)
}

// MarkClicked godoc
// @Summary Mark notification as clicked
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID" format(uuid)
// @Success 200 {object} domain.NotificationDTO
// @Security BearerAuth
// @Router /notifications/{id}/click [post]
func (h *NotificationHandler) MarkClicked(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "notification")
	if !ok {
		return
	}

	notification, err := h.notificationService.MarkClicked(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "mark notification as clicked")
		return
	}
	respondJSON(w, http.StatusOK, notification)
}

// MarkAllRead godoc
// @Summary Mark all notifications as read
// @Tags Notifications
// @Produce json
// @Success 200 {object} map[string]int64
// @Security BearerAuth
// @Router /notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	updated, err := h.notificationService.MarkAllRead(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "mark all notifications as read")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}
