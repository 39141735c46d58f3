package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/academy-platform/dashboard-messaging/internal/middleware"
	"github.com/academy-platform/dashboard-messaging/internal/service"
	"github.com/academy-platform/dashboard-messaging/pkg/logger"
)

// NotificationHandler handles message notification endpoints.
type NotificationHandler struct {
	service   *service.MessageService
	directory *service.Directory
	logger    *logger.Logger
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(svc *service.MessageService, dir *service.Directory, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		service:   svc,
		directory: dir,
		logger:    log,
	}
}

// List handles GET /api/messages/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r, h.directory)
	if !ok {
		return
	}

	skip, limit, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.service.Notifications(r.Context(), user, skip, limit))
}

// MarkRead handles PUT /api/messages/notifications/{notificationID}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r, h.directory)
	if !ok {
		return
	}

	notificationID := chi.URLParam(r, "notificationID")
	if err := middleware.ValidateNotificationID(notificationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.MarkNotificationRead(r.Context(), user, notificationID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
