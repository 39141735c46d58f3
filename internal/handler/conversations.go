package handler

import (
	"net/http"

	"github.com/academy-platform/dashboard-messaging/internal/service"
	"github.com/academy-platform/dashboard-messaging/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	service   *service.MessageService
	directory *service.Directory
	logger    *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.MessageService, dir *service.Directory, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service:   svc,
		directory: dir,
		logger:    log,
	}
}

// List handles GET /api/messages/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r, h.directory)
	if !ok {
		return
	}

	skip, limit, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.service.Conversations(r.Context(), user, skip, limit))
}
