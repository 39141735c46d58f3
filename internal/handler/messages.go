// Package handler provides HTTP handlers for the messaging API.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/academy-platform/dashboard-messaging/internal/middleware"
	"github.com/academy-platform/dashboard-messaging/internal/model"
	"github.com/academy-platform/dashboard-messaging/internal/service"
	"github.com/academy-platform/dashboard-messaging/pkg/logger"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	service   *service.MessageService
	directory *service.Directory
	logger    *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(svc *service.MessageService, dir *service.Directory, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		service:   svc,
		directory: dir,
		logger:    log,
	}
}

// caller resolves the authenticated user. The token role must match the
// directory entry.
func caller(w http.ResponseWriter, r *http.Request, dir *service.Directory) (service.User, bool) {
	userID := middleware.GetUserID(r.Context())
	u, ok := dir.User(userID)
	if !ok || u.Role != middleware.GetRole(r.Context()) {
		writeError(w, http.StatusUnauthorized, "unknown user")
		return service.User{}, false
	}
	return u, true
}

// Send handles POST /api/messages/send
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	sender, ok := caller(w, r, h.directory)
	if !ok {
		return
	}

	var req model.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateSendRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.Send(r.Context(), sender, &req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Thread handles GET /api/messages/thread/{threadID}/messages
func (h *MessageHandler) Thread(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r, h.directory)
	if !ok {
		return
	}

	threadID := chi.URLParam(r, "threadID")
	if err := middleware.ValidateThreadID(threadID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	skip, limit, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.ThreadMessages(r.Context(), user, threadID, skip, limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Update handles PATCH /api/messages/message/{messageID}
func (h *MessageHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, messageID, ok := h.target(w, r)
	if !ok {
		return
	}

	var patch model.MessageUpdate
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.respond(w, r)(h.service.Update(r.Context(), user, messageID, patch))
}

// MarkRead handles POST /api/messages/message/{messageID}/mark-read
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if user, messageID, ok := h.target(w, r); ok {
		h.respond(w, r)(h.service.MarkRead(r.Context(), user, messageID))
	}
}

// Archive handles POST /api/messages/message/{messageID}/archive
func (h *MessageHandler) Archive(w http.ResponseWriter, r *http.Request) {
	if user, messageID, ok := h.target(w, r); ok {
		h.respond(w, r)(h.service.Archive(r.Context(), user, messageID))
	}
}

// Delete handles DELETE /api/messages/message/{messageID}
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if user, messageID, ok := h.target(w, r); ok {
		h.respond(w, r)(h.service.Delete(r.Context(), user, messageID))
	}
}

// Stats handles GET /api/messages/stats
func (h *MessageHandler) Stats(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r, h.directory)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.service.Stats(r.Context(), user))
}

func (h *MessageHandler) target(w http.ResponseWriter, r *http.Request) (service.User, string, bool) {
	user, ok := caller(w, r, h.directory)
	if !ok {
		return service.User{}, "", false
	}
	messageID := chi.URLParam(r, "messageID")
	if err := middleware.ValidateMessageID(messageID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return service.User{}, "", false
	}
	return user, messageID, true
}

func (h *MessageHandler) respond(w http.ResponseWriter, r *http.Request) func(*model.ActionResponse, error) {
	return func(resp *model.ActionResponse, err error) {
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
