package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/academy-platform/dashboard-messaging/internal/model"
	"github.com/academy-platform/dashboard-messaging/internal/service"
	"github.com/academy-platform/dashboard-messaging/pkg/logger"
	"github.com/academy-platform/dashboard-messaging/pkg/metrics"
)

const defaultHeartbeat = 30 * time.Second

// StreamHandler pushes notification events over server-sent events.
type StreamHandler struct {
	service   *service.MessageService
	directory *service.Directory
	hub       *service.Hub
	logger    *logger.Logger
	heartbeat time.Duration
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(svc *service.MessageService, dir *service.Directory, hub *service.Hub, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		service:   svc,
		directory: dir,
		hub:       hub,
		logger:    log,
		heartbeat: defaultHeartbeat,
	}
}

// ReplayCompleteEvent marks the end of the unread notification replay.
type ReplayCompleteEvent struct {
	UnreadCount int `json:"unread_count"`
	Replayed    int `json:"replayed"`
}

// HeartbeatEvent keeps idle connections open.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// Stream handles GET /api/messages/notifications/stream
// Unread notifications are replayed oldest first, then live events follow.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := caller(w, r, h.directory)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Subscribe before the replay so nothing sent meanwhile is lost.
	events, cancel := h.hub.Subscribe(user.ID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	sendSSEEvent(w, flusher, "connected", map[string]string{"user_id": user.ID})

	// Notifications created after Subscribe may be in both the snapshot and
	// the channel; replayed ids are skipped on the live side.
	unread := h.service.UnreadNotifications(ctx, user)
	replayed := make(map[string]struct{}, len(unread))
	for _, n := range unread {
		if err := sendSSEEvent(w, flusher, "notification", &model.NotificationEvent{
			Type:         model.EventNotificationCreated,
			Notification: n,
			PublishedAt:  n.CreatedAt,
		}); err != nil {
			return
		}
		replayed[n.ID] = struct{}{}
	}

	sendSSEEvent(w, flusher, "replay_complete", &ReplayCompleteEvent{
		UnreadCount: len(unread),
		Replayed:    len(replayed),
	})

	h.logger.Debug("notification replay complete",
		zap.String("user_id", user.ID),
		zap.Int("replayed", len(replayed)),
	)

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("notification stream closed", zap.String("user_id", user.ID))
			return

		case event, open := <-events:
			if !open {
				return
			}
			if event.Type == model.EventNotificationCreated {
				if _, seen := replayed[event.Notification.ID]; seen {
					delete(replayed, event.Notification.ID)
					continue
				}
			}
			if err := sendSSEEvent(w, flusher, "notification", event); err != nil {
				return
			}

		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &HeartbeatEvent{Timestamp: time.Now().UTC()})
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
