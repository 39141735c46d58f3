package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/academy-platform/dashboard-messaging/internal/model"
)

func newNotification(msg *model.Message, now time.Time) *model.Notification {
	notificationType := model.NotificationNewMessage
	title := "New message from " + msg.SenderName
	if msg.IsReply {
		notificationType = model.NotificationReply
		title = msg.SenderName + " replied to your message"
	}

	return &model.Notification{
		ID:               uuid.Must(uuid.NewV7()).String(),
		MessageID:        msg.ID,
		ThreadID:         msg.ThreadID,
		SenderID:         msg.SenderID,
		SenderName:       msg.SenderName,
		SenderType:       msg.SenderType,
		RecipientID:      msg.RecipientID,
		RecipientType:    msg.RecipientType,
		NotificationType: notificationType,
		Title:            title,
		Subject:          msg.Subject,
		Priority:         msg.Priority,
		CreatedAt:        now,
	}
}

// Notifications returns one page of the caller's inbox, newest first.
// Notifications of deleted messages are hidden.
func (s *MessageService) Notifications(ctx context.Context, caller User, skip, limit int) *model.NotificationList {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.inbox[caller.ID]
	visible := make([]model.Notification, 0, len(ids))
	unread := 0
	for i := len(ids) - 1; i >= 0; i-- {
		n := s.notifications[ids[i]]
		if rec, ok := s.messages[n.MessageID]; ok && rec.msg.Status == model.StatusDeleted {
			continue
		}
		if !n.IsRead {
			unread++
		}
		visible = append(visible, *n)
	}

	start, end := pageBounds(len(visible), skip, limit)
	return &model.NotificationList{
		Notifications: visible[start:end],
		TotalCount:    len(visible),
		UnreadCount:   unread,
		Skip:          skip,
		Limit:         limit,
	}
}

// UnreadNotifications returns every unread notification of the caller,
// oldest first, read under a single lock.
func (s *MessageService) UnreadNotifications(ctx context.Context, caller User) []model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var unread []model.Notification
	for _, id := range s.inbox[caller.ID] {
		n := s.notifications[id]
		if n.IsRead {
			continue
		}
		if rec, ok := s.messages[n.MessageID]; ok && rec.msg.Status == model.StatusDeleted {
			continue
		}
		unread = append(unread, *n)
	}
	return unread
}

// MarkNotificationRead marks one of the caller's notifications read.
// Repeating it is a no-op.
func (s *MessageService) MarkNotificationRead(ctx context.Context, caller User, notificationID string) (*model.ActionResponse, error) {
	s.mu.Lock()
	n, ok := s.notifications[notificationID]
	if !ok || n.RecipientID != caller.ID {
		s.mu.Unlock()
		return nil, fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
	}

	changed := false
	if !n.IsRead {
		readAt := s.now()
		n.IsRead = true
		n.ReadAt = &readAt
		changed = true
	}
	snapshot := *n
	s.mu.Unlock()

	if changed {
		s.publish(ctx, model.EventNotificationRead, snapshot)
	}

	return &model.ActionResponse{Message: "Notification marked as read", MessageID: snapshot.MessageID}, nil
}
