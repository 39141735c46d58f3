package model

import (
	"time"
)

// NotificationType classifies a message notification.
type NotificationType string

const (
	NotificationNewMessage NotificationType = "new_message"
	NotificationReply      NotificationType = "message_reply"
)

// Notification is the per-recipient record announcing a new message. Its
// read state is independent of the message's own read state.
type Notification struct {
	ID               string           `json:"id"`
	MessageID        string           `json:"message_id"`
	ThreadID         string           `json:"thread_id"`
	SenderID         string           `json:"sender_id"`
	SenderName       string           `json:"sender_name"`
	SenderType       Role             `json:"sender_type"`
	RecipientID      string           `json:"recipient_id"`
	RecipientType    Role             `json:"recipient_type"`
	NotificationType NotificationType `json:"notification_type"`
	Title            string           `json:"title"`
	Subject          string           `json:"subject"`
	Priority         Priority         `json:"priority"`
	IsRead           bool             `json:"is_read"`
	ReadAt           *time.Time       `json:"read_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// NotificationList is one page of the caller's notification inbox.
type NotificationList struct {
	Notifications []Notification `json:"notifications"`
	TotalCount    int            `json:"total_count"`
	UnreadCount   int            `json:"unread_count"`
	Skip          int            `json:"skip"`
	Limit         int            `json:"limit"`
}
