package model

import (
	"errors"
	"fmt"
	"time"
)

// Priority is the sender-assigned urgency of a message.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Status is the lifecycle state of a message. States only move forward.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusArchived  Status = "archived"
	StatusDeleted   Status = "deleted"
)

var statusRank = map[Status]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusRead:      2,
	StatusArchived:  3,
	StatusDeleted:   4,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanAdvanceTo reports whether moving from s to next keeps the lifecycle
// monotonic. Staying in the same state is allowed.
func (s Status) CanAdvanceTo(next Status) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to >= from
}

// Attachment is a file uploaded with a message.
type Attachment struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	FileType   string    `json:"file_type"`
	FileSize   int64     `json:"file_size"`
	FileURL    string    `json:"file_url"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Message is the atomic unit of academy messaging.
type Message struct {
	// Identity
	ID       string `json:"id"`
	ThreadID string `json:"thread_id,omitempty"`

	// Sides
	SenderID      string `json:"sender_id,omitempty"`
	SenderName    string `json:"sender_name"`
	SenderType    Role   `json:"sender_type"`
	RecipientID   string `json:"recipient_id,omitempty"`
	RecipientName string `json:"recipient_name"`
	RecipientType Role   `json:"recipient_type"`

	// Content
	Subject     string       `json:"subject"`
	Content     string       `json:"content"`
	Priority    Priority     `json:"priority"`
	Attachments []Attachment `json:"attachments,omitempty"`

	// State
	Status           Status  `json:"status"`
	IsRead           bool    `json:"is_read"`
	IsArchived       bool    `json:"is_archived"`
	IsReply          bool    `json:"is_reply"`
	ReplyToMessageID *string `json:"reply_to_message_id,omitempty"`

	// Timestamps
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

// Invariant violations reported by CheckMessage and CheckReply.
var (
	ErrReadWithoutTimestamp = errors.New("read message has no read_at")
	ErrReadStatusMismatch   = errors.New("read message has a pre-read status")
	ErrReplyFlagMismatch    = errors.New("is_reply disagrees with reply_to_message_id")
	ErrReplyCrossesThread   = errors.New("reply references a message in another thread")
)

// CheckMessage verifies the per-message invariants that hold for every
// message returned by the backend.
func CheckMessage(m *Message) error {
	if m.IsRead {
		if m.ReadAt == nil {
			return fmt.Errorf("message %s: %w", m.ID, ErrReadWithoutTimestamp)
		}
		if !StatusRead.CanAdvanceTo(m.Status) {
			return fmt.Errorf("message %s: %w", m.ID, ErrReadStatusMismatch)
		}
	}
	hasReply := m.ReplyToMessageID != nil && *m.ReplyToMessageID != ""
	if m.IsReply != hasReply {
		return fmt.Errorf("message %s: %w", m.ID, ErrReplyFlagMismatch)
	}
	return nil
}

// CheckReply verifies that a reply and the message it answers share a thread.
func CheckReply(reply, original *Message) error {
	if reply.ThreadID != original.ThreadID {
		return fmt.Errorf("message %s: %w", reply.ID, ErrReplyCrossesThread)
	}
	return nil
}

// SendMessageRequest is the payload of a new message.
type SendMessageRequest struct {
	RecipientID      string   `json:"recipient_id"`
	RecipientType    Role     `json:"recipient_type"`
	Subject          string   `json:"subject"`
	Content          string   `json:"content"`
	Priority         Priority `json:"priority,omitempty"`
	ReplyToMessageID string   `json:"reply_to_message_id,omitempty"`
	ThreadID         string   `json:"thread_id,omitempty"`
}

// SendMessageResponse is returned after a message is accepted.
type SendMessageResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id"`
}

// MessageUpdate is a partial update; nil fields are left untouched.
type MessageUpdate struct {
	IsRead     *bool   `json:"is_read,omitempty"`
	IsArchived *bool   `json:"is_archived,omitempty"`
	IsDeleted  *bool   `json:"is_deleted,omitempty"`
	Status     *Status `json:"status,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u MessageUpdate) Empty() bool {
	return u.IsRead == nil && u.IsArchived == nil && u.IsDeleted == nil && u.Status == nil
}

// ActionResponse acknowledges a mutation.
type ActionResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"message_id,omitempty"`
}

// ThreadMessages is one page of a thread in chronological order.
type ThreadMessages struct {
	Messages   []Message `json:"messages"`
	TotalCount int       `json:"total_count"`
	Skip       int       `json:"skip"`
	Limit      int       `json:"limit"`
}

// MessageStats are aggregate counts scoped to the caller.
type MessageStats struct {
	TotalMessages      int `json:"total_messages"`
	SentMessages       int `json:"sent_messages"`
	ReceivedMessages   int `json:"received_messages"`
	UnreadMessages     int `json:"unread_messages"`
	ArchivedMessages   int `json:"archived_messages"`
	UrgentUnread       int `json:"urgent_unread"`
	ConversationsCount int `json:"conversations_count"`
}
