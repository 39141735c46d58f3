package model

import (
	"time"
)

// Conversation groups every message sharing a thread id, as seen by the
// requesting user.
type Conversation struct {
	ThreadID      string        `json:"thread_id"`
	Subject       string        `json:"subject"`
	Participants  []Participant `json:"participants"`
	MessageCount  int           `json:"message_count"`
	LastMessage   *Message      `json:"last_message,omitempty"`
	LastMessageAt time.Time     `json:"last_message_at"`
	UnreadCount   int           `json:"unread_count"`
	IsArchived    bool          `json:"is_archived"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// ConversationList is one page of conversations, most recent first.
type ConversationList struct {
	Conversations []Conversation `json:"conversations"`
	TotalCount    int            `json:"total_count"`
	Skip          int            `json:"skip"`
	Limit         int            `json:"limit"`
}

// HasMore reports whether another page follows this one.
func (l *ConversationList) HasMore() bool {
	return l.Skip+len(l.Conversations) < l.TotalCount
}
