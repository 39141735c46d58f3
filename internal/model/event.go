package model

import (
	"time"
)

// EventType represents the kind of messaging event published to the bus.
type EventType string

const (
	EventNotificationCreated EventType = "notification.created"
	EventNotificationRead    EventType = "notification.read"
)

// NotificationEvent is the envelope published for every notification change.
type NotificationEvent struct {
	Type         EventType    `json:"type"`
	Notification Notification `json:"notification"`
	PublishedAt  time.Time    `json:"published_at"`
}
