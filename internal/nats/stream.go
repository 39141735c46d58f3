package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/academy-platform/dashboard-messaging/internal/model"
	"github.com/academy-platform/dashboard-messaging/pkg/logger"
	"github.com/academy-platform/dashboard-messaging/pkg/metrics"
)

const (
	// StreamName is the name of the notifications stream.
	StreamName = "MESSAGE_NOTIFICATIONS"

	// SubjectPrefix is the prefix for all notification subjects.
	SubjectPrefix = "msgnotify"
)

// JetStream is the part of jetstream.JetStream the publisher uses.
type JetStream interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher publishes notification events to JetStream.
type Publisher struct {
	js     JetStream
	logger *logger.Logger
}

// NewPublisher creates a publisher on the client's JetStream context.
func NewPublisher(client *Client) *Publisher {
	return NewPublisherWith(client.JetStream(), client.logger)
}

// NewPublisherWith creates a publisher on any JetStream implementation.
func NewPublisherWith(js JetStream, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Publisher{js: js, logger: log}
}

// EnsureStream ensures the notifications stream exists.
func (p *Publisher) EnsureStream(ctx context.Context) error {
	_, err := p.js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		MaxBytes:    1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Message notification events per recipient",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// NotificationSubject returns the subject of an event for one recipient,
// for example msgnotify.coach.coach-1.created.
func NotificationSubject(recipientType model.Role, recipientID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.%s.%s", SubjectPrefix, recipientType, subjectToken(recipientID), eventAction(eventType))
}

// RecipientFilter returns the filter subject for every event of a recipient.
func RecipientFilter(recipientType model.Role, recipientID string) string {
	return fmt.Sprintf("%s.%s.%s.>", SubjectPrefix, recipientType, subjectToken(recipientID))
}

// PublishNotification publishes a notification event. The JetStream message
// id is the notification id and event type.
func (p *Publisher) PublishNotification(ctx context.Context, event *model.NotificationEvent) error {
	n := event.Notification
	subject := NotificationSubject(n.RecipientType, n.RecipientID, event.Type)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification event: %w", err)
	}

	ack, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(n.ID+":"+string(event.Type)))
	if err != nil {
		return fmt.Errorf("failed to publish notification event: %w", err)
	}

	metrics.NATSPublished.WithLabelValues(string(event.Type)).Inc()
	p.logger.Debug("notification event published",
		zap.String("subject", subject),
		zap.Uint64("sequence", ack.Sequence),
		zap.Bool("duplicate", ack.Duplicate),
	)

	return nil
}

func eventAction(eventType model.EventType) string {
	if i := strings.LastIndexByte(string(eventType), '.'); i >= 0 {
		return string(eventType)[i+1:]
	}
	return string(eventType)
}

// subjectToken makes an id safe for use as a single subject token.
func subjectToken(id string) string {
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(id)
}
