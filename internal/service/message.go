package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/academy-platform/dashboard-messaging/internal/model"
	"github.com/academy-platform/dashboard-messaging/pkg/logger"
	"github.com/academy-platform/dashboard-messaging/pkg/metrics"
)

// Notifier receives every notification change after it is committed.
type Notifier interface {
	PublishNotification(ctx context.Context, event *model.NotificationEvent) error
}

type record struct {
	msg model.Message
	seq uint64
}

// MessageService stores messages, threads and notifications and enforces the
// lifecycle rules the messaging client relies on.
type MessageService struct {
	directory *Directory
	notifier  Notifier
	logger    *logger.Logger
	now       func() time.Time

	mu            sync.RWMutex
	seq           uint64
	messages      map[string]*record
	threads       map[string][]string // thread id -> message ids in creation order
	notifications map[string]*model.Notification
	inbox         map[string][]string // recipient id -> notification ids in creation order
}

// NewMessageService creates a message service. notifier may be nil.
func NewMessageService(directory *Directory, notifier Notifier, log *logger.Logger) *MessageService {
	if log == nil {
		log = logger.NewNop()
	}
	return &MessageService{
		directory:     directory,
		notifier:      notifier,
		logger:        log,
		now:           func() time.Time { return time.Now().UTC() },
		messages:      make(map[string]*record),
		threads:       make(map[string][]string),
		notifications: make(map[string]*model.Notification),
		inbox:         make(map[string][]string),
	}
}

// Send stores a new message from sender, resolves its thread and creates the
// recipient's notification in the same critical section.
func (s *MessageService) Send(ctx context.Context, sender User, req *model.SendMessageRequest) (*model.SendMessageResponse, error) {
	recipient, ok := s.directory.User(req.RecipientID)
	if !ok {
		return nil, fmt.Errorf("recipient %s: %w", req.RecipientID, ErrNotFound)
	}
	if req.RecipientType != "" && recipient.Role != req.RecipientType {
		return nil, fmt.Errorf("%w: recipient %s is not a %s", ErrInvalidInput, recipient.ID, req.RecipientType)
	}
	if !CanMessage(sender, recipient) {
		return nil, fmt.Errorf("%s may not message %s: %w", sender.Role, recipient.Role, ErrForbidden)
	}

	subject := strings.TrimSpace(req.Subject)
	content := strings.TrimSpace(req.Content)
	if subject == "" || content == "" {
		return nil, fmt.Errorf("%w: subject and content are required", ErrInvalidInput)
	}
	priority := req.Priority
	if priority == "" {
		priority = model.PriorityNormal
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: priority %q", ErrInvalidInput, priority)
	}

	s.mu.Lock()

	threadID, err := s.resolveThreadLocked(sender.ID, req.ThreadID, req.ReplyToMessageID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	now := s.now()
	s.seq++
	msg := model.Message{
		ID:            uuid.Must(uuid.NewV7()).String(),
		ThreadID:      threadID,
		SenderID:      sender.ID,
		SenderName:    sender.Name,
		SenderType:    sender.Role,
		RecipientID:   recipient.ID,
		RecipientName: recipient.Name,
		RecipientType: recipient.Role,
		Subject:       subject,
		Content:       content,
		Priority:      priority,
		Status:        model.StatusSent,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.ReplyToMessageID != "" {
		replyTo := req.ReplyToMessageID
		msg.ReplyToMessageID = &replyTo
		msg.IsReply = true
	}
	s.messages[msg.ID] = &record{msg: msg, seq: s.seq}
	s.threads[threadID] = append(s.threads[threadID], msg.ID)

	notification := newNotification(&msg, now)
	s.notifications[notification.ID] = notification
	s.inbox[recipient.ID] = append(s.inbox[recipient.ID], notification.ID)
	published := *notification

	s.mu.Unlock()

	metrics.MessagesSent.WithLabelValues(string(sender.Role), string(priority)).Inc()
	metrics.NotificationsCreated.Inc()

	s.logger.WithMessage(msg.ID, threadID).Info("message sent",
		zap.String("sender_id", sender.ID),
		zap.String("recipient_id", recipient.ID),
		zap.Bool("is_reply", msg.IsReply),
	)

	s.publish(ctx, model.EventNotificationCreated, published)

	return &model.SendMessageResponse{
		Message:   "Message sent successfully",
		MessageID: msg.ID,
		ThreadID:  threadID,
	}, nil
}

// resolveThreadLocked picks the thread of a new message: the explicit thread,
// else the thread of the replied message, else a new one.
func (s *MessageService) resolveThreadLocked(senderID, threadID, replyToID string) (string, error) {
	var replyThread string
	if replyToID != "" {
		original, ok := s.messages[replyToID]
		if !ok || original.msg.Status == model.StatusDeleted {
			return "", fmt.Errorf("reply target %s: %w", replyToID, ErrNotFound)
		}
		if !involves(&original.msg, senderID) {
			return "", fmt.Errorf("reply target %s: %w", replyToID, ErrForbidden)
		}
		replyThread = original.msg.ThreadID
	}

	if threadID != "" {
		if _, ok := s.threads[threadID]; !ok {
			return "", fmt.Errorf("thread %s: %w", threadID, ErrNotFound)
		}
		if !s.isParticipantLocked(threadID, senderID) {
			return "", fmt.Errorf("thread %s: %w", threadID, ErrForbidden)
		}
		if replyThread != "" && replyThread != threadID {
			return "", fmt.Errorf("%w: reply target belongs to another thread", ErrInvalidInput)
		}
		return threadID, nil
	}

	if replyThread != "" {
		return replyThread, nil
	}
	return uuid.Must(uuid.NewV7()).String(), nil
}

// ThreadMessages returns one page of a thread, oldest first.
func (s *MessageService) ThreadMessages(ctx context.Context, caller User, threadID string, skip, limit int) (*model.ThreadMessages, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, ok := s.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("thread %s: %w", threadID, ErrNotFound)
	}
	if !s.isParticipantLocked(threadID, caller.ID) {
		return nil, fmt.Errorf("thread %s: %w", threadID, ErrForbidden)
	}

	visible := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		rec := s.messages[id]
		if visibleTo(&rec.msg, caller.ID) {
			visible = append(visible, rec.msg)
		}
	}

	start, end := pageBounds(len(visible), skip, limit)
	return &model.ThreadMessages{
		Messages:   visible[start:end],
		TotalCount: len(visible),
		Skip:       skip,
		Limit:      limit,
	}, nil
}

// Update applies a partial update for caller. All changes are validated
// before any is applied. Repeating an applied change is a no-op.
func (s *MessageService) Update(ctx context.Context, caller User, messageID string, patch model.MessageUpdate) (*model.ActionResponse, error) {
	return s.update(ctx, caller, messageID, patch, "Message updated successfully")
}

// MarkRead marks a received message read.
func (s *MessageService) MarkRead(ctx context.Context, caller User, messageID string) (*model.ActionResponse, error) {
	yes := true
	return s.update(ctx, caller, messageID, model.MessageUpdate{IsRead: &yes}, "Message marked as read")
}

// Archive archives a message.
func (s *MessageService) Archive(ctx context.Context, caller User, messageID string) (*model.ActionResponse, error) {
	yes := true
	return s.update(ctx, caller, messageID, model.MessageUpdate{IsArchived: &yes}, "Message archived")
}

// Delete deletes a message.
func (s *MessageService) Delete(ctx context.Context, caller User, messageID string) (*model.ActionResponse, error) {
	yes := true
	return s.update(ctx, caller, messageID, model.MessageUpdate{IsDeleted: &yes}, "Message deleted")
}

func (s *MessageService) update(ctx context.Context, caller User, messageID string, patch model.MessageUpdate, ack string) (*model.ActionResponse, error) {
	if patch.Empty() {
		return nil, fmt.Errorf("%w: update has no fields", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.messages[messageID]
	if !ok || !involves(&rec.msg, caller.ID) {
		return nil, fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}

	if rec.msg.Status == model.StatusDeleted {
		if deletesOnly(patch) {
			return &model.ActionResponse{Message: ack, MessageID: messageID}, nil
		}
		return nil, fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}

	next, changed, err := applyUpdate(rec.msg, caller.ID, patch, s.now())
	if err != nil {
		return nil, err
	}
	if changed {
		rec.msg = next
		s.logger.WithMessage(messageID, next.ThreadID).Debug("message updated",
			zap.String("status", string(next.Status)),
			zap.String("caller_id", caller.ID),
		)
	}

	return &model.ActionResponse{Message: ack, MessageID: messageID}, nil
}

// applyUpdate returns msg with patch applied. The message is taken by value
// so a rejected patch leaves the stored copy untouched.
func applyUpdate(msg model.Message, callerID string, patch model.MessageUpdate, now time.Time) (model.Message, bool, error) {
	before := msg

	if patch.IsRead != nil {
		if *patch.IsRead {
			if msg.RecipientID != callerID {
				return before, false, fmt.Errorf("only the recipient may mark a message read: %w", ErrForbidden)
			}
			markRead(&msg, now)
		} else if msg.IsRead {
			return before, false, fmt.Errorf("%w: a read message cannot become unread", ErrInvalidTransition)
		}
	}

	if patch.IsArchived != nil {
		if *patch.IsArchived {
			advance(&msg, model.StatusArchived)
			msg.IsArchived = true
		} else if msg.IsArchived {
			return before, false, fmt.Errorf("%w: an archived message cannot be unarchived", ErrInvalidTransition)
		}
	}

	if patch.Status != nil {
		target := *patch.Status
		if !target.Valid() {
			return before, false, fmt.Errorf("%w: status %q", ErrInvalidInput, target)
		}
		if !msg.Status.CanAdvanceTo(target) {
			return before, false, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, msg.Status, target)
		}
		switch target {
		case model.StatusRead:
			if msg.RecipientID != callerID {
				return before, false, fmt.Errorf("only the recipient may mark a message read: %w", ErrForbidden)
			}
			markRead(&msg, now)
		case model.StatusArchived:
			msg.IsArchived = true
		}
		advance(&msg, target)
	}

	if patch.IsDeleted != nil && *patch.IsDeleted {
		advance(&msg, model.StatusDeleted)
	}

	changed := msg.Status != before.Status || msg.IsRead != before.IsRead || msg.IsArchived != before.IsArchived
	if changed {
		msg.UpdatedAt = now
	}
	return msg, changed, nil
}

// markRead sets read_at on the first transition to read only.
func markRead(msg *model.Message, now time.Time) {
	if !msg.IsRead {
		readAt := now
		msg.IsRead = true
		msg.ReadAt = &readAt
	}
	advance(msg, model.StatusRead)
}

func advance(msg *model.Message, target model.Status) {
	if msg.Status.CanAdvanceTo(target) {
		msg.Status = target
	}
}

func deletesOnly(patch model.MessageUpdate) bool {
	if patch.IsRead != nil || patch.IsArchived != nil {
		return false
	}
	if patch.IsDeleted != nil && !*patch.IsDeleted {
		return false
	}
	if patch.Status != nil && *patch.Status != model.StatusDeleted {
		return false
	}
	return true
}

// Stats aggregates the caller's visible messages.
func (s *MessageService) Stats(ctx context.Context, caller User) *model.MessageStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &model.MessageStats{}
	threads := make(map[string]struct{})
	for _, rec := range s.messages {
		m := &rec.msg
		if !visibleTo(m, caller.ID) {
			continue
		}
		stats.TotalMessages++
		threads[m.ThreadID] = struct{}{}
		if m.SenderID == caller.ID {
			stats.SentMessages++
		}
		if m.RecipientID == caller.ID {
			stats.ReceivedMessages++
			if !m.IsRead {
				stats.UnreadMessages++
				if m.Priority == model.PriorityUrgent {
					stats.UrgentUnread++
				}
			}
		}
		if m.IsArchived {
			stats.ArchivedMessages++
		}
	}
	stats.ConversationsCount = len(threads)
	return stats
}

func (s *MessageService) isParticipantLocked(threadID, userID string) bool {
	for _, id := range s.threads[threadID] {
		if involves(&s.messages[id].msg, userID) {
			return true
		}
	}
	return false
}

func (s *MessageService) publish(ctx context.Context, eventType model.EventType, n model.Notification) {
	if s.notifier == nil {
		return
	}
	event := &model.NotificationEvent{
		Type:         eventType,
		Notification: n,
		PublishedAt:  s.now(),
	}
	if err := s.notifier.PublishNotification(ctx, event); err != nil {
		metrics.NotificationPublishFailures.Inc()
		s.logger.Warn("failed to publish notification event",
			zap.String("notification_id", n.ID),
			zap.String("type", string(eventType)),
			zap.Error(err),
		)
	}
}

func involves(m *model.Message, userID string) bool {
	return m.SenderID == userID || m.RecipientID == userID
}

func visibleTo(m *model.Message, userID string) bool {
	return involves(m, userID) && m.Status != model.StatusDeleted
}

func pageBounds(total, skip, limit int) (int, int) {
	start := skip
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return start, end
}
