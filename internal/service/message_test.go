package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academy-platform/dashboard-messaging/internal/model"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []*model.NotificationEvent
	err    error
}

func (n *recordingNotifier) PublishNotification(_ context.Context, event *model.NotificationEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

type fixture struct {
	dir      *Directory
	svc      *MessageService
	notifier *recordingNotifier
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := NewDirectory()
	require.NoError(t, SeedDirectory(dir))

	f := &fixture{
		dir:      dir,
		notifier: &recordingNotifier{},
		clock:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewMessageService(dir, f.notifier, nil)
	f.svc.now = func() time.Time {
		f.clock = f.clock.Add(time.Minute)
		return f.clock
	}
	return f
}

func (f *fixture) user(t *testing.T, id string) User {
	t.Helper()
	u, ok := f.dir.User(id)
	require.True(t, ok, "unknown seed user %s", id)
	return u
}

func (f *fixture) send(t *testing.T, from, to string, mutate ...func(*model.SendMessageRequest)) *model.SendMessageResponse {
	t.Helper()
	recipient := f.user(t, to)
	req := &model.SendMessageRequest{
		RecipientID:   recipient.ID,
		RecipientType: recipient.Role,
		Subject:       "Training",
		Content:       "See you on the mat",
	}
	for _, m := range mutate {
		m(req)
	}
	resp, err := f.svc.Send(context.Background(), f.user(t, from), req)
	require.NoError(t, err)
	return resp
}

func (f *fixture) message(t *testing.T, id string) model.Message {
	t.Helper()
	f.svc.mu.RLock()
	defer f.svc.mu.RUnlock()
	rec, ok := f.svc.messages[id]
	require.True(t, ok)
	return rec.msg
}

func TestSendCreatesThreadAndNotification(t *testing.T) {
	f := newFixture(t)

	resp := f.send(t, "student-downtown-1", "coach-downtown-1")
	assert.Equal(t, "Message sent successfully", resp.Message)
	assert.NotEmpty(t, resp.MessageID)
	assert.NotEmpty(t, resp.ThreadID)

	msg := f.message(t, resp.MessageID)
	assert.Equal(t, model.StatusSent, msg.Status)
	assert.Equal(t, model.PriorityNormal, msg.Priority)
	assert.False(t, msg.IsReply)
	assert.NoError(t, model.CheckMessage(&msg))

	inbox := f.svc.Notifications(context.Background(), f.user(t, "coach-downtown-1"), 0, 10)
	require.Len(t, inbox.Notifications, 1)
	assert.Equal(t, 1, inbox.UnreadCount)
	n := inbox.Notifications[0]
	assert.Equal(t, resp.MessageID, n.MessageID)
	assert.Equal(t, resp.ThreadID, n.ThreadID)
	assert.Equal(t, model.NotificationNewMessage, n.NotificationType)
	assert.Equal(t, "New message from Priya Nair", n.Title)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, model.EventNotificationCreated, f.notifier.events[0].Type)
}

func TestSendReplyJoinsOriginalThread(t *testing.T) {
	f := newFixture(t)
	first := f.send(t, "student-downtown-1", "coach-downtown-1")

	reply := f.send(t, "coach-downtown-1", "student-downtown-1", func(r *model.SendMessageRequest) {
		r.ReplyToMessageID = first.MessageID
	})

	assert.Equal(t, first.ThreadID, reply.ThreadID)
	replyMsg := f.message(t, reply.MessageID)
	original := f.message(t, first.MessageID)
	assert.True(t, replyMsg.IsReply)
	assert.NoError(t, model.CheckMessage(&replyMsg))
	assert.NoError(t, model.CheckReply(&replyMsg, &original))

	inbox := f.svc.Notifications(context.Background(), f.user(t, "student-downtown-1"), 0, 10)
	require.Len(t, inbox.Notifications, 1)
	assert.Equal(t, model.NotificationReply, inbox.Notifications[0].NotificationType)
}

func TestSendThreadResolutionErrors(t *testing.T) {
	f := newFixture(t)
	first := f.send(t, "student-downtown-1", "coach-downtown-1")
	other := f.send(t, "manager-downtown", "coach-downtown-1")

	tests := []struct {
		name   string
		from   string
		to     string
		mutate func(*model.SendMessageRequest)
		want   error
	}{
		{"unknown thread", "coach-downtown-1", "student-downtown-1", func(r *model.SendMessageRequest) { r.ThreadID = "missing" }, ErrNotFound},
		{"unknown reply", "coach-downtown-1", "student-downtown-1", func(r *model.SendMessageRequest) { r.ReplyToMessageID = "missing" }, ErrNotFound},
		{"not a participant", "student-downtown-2", "coach-downtown-1", func(r *model.SendMessageRequest) { r.ThreadID = first.ThreadID }, ErrForbidden},
		{"reply to stranger", "student-downtown-2", "coach-downtown-1", func(r *model.SendMessageRequest) { r.ReplyToMessageID = first.MessageID }, ErrForbidden},
		{"reply and thread disagree", "coach-downtown-1", "student-downtown-1", func(r *model.SendMessageRequest) {
			r.ReplyToMessageID = first.MessageID
			r.ThreadID = other.ThreadID
		}, ErrInvalidInput},
		{"thread of others", "coach-downtown-2", "manager-downtown", func(r *model.SendMessageRequest) { r.ThreadID = other.ThreadID }, ErrForbidden},
		{"wrong recipient type", "student-downtown-1", "coach-downtown-1", func(r *model.SendMessageRequest) { r.RecipientType = model.RoleStudent }, ErrInvalidInput},
		{"blank content", "student-downtown-1", "coach-downtown-1", func(r *model.SendMessageRequest) { r.Content = "  " }, ErrInvalidInput},
		{"bad priority", "student-downtown-1", "coach-downtown-1", func(r *model.SendMessageRequest) { r.Priority = "critical" }, ErrInvalidInput},
		{"cross-branch student", "student-downtown-1", "coach-riverside-1", nil, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recipient := f.user(t, tt.to)
			req := &model.SendMessageRequest{
				RecipientID:   recipient.ID,
				RecipientType: recipient.Role,
				Subject:       "s",
				Content:       "c",
			}
			if tt.mutate != nil {
				tt.mutate(req)
			}
			_, err := f.svc.Send(context.Background(), f.user(t, tt.from), req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSendReplyWithMatchingThread(t *testing.T) {
	f := newFixture(t)
	first := f.send(t, "student-downtown-1", "coach-downtown-1")

	reply := f.send(t, "coach-downtown-1", "student-downtown-1", func(r *model.SendMessageRequest) {
		r.ReplyToMessageID = first.MessageID
		r.ThreadID = first.ThreadID
	})
	assert.Equal(t, first.ThreadID, reply.ThreadID)
}

func TestMarkReadSetsReadAtOnce(t *testing.T) {
	f := newFixture(t)
	sent := f.send(t, "student-downtown-1", "coach-downtown-1")
	coach := f.user(t, "coach-downtown-1")

	first, err := f.svc.MarkRead(context.Background(), coach, sent.MessageID)
	require.NoError(t, err)
	msg := f.message(t, sent.MessageID)
	require.NotNil(t, msg.ReadAt)
	readAt := *msg.ReadAt
	assert.Equal(t, model.StatusRead, msg.Status)
	assert.NoError(t, model.CheckMessage(&msg))

	second, err := f.svc.MarkRead(context.Background(), coach, sent.MessageID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	msg = f.message(t, sent.MessageID)
	assert.Equal(t, readAt, *msg.ReadAt)
}

func TestOnlyRecipientMarksRead(t *testing.T) {
	f := newFixture(t)
	sent := f.send(t, "student-downtown-1", "coach-downtown-1")

	_, err := f.svc.MarkRead(context.Background(), f.user(t, "student-downtown-1"), sent.MessageID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.MarkRead(context.Background(), f.user(t, "student-downtown-2"), sent.MessageID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatusOnlyMovesForward(t *testing.T) {
	f := newFixture(t)
	sent := f.send(t, "student-downtown-1", "coach-downtown-1")
	coach := f.user(t, "coach-downtown-1")

	_, err := f.svc.Archive(context.Background(), coach, sent.MessageID)
	require.NoError(t, err)
	msg := f.message(t, sent.MessageID)
	assert.Equal(t, model.StatusArchived, msg.Status)
	assert.True(t, msg.IsArchived)

	back := model.StatusDelivered
	_, err = f.svc.Update(context.Background(), coach, sent.MessageID, model.MessageUpdate{Status: &back})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	no := false
	_, err = f.svc.Update(context.Background(), coach, sent.MessageID, model.MessageUpdate{IsArchived: &no})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Reading an archived message keeps the archived status.
	_, err = f.svc.MarkRead(context.Background(), coach, sent.MessageID)
	require.NoError(t, err)
	msg = f.message(t, sent.MessageID)
	assert.Equal(t, model.StatusArchived, msg.Status)
	assert.True(t, msg.IsRead)
	assert.NoError(t, model.CheckMessage(&msg))
}

func TestRejectedPatchLeavesMessageUntouched(t *testing.T) {
	f := newFixture(t)
	sent := f.send(t, "student-downtown-1", "coach-downtown-1")
	before := f.message(t, sent.MessageID)

	yes := true
	// The sender may archive but not read, so the whole patch is rejected.
	_, err := f.svc.Update(context.Background(), f.user(t, "student-downtown-1"), sent.MessageID,
		model.MessageUpdate{IsRead: &yes, IsArchived: &yes})
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.Equal(t, before, f.message(t, sent.MessageID))
}

func TestDeleteIsIdempotentAndHides(t *testing.T) {
	f := newFixture(t)
	sent := f.send(t, "student-downtown-1", "coach-downtown-1")
	student := f.user(t, "student-downtown-1")
	coach := f.user(t, "coach-downtown-1")

	first, err := f.svc.Delete(context.Background(), student, sent.MessageID)
	require.NoError(t, err)
	second, err := f.svc.Delete(context.Background(), student, sent.MessageID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = f.svc.MarkRead(context.Background(), coach, sent.MessageID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, f.svc.Conversations(context.Background(), coach, 0, 10).Conversations)
	assert.Empty(t, f.svc.Notifications(context.Background(), coach, 0, 10).Notifications)
}

func TestConversationsSummaries(t *testing.T) {
	f := newFixture(t)
	coach := f.user(t, "coach-downtown-1")

	older := f.send(t, "student-downtown-1", "coach-downtown-1", func(r *model.SendMessageRequest) { r.Subject = "Belt grading" })
	f.send(t, "coach-downtown-1", "student-downtown-1", func(r *model.SendMessageRequest) {
		r.ReplyToMessageID = older.MessageID
		r.Subject = "Re: Belt grading"
	})
	newer := f.send(t, "manager-downtown", "coach-downtown-1", func(r *model.SendMessageRequest) { r.Subject = "Schedule" })
	f.send(t, "manager-downtown", "coach-downtown-1", func(r *model.SendMessageRequest) { r.ThreadID = newer.ThreadID })

	list := f.svc.Conversations(context.Background(), coach, 0, 10)
	require.Len(t, list.Conversations, 2)
	assert.Equal(t, 2, list.TotalCount)

	for i := 1; i < len(list.Conversations); i++ {
		assert.False(t, list.Conversations[i].LastMessageAt.After(list.Conversations[i-1].LastMessageAt))
	}

	latest := list.Conversations[0]
	assert.Equal(t, newer.ThreadID, latest.ThreadID)
	assert.Equal(t, "Schedule", latest.Subject)
	assert.Equal(t, 2, latest.MessageCount)
	assert.Equal(t, 2, latest.UnreadCount)
	require.Len(t, latest.Participants, 2, "participants are deduplicated")
	assert.Equal(t, "manager-downtown", latest.Participants[0].UserID)
	require.NotNil(t, latest.LastMessage)
	assert.Equal(t, latest.LastMessageAt, latest.LastMessage.CreatedAt)
	assert.False(t, latest.IsArchived)

	grading := list.Conversations[1]
	assert.Equal(t, "Belt grading", grading.Subject)
	assert.Equal(t, 1, grading.UnreadCount, "the coach's own reply is not unread for them")

	page := f.svc.Conversations(context.Background(), coach, 1, 1)
	require.Len(t, page.Conversations, 1)
	assert.Equal(t, older.ThreadID, page.Conversations[0].ThreadID)

	empty := f.svc.Conversations(context.Background(), coach, 5, 10)
	assert.Empty(t, empty.Conversations)
	assert.Equal(t, 2, empty.TotalCount)
}

func TestConversationArchivedWhenAllVisibleArchived(t *testing.T) {
	f := newFixture(t)
	coach := f.user(t, "coach-downtown-1")
	first := f.send(t, "student-downtown-1", "coach-downtown-1")
	second := f.send(t, "student-downtown-1", "coach-downtown-1", func(r *model.SendMessageRequest) { r.ThreadID = first.ThreadID })

	_, err := f.svc.Archive(context.Background(), coach, first.MessageID)
	require.NoError(t, err)
	assert.False(t, f.svc.Conversations(context.Background(), coach, 0, 10).Conversations[0].IsArchived)

	_, err = f.svc.Archive(context.Background(), coach, second.MessageID)
	require.NoError(t, err)
	assert.True(t, f.svc.Conversations(context.Background(), coach, 0, 10).Conversations[0].IsArchived)
}

func TestThreadMessagesChronologicalAndParticipantOnly(t *testing.T) {
	f := newFixture(t)
	first := f.send(t, "student-downtown-1", "coach-downtown-1")
	for i := 0; i < 3; i++ {
		f.send(t, "coach-downtown-1", "student-downtown-1", func(r *model.SendMessageRequest) { r.ThreadID = first.ThreadID })
	}

	page, err := f.svc.ThreadMessages(context.Background(), f.user(t, "student-downtown-1"), first.ThreadID, 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Messages, 4)
	assert.Equal(t, first.MessageID, page.Messages[0].ID)
	for i := 1; i < len(page.Messages); i++ {
		assert.False(t, page.Messages[i].CreatedAt.Before(page.Messages[i-1].CreatedAt))
	}

	tail, err := f.svc.ThreadMessages(context.Background(), f.user(t, "coach-downtown-1"), first.ThreadID, 3, 10)
	require.NoError(t, err)
	assert.Len(t, tail.Messages, 1)
	assert.Equal(t, 4, tail.TotalCount)

	_, err = f.svc.ThreadMessages(context.Background(), f.user(t, "student-downtown-2"), first.ThreadID, 0, 10)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.ThreadMessages(context.Background(), f.user(t, "student-downtown-2"), "missing", 0, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNotificationReadIsRecipientOnlyAndIdempotent(t *testing.T) {
	f := newFixture(t)
	sent := f.send(t, "student-downtown-1", "coach-downtown-1")
	coach := f.user(t, "coach-downtown-1")

	inbox := f.svc.Notifications(context.Background(), coach, 0, 10)
	require.Len(t, inbox.Notifications, 1)
	id := inbox.Notifications[0].ID

	_, err := f.svc.MarkNotificationRead(context.Background(), f.user(t, "student-downtown-1"), id)
	assert.ErrorIs(t, err, ErrNotFound)

	first, err := f.svc.MarkNotificationRead(context.Background(), coach, id)
	require.NoError(t, err)
	second, err := f.svc.MarkNotificationRead(context.Background(), coach, id)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, sent.MessageID, first.MessageID)

	inbox = f.svc.Notifications(context.Background(), coach, 0, 10)
	assert.Equal(t, 0, inbox.UnreadCount)
	assert.NotNil(t, inbox.Notifications[0].ReadAt)

	// The message itself stays unread.
	assert.False(t, f.message(t, sent.MessageID).IsRead)

	require.Len(t, f.notifier.events, 2, "one created event and a single read event")
	assert.Equal(t, model.EventNotificationRead, f.notifier.events[1].Type)
}

func TestUnreadNotificationsOldestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	coach := f.user(t, "coach-downtown-1")
	subject := func(s string) func(*model.SendMessageRequest) {
		return func(r *model.SendMessageRequest) { r.Subject = s }
	}

	f.send(t, "student-downtown-1", "coach-downtown-1", subject("first"))
	f.send(t, "student-downtown-1", "coach-downtown-1", subject("read"))
	f.send(t, "student-downtown-2", "coach-downtown-1", subject("second"))
	deleted := f.send(t, "student-downtown-1", "coach-downtown-1", subject("deleted"))

	inbox := f.svc.Notifications(ctx, coach, 0, 10)
	require.Len(t, inbox.Notifications, 4)
	_, err := f.svc.MarkNotificationRead(ctx, coach, inbox.Notifications[2].ID)
	require.NoError(t, err)
	_, err = f.svc.Delete(ctx, f.user(t, "student-downtown-1"), deleted.MessageID)
	require.NoError(t, err)

	var subjects []string
	for _, n := range f.svc.UnreadNotifications(ctx, coach) {
		subjects = append(subjects, n.Subject)
	}
	assert.Equal(t, []string{"first", "second"}, subjects)
}

func TestPublishFailureDoesNotFailSend(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("nats down")

	resp := f.send(t, "student-downtown-1", "coach-downtown-1")
	assert.NotEmpty(t, resp.MessageID)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	coach := f.user(t, "coach-downtown-1")
	a := f.send(t, "student-downtown-1", "coach-downtown-1", func(r *model.SendMessageRequest) { r.Priority = model.PriorityUrgent })
	f.send(t, "manager-downtown", "coach-downtown-1")
	f.send(t, "coach-downtown-1", "student-downtown-2")

	_, err := f.svc.Archive(context.Background(), coach, a.MessageID)
	require.NoError(t, err)

	stats := f.svc.Stats(context.Background(), coach)
	assert.Equal(t, &model.MessageStats{
		TotalMessages:      3,
		SentMessages:       1,
		ReceivedMessages:   2,
		UnreadMessages:     2,
		ArchivedMessages:   1,
		UrgentUnread:       1,
		ConversationsCount: 3,
	}, stats)
}

func TestSeedMessages(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, SeedMessages(context.Background(), f.dir, f.svc))

	coach := f.user(t, "coach-downtown-1")
	list := f.svc.Conversations(context.Background(), coach, 0, 10)
	assert.Equal(t, 2, list.TotalCount)
}
